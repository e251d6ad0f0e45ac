package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SalesEntryType tags how money moved for a ledger entry.
type SalesEntryType string

const (
	EntryTypeSale                    SalesEntryType = "SALE"
	EntryTypeOnlineReceivedCashGiven SalesEntryType = "ONLINE_RECEIVED_CASH_GIVEN"
	EntryTypeCashReceivedOnlineGiven SalesEntryType = "CASH_RECEIVED_ONLINE_GIVEN"
)

func (t SalesEntryType) Valid() bool {
	switch t {
	case EntryTypeSale, EntryTypeOnlineReceivedCashGiven, EntryTypeCashReceivedOnlineGiven:
		return true
	}
	return false
}

// Distribution is the share of an entry handed to a named party.
type Distribution struct {
	Party  string  `bson:"party" json:"party"`
	Amount float64 `bson:"amount" json:"amount"`
}

// SalesEntry records a cash/online fund movement.
type SalesEntry struct {
	Base         `bson:",inline"`
	EntryType    SalesEntryType      `bson:"entryType" json:"entryType"`
	Department   string              `bson:"department" json:"department"`
	Amount       float64             `bson:"amount" json:"amount"`
	Profit       float64             `bson:"profit" json:"profit"`
	CashAmount   float64             `bson:"cashAmount" json:"cashAmount"`
	OnlineAmount float64             `bson:"onlineAmount" json:"onlineAmount"`
	Distribution []Distribution      `bson:"distribution" json:"distribution"`
	Remarks      string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	EntryDate    time.Time           `bson:"entryDate" json:"entryDate"`
	CreatedBy    *primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
}

// Expense is money spent by the shop.
type Expense struct {
	Base        `bson:",inline"`
	Category    string              `bson:"category" json:"category"`
	Amount      float64             `bson:"amount" json:"amount"`
	Remarks     string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	ExpenseDate time.Time           `bson:"expenseDate" json:"expenseDate"`
	CreatedBy   *primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}
