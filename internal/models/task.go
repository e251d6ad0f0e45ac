package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is the lifecycle position of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusAssigned  TaskStatus = "assigned"
	TaskStatusOngoing   TaskStatus = "ongoing"
	TaskStatusCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusOngoing, TaskStatusCompleted:
		return true
	}
	return false
}

type CustomerType string

const (
	CustomerTypeNew CustomerType = "new"
	CustomerTypeOld CustomerType = "old"
)

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
	UrgencyDoNow  Urgency = "do_now"
)

func (u Urgency) Valid() bool {
	return u == UrgencyNormal || u == UrgencyUrgent || u == UrgencyDoNow
}

// PaymentMode is how money for a task was received.
type PaymentMode string

const (
	PaymentModeCash       PaymentMode = "cash"
	PaymentModeShopQR     PaymentMode = "shop_qr"
	PaymentModePersonalQR PaymentMode = "personal_qr"
	PaymentModeOther      PaymentMode = "other"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeShopQR, PaymentModePersonalQR, PaymentModeOther:
		return true
	}
	return false
}

// PaymentHistoryEntry is one append-only payment event against a task.
type PaymentHistoryEntry struct {
	Amount           float64             `bson:"amount" json:"amount"`
	Mode             PaymentMode         `bson:"mode" json:"mode"`
	Remarks          string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	PaidAt           time.Time           `bson:"paidAt" json:"paidAt"`
	IsInitialPayment bool                `bson:"isInitialPayment" json:"isInitialPayment"`
	ReceivedBy       *primitive.ObjectID `bson:"receivedBy,omitempty" json:"receivedBy,omitempty"`
	RequestID        string              `bson:"requestId,omitempty" json:"requestId,omitempty"`
}

// TaskDocument references a customer document uploaded to object storage.
type TaskDocument struct {
	Key         string    `bson:"key" json:"key"`
	Name        string    `bson:"name" json:"name"`
	ContentType string    `bson:"contentType" json:"contentType"`
	UploadedAt  time.Time `bson:"uploadedAt" json:"uploadedAt"`
	Processed   bool      `bson:"processed" json:"processed"`
}

// Task is one billable unit of service work.
type Task struct {
	Base            `bson:",inline"`
	SerialNumber    string                `bson:"serialNumber" json:"serialNumber"`
	CreatedAt       time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time             `bson:"updatedAt" json:"updatedAt"`
	ServiceName     string                `bson:"serviceName" json:"serviceName"`
	CustomerName    string                `bson:"customerName" json:"customerName"`
	CustomerPhone   string                `bson:"customerPhone,omitempty" json:"customerPhone,omitempty"`
	CustomerType    CustomerType          `bson:"customerType" json:"customerType"`
	Urgency         Urgency               `bson:"urgency" json:"urgency"`
	AssignedTo      *primitive.ObjectID   `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AssignedToName  string                `bson:"assignedToName,omitempty" json:"assignedToName,omitempty"`
	ServiceCharge   float64               `bson:"serviceCharge" json:"serviceCharge"`
	FinalCharges    float64               `bson:"finalCharges" json:"finalCharges"`
	AmountCollected float64               `bson:"amountCollected" json:"amountCollected"`
	UnpaidAmount    float64               `bson:"unpaidAmount" json:"unpaidAmount"`
	PaymentMode     PaymentMode           `bson:"paymentMode,omitempty" json:"paymentMode,omitempty"`
	PaymentRemarks  string                `bson:"paymentRemarks,omitempty" json:"paymentRemarks,omitempty"`
	PaymentHistory  []PaymentHistoryEntry `bson:"paymentHistory" json:"paymentHistory"`
	Documents       []TaskDocument        `bson:"documents" json:"documents"`
	Remarks         string                `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Status          TaskStatus            `bson:"status" json:"status"`
	CreatedBy       *primitive.ObjectID   `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	Version         int                   `bson:"version" json:"version"`
}

// DeletedTask is a task moved to the deleted bucket.
type DeletedTask struct {
	Task      `bson:",inline"`
	DeletedAt time.Time           `bson:"deletedAt" json:"deletedAt"`
	DeletedBy *primitive.ObjectID `bson:"deletedBy,omitempty" json:"deletedBy,omitempty"`
}
