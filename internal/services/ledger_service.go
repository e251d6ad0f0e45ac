package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopops/portal/internal/db"
	"shopops/portal/internal/models"
)

// SalesEntryInput is a ledger entry as submitted by the sales form.
type SalesEntryInput struct {
	EntryType    models.SalesEntryType
	Department   string
	Amount       float64
	Profit       float64
	CashAmount   float64
	OnlineAmount float64
	Distribution []models.Distribution
	Remarks      string
	EntryDate    *time.Time
	CreatedBy    *primitive.ObjectID
}

type ExpenseInput struct {
	Category    string
	Amount      float64
	Remarks     string
	ExpenseDate *time.Time
	CreatedBy   *primitive.ObjectID
}

// ILedgerService records money movements that feed the profit and sales reports.
type ILedgerService interface {
	CreateSalesEntry(ctx context.Context, in SalesEntryInput) (*models.SalesEntry, error)
	ListSalesEntries(ctx context.Context, r DateRange, department string) ([]models.SalesEntry, error)
	CreateExpense(ctx context.Context, in ExpenseInput) (*models.Expense, error)
	ListExpenses(ctx context.Context, r DateRange) ([]models.Expense, error)
}

const maxLedgerListLimit = 1000

type ledgerService struct {
	db      *mongo.Database
	reports *ReportCache
}

// NewLedgerService creates a ledger service whose writes invalidate reports.
func NewLedgerService(database *mongo.Database, reports *ReportCache) ILedgerService {
	return &ledgerService{db: database, reports: reports}
}

// nonNegative rounds a submitted amount to paise, rejecting negatives and NaN.
func nonNegative(field string, value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, invalid(field, "must be a number")
	}
	d := decimal.NewFromFloat(value).Round(2)
	if d.IsNegative() {
		return decimal.Zero, invalid(field, "cannot be negative")
	}
	return d, nil
}

func (s *ledgerService) CreateSalesEntry(ctx context.Context, in SalesEntryInput) (*models.SalesEntry, error) {
	if !in.EntryType.Valid() {
		return nil, invalid("entryType", "must be one of %s, %s, %s",
			models.EntryTypeSale, models.EntryTypeOnlineReceivedCashGiven, models.EntryTypeCashReceivedOnlineGiven)
	}
	department := strings.TrimSpace(in.Department)
	if department == "" {
		return nil, invalid("department", "is required")
	}

	amount, err := nonNegative("amount", in.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}
	profit, err := nonNegative("profit", in.Profit)
	if err != nil {
		return nil, err
	}
	cash, err := nonNegative("cashAmount", in.CashAmount)
	if err != nil {
		return nil, err
	}
	online, err := nonNegative("onlineAmount", in.OnlineAmount)
	if err != nil {
		return nil, err
	}

	distribution := make([]models.Distribution, 0, len(in.Distribution))
	distributed := decimal.Zero
	for i, share := range in.Distribution {
		party := strings.TrimSpace(share.Party)
		if party == "" {
			return nil, invalid(fmt.Sprintf("distribution[%d].party", i), "is required")
		}
		shareAmount, err := nonNegative(fmt.Sprintf("distribution[%d].amount", i), share.Amount)
		if err != nil {
			return nil, err
		}
		distributed = distributed.Add(shareAmount)
		distribution = append(distribution, models.Distribution{Party: party, Amount: shareAmount.InexactFloat64()})
	}
	if distributed.GreaterThan(amount) {
		return nil, invalid("distribution", "shares add up to %s which exceeds the entry amount %s", distributed, amount)
	}

	now := time.Now().UTC()
	entryDate := now
	if in.EntryDate != nil && !in.EntryDate.IsZero() {
		entryDate = in.EntryDate.UTC()
	}

	entry := &models.SalesEntry{
		Base:         models.NewBase(),
		EntryType:    in.EntryType,
		Department:   department,
		Amount:       amount.InexactFloat64(),
		Profit:       profit.InexactFloat64(),
		CashAmount:   cash.InexactFloat64(),
		OnlineAmount: online.InexactFloat64(),
		Distribution: distribution,
		Remarks:      in.Remarks,
		EntryDate:    entryDate,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
	}
	if _, err := s.db.Collection(db.SalesEntriesCollection).InsertOne(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert sales entry: %w", err)
	}
	s.reports.Invalidate(ctx)
	return entry, nil
}

func (s *ledgerService) ListSalesEntries(ctx context.Context, r DateRange, department string) ([]models.SalesEntry, error) {
	filter := bson.M{"entryDate": bson.M{"$gte": r.Start, "$lte": r.End}}
	if department = strings.TrimSpace(department); department != "" {
		filter["department"] = department
	}
	opts := options.Find().SetSort(bson.D{{Key: "entryDate", Value: -1}}).SetLimit(maxLedgerListLimit)

	cursor, err := s.db.Collection(db.SalesEntriesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.SalesEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode sales entries: %w", err)
	}
	return entries, nil
}

func (s *ledgerService) CreateExpense(ctx context.Context, in ExpenseInput) (*models.Expense, error) {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, invalid("category", "is required")
	}
	amount, err := nonNegative("amount", in.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}

	now := time.Now().UTC()
	expenseDate := now
	if in.ExpenseDate != nil && !in.ExpenseDate.IsZero() {
		expenseDate = in.ExpenseDate.UTC()
	}

	expense := &models.Expense{
		Base:        models.NewBase(),
		Category:    category,
		Amount:      amount.InexactFloat64(),
		Remarks:     in.Remarks,
		ExpenseDate: expenseDate,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
	}
	if _, err := s.db.Collection(db.ExpensesCollection).InsertOne(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}
	s.reports.Invalidate(ctx)
	return expense, nil
}

func (s *ledgerService) ListExpenses(ctx context.Context, r DateRange) ([]models.Expense, error) {
	filter := bson.M{"expenseDate": bson.M{"$gte": r.Start, "$lte": r.End}}
	opts := options.Find().SetSort(bson.D{{Key: "expenseDate", Value: -1}}).SetLimit(maxLedgerListLimit)

	cursor, err := s.db.Collection(db.ExpensesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer cursor.Close(ctx)

	expenses := []models.Expense{}
	if err := cursor.All(ctx, &expenses); err != nil {
		return nil, fmt.Errorf("failed to decode expenses: %w", err)
	}
	return expenses, nil
}
