package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopops/portal/internal/models"
	"shopops/portal/internal/utils"
)

func TestLedgerService_SalesEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()
	service := NewLedgerService(utils.SetupTestDB(t), nil)
	day := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)

	entry, err := service.CreateSalesEntry(ctx, SalesEntryInput{
		EntryType:    models.EntryTypeSale,
		Department:   "printing",
		Amount:       300,
		Profit:       90,
		CashAmount:   100,
		OnlineAmount: 200,
		Distribution: []models.Distribution{{Party: " Ravi ", Amount: 100}, {Party: "Shop", Amount: 200}},
		EntryDate:    &day,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", entry.Distribution[0].Party)
	assert.Equal(t, day, entry.EntryDate)

	_, err = service.CreateSalesEntry(ctx, SalesEntryInput{
		EntryType: models.EntryTypeOnlineReceivedCashGiven, Department: "banking", Amount: 500, EntryDate: &day,
	})
	require.NoError(t, err)

	r := DateRange{Start: day.Add(-time.Hour), End: day.Add(time.Hour)}
	entries, err := service.ListSalesEntries(ctx, r, "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = service.ListSalesEntries(ctx, r, "printing")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 300.0, entries[0].Amount)

	entries, err = service.ListSalesEntries(ctx, DateRange{Start: day.Add(time.Hour), End: day.Add(2 * time.Hour)}, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerService_SalesEntryValidation(t *testing.T) {
	service := NewLedgerService(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    SalesEntryInput
		field string
	}{
		{"unknown type", SalesEntryInput{EntryType: "REFUND", Department: "x", Amount: 1}, "entryType"},
		{"missing department", SalesEntryInput{EntryType: models.EntryTypeSale, Amount: 1}, "department"},
		{"zero amount", SalesEntryInput{EntryType: models.EntryTypeSale, Department: "x"}, "amount"},
		{"negative profit", SalesEntryInput{EntryType: models.EntryTypeSale, Department: "x", Amount: 1, Profit: -1}, "profit"},
		{"unnamed party", SalesEntryInput{EntryType: models.EntryTypeSale, Department: "x", Amount: 10,
			Distribution: []models.Distribution{{Amount: 5}}}, "distribution[0].party"},
		{"over-distributed", SalesEntryInput{EntryType: models.EntryTypeSale, Department: "x", Amount: 10,
			Distribution: []models.Distribution{{Party: "a", Amount: 6}, {Party: "b", Amount: 4.01}}}, "distribution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateSalesEntry(ctx, tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLedgerService_Expenses(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()
	service := NewLedgerService(utils.SetupTestDB(t), nil)

	_, err := service.CreateExpense(ctx, ExpenseInput{Category: " ", Amount: 10})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)

	_, err = service.CreateExpense(ctx, ExpenseInput{Category: "rent", Amount: 0})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)

	expense, err := service.CreateExpense(ctx, ExpenseInput{Category: "paper", Amount: 45.555})
	require.NoError(t, err)
	assert.Equal(t, 45.56, expense.Amount)

	expenses, err := service.ListExpenses(ctx, DayRange(time.Now(), time.UTC))
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "paper", expenses[0].Category)
}
