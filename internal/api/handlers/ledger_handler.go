package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
)

// LedgerHandler records sales entries and expenses.
type LedgerHandler struct {
	ledgerService services.ILedgerService
	loc           *time.Location
}

func NewLedgerHandler(ledgerService services.ILedgerService, loc *time.Location) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, loc: loc}
}

type salesEntryRequest struct {
	EntryType    models.SalesEntryType `json:"entryType"`
	Department   string                `json:"department"`
	Amount       float64               `json:"amount"`
	Profit       float64               `json:"profit"`
	CashAmount   float64               `json:"cashAmount"`
	OnlineAmount float64               `json:"onlineAmount"`
	Distribution []models.Distribution `json:"distribution"`
	Remarks      string                `json:"remarks"`
	EntryDate    *time.Time            `json:"entryDate"`
}

type expenseRequest struct {
	Category    string     `json:"category"`
	Amount      float64    `json:"amount"`
	Remarks     string     `json:"remarks"`
	ExpenseDate *time.Time `json:"expenseDate"`
}

// CreateSalesEntry handles POST /api/data/sales-entries
func (h *LedgerHandler) CreateSalesEntry(c *gin.Context) {
	var req salesEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.ledgerService.CreateSalesEntry(c.Request.Context(), services.SalesEntryInput{
		EntryType:    req.EntryType,
		Department:   req.Department,
		Amount:       req.Amount,
		Profit:       req.Profit,
		CashAmount:   req.CashAmount,
		OnlineAmount: req.OnlineAmount,
		Distribution: req.Distribution,
		Remarks:      req.Remarks,
		EntryDate:    req.EntryDate,
		CreatedBy:    currentCaller(c).idPtr(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, entry)
}

// ListSalesEntries handles GET /api/data/sales-entries?start&end&department
func (h *LedgerHandler) ListSalesEntries(c *gin.Context) {
	r, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	entries, err := h.ledgerService.ListSalesEntries(c.Request.Context(), r, c.Query("department"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, entries)
}

// CreateExpense handles POST /api/data/expenses
func (h *LedgerHandler) CreateExpense(c *gin.Context) {
	var req expenseRequest
	if !bindJSON(c, &req) {
		return
	}
	expense, err := h.ledgerService.CreateExpense(c.Request.Context(), services.ExpenseInput{
		Category:    req.Category,
		Amount:      req.Amount,
		Remarks:     req.Remarks,
		ExpenseDate: req.ExpenseDate,
		CreatedBy:   currentCaller(c).idPtr(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, expense)
}

// ListExpenses handles GET /api/data/expenses?start&end
func (h *LedgerHandler) ListExpenses(c *gin.Context) {
	r, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	expenses, err := h.ledgerService.ListExpenses(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, expenses)
}
