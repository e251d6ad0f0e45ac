package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
)

// ReportHandler serves the admin reports and the presence heartbeat.
type ReportHandler struct {
	reportService   services.IReportService
	presenceService services.IPresenceService
	loc             *time.Location
}

func NewReportHandler(reportService services.IReportService, presenceService services.IPresenceService, loc *time.Location) *ReportHandler {
	return &ReportHandler{reportService: reportService, presenceService: presenceService, loc: loc}
}

func report[T any](h *ReportHandler, c *gin.Context, fetch func(services.DateRange) (*T, error)) {
	r, ok := dateRange(c, h.loc)
	if !ok {
		return
	}
	result, err := fetch(r)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// TasksSummary handles GET /api/reports/tasks-summary
func (h *ReportHandler) TasksSummary(c *gin.Context) {
	report(h, c, func(r services.DateRange) (*models.TasksSummary, error) {
		return h.reportService.TasksSummary(c.Request.Context(), r)
	})
}

// ProfitExpenses handles GET /api/reports/profit-expenses
func (h *ReportHandler) ProfitExpenses(c *gin.Context) {
	report(h, c, func(r services.DateRange) (*models.ProfitExpenses, error) {
		return h.reportService.ProfitExpenses(c.Request.Context(), r)
	})
}

// SalesRanking handles GET /api/reports/sales-ranking
func (h *ReportHandler) SalesRanking(c *gin.Context) {
	report(h, c, func(r services.DateRange) (*models.SalesRanking, error) {
		return h.reportService.SalesRanking(c.Request.Context(), r)
	})
}

// Dashboard handles GET /api/reports/dashboard
func (h *ReportHandler) Dashboard(c *gin.Context) {
	report(h, c, func(r services.DateRange) (*models.Dashboard, error) {
		return h.reportService.Dashboard(c.Request.Context(), r)
	})
}

// Heartbeat handles POST /api/reports/heartbeat. It only records presence.
func (h *ReportHandler) Heartbeat(c *gin.Context) {
	who := currentCaller(c)
	err := h.presenceService.Heartbeat(c.Request.Context(), models.Presence{
		UserID:   who.ID.Hex(),
		Name:     who.Name,
		Role:     who.Role,
		LastSeen: time.Now().UTC(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"ok": true})
}

// Presence handles GET /api/reports/presence
func (h *ReportHandler) Presence(c *gin.Context) {
	online, err := h.presenceService.Online(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, online)
}
