package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
	"shopops/portal/internal/payments"
	"shopops/portal/internal/services"
	"shopops/portal/internal/storage"
	"shopops/portal/internal/tasks"
)

// TaskHandler handles task lifecycle, payments and document uploads.
type TaskHandler struct {
	taskService services.ITaskService
	storage     storage.IS3Storage
	taskClient  IAsynqClient
	loc         *time.Location
}

func NewTaskHandler(taskService services.ITaskService, storageService storage.IS3Storage, taskClient IAsynqClient, loc *time.Location) *TaskHandler {
	return &TaskHandler{taskService: taskService, storage: storageService, taskClient: taskClient, loc: loc}
}

type paymentRequest struct {
	Amount    float64            `json:"amount"`
	Mode      models.PaymentMode `json:"mode"`
	Remarks   string             `json:"remarks"`
	RequestID string             `json:"requestId"`
}

func (r paymentRequest) toPayment(who caller) payments.Request {
	return payments.Request{
		Amount:     r.Amount,
		Mode:       r.Mode,
		Remarks:    r.Remarks,
		ReceivedBy: who.idPtr(),
		RequestID:  strings.TrimSpace(r.RequestID),
	}
}

type createTaskRequest struct {
	ServiceName    string              `json:"serviceName"`
	CustomerName   string              `json:"customerName"`
	CustomerPhone  string              `json:"customerPhone"`
	CustomerType   models.CustomerType `json:"customerType"`
	Urgency        models.Urgency      `json:"urgency"`
	AssignedTo     string              `json:"assignedTo"`
	ServiceCharge  float64             `json:"serviceCharge"`
	FinalCharges   float64             `json:"finalCharges"`
	InitialPayment *paymentRequest     `json:"initialPayment"`
	Remarks        string              `json:"remarks"`
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	who := currentCaller(c)

	assignee, err := optionalID("assignedTo", req.AssignedTo)
	if err != nil {
		respondError(c, err)
		return
	}
	in := services.CreateTaskInput{
		ServiceName:   req.ServiceName,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerType:  req.CustomerType,
		Urgency:       req.Urgency,
		AssignedTo:    assignee,
		ServiceCharge: req.ServiceCharge,
		FinalCharges:  req.FinalCharges,
		Remarks:       req.Remarks,
		CreatedBy:     who.idPtr(),
	}
	if req.InitialPayment != nil {
		initial := req.InitialPayment.toPayment(who)
		in.InitialPayment = &initial
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, task)
}

func queryLimit(c *gin.Context) (int64, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit < 0 {
		respondMessage(c, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	return limit, true
}

// ListTasks handles GET /api/tasks?status&assignedTo&start&end&q&limit
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter := services.TaskFilter{
		Status: models.TaskStatus(c.Query("status")),
		Query:  c.Query("q"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondMessage(c, http.StatusBadRequest, "Invalid status")
		return
	}
	assignee, err := optionalID("assignedTo", c.Query("assignedTo"))
	if err != nil {
		respondError(c, err)
		return
	}
	filter.AssignedTo = assignee

	if c.Query("start") != "" || c.Query("end") != "" {
		r, ok := dateRange(c, h.loc)
		if !ok {
			return
		}
		filter.Range = &r
	}
	var ok bool
	if filter.Limit, ok = queryLimit(c); !ok {
		return
	}

	list, err := h.taskService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

// GetTask handles GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// AssignTask handles PUT /api/tasks/:id/assign
func (h *TaskHandler) AssignTask(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		AssignedTo string `json:"assignedTo" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	assignee, err := optionalID("assignedTo", req.AssignedTo)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.taskService.AssignTask(c.Request.Context(), taskID, *assignee)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// UpdateStatus handles PUT /api/tasks/:id/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.UpdateStatus(c.Request.Context(), taskID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// UpdateCharges handles PUT /api/tasks/:id/charges
func (h *TaskHandler) UpdateCharges(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		FinalCharges *float64 `json:"finalCharges" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.UpdateCharges(c.Request.Context(), taskID, *req.FinalCharges)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// AddPayment handles POST /api/tasks/:id/payments
func (h *TaskHandler) AddPayment(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.AddPayment(c.Request.Context(), taskID, req.toPayment(currentCaller(c)))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), taskID, currentCaller(c).idPtr()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": taskID.Hex()})
}

// ListDeletedTasks handles GET /api/tasks/deleted
func (h *TaskHandler) ListDeletedTasks(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	list, err := h.taskService.ListDeletedTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

// RestoreTask handles POST /api/tasks/:id/restore
func (h *TaskHandler) RestoreTask(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	task, err := h.taskService.RestoreTask(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// UploadURLResponse tells the client where to PUT the file and which key to report back.
type UploadURLResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// DocumentUploadURL handles POST /api/tasks/:id/documents/upload-url
func (h *TaskHandler) DocumentUploadURL(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"contentType" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.taskService.GetTask(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}

	url, key, err := h.storage.GeneratePresignedPutURL(c.Request.Context(), taskID.Hex(), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, UploadURLResponse{URL: url, Key: key})
}

// AttachDocument handles POST /api/tasks/:id/documents once the upload finished.
func (h *TaskHandler) AttachDocument(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Key         string `json:"key" binding:"required"`
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if !strings.HasPrefix(req.Key, storage.DocumentPrefix(taskID.Hex())) {
		respondMessage(c, http.StatusBadRequest, "Document key does not belong to this task")
		return
	}
	if req.Name == "" {
		req.Name = storage.SanitizeFilename(req.Key)
	}

	task, err := h.taskService.AttachDocument(c.Request.Context(), taskID, models.TaskDocument{
		Key:         req.Key,
		Name:        req.Name,
		ContentType: req.ContentType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	job, err := tasks.NewDocumentProcessTask(taskID, req.Key)
	if err == nil {
		_, err = h.taskClient.EnqueueContext(c.Request.Context(), job)
	}
	if err != nil {
		// The document stays attached and unprocessed; the upload itself succeeded.
		logger.Error("Failed to enqueue document processing", err,
			zap.String("task_id", taskID.Hex()), zap.String("key", req.Key))
	}
	respondCreated(c, task)
}
