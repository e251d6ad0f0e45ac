package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shopops/portal/internal/api/middleware"
	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
	"shopops/portal/internal/payments"
	"shopops/portal/internal/services"
)

// IAsynqClient defines the Asynq client methods used by the handlers.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Response is the envelope of every API answer.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Message: message})
}

// respondError maps service and payment errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var exceedsErr *payments.ExceedsUnpaidError

	switch {
	case errors.As(err, &validationErr):
		respondMessage(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &exceedsErr):
		respondMessage(c, http.StatusBadRequest, exceedsErr.Error())
	case errors.Is(err, payments.ErrNonPositiveAmount),
		errors.Is(err, payments.ErrNegativeAmount),
		errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrInvalidPaymentMode),
		errors.Is(err, payments.ErrNegativeCharges),
		errors.Is(err, payments.ErrChargesBelowCollected):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondMessage(c, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		respondMessage(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrVersionConflict),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrUsernameExists):
		respondMessage(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		logger.Error("Request failed", err, zap.String("path", c.FullPath()))
		respondMessage(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bindJSON decodes the request body, answering 400 itself on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses an ObjectID path parameter, answering 400 itself on failure.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid "+name+" format")
		return primitive.NilObjectID, false
	}
	return id, true
}

func optionalID(field, value string) (*primitive.ObjectID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return nil, &services.ValidationError{Field: field, Message: "invalid id"}
	}
	return &id, nil
}

// caller is the authenticated user as seen in the token.
type caller struct {
	ID   primitive.ObjectID
	Role models.Role
	Name string
}

func currentCaller(c *gin.Context) caller {
	var who caller
	if id, err := primitive.ObjectIDFromHex(c.GetString(middleware.ContextKeyUserID)); err == nil {
		who.ID = id
	}
	if role, ok := c.Get(middleware.ContextKeyRole); ok {
		who.Role, _ = role.(models.Role)
	}
	who.Name = c.GetString(middleware.ContextKeyName)
	return who
}

func (w caller) idPtr() *primitive.ObjectID {
	if w.ID.IsZero() {
		return nil
	}
	id := w.ID
	return &id
}

// dateRange reads the start/end query parameters in the shop time zone.
func dateRange(c *gin.Context, loc *time.Location) (services.DateRange, bool) {
	r, err := services.ParseDateRange(c.Query("start"), c.Query("end"), loc, time.Now())
	if err != nil {
		respondError(c, err)
		return services.DateRange{}, false
	}
	return r, true
}
