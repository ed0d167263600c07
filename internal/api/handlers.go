package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"enrollment-service/internal/logger"
	"enrollment-service/internal/model"
	"enrollment-service/internal/usecase"

	"github.com/gin-gonic/gin"
)

// EnrollmentService is what the handlers need from usecase.EnrollmentService.
type EnrollmentService interface {
	Register(ctx context.Context, studentID, courseID string, amount float64) (*model.Enrollment, error)
	Get(ctx context.Context, id int64) (*model.Enrollment, error)
	List(ctx context.Context, filter model.ListFilter) ([]model.Enrollment, error)
	Drop(ctx context.Context, id int64) (*model.Enrollment, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	svc EnrollmentService
	log *slog.Logger
}

func NewHandler(svc EnrollmentService) *Handler {
	return &Handler{svc: svc, log: logger.Component("api")}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, serviceDescriptor{
		Service:   "Enrollment Service",
		Status:    "running",
		Endpoints: []string{"/enrollments", "/health"},
	})
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context(), h.log).Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Detail: "Database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Register creates a PENDING enrollment. The RegistrationPendingPayment event
// is committed to the outbox with it and relayed after the response.
func (h *Handler) Register(c *gin.Context) {
	var req createEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	amount := 0.0
	if req.Amount != nil {
		amount = *req.Amount
	}

	enrollment, err := h.svc.Register(c.Request.Context(), req.StudentID, req.CourseID, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, enrollment)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	enrollment, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

// Drop soft-cancels: the row stays, its status becomes DROPPED.
func (h *Handler) Drop(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	enrollment, err := h.svc.Drop(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollment)
}

func (h *Handler) List(c *gin.Context) {
	filter := model.ListFilter{StudentID: c.Query("student_id")}

	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			// Nothing can carry a status outside the enumeration.
			c.JSON(http.StatusOK, []model.Enrollment{})
			return
		}
		filter.Status = status
	}

	enrollments, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollments)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "enrollment id must be an integer"})
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Detail: "Enrollment not found"})
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
	default:
		logger.FromContext(c.Request.Context(), h.log).Error("request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	}
}
