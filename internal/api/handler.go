package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kilnworks-backend/internal/capacity"
	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

// KilnCreator registers new kilns. It is nil when kilns are owned by a
// remote backend.
type KilnCreator interface {
	CreateKiln(ctx context.Context, kiln *model.Kiln) error
}

// SubscriptionStore persists browser push subscriptions.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub *model.KilnSubscription, kilnIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (*model.KilnSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	coordinator   *firing.Coordinator
	kilns         KilnCreator
	subscriptions SubscriptionStore
	webpush       *webpush.Options
	logger        *zap.Logger
}

// NewHandler creates a new API handler. kilns and subscriptions may be nil,
// in which case their routes answer 501.
func NewHandler(coordinator *firing.Coordinator, kilns KilnCreator, subscriptions SubscriptionStore, webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coordinator:   coordinator,
		kilns:         kilns,
		subscriptions: subscriptions,
		webpush:       webpushOptions,
		logger:        logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, firing.ErrKilnBusy):
		return http.StatusConflict, "kiln_busy"
	case errors.Is(err, firing.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, capacity.ErrInvalidConfiguration):
		return http.StatusUnprocessableEntity, "invalid_configuration"
	case errors.Is(err, firing.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, firing.ErrInvalidRequest), errors.Is(err, model.ErrSpecificationMismatch):
		return http.StatusBadRequest, "invalid_request"
	case firing.IsExternalStoreError(err):
		return http.StatusBadGateway, "external_store_failure"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), Code: code})
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "invalid_request"})
}

func (h *Handler) notImplemented(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotImplemented, errorResponse{Error: what + " is not available with this backend", Code: "not_implemented"})
}

func studioID(c *gin.Context) string {
	return c.Param("studio_id")
}

func int64Param(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}
