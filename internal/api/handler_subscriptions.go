package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint        string  `json:"endpoint" binding:"required"`
	P256DH          string  `json:"p256dh" binding:"required"`
	Auth            string  `json:"auth" binding:"required"`
	SubscribedKilns []int64 `json:"subscribedKilns"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	if h.subscriptions == nil {
		h.notImplemented(c, "push subscriptions")
		return
	}

	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}

	subscription := model.KilnSubscription{
		Endpoint: req.Endpoint,
		StudioID: studioID(c),
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.subscriptions.PutSubscription(c.Request.Context(), &subscription, req.SubscribedKilns); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if h.subscriptions == nil {
		h.notImplemented(c, "push subscriptions")
		return
	}

	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}

	if _, err := h.ownSubscription(c, req.Endpoint); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.subscriptions.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns a query value without URL decoding. Push endpoints
// are matched exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	if h.subscriptions == nil {
		h.notImplemented(c, "push subscriptions")
		return
	}

	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		h.badRequest(c, "endpoint is required")
		return
	}

	subscription, err := h.ownSubscription(c, raw)
	if err != nil {
		h.writeError(c, err)
		return
	}

	kilnIDs := make([]int64, len(subscription.Kilns))
	for i, kiln := range subscription.Kilns {
		kilnIDs[i] = kiln.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribedKilns": kilnIDs})
}

// ownSubscription loads a subscription and hides ones belonging to other
// studios.
func (h *Handler) ownSubscription(c *gin.Context, endpoint string) (*model.KilnSubscription, error) {
	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), endpoint)
	if err != nil {
		return nil, err
	}
	if sub.StudioID != studioID(c) {
		return nil, fmt.Errorf("subscription: %w", firing.ErrNotFound)
	}
	return sub, nil
}
