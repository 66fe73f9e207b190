package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

// ListFirings handles GET /api/studios/:studio_id/firings. An optional
// kiln_id query parameter narrows the list to one kiln.
func (h *Handler) ListFirings(c *gin.Context) {
	var kilnID int64
	if raw := c.Query("kiln_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			h.badRequest(c, "kiln_id must be a positive integer")
			return
		}
		kilnID = v
	}

	firings, err := h.coordinator.ListFirings(c.Request.Context(), studioID(c), kilnID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"firings": firings})
}

// ScheduleFiring handles POST /api/studios/:studio_id/firings.
func (h *Handler) ScheduleFiring(c *gin.Context) {
	var req firing.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	f, err := h.coordinator.Schedule(c.Request.Context(), studioID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// StartFiring handles POST /api/studios/:studio_id/kilns/:kiln_id/start.
// A started or created firing answers 201; a list of scheduled firings to
// choose from answers 200.
func (h *Handler) StartFiring(c *gin.Context) {
	kilnID, err := int64Param(c, "kiln_id")
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	var req firing.StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err.Error())
			return
		}
	}

	res, err := h.coordinator.StartFiring(c.Request.Context(), studioID(c), kilnID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.NeedsSelection {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type progressRequest struct {
	CurrentStatus model.FiringStatus `json:"currentStatus" binding:"required"`
}

// ProgressFiring handles POST /api/studios/:studio_id/firings/:firing_id/progress.
func (h *Handler) ProgressFiring(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	f, err := h.coordinator.Progress(c.Request.Context(), studioID(c), c.Param("firing_id"), req.CurrentStatus)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

type cancelRequest struct {
	Confirm bool `json:"confirm"`
}

// CancelFiring handles POST /api/studios/:studio_id/firings/:firing_id/cancel.
// The body must carry confirm: true.
func (h *Handler) CancelFiring(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Confirm {
		h.badRequest(c, "cancellation must be confirmed")
		return
	}
	f, err := h.coordinator.Cancel(c.Request.Context(), studioID(c), c.Param("firing_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}
