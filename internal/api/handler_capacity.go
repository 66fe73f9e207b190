package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kilnworks-backend/internal/capacity"
	"kilnworks-backend/internal/firing"
)

type presetResponse struct {
	Name string `json:"name"`
	capacity.Box
}

// GetPresets handles GET /api/capacity/presets.
func (h *Handler) GetPresets(c *gin.Context) {
	names := capacity.PresetNames()
	out := make([]presetResponse, 0, len(names))
	for _, name := range names {
		box, _ := capacity.ResolvePreset(name)
		out = append(out, presetResponse{Name: name, Box: box})
	}
	c.JSON(http.StatusOK, gin.H{"presets": out, "minShelfClearance": capacity.MinShelfClearance})
}

type totalCapacityRequest struct {
	ShelfCount int                    `json:"shelfCount"`
	Shelf      capacity.ShelfGeometry `json:"shelf"`
	PieceSize  capacity.PieceSize     `json:"pieceSize"`
}

// CalculateTotal handles POST /api/capacity/total.
func (h *Handler) CalculateTotal(c *gin.Context) {
	var req totalCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	res, err := capacity.CalculateTotalCapacity(req.ShelfCount, req.Shelf, req.PieceSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PlanShelves handles POST /api/capacity/shelves. Nothing is stored.
func (h *Handler) PlanShelves(c *gin.Context) {
	var req firing.ShelfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	layout, estimate, _, err := firing.Plan(req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"layout": layout, "estimate": estimate})
}
