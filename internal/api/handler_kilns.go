package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

// ListKilns handles GET /api/studios/:studio_id/kilns.
func (h *Handler) ListKilns(c *gin.Context) {
	kilns, err := h.coordinator.ListKilns(c.Request.Context(), studioID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kilns": kilns})
}

// GetKiln handles GET /api/studios/:studio_id/kilns/:kiln_id.
func (h *Handler) GetKiln(c *gin.Context) {
	kilnID, err := int64Param(c, "kiln_id")
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	kiln, err := h.coordinator.GetKiln(c.Request.Context(), studioID(c), kilnID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kiln)
}

type createKilnRequest struct {
	Name           string               `json:"name" binding:"required"`
	Type           model.KilnType       `json:"type" binding:"required"`
	Capacity       int                  `json:"capacity" binding:"gte=0"`
	MaxTemp        int                  `json:"maxTemp" binding:"gte=0"`
	ShelfCount     int                  `json:"shelfCount" binding:"gte=0"`
	Status         model.KilnStatus     `json:"status"`
	Specifications model.Specifications `json:"specifications"`
}

// CreateKiln handles POST /api/studios/:studio_id/kilns.
func (h *Handler) CreateKiln(c *gin.Context) {
	if h.kilns == nil {
		h.notImplemented(c, "kiln registration")
		return
	}

	var req createKilnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	switch req.Status {
	case "", model.KilnStatusAvailable, model.KilnStatusMaintenance, model.KilnStatusRetired:
	default:
		h.badRequest(c, "status must be available, maintenance or retired")
		return
	}

	kiln := &model.Kiln{
		StudioID:           studioID(c),
		Name:               strings.TrimSpace(req.Name),
		Type:               req.Type,
		Capacity:           req.Capacity,
		MaxTemp:            req.MaxTemp,
		ShelfCount:         req.ShelfCount,
		ShelfConfiguration: datatypes.NewJSONSlice([]model.Shelf{}),
		StoredStatus:       req.Status,
		Specifications:     datatypes.NewJSONType(req.Specifications),
	}
	if err := h.kilns.CreateKiln(c.Request.Context(), kiln); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, kiln)
}

// ConfigureShelves handles PUT /api/studios/:studio_id/kilns/:kiln_id/shelves.
func (h *Handler) ConfigureShelves(c *gin.Context) {
	kilnID, err := int64Param(c, "kiln_id")
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	var req firing.ShelfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	plan, err := h.coordinator.ConfigureShelves(c.Request.Context(), studioID(c), kilnID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
