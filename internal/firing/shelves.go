package firing

import (
	"context"

	"go.uber.org/zap"

	"kilnworks-backend/internal/capacity"
	"kilnworks-backend/internal/model"
)

// ShelfRequest describes a kiln interior to lay out.
type ShelfRequest struct {
	InteriorHeight float64            `json:"interiorHeight"`
	ShelfThickness float64            `json:"shelfThickness"`
	ShelfWidth     float64            `json:"shelfWidth"`
	ShelfDepth     float64            `json:"shelfDepth"`
	PieceSize      capacity.PieceSize `json:"pieceSize"`
}

// ShelfPlan is the layout and estimate that was stored on the kiln.
type ShelfPlan struct {
	Layout   capacity.ShelfConfig `json:"layout"`
	Estimate capacity.Result      `json:"estimate"`
	Kiln     *model.Kiln          `json:"kiln"`
}

// Plan computes a shelf layout and capacity estimate without storing it.
func Plan(req ShelfRequest) (capacity.ShelfConfig, capacity.Result, []model.Shelf, error) {
	layout, err := capacity.CalculateOptimalShelfConfig(req.InteriorHeight, req.ShelfThickness)
	if err != nil {
		return capacity.ShelfConfig{}, capacity.Result{}, nil, err
	}
	estimate, err := capacity.CalculateTotalCapacity(layout.ShelfCount, capacity.ShelfGeometry{
		Width:  req.ShelfWidth,
		Depth:  req.ShelfDepth,
		Height: layout.AverageShelfHeight,
	}, req.PieceSize)
	if err != nil {
		return capacity.ShelfConfig{}, capacity.Result{}, nil, err
	}

	shelves := make([]model.Shelf, 0, len(layout.Shelves))
	for _, s := range layout.Shelves {
		shelves = append(shelves, model.Shelf{Level: s.Level, Height: s.Height, Capacity: estimate.PiecesPerShelf})
	}
	return layout, estimate, shelves, nil
}

// ConfigureShelves plans the kiln's shelves and stores the resulting shelf
// configuration and capacity on it.
func (c *Coordinator) ConfigureShelves(ctx context.Context, studioID string, kilnID int64, req ShelfRequest) (ShelfPlan, error) {
	layout, estimate, shelves, err := Plan(req)
	if err != nil {
		return ShelfPlan{}, err
	}
	if _, err := c.findKiln(ctx, studioID, kilnID); err != nil {
		return ShelfPlan{}, err
	}

	kiln, err := c.backend.UpdateKiln(ctx, studioID, kilnID, KilnPatch{
		Capacity:           &estimate.TotalCapacity,
		ShelfCount:         &layout.ShelfCount,
		ShelfConfiguration: shelves,
	})
	if err != nil {
		return ShelfPlan{}, storeError("update kiln", err)
	}

	if estimate.HeightExceedsClearance {
		c.logger.Warn("piece height exceeds shelf clearance; capacity not reduced",
			zap.String("studio", studioID),
			zap.Int64("kiln", kilnID),
			zap.Float64("clearance", layout.AverageShelfHeight))
	}
	c.logger.Info("kiln shelves configured",
		zap.String("studio", studioID),
		zap.Int64("kiln", kilnID),
		zap.Int("shelves", layout.ShelfCount),
		zap.Int("capacity", estimate.TotalCapacity))

	return ShelfPlan{Layout: layout, Estimate: estimate, Kiln: kiln}, nil
}
