// Package capacity estimates how many pieces a kiln holds from its shelf
// geometry. Everything here is a pure function of its inputs.
package capacity

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidConfiguration is returned for geometry that cannot describe a
// usable kiln.
var ErrInvalidConfiguration = errors.New("invalid kiln configuration")

// MinShelfClearance is the smallest clearance, in inches, the shelf layout
// planner aims for between two shelves.
const MinShelfClearance = 6.0

// Bounds on accepted geometry, in inches. Anything outside them is not a
// kiln and would make the estimates overflow.
const (
	MaxInteriorHeight = 240.0
	MaxShelfSide      = 1000.0
	MinPieceSide      = 0.25
	MaxShelfCount     = 1000
)

// ShelfGeometry is the usable space of one shelf, in inches.
type ShelfGeometry struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"` // clearance above the shelf
}

// Box is the bounding box of a piece, in inches.
type Box struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

// PieceSize selects either a named preset or a custom bounding box. Preset
// wins when both are set.
type PieceSize struct {
	Preset string `json:"preset,omitempty"`
	Custom *Box   `json:"custom,omitempty"`
}

const (
	PresetSmall      = "small"
	PresetMedium     = "medium"
	PresetLarge      = "large"
	PresetExtraLarge = "extraLarge"
)

var presets = map[string]Box{
	PresetSmall:      {Width: 4, Depth: 4, Height: 6},
	PresetMedium:     {Width: 6, Depth: 6, Height: 8},
	PresetLarge:      {Width: 10, Depth: 10, Height: 12},
	PresetExtraLarge: {Width: 14, Depth: 14, Height: 16},
}

// PresetNames lists the preset names ordered by footprint.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return presets[names[i]].Width*presets[names[i]].Depth < presets[names[j]].Width*presets[names[j]].Depth
	})
	return names
}

// ResolvePreset returns the bounding box of a named preset.
func ResolvePreset(name string) (Box, bool) {
	b, ok := presets[name]
	return b, ok
}

// Resolve turns p into a concrete bounding box.
func (p PieceSize) Resolve() (Box, error) {
	if p.Preset != "" {
		b, ok := presets[p.Preset]
		if !ok {
			return Box{}, fmt.Errorf("%w: unknown piece size preset %q", ErrInvalidConfiguration, p.Preset)
		}
		return b, nil
	}
	if p.Custom == nil {
		return Box{}, fmt.Errorf("%w: piece size requires a preset or a custom box", ErrInvalidConfiguration)
	}
	b := *p.Custom
	if b.Width <= 0 || b.Depth <= 0 || b.Height <= 0 {
		return Box{}, fmt.Errorf("%w: custom piece dimensions must be positive", ErrInvalidConfiguration)
	}
	if !within(b.Width, MinPieceSide, MaxShelfSide) || !within(b.Depth, MinPieceSide, MaxShelfSide) || !within(b.Height, MinPieceSide, MaxShelfSide) {
		return Box{}, fmt.Errorf("%w: custom piece dimensions must be between %.2f and %.0f inches", ErrInvalidConfiguration, MinPieceSide, MaxShelfSide)
	}
	return b, nil
}

// Result is a capacity estimate for a whole kiln.
type Result struct {
	PiecesPerShelf  int     `json:"piecesPerShelf"`
	TotalCapacity   int     `json:"totalCapacity"`
	UtilizationRate float64 `json:"utilizationRate"`

	// HeightExceedsClearance is set when the piece is taller than the shelf
	// clearance. The count is not reduced for it; operators decide.
	HeightExceedsClearance bool `json:"heightExceedsClearance"`
}

// CalculateTotalCapacity estimates capacity by laying pieces on each shelf in
// a plain grid: no rotation, no irregular footprints.
func CalculateTotalCapacity(shelfCount int, shelf ShelfGeometry, piece PieceSize) (Result, error) {
	if shelfCount < 1 || shelfCount > MaxShelfCount {
		return Result{}, fmt.Errorf("%w: shelf count must be between 1 and %d, got %d", ErrInvalidConfiguration, MaxShelfCount, shelfCount)
	}
	if shelf.Width <= 0 || shelf.Depth <= 0 {
		return Result{}, fmt.Errorf("%w: shelf width and depth must be positive", ErrInvalidConfiguration)
	}
	if !within(shelf.Width, 0, MaxShelfSide) || !within(shelf.Depth, 0, MaxShelfSide) || !within(shelf.Height, 0, MaxInteriorHeight) {
		return Result{}, fmt.Errorf("%w: shelf sides must be at most %.0f inches and clearance at most %.0f", ErrInvalidConfiguration, MaxShelfSide, MaxInteriorHeight)
	}
	box, err := piece.Resolve()
	if err != nil {
		return Result{}, err
	}

	perShelf := int(math.Floor(shelf.Width/box.Width)) * int(math.Floor(shelf.Depth/box.Depth))
	utilization := float64(perShelf) * box.Width * box.Depth / (shelf.Width * shelf.Depth)

	return Result{
		PiecesPerShelf:         perShelf,
		TotalCapacity:          perShelf * shelfCount,
		UtilizationRate:        clamp01(utilization),
		HeightExceedsClearance: shelf.Height > 0 && box.Height > shelf.Height,
	}, nil
}

// ShelfConfig is an even division of a kiln's interior into shelf levels.
type ShelfConfig struct {
	ShelfCount         int          `json:"shelfCount"`
	Shelves            []ShelfLevel `json:"shelves"`
	AverageShelfHeight float64      `json:"averageShelfHeight"`
}

// ShelfLevel is the clearance assigned to one level, counted from the floor.
type ShelfLevel struct {
	Level  int     `json:"level"`
	Height float64 `json:"height"`
}

// CalculateOptimalShelfConfig picks the largest shelf count that still leaves
// MinShelfClearance above every shelf, and splits the height evenly. When
// not even one shelf reaches the minimum, a single shelf gets all the room.
func CalculateOptimalShelfConfig(totalHeight, thickness float64) (ShelfConfig, error) {
	if totalHeight <= 0 || thickness < 0 {
		return ShelfConfig{}, fmt.Errorf("%w: kiln height must be positive and shelf thickness non-negative", ErrInvalidConfiguration)
	}
	if !within(totalHeight, 0, MaxInteriorHeight) || !within(thickness, 0, MaxInteriorHeight) {
		return ShelfConfig{}, fmt.Errorf("%w: kiln height and shelf thickness must be at most %.0f inches", ErrInvalidConfiguration, MaxInteriorHeight)
	}
	if totalHeight <= thickness {
		return ShelfConfig{}, fmt.Errorf("%w: kiln height %.2f leaves no room above a %.2f shelf", ErrInvalidConfiguration, totalHeight, thickness)
	}

	count := int(math.Floor(totalHeight / (MinShelfClearance + thickness)))
	if count < 1 {
		count = 1
	}
	height := floorHundredths((totalHeight - float64(count)*thickness) / float64(count))

	shelves := make([]ShelfLevel, count)
	for i := range shelves {
		shelves[i] = ShelfLevel{Level: i + 1, Height: height}
	}

	return ShelfConfig{
		ShelfCount:         count,
		Shelves:            shelves,
		AverageShelfHeight: height,
	}, nil
}

func floorHundredths(v float64) float64 {
	return math.Floor(v*100) / 100
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// within reports whether lo <= v <= hi. NaN is never within.
func within(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
