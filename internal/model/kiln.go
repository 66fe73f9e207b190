package model

import (
	"time"

	"gorm.io/datatypes"
)

// KilnType is the heat source of a kiln.
type KilnType string

const (
	KilnTypeElectric KilnType = "electric"
	KilnTypeGas      KilnType = "gas"
	KilnTypeWood     KilnType = "wood"
	KilnTypeRaku     KilnType = "raku"
)

// Valid reports whether t is a known kiln type.
func (t KilnType) Valid() bool {
	switch t {
	case KilnTypeElectric, KilnTypeGas, KilnTypeWood, KilnTypeRaku:
		return true
	}
	return false
}

// KilnStatus is the status an operator records on a kiln. Whether the kiln
// is currently in use is derived from its firings and never stored.
type KilnStatus string

const (
	KilnStatusAvailable   KilnStatus = "available"
	KilnStatusMaintenance KilnStatus = "maintenance"
	KilnStatusRetired     KilnStatus = "retired"

	// KilnStatusInUse is only ever produced by the display projection.
	KilnStatusInUse KilnStatus = "in-use"
)

// Shelf describes one shelf level inside a kiln.
type Shelf struct {
	Level    int     `json:"level"`
	Height   float64 `json:"height"`
	Capacity int     `json:"capacity"`
}

// Kiln represents a kiln owned by a studio.
type Kiln struct {
	ID                 int64                              `gorm:"primaryKey" json:"id"`
	StudioID           string                             `gorm:"index;size:64;not null" json:"studioId"`
	Name               string                             `gorm:"size:128;not null" json:"name"`
	Type               KilnType                           `gorm:"size:16;not null" json:"type"`
	Capacity           int                                `gorm:"not null;default:0" json:"capacity"`
	MaxTemp            int                                `json:"maxTemp"`
	ShelfCount         int                                `gorm:"not null;default:0" json:"shelfCount"`
	ShelfConfiguration datatypes.JSONSlice[Shelf]         `json:"shelfConfiguration"`
	StoredStatus       KilnStatus                         `gorm:"column:status;size:16;not null;default:available" json:"storedStatus"`
	TotalFirings       int                                `gorm:"not null;default:0" json:"totalFirings"`
	LastFired          *time.Time                         `json:"lastFired,omitempty"`
	Specifications     datatypes.JSONType[Specifications] `json:"specifications"`
	CreatedAt          time.Time                          `json:"createdAt"`
	UpdatedAt          time.Time                          `json:"updatedAt"`
}
