package model

import (
	"time"

	"gorm.io/datatypes"
)

// FiringStatus is the lifecycle status of a firing.
type FiringStatus string

const (
	FiringStatusScheduled FiringStatus = "scheduled"
	FiringStatusLoading   FiringStatus = "loading"
	FiringStatusFiring    FiringStatus = "firing"
	FiringStatusCooling   FiringStatus = "cooling"
	FiringStatusCompleted FiringStatus = "completed"
	FiringStatusCancelled FiringStatus = "cancelled"
)

// ActiveFiringStatuses occupy a kiln. At most one firing per kiln may hold
// one of these at a time.
var ActiveFiringStatuses = []FiringStatus{FiringStatusLoading, FiringStatusFiring, FiringStatusCooling}

// Active reports whether s occupies the kiln.
func (s FiringStatus) Active() bool {
	return s == FiringStatusLoading || s == FiringStatusFiring || s == FiringStatusCooling
}

// Terminal reports whether no transition can leave s.
func (s FiringStatus) Terminal() bool {
	return s == FiringStatusCompleted || s == FiringStatusCancelled
}

// Valid reports whether s is a known status.
func (s FiringStatus) Valid() bool {
	return s == FiringStatusScheduled || s.Active() || s.Terminal()
}

// Atmosphere is the kiln atmosphere requested for a firing.
type Atmosphere string

const (
	AtmosphereOxidation Atmosphere = "oxidation"
	AtmosphereReduction Atmosphere = "reduction"
	AtmosphereNeutral   Atmosphere = "neutral"
)

// Valid reports whether a is empty or a known atmosphere.
func (a Atmosphere) Valid() bool {
	switch a {
	case "", AtmosphereOxidation, AtmosphereReduction, AtmosphereNeutral:
		return true
	}
	return false
}

// Firing is one loading-to-unloading session of a kiln. Firings are never
// deleted; terminal ones remain as history.
type Firing struct {
	ID                string                      `gorm:"primaryKey;size:36" json:"id"`
	StudioID          string                      `gorm:"index;size:64;not null" json:"studioId"`
	KilnID            int64                       `gorm:"index;not null" json:"kilnId"`
	Name              string                      `gorm:"size:256;not null" json:"name"`
	ScheduledStart    *time.Time                  `json:"scheduledStart,omitempty"`
	ActualStart       *time.Time                  `json:"actualStart,omitempty"`
	ActualEnd         *time.Time                  `json:"actualEnd,omitempty"`
	Status            FiringStatus                `gorm:"size:16;not null;index" json:"status"`
	TargetCone        string                      `gorm:"size:8" json:"targetCone,omitempty"`
	TargetTemperature *int                        `json:"targetTemperature,omitempty"`
	Atmosphere        Atmosphere                  `gorm:"size:16" json:"atmosphere,omitempty"`
	OperatorID        *string                     `gorm:"size:64" json:"operatorId,omitempty"`
	Notes             string                      `json:"notes,omitempty"`
	RackNumbers       datatypes.JSONSlice[string] `json:"rackNumbers"`
	PeakTemperature   *int                        `json:"peakTemperature,omitempty"`
	CameraURL         string                      `gorm:"size:512" json:"cameraUrl,omitempty"`
	CreatedAt         time.Time                   `json:"createdAt"`
	UpdatedAt         time.Time                   `json:"updatedAt"`
}
