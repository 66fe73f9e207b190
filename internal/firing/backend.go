package firing

import (
	"context"
	"time"

	"kilnworks-backend/internal/model"
)

// Backend is the studio-scoped record store the coordinator works against.
// Implementations must make "no active firing on this kiln" and "write an
// active firing" atomic, reporting ErrKilnBusy when the check fails.
type Backend interface {
	ListKilns(ctx context.Context, studioID string) ([]model.Kiln, error)
	ListFirings(ctx context.Context, studioID string) ([]model.Firing, error)
	CreateFiring(ctx context.Context, studioID string, f *model.Firing) (*model.Firing, error)
	UpdateFiring(ctx context.Context, studioID, firingID string, patch FiringPatch) (*model.Firing, error)
	UpdateKiln(ctx context.Context, studioID string, kilnID int64, patch KilnPatch) (*model.Kiln, error)
}

// Completer is implemented by backends that can record a completed firing
// and bump its kiln's counters atomically. Without it the coordinator issues
// UpdateFiring and UpdateKiln separately.
type Completer interface {
	CompleteFiring(ctx context.Context, studioID, firingID string, patch FiringPatch, kiln KilnPatch) (*model.Firing, *model.Kiln, error)
}

// FiringPatch is a status change. It only applies while the stored status
// still equals ExpectedStatus; otherwise the backend returns
// ErrInvalidTransition.
type FiringPatch struct {
	ExpectedStatus model.FiringStatus `json:"expectedStatus"`
	Status         model.FiringStatus `json:"status"`
	ActualStart    *time.Time         `json:"actualStart,omitempty"`
	ActualEnd      *time.Time         `json:"actualEnd,omitempty"`
}

// KilnPatch updates kiln fields. Nil fields are left untouched.
type KilnPatch struct {
	Capacity              *int          `json:"capacity,omitempty"`
	ShelfCount            *int          `json:"shelfCount,omitempty"`
	ShelfConfiguration    []model.Shelf `json:"shelfConfiguration,omitempty"`
	IncrementTotalFirings bool          `json:"incrementTotalFirings,omitempty"`
	LastFired             *time.Time    `json:"lastFired,omitempty"`
}

// CompletionNotifier is told about every firing that reaches completed.
type CompletionNotifier interface {
	FiringCompleted(kiln model.Kiln, f model.Firing)
}
