package firing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kilnworks-backend/internal/model"
	"kilnworks-backend/internal/parse"
)

// Coordinator drives firings through their lifecycle. It holds no per-kiln
// state: every call reads from the Backend, decides, and writes one patch.
type Coordinator struct {
	backend  Backend
	notifier CompletionNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewCoordinator creates a coordinator. notifier may be nil.
func NewCoordinator(backend Backend, notifier CompletionNotifier, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Details are the user-supplied attributes of a firing.
type Details struct {
	Name              string           `json:"name"`
	Atmosphere        model.Atmosphere `json:"atmosphere"`
	TargetCone        string           `json:"targetCone"`
	TargetTemperature *int             `json:"targetTemperature"`
	OperatorID        *string          `json:"operatorId"`
	Notes             string           `json:"notes"`
	RackNumbers       []string         `json:"rackNumbers"`
	CameraURL         string           `json:"cameraUrl"`
}

// ScheduleRequest creates a firing planned for later.
type ScheduleRequest struct {
	KilnID         int64     `json:"kilnId"`
	ScheduledStart time.Time `json:"scheduledStart"`
	Details
}

// StartRequest asks to put a kiln to work. With FiringID set, that scheduled
// firing is started. With QuickStart set, a new firing is created even if
// scheduled ones are waiting. Otherwise waiting firings are returned for the
// caller to choose from.
type StartRequest struct {
	FiringID   string  `json:"firingId"`
	QuickStart bool    `json:"quickStart"`
	Details    Details `json:"details"`
}

// StartResult is the outcome of StartFiring. Exactly one of Firing or
// Candidates is set.
type StartResult struct {
	Firing         *model.Firing  `json:"firing,omitempty"`
	Created        bool           `json:"created"`
	NeedsSelection bool           `json:"needsSelection"`
	Candidates     []model.Firing `json:"candidates,omitempty"`
}

// ListKilns returns the studio's kilns with their display status.
func (c *Coordinator) ListKilns(ctx context.Context, studioID string) ([]KilnView, error) {
	kilns, err := c.backend.ListKilns(ctx, studioID)
	if err != nil {
		return nil, storeError("list kilns", err)
	}
	firings, err := c.backend.ListFirings(ctx, studioID)
	if err != nil {
		return nil, storeError("list firings", err)
	}
	return Project(kilns, firings), nil
}

// GetKiln returns one kiln with its display status.
func (c *Coordinator) GetKiln(ctx context.Context, studioID string, kilnID int64) (KilnView, error) {
	kiln, err := c.findKiln(ctx, studioID, kilnID)
	if err != nil {
		return KilnView{}, err
	}
	firings, err := c.backend.ListFirings(ctx, studioID)
	if err != nil {
		return KilnView{}, storeError("list firings", err)
	}
	return view(*kiln, activeFirings(firings)), nil
}

// ListFirings returns the studio's firings, optionally only those of kilnID
// when it is non-zero.
func (c *Coordinator) ListFirings(ctx context.Context, studioID string, kilnID int64) ([]model.Firing, error) {
	firings, err := c.backend.ListFirings(ctx, studioID)
	if err != nil {
		return nil, storeError("list firings", err)
	}
	if kilnID == 0 {
		return firings, nil
	}
	return onKiln(firings, kilnID), nil
}

// Schedule creates a firing in scheduled status.
func (c *Coordinator) Schedule(ctx context.Context, studioID string, req ScheduleRequest) (*model.Firing, error) {
	if req.ScheduledStart.IsZero() {
		return nil, fmt.Errorf("%w: scheduledStart is required", ErrInvalidRequest)
	}
	if _, err := c.findKiln(ctx, studioID, req.KilnID); err != nil {
		return nil, err
	}

	start := req.ScheduledStart.UTC()
	f, err := c.newFiring(studioID, req.KilnID, req.Details)
	if err != nil {
		return nil, err
	}
	f.Status = model.FiringStatusScheduled
	f.ScheduledStart = &start

	created, err := c.backend.CreateFiring(ctx, studioID, f)
	if err != nil {
		return nil, storeError("create firing", err)
	}
	c.logger.Info("firing scheduled",
		zap.String("studio", studioID),
		zap.Int64("kiln", req.KilnID),
		zap.String("firing", created.ID),
		zap.Time("scheduled_start", start))
	return created, nil
}

// StartFiring applies the start protocol to a kiln.
func (c *Coordinator) StartFiring(ctx context.Context, studioID string, kilnID int64, req StartRequest) (StartResult, error) {
	if _, err := c.findKiln(ctx, studioID, kilnID); err != nil {
		return StartResult{}, err
	}

	all, err := c.backend.ListFirings(ctx, studioID)
	if err != nil {
		return StartResult{}, storeError("list firings", err)
	}
	firings := onKiln(all, kilnID)

	if active, ok := activeFiring(firings); ok {
		return StartResult{}, fmt.Errorf("%w: firing %s is %s", ErrKilnBusy, active.ID, active.Status)
	}

	now := c.now()

	if req.FiringID != "" {
		return c.startScheduled(ctx, studioID, kilnID, firings, req.FiringID, now)
	}

	var scheduled []model.Firing
	for _, f := range firings {
		if f.Status == model.FiringStatusScheduled {
			scheduled = append(scheduled, f)
		}
	}

	if len(scheduled) == 0 || req.QuickStart {
		return c.quickStart(ctx, studioID, kilnID, req.Details, now)
	}

	SortByPriority(scheduled, now)
	return StartResult{NeedsSelection: true, Candidates: scheduled}, nil
}

func (c *Coordinator) startScheduled(ctx context.Context, studioID string, kilnID int64, firings []model.Firing, firingID string, now time.Time) (StartResult, error) {
	var target *model.Firing
	for i := range firings {
		if firings[i].ID == firingID {
			target = &firings[i]
			break
		}
	}
	if target == nil {
		return StartResult{}, fmt.Errorf("firing %s on kiln %d: %w", firingID, kilnID, ErrNotFound)
	}
	if target.Status != model.FiringStatusScheduled {
		return StartResult{}, fmt.Errorf("%w: firing %s is %s, not scheduled", ErrInvalidTransition, firingID, target.Status)
	}

	updated, err := c.backend.UpdateFiring(ctx, studioID, firingID, FiringPatch{
		ExpectedStatus: model.FiringStatusScheduled,
		Status:         model.FiringStatusLoading,
		ActualStart:    &now,
	})
	if err != nil {
		return StartResult{}, storeError("update firing", err)
	}
	c.logger.Info("scheduled firing started",
		zap.String("studio", studioID),
		zap.Int64("kiln", kilnID),
		zap.String("firing", firingID))
	return StartResult{Firing: updated}, nil
}

func (c *Coordinator) quickStart(ctx context.Context, studioID string, kilnID int64, d Details, now time.Time) (StartResult, error) {
	if strings.TrimSpace(d.Name) == "" {
		d.Name = "Firing " + now.Format("2006-01-02 15:04")
	}
	f, err := c.newFiring(studioID, kilnID, d)
	if err != nil {
		return StartResult{}, err
	}
	f.Status = model.FiringStatusLoading
	f.ActualStart = &now

	created, err := c.backend.CreateFiring(ctx, studioID, f)
	if err != nil {
		return StartResult{}, storeError("create firing", err)
	}
	c.logger.Info("firing quick-started",
		zap.String("studio", studioID),
		zap.Int64("kiln", kilnID),
		zap.String("firing", created.ID))
	return StartResult{Firing: created, Created: true}, nil
}

// Progress moves a firing one step forward. current must match the stored
// status, so a repeated call cannot advance the firing twice.
func (c *Coordinator) Progress(ctx context.Context, studioID, firingID string, current model.FiringStatus) (*model.Firing, error) {
	f, err := c.findFiring(ctx, studioID, firingID)
	if err != nil {
		return nil, err
	}
	if f.Status != current {
		return nil, fmt.Errorf("%w: firing %s is %s, not %s", ErrInvalidTransition, firingID, f.Status, current)
	}
	next, err := Next(current)
	if err != nil {
		return nil, err
	}

	now := c.now()
	patch := FiringPatch{ExpectedStatus: current, Status: next}
	if next == model.FiringStatusCompleted {
		patch.ActualEnd = &now
		return c.complete(ctx, studioID, firingID, patch, now)
	}

	updated, err := c.backend.UpdateFiring(ctx, studioID, firingID, patch)
	if err != nil {
		return nil, storeError("update firing", err)
	}
	c.logProgress(studioID, firingID, current, next)
	return updated, nil
}

// complete records a completed firing and its kiln's counters, then notifies
// subscribers.
func (c *Coordinator) complete(ctx context.Context, studioID, firingID string, patch FiringPatch, now time.Time) (*model.Firing, error) {
	kilnPatch := KilnPatch{IncrementTotalFirings: true, LastFired: &now}

	var (
		updated *model.Firing
		kiln    *model.Kiln
		err     error
	)
	if completer, ok := c.backend.(Completer); ok {
		updated, kiln, err = completer.CompleteFiring(ctx, studioID, firingID, patch, kilnPatch)
		if err != nil {
			return nil, storeError("complete firing", err)
		}
		c.logProgress(studioID, firingID, patch.ExpectedStatus, patch.Status)
	} else {
		updated, err = c.backend.UpdateFiring(ctx, studioID, firingID, patch)
		if err != nil {
			return nil, storeError("update firing", err)
		}
		c.logProgress(studioID, firingID, patch.ExpectedStatus, patch.Status)

		kiln, err = c.backend.UpdateKiln(ctx, studioID, updated.KilnID, kilnPatch)
		if err != nil {
			c.logger.Error("failed to record completed firing on kiln",
				zap.String("firing", firingID),
				zap.Int64("kiln", updated.KilnID),
				zap.Error(err))
			return updated, storeError("update kiln", err)
		}
	}

	if c.notifier != nil {
		c.notifier.FiringCompleted(*kiln, *updated)
	}
	return updated, nil
}

func (c *Coordinator) logProgress(studioID, firingID string, from, to model.FiringStatus) {
	c.logger.Info("firing progressed",
		zap.String("studio", studioID),
		zap.String("firing", firingID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// Cancel cancels a firing that has not reached a terminal status.
func (c *Coordinator) Cancel(ctx context.Context, studioID, firingID string) (*model.Firing, error) {
	f, err := c.findFiring(ctx, studioID, firingID)
	if err != nil {
		return nil, err
	}
	if !CanCancel(f.Status) {
		return nil, fmt.Errorf("%w: firing %s is already %s", ErrInvalidTransition, firingID, f.Status)
	}

	now := c.now()
	updated, err := c.backend.UpdateFiring(ctx, studioID, firingID, FiringPatch{
		ExpectedStatus: f.Status,
		Status:         model.FiringStatusCancelled,
		ActualEnd:      &now,
	})
	if err != nil {
		return nil, storeError("update firing", err)
	}
	c.logger.Info("firing cancelled",
		zap.String("studio", studioID),
		zap.String("firing", firingID),
		zap.String("from", string(f.Status)))
	return updated, nil
}

func (c *Coordinator) newFiring(studioID string, kilnID int64, d Details) (*model.Firing, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if !d.Atmosphere.Valid() {
		return nil, fmt.Errorf("%w: unknown atmosphere %q", ErrInvalidRequest, d.Atmosphere)
	}
	cone, err := parse.Cone(d.TargetCone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return &model.Firing{
		ID:                uuid.New().String(),
		StudioID:          studioID,
		KilnID:            kilnID,
		Name:              name,
		TargetCone:        cone,
		TargetTemperature: d.TargetTemperature,
		Atmosphere:        d.Atmosphere,
		OperatorID:        d.OperatorID,
		Notes:             d.Notes,
		RackNumbers:       parse.RackLabels(strings.Join(d.RackNumbers, ",")),
		CameraURL:         d.CameraURL,
	}, nil
}

func (c *Coordinator) findKiln(ctx context.Context, studioID string, kilnID int64) (*model.Kiln, error) {
	kilns, err := c.backend.ListKilns(ctx, studioID)
	if err != nil {
		return nil, storeError("list kilns", err)
	}
	for i := range kilns {
		if kilns[i].ID == kilnID {
			return &kilns[i], nil
		}
	}
	return nil, fmt.Errorf("kiln %d: %w", kilnID, ErrNotFound)
}

func (c *Coordinator) findFiring(ctx context.Context, studioID, firingID string) (*model.Firing, error) {
	firings, err := c.backend.ListFirings(ctx, studioID)
	if err != nil {
		return nil, storeError("list firings", err)
	}
	for i := range firings {
		if firings[i].ID == firingID {
			return &firings[i], nil
		}
	}
	return nil, fmt.Errorf("firing %s: %w", firingID, ErrNotFound)
}

func onKiln(firings []model.Firing, kilnID int64) []model.Firing {
	out := make([]model.Firing, 0, len(firings))
	for _, f := range firings {
		if f.KilnID == kilnID {
			out = append(out, f)
		}
	}
	return out
}

func activeFiring(firings []model.Firing) (model.Firing, bool) {
	for _, f := range firings {
		if f.Status.Active() {
			return f, true
		}
	}
	return model.Firing{}, false
}
