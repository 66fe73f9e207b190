package firing

import (
	"context"
	"errors"
	"sync"

	"kilnworks-backend/internal/model"
)

// memBackend is an in-memory Backend that enforces the same rules the
// database does.
type memBackend struct {
	mu      sync.Mutex
	kilns   map[int64]*model.Kiln
	firings map[string]*model.Firing
	order   []string
	creates int

	// err, when set, is returned by every call.
	err error
}

func newMemBackend(kilns ...model.Kiln) *memBackend {
	b := &memBackend{
		kilns:   make(map[int64]*model.Kiln),
		firings: make(map[string]*model.Firing),
	}
	for i := range kilns {
		k := kilns[i]
		b.kilns[k.ID] = &k
	}
	return b
}

func (b *memBackend) add(f model.Firing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.firings[f.ID] = &f
	b.order = append(b.order, f.ID)
}

func (b *memBackend) get(id string) model.Firing {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.firings[id]
}

func (b *memBackend) ListKilns(ctx context.Context, studioID string) ([]model.Kiln, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var out []model.Kiln
	for _, k := range b.kilns {
		if k.StudioID == studioID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (b *memBackend) ListFirings(ctx context.Context, studioID string) ([]model.Firing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var out []model.Firing
	for _, id := range b.order {
		if f := b.firings[id]; f.StudioID == studioID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (b *memBackend) activeOn(kilnID int64) bool {
	for _, f := range b.firings {
		if f.KilnID == kilnID && f.Status.Active() {
			return true
		}
	}
	return false
}

func (b *memBackend) CreateFiring(ctx context.Context, studioID string, f *model.Firing) (*model.Firing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if f.Status.Active() && b.activeOn(f.KilnID) {
		return nil, ErrKilnBusy
	}
	b.creates++
	cp := *f
	b.firings[cp.ID] = &cp
	b.order = append(b.order, cp.ID)
	return &cp, nil
}

func (b *memBackend) UpdateFiring(ctx context.Context, studioID, firingID string, patch FiringPatch) (*model.Firing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	f, ok := b.firings[firingID]
	if !ok || f.StudioID != studioID {
		return nil, ErrNotFound
	}
	if f.Status != patch.ExpectedStatus {
		return nil, ErrInvalidTransition
	}
	if patch.Status.Active() && !f.Status.Active() && b.activeOn(f.KilnID) {
		return nil, ErrKilnBusy
	}
	f.Status = patch.Status
	if patch.ActualStart != nil {
		f.ActualStart = patch.ActualStart
	}
	if patch.ActualEnd != nil {
		f.ActualEnd = patch.ActualEnd
	}
	cp := *f
	return &cp, nil
}

func (b *memBackend) UpdateKiln(ctx context.Context, studioID string, kilnID int64, patch KilnPatch) (*model.Kiln, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	k, ok := b.kilns[kilnID]
	if !ok || k.StudioID != studioID {
		return nil, ErrNotFound
	}
	if patch.Capacity != nil {
		k.Capacity = *patch.Capacity
	}
	if patch.ShelfCount != nil {
		k.ShelfCount = *patch.ShelfCount
	}
	if patch.ShelfConfiguration != nil {
		k.ShelfConfiguration = patch.ShelfConfiguration
	}
	if patch.IncrementTotalFirings {
		k.TotalFirings++
	}
	if patch.LastFired != nil {
		k.LastFired = patch.LastFired
	}
	cp := *k
	return &cp, nil
}

// completingBackend adds an atomic CompleteFiring to memBackend. When
// kilnErr is set the kiln update fails and the firing is left untouched.
type completingBackend struct {
	*memBackend
	completions int
	kilnErr     error
}

func (b *completingBackend) CompleteFiring(ctx context.Context, studioID, firingID string, patch FiringPatch, kilnPatch KilnPatch) (*model.Firing, *model.Kiln, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completions++
	f, ok := b.firings[firingID]
	if !ok || f.StudioID != studioID {
		return nil, nil, ErrNotFound
	}
	if f.Status != patch.ExpectedStatus {
		return nil, nil, ErrInvalidTransition
	}
	k, ok := b.kilns[f.KilnID]
	if !ok || k.StudioID != studioID {
		return nil, nil, ErrNotFound
	}
	if b.kilnErr != nil {
		return nil, nil, b.kilnErr
	}

	f.Status = patch.Status
	if patch.ActualEnd != nil {
		f.ActualEnd = patch.ActualEnd
	}
	if kilnPatch.IncrementTotalFirings {
		k.TotalFirings++
	}
	if kilnPatch.LastFired != nil {
		k.LastFired = kilnPatch.LastFired
	}
	fc, kc := *f, *k
	return &fc, &kc, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Firing
}

func (n *recordingNotifier) FiringCompleted(kiln model.Kiln, f model.Firing) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, f)
}

var errUnavailable = errors.New("connection refused")
