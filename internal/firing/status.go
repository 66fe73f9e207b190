package firing

import (
	"fmt"

	"kilnworks-backend/internal/model"
)

// progression holds the single next status for every status that can be
// progressed. Scheduled firings are started, not progressed.
var progression = map[model.FiringStatus]model.FiringStatus{
	model.FiringStatusLoading: model.FiringStatusFiring,
	model.FiringStatusFiring:  model.FiringStatusCooling,
	model.FiringStatusCooling: model.FiringStatusCompleted,
}

// Next returns the status that follows current.
func Next(current model.FiringStatus) (model.FiringStatus, error) {
	next, ok := progression[current]
	if !ok {
		return "", fmt.Errorf("%w: cannot progress a firing that is %q", ErrInvalidTransition, current)
	}
	return next, nil
}

// CanCancel reports whether a firing in s may be cancelled.
func CanCancel(s model.FiringStatus) bool {
	return s == model.FiringStatusScheduled || s.Active()
}
