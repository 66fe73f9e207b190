package upstream

import "kilnworks-backend/internal/model"

// ApiResponse models the envelope every upstream endpoint responds with.
type ApiResponse[T any] struct {
	Data  T         `json:"data"`
	Error *ApiError `json:"error,omitempty"`
}

// ApiError is the error body of a non-2xx upstream response.
type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes the upstream uses to report lifecycle conflicts.
const (
	CodeKilnBusy          = "kiln_busy"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
)

type kilnList = ApiResponse[[]model.Kiln]
type firingList = ApiResponse[[]model.Firing]
type firingItem = ApiResponse[model.Firing]
type kilnItem = ApiResponse[model.Kiln]
