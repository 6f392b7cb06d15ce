package domain

import "errors"

var (
	// ErrNoMatch is returned when no candidate matches the target product
	ErrNoMatch = errors.New("no matching product on order")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUnknownWorkflow is returned for workflow names other than deviations, cancellations or claims
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrRunNotFound is returned when a run id is not in the store
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinished is returned when a finished run receives more updates
	ErrRunFinished = errors.New("run already finished")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when the store backend cannot be reached
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrSheetFailure is returned when the worksheet export cannot be fetched or parsed
	ErrSheetFailure = errors.New("sheet request failed")

	// ErrNotifyFailure is returned when a chat notification is rejected
	ErrNotifyFailure = errors.New("chat notification failed")
)
