package session

import (
	"errors"

	"github.com/hostbridge/hostbridge-core/internal/entity"
	"github.com/hostbridge/hostbridge-core/internal/gateway"
)

// ErrorKind is the stable, machine-readable failure category carried in
// a Result. Every command failure maps to exactly one kind.
type ErrorKind string

const (
	ErrNotFound              ErrorKind = "NOT_FOUND"
	ErrAlreadyExists         ErrorKind = "ALREADY_EXISTS"
	ErrAlreadyRunning        ErrorKind = "ALREADY_RUNNING"
	ErrAlreadyConnected      ErrorKind = "ALREADY_CONNECTED"
	ErrInvalidInput          ErrorKind = "INVALID_INPUT"
	ErrCapabilityUnavailable ErrorKind = "CAPABILITY_UNAVAILABLE"
	ErrOperationFailed       ErrorKind = "OPERATION_FAILED"
	ErrUnknown               ErrorKind = "UNKNOWN"
)

// Result is the uniform command outcome returned to every caller.
// Failures carry a kind for programmatic handling and a human-readable
// message; Data carries command-specific payloads on success.
type Result struct {
	Success bool           `json:"success"`
	Error   ErrorKind      `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func ok(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

func okMsg(msg string) Result {
	return Result{Success: true, Message: msg}
}

func fail(kind ErrorKind, msg string) Result {
	return Result{Success: false, Error: kind, Message: msg}
}

// classify maps an underlying error to its result kind. Validation
// errors are INVALID_INPUT; gateway errors keep their category; anything
// unrecognised is OPERATION_FAILED.
func classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, entity.ErrInvalidEntity),
		errors.Is(err, entity.ErrInvalidID),
		errors.Is(err, entity.ErrInvalidKind),
		errors.Is(err, entity.ErrInvalidMode),
		errors.Is(err, entity.ErrInvalidTrigger),
		errors.Is(err, entity.ErrInvalidPriority),
		errors.Is(err, entity.ErrInvalidNotification),
		errors.Is(err, entity.ErrInvalidInterval),
		errors.Is(err, entity.ErrInvalidConnection),
		errors.Is(err, entity.ErrInvalidMTU):
		return ErrInvalidInput
	case errors.Is(err, gateway.ErrUnavailable):
		return ErrCapabilityUnavailable
	case errors.Is(err, gateway.ErrTimeout),
		errors.Is(err, gateway.ErrOperationFailed):
		return ErrOperationFailed
	default:
		return ErrOperationFailed
	}
}

func failErr(err error) Result {
	return fail(classify(err), err.Error())
}
