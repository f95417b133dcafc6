package gateway

import (
	"context"
	"errors"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
)

// Domain errors for gateway implementations.
var (
	// ErrUnavailable is returned when the underlying native subsystem is
	// off, unsupported or unreachable.
	ErrUnavailable = errors.New("gateway: capability unavailable")

	// ErrOperationFailed is returned when the native call itself failed.
	ErrOperationFailed = errors.New("gateway: operation failed")

	// ErrTimeout is returned when a native request/response round-trip
	// did not complete in time.
	ErrTimeout = errors.New("gateway: timeout")

	// ErrUnknownDriver is returned when config names a driver that does
	// not exist.
	ErrUnknownDriver = errors.New("gateway: unknown driver")
)

// Gateway is the narrow contract the core requires from the native
// scheduling/radio capability. Implementations perform the real I/O and
// report completions and spontaneous events back through the single event
// sink handed over at Subscribe time; the core never polls.
//
// The gateway owns no durable entity state: every call carries the full
// entity it concerns.
type Gateway interface {
	bridge.Source

	// Start begins native execution of a background task.
	Start(ctx context.Context, e *entity.Entity) error

	// Stop ends native execution of a background task.
	Stop(ctx context.Context, e *entity.Entity) error

	// Connect establishes a device connection.
	Connect(ctx context.Context, e *entity.Entity) error

	// Disconnect tears down a device connection.
	Disconnect(ctx context.Context, e *entity.Entity) error

	// StopAll stops every native task and drops every connection.
	// Best-effort; implementations sweep past per-entity failures.
	StopAll(ctx context.Context) error

	// UpdateNotification replaces the notification content of a running
	// persistent task.
	UpdateNotification(ctx context.Context, e *entity.Entity) error

	// Available reports whether the native subsystem is usable.
	Available(ctx context.Context) (bool, error)

	// CheckPermission reports whether the named permission is granted.
	CheckPermission(ctx context.Context, name string) (bool, error)

	// RequestPermission prompts for the named permission and reports the
	// outcome.
	RequestPermission(ctx context.Context, name string) (bool, error)

	// Close releases gateway resources. Subscribe must not be called
	// after Close.
	Close() error
}

// Logger defines the logging interface used by gateway implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }
