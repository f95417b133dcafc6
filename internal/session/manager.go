package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
	"github.com/hostbridge/hostbridge-core/internal/gateway"
)

// lockShards is the number of keyed command locks. Commands against the
// same entity id serialize; distinct ids almost always proceed in
// parallel.
const lockShards = 64

// Logger defines the logging interface used by the manager.
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

// Metrics receives per-command telemetry. The tsdb client satisfies
// this; commands run identically without one.
type Metrics interface {
	WriteCommandMetric(command string, success bool, duration time.Duration)
}

// Manager is the command boundary of the service. Every mutation of the
// registry, the bridge callback table or the native side goes through
// it; it owns error classification, per-entity serialization and the
// uniform Result shape.
type Manager struct {
	registry *entity.Registry
	bridge   *bridge.Bridge
	gw       gateway.Gateway
	logger   Logger
	metrics  Metrics

	locks [lockShards]sync.Mutex
}

// NewManager creates a manager over its collaborators.
func NewManager(registry *entity.Registry, b *bridge.Bridge, gw gateway.Gateway) *Manager {
	return &Manager{
		registry: registry,
		bridge:   b,
		gw:       gw,
		logger:   noopLogger{},
	}
}

// SetLogger sets the manager's logger.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetMetrics sets the command telemetry sink.
func (m *Manager) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id)) //nolint:errcheck // fnv never errors
	return &m.locks[h.Sum32()%lockShards]
}

// run executes one command body with the keyed lock held, converting
// any panic into an UNKNOWN failure so no caller ever sees a crash.
func (m *Manager) run(command, id string, fn func() Result) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("command panicked", "command", command, "entity_id", id, "panic", r)
			res = fail(ErrUnknown, fmt.Sprintf("internal error in %s", command))
		}
		if m.metrics != nil {
			m.metrics.WriteCommandMetric(command, res.Success, time.Since(start))
		}
	}()

	if id != "" {
		lock := m.lockFor(id)
		lock.Lock()
		defer lock.Unlock()
	}
	return fn()
}

// Register validates and registers a new entity. The first registration
// also arms the bridge's single native event subscription.
func (m *Manager) Register(_ context.Context, e *entity.Entity) Result {
	if e == nil {
		return fail(ErrInvalidInput, "entity required")
	}
	entity.Normalize(e)

	return m.run("register", e.ID, func() Result {
		if err := entity.Validate(e); err != nil {
			return failErr(err)
		}
		if err := m.bridge.EnsureSubscribed(); err != nil {
			return fail(ErrCapabilityUnavailable, fmt.Sprintf("native event subscription failed: %v", err))
		}
		if !m.registry.Register(e) {
			return fail(ErrAlreadyExists, fmt.Sprintf("entity %q already registered", e.ID))
		}
		m.logger.Info("entity registered", "id", e.ID, "kind", e.Kind, "mode", e.Mode)
		return ok(map[string]any{"id": e.ID})
	})
}

// Unregister stops the entity if needed, removes its callbacks and
// deletes it from the registry.
func (m *Manager) Unregister(ctx context.Context, id string) Result {
	return m.run("unregister", id, func() Result {
		e, found := m.registry.Get(id)
		if !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}

		if e.IsRunning {
			if err := m.haltNative(ctx, e); err != nil {
				m.logger.Warn("stop during unregister failed", "id", id, "error", err)
			}
		}

		m.bridge.Forget(id)
		m.registry.Unregister(id)
		m.logger.Info("entity unregistered", "id", id)
		return okMsg(fmt.Sprintf("entity %q unregistered", id))
	})
}

// SetCallback binds a per-entity event callback and its correlation tag.
func (m *Manager) SetCallback(id, callbackID string, cb bridge.Callback) Result {
	return m.run("set_callback", id, func() Result {
		if !m.registry.SetCallbackID(id, callbackID) {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if cb != nil {
			m.bridge.SetCallback(id, cb)
		}
		return okMsg("callback bound")
	})
}

// SetActionCallback binds a callback for one notification action of an
// entity.
func (m *Manager) SetActionCallback(id, actionID string, cb bridge.Callback) Result {
	return m.run("set_action_callback", id, func() Result {
		if _, found := m.registry.Get(id); !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if actionID == "" || cb == nil {
			return fail(ErrInvalidInput, "action id and callback required")
		}
		m.bridge.SetActionCallback(id, actionID, cb)
		return okMsg("action callback bound")
	})
}

// Start begins native execution of a registered task.
func (m *Manager) Start(ctx context.Context, id string) Result {
	return m.run("start", id, func() Result {
		e, found := m.registry.Get(id)
		if !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if e.Kind != entity.KindTask {
			return fail(ErrInvalidInput, fmt.Sprintf("entity %q is not a task", id))
		}
		if e.IsRunning {
			return fail(ErrAlreadyRunning, fmt.Sprintf("task %q is already running", id))
		}

		if err := m.gw.Start(ctx, e); err != nil {
			return failErr(err)
		}
		m.registry.SetRunning(id, true)
		m.logger.Info("task started", "id", id)
		return m.statusResult(id)
	})
}

// Stop ends native execution of a task. Stopping a task that is not
// running succeeds, so retries after partial failures converge.
func (m *Manager) Stop(ctx context.Context, id string) Result {
	return m.run("stop", id, func() Result {
		e, found := m.registry.Get(id)
		if !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if e.Kind != entity.KindTask {
			return fail(ErrInvalidInput, fmt.Sprintf("entity %q is not a task", id))
		}
		if !e.IsRunning {
			return okMsg(fmt.Sprintf("task %q already stopped", id))
		}

		if err := m.gw.Stop(ctx, e); err != nil {
			return failErr(err)
		}
		m.registry.SetRunning(id, false)
		m.logger.Info("task stopped", "id", id)
		return okMsg(fmt.Sprintf("task %q stopped", id))
	})
}

// Connect establishes a device connection. A configured connect timeout
// bounds the attempt; on expiry the attempt routes through the
// disconnect path so the native side is never left half-open.
func (m *Manager) Connect(ctx context.Context, id string) Result {
	return m.run("connect", id, func() Result {
		e, found := m.registry.Get(id)
		if !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if e.Kind != entity.KindConnection {
			return fail(ErrInvalidInput, fmt.Sprintf("entity %q is not a connection", id))
		}
		if e.IsRunning {
			return fail(ErrAlreadyConnected, fmt.Sprintf("connection %q is already established", id))
		}

		connectCtx := ctx
		if e.Config.Connection.ConnectTimeoutMS > 0 {
			var cancel context.CancelFunc
			timeout := time.Duration(e.Config.Connection.ConnectTimeoutMS) * time.Millisecond
			connectCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := m.gw.Connect(connectCtx, e); err != nil {
			// Route the failed attempt through the disconnect path so a
			// partially-formed native connection is torn down.
			if derr := m.gw.Disconnect(context.WithoutCancel(ctx), e); derr != nil {
				m.logger.Warn("teardown after failed connect failed", "id", id, "error", derr)
			}
			return failErr(err)
		}
		m.registry.SetRunning(id, true)
		m.logger.Info("connection established", "id", id)
		return m.statusResult(id)
	})
}

// Disconnect tears down a device connection. Disconnecting an already
// disconnected entity succeeds.
func (m *Manager) Disconnect(ctx context.Context, id string) Result {
	return m.run("disconnect", id, func() Result {
		e, found := m.registry.Get(id)
		if !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if e.Kind != entity.KindConnection {
			return fail(ErrInvalidInput, fmt.Sprintf("entity %q is not a connection", id))
		}
		if !e.IsRunning {
			return okMsg(fmt.Sprintf("connection %q already disconnected", id))
		}

		if err := m.gw.Disconnect(ctx, e); err != nil {
			return failErr(err)
		}
		m.registry.SetRunning(id, false)
		m.logger.Info("connection closed", "id", id)
		return okMsg(fmt.Sprintf("connection %q disconnected", id))
	})
}

// StopAll stops every running task and connection. Best-effort: the
// native sweep runs even if individual entities already stopped.
func (m *Manager) StopAll(ctx context.Context) Result {
	return m.run("stop_all", "", func() Result {
		if err := m.gw.StopAll(ctx); err != nil {
			return failErr(err)
		}

		stopped := 0
		for _, e := range m.registry.List() {
			if e.IsRunning && m.registry.SetRunning(e.ID, false) {
				stopped++
			}
		}
		m.logger.Info("all entities stopped", "count", stopped)
		return ok(map[string]any{"stopped": stopped})
	})
}

// UpdateNotification replaces the notification content of a registered
// persistent task, pushing it to the native side when running.
func (m *Manager) UpdateNotification(ctx context.Context, id string, n *entity.NotificationSpec) Result {
	return m.run("update_notification", id, func() Result {
		e, found := m.registry.Get(id)
		if !found {
			return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
		}
		if e.Config.Task == nil {
			return fail(ErrInvalidInput, fmt.Sprintf("entity %q is not a task", id))
		}
		if n == nil {
			return fail(ErrInvalidInput, "notification required")
		}

		// Validate the replacement against the full entity rules before
		// touching the registry.
		candidate := e.DeepCopy()
		candidate.Config.Task.Notification = n
		entity.Normalize(candidate)
		if err := entity.Validate(candidate); err != nil {
			return failErr(err)
		}

		m.registry.UpdateNotification(id, candidate.Config.Task.Notification)

		if e.IsRunning {
			if err := m.gw.UpdateNotification(ctx, candidate); err != nil {
				return failErr(err)
			}
		}
		return okMsg("notification updated")
	})
}

// GetStatus returns the current state of one entity.
func (m *Manager) GetStatus(id string) Result {
	return m.run("get_status", id, func() Result {
		return m.statusResult(id)
	})
}

// GetAllStatuses returns the state of every registered entity.
func (m *Manager) GetAllStatuses() Result {
	return m.run("get_all_statuses", "", func() Result {
		list := m.registry.List()
		statuses := make([]map[string]any, 0, len(list))
		for i := range list {
			statuses = append(statuses, entityStatus(&list[i]))
		}
		return ok(map[string]any{"entities": statuses, "count": len(statuses)})
	})
}

// CheckPermission reports the grant state of a native permission.
func (m *Manager) CheckPermission(ctx context.Context, name string) Result {
	return m.run("check_permission", "", func() Result {
		if name == "" {
			return fail(ErrInvalidInput, "permission name required")
		}
		granted, err := m.gw.CheckPermission(ctx, name)
		if err != nil {
			return failErr(err)
		}
		return ok(map[string]any{"permission": name, "granted": granted})
	})
}

// RequestPermission prompts for a native permission grant.
func (m *Manager) RequestPermission(ctx context.Context, name string) Result {
	return m.run("request_permission", "", func() Result {
		if name == "" {
			return fail(ErrInvalidInput, "permission name required")
		}
		granted, err := m.gw.RequestPermission(ctx, name)
		if err != nil {
			return failErr(err)
		}
		return ok(map[string]any{"permission": name, "granted": granted})
	})
}

// HasRunning reports whether any registered entity is still executing.
// The hosting context consults this before tearing down.
func (m *Manager) HasRunning() bool {
	return m.registry.HasRunning()
}

// Dispose stops everything, tears down the bridge and empties the
// registry. Best-effort throughout: a failing entity never blocks the
// rest of the sweep. The manager remains usable for re-registration
// afterwards.
func (m *Manager) Dispose(ctx context.Context) Result {
	return m.run("dispose", "", func() Result {
		stopped := 0
		for _, e := range m.registry.List() {
			if !e.IsRunning {
				continue
			}
			ent := e
			if err := m.haltNative(ctx, &ent); err != nil {
				m.logger.Warn("stop during dispose failed", "id", e.ID, "error", err)
			}
			stopped++
		}

		if err := m.gw.StopAll(ctx); err != nil {
			m.logger.Warn("native stop-all during dispose failed", "error", err)
		}

		m.bridge.Teardown()
		count := m.registry.Count()
		m.registry.Clear()

		m.logger.Info("session disposed", "entities", count, "stopped", stopped)
		return ok(map[string]any{"unregistered": count, "stopped": stopped})
	})
}

// haltNative stops or disconnects an entity by kind.
func (m *Manager) haltNative(ctx context.Context, e *entity.Entity) error {
	if e.Kind == entity.KindConnection {
		return m.gw.Disconnect(ctx, e)
	}
	return m.gw.Stop(ctx, e)
}

func (m *Manager) statusResult(id string) Result {
	e, found := m.registry.Get(id)
	if !found {
		return fail(ErrNotFound, fmt.Sprintf("entity %q not registered", id))
	}
	return ok(entityStatus(e))
}

func entityStatus(e *entity.Entity) map[string]any {
	status := map[string]any{
		"id":         e.ID,
		"kind":       string(e.Kind),
		"mode":       string(e.Mode),
		"is_running": e.IsRunning,
		"created_at": e.CreatedAt,
	}
	if e.CallbackID != "" {
		status["callback_id"] = e.CallbackID
	}
	if e.StartedAt != nil {
		status["started_at"] = *e.StartedAt
	}
	return status
}
