package bridge

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hostbridge/hostbridge-core/internal/entity"
)

// Event is the single outbound event shape carried to the observer and to
// per-entity callbacks. The bridge enriches incoming native events with the
// registered correlation tag before any delivery, so every consumer sees
// the identical enriched value.
type Event struct {
	EntityID       string           `json:"entity_id"`
	Type           entity.EventType `json:"type"`
	CorrelationTag string           `json:"correlation_tag,omitempty"`

	// ActionID is the sub-identifier for action events (for example a
	// notification action button). Empty for every other event type.
	ActionID string `json:"action_id,omitempty"`

	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Callback is a per-entity function invoked asynchronously for each event.
// A callback's panic or error is captured and reported to the diagnostic
// recorder; it never blocks or aborts delivery to anyone else.
type Callback func(Event) error

// Observer is the host-facing sink that receives every well-formed event.
// The websocket hub implements this in production.
type Observer interface {
	Forward(Event)
}

// Source is the single upstream native event source. The gateway implements
// this; Subscribe hands it the bridge's ingress function (explicit wiring,
// no process-wide singleton lookup).
type Source interface {
	Subscribe(sink func(Event)) error
	Unsubscribe()
}

// Recorder is the diagnostic sink for delivered events, dropped events and
// callback failures. The journal implements this; a noop is used when
// journalling is disabled.
type Recorder interface {
	RecordEvent(ev Event)
	RecordDrop(reason string, ev Event)
	RecordCallbackFailure(entityID string, err error)
}

// Metrics receives telemetry derived from delivered events. The influx
// client implements this; when no metrics backend is configured the field
// stays nil and no telemetry is emitted.
type Metrics interface {
	WriteEventMetric(entityID, eventType string)
	WriteTriggerLatency(entityID string, latency time.Duration)
	WriteConnectionMetric(entityID string, rssi, mtu int)
}

// Logger defines the logging interface used by the Bridge.
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

// NoopRecorder discards all diagnostics.
type NoopRecorder struct{}

func (NoopRecorder) RecordEvent(Event)                 {}
func (NoopRecorder) RecordDrop(string, Event)          {}
func (NoopRecorder) RecordCallbackFailure(string, error) {}

// Bridge fans the single native event channel out to per-entity callbacks,
// action callbacks and the external observer, enriching each event with the
// entity's correlation tag on the way through.
//
// The upstream subscription is a singleton per session: EnsureSubscribed is
// idempotent and Teardown re-arms it, so the whole subsystem can be
// initialised again in the same process.
//
// All methods are safe for concurrent use.
type Bridge struct {
	source   Source
	observer Observer
	registry *entity.Registry

	mu         sync.Mutex
	subscribed bool
	callbacks  map[string]Callback
	actions    map[string]Callback // keyed entityID + "\x00" + actionID

	recorder Recorder
	metrics  Metrics
	logger   Logger
}

// New creates a bridge wired to its collaborators. The source and observer
// are passed at construction rather than resolved through any global state,
// so the bridge is instantiable multiple times for testing.
func New(source Source, observer Observer, registry *entity.Registry) *Bridge {
	return &Bridge{
		source:    source,
		observer:  observer,
		registry:  registry,
		callbacks: make(map[string]Callback),
		actions:   make(map[string]Callback),
		recorder:  NoopRecorder{},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// SetRecorder sets the diagnostic recorder for the bridge.
func (b *Bridge) SetRecorder(r Recorder) {
	if r != nil {
		b.recorder = r
	}
}

// SetMetrics sets the telemetry sink for delivered events.
func (b *Bridge) SetMetrics(m Metrics) {
	b.metrics = m
}

// EnsureSubscribed subscribes to the upstream source at most once per
// session. Calling it repeatedly while already subscribed is a no-op.
func (b *Bridge) EnsureSubscribed() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribed {
		return nil
	}
	if err := b.source.Subscribe(b.Ingress); err != nil {
		return fmt.Errorf("subscribing to event source: %w", err)
	}
	b.subscribed = true
	b.logger.Debug("bridge subscribed to event source")
	return nil
}

// Subscribed reports whether the upstream subscription is currently held.
func (b *Bridge) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed
}

// SetCallback stores the per-entity callback for an entity id, replacing
// any previous one. Callback state exists only while the entity is
// registered; Forget removes it atomically with unregistration.
func (b *Bridge) SetCallback(entityID string, cb Callback) {
	b.mu.Lock()
	if cb == nil {
		delete(b.callbacks, entityID)
	} else {
		b.callbacks[entityID] = cb
	}
	b.mu.Unlock()
}

// SetActionCallback stores a narrower callback for a specific action
// sub-identifier of an entity.
func (b *Bridge) SetActionCallback(entityID, actionID string, cb Callback) {
	key := actionKey(entityID, actionID)
	b.mu.Lock()
	if cb == nil {
		delete(b.actions, key)
	} else {
		b.actions[key] = cb
	}
	b.mu.Unlock()
}

// Forget removes the per-entity callback and every action callback for the
// entity. Called on unregistration, including failure cleanup.
func (b *Bridge) Forget(entityID string) {
	prefix := entityID + "\x00"
	b.mu.Lock()
	delete(b.callbacks, entityID)
	for key := range b.actions {
		if strings.HasPrefix(key, prefix) {
			delete(b.actions, key)
		}
	}
	b.mu.Unlock()
}

// Ingress is the single entry point for native events. For every event it:
//
//  1. Validates the entity id and event type; malformed events are
//     recorded and dropped, never forwarded.
//  2. Enriches the event with the entity's stored correlation tag.
//  3. Resolves the action callback first when the event is an action with
//     a sub-identifier.
//  4. Forwards the enriched event to the observer unconditionally.
//  5. Invokes the stored per-entity callback asynchronously.
//
// Callback execution is fire-and-forget with isolated failure capture:
// event N+1 never waits on entity N's callback, and a callback panic or
// error never prevents observer delivery.
func (b *Bridge) Ingress(ev Event) {
	ev.EntityID = strings.TrimSpace(ev.EntityID)
	if ev.EntityID == "" {
		b.logger.Warn("dropping native event without entity id", "type", ev.Type)
		b.recorder.RecordDrop("missing entity id", ev)
		return
	}
	if !entity.ValidateEventType(ev.Type) {
		b.logger.Warn("dropping native event with unknown type", "entity_id", ev.EntityID, "type", ev.Type)
		b.recorder.RecordDrop("unknown event type", ev)
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	// Enrich with the registered correlation tag. Events for ids the
	// registry does not know (scan results, late native noise) pass
	// through untagged.
	if e, ok := b.registry.Get(ev.EntityID); ok {
		ev.CorrelationTag = e.CallbackID
	}

	// Resolve both callbacks under the lock, invoke outside it.
	var actionCB, entityCB Callback
	b.mu.Lock()
	if ev.Type == entity.EventAction && ev.ActionID != "" {
		actionCB = b.actions[actionKey(ev.EntityID, ev.ActionID)]
	}
	entityCB = b.callbacks[ev.EntityID]
	b.mu.Unlock()

	if actionCB != nil {
		go b.invoke(ev.EntityID, actionCB, ev)
	}

	b.forward(ev)

	if entityCB != nil {
		go b.invoke(ev.EntityID, entityCB, ev)
	}

	b.recorder.RecordEvent(ev)
	b.observeMetrics(ev)
}

// observeMetrics emits telemetry for a delivered event. Trigger events
// carry their ingress-to-delivery latency; connection events carry the link
// parameters reported by the native side.
func (b *Bridge) observeMetrics(ev Event) {
	if b.metrics == nil {
		return
	}

	b.metrics.WriteEventMetric(ev.EntityID, string(ev.Type))

	switch ev.Type {
	case entity.EventTrigger:
		if latency := time.Since(ev.Timestamp); latency > 0 {
			b.metrics.WriteTriggerLatency(ev.EntityID, latency)
		}
	case entity.EventConnected:
		rssi, _ := intField(ev.Data, "rssi")
		mtu, _ := intField(ev.Data, "mtu")
		b.metrics.WriteConnectionMetric(ev.EntityID, rssi, mtu)
	}
}

// intField reads a numeric event data field. Native payloads decoded from
// JSON carry numbers as float64; in-process sources use int.
func intField(data map[string]any, key string) (int, bool) {
	switch v := data[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// forward delivers to the observer, capturing any panic so a failing
// observer is never propagated as a fault to the native source.
func (b *Bridge) forward(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "entity_id", ev.EntityID, "panic", r)
		}
	}()
	b.observer.Forward(ev)
}

// invoke runs one callback with isolated failure capture.
func (b *Bridge) invoke(entityID string, cb Callback, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("callback panic: %v", r)
			b.logger.Error("entity callback panicked", "entity_id", entityID, "panic", r)
			b.recorder.RecordCallbackFailure(entityID, err)
		}
	}()
	if err := cb(ev); err != nil {
		b.logger.Error("entity callback failed", "entity_id", entityID, "error", err)
		b.recorder.RecordCallbackFailure(entityID, err)
	}
}

// Teardown unsubscribes from the native event source, clears every stored
// callback and correlation mapping, and resets the idempotency guard so
// EnsureSubscribed can run again later.
func (b *Bridge) Teardown() {
	b.mu.Lock()
	if b.subscribed {
		b.source.Unsubscribe()
		b.subscribed = false
	}
	b.callbacks = make(map[string]Callback)
	b.actions = make(map[string]Callback)
	b.mu.Unlock()

	b.logger.Debug("bridge torn down")
}

func actionKey(entityID, actionID string) string {
	return entityID + "\x00" + actionID
}
