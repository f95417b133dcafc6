package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
)

// LoopbackConfig configures the in-process gateway driver.
type LoopbackConfig struct {
	// Latency is an artificial delay applied before completion events,
	// approximating native round-trip time. Zero means immediate.
	Latency time.Duration

	// GrantedPermissions lists permissions CheckPermission reports as
	// already granted.
	GrantedPermissions []string

	// DeniedPermissions lists permissions RequestPermission refuses.
	// Anything not listed is granted on request.
	DeniedPermissions []string
}

// Loopback is an in-process gateway driver that simulates the native
// scheduler and radio: started interval tasks emit trigger events on their
// configured cadence, connections emit connected/disconnected events, and
// permission prompts resolve from config. Used by tests and development
// setups with no native side attached.
//
// All methods are safe for concurrent use.
type Loopback struct {
	cfg    LoopbackConfig
	logger Logger

	mu      sync.Mutex
	sink    func(bridge.Event)
	tickers map[string]chan struct{} // per-entity ticker stop signals
	granted map[string]bool
	closed  bool
	wg      sync.WaitGroup
}

// NewLoopback creates a loopback gateway driver.
func NewLoopback(cfg LoopbackConfig) *Loopback {
	granted := make(map[string]bool, len(cfg.GrantedPermissions))
	for _, p := range cfg.GrantedPermissions {
		granted[p] = true
	}
	return &Loopback{
		cfg:     cfg,
		logger:  noopLogger{},
		tickers: make(map[string]chan struct{}),
		granted: granted,
	}
}

// SetLogger sets the logger for the driver.
func (l *Loopback) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Subscribe stores the bridge's ingress function as the event sink.
func (l *Loopback) Subscribe(sink func(bridge.Event)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrUnavailable
	}
	l.sink = sink
	return nil
}

// Unsubscribe drops the event sink. Events raised afterwards are discarded.
func (l *Loopback) Unsubscribe() {
	l.mu.Lock()
	l.sink = nil
	l.mu.Unlock()
}

// Start begins simulated execution: an immediate started event, then
// trigger events on the task's interval cadence while it stays running.
func (l *Loopback) Start(_ context.Context, e *entity.Entity) error {
	if e == nil || e.Config.Task == nil {
		return fmt.Errorf("%w: not a task entity", ErrOperationFailed)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrUnavailable
	}
	if _, running := l.tickers[e.ID]; running {
		l.mu.Unlock()
		return nil // native side treats a re-start as a no-op
	}
	stop := make(chan struct{})
	l.tickers[e.ID] = stop
	l.mu.Unlock()

	l.emit(bridge.Event{EntityID: e.ID, Type: entity.EventStarted})

	if e.HasTrigger(entity.TriggerInterval) && e.Config.Task.IntervalMS > 0 {
		interval := time.Duration(e.Config.Task.IntervalMS) * time.Millisecond
		l.wg.Add(1)
		go l.runTicker(e.ID, interval, stop)
	}
	return nil
}

func (l *Loopback) runTicker(id string, interval time.Duration, stop chan struct{}) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			l.emit(bridge.Event{
				EntityID: id,
				Type:     entity.EventTrigger,
				Data:     map[string]any{"fired_at": t.UTC().Format(time.RFC3339Nano)},
			})
		}
	}
}

// Stop ends simulated execution and emits a stopped event.
func (l *Loopback) Stop(_ context.Context, e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", ErrOperationFailed)
	}
	l.stopTicker(e.ID)
	l.emit(bridge.Event{EntityID: e.ID, Type: entity.EventStopped})
	return nil
}

// Connect emits a connected event (with simulated service discovery data
// for BLE) after the configured latency.
func (l *Loopback) Connect(ctx context.Context, e *entity.Entity) error {
	if e == nil || e.Config.Connection == nil {
		return fmt.Errorf("%w: not a connection entity", ErrOperationFailed)
	}
	if err := l.sleep(ctx); err != nil {
		return err
	}

	data := map[string]any{"peripheral": e.Config.Connection.Peripheral}
	if e.Mode == entity.ModeBLE {
		if e.Config.Connection.MTU > 0 {
			data["mtu"] = e.Config.Connection.MTU
		}
		data["services"] = []string{"180a", "180f"} // device info, battery
	}
	l.emit(bridge.Event{EntityID: e.ID, Type: entity.EventConnected, Data: data})
	return nil
}

// Disconnect emits a disconnected event.
func (l *Loopback) Disconnect(_ context.Context, e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", ErrOperationFailed)
	}
	l.stopTicker(e.ID)
	l.emit(bridge.Event{EntityID: e.ID, Type: entity.EventDisconnected})
	return nil
}

// UpdateNotification is accepted silently; the simulator renders nothing.
func (l *Loopback) UpdateNotification(_ context.Context, e *entity.Entity) error {
	if e == nil || e.Config.Task == nil {
		return fmt.Errorf("%w: not a task entity", ErrOperationFailed)
	}
	return nil
}

// StopAll stops every simulated task and connection.
func (l *Loopback) StopAll(_ context.Context) error {
	l.mu.Lock()
	ids := make([]string, 0, len(l.tickers))
	for id, stop := range l.tickers {
		close(stop)
		ids = append(ids, id)
	}
	l.tickers = make(map[string]chan struct{})
	l.mu.Unlock()

	for _, id := range ids {
		l.emit(bridge.Event{EntityID: id, Type: entity.EventStopped})
	}
	return nil
}

// Available always reports true while the driver is open.
func (l *Loopback) Available(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed, nil
}

// CheckPermission consults the configured grant set.
func (l *Loopback) CheckPermission(_ context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.granted[name], nil
}

// RequestPermission grants unless the permission is configured as denied.
func (l *Loopback) RequestPermission(_ context.Context, name string) (bool, error) {
	for _, d := range l.cfg.DeniedPermissions {
		if d == name {
			return false, nil
		}
	}
	l.mu.Lock()
	l.granted[name] = true
	l.mu.Unlock()
	return true, nil
}

// Close stops all simulated activity and releases the driver.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.sink = nil
	for _, stop := range l.tickers {
		close(stop)
	}
	l.tickers = make(map[string]chan struct{})
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *Loopback) stopTicker(id string) {
	l.mu.Lock()
	if stop, ok := l.tickers[id]; ok {
		close(stop)
		delete(l.tickers, id)
	}
	l.mu.Unlock()
}

func (l *Loopback) emit(ev bridge.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (l *Loopback) sleep(ctx context.Context) error {
	if l.cfg.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(l.cfg.Latency):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}
