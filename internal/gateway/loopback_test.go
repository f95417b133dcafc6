package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
)

// eventCollector gathers emitted events for assertions.
type eventCollector struct {
	mu     sync.Mutex
	events []bridge.Event
}

func (c *eventCollector) sink(ev bridge.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *eventCollector) snapshot() []bridge.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bridge.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *eventCollector) countType(typ entity.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func waitForCount(t *testing.T, f func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", want, f())
}

func intervalTask(id string, intervalMS int) *entity.Entity {
	return &entity.Entity{
		ID:   id,
		Kind: entity.KindTask,
		Mode: entity.ModeEfficient,
		Config: entity.Config{
			Task: &entity.TaskConfig{
				Triggers:   []entity.TriggerType{entity.TriggerInterval},
				IntervalMS: intervalMS,
			},
		},
	}
}

func bleConnection(id string) *entity.Entity {
	return &entity.Entity{
		ID:   id,
		Kind: entity.KindConnection,
		Mode: entity.ModeBLE,
		Config: entity.Config{
			Connection: &entity.ConnectionConfig{
				Peripheral: "AA:BB:CC:DD:EE:FF",
				MTU:        185,
			},
		},
	}
}

func TestLoopbackStartEmitsStartedAndTriggers(t *testing.T) {
	l := NewLoopback(LoopbackConfig{})
	defer l.Close() //nolint:errcheck

	var c eventCollector
	if err := l.Subscribe(c.sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	task := intervalTask("task-poll", 20)
	if err := l.Start(context.Background(), task); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if c.countType(entity.EventStarted) != 1 {
		t.Fatalf("started count = %d, want 1", c.countType(entity.EventStarted))
	}

	waitForCount(t, func() int { return c.countType(entity.EventTrigger) }, 2)

	if err := l.Stop(context.Background(), task); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if c.countType(entity.EventStopped) != 1 {
		t.Errorf("stopped count = %d, want 1", c.countType(entity.EventStopped))
	}

	// No more triggers after stop.
	n := c.countType(entity.EventTrigger)
	time.Sleep(60 * time.Millisecond)
	if got := c.countType(entity.EventTrigger); got != n {
		t.Errorf("trigger count grew after stop: %d -> %d", n, got)
	}
}

func TestLoopbackStartIdempotent(t *testing.T) {
	l := NewLoopback(LoopbackConfig{})
	defer l.Close() //nolint:errcheck

	var c eventCollector
	if err := l.Subscribe(c.sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	task := intervalTask("task-poll", 10_000)
	if err := l.Start(context.Background(), task); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := l.Start(context.Background(), task); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if got := c.countType(entity.EventStarted); got != 1 {
		t.Errorf("started count = %d, want 1", got)
	}
}

func TestLoopbackStartRejectsNonTask(t *testing.T) {
	l := NewLoopback(LoopbackConfig{})
	defer l.Close() //nolint:errcheck

	if err := l.Start(context.Background(), bleConnection("conn-hr")); err == nil {
		t.Error("Start() on connection entity expected error")
	}
	if err := l.Start(context.Background(), nil); err == nil {
		t.Error("Start(nil) expected error")
	}
}

func TestLoopbackConnectEmitsDiscoveryData(t *testing.T) {
	l := NewLoopback(LoopbackConfig{})
	defer l.Close() //nolint:errcheck

	var c eventCollector
	if err := l.Subscribe(c.sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := l.Connect(context.Background(), bleConnection("conn-hr")); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("event count = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != entity.EventConnected {
		t.Errorf("Type = %q, want %q", ev.Type, entity.EventConnected)
	}
	if ev.Data["peripheral"] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("peripheral = %v", ev.Data["peripheral"])
	}
	if ev.Data["mtu"] != 185 {
		t.Errorf("mtu = %v, want 185", ev.Data["mtu"])
	}
	if _, ok := ev.Data["services"]; !ok {
		t.Error("services missing from BLE connect data")
	}

	if err := l.Disconnect(context.Background(), bleConnection("conn-hr")); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if c.countType(entity.EventDisconnected) != 1 {
		t.Errorf("disconnected count = %d, want 1", c.countType(entity.EventDisconnected))
	}
}

func TestLoopbackConnectCancelled(t *testing.T) {
	l := NewLoopback(LoopbackConfig{Latency: time.Second})
	defer l.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Connect(ctx, bleConnection("conn-hr"))
	if err == nil {
		t.Fatal("Connect() with cancelled context expected error")
	}
}

func TestLoopbackStopAll(t *testing.T) {
	l := NewLoopback(LoopbackConfig{})
	defer l.Close() //nolint:errcheck

	var c eventCollector
	if err := l.Subscribe(c.sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ctx := context.Background()
	if err := l.Start(ctx, intervalTask("task-a", 10_000)); err != nil {
		t.Fatalf("Start(a) error = %v", err)
	}
	if err := l.Start(ctx, intervalTask("task-b", 10_000)); err != nil {
		t.Fatalf("Start(b) error = %v", err)
	}

	if err := l.StopAll(ctx); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if got := c.countType(entity.EventStopped); got != 2 {
		t.Errorf("stopped count = %d, want 2", got)
	}
}

func TestLoopbackPermissions(t *testing.T) {
	l := NewLoopback(LoopbackConfig{
		GrantedPermissions: []string{"notifications"},
		DeniedPermissions:  []string{"bluetooth"},
	})
	defer l.Close() //nolint:errcheck
	ctx := context.Background()

	granted, err := l.CheckPermission(ctx, "notifications")
	if err != nil || !granted {
		t.Errorf("CheckPermission(notifications) = %v, %v; want true, nil", granted, err)
	}

	granted, err = l.CheckPermission(ctx, "location")
	if err != nil || granted {
		t.Errorf("CheckPermission(location) = %v, %v; want false, nil", granted, err)
	}

	// Requesting an undenied permission grants it persistently.
	granted, err = l.RequestPermission(ctx, "location")
	if err != nil || !granted {
		t.Errorf("RequestPermission(location) = %v, %v; want true, nil", granted, err)
	}
	granted, _ = l.CheckPermission(ctx, "location")
	if !granted {
		t.Error("CheckPermission(location) after grant = false, want true")
	}

	// Denied permissions stay denied.
	granted, err = l.RequestPermission(ctx, "bluetooth")
	if err != nil || granted {
		t.Errorf("RequestPermission(bluetooth) = %v, %v; want false, nil", granted, err)
	}
}

func TestLoopbackClose(t *testing.T) {
	l := NewLoopback(LoopbackConfig{})

	var c eventCollector
	if err := l.Subscribe(c.sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := l.Start(context.Background(), intervalTask("task-a", 5)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	available, err := l.Available(context.Background())
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	if available {
		t.Error("Available() = true after Close, want false")
	}

	if err := l.Subscribe(c.sink); err == nil {
		t.Error("Subscribe() after Close expected error")
	}
}
