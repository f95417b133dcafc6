package entity

import (
	"fmt"
	"sync"
	"testing"
)

// newTaskEntity builds a minimal valid task entity for tests.
func newTaskEntity(id string, mode Mode) *Entity {
	cfg := &TaskConfig{
		Triggers: []TriggerType{TriggerEvent},
		Priority: PriorityDefault,
	}
	if mode == ModePersistent {
		cfg.Notification = &NotificationSpec{Title: "Test", Body: "Running"}
	}
	return &Entity{
		ID:     id,
		Kind:   KindTask,
		Mode:   mode,
		Config: Config{Task: cfg},
	}
}

// newConnEntity builds a minimal valid connection entity for tests.
func newConnEntity(id string) *Entity {
	return &Entity{
		ID:   id,
		Kind: KindConnection,
		Mode: ModeBLE,
		Config: Config{Connection: &ConnectionConfig{
			Peripheral: "AA:BB:CC:DD:EE:FF",
		}},
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	first := newTaskEntity("t1", ModePersistent)
	if !reg.Register(first) {
		t.Fatal("first Register() = false, want true")
	}

	// The Nth duplicate must fail and leave the first entity untouched.
	dup := newTaskEntity("t1", ModeEfficient)
	if reg.Register(dup) {
		t.Error("duplicate Register() = true, want false")
	}

	got, ok := reg.Get("t1")
	if !ok {
		t.Fatal("Get(t1) absent after duplicate registration")
	}
	if got.Mode != ModePersistent {
		t.Errorf("mode = %q after duplicate registration, want %q", got.Mode, ModePersistent)
	}
}

func TestRegistryConcurrentRegisterSameID(t *testing.T) {
	reg := NewRegistry()

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- reg.Register(newConnEntity("conn-1"))
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Errorf("concurrent Register() wins = %d, want exactly 1", won)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistryConcurrentRegisterDistinctIDs(t *testing.T) {
	reg := NewRegistry()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%03d", i)
			if !reg.Register(newTaskEntity(id, ModeEfficient)) {
				t.Errorf("Register(%s) = false, want true", id)
			}
			if !reg.SetRunning(id, true) {
				t.Errorf("SetRunning(%s) = false, want true", id)
			}
		}(i)
	}
	wg.Wait()

	if reg.Count() != n {
		t.Fatalf("Count() = %d, want %d (registry lost updates)", reg.Count(), n)
	}
	for _, e := range reg.List() {
		if !e.IsRunning {
			t.Errorf("entity %s not running after concurrent start", e.ID)
		}
	}
}

func TestRegistrySetRunningAtomicPair(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTaskEntity("t2", ModeEfficient))

	if !reg.SetRunning("t2", true) {
		t.Fatal("SetRunning(t2, true) = false")
	}
	got, _ := reg.Get("t2")
	if !got.IsRunning {
		t.Error("IsRunning = false after start")
	}
	if got.StartedAt == nil {
		t.Error("StartedAt = nil while running")
	}

	if !reg.SetRunning("t2", false) {
		t.Fatal("SetRunning(t2, false) = false")
	}
	got, _ = reg.Get("t2")
	if got.IsRunning {
		t.Error("IsRunning = true after stop")
	}
	if got.StartedAt != nil {
		t.Error("StartedAt set while stopped")
	}
}

// Concurrent readers must never observe IsRunning and StartedAt out of sync.
func TestRegistryRunningFlagNeverTorn(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newConnEntity("c1"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			reg.SetRunning("c1", i%2 == 0)
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		e, ok := reg.Get("c1")
		if !ok {
			t.Fatal("entity vanished during flag churn")
		}
		if e.IsRunning && e.StartedAt == nil {
			t.Fatal("observed IsRunning=true with StartedAt=nil")
		}
		if !e.IsRunning && e.StartedAt != nil {
			t.Fatal("observed IsRunning=false with StartedAt set")
		}
	}
}

func TestRegistrySetRunningAbsent(t *testing.T) {
	reg := NewRegistry()
	if reg.SetRunning("ghost", true) {
		t.Error("SetRunning on absent id = true, want false (no-op)")
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTaskEntity("t3", ModeEfficient))

	if !reg.Unregister("t3") {
		t.Error("Unregister(t3) = false, want true")
	}
	if _, ok := reg.Get("t3"); ok {
		t.Error("Get(t3) present after unregister")
	}
	// Double-unregister is an idempotent no-op.
	if reg.Unregister("t3") {
		t.Error("second Unregister(t3) = true, want false")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTaskEntity("t4", ModePersistent))

	got, _ := reg.Get("t4")
	got.Config.Task.Notification.Title = "mutated"
	got.CallbackID = "mutated"

	again, _ := reg.Get("t4")
	if again.Config.Task.Notification.Title != "Test" {
		t.Error("mutation of returned copy leaked into registry")
	}
	if again.CallbackID != "" {
		t.Error("callback mutation leaked into registry")
	}
}

func TestRegistryRegisterResetsRunning(t *testing.T) {
	reg := NewRegistry()
	e := newTaskEntity("t5", ModeEfficient)
	e.IsRunning = true // callers cannot smuggle a running entry in
	reg.Register(e)

	got, _ := reg.Get("t5")
	if got.IsRunning || got.StartedAt != nil {
		t.Error("fresh registration stored as running")
	}
}

func TestRegistryHasRunning(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTaskEntity("t6", ModeEfficient))
	reg.Register(newConnEntity("c6"))

	if reg.HasRunning() {
		t.Error("HasRunning() = true with nothing started")
	}
	reg.SetRunning("c6", true)
	if !reg.HasRunning() {
		t.Error("HasRunning() = false with a running connection")
	}
	if reg.HasRunningKind(KindTask) {
		t.Error("HasRunningKind(task) = true, only a connection is running")
	}
	if !reg.HasRunningKind(KindConnection) {
		t.Error("HasRunningKind(connection) = false, want true")
	}
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 10; i++ {
		reg.Register(newTaskEntity(fmt.Sprintf("t-%d", i), ModeEfficient))
	}
	reg.Clear()

	if reg.Count() != 0 {
		t.Errorf("Count() = %d after Clear(), want 0", reg.Count())
	}
	if len(reg.List()) != 0 {
		t.Error("List() non-empty after Clear()")
	}
	// Registry must be reusable after a clear.
	if !reg.Register(newTaskEntity("t-0", ModeEfficient)) {
		t.Error("Register failed after Clear()")
	}
}

func TestRegistryUpdateNotification(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTaskEntity("t7", ModePersistent))
	reg.Register(newConnEntity("c7"))

	ok := reg.UpdateNotification("t7", &NotificationSpec{Title: "New", Body: "Body"})
	if !ok {
		t.Fatal("UpdateNotification(t7) = false")
	}
	got, _ := reg.Get("t7")
	if got.Config.Task.Notification.Title != "New" {
		t.Errorf("notification title = %q, want %q", got.Config.Task.Notification.Title, "New")
	}

	if reg.UpdateNotification("c7", &NotificationSpec{Title: "x", Body: "y"}) {
		t.Error("UpdateNotification on a connection = true, want false")
	}
	if reg.UpdateNotification("ghost", &NotificationSpec{Title: "x", Body: "y"}) {
		t.Error("UpdateNotification on absent id = true, want false")
	}
}

func TestRegistryStats(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newTaskEntity("t8", ModeEfficient))
	reg.Register(newTaskEntity("t9", ModePersistent))
	reg.Register(newConnEntity("c8"))
	reg.SetRunning("t8", true)

	stats := reg.GetStats()
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Running != 1 {
		t.Errorf("Running = %d, want 1", stats.Running)
	}
	if stats.ByKind[KindTask] != 2 {
		t.Errorf("ByKind[task] = %d, want 2", stats.ByKind[KindTask])
	}
	if stats.ByMode[ModeBLE] != 1 {
		t.Errorf("ByMode[ble] = %d, want 1", stats.ByMode[ModeBLE])
	}
}
