// Package entity provides the Entity Registry for Hostbridge Core.
//
// The registry is the central catalogue of live background tasks and device
// connections. It owns all durable entity state, enforces at-most-one-live
// entry per id, and provides atomic lifecycle transitions for the session
// manager and the event correlation bridge.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                        Entity Registry                          │
//	│                                                                 │
//	│  ┌────────────────┐   ┌────────────────┐   ┌────────────────┐   │
//	│  │    Registry    │   │   Validation   │   │     Types      │   │
//	│  │ (registry.go)  │   │(validation.go) │   │   (types.go)   │   │
//	│  │                │   │                │   │                │   │
//	│  │ • sharded maps │   │ • Normalize    │   │ • Entity       │   │
//	│  │ • per-id atomic│   │ • Validate     │   │ • typed Config │   │
//	│  │   transitions  │   │ • pure, no     │   │ • enums        │   │
//	│  │ • deep copies  │   │   side effects │   │ • DeepCopy     │   │
//	│  └────────────────┘   └────────────────┘   └────────────────┘   │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Entity: one registered background task or device connection
//   - Kind/Mode: task (persistent|efficient) or connection (ble|classic)
//   - Config: typed configuration record, validated before insertion
//   - EventType: the closed set of outbound event types
//
// # Invariants
//
//   - Entity id is unique across the registry at all times; duplicate
//     registration fails without mutating state.
//   - IsRunning=false implies StartedAt=nil; every successful start sets
//     both atomically (SetRunning).
//   - The registry is the only owner of entity state; the native
//     capability layer is re-told everything on each call.
//
// # Usage
//
//	reg := entity.NewRegistry()
//	reg.SetLogger(log)
//
//	e := &entity.Entity{
//	    ID:   "sync-task",
//	    Kind: entity.KindTask,
//	    Mode: entity.ModePersistent,
//	    Config: entity.Config{Task: &entity.TaskConfig{
//	        IntervalMS: 60_000,
//	        Triggers:   []entity.TriggerType{entity.TriggerInterval},
//	        Notification: &entity.NotificationSpec{
//	            Title: "Syncing",
//	            Body:  "Background sync in progress",
//	        },
//	    }},
//	}
//	entity.Normalize(e)
//	if err := entity.Validate(e); err != nil {
//	    return err
//	}
//	if !reg.Register(e) {
//	    // already exists
//	}
//
// # Thread Safety
//
// The Registry is safe for concurrent use. State is sharded by id hash so
// operations on different ids do not contend; operations on the same id
// serialize on the owning shard.
package entity
