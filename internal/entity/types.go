package entity

import "time"

// Kind identifies what the registry entry represents: a background task
// scheduled through the host OS, or a Bluetooth device connection.
type Kind string

const (
	KindTask       Kind = "task"
	KindConnection Kind = "connection"
)

// Mode refines the Kind. Tasks run either as a persistent foreground task
// or an efficient deferrable one; connections are BLE or Classic transport.
// Mode is immutable after registration.
type Mode string

const (
	// Task modes.
	ModePersistent Mode = "persistent"
	ModeEfficient  Mode = "efficient"

	// Connection modes.
	ModeBLE     Mode = "ble"
	ModeClassic Mode = "classic"
)

// TriggerType describes what causes a task's work callback to fire.
type TriggerType string

const (
	TriggerInterval           TriggerType = "interval"
	TriggerEvent              TriggerType = "event"
	TriggerNotificationAction TriggerType = "notification_action"
)

// Priority maps to the native notification/scheduling priority.
type Priority string

const (
	PriorityMin     Priority = "min"
	PriorityLow     Priority = "low"
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
	PriorityMax     Priority = "max"
)

// EventType is the closed set of event types carried on the outbound stream.
type EventType string

const (
	EventStarted        EventType = "started"
	EventStopped        EventType = "stopped"
	EventTrigger        EventType = "trigger"
	EventAction         EventType = "action"
	EventError          EventType = "error"
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventDiscovered     EventType = "discovered"
	EventCharacteristic EventType = "characteristic"
	EventTimeout        EventType = "timeout"
)

// Entity is the unit the registry tracks: one registered background task or
// one registered device connection. The registry is the sole owner of this
// state; the native capability layer is re-told everything on each call and
// holds no durable entity state of its own.
type Entity struct {
	// Identity
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Mode Mode   `json:"mode"`

	// Validated configuration. Exactly one of Task/Connection is set,
	// matching Kind. Downstream code never sees an untyped payload map.
	Config Config `json:"config"`

	// CallbackID is the caller-supplied correlation tag attached to every
	// event concerning this entity. Empty when the caller set none.
	CallbackID string `json:"callback_id,omitempty"`

	// Lifecycle. IsRunning and StartedAt are always mutated together:
	// IsRunning=false implies StartedAt=nil and every successful start
	// sets both.
	IsRunning bool       `json:"is_running"`
	StartedAt *time.Time `json:"started_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Config is the typed configuration record produced by validation.
type Config struct {
	Task       *TaskConfig       `json:"task,omitempty"`
	Connection *ConnectionConfig `json:"connection,omitempty"`
}

// TaskConfig configures a background task.
type TaskConfig struct {
	// IntervalMS is the repeat interval for interval-triggered tasks.
	// Zero when the task has no interval trigger.
	IntervalMS int `json:"interval_ms"`

	// Triggers lists what fires the task's work callback.
	Triggers []TriggerType `json:"triggers"`

	// Notification is required for persistent tasks (the OS demands a
	// visible notification for foreground execution).
	Notification *NotificationSpec `json:"notification,omitempty"`

	Priority Priority `json:"priority,omitempty"`
}

// ConnectionConfig configures a device connection.
type ConnectionConfig struct {
	// Peripheral is the target device address or platform identifier.
	Peripheral string `json:"peripheral"`

	// MTU is the requested ATT MTU for BLE connections.
	MTU int `json:"mtu,omitempty"`

	// ConnectTimeoutMS bounds the connection attempt. Zero means no
	// timeout; expiry routes through the normal stop/cleanup path.
	ConnectTimeoutMS int `json:"connect_timeout_ms,omitempty"`

	AutoReconnect bool `json:"auto_reconnect,omitempty"`
}

// NotificationSpec describes the notification shown for a persistent task.
type NotificationSpec struct {
	Title string `json:"title"`
	Body  string `json:"body"`

	// Color is a strict #RRGGBB hex colour.
	Color string `json:"color,omitempty"`

	// Actions are button identifiers; normalization truncates to
	// MaxNotificationActions entries.
	Actions []string `json:"actions,omitempty"`

	Progress *ProgressSpec `json:"progress,omitempty"`
}

// ProgressSpec renders a progress bar on the task notification.
// Normalization floors Max at 1 and clamps Current into [0, Max].
type ProgressSpec struct {
	Current       int  `json:"current"`
	Max           int  `json:"max"`
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// DeepCopy creates a complete independent copy of the Entity.
// Slice and pointer fields are cloned so modifications to the copy do not
// affect the original. Essential for registry isolation.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}

	cpy := *e // value fields

	if e.StartedAt != nil {
		t := *e.StartedAt
		cpy.StartedAt = &t
	}
	cpy.Config = e.Config.DeepCopy()

	return &cpy
}

// DeepCopy clones the configuration record.
func (c Config) DeepCopy() Config {
	cpy := Config{}
	if c.Task != nil {
		t := *c.Task
		if c.Task.Triggers != nil {
			t.Triggers = make([]TriggerType, len(c.Task.Triggers))
			copy(t.Triggers, c.Task.Triggers)
		}
		if c.Task.Notification != nil {
			n := *c.Task.Notification
			if c.Task.Notification.Actions != nil {
				n.Actions = make([]string, len(c.Task.Notification.Actions))
				copy(n.Actions, c.Task.Notification.Actions)
			}
			if c.Task.Notification.Progress != nil {
				p := *c.Task.Notification.Progress
				n.Progress = &p
			}
			t.Notification = &n
		}
		cpy.Task = &t
	}
	if c.Connection != nil {
		conn := *c.Connection
		cpy.Connection = &conn
	}
	return cpy
}

// HasTrigger reports whether the task configuration includes the given
// trigger type. Always false for connection entities.
func (e *Entity) HasTrigger(t TriggerType) bool {
	if e.Config.Task == nil {
		return false
	}
	for _, trig := range e.Config.Task.Triggers {
		if trig == t {
			return true
		}
	}
	return false
}

// AllModes returns every valid mode value.
func AllModes() []Mode {
	return []Mode{ModePersistent, ModeEfficient, ModeBLE, ModeClassic}
}

// ModesForKind returns the modes valid for the given kind.
func ModesForKind(k Kind) []Mode {
	switch k {
	case KindTask:
		return []Mode{ModePersistent, ModeEfficient}
	case KindConnection:
		return []Mode{ModeBLE, ModeClassic}
	default:
		return nil
	}
}

// AllTriggerTypes returns every valid trigger type.
func AllTriggerTypes() []TriggerType {
	return []TriggerType{TriggerInterval, TriggerEvent, TriggerNotificationAction}
}

// AllPriorities returns every valid priority value.
func AllPriorities() []Priority {
	return []Priority{PriorityMin, PriorityLow, PriorityDefault, PriorityHigh, PriorityMax}
}

// AllEventTypes returns the closed set of outbound event types.
func AllEventTypes() []EventType {
	return []EventType{
		EventStarted, EventStopped, EventTrigger, EventAction, EventError,
		EventConnected, EventDisconnected, EventDiscovered,
		EventCharacteristic, EventTimeout,
	}
}
