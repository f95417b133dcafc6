package entity

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxIDLength    = 100
	maxTitleLength = 100
	maxBodyLength  = 500

	hexColorPattern = `^#[0-9A-Fa-f]{6}$`

	// MaxNotificationActions is the fixed cap on notification action
	// buttons; normalization truncates longer lists without rejecting.
	MaxNotificationActions = 3

	// Interval bounds (milliseconds).
	minIntervalMS = 1000
	maxIntervalMS = 86_400_000 // 24h

	// ATT MTU bounds per the Bluetooth core specification.
	minMTU = 23
	maxMTU = 517

	// maxConnectTimeoutMS bounds connection attempt timeouts.
	maxConnectTimeoutMS = 120_000
)

var hexColorRegex = regexp.MustCompile(hexColorPattern)

// Pre-computed validation sets for O(1) lookups.
var (
	validModesByKind map[Kind]map[Mode]struct{}
	validTriggers    map[TriggerType]struct{}
	validPriorities  map[Priority]struct{}
	validEventTypes  map[EventType]struct{}
)

func init() {
	validModesByKind = make(map[Kind]map[Mode]struct{}, 2)
	for _, k := range []Kind{KindTask, KindConnection} {
		set := make(map[Mode]struct{})
		for _, m := range ModesForKind(k) {
			set[m] = struct{}{}
		}
		validModesByKind[k] = set
	}

	validTriggers = make(map[TriggerType]struct{}, len(AllTriggerTypes()))
	for _, t := range AllTriggerTypes() {
		validTriggers[t] = struct{}{}
	}

	validPriorities = make(map[Priority]struct{}, len(AllPriorities()))
	for _, p := range AllPriorities() {
		validPriorities[p] = struct{}{}
	}

	validEventTypes = make(map[EventType]struct{}, len(AllEventTypes()))
	for _, e := range AllEventTypes() {
		validEventTypes[e] = struct{}{}
	}
}

// Normalize applies in-place, lossless-or-documented adjustments before
// validation: trims the ID and callback tag, truncates notification action
// lists to MaxNotificationActions, floors progress Max at 1, and clamps
// progress Current into [0, Max].
//
// Normalize never rejects; Validate decides acceptance. Together they are
// all-or-nothing: callers run both on a candidate copy before any registry
// mutation.
func Normalize(e *Entity) {
	if e == nil {
		return
	}

	e.ID = strings.TrimSpace(e.ID)
	e.CallbackID = strings.TrimSpace(e.CallbackID)

	if t := e.Config.Task; t != nil {
		if t.Priority == "" {
			t.Priority = PriorityDefault
		}
		if n := t.Notification; n != nil {
			if len(n.Actions) > MaxNotificationActions {
				n.Actions = n.Actions[:MaxNotificationActions]
			}
			if p := n.Progress; p != nil {
				if p.Max < 1 {
					p.Max = 1
				}
				if p.Current < 0 {
					p.Current = 0
				}
				if p.Current > p.Max {
					p.Current = p.Max
				}
			}
		}
	}
}

// Validate performs comprehensive validation on a normalized entity.
// Returns an error describing the first validation failure found; a nil
// return means the whole registration is acceptable.
func Validate(e *Entity) error {
	if e == nil {
		return ErrInvalidEntity
	}

	if err := ValidateID(e.ID); err != nil {
		return err
	}

	modes, ok := validModesByKind[e.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	if _, ok := modes[e.Mode]; !ok {
		return fmt.Errorf("%w: %q not valid for kind %q", ErrInvalidMode, e.Mode, e.Kind)
	}

	switch e.Kind {
	case KindTask:
		if e.Config.Task == nil || e.Config.Connection != nil {
			return fmt.Errorf("%w: task entity requires task config only", ErrInvalidEntity)
		}
		return validateTaskConfig(e.Mode, e.Config.Task)
	case KindConnection:
		if e.Config.Connection == nil || e.Config.Task != nil {
			return fmt.Errorf("%w: connection entity requires connection config only", ErrInvalidEntity)
		}
		return validateConnectionConfig(e.Config.Connection)
	}
	return nil
}

// ValidateID checks that an identifier is non-empty after trimming and
// within length bounds.
func ValidateID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(trimmed) > maxIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidID, maxIDLength)
	}
	return nil
}

// ValidateEventType reports whether an event type belongs to the closed set.
func ValidateEventType(t EventType) bool {
	_, ok := validEventTypes[t]
	return ok
}

func validateTaskConfig(mode Mode, t *TaskConfig) error {
	if len(t.Triggers) == 0 {
		return fmt.Errorf("%w: at least one trigger required", ErrInvalidTrigger)
	}
	hasInterval := false
	for _, trig := range t.Triggers {
		if _, ok := validTriggers[trig]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidTrigger, trig)
		}
		if trig == TriggerInterval {
			hasInterval = true
		}
	}

	if hasInterval {
		if t.IntervalMS < minIntervalMS || t.IntervalMS > maxIntervalMS {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidInterval, t.IntervalMS, minIntervalMS, maxIntervalMS)
		}
	} else if t.IntervalMS != 0 {
		return fmt.Errorf("%w: interval set without interval trigger", ErrInvalidInterval)
	}

	if _, ok := validPriorities[t.Priority]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}

	// Persistent tasks require a visible notification.
	if mode == ModePersistent && t.Notification == nil {
		return fmt.Errorf("%w: persistent task requires a notification", ErrInvalidNotification)
	}
	if t.Notification != nil {
		if err := validateNotification(t.Notification); err != nil {
			return err
		}
	}
	return nil
}

func validateNotification(n *NotificationSpec) error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidNotification)
	}
	if len(n.Title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidNotification, maxTitleLength)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: body required", ErrInvalidNotification)
	}
	if len(n.Body) > maxBodyLength {
		return fmt.Errorf("%w: body exceeds %d characters", ErrInvalidNotification, maxBodyLength)
	}
	if n.Color != "" && !hexColorRegex.MatchString(n.Color) {
		return fmt.Errorf("%w: color %q is not #RRGGBB", ErrInvalidNotification, n.Color)
	}
	for _, a := range n.Actions {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: empty action identifier", ErrInvalidNotification)
		}
	}
	return nil
}

func validateConnectionConfig(c *ConnectionConfig) error {
	if strings.TrimSpace(c.Peripheral) == "" {
		return fmt.Errorf("%w: peripheral required", ErrInvalidConnection)
	}
	if c.MTU != 0 && (c.MTU < minMTU || c.MTU > maxMTU) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidMTU, c.MTU, minMTU, maxMTU)
	}
	if c.ConnectTimeoutMS < 0 || c.ConnectTimeoutMS > maxConnectTimeoutMS {
		return fmt.Errorf("%w: connect timeout %d not in [0, %d]", ErrInvalidConnection, c.ConnectTimeoutMS, maxConnectTimeoutMS)
	}
	return nil
}
