// Package mqttgw implements the capability gateway over the MQTT broker.
//
// Commands publish to hostbridge/cmd/{op}/{entity}; native events arrive
// on hostbridge/native/event and are fed to the subscribed sink.
// Permission round-trips are correlated by request ID over the
// native/permission req/resp topic pair.
package mqttgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostbridge/hostbridge-core/internal/bridge"
	"github.com/hostbridge/hostbridge-core/internal/entity"
	"github.com/hostbridge/hostbridge-core/internal/gateway"
	"github.com/hostbridge/hostbridge-core/internal/infrastructure/mqtt"
)

// Command operation names on the cmd topic hierarchy.
const (
	opStart        = "start"
	opStop         = "stop"
	opConnect      = "connect"
	opDisconnect   = "disconnect"
	opStopAll      = "stop-all"
	opNotification = "notification"
)

const defaultPermissionTimeout = 30 * time.Second

// Client is the narrow broker surface the driver needs. The
// infrastructure mqtt.Client satisfies it; tests substitute a fake.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Driver is the production gateway backed by the MQTT broker link to
// the native side. All methods are safe for concurrent use.
type Driver struct {
	client Client
	qos    byte
	topics mqtt.Topics
	logger gateway.Logger

	permTimeout time.Duration

	mu           sync.Mutex
	sink         func(bridge.Event)
	subscribed   bool
	nativeOnline bool
	pending      map[string]chan permissionReply
}

type permissionReply struct {
	Granted bool `json:"granted"`
}

// Options configures the driver.
type Options struct {
	// QoS for all published commands and subscriptions.
	QoS byte

	// PermissionTimeout bounds permission round-trips. Zero uses the
	// default of 30 seconds.
	PermissionTimeout time.Duration

	Logger gateway.Logger
}

// New creates a driver over an established broker client.
func New(client Client, opts Options) *Driver {
	timeout := opts.PermissionTimeout
	if timeout <= 0 {
		timeout = defaultPermissionTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = gateway.NoopLogger()
	}
	return &Driver{
		client:      client,
		qos:         opts.QoS,
		permTimeout: timeout,
		logger:      logger,
		pending:     make(map[string]chan permissionReply),
	}
}

// nativeEvent is the wire shape published by the native side.
type nativeEvent struct {
	EntityID  string         `json:"entity_id"`
	Type      string         `json:"type"`
	ActionID  string         `json:"action_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// nativeStatus is the retained liveness payload from the native side.
type nativeStatus struct {
	Status string `json:"status"`
}

// Subscribe wires the sink and subscribes to the native event, status
// and permission response topics.
func (d *Driver) Subscribe(sink func(bridge.Event)) error {
	d.mu.Lock()
	d.sink = sink
	alreadySubscribed := d.subscribed
	d.mu.Unlock()

	if alreadySubscribed {
		return nil
	}

	if err := d.client.Subscribe(d.topics.NativeEvent(), d.qos, d.handleNativeEvent); err != nil {
		return fmt.Errorf("subscribing to native events: %w", err)
	}
	if err := d.client.Subscribe(d.topics.NativeStatus(), d.qos, d.handleNativeStatus); err != nil {
		return fmt.Errorf("subscribing to native status: %w", err)
	}
	if err := d.client.Subscribe(d.topics.AllPermissionResponses(), d.qos, d.handlePermissionResponse); err != nil {
		return fmt.Errorf("subscribing to permission responses: %w", err)
	}

	d.mu.Lock()
	d.subscribed = true
	d.mu.Unlock()
	return nil
}

// Unsubscribe drops the sink. Broker subscriptions stay up so the
// retained native status keeps tracking; events are discarded without
// a sink.
func (d *Driver) Unsubscribe() {
	d.mu.Lock()
	d.sink = nil
	d.mu.Unlock()
}

func (d *Driver) handleNativeEvent(_ string, payload []byte) error {
	var ne nativeEvent
	if err := json.Unmarshal(payload, &ne); err != nil {
		return fmt.Errorf("decoding native event: %w", err)
	}

	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink == nil {
		return nil
	}

	sink(bridge.Event{
		EntityID:  ne.EntityID,
		Type:      entity.EventType(ne.Type),
		ActionID:  ne.ActionID,
		Data:      ne.Data,
		Timestamp: ne.Timestamp,
	})
	return nil
}

func (d *Driver) handleNativeStatus(_ string, payload []byte) error {
	var st nativeStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decoding native status: %w", err)
	}
	d.mu.Lock()
	d.nativeOnline = st.Status == "online"
	d.mu.Unlock()
	return nil
}

func (d *Driver) handlePermissionResponse(topic string, payload []byte) error {
	// hostbridge/native/permission/resp/{id}
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return fmt.Errorf("malformed permission response topic %q", topic)
	}
	requestID := topic[idx+1:]

	var reply permissionReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Errorf("decoding permission response: %w", err)
	}

	d.mu.Lock()
	ch, ok := d.pending[requestID]
	if ok {
		delete(d.pending, requestID)
	}
	d.mu.Unlock()

	if ok {
		ch <- reply
	}
	return nil
}

// Start publishes a start command carrying the task configuration.
func (d *Driver) Start(_ context.Context, e *entity.Entity) error {
	if e == nil || e.Config.Task == nil {
		return fmt.Errorf("%w: not a task entity", gateway.ErrOperationFailed)
	}
	return d.publishEntityCommand(opStart, e)
}

// Stop publishes a stop command.
func (d *Driver) Stop(_ context.Context, e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", gateway.ErrOperationFailed)
	}
	return d.publishEntityCommand(opStop, e)
}

// Connect publishes a connect command carrying the connection
// configuration.
func (d *Driver) Connect(_ context.Context, e *entity.Entity) error {
	if e == nil || e.Config.Connection == nil {
		return fmt.Errorf("%w: not a connection entity", gateway.ErrOperationFailed)
	}
	return d.publishEntityCommand(opConnect, e)
}

// Disconnect publishes a disconnect command.
func (d *Driver) Disconnect(_ context.Context, e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", gateway.ErrOperationFailed)
	}
	return d.publishEntityCommand(opDisconnect, e)
}

// StopAll publishes the broadcast stop command.
func (d *Driver) StopAll(context.Context) error {
	if err := d.client.Publish(d.topics.CommandBroadcast(opStopAll), []byte("{}"), d.qos, false); err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrOperationFailed, err)
	}
	return nil
}

// UpdateNotification publishes the replacement notification content for
// a running persistent task.
func (d *Driver) UpdateNotification(_ context.Context, e *entity.Entity) error {
	if e == nil || e.Config.Task == nil {
		return fmt.Errorf("%w: not a task entity", gateway.ErrOperationFailed)
	}
	return d.publishEntityCommand(opNotification, e)
}

func (d *Driver) publishEntityCommand(op string, e *entity.Entity) error {
	if !d.client.IsConnected() {
		return fmt.Errorf("%w: broker link down", gateway.ErrUnavailable)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encoding command: %w", gateway.ErrOperationFailed, err)
	}
	if err := d.client.Publish(d.topics.Command(op, e.ID), payload, d.qos, false); err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrOperationFailed, err)
	}
	return nil
}

// Available reports whether the broker link is up and the native side
// has published an online status.
func (d *Driver) Available(context.Context) (bool, error) {
	if !d.client.IsConnected() {
		return false, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nativeOnline, nil
}

// CheckPermission asks the native side for the current grant state.
func (d *Driver) CheckPermission(ctx context.Context, name string) (bool, error) {
	return d.permissionRoundTrip(ctx, name, "check")
}

// RequestPermission asks the native side to prompt for a grant.
func (d *Driver) RequestPermission(ctx context.Context, name string) (bool, error) {
	return d.permissionRoundTrip(ctx, name, "request")
}

func (d *Driver) permissionRoundTrip(ctx context.Context, name, kind string) (bool, error) {
	if !d.client.IsConnected() {
		return false, fmt.Errorf("%w: broker link down", gateway.ErrUnavailable)
	}

	requestID := uuid.NewString()
	reply := make(chan permissionReply, 1)

	d.mu.Lock()
	d.pending[requestID] = reply
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.pending, requestID)
		d.mu.Unlock()
	}

	payload, err := json.Marshal(map[string]string{
		"permission": name,
		"kind":       kind,
	})
	if err != nil {
		cleanup()
		return false, fmt.Errorf("%w: encoding permission request: %w", gateway.ErrOperationFailed, err)
	}

	if err := d.client.Publish(d.topics.PermissionRequest(requestID), payload, d.qos, false); err != nil {
		cleanup()
		return false, fmt.Errorf("%w: %w", gateway.ErrOperationFailed, err)
	}

	select {
	case r, ok := <-reply:
		if !ok {
			// Close tore down the pending wait; a closed channel must
			// not read as a denial.
			return false, fmt.Errorf("%w: driver closed during permission round-trip", gateway.ErrUnavailable)
		}
		return r.Granted, nil
	case <-time.After(d.permTimeout):
		cleanup()
		return false, fmt.Errorf("%w: no permission response within %v", gateway.ErrTimeout, d.permTimeout)
	case <-ctx.Done():
		cleanup()
		return false, fmt.Errorf("%w: %w", gateway.ErrTimeout, ctx.Err())
	}
}

// Close drops the sink and clears pending permission waits. The broker
// client itself is owned by the caller and stays open.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.sink = nil
	for id, ch := range d.pending {
		close(ch)
		delete(d.pending, id)
	}
	d.mu.Unlock()
	return nil
}
