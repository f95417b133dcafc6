package mqtt

import "fmt"

// Topic prefixes for the hostbridge broker namespace.
//
// Commands flow host -> native on hostbridge/cmd/...; events flow
// native -> host on hostbridge/native/...; each side publishes its own
// retained status topic for liveness.
const (
	// TopicPrefix is the base for all hostbridge topics.
	TopicPrefix = "hostbridge"

	// TopicPrefixCmd is the base for commands sent to the native side.
	TopicPrefixCmd = "hostbridge/cmd"

	// TopicPrefixNative is the base for traffic from the native side.
	TopicPrefixNative = "hostbridge/native"
)

// Topics provides builders for hostbridge MQTT topics. Using these
// helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Command returns the topic for an entity-scoped command to the native side.
//
// Example: hostbridge/cmd/start/task-sync
func (Topics) Command(op, entityID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCmd, op, entityID)
}

// CommandBroadcast returns the topic for a command with no entity scope,
// such as stop-all.
//
// Example: hostbridge/cmd/stop-all
func (Topics) CommandBroadcast(op string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCmd, op)
}

// NativeEvent returns the topic the native side publishes entity events on.
//
// Example: hostbridge/native/event
func (Topics) NativeEvent() string {
	return fmt.Sprintf("%s/event", TopicPrefixNative)
}

// PermissionRequest returns the topic for a correlated permission request.
//
// Example: hostbridge/native/permission/req/8f14e45f
func (Topics) PermissionRequest(requestID string) string {
	return fmt.Sprintf("%s/permission/req/%s", TopicPrefixNative, requestID)
}

// PermissionResponse returns the topic the native side answers a
// permission request on.
//
// Example: hostbridge/native/permission/resp/8f14e45f
func (Topics) PermissionResponse(requestID string) string {
	return fmt.Sprintf("%s/permission/resp/%s", TopicPrefixNative, requestID)
}

// NativeStatus returns the retained topic carrying the native side's
// liveness status.
//
// Example: hostbridge/native/status
func (Topics) NativeStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixNative)
}

// HostStatus returns the retained topic carrying this service's status.
// Also used as the LWT topic.
//
// Example: hostbridge/host/status
func (Topics) HostStatus() string {
	return fmt.Sprintf("%s/host/status", TopicPrefix)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: hostbridge/cmd/#
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/#", TopicPrefixCmd)
}

// AllPermissionResponses returns a pattern matching every permission
// response.
//
// Pattern: hostbridge/native/permission/resp/+
func (Topics) AllPermissionResponses() string {
	return fmt.Sprintf("%s/permission/resp/+", TopicPrefixNative)
}

// AllTopics returns a pattern matching all hostbridge traffic.
// Use with caution.
//
// Pattern: hostbridge/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
