// Package mqtt wraps paho.mqtt.golang for the hostbridge broker link.
//
// The broker is the transport between this service (the host) and the
// native capability side:
//
//	host  ──publish──▶  hostbridge/cmd/{op}/{entity}      commands
//	host  ◀─subscribe─  hostbridge/native/event            entity events
//	host  ◀─req/resp─▶  hostbridge/native/permission/...   permission round-trips
//	both  ──retained──▶ .../status                         liveness
//
// The client tracks subscriptions and restores them after a reconnect,
// publishes a retained online status on connect and registers an LWT so
// the native side detects an unexpected host death. Handlers run with
// panic recovery; use Topics for consistent topic naming.
package mqtt
