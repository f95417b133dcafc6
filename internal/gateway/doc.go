// Package gateway defines the capability gateway: the narrow asynchronous
// contract between the core and the native subsystem that performs real
// scheduling and radio I/O.
//
// The core is written once against the Gateway interface; the driver is
// selected at startup from config. Two implementations exist:
//
//   - Loopback (this package): an in-process simulator used by tests and
//     development setups.
//   - mqttgw: the production driver that reaches the native side over MQTT.
//
// Drivers report completions and spontaneous native events (trigger fired,
// device connected, characteristic changed) through the event sink handed
// to Subscribe — the bridge's ingress function, passed explicitly at wiring
// time. Drivers hold no durable entity state; every call carries the full
// entity it concerns.
package gateway
