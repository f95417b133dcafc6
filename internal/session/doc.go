// Package session is the command boundary of hostbridge.
//
// Every host-initiated operation funnels through the Manager, which
// serializes commands per entity id, talks to the gateway for native
// effects, keeps the registry's running flags truthful and converts
// every outcome (including panics) into a uniform Result:
//
//	caller ──▶ Manager ──▶ gateway (native side)
//	              │
//	              ├──▶ entity.Registry   (state)
//	              └──▶ bridge.Bridge     (callback table, subscription)
//
// Failure categories are closed: NOT_FOUND, ALREADY_EXISTS,
// ALREADY_RUNNING, ALREADY_CONNECTED, INVALID_INPUT,
// CAPABILITY_UNAVAILABLE, OPERATION_FAILED, UNKNOWN. Stop and
// Disconnect are idempotent so callers can retry after partial
// failures; Dispose sweeps best-effort and leaves the manager usable.
package session
