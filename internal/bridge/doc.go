// Package bridge implements the event correlation bridge between the
// native capability gateway and the host-facing event stream.
//
// The bridge holds the one upstream subscription per session, owns every
// per-entity and per-action callback, and enriches each native event with
// the registered correlation tag before fanning it out. Delivery to the
// external observer is unconditional and non-blocking; callbacks run in
// their own goroutines with isolated failure capture, so one slow or
// panicking callback never delays the next event or starves the observer.
//
// Callback ownership never crosses the native boundary: the gateway only
// sees the bridge's ingress function, handed over at Subscribe time.
package bridge
