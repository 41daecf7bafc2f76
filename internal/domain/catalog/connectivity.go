package catalog

// Monitor observes network reachability. It is a pure observation boundary:
// no retry or backoff logic lives here.
type Monitor interface {
	// Connected reports the current reachability state.
	Connected() bool

	// Subscribe registers a listener invoked once per observed transition
	// with the new state. Invocations to the same listener are serialized.
	// The returned function unsubscribes; it is idempotent and safe to call
	// from within the listener itself.
	Subscribe(listener func(connected bool)) (unsubscribe func())
}
