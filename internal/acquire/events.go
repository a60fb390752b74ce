package acquire

import "github.com/Nezreka/SoulSync-sub002/internal/events"

// publish is a nil-safe wrapper so components in this package don't need to
// guard every call site against a caller that opted out of event reporting.
func publish(bus *events.Bus, e events.Event) {
	if bus == nil {
		return
	}
	bus.Publish(e)
}
