package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards every T published on bus into ch and returns
// the unsubscribe function. Events are dropped while ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return SubscribeFiltered[T](bus, ch, nil)
}

// SubscribeFiltered is SubscribeToChannel with a predicate. A nil keep
// forwards everything.
func SubscribeFiltered[T Event](bus *Bus, ch chan<- any, keep func(T) bool) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		if keep != nil && !keep(e) {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
}
