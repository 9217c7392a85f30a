package eventbus

import "sync"

// OneShot is a subscription that yields at most one matching event and then
// unsubscribes itself. Signal sources live for the whole process, so callers
// that only care about the next occurrence use this instead of Subscribe.
//
// OneShot is polled rather than read from: the owner drains it on its own
// update thread. A nil *OneShot is inactive.
type OneShot struct {
	mu    sync.Mutex
	ch    <-chan Event
	unsub func()
	done  bool
}

// SubscribeOnce registers a one-shot subscription for events accepted by match.
func SubscribeOnce(b Bus, match Match) *OneShot {
	ch, unsub := b.SubscribeFunc(1, match)
	return &OneShot{ch: ch, unsub: unsub}
}

// Poll returns the pending event, if any, without blocking. The first
// successful Poll unsubscribes.
func (o *OneShot) Poll() (Event, bool) {
	if o == nil {
		return Event{}, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return Event{}, false
	}
	select {
	case e, ok := <-o.ch:
		o.done = true
		o.unsub()
		if !ok {
			return Event{}, false
		}
		return e, true
	default:
		return Event{}, false
	}
}

// Cancel unsubscribes without consuming anything. Safe to call repeatedly.
func (o *OneShot) Cancel() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return
	}
	o.done = true
	o.unsub()
}

// Active reports whether the subscription is still waiting.
func (o *OneShot) Active() bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.done
}
