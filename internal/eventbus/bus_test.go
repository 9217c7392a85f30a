package eventbus

import "testing"

func TestSubscribeFuncFiltersBeforeBuffering(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.SubscribeFunc(1, OfType("wanted"))
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: "noise"})
	}
	b.Publish(Event{Type: "wanted", Data: 42})

	select {
	case e := <-ch:
		if e.Type != "wanted" || e.Data != 42 {
			t.Fatalf("got %+v, want wanted/42", e)
		}
		if e.Time.IsZero() {
			t.Fatal("expected Publish to stamp Time")
		}
	default:
		t.Fatal("expected the matching event to be buffered")
	}
}

func TestPublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub()
	b.Publish(Event{Type: "x"})
}

func TestOneShotFiresOnce(t *testing.T) {
	t.Parallel()
	b := New()
	o := SubscribeOnce(b, OfType("ready"))
	if !o.Active() {
		t.Fatal("expected new one-shot to be active")
	}
	if _, ok := o.Poll(); ok {
		t.Fatal("Poll before publish returned an event")
	}

	b.Publish(Event{Type: "ready"})
	b.Publish(Event{Type: "ready"})

	if e, ok := o.Poll(); !ok || e.Type != "ready" {
		t.Fatalf("Poll = %+v, %v; want ready, true", e, ok)
	}
	if o.Active() {
		t.Fatal("one-shot still active after firing")
	}
	if _, ok := o.Poll(); ok {
		t.Fatal("one-shot fired twice")
	}
}

func TestOneShotCancel(t *testing.T) {
	t.Parallel()
	b := New()
	o := SubscribeOnce(b, nil)
	o.Cancel()
	o.Cancel()
	b.Publish(Event{Type: "late"})
	if _, ok := o.Poll(); ok {
		t.Fatal("cancelled one-shot delivered an event")
	}

	var nilShot *OneShot
	if nilShot.Active() {
		t.Fatal("nil one-shot reported active")
	}
	nilShot.Cancel()
}
