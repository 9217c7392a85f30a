package delivery

import (
	"errors"
	"testing"
	"time"

	"menunotice/internal/eventbus"
	"menunotice/internal/host"
	"menunotice/internal/host/sim"
	logx "menunotice/pkg/logx"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newQueue(t *testing.T, cfg Config, available bool) (*Queue, *sim.Host, *int) {
	t.Helper()
	h := sim.New(sim.Config{Offset: host.Vector2{X: 10, Y: 20}}, nil, t0)
	inits := new(int)
	q := New(cfg, Deps{
		Host:      h,
		Subsystem: h,
		Available: func() bool { return available },
		Init: func() error {
			*inits++
			return nil
		},
	}, logx.Nop(), nil)
	return q, h, inits
}

func TestFormat(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		m    Message
		want string
	}{
		{"defaults", Message{Text: "hi", Autoformat: true}, "<size=25><color=red><b>[QModManager]:</b> hi</color></size>"},
		{"explicit", Message{Text: "hi", Size: 25, Color: "red", Autoformat: true}, "<size=25><color=red><b>[QModManager]:</b> hi</color></size>"},
		{"caller", Message{Text: "loaded", CallerID: "MyMod", Size: 18, Color: "yellow", Autoformat: true}, "<size=18><color=yellow><b>[MyMod]:</b> loaded</color></size>"},
		{"raw", Message{Text: "plain", CallerID: "MyMod", Autoformat: false}, "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Format(tc.m); got != tc.want {
				t.Fatalf("Format = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEnqueueBeforeReadyIsKeptUntilFlush(t *testing.T) {
	t.Parallel()
	q, h, inits := newQueue(t, Config{WidenedOffset: host.Vector2{X: 140, Y: 300}}, true)

	msg := Message{Text: "A", Autoformat: true, ExtraVisible: time.Minute}
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(msg); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if *inits != 2 {
		t.Fatalf("init calls = %d, want 2", *inits)
	}
	if got := q.PendingCount(); got != 1 {
		t.Fatalf("pending = %d, want 1 (duplicates collapse)", got)
	}
	if len(h.Messages()) != 0 {
		t.Fatal("nothing should reach the subsystem before it is live")
	}

	h.Boot()
	q.Flush()

	if !q.Live() || q.PendingCount() != 0 || q.DeliveredCount() != 1 {
		t.Fatalf("after flush: live=%v pending=%d delivered=%d", q.Live(), q.PendingCount(), q.DeliveredCount())
	}
	if got, want := h.LayoutOffset(), (host.Vector2{X: 140, Y: 300}); got != want {
		t.Fatalf("offset = %v, want %v", got, want)
	}
	if got, want := q.Snapshot().PreviousOffset, (host.Vector2{X: 10, Y: 20}); got != want {
		t.Fatalf("previous offset = %v, want %v", got, want)
	}

	msgs := h.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Text() != Format(msg) {
		t.Fatalf("text = %q", m.Text())
	}
	if !q.Tracks(m) {
		t.Fatal("delivered handle is not tracked")
	}
	if got, want := m.Expiry(), t0.Add(5*time.Second+time.Minute); !got.Equal(want) {
		t.Fatalf("expiry = %v, want %v", got, want)
	}
	if got, want := m.RegionSize(), (host.Vector2{X: 1920 - 280, Y: 40}); got != want {
		t.Fatalf("region = %v, want %v", got, want)
	}

	// A second flush in the same session is a no-op.
	q.Flush()
	if len(h.Messages()) != 1 {
		t.Fatal("second flush delivered again")
	}
}

func TestEnqueueWhileLiveDeliversImmediately(t *testing.T) {
	t.Parallel()
	q, h, _ := newQueue(t, Config{}, true)
	h.Boot()
	q.Flush()

	if err := q.Enqueue(Message{Text: "now", Autoformat: false}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q.PendingCount() != 0 || q.DeliveredCount() != 1 {
		t.Fatalf("pending=%d delivered=%d, want 0/1", q.PendingCount(), q.DeliveredCount())
	}
	if got := h.Visible(); len(got) != 1 || got[0] != "now" {
		t.Fatalf("visible = %v", got)
	}
}

func TestEnqueueWithoutPatchIsDropped(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	dropped, unsub := bus.SubscribeFunc(1, eventbus.OfType(EventDropped))
	defer unsub()

	h := sim.New(sim.Config{}, nil, t0)
	inits := 0
	q := New(Config{}, Deps{
		Host:      h,
		Subsystem: h,
		Available: func() bool { return false },
		Init:      func() error { inits++; return nil },
	}, logx.Nop(), bus)

	if err := q.Enqueue(Message{Text: "x", Autoformat: true}); !errors.Is(err, ErrPreconditionNotMet) {
		t.Fatalf("Enqueue err = %v, want ErrPreconditionNotMet", err)
	}
	if inits != 0 || q.PendingCount() != 0 {
		t.Fatalf("inits=%d pending=%d, want nothing touched", inits, q.PendingCount())
	}
	select {
	case <-dropped:
	default:
		t.Fatal("expected a dropped event")
	}
}

func TestEnqueueAfterBoundaryGoesDirect(t *testing.T) {
	t.Parallel()
	q, h, inits := newQueue(t, Config{BoundaryScene: "Main"}, true)
	h.Boot()
	h.LoadScene("Main")

	if err := q.Enqueue(Message{Text: "late", Autoformat: true}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if *inits != 0 {
		t.Fatal("direct delivery must not start a session")
	}
	msgs := h.Messages()
	if len(msgs) != 1 || msgs[0].Text() != "late" {
		t.Fatalf("messages = %v, want the raw text", h.Visible())
	}
	if q.Tracks(msgs[0]) || q.DeliveredCount() != 0 {
		t.Fatal("direct messages are not part of the session")
	}
	if hist := q.History(); len(hist) != 1 || !hist[0].Direct {
		t.Fatalf("history = %+v", hist)
	}
}

func TestInitErrorIsReturned(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	h := sim.New(sim.Config{}, nil, t0)
	q := New(Config{}, Deps{Host: h, Subsystem: h}, logx.Nop(), nil)
	q.SetHooks(func() bool { return true }, func() error { return boom })

	if err := q.Enqueue(Message{Text: "x"}); !errors.Is(err, boom) {
		t.Fatalf("Enqueue err = %v, want %v", err, boom)
	}
	if q.PendingCount() != 0 {
		t.Fatal("message kept despite init failure")
	}
}

func TestRestoreHelpers(t *testing.T) {
	t.Parallel()
	q, h, _ := newQueue(t, Config{WidenedOffset: host.Vector2{X: 100}}, true)
	_ = q.Enqueue(Message{Text: "A", Autoformat: true, ExtraVisible: DefaultExtraVisible})
	_ = q.Enqueue(Message{Text: "B", Autoformat: true, ExtraVisible: DefaultExtraVisible})
	h.Boot()
	q.Flush()
	msgs := h.Messages()

	at := t0.Add(3 * time.Second)
	q.ExpireAll(at)
	for _, m := range msgs {
		if !q.Tracks(m) {
			t.Fatalf("%q unpinned while still delivered", m.Text())
		}
	}
	q.ResetRegions()
	for _, m := range msgs {
		if !m.Expiry().Equal(at) {
			t.Fatalf("%q expiry = %v, want %v", m.Text(), m.Expiry(), at)
		}
		if m.RegionSize() != h.DefaultRegionSize() {
			t.Fatalf("%q region = %v, want default", m.Text(), m.RegionSize())
		}
	}

	q.ClearDelivered()
	if q.Tracks(msgs[0]) || q.DeliveredCount() != 0 {
		t.Fatal("handles still tracked after ClearDelivered")
	}
	q.RestoreOffset()
	if got, want := h.LayoutOffset(), (host.Vector2{X: 10, Y: 20}); got != want {
		t.Fatalf("offset = %v, want %v", got, want)
	}

	q.Reset()
	if q.Live() {
		t.Fatal("queue still live after Reset")
	}
	if len(q.History()) != 2 {
		t.Fatalf("history = %d entries, want 2 (kept across sessions)", len(q.History()))
	}
}

func TestDrainKeepsMessagesPending(t *testing.T) {
	t.Parallel()
	q, h, _ := newQueue(t, Config{}, true)
	h.Boot()
	q.Flush()
	q.Drain()

	if err := q.Enqueue(Message{Text: "late", Autoformat: true}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q.DeliveredCount() != 0 || q.PendingCount() != 1 {
		t.Fatalf("pending=%d delivered=%d, want 1/0", q.PendingCount(), q.DeliveredCount())
	}
	if len(h.Messages()) != 0 {
		t.Fatal("message reached the subsystem while draining")
	}
	if snap := q.Snapshot(); !snap.Draining || !snap.Live {
		t.Fatalf("snapshot = %+v", snap)
	}

	q.Reset()
	if q.Draining() || q.PendingCount() != 0 {
		t.Fatal("Reset must clear draining and pending")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()
	q, h, _ := newQueue(t, Config{HistorySize: 3}, true)
	h.Boot()
	q.Flush()
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		_ = q.Enqueue(Message{Text: s})
	}
	hist := q.History()
	if len(hist) != 3 || hist[0].Text != "c" || hist[2].Text != "e" {
		t.Fatalf("history = %+v, want c..e", hist)
	}
}
