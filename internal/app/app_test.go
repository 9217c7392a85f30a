package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"menunotice/internal/config"
	"menunotice/internal/delivery"
	"menunotice/internal/eventbus"
	"menunotice/internal/lifecycle"
	"menunotice/internal/storage"
	logx "menunotice/pkg/logx"
)

func TestScriptDueKeepsFileOrder(t *testing.T) {
	t.Parallel()
	s, err := parseScript([]config.SimStep{
		{At: "2s", Action: "scene", Scene: "Main"},
		{At: "0s", Action: "message", Text: "a"},
		{At: "1s", Action: "BOOT"},
		{At: "0s", Action: "message", Text: "b"},
	})
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	if s.End() != 2*time.Second || s.Len() != 4 {
		t.Fatalf("End=%v Len=%d", s.End(), s.Len())
	}

	got := s.Due(500 * time.Millisecond)
	if len(got) != 2 || got[0].Text != "a" || got[1].Text != "b" {
		t.Fatalf("first batch = %+v", got)
	}
	if got := s.Due(500 * time.Millisecond); len(got) != 0 {
		t.Fatalf("steps returned twice: %+v", got)
	}
	if got := s.Due(time.Second); len(got) != 1 || got[0].Action != "boot" {
		t.Fatalf("second batch = %+v", got)
	}
	if s.Done() {
		t.Fatal("Done before the last step")
	}
	s.Due(time.Hour)
	if !s.Done() {
		t.Fatal("not Done after the last step")
	}

	if _, err := parseScript([]config.SimStep{{At: "later", Action: "boot"}}); err == nil {
		t.Fatal("expected a duration error")
	}
}

func TestJournalEntries(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j := &journal{}

	events := []eventbus.Event{
		{Type: lifecycle.EventSessionStarted, Data: lifecycle.SessionEvent{Session: "s1", At: t0}},
		{Type: delivery.EventPending, Data: delivery.QueueEvent{Text: "queued", At: t0}},
		{Type: delivery.EventDelivered, Data: delivery.QueueEvent{Text: "hello", At: t0}},
		{Type: lifecycle.EventSessionLive, Data: lifecycle.SessionEvent{Session: "s1", Delivered: 1, At: t0}},
		{Type: lifecycle.EventSessionRestored, Data: lifecycle.SessionEvent{Session: "s1", Dropped: 2, At: t0}},
		{Type: delivery.EventDirect, Data: delivery.QueueEvent{Text: "late", At: t0}},
		{Type: delivery.EventDropped, Data: delivery.QueueEvent{Text: "x", Error: "nope", At: t0}},
	}
	var got []storage.Entry
	for _, e := range events {
		if entry, ok := j.entry(e); ok {
			got = append(got, entry)
		}
	}
	want := []storage.Entry{
		{At: t0, Session: "s1", Kind: storage.KindSessionStarted},
		{At: t0, Session: "s1", Kind: storage.KindDelivered, Text: "hello"},
		{At: t0, Session: "s1", Kind: storage.KindSessionLive, Detail: "delivered=1"},
		{At: t0, Session: "s1", Kind: storage.KindSessionRestored, Detail: "dropped=2"},
		{At: t0, Kind: storage.KindDirect, Text: "late"},
		{At: t0, Kind: storage.KindDropped, Text: "x", Detail: "nope"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entries =\n%+v\nwant\n%+v", got, want)
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", "OFF"} {
		cfg := config.Default()
		cfg.Storage = &config.StorageConfig{Driver: driver, Path: "x"}
		if _, enabled, err := mapStorageConfig(cfg); err != nil || enabled {
			t.Fatalf("%q: enabled=%v err=%v", driver, enabled, err)
		}
	}

	cfg := config.Default()
	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("sqlite without a path should fail")
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite", Path: "j.db", Retain: 10}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled || sc.BusyTimeout != time.Second || sc.Retain != 10 {
		t.Fatalf("sc=%+v enabled=%v err=%v", sc, enabled, err)
	}
}

func TestMapLifecycleConfigDefaults(t *testing.T) {
	t.Parallel()
	lc, err := mapLifecycleConfig(config.Default())
	if err != nil {
		t.Fatalf("mapLifecycleConfig: %v", err)
	}
	if lc.SettleDelay != lifecycle.DefaultSettleDelay || lc.DismissDelay != lifecycle.DefaultDismissDelay {
		t.Fatalf("delays = %+v", lc)
	}
	if lc.Queue.BoundaryScene != config.DefaultBoundaryScene || lc.Queue.WidenedOffset != delivery.DefaultWidenedOffset {
		t.Fatalf("queue = %+v", lc.Queue)
	}

	def, err := mapMenuDefaults(config.Default())
	if err != nil || def.ExtraVisible != delivery.DefaultExtraVisible {
		t.Fatalf("defaults=%+v err=%v", def, err)
	}
}

const scenario = `{
  "logging": {"level": "warn"},
  "queue": {"caller": "Loader"},
  "storage": {"driver": "file", "path": %q},
  "sim": {
    "tick": "16ms",
    "script": [
      {"at": "0s", "action": "message", "text": "hello"},
      {"at": "1s", "action": "boot"},
      {"at": "3s", "action": "scene", "scene": "Main"},
      {"at": "7s", "action": "message", "text": "late", "caller": "Other"}
    ]
  }
}`

func TestRunScriptEndToEnd(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal")
	cfgPath := filepath.Join(dir, "menunotice.json")
	body := []byte(fmt.Sprintf(scenario, journalPath))
	if err := os.WriteFile(cfgPath, body, 0o600); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewApp(Options{ConfigPath: cfgPath, Start: start, Tail: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-a.Finished():
	case <-a.Done():
		t.Fatalf("app stopped early: %v", a.Err())
	case <-ctx.Done():
		t.Fatal("script did not finish")
	}

	snap := a.Snapshot()
	if snap.Coordinator.State != lifecycle.StateIdle {
		t.Fatalf("state = %v", snap.Coordinator.State)
	}
	if len(snap.History) != 2 || snap.History[0].Direct || !snap.History[1].Direct {
		t.Fatalf("history = %+v", snap.History)
	}
	if want := "<size=25><color=red><b>[Loader]:</b> hello</color></size>"; snap.History[0].Text != want {
		t.Fatalf("history[0] = %q", snap.History[0].Text)
	}
	if snap.History[1].Text != "late" {
		t.Fatalf("history[1] = %q", snap.History[1].Text)
	}
	if !reflect.DeepEqual(snap.Visible, []string{"late"}) {
		t.Fatalf("visible = %v", snap.Visible)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopScriptDone); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}

	store, err := OpenJournal(cfgPath, logx.Nop())
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), storage.Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	want := []string{
		storage.KindSessionStarted,
		storage.KindDelivered,
		storage.KindSessionLive,
		storage.KindSessionRestored,
		storage.KindDirect,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("journal kinds = %v, want %v", kinds, want)
	}
	if entries[0].Session == "" || entries[1].Session != entries[0].Session || entries[4].Session != "" {
		t.Fatalf("sessions = %+v", entries)
	}
}

func TestOpenJournalDisabled(t *testing.T) {
	t.Parallel()
	if _, err := OpenJournal("", logx.Nop()); !errors.Is(err, storage.ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}
