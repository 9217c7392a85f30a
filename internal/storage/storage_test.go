package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "menunotice/pkg/logx"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openBoth(t *testing.T, retain int) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for driver, path := range map[string]string{
		"file":   filepath.Join(dir, "j.jsonl"),
		"sqlite": filepath.Join(dir, "j.db"),
	} {
		st, err := Open(Config{Driver: driver, Path: path, Retain: retain, BusyTimeout: time.Second}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " OFF "} {
		st, err := Open(Config{Driver: d}, logx.Logger{})
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestAppendAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openBoth(t, 0) {
		entries := []Entry{
			{At: t0, Session: "s1", Kind: KindSessionStarted},
			{At: t0.Add(time.Second), Session: "s1", Kind: KindDelivered, Text: "A"},
			{At: t0.Add(2 * time.Second), Session: "s1", Kind: KindDelivered, Text: "B"},
			{At: t0.Add(3 * time.Second), Session: "s2", Kind: KindSessionStarted, Detail: `{"n":1}`},
		}
		for _, e := range entries {
			if err := st.Append(ctx, e); err != nil {
				t.Fatalf("%s: Append: %v", driver, err)
			}
		}

		all, err := st.List(ctx, Query{})
		if err != nil {
			t.Fatalf("%s: List: %v", driver, err)
		}
		if len(all) != 4 {
			t.Fatalf("%s: len = %d, want 4", driver, len(all))
		}
		for i, e := range all {
			if e.ID != int64(i+1) {
				t.Fatalf("%s: entry %d id = %d", driver, i, e.ID)
			}
			if !e.At.Equal(entries[i].At) || e.Kind != entries[i].Kind || e.Text != entries[i].Text || e.Detail != entries[i].Detail {
				t.Fatalf("%s: entry %d = %+v, want %+v", driver, i, e, entries[i])
			}
		}

		cases := []struct {
			name string
			q    Query
			want []string
		}{
			{"session", Query{Session: "s1"}, []string{"", "A", "B"}},
			{"kind", Query{Kind: KindDelivered}, []string{"A", "B"}},
			{"since", Query{Since: t0.Add(2 * time.Second)}, []string{"B", ""}},
			{"limit keeps newest", Query{Session: "s1", Limit: 2}, []string{"A", "B"}},
		}
		for _, tc := range cases {
			got, err := st.List(ctx, tc.q)
			if err != nil {
				t.Fatalf("%s/%s: %v", driver, tc.name, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("%s/%s: got %d entries, want %d", driver, tc.name, len(got), len(tc.want))
			}
			for i := range got {
				if got[i].Text != tc.want[i] {
					t.Fatalf("%s/%s: [%d] = %q, want %q", driver, tc.name, i, got[i].Text, tc.want[i])
				}
			}
		}
	}
}

func TestRetainCompacts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openBoth(t, 5) {
		for i := 0; i < compactEvery; i++ {
			if err := st.Append(ctx, Entry{At: t0, Kind: KindDelivered}); err != nil {
				t.Fatalf("%s: Append #%d: %v", driver, i, err)
			}
		}
		got, err := st.List(ctx, Query{})
		if err != nil {
			t.Fatalf("%s: List: %v", driver, err)
		}
		if len(got) != 5 || got[0].ID != compactEvery-4 || got[4].ID != compactEvery {
			t.Fatalf("%s: after compaction got %d entries (%v..%v)", driver, len(got), got[0].ID, got[len(got)-1].ID)
		}
		if err := st.Append(ctx, Entry{At: t0, Kind: KindDelivered}); err != nil {
			t.Fatalf("%s: Append after compaction: %v", driver, err)
		}
		got, _ = st.List(ctx, Query{Limit: 1})
		if len(got) != 1 || got[0].ID != compactEvery+1 {
			t.Fatalf("%s: id after compaction = %+v", driver, got)
		}
	}
}

func TestFileStoresShareTheJournal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.jsonl")
	a, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	for i, st := range []Store{a, b, a, b} {
		if err := st.Append(ctx, Entry{At: t0, Kind: KindDelivered}); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}
	got, err := b.List(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range got {
		if e.ID != int64(i+1) {
			t.Fatalf("ids = %+v, want 1..4", got)
		}
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
}

func TestAppendAfterClose(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "x.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(context.Background(), Entry{Kind: KindDelivered}); err != ErrClosed {
		t.Fatalf("Append err = %v, want ErrClosed", err)
	}
}
