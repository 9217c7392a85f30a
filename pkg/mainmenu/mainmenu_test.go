package mainmenu

import (
	"errors"
	"testing"
	"time"

	"menunotice/internal/delivery"
	logx "menunotice/pkg/logx"
)

type recorder struct {
	got []delivery.Message
	err error
}

func (r *recorder) Enqueue(m delivery.Message) error {
	r.got = append(r.got, m)
	return r.err
}

func TestAddMainMenuMessageDefaults(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	m := New(rec, Defaults{}, logx.Nop())

	m.AddMainMenuMessage("hi")
	if len(rec.got) != 1 {
		t.Fatalf("enqueued %d messages, want 1", len(rec.got))
	}
	got := rec.got[0]
	want := delivery.Message{Text: "hi", Size: 25, Color: "red", Autoformat: true, ExtraVisible: 1_000_000 * time.Second}
	if got != want {
		t.Fatalf("message = %+v, want %+v", got, want)
	}
	if s := delivery.Format(got); s != "<size=25><color=red><b>[QModManager]:</b> hi</color></size>" {
		t.Fatalf("formatted = %q", s)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()
	m := New(&recorder{}, Defaults{Caller: "Loader", Size: 20}, logx.Nop())

	cases := []struct {
		name string
		opts []Option
		want delivery.Message
	}{
		{"defaults from config", nil, delivery.Message{Text: "x", CallerID: "Loader", Size: 20, Color: "red", Autoformat: true, ExtraVisible: delivery.DefaultExtraVisible}},
		{"caller", []Option{WithCaller(" MyMod ")}, delivery.Message{Text: "x", CallerID: "MyMod", Size: 20, Color: "red", Autoformat: true, ExtraVisible: delivery.DefaultExtraVisible}},
		{"style", []Option{WithSize(30), WithColor("yellow"), WithSize(0), WithColor(" ")}, delivery.Message{Text: "x", CallerID: "Loader", Size: 30, Color: "yellow", Autoformat: true, ExtraVisible: delivery.DefaultExtraVisible}},
		{"raw", []Option{WithoutAutoformat(), WithExtraVisible(time.Minute)}, delivery.Message{Text: "x", CallerID: "Loader", Size: 20, Color: "red", Autoformat: false, ExtraVisible: time.Minute}},
		{"nil option", []Option{nil}, delivery.Message{Text: "x", CallerID: "Loader", Size: 20, Color: "red", Autoformat: true, ExtraVisible: delivery.DefaultExtraVisible}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Build("x", tc.opts...); got != tc.want {
				t.Fatalf("Build = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAddMainMenuMessageSwallowsErrors(t *testing.T) {
	t.Parallel()
	rec := &recorder{err: errors.New("boom")}
	m := New(rec, Defaults{}, logx.Logger{})
	m.AddMainMenuMessage("x")
	m.AddMainMenuMessage("   ")

	if len(rec.got) != 1 {
		t.Fatalf("enqueued %d, want 1 (blank text skipped)", len(rec.got))
	}

	var nilMessenger *Messenger
	nilMessenger.AddMainMenuMessage("ignored")
}

func TestPostUsesWarningColour(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	var p logx.Poster = New(rec, Defaults{}, logx.Nop())
	p.Post("[ERROR] boom")
	if len(rec.got) != 1 || rec.got[0].Color != "orange" || rec.got[0].Text != "[ERROR] boom" {
		t.Fatalf("posted %+v", rec.got)
	}
}

func TestRichText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		got  T
		want string
	}{
		{B("plain"), "<b>plain</b>"},
		{B("a<b>"), "<b><noparse>a<b></noparse></b>"},
		{Color("red", Size(20, I("x"))), "<color=red><size=20><i>x</i></size></color>"},
		{Join(" ", B("a"), "", Raw("c")), "<b>a</b> c"},
		{NoParse("x</noparse>y<"), "<noparse>xy<</noparse>"},
	}
	for _, tc := range cases {
		if tc.got.String() != tc.want {
			t.Fatalf("got %q, want %q", tc.got, tc.want)
		}
	}
}
