package app

import (
	"context"
	"fmt"
	"time"

	"menunotice/internal/delivery"
	"menunotice/internal/eventbus"
	"menunotice/internal/lifecycle"
	"menunotice/internal/storage"
	logx "menunotice/pkg/logx"
)

var journalEvents = eventbus.OfType(
	lifecycle.EventSessionStarted,
	lifecycle.EventSessionLive,
	lifecycle.EventSessionRestored,
	delivery.EventDelivered,
	delivery.EventDirect,
	delivery.EventDropped,
)

// journal turns bus events into storage entries. Queue events carry no
// session, so the current one is tracked from the session events; the bus
// delivers a subscriber's events in publish order.
type journal struct {
	session string
}

func (j *journal) entry(e eventbus.Event) (storage.Entry, bool) {
	switch ev := e.Data.(type) {
	case lifecycle.SessionEvent:
		out := storage.Entry{At: ev.At, Session: ev.Session}
		switch e.Type {
		case lifecycle.EventSessionStarted:
			j.session = ev.Session
			out.Kind = storage.KindSessionStarted
		case lifecycle.EventSessionLive:
			out.Kind = storage.KindSessionLive
			out.Detail = fmt.Sprintf("delivered=%d", ev.Delivered)
		case lifecycle.EventSessionRestored:
			out.Kind = storage.KindSessionRestored
			out.Detail = fmt.Sprintf("dropped=%d", ev.Dropped)
			j.session = ""
		default:
			return storage.Entry{}, false
		}
		return out, true
	case delivery.QueueEvent:
		out := storage.Entry{At: ev.At, Session: j.session, Text: ev.Text}
		switch e.Type {
		case delivery.EventDelivered:
			out.Kind = storage.KindDelivered
		case delivery.EventDirect:
			out.Kind = storage.KindDirect
			// Post-boundary deliveries belong to no session.
			out.Session = ""
		case delivery.EventDropped:
			out.Kind = storage.KindDropped
			out.Detail = ev.Error
		default:
			return storage.Entry{}, false
		}
		return out, true
	}
	return storage.Entry{}, false
}

// runJournal persists events until ctx ends, then drains what is buffered.
// Write failures are logged and the entry is skipped.
func runJournal(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	j := &journal{}
	write := func(e eventbus.Event) {
		entry, ok := j.entry(e)
		if !ok {
			return
		}
		wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Append(wctx, entry); err != nil {
			log.Warn("journal append failed", logx.String("kind", entry.Kind), logx.Err(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					write(e)
				default:
					return
				}
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			write(e)
		}
	}
}
