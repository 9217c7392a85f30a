package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"menunotice/internal/app"
	"menunotice/internal/storage"
	logx "menunotice/pkg/logx"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	var (
		session string
		kind    string
		since   time.Duration
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the session journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenJournal(*configFlag, logx.Nop())
			if errors.Is(err, storage.ErrDisabled) {
				return errors.New("no journal configured (set storage.driver to file or sqlite)")
			}
			if err != nil {
				return err
			}
			defer store.Close()

			q := storage.Query{Session: session, Kind: kind, Limit: limit}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			entries, err := store.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No journal entries")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries, time.Now()))
			fmt.Fprintf(out, "%s entries\n", humanize.Comma(int64(len(entries))))
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Only entries of this session")
	cmd.Flags().StringVar(&kind, "kind", "", "Only entries of this kind (e.g. message.delivered)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Newest entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func renderHistory(entries []storage.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		session := e.Session
		if len(session) > 8 {
			session = session[:8]
		}
		rows = append(rows, []string{
			humanize.Comma(e.ID),
			humanize.RelTime(e.At, now, "ago", "from now"),
			session,
			e.Kind,
			e.Text,
			e.Detail,
		})
	}
	return renderTable(
		[]string{"ID", "When", "Session", "Kind", "Text", "Detail"},
		rows,
		[]columnAlignment{alignRight},
	)
}
