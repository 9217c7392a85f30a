package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"menunotice/internal/app"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var (
		realtime bool
		tail     time.Duration
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured host script and print the resulting menu state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.NewApp(app.Options{ConfigPath: *configFlag, Realtime: realtime, Tail: tail})
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}

			reason := app.StopScriptDone
			select {
			case <-a.Finished():
			case <-a.Done():
				reason = app.StopFatalError
				if ctx.Err() != nil {
					reason = app.StopSignal
				}
			}
			snap := a.Snapshot()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = a.Stop(stopCtx, reason)
			if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if reason == app.StopSignal {
				return context.Canceled
			}

			if asJSON {
				return writeJSON(cmd, snap)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRunSummary(snap))
			return nil
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Pace frames with the wall clock instead of running them back to back")
	cmd.Flags().DurationVar(&tail, "tail", 0, "Keep the host running this long after the last script step (default 5s)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final snapshot as JSON")
	return cmd
}

func renderRunSummary(s app.Snapshot) string {
	var b strings.Builder
	c := s.Coordinator
	fmt.Fprintf(&b, "Simulated %s, coordinator %s", s.Elapsed.Round(time.Millisecond), c.State)
	if c.Session != "" {
		fmt.Fprintf(&b, " (session %s)", c.Session)
	}
	b.WriteString("\n")
	if c.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", c.Err)
	}

	if len(s.History) > 0 {
		rows := make([][]string, 0, len(s.History))
		for i, h := range s.History {
			mode := "queued"
			if h.Direct {
				mode = "direct"
			}
			rows = append(rows, []string{
				humanize.Comma(int64(i + 1)),
				"+" + h.At.Sub(s.Start).Round(time.Millisecond).String(),
				mode,
				h.Text,
			})
		}
		b.WriteString("\nDelivered\n")
		b.WriteString(renderTable([]string{"#", "At", "Mode", "Text"}, rows, []columnAlignment{alignRight, alignRight}))
		b.WriteString("\n")
	}

	b.WriteString("\nOn screen\n")
	if len(s.Visible) == 0 {
		b.WriteString("  (nothing)\n")
	}
	for _, v := range s.Visible {
		fmt.Fprintf(&b, "  %s\n", v)
	}
	return b.String()
}
