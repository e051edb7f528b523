package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/statekit/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database    string
	Correlation string // optional; list correlations when empty
	Action      string // optional; filter the timeline to one action type
}

// TraceEvent is one journaled dispatch in a timeline.
type TraceEvent struct {
	ID        int64  `json:"id"`
	Seq       uint64 `json:"seq"`
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Changed   bool   `json:"changed"`
}

// TraceResult holds the timeline of one correlation id.
type TraceResult struct {
	CorrelationID string       `json:"correlation_id"`
	Timeline      []TraceEvent `json:"timeline"`
	Stats         TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for a timeline.
type TraceStats struct {
	TotalEvents int    `json:"total_events"`
	Changed     int    `json:"changed"`
	Unchanged   int    `json:"unchanged"`
	FirstSeq    uint64 `json:"first_seq"`
	LastSeq     uint64 `json:"last_seq"`
}

// CorrelationListing is one row of the correlation listing.
type CorrelationListing struct {
	CorrelationID string `json:"correlation_id"`
	Actions       int    `json:"actions"`
	FirstSeq      uint64 `json:"first_seq"`
	LastSeq       uint64 `json:"last_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled dispatches by correlation id",
		Long: `Show the journaled dispatches that share a correlation id.

An optimistic update, the effect it triggered, and the confirmation or
compensating rollback that followed all carry the same correlation id, so
the timeline reads as the full life of one user intent. Without
--correlation the known correlation ids are listed.

Examples:
  statekit trace --db ./todo.db
  statekit trace --db ./todo.db --correlation done-1
  statekit trace --db ./todo.db --correlation done-1 --action todo/revertDone
  statekit trace --db ./todo.db --correlation done-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Correlation, "correlation", "", "correlation id to trace")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to a specific action type")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := requireFile(opts.Database); err != nil {
		return err
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Correlation == "" {
		return listCorrelations(ctx, opts, j, cmd)
	}

	records, err := j.ReadCorrelation(ctx, opts.Correlation)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read correlation", err)
	}
	if len(records) == 0 {
		if opts.Format == "json" {
			return respond(cmd.OutOrStdout(), TraceResult{CorrelationID: opts.Correlation, Timeline: []TraceEvent{}},
				&CLIError{Code: CodeNotFound, Message: fmt.Sprintf("no dispatches for correlation %s", opts.Correlation)})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No dispatches found for correlation: %s\n", opts.Correlation)
		return nil
	}

	result := TraceResult{
		CorrelationID: opts.Correlation,
		Timeline:      buildTimeline(records, opts.Action),
	}
	result.Stats = timelineStats(result.Timeline)

	if opts.Format == "json" {
		return respond(cmd.OutOrStdout(), result, nil)
	}
	writeTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

func listCorrelations(ctx context.Context, opts *TraceOptions, j *journal.Journal, cmd *cobra.Command) error {
	summaries, err := j.ListCorrelations(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list correlations", err)
	}
	listing := make([]CorrelationListing, 0, len(summaries))
	for _, s := range summaries {
		listing = append(listing, CorrelationListing{
			CorrelationID: s.CorrelationID,
			Actions:       s.Actions,
			FirstSeq:      s.FirstSeq,
			LastSeq:       s.LastSeq,
		})
	}

	if opts.Format == "json" {
		return respond(cmd.OutOrStdout(), listing, nil)
	}
	w := cmd.OutOrStdout()
	if len(listing) == 0 {
		fmt.Fprintln(w, "No correlations found in journal.")
		return nil
	}
	fmt.Fprintf(w, "%-24s %8s %10s %10s\n", "CORRELATION", "ACTIONS", "FIRST SEQ", "LAST SEQ")
	for _, l := range listing {
		fmt.Fprintf(w, "%-24s %8d %10d %10d\n", l.CorrelationID, l.Actions, l.FirstSeq, l.LastSeq)
	}
	return nil
}

// buildTimeline converts journal records to timeline events. When
// actionFilter is set only dispatches of that type are kept.
func buildTimeline(records []journal.Record, actionFilter string) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(records))
	for _, r := range records {
		if actionFilter != "" && r.Action.Type != actionFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			ID:        r.ID,
			Seq:       r.Seq,
			Type:      r.Action.Type,
			Payload:   r.Action.Payload,
			Timestamp: r.Action.Meta.Timestamp,
			Changed:   r.Changed,
		})
	}
	return timeline
}

func timelineStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(timeline)}
	for i, e := range timeline {
		if e.Changed {
			stats.Changed++
		} else {
			stats.Unchanged++
		}
		if i == 0 || e.Seq < stats.FirstSeq {
			stats.FirstSeq = e.Seq
		}
		if e.Seq > stats.LastSeq {
			stats.LastSeq = e.Seq
		}
	}
	return stats
}

func writeTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Correlation: %s\n\n", result.CorrelationID)
	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		marker := " "
		if !e.Changed {
			marker = "="
		}
		fmt.Fprintf(w, "  %s [seq %d] %s", marker, e.Seq, e.Type)
		if verbose && e.Payload != nil {
			if b, err := json.Marshal(e.Payload); err == nil {
				fmt.Fprintf(w, " %s", b)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\nStats: %d events (%d changed, %d unchanged), seq %d..%d\n",
		result.Stats.TotalEvents, result.Stats.Changed, result.Stats.Unchanged,
		result.Stats.FirstSeq, result.Stats.LastSeq)
}

// requireFile rejects a journal path that does not exist; opening an
// absent journal would silently create an empty one.
func requireFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	} else if err != nil {
		return WrapExitError(ExitCommandError, "failed to stat journal", err)
	}
	return nil
}
