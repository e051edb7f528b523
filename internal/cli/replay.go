package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statekit/internal/journal"
	"github.com/roach88/statekit/internal/todo"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	ShowState bool // include the replayed final state
}

// ReplayMismatch is one point where the replay disagreed with the journal.
type ReplayMismatch struct {
	RecordID int64  `json:"record_id"`
	Seq      uint64 `json:"seq"`
	Reason   string `json:"reason"`
}

// ReplayReport holds the replay result.
type ReplayReport struct {
	Seq           uint64                     `json:"seq"`
	Applied       int                        `json:"applied"`
	Checkpoints   int                        `json:"checkpoints"`
	Deterministic bool                       `json:"deterministic"`
	Mismatches    []ReplayMismatch           `json:"mismatches,omitempty"`
	State         map[string]json.RawMessage `json:"state,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Re-apply every journaled dispatch to the todo registry's initial state.

Each dispatch must change state exactly when it did originally and land on
the recorded seq, and every checkpoint must encode identically to the
replayed snapshot at that seq.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed (mismatches detected)
  2 - Command error (database not found, etc.)

Examples:
  statekit replay --db ./todo.db
  statekit replay --db ./todo.db --state
  statekit replay --db ./todo.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.ShowState, "state", false, "print the replayed final state")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := requireFile(opts.Database); err != nil {
		return err
	}

	reg, _, err := todo.NewRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build registry", err)
	}
	j, err := journal.Open(opts.Database, journal.WithRegistry(reg))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	res, err := j.Replay(ctx, reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	report := ReplayReport{
		Seq:           res.Snapshot.Seq(),
		Applied:       res.Applied,
		Checkpoints:   res.Checkpoints,
		Deterministic: res.Deterministic(),
	}
	for _, m := range res.Mismatches {
		report.Mismatches = append(report.Mismatches, ReplayMismatch{RecordID: m.RecordID, Seq: m.Seq, Reason: m.Reason})
	}
	if opts.ShowState {
		data, err := reg.Encode(res.Snapshot)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode state", err)
		}
		report.State = data
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if !report.Deterministic {
			cliErr = &CLIError{
				Code:    CodeNonDeterministic,
				Message: fmt.Sprintf("%d mismatch(es) during replay", len(report.Mismatches)),
			}
		}
		if err := respond(cmd.OutOrStdout(), report, cliErr); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd.OutOrStdout(), report)
	}

	if !report.Deterministic {
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	return nil
}

func writeReplayText(w io.Writer, r ReplayReport) {
	fmt.Fprintf(w, "Replayed to seq %d: %d state changes applied, %d checkpoints compared\n",
		r.Seq, r.Applied, r.Checkpoints)
	if r.Deterministic {
		fmt.Fprintln(w, "✓ Replay is deterministic")
	} else {
		fmt.Fprintf(w, "✗ Replay is NOT deterministic (%d mismatches)\n", len(r.Mismatches))
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "  record %d (seq %d): %s\n", m.RecordID, m.Seq, m.Reason)
		}
	}
	if r.State != nil {
		fmt.Fprintln(w, "State:")
		b, err := json.MarshalIndent(r.State, "  ", "  ")
		if err != nil {
			fmt.Fprintf(w, "  <unencodable: %v>\n", err)
			return
		}
		fmt.Fprintf(w, "  %s\n", b)
	}
}
