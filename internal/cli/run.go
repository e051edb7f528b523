package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/statekit/internal/config"
	"github.com/roach88/statekit/internal/harness"
	"github.com/roach88/statekit/internal/journal"
	"github.com/roach88/statekit/internal/metrics"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/todo"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // journal path; overrides journal.path in the config
	Resume   bool   // continue from the state already in the journal
	Metrics  bool   // print collected metrics after the run
}

// RunReport is the outcome of one run command.
type RunReport struct {
	Scenario string           `json:"scenario"`
	Pass     bool             `json:"pass"`
	Errors   []string         `json:"errors,omitempty"`
	Seq      uint64           `json:"seq"`
	Journal  string           `json:"journal,omitempty"`
	Metrics  []metrics.Sample `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against the todo application",
		Long: `Run one scenario file against a fresh todo application.

With a journal (--db or journal.path in the config) every dispatch is
appended to the SQLite database and a checkpoint is written once the run
settles. A journal that already holds dispatches is refused unless
--resume is given, in which case the store starts from the journaled state.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (bad config, unreadable files, journal errors)

Examples:
  statekit run ./scenarios/counter.yaml
  statekit run --db ./todo.db ./scenarios/optimistic_rollback.yaml
  statekit run --db ./todo.db --resume --metrics ./scenarios/counter.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "resume from the state in an existing journal")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print collected metrics")

	return cmd
}

func runScenarioFile(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := opts.logger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	collector, err := metrics.New(prometheus.NewRegistry(), metrics.DefaultNamespace)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create metrics", err)
	}
	runOpts := []harness.Option{
		harness.WithConfig(cfg),
		harness.WithLogger(logger),
		harness.WithObserver(collector),
		harness.WithEffectMonitor(collector),
	}

	report := RunReport{Scenario: scenario.Name}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal.Path
	}
	var j *journal.Journal
	if dbPath != "" {
		j, err = openRunJournal(ctx, dbPath, cfg, opts.Resume, logger)
		if err != nil {
			return err
		}
		defer j.Close()

		report.Journal = dbPath
		runOpts = append(runOpts, harness.WithObserver(j))
		if opts.Resume {
			runOpts = append(runOpts, harness.WithHydrator(j))
		}
	}

	runOpts = append(runOpts, settle(&report.Seq, j))

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", scenario.Name), err)
	}
	if j != nil {
		if err := j.Err(); err != nil {
			return WrapExitError(ExitCommandError, "journal write failed", err)
		}
	}

	report.Pass = result.Pass
	report.Errors = result.Errors
	if opts.Metrics {
		report.Metrics, err = collector.Samples()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if !report.Pass {
			cliErr = &CLIError{
				Code:    CodeScenarioFailed,
				Message: fmt.Sprintf("scenario %s failed", report.Scenario),
			}
		}
		if err := respond(cmd.OutOrStdout(), report, cliErr); err != nil {
			return err
		}
	} else {
		writeRunText(cmd.OutOrStdout(), report)
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
	}
	return nil
}

// openRunJournal opens the journal at path. Without resume the journal
// must hold no dispatches.
func openRunJournal(ctx context.Context, path string, cfg *config.Config, resume bool, logger *slog.Logger) (*journal.Journal, error) {
	reg, _, err := todo.NewRegistry()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build registry", err)
	}

	jopts := []journal.Option{
		journal.WithRegistry(reg),
		journal.WithCheckpointEvery(uint64(cfg.Journal.CheckpointEvery)),
		journal.WithLogger(logger),
	}
	j, err := journal.Open(path, jopts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	if !resume {
		records, err := j.ReadActions(ctx)
		if err != nil {
			j.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		if len(records) > 0 {
			j.Close()
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("journal %s already holds %d dispatches (use --resume to continue it)", path, len(records)))
		}
	} else {
		logger.Warn("resuming from journal; correlation ids restart at the scenario prefix", "path", path)
	}
	return j, nil
}

// settle records the final seq and, with a journal, checkpoints the
// settled snapshot.
func settle(seq *uint64, j *journal.Journal) harness.Option {
	return harness.WithSettled(func(ctx context.Context, s *store.Store) error {
		*seq = s.Snapshot().Seq()
		if j == nil {
			return nil
		}
		return j.CheckpointSnapshot(ctx, s.Snapshot())
	})
}

func writeRunText(w io.Writer, report RunReport) {
	if report.Pass {
		fmt.Fprintf(w, "✓ %s (seq %d)\n", report.Scenario, report.Seq)
	} else {
		fmt.Fprintf(w, "✗ %s (seq %d)\n", report.Scenario, report.Seq)
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if report.Journal != "" {
		fmt.Fprintf(w, "Journal: %s\n", report.Journal)
	}
	if len(report.Metrics) > 0 {
		fmt.Fprintln(w, "Metrics:")
		for _, s := range report.Metrics {
			fmt.Fprintf(w, "  %s %g\n", s.Key(), s.Value)
		}
	}
}
