package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/statekit/internal/config"
	"github.com/roach88/statekit/internal/todo"
)

// ValidationIssue is one problem found in a config file.
type ValidationIssue struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config *config.Config    `json:"config,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file against the schema and the todo
application's effects, then print the effective configuration with all
defaults filled in. Without an argument the --config file is used, or the
built-in defaults when neither is given.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error (file not found, etc.)

Examples:
  statekit validate ./statekit.cue
  statekit validate ./statekit.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", path))
		}
	}
	result := validateConfig(path)

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{
				Code:    CodeInvalidConfig,
				Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
				Details: result.Errors,
			}
			result.Config = nil
		}
		if err := respond(w, result, cliErr); err != nil {
			return err
		}
	} else if err := writeValidateText(w, path, result); err != nil {
		return err
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "configuration is invalid")
	}
	return nil
}

func validateConfig(path string) ValidationResult {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(path)
	}
	if err == nil {
		err = cfg.Validate(todo.EffectNames)
	}
	if err == nil {
		_, err = cfg.EffectOptions()
	}
	if err == nil {
		_, err = cfg.SubscribePolicy()
	}
	if err != nil {
		return ValidationResult{Errors: []ValidationIssue{issueFor(path, err)}}
	}
	return ValidationResult{Valid: true, Config: cfg}
}

func issueFor(path string, err error) ValidationIssue {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		issue := ValidationIssue{File: cfgErr.File, Line: cfgErr.Line, Column: cfgErr.Column, Message: cfgErr.Message}
		if issue.File == "" {
			issue.File = path
		}
		return issue
	}
	return ValidationIssue{File: path, Message: err.Error()}
}

func writeValidateText(w io.Writer, path string, result ValidationResult) error {
	name := path
	if name == "" {
		name = "built-in defaults"
	}
	if !result.Valid {
		fmt.Fprintf(w, "✗ %s\n", name)
		for _, issue := range result.Errors {
			switch {
			case issue.Line > 0:
				fmt.Fprintf(w, "  %s:%d:%d: %s\n", issue.File, issue.Line, issue.Column, issue.Message)
			default:
				fmt.Fprintf(w, "  %s\n", issue.Message)
			}
		}
		return nil
	}

	fmt.Fprintf(w, "✓ %s\n", name)
	b, err := json.MarshalIndent(result.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Fprintf(w, "%s\n", b)
	return nil
}
