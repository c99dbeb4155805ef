package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldnet/internal/config"
	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/harness"
	"github.com/roach88/fieldnet/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Config   string

	// SessionIDs overrides the id generator for recorded sessions (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionIDs engine.SessionIDGenerator
}

// RunSummary is the outcome of one scenario run.
type RunSummary struct {
	Scenario  string             `json:"scenario"`
	SessionID string             `json:"session_id"`
	Pass      bool               `json:"pass"`
	Errors    []string           `json:"errors,omitempty"`
	Events    int                `json:"events"`
	Hash      string             `json:"hash"`
	Recorded  bool               `json:"recorded"`
	Values    map[string]float64 `json:"values"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario",
		Long: `Run one YAML scenario on the scheduler and check its expectations.

With --db the session is journaled to a SQLite database under a fresh
session id, so it can later be inspected with "trace" and checked with
"replay".

Exit codes:
  0 - All expectations held
  1 - An expectation failed or the scheduler hit an invariant breach
  2 - Command error (missing scenario, unreadable database, etc.)

Examples:
  fieldnet run ./scenarios/two-cells.yaml
  fieldnet run --db ./fieldnet.db ./scenarios/feedback-loop.yaml
  fieldnet run --config ./config.cue ./scenarios/dedup.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the session to this SQLite database")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE config overriding the scenario's")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sc, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenarioInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	hopts := []harness.Option{harness.WithLogger(logger)}
	if opts.Config != "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			_ = formatter.Error(ErrCodeConfigInvalid, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		hopts = append(hopts, harness.WithConfig(cfg))
	}

	var rec *store.Recorder
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.SessionIDs
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		sc.SessionID = gen.Generate()
		rec = store.NewRecorder(ctx, st, sc.Name)
		hopts = append(hopts, harness.WithObserver(rec))
	}

	formatter.VerboseLog("running scenario %s (session %s)", sc.Name, sc.SessionID)
	result, err := harness.Run(sc, hopts...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenarioFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario execution failed", err)
	}

	summary := RunSummary{
		Scenario:  sc.Name,
		SessionID: sc.SessionID,
		Pass:      result.Pass,
		Errors:    result.Errors,
		Events:    len(result.Trace.Events),
		Hash:      result.Hash,
		Values:    result.Values,
	}
	if rec != nil {
		if _, err := rec.Finish(); err != nil {
			return WrapExitError(ExitCommandError, "failed to journal session", err)
		}
		summary.Recorded = true
		logger.Info("session journaled", "session", sc.SessionID, "db", opts.Database)
	}

	if formatter.IsJSON() {
		if !summary.Pass {
			_ = formatter.Failure(ErrCodeScenarioFailed, fmt.Sprintf("scenario %s failed", sc.Name), summary)
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", sc.Name))
		}
		return formatter.Success(summary)
	}
	return outputRunText(cmd, summary, opts.Verbose)
}

func outputRunText(cmd *cobra.Command, s RunSummary, verbose bool) error {
	w := cmd.OutOrStdout()

	mark := "✓"
	if !s.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%d events)\n", mark, s.Scenario, s.Events)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if s.Recorded {
		fmt.Fprintf(w, "  session: %s\n", s.SessionID)
	}
	fmt.Fprintf(w, "  hash:    %s\n", s.Hash)

	if verbose {
		refs := make([]string, 0, len(s.Values))
		for ref := range s.Values {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		for _, ref := range refs {
			fmt.Fprintf(w, "  %s = %g\n", ref, s.Values[ref])
		}
	}

	if !s.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", s.Scenario))
	}
	return nil
}
