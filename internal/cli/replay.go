package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldnet/internal/harness"
	"github.com/roach88/fieldnet/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - defaults to the newest session of the scenario
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Scenario      string `json:"scenario"`
	SessionID     string `json:"session_id"`
	RecordedHash  string `json:"recorded_hash"`
	ReplayHash    string `json:"replay_hash"`
	Deterministic bool   `json:"deterministic"`
	Divergence    string `json:"divergence,omitempty"`
	DivergedAt    int    `json:"diverged_at,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run a scenario and verify determinism",
		Long: `Re-run a scenario and compare its trace with a journaled session.

The scheduler orders work by (round, phase, timestamp) only, so a re-run
must reproduce the recorded trace event for event. The first differing
event is reported otherwise.

Exit codes:
  0 - The replay matches the recording
  1 - The traces diverge
  2 - Command error (database not found, no recorded session, etc.)

Examples:
  fieldnet replay --db ./fieldnet.db ./scenarios/feedback-loop.yaml
  fieldnet replay --db ./fieldnet.db --session 0190... ./scenarios/dedup.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "recorded session to compare against")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := context.Background()

	sc, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenarioInvalid, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sessionID := opts.SessionID
	if sessionID == "" {
		if sessionID, err = latestSession(ctx, st, sc.Name); err != nil {
			_ = formatter.Error(ErrCodeSessionNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "no recorded session", err)
		}
	}
	formatter.VerboseLog("replaying %s against session %s", sc.Name, sessionID)

	result, err := harness.Run(sc, harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitFailure, "scenario execution failed", err)
	}

	cmp, err := st.CompareTraces(ctx, sessionID, result.Trace)
	if errors.Is(err, store.ErrSessionNotFound) {
		_ = formatter.Error(ErrCodeSessionNotFound, fmt.Sprintf("session %s not found", sessionID), nil)
		return WrapExitError(ExitCommandError, "session not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compare traces", err)
	}

	out := ReplayResult{
		Scenario:      sc.Name,
		SessionID:     sessionID,
		RecordedHash:  cmp.RecordedHash,
		ReplayHash:    cmp.ReplayHash,
		Deterministic: cmp.Match(),
	}
	if d := cmp.Divergence; d != nil {
		out.Divergence = d.Error()
		out.DivergedAt = d.Index
	}

	if formatter.IsJSON() {
		if !out.Deterministic {
			_ = formatter.Failure(ErrCodeReplayDiverged, out.Divergence, out)
			return NewExitError(ExitFailure, "replay diverged from recording")
		}
		return formatter.Success(out)
	}
	return outputReplayText(cmd, out)
}

// latestSession returns the newest journaled session of a scenario.
func latestSession(ctx context.Context, st *store.Store, scenario string) (string, error) {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].Scenario == scenario {
			return sessions[i].ID, nil
		}
	}
	return "", fmt.Errorf("no session recorded for scenario %q", scenario)
}

func outputReplayText(cmd *cobra.Command, r ReplayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Session:  %s\n", r.SessionID)
	fmt.Fprintf(w, "Recorded: %s\n", r.RecordedHash)
	fmt.Fprintf(w, "Replayed: %s\n", r.ReplayHash)

	if !r.Deterministic {
		fmt.Fprintf(w, "✗ %s\n", r.Divergence)
		return NewExitError(ExitFailure, "replay diverged from recording")
	}
	fmt.Fprintln(w, "✓ Replay matches recording")
	return nil
}
