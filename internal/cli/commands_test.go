package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldnet/internal/engine"
	"github.com/roach88/fieldnet/internal/store"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func scenarioPath(name string) string {
	return filepath.Join(scenariosDir, name+".yaml")
}

// execute runs the root command and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// record journals a scenario under a fixed session id.
func record(t *testing.T, db, scenario, sessionID string) {
	t.Helper()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    db,
		SessionIDs:  engine.NewFixedGenerator(sessionID),
	}
	cmd := newRunCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, scenario})
	require.NoError(t, cmd.Execute(), out.String())
	require.Contains(t, out.String(), "session: "+sessionID)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_TextOutput(t *testing.T) {
	out, err := execute(t, "run", scenarioPath("two-cells"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ two-cells (5 events)")
	assert.Contains(t, out, "hash:")
}

func TestRun_VerboseShowsValues(t *testing.T) {
	out, err := execute(t, "run", "--verbose", scenarioPath("two-cells"))
	require.NoError(t, err)
	assert.Contains(t, out, "cell.a = 1.5")
	assert.Contains(t, out, "cell.b = 3")
}

func TestRun_JSONOutput(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", scenarioPath("feedback-loop"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "feedback-loop", resp.Data.Scenario)
	assert.False(t, resp.Data.Recorded)
	assert.InDelta(t, 2.0, resp.Data.Values["loop.a"], 1e-6)
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_FailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wrong.yaml", `
name: wrong
description: an expectation that does not hold
elements:
  - name: e
    cells:
      - {name: a, rule: sum}
actions:
  - inject: e.a
    delta: 1
    expect:
      values: {e.a: 2}
`)
	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "e.a = 1, want 2")
}

func TestRun_ConfigFlag(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "tight.cue", "scheduler: oscillationLimit: 5\n")

	_, err := execute(t, "run", "--config", cfg, scenarioPath("feedback-loop"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRecordTraceReplay(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	record(t, db, scenarioPath("two-cells"), "sess-1")

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "sess-1")
	assert.Contains(t, out, "two-cells")
	assert.Contains(t, out, "finished")

	out, err = execute(t, "trace", "--db", db, "--session", "sess-1", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Timeline:")
	assert.Contains(t, out, "field:b")
	assert.Contains(t, out, "a=1.5 b=3")
	assert.Contains(t, out, "Phases: input-linking < linking < inference")

	out, err = execute(t, "--format", "json", "trace", "--db", db, "--session", "sess-1", "--element", "1")
	require.NoError(t, err)
	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Events, 5)
	assert.Equal(t, 1, resp.Data.Stats.StepsAdded)
	assert.Equal(t, 1, resp.Data.Stats.StepsExecuted)
	assert.Equal(t, 1, resp.Data.Stats.Elements)
	assert.Equal(t, 1, resp.Data.Stats.Rounds)

	out, err = execute(t, "replay", "--db", db, scenarioPath("two-cells"))
	require.NoError(t, err)
	assert.Contains(t, out, "Session:  sess-1")
	assert.Contains(t, out, "✓ Replay matches recording")
}

func TestRun_HashMatchesJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		Database:    db,
		SessionIDs:  engine.NewFixedGenerator("sess-1"),
	}
	cmd := newRunCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", db, scenarioPath("two-cells")})
	require.NoError(t, cmd.Execute(), out.String())

	var run struct {
		Data RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &run))
	require.True(t, run.Data.Recorded)

	st, err := store.Open(db)
	require.NoError(t, err)
	rec, err := st.ReadSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.Equal(t, rec.TraceHash, run.Data.Hash)

	replayOut, err := execute(t, "--format", "json", "replay", "--db", db, scenarioPath("two-cells"))
	require.NoError(t, err)
	var replay struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(replayOut), &replay))
	assert.Equal(t, run.Data.Hash, replay.Data.ReplayHash)
	assert.Equal(t, run.Data.Hash, replay.Data.RecordedHash)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	record(t, db, scenarioPath("two-cells"), "sess-1")

	changed := writeFile(t, t.TempDir(), "two-cells.yaml", `
name: two-cells
description: same scenario name, different input
elements:
  - name: cell
    cells:
      - {name: a, rule: sum}
      - {name: b, rule: sum, phase: inference}
links:
  - {from: cell.a, to: cell.b, weight: 2}
actions:
  - inject: cell.a
    delta: 2.5
  - drain: {}
`)

	out, err := execute(t, "--format", "json", "replay", "--db", db, changed)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Deterministic)
	assert.Equal(t, 1, resp.Data.DivergedAt)
	assert.NotEqual(t, resp.Data.RecordedHash, resp.Data.ReplayHash)
}

func TestReplay_NoRecordedSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	_, err := execute(t, "replay", "--db", db, scenarioPath("dedup"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_UnknownSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(t, "trace", "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeSessionNotFound)
}

func TestTrace_EmptyDatabase(t *testing.T) {
	out, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestTestCommand_AllScenarios(t *testing.T) {
	out, err := execute(t, "test", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ two-cells")
	assert.Contains(t, out, "✓ network-discovery")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", "--filter", "*-loop", scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
}

func TestTestCommand_Golden(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(scenarioPath("dedup"))
	require.NoError(t, err)
	writeFile(t, dir, "dedup.yaml", string(src))

	out, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")
	golden := filepath.Join(dir, "golden", "dedup.golden")
	require.FileExists(t, golden)

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"events":[]}`), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	valid := writeFile(t, dir, "ok.cue", `phases: ["a", "b"]`+"\n")
	out, err := execute(t, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Config valid")
	assert.Contains(t, out, "phases:            a < b")
	assert.Contains(t, out, "max steps:         100000")

	invalid := writeFile(t, dir, "bad.cue", "phases: []\n")
	out, err = execute(t, "--format", "json", "validate", invalid)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Error)
}
