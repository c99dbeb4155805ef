package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fieldnet/internal/trace"
)

// Snapshot is the golden form of a scenario run.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	events := make(trace.Array, len(result.Trace.Events))
	for i, e := range result.Trace.Events {
		events[i] = e.Object()
	}
	return trace.MarshalCanonical(trace.Object{
		"scenario":   scenarioName,
		"session_id": result.Trace.SessionID,
		"events":     events,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
