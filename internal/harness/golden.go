package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chitchat/internal/ir"
)

// GoldenDir holds golden traces, relative to the test's package.
const GoldenDir = "testdata/golden"

// MarshalSnapshot renders the steps and committed events of a run as
// canonical JSON. Identical runs produce byte-identical snapshots.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		step := ir.Object{
			"step":    s.Step,
			"op":      s.Op,
			"caller":  s.Caller,
			"outcome": s.Outcome,
		}
		if s.Result != nil {
			step["result"] = s.Result
		}
		steps[i] = step
	}

	events := make([]any, len(result.Events))
	for i, e := range result.Events {
		payload, err := e.PayloadObject()
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		events[i] = ir.Object{
			"seq":        e.Seq,
			"key":        e.Key.String(),
			"kind":       string(e.Kind),
			"index":      e.Index,
			"payload":    payload,
			"prev":       e.Prev,
			"digest":     e.Digest,
			"request_id": e.RequestID,
		}
	}

	return ir.MarshalCanonical(ir.Object{
		"scenario_name": scenarioName,
		"steps":         steps,
		"events":        events,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
