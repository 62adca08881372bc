package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a trace as golden-file text: a header naming the
// scenario, then one line per event.
//
//	# add_nullable_column
//	applied add_or_alter app_lead_1: ALTER TABLE `app_lead_1` ADD COLUMN `note` text
func FormatTrace(name string, trace []TraceEvent) []byte {
	var buf strings.Builder
	buf.WriteString("# " + name + "\n")
	for _, ev := range trace {
		buf.WriteString(ev.String())
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result.Trace))
}
