package harness

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a run over a directory of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure records one scenario that failed to load, run or pass.
type SuiteFailure struct {
	Scenario string `json:"scenario,omitempty"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// RunSuite loads and runs every scenario file (*.yaml) in dir,
// aggregating the outcomes. Files run in name order so the summary is
// stable. A directory with no scenario files yields an empty result,
// not an error.
func RunSuite(dir string) (*SuiteResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios in %s: %w", dir, err)
	}
	sort.Strings(paths)

	out := &SuiteResult{}
	for _, path := range paths {
		out.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			out.Failed++
			out.Failures = append(out.Failures, SuiteFailure{
				Path:  path,
				Error: fmt.Sprintf("load: %v", err),
			})
			continue
		}

		result, err := Run(scenario)
		if err != nil {
			out.Failed++
			out.Failures = append(out.Failures, SuiteFailure{
				Scenario: scenario.Name,
				Path:     path,
				Error:    fmt.Sprintf("execution: %v", err),
			})
			continue
		}

		if !result.Pass {
			out.Failed++
			out.Failures = append(out.Failures, SuiteFailure{
				Scenario: scenario.Name,
				Path:     path,
				Error:    strings.Join(result.Errors, "; "),
			})
			continue
		}

		out.Passed++
	}

	return out, nil
}
