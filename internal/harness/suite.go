package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioResult is the outcome of one scenario file in a suite.
type ScenarioResult struct {
	Name          string   `json:"name"`
	File          string   `json:"file"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// SuiteResult aggregates a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without extension.
	Filter string
	// Update rewrites golden files instead of comparing against them.
	Update bool
}

// FindScenarioFiles returns every .yaml/.yml file under dir, sorted.
// Files inside golden directories are skipped.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite runs every scenario under dir. Scenario failures are reported in
// the result; only an unreadable directory returns an error.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (SuiteResult, error) {
	files, err := FindScenarioFiles(dir, opts.Filter)
	if err != nil {
		return SuiteResult{}, err
	}

	suite := SuiteResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		res := RunFile(ctx, file, opts.Update)
		if res.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Scenarios = append(suite.Scenarios, res)
	}
	return suite, nil
}

// RunFile loads, runs and golden-checks one scenario file.
//
// Without a golden file next to the scenario only assertions decide the
// outcome.
func RunFile(ctx context.Context, file string, update bool) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := LoadScenario(file)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name

	result, err := Run(ctx, scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Pass = result.Pass
	res.Errors = result.Errors

	golden := GoldenPath(file)
	if update {
		if err := UpdateGolden(golden, scenario.Name, result); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		res.GoldenUpdated = true
		return res
	}

	match, err := CompareGolden(golden, scenario.Name, result)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
	case !match:
		res.Pass = false
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return res
}
