package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"

	"github.com/randomizedcoder/go-jmeter-runner/internal/process"
)

// ErrNoTestDirectory is returned by DiscoverTestFiles when the test files
// directory does not exist. The run is skipped, not failed.
var ErrNoTestDirectory = errors.New("test files directory does not exist")

// DiscoverTestFiles returns the test plans under dir matching any include
// pattern and no exclude pattern, sorted. Patterns are relative to dir and
// may use "**" to cross directories.
func DiscoverTestFiles(dir string, include, exclude []string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoTestDirectory, dir)
	}

	seen := make(map[string]bool)
	var files []string

	for _, pattern := range include {
		matches, err := zglob.Glob(filepath.Join(dir, pattern))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}

		for _, m := range matches {
			if seen[m] {
				continue
			}
			if fi, err := os.Stat(m); err != nil || fi.IsDir() {
				continue
			}
			excluded, err := matchesAny(exclude, dir, m)
			if err != nil {
				return nil, err
			}
			seen[m] = true
			if !excluded {
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func matchesAny(patterns []string, dir, path string) (bool, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range patterns {
		ok, err := zglob.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// PlanNames maps every test plan to the name its result, log and report
// files are derived from. Plans keep their base name unless another plan
// shares it; those use their path relative to dir with separators
// replaced by underscores.
func PlanNames(dir string, files []string) map[string]string {
	count := make(map[string]int, len(files))
	for _, f := range files {
		count[process.PlanName(f)]++
	}

	names := make(map[string]string, len(files))
	for _, f := range files {
		name := process.PlanName(f)
		if count[name] > 1 {
			if rel, err := filepath.Rel(dir, f); err == nil && !strings.HasPrefix(rel, "..") {
				rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
				name = strings.ReplaceAll(rel, "/", "_")
			}
		}
		names[f] = name
	}
	return names
}
