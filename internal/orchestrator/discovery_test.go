package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Tests: DiscoverTestFiles
// =============================================================================

func TestDiscoverTestFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"login.jmx",
		"checkout.jmx",
		"nested/search.jmx",
		"nested/deep/smoke.jmx",
		"nested/notes.txt",
		"wip/draft.jmx",
	} {
		writeFile(t, filepath.Join(dir, name), "")
	}
	if err := os.MkdirAll(filepath.Join(dir, "folder.jmx"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{
			name:    "recursive_default",
			include: []string{"**/*.jmx"},
			want:    []string{"checkout.jmx", "login.jmx", "nested/deep/smoke.jmx", "nested/search.jmx", "wip/draft.jmx"},
		},
		{
			name:    "top_level_only",
			include: []string{"*.jmx"},
			want:    []string{"checkout.jmx", "login.jmx"},
		},
		{
			name:    "exclude_directory",
			include: []string{"**/*.jmx"},
			exclude: []string{"wip/*"},
			want:    []string{"checkout.jmx", "login.jmx", "nested/deep/smoke.jmx", "nested/search.jmx"},
		},
		{
			name:    "exclude_by_name",
			include: []string{"**/*.jmx"},
			exclude: []string{"**/smoke.jmx", "login.jmx"},
			want:    []string{"checkout.jmx", "nested/search.jmx", "wip/draft.jmx"},
		},
		{
			name:    "overlapping_includes_dedupe",
			include: []string{"*.jmx", "login.jmx", "**/*.jmx"},
			exclude: []string{"nested/**/*.jmx", "wip/*"},
			want:    []string{"checkout.jmx", "login.jmx"},
		},
		{
			name:    "no_match",
			include: []string{"**/*.xml"},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiscoverTestFiles(dir, tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("DiscoverTestFiles() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i, rel := range tt.want {
				if want := filepath.Join(dir, filepath.FromSlash(rel)); got[i] != want {
					t.Errorf("[%d] = %s, want %s", i, got[i], want)
				}
			}
		})
	}
}

func TestDiscoverTestFiles_MissingDirectory(t *testing.T) {
	_, err := DiscoverTestFiles(filepath.Join(t.TempDir(), "none"), []string{"**/*.jmx"}, nil)
	if !errors.Is(err, ErrNoTestDirectory) {
		t.Errorf("error = %v, want ErrNoTestDirectory", err)
	}

	file := filepath.Join(t.TempDir(), "plan.jmx")
	writeFile(t, file, "")
	if _, err := DiscoverTestFiles(file, []string{"*.jmx"}, nil); !errors.Is(err, ErrNoTestDirectory) {
		t.Errorf("a regular file is not a test directory: %v", err)
	}
}

// =============================================================================
// Tests: PlanNames
// =============================================================================

func TestPlanNames(t *testing.T) {
	dir := filepath.Join("/", "plans")

	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{
			name:  "unique_names_keep_base",
			files: []string{"login.jmx", "nested/search.jmx"},
			want:  []string{"login", "search"},
		},
		{
			name:  "shared_name_uses_relative_path",
			files: []string{"a/plan.jmx", "b/plan.jmx", "login.jmx"},
			want:  []string{"a_plan", "b_plan", "login"},
		},
		{
			name:  "top_level_and_nested_clash",
			files: []string{"plan.jmx", "deep/er/plan.jmx"},
			want:  []string{"plan", "deep_er_plan"},
		},
		{
			name:  "dotted_names",
			files: []string{"load.v2.jmx"},
			want:  []string{"load.v2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make([]string, len(tt.files))
			for i, f := range tt.files {
				files[i] = filepath.Join(dir, filepath.FromSlash(f))
			}

			names := PlanNames(dir, files)
			if len(names) != len(files) {
				t.Fatalf("PlanNames() = %v, want %d entries", names, len(files))
			}
			for i, f := range files {
				if names[f] != tt.want[i] {
					t.Errorf("PlanNames()[%s] = %q, want %q", tt.files[i], names[f], tt.want[i])
				}
			}
		})
	}
}
