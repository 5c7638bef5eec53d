package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseJavaVersion(t *testing.T) {
	tests := []struct {
		name        string
		banner      string
		wantVersion string
		wantMajor   int
		wantErr     bool
	}{
		{
			name:        "java 8",
			banner:      "java version \"1.8.0_392\"\nJava(TM) SE Runtime Environment",
			wantVersion: "1.8.0_392",
			wantMajor:   8,
		},
		{
			name:        "openjdk 17",
			banner:      "openjdk version \"17.0.9\" 2023-10-17\nOpenJDK Runtime Environment",
			wantVersion: "17.0.9",
			wantMajor:   17,
		},
		{
			name:        "openjdk 21 early access",
			banner:      "openjdk version \"21-ea\" 2023-09-19",
			wantVersion: "21-ea",
			wantMajor:   21,
		},
		{
			name:    "garbage",
			banner:  "command not found",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, major, err := parseJavaVersion(tt.banner)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseJavaVersion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if major != tt.wantMajor {
				t.Errorf("major = %d, want %d", major, tt.wantMajor)
			}
		})
	}
}

func TestProbeRuntime_Empty(t *testing.T) {
	_, err := ProbeRuntime(context.Background(), "")
	if !errors.Is(err, ErrNoRuntime) {
		t.Errorf("ProbeRuntime(\"\") error = %v, want ErrNoRuntime", err)
	}
}

func TestProbeRuntime_NotFound(t *testing.T) {
	_, err := ProbeRuntime(context.Background(), "/nonexistent/bin/java")
	if err == nil {
		t.Error("ProbeRuntime should fail for a missing runtime")
	}
}

func TestFindRuntimeJar(t *testing.T) {
	home := t.TempDir()
	bin := filepath.Join(home, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("explicit absolute", func(t *testing.T) {
		got, err := FindRuntimeJar(home, "/opt/custom.jar")
		if err != nil || got != "/opt/custom.jar" {
			t.Errorf("FindRuntimeJar() = %q, %v", got, err)
		}
	})

	t.Run("explicit relative joins home", func(t *testing.T) {
		got, err := FindRuntimeJar(home, "lib/custom.jar")
		if err != nil || got != filepath.Join(home, "lib/custom.jar") {
			t.Errorf("FindRuntimeJar() = %q, %v", got, err)
		}
	})

	t.Run("missing jar", func(t *testing.T) {
		if _, err := FindRuntimeJar(home, ""); err == nil {
			t.Error("expected error when bin has no jar")
		}
	})

	t.Run("prefers ApacheJMeter.jar", func(t *testing.T) {
		for _, name := range []string{"ApacheJMeter_core.jar", "ApacheJMeter.jar"} {
			if err := os.WriteFile(filepath.Join(bin, name), nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}
		got, err := FindRuntimeJar(home, "")
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(got) != "ApacheJMeter.jar" {
			t.Errorf("FindRuntimeJar() = %q, want ApacheJMeter.jar", got)
		}
	})
}
