package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// RuntimeInfo describes the java runtime found by ProbeRuntime.
type RuntimeInfo struct {
	Path    string
	Version string
	Major   int
}

var javaVersionRe = regexp.MustCompile(`version "([^"]+)"`)

// ProbeRuntime runs "<java> -version" and parses the reported version.
// The JVM prints its version banner on stderr.
func ProbeRuntime(ctx context.Context, javaRuntime string) (RuntimeInfo, error) {
	if javaRuntime == "" {
		return RuntimeInfo{}, ErrNoRuntime
	}

	path, err := exec.LookPath(javaRuntime)
	if err != nil {
		return RuntimeInfo{}, fmt.Errorf("java runtime %q not found: %w", javaRuntime, err)
	}

	output, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		return RuntimeInfo{}, fmt.Errorf("%s -version failed: %w", path, err)
	}

	version, major, err := parseJavaVersion(string(output))
	if err != nil {
		return RuntimeInfo{}, err
	}

	return RuntimeInfo{Path: path, Version: version, Major: major}, nil
}

// parseJavaVersion extracts the version string and major number from a
// "java -version" banner. Legacy versions report "1.8.0_x" for Java 8.
func parseJavaVersion(banner string) (string, int, error) {
	m := javaVersionRe.FindStringSubmatch(banner)
	if m == nil {
		return "", 0, errors.New("unable to parse java version output")
	}
	version := m[1]

	parts := strings.FieldsFunc(version, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return version, 0, nil
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return version, 0, nil
	}
	if major == 1 && len(parts) > 1 {
		if minor, err := strconv.Atoi(parts[1]); err == nil {
			major = minor
		}
	}

	return version, major, nil
}

// FindRuntimeJar locates the ApacheJMeter jar under <home>/bin.
// An explicit jar path is returned unchanged.
func FindRuntimeJar(home, jar string) (string, error) {
	if jar != "" {
		if filepath.IsAbs(jar) || home == "" {
			return jar, nil
		}
		return filepath.Join(home, jar), nil
	}

	matches, err := filepath.Glob(filepath.Join(home, "bin", "ApacheJMeter*.jar"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if filepath.Base(m) == "ApacheJMeter.jar" {
			return m, nil
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no ApacheJMeter jar found in %s", filepath.Join(home, "bin"))
	}
	return matches[0], nil
}
