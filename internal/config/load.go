package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// VariableEnvPrefix marks environment variables that become Perfana
// variables, e.g. PERFANA_VARIABLE_USERS=50 -> users=50.
const VariableEnvPrefix = "PERFANA_VARIABLE_"

// Sources lists where configuration is read from besides flags.
type Sources struct {
	ConfigFile string                      // YAML, optional
	EnvFile    string                      // dotenv, optional
	LookupEnv  func(string) (string, bool) // default os.LookupEnv
	Environ    func() []string             // default os.Environ
}

// Load fills cfg in order of increasing precedence: defaults, the YAML
// config file, environment variables, then flags that were set explicitly
// on fs. cfg must be the struct fs was bound to with BindFlags.
func Load(cfg *Config, fs *pflag.FlagSet, src Sources) error {
	if src.LookupEnv == nil {
		src.LookupEnv = os.LookupEnv
	}
	if src.Environ == nil {
		src.Environ = os.Environ
	}

	explicit := snapshotChanged(fs)

	base := DefaultConfig()
	if src.ConfigFile != "" {
		if err := loadFile(base, src.ConfigFile); err != nil {
			return err
		}
	}
	if src.EnvFile != "" {
		dotenv, err := godotenv.Read(src.EnvFile)
		if err != nil {
			return fmt.Errorf("load env file %s: %w", src.EnvFile, err)
		}
		src = src.withDotenv(dotenv)
	}
	if err := applyEnv(base, src.LookupEnv, src.Environ); err != nil {
		return err
	}

	*cfg = *base
	if err := explicit.restore(); err != nil {
		return err
	}

	var err error
	if cfg.Properties, err = mergeKV(cfg.Properties, cfg.PropertyPairs); err != nil {
		return fmt.Errorf("--property: %w", err)
	}
	if cfg.Perfana.Variables, err = mergeKV(cfg.Perfana.Variables, cfg.Perfana.VariablePairs); err != nil {
		return fmt.Errorf("--perfana-variable: %w", err)
	}

	if cfg.Perfana.TestRunID == "" {
		cfg.Perfana.TestRunID = uuid.NewString()
	}
	return nil
}

// withDotenv layers dotenv values under the real environment, so variables
// already set in the process win.
func (s Sources) withDotenv(dotenv map[string]string) Sources {
	lookup, environ := s.LookupEnv, s.Environ
	s.LookupEnv = func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	s.Environ = func() []string {
		env := environ()
		for k, v := range dotenv {
			if _, ok := lookup(k); !ok {
				env = append(env, k+"="+v)
			}
		}
		return env
	}
	return s
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv applies the supported environment overrides.
func applyEnv(cfg *Config, lookup func(string) (string, bool), environ func() []string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"JMETER_HOME", &cfg.JMeterHome},
		{"PERFANA_URL", &cfg.Perfana.URL},
		{"PERFANA_TOKEN", &cfg.Perfana.AuthToken},
		{"PERFANA_APPLICATION", &cfg.Perfana.Application},
		{"PERFANA_TEST_TYPE", &cfg.Perfana.TestType},
		{"PERFANA_TEST_ENVIRONMENT", &cfg.Perfana.TestEnvironment},
		{"PERFANA_TEST_RUN_ID", &cfg.Perfana.TestRunID},
		{"PERFANA_APPLICATION_RELEASE", &cfg.Perfana.ApplicationRelease},
		{"PERFANA_CI_BUILD_RESULTS_URL", &cfg.Perfana.CIBuildResultsURL},
		{"PERFANA_ANNOTATIONS", &cfg.Perfana.Annotations},
		{"UPLOAD_ENDPOINT", &cfg.Upload.Endpoint},
		{"UPLOAD_ACCESS_KEY", &cfg.Upload.AccessKey},
		{"UPLOAD_SECRET_KEY", &cfg.Upload.SecretKey},
		{"UPLOAD_BUCKET", &cfg.Upload.Bucket},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"PERFANA_ENABLED", &cfg.Perfana.Enabled},
		{"PERFANA_ASSERT_RESULTS", &cfg.Perfana.AssertResults},
	}
	for _, b := range bools {
		if v, ok := lookup(b.key); ok && v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dst = parsed
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PERFANA_RAMP_UP", &cfg.Perfana.RampUp},
		{"PERFANA_CONSTANT_LOAD", &cfg.Perfana.ConstantLoad},
	}
	for _, d := range durations {
		if v, ok := lookup(d.key); ok && v != "" {
			parsed, err := parseSeconds(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	// A plain "java" runtime follows JAVA_HOME when it is set.
	if home, ok := lookup("JAVA_HOME"); ok && home != "" && cfg.JavaRuntime == "java" {
		cfg.JavaRuntime = filepath.Join(home, "bin", "java")
	}

	for _, kv := range environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, VariableEnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, VariableEnvPrefix))
		if key == "" {
			continue
		}
		if cfg.Perfana.Variables == nil {
			cfg.Perfana.Variables = make(map[string]string)
		}
		cfg.Perfana.Variables[key] = value
	}
	return nil
}

// parseSeconds accepts a Go duration or a bare number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// flagSnapshot holds the values of explicitly set flags so they can be
// re-applied after the bound struct is overwritten.
type flagSnapshot []flagValue

type flagValue struct {
	flag   *pflag.Flag
	scalar string
	slice  []string
}

func snapshotChanged(fs *pflag.FlagSet) flagSnapshot {
	var snap flagSnapshot
	if fs == nil {
		return snap
	}
	fs.Visit(func(f *pflag.Flag) {
		v := flagValue{flag: f}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.slice = append([]string(nil), sv.GetSlice()...)
		} else {
			v.scalar = f.Value.String()
		}
		snap = append(snap, v)
	})
	return snap
}

func (s flagSnapshot) restore() error {
	for _, v := range s {
		if sv, ok := v.flag.Value.(pflag.SliceValue); ok {
			if err := sv.Replace(v.slice); err != nil {
				return fmt.Errorf("--%s: %w", v.flag.Name, err)
			}
			continue
		}
		if err := v.flag.Value.Set(v.scalar); err != nil {
			return fmt.Errorf("--%s: %w", v.flag.Name, err)
		}
	}
	return nil
}
