// Package testconfig reads and writes the side-file that hands result file
// locations from the run phase to the verification phase.
//
// The file is JSON:
//
//	{
//	  "resultFilesLocations": ["/work/results/20240315-140509_plan.csv"],
//	  "resultsOutputIsCSVFormat": true
//	}
//
// Keys this package does not know about are preserved on rewrite.
package testconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

const (
	keyLocations = "resultFilesLocations"
	keyCSV       = "resultsOutputIsCSVFormat"
)

// File is the in-memory form of the side-file.
type File struct {
	ResultFilesLocations     []string
	ResultsOutputIsCSVFormat bool

	extra map[string]json.RawMessage
}

// New returns an empty side-file.
func New(csv bool) *File {
	return &File{
		ResultFilesLocations:     []string{},
		ResultsOutputIsCSVFormat: csv,
	}
}

// Load reads the side-file at path. A missing file is an error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test config %s: %w", path, err)
	}
	f := &File{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse test config %s: %w", path, err)
	}
	return f, nil
}

// Save writes the side-file to path. The parent directory must exist.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode test config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write test config %s: %w", path, err)
	}
	return nil
}

// UnmarshalJSON decodes the known keys and keeps the rest verbatim.
func (f *File) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.ResultFilesLocations = []string{}
	if v, ok := raw[keyLocations]; ok {
		if err := json.Unmarshal(v, &f.ResultFilesLocations); err != nil {
			return fmt.Errorf("%s: %w", keyLocations, err)
		}
		if f.ResultFilesLocations == nil {
			f.ResultFilesLocations = []string{}
		}
		delete(raw, keyLocations)
	}
	if v, ok := raw[keyCSV]; ok {
		if err := json.Unmarshal(v, &f.ResultsOutputIsCSVFormat); err != nil {
			return fmt.Errorf("%s: %w", keyCSV, err)
		}
		delete(raw, keyCSV)
	}

	f.extra = raw
	return nil
}

// MarshalJSON encodes the known keys together with any preserved ones.
func (f *File) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(f.extra)+2)
	for k, v := range f.extra {
		out[k] = v
	}

	locations := f.ResultFilesLocations
	if locations == nil {
		locations = []string{}
	}
	loc, err := json.Marshal(locations)
	if err != nil {
		return nil, err
	}
	csv, err := json.Marshal(f.ResultsOutputIsCSVFormat)
	if err != nil {
		return nil, err
	}
	out[keyLocations] = loc
	out[keyCSV] = csv

	return json.Marshal(out)
}

// Extra returns a preserved key's raw JSON value.
func (f *File) Extra(key string) (json.RawMessage, bool) {
	v, ok := f.extra[key]
	return v, ok
}

// Equal reports whether f and o hold the same configuration.
func (f *File) Equal(o *File) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.ResultsOutputIsCSVFormat != o.ResultsOutputIsCSVFormat ||
		!slices.Equal(f.ResultFilesLocations, o.ResultFilesLocations) ||
		len(f.extra) != len(o.extra) {
		return false
	}
	for k, v := range f.extra {
		w, ok := o.extra[k]
		if !ok || !jsonEqual(v, w) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
