package results

import (
	"testing"
)

// =============================================================================
// Tests: Policy
// =============================================================================

func TestPolicy_Normalize(t *testing.T) {
	tests := []struct {
		name          string
		in            Policy
		wantFailure   bool
		wantCorrected bool
	}{
		{"failures matter but not scanned", Policy{ScanSuccess: true}, true, true},
		{"failures matter and scanned", Policy{ScanFailure: true}, true, false},
		{"failures ignored and not scanned", Policy{IgnoreFailures: true}, false, false},
		{"failures ignored but scanned", Policy{ScanFailure: true, IgnoreFailures: true}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, corrected := tt.in.Normalize()
			if got.ScanFailure != tt.wantFailure {
				t.Errorf("ScanFailure = %v, want %v", got.ScanFailure, tt.wantFailure)
			}
			if corrected != tt.wantCorrected {
				t.Errorf("corrected = %v, want %v", corrected, tt.wantCorrected)
			}
			if got.ScanSuccess != tt.in.ScanSuccess || got.IgnoreFailures != tt.in.IgnoreFailures {
				t.Error("Normalize changed unrelated fields")
			}
		})
	}
}

func TestPolicy_NormalizeDoesNotMutate(t *testing.T) {
	p := Policy{}
	p.Normalize()
	if p.ScanFailure {
		t.Error("Normalize mutated the receiver")
	}
}

// =============================================================================
// Tests: Decide
// =============================================================================

func TestDecide(t *testing.T) {
	tests := []struct {
		failures int64
		ignore   bool
		want     bool
	}{
		{0, false, true},
		{0, true, true},
		{1, false, false},
		{1, true, true},
		{500, false, false},
	}

	for _, tt := range tests {
		if got := Decide(tt.failures, tt.ignore); got != tt.want {
			t.Errorf("Decide(%d, %v) = %v, want %v", tt.failures, tt.ignore, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: Report
// =============================================================================

func TestReport_FailurePercent(t *testing.T) {
	tests := []struct {
		name  string
		tally Tally
		want  string
	}{
		{"empty", Tally{}, "0.00"},
		{"no failures", Tally{Success: 10}, "0.00"},
		{"all failures", Tally{Failure: 4}, "100.00"},
		{"one third", Tally{Success: 2, Failure: 1}, "33.33"},
		{"two thirds", Tally{Success: 1, Failure: 2}, "66.67"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report{Tally: tt.tally}
			if got := r.FailurePercent().StringFixed(2); got != tt.want {
				t.Errorf("FailurePercent() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTally_Add(t *testing.T) {
	a := Tally{Success: 3, Failure: 1}
	b := Tally{Success: 2, Failure: 5}

	got := a.Add(b)
	if got.Success != 5 || got.Failure != 6 {
		t.Errorf("Add() = %+v", got)
	}
	if a.Success != 3 {
		t.Error("Add mutated the receiver")
	}
}

// =============================================================================
// Tests: Format
// =============================================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"xml", FormatXML, false},
		{"jtl", FormatXML, false},
		{"json", FormatCSV, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatFromCSVFlag(t *testing.T) {
	if FormatFromCSVFlag(true) != FormatCSV {
		t.Error("true should map to CSV")
	}
	if FormatFromCSVFlag(false) != FormatXML {
		t.Error("false should map to XML")
	}
	if FormatCSV.String() != "csv" || FormatXML.String() != "xml" || Format(9).String() != "unknown" {
		t.Error("Format.String mismatch")
	}
}
