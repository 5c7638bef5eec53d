package results

// Policy selects which record kinds are counted and whether failures fail
// the run.
type Policy struct {
	ScanSuccess    bool
	ScanFailure    bool
	IgnoreFailures bool
}

// Normalize returns the effective policy. Failures can only fail a run if
// they are counted, so when failures matter but are not scanned, scanning
// is forced on. The bool reports whether that correction was applied.
func (p Policy) Normalize() (Policy, bool) {
	if !p.IgnoreFailures && !p.ScanFailure {
		p.ScanFailure = true
		return p, true
	}
	return p, false
}
