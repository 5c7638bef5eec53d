package results

import (
	"regexp"
	"strconv"
	"time"
)

// Summariser is one progress line printed by JMeter's summariser while a
// test runs, for example:
//
//	summary +     10 in 00:00:05 =    2.0/s Avg:    12 Min:     1 Max:    99 Err:     1 (10.00%) Active: 4 Started: 4 Finished: 0
//
// "+" lines cover the last interval, "=" lines the whole run so far.
type Summariser struct {
	Cumulative bool
	Samples    int64
	Rate       float64
	Avg        time.Duration
	Min        time.Duration
	Max        time.Duration
	Errors     int64
	Active     int
}

var summariserRe = regexp.MustCompile(
	`^summary ([+=])\s+(\d+) in\s+\S+\s+=\s+([\d.]+)/s Avg:\s+(\d+) Min:\s+(\d+) Max:\s+(\d+) Err:\s+(\d+)(?: \([\d.]+%\))?(?: Active: (\d+))?`)

// ParseSummariser parses a summariser line. ok is false for any other line.
func ParseSummariser(line string) (s Summariser, ok bool) {
	m := summariserRe.FindStringSubmatch(line)
	if m == nil {
		return Summariser{}, false
	}

	s.Cumulative = m[1] == "="
	s.Samples, _ = strconv.ParseInt(m[2], 10, 64)
	s.Rate, _ = strconv.ParseFloat(m[3], 64)
	s.Avg = parseMs(m[4])
	s.Min = parseMs(m[5])
	s.Max = parseMs(m[6])
	s.Errors, _ = strconv.ParseInt(m[7], 10, 64)
	if m[8] != "" {
		s.Active, _ = strconv.Atoi(m[8])
	}
	return s, true
}

func parseMs(v string) time.Duration {
	n, _ := strconv.ParseInt(v, 10, 64)
	return time.Duration(n) * time.Millisecond
}
