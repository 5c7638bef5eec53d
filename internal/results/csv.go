package results

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Column positions in JMeter's default CSV layout, used when a file has
// no header row:
// timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,...
const (
	defaultElapsedColumn = 1
	defaultSuccessColumn = 7
)

// scanCSV counts success and failure records in a JMeter CSV file.
// observe is called with the elapsed time in milliseconds of each record.
func scanCSV(r io.Reader, policy Policy, observe func(ms float64)) (Tally, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Tally{}, nil
	}
	if err != nil {
		return Tally{}, err
	}

	successCol, elapsedCol := defaultSuccessColumn, defaultElapsedColumn
	header := false
	if idx := columnIndex(record, "success"); idx >= 0 && !hasBoolCell(record) {
		header = true
		successCol = idx
		elapsedCol = columnIndex(record, "elapsed")
	}

	var tally Tally
	count := func(rec []string) {
		if successCol >= len(rec) {
			return
		}
		switch strings.ToLower(strings.TrimSpace(rec[successCol])) {
		case "true":
			if policy.ScanSuccess {
				tally.Success++
			}
		case "false":
			if policy.ScanFailure {
				tally.Failure++
			}
		default:
			return
		}
		if observe != nil && elapsedCol >= 0 && elapsedCol < len(rec) {
			if ms, err := strconv.ParseFloat(strings.TrimSpace(rec[elapsedCol]), 64); err == nil {
				observe(ms)
			}
		}
	}

	if !header {
		count(record)
	}

	for {
		record, err = cr.Read()
		if errors.Is(err, io.EOF) {
			return tally, nil
		}
		if err != nil {
			return Tally{}, err
		}
		count(record)
	}
}

// hasBoolCell reports whether any cell holds true or false. Every sample
// row carries its success flag, a header row never does.
func hasBoolCell(record []string) bool {
	for _, c := range record {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "true", "false":
			return true
		}
	}
	return false
}

// columnIndex returns the index of name in header, ignoring case, or -1.
func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
