package results

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
)

// scanXML counts sample elements carrying an s="true|false" attribute.
// Nested sub-samples count as records of their own.
//
// JMeter appends to the file while the test runs, so a document cut off
// at the end keeps the records read so far. Any other syntax error fails
// the file.
func scanXML(r io.Reader, policy Policy, observe func(ms float64)) (Tally, error) {
	dec := xml.NewDecoder(r)

	var tally Tally
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return tally, nil
		}
		if err != nil {
			if isTruncated(err) {
				return tally, nil
			}
			return Tally{}, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var success, elapsed string
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "s":
				success = attr.Value
			case "t":
				elapsed = attr.Value
			}
		}

		switch success {
		case "true":
			if policy.ScanSuccess {
				tally.Success++
			}
		case "false":
			if policy.ScanFailure {
				tally.Failure++
			}
		default:
			continue
		}

		if observe != nil && elapsed != "" {
			if ms, err := strconv.ParseFloat(elapsed, 64); err == nil {
				observe(ms)
			}
		}
	}
}

// isTruncated reports whether err is the decoder hitting end of input
// inside an open element.
func isTruncated(err error) bool {
	var se *xml.SyntaxError
	return errors.As(err, &se) && se.Msg == "unexpected EOF"
}
