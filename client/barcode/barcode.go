// Package barcode validates truck barcode reads and filters the noisy stream
// a camera scanner produces into a single stable code.
package barcode

import (
	"regexp"
	"strings"
)

// A format-failing read must recur minOccurrences times within the last
// historyLimit raw reads before it is trusted.
const (
	historyLimit   = 10
	minOccurrences = 2
)

// Truck barcodes come in two shapes: the canonical SGI form
// (three letters, three digits, dash, at least eight digits) and a looser
// legacy form restricted by charset and length.
var (
	canonicalPattern = regexp.MustCompile(`^[A-Z]{3}\d{3}-\d{8,}$`)
	legacyPattern    = regexp.MustCompile(`^[A-Z0-9\-]+$`)
)

// Normalize trims whitespace and uppercases a raw read.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate reports whether a normalized code is an acceptable truck barcode.
func Validate(code string) bool {
	code = Normalize(code)
	if len(code) < 3 {
		return false
	}
	if canonicalPattern.MatchString(code) {
		return true
	}
	return len(code) >= 8 && len(code) <= 30 && legacyPattern.MatchString(code)
}

// IsCanonical reports whether a code is in the canonical SGI form. A
// canonical barcode doubles as the SPK trip number, verbatim, so it can be
// resolved against the ERP without a plate lookup.
func IsCanonical(code string) bool {
	return canonicalPattern.MatchString(Normalize(code))
}

// Detector filters the per-frame reads a camera scanner produces. Acceptance
// is two-stage: a read passing format validation is accepted immediately;
// a failing read is accepted only once it recurs among the recent raw reads,
// which rescues long dense barcodes that misread a digit per frame. Once a
// code is accepted further frames are ignored until Reset; stopping the frame
// source is the caller's duty. Not safe for concurrent use.
type Detector struct {
	history  []string
	accepted string
}

// NewDetector returns an empty detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Feed records one raw read and reports the accepted code, if any.
func (d *Detector) Feed(raw string) (code string, ok bool) {
	if d.accepted != "" {
		return d.accepted, true
	}

	code = Normalize(raw)
	if Validate(code) {
		d.accepted = code
		return code, true
	}
	if len(code) < 3 {
		return "", false
	}

	d.history = append(d.history, code)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}

	count := 0
	for _, c := range d.history {
		if c == code {
			count++
		}
	}
	if count >= minOccurrences {
		d.accepted = code
		return code, true
	}
	return "", false
}

// Accepted returns the accepted code, if one has been reached.
func (d *Detector) Accepted() (string, bool) {
	return d.accepted, d.accepted != ""
}

// Reset discards the read history and any accepted code, e.g. when the
// scanner view is reopened.
func (d *Detector) Reset() {
	d.history = d.history[:0]
	d.accepted = ""
}
