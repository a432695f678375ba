// Package fusion combines per-phase analysis signals into one verdict and
// score set.
package fusion

import "strings"

// Class is the scoring classification of a fact-check verdict label.
type Class int

const (
	ClassAmbiguous Class = iota // unclear/mixed, leans misleading
	ClassPositive
	ClassNegative
)

// ClassifyVerdictLabel maps a free-form verdict label to a scoring class.
// This is a deliberately loose substring heuristic inherited from the
// upstream behavior: "false" anywhere in the label wins over "true", and
// anything else (including an empty label) is ambiguous. Keep all label
// matching inside this function.
func ClassifyVerdictLabel(verdict string) Class {
	v := strings.ToLower(verdict)
	switch {
	case strings.Contains(v, "false"):
		return ClassNegative
	case strings.Contains(v, "true"):
		return ClassPositive
	default:
		return ClassAmbiguous
	}
}

func (c Class) String() string {
	switch c {
	case ClassNegative:
		return "negative"
	case ClassPositive:
		return "positive"
	default:
		return "ambiguous"
	}
}
