package sentiment

import (
	"fmt"
	"strings"
)

// Grade is a four-level sentiment label.
type Grade string

const (
	BigBad  Grade = "big_bad"
	Bad     Grade = "bad"
	Good    Grade = "good"
	BigGood Grade = "big_good"
)

// Grades lists every grade from most positive to most negative.
var Grades = []Grade{BigGood, Good, Bad, BigBad}

// Result is the output of a classification.
type Result struct {
	Grade      Grade
	Confidence float64
}

// Neutral is returned when no tier could classify a text.
var Neutral = Result{Grade: Good, Confidence: 0.5}

// Rank orders grades: BigBad < Bad < Good < BigGood. Unknown grades rank 0.
func (g Grade) Rank() int {
	switch g {
	case BigBad:
		return 1
	case Bad:
		return 2
	case Good:
		return 3
	case BigGood:
		return 4
	}
	return 0
}

// Less reports whether g is more negative than o.
func (g Grade) Less(o Grade) bool {
	return g.Rank() < o.Rank()
}

func (g Grade) Valid() bool {
	return g.Rank() > 0
}

// Label is the upper-case display form, e.g. BIG_GOOD.
func (g Grade) Label() string {
	return strings.ToUpper(string(g))
}

// ParseGrade accepts either spelling of a grade ("big_good" or "BIG_GOOD").
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("unknown grade %q", s)
	}
	return g, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
