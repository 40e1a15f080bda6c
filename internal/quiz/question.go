// Package quiz holds the question model exchanged between the generator and the dispatcher.
package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// Question is one multiple choice question. It is created per cycle and never stored.
type Question struct {
	Stem         string
	Options      []string
	CorrectIndex int
	Explanation  string
}

// Validate checks the structural invariants: a non-empty stem, exactly four
// non-empty options, and a correct index that points into them.
func (q *Question) Validate() error {
	if q == nil {
		return errors.New("question is nil")
	}
	if strings.TrimSpace(q.Stem) == "" {
		return errors.New("question stem is empty")
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("expected %d options, got %d", OptionCount, len(q.Options))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %s is empty", Letter(i))
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("correct index %d out of range [0,%d]", q.CorrectIndex, len(q.Options)-1)
	}
	return nil
}

// CorrectOption returns the text of the correct option.
func (q *Question) CorrectOption() string {
	return q.Options[q.CorrectIndex]
}

// Letter maps an option index to its label: 0 -> "A".
func Letter(index int) string {
	if index < 0 || index >= 26 {
		return "?"
	}
	return string(rune('A' + index))
}

// IndexOf maps an option label to its index: "B" -> 1. It accepts lowercase.
func IndexOf(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 {
		return 0, false
	}
	idx := int(letter[0]) - 'A'
	if idx < 0 || idx >= OptionCount {
		return 0, false
	}
	return idx, true
}
