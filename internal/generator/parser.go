package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/edgard/quizbot/internal/errs"
	"github.com/edgard/quizbot/internal/quiz"
)

var (
	// "A) text", "(a) text", "B. text", "C: text", "Option D - text".
	// ".", ":" and "-" need trailing whitespace so initials like "B.R." stay text.
	optionRe = regexp.MustCompile(`^(?i:option\s+)?\(?([A-Da-d])\s*(?:\)\s*|[.:\-]\s+)(.*)$`)
	// "Correct: B", "Correct Answer - B) ...", "Answer: C", "सही उत्तर: ए"
	correctRe = regexp.MustCompile(`^(?i:correct\s+answer|correct\s+option|correct|answer|ans|सही उत्तर)\s*[:\-–]\s*(.*)$`)
	// "Explanation: ...", "Reason: ...", "व्याख्या: ..."
	explanationRe = regexp.MustCompile(`^(?i:explanation|reason|व्याख्या)\s*[:\-–]\s*(.*)$`)
	// "Q:", "Q1.", "Question 3:", "1.", "2)"
	stemPrefixRe = regexp.MustCompile(`^(?i:q(?:uestion)?\s*\d*\s*[:.)]|\d+\s*[.)])\s*`)
	// Letter at the start of a correct-answer value: "B", "(B)", "B) New Delhi", "b."
	answerLetterRe = regexp.MustCompile(`^\(?(?i:option\s+)?([A-Da-d])(?:[\s).:/,\-]|$)`)
	bulletRe       = regexp.MustCompile(`^[-*•]+\s+`)
)

// hindiLetters maps Devanagari spellings of option letters.
var hindiLetters = map[string]int{"ए": 0, "बी": 1, "सी": 2, "डी": 3}

// Parse turns a completion into a Question. It accepts the line-oriented
// template (stem, A)–D) options, "Correct:" marker, optional "Explanation:")
// and a JSON object with question/options/correct/explanation keys.
// Failures are *errs.GenerationParseError.
func Parse(raw string) (*quiz.Question, error) {
	text := stripCodeFence(normalizeCompletion(raw))
	if text == "" {
		return nil, errs.NewGenerationParseError("completion is empty", raw)
	}

	var (
		q   *quiz.Question
		err error
	)
	if strings.HasPrefix(text, "{") {
		q, err = parseJSON(text)
	} else {
		q, err = parseText(text)
	}
	if err != nil {
		return nil, errs.NewGenerationParseError(err.Error(), raw)
	}
	if err := q.Validate(); err != nil {
		return nil, errs.NewGenerationParseError(err.Error(), raw)
	}
	return q, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		return ""
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func cleanLine(line string) string {
	line = bulletRe.ReplaceAllString(strings.TrimSpace(line), "")
	return plainLine(line)
}

func parseText(text string) (*quiz.Question, error) {
	var (
		stem          []string
		options       = make([]string, 0, quiz.OptionCount)
		answer        string
		answerFound   bool
		explanation   []string
		inExplanation bool
	)

	for _, rawLine := range strings.Split(text, "\n") {
		line := cleanLine(rawLine)
		if line == "" {
			continue
		}

		if m := correctRe.FindStringSubmatch(line); m != nil {
			answer = strings.TrimSpace(m[1])
			answerFound = true
			inExplanation = false
			continue
		}
		if m := explanationRe.FindStringSubmatch(line); m != nil {
			inExplanation = true
			if rest := strings.TrimSpace(m[1]); rest != "" {
				explanation = append(explanation, rest)
			}
			continue
		}
		if inExplanation {
			explanation = append(explanation, line)
			continue
		}
		// The first content line always opens the stem.
		if len(stem) == 0 {
			line = strings.TrimSpace(stemPrefixRe.ReplaceAllString(line, ""))
			if line != "" {
				stem = append(stem, line)
			}
			continue
		}
		if answerFound {
			continue
		}
		if m := optionRe.FindStringSubmatch(line); m != nil {
			idx, _ := quiz.IndexOf(m[1])
			switch {
			case idx == len(options):
				options = append(options, strings.TrimSpace(m[2]))
				continue
			case len(options) == 0:
				// A stem line that merely looks like a later option.
			case idx < len(options):
				return nil, fmt.Errorf("option %s appears more than once", quiz.Letter(idx))
			default:
				return nil, fmt.Errorf("option %s is out of order, expected %s", quiz.Letter(idx), quiz.Letter(len(options)))
			}
		}
		if len(options) == 0 {
			stem = append(stem, line)
		}
	}

	if len(stem) == 0 {
		return nil, fmt.Errorf("question stem not found")
	}
	if len(options) != quiz.OptionCount {
		return nil, fmt.Errorf("expected %d options (A-D), found %d", quiz.OptionCount, len(options))
	}
	if !answerFound {
		return nil, fmt.Errorf("correct answer marker not found")
	}
	idx, err := resolveAnswer(answer, options)
	if err != nil {
		return nil, err
	}

	return &quiz.Question{
		Stem:         strings.Join(stem, "\n"),
		Options:      options,
		CorrectIndex: idx,
		Explanation:  strings.Join(explanation, "\n"),
	}, nil
}

// resolveAnswer reads the option a "Correct:" value points at. It takes a
// leading letter, a Devanagari letter name, or the full option text.
func resolveAnswer(value string, options []string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("correct answer marker has no value")
	}

	if m := answerLetterRe.FindStringSubmatch(value); m != nil {
		idx, _ := quiz.IndexOf(m[1])
		return idx, nil
	}

	head := strings.TrimSpace(strings.SplitN(value, "/", 2)[0])
	head = strings.Trim(head, "()")
	if fields := strings.FieldsFunc(head, func(r rune) bool { return r == ' ' || r == ')' || r == '.' }); len(fields) > 0 {
		if idx, ok := hindiLetters[fields[0]]; ok {
			return idx, nil
		}
	}

	for i, opt := range options {
		if strings.EqualFold(opt, value) || strings.EqualFold(strings.TrimSpace(strings.SplitN(opt, "/", 2)[0]), head) {
			return i, nil
		}
	}

	return 0, fmt.Errorf("cannot resolve correct answer %q", value)
}

type jsonQuestion struct {
	Question     string          `json:"question"`
	Options      []string        `json:"options"`
	Correct      json.RawMessage `json:"correct"`
	CorrectIndex *int            `json:"correct_index"`
	Explanation  string          `json:"explanation"`
}

func parseJSON(text string) (*quiz.Question, error) {
	var jq jsonQuestion
	if err := json.Unmarshal([]byte(text), &jq); err != nil {
		return nil, fmt.Errorf("invalid question JSON: %w", err)
	}

	options := make([]string, 0, len(jq.Options))
	for i, opt := range jq.Options {
		opt = strings.TrimSpace(opt)
		// Drop a redundant "A) " label, but only when it matches the position.
		if m := optionRe.FindStringSubmatch(opt); m != nil && strings.TrimSpace(m[2]) != "" {
			if idx, _ := quiz.IndexOf(m[1]); idx == i {
				opt = strings.TrimSpace(m[2])
			}
		}
		options = append(options, opt)
	}
	if len(options) != quiz.OptionCount {
		return nil, fmt.Errorf("expected %d options, found %d", quiz.OptionCount, len(options))
	}

	var idx int
	switch {
	case jq.CorrectIndex != nil:
		idx = *jq.CorrectIndex
	case len(jq.Correct) > 0:
		var asInt int
		var asString string
		if err := json.Unmarshal(jq.Correct, &asInt); err == nil {
			idx = asInt
		} else if err := json.Unmarshal(jq.Correct, &asString); err == nil {
			resolved, err := resolveAnswer(asString, options)
			if err != nil {
				return nil, err
			}
			idx = resolved
		} else {
			return nil, fmt.Errorf("correct answer has unsupported type: %s", string(jq.Correct))
		}
	default:
		return nil, fmt.Errorf("correct answer marker not found")
	}

	return &quiz.Question{
		Stem:         strings.TrimSpace(stemPrefixRe.ReplaceAllString(strings.TrimSpace(jq.Question), "")),
		Options:      options,
		CorrectIndex: idx,
		Explanation:  strings.TrimSpace(jq.Explanation),
	}, nil
}
