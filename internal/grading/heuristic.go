package grading

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMinChars is the shortest answer the heuristic accepts.
const DefaultMinChars = 10

var (
	minWordsRe = regexp.MustCompile(`(?i)(?:min(?:imum)?|at least|au moins)\s*:?\s*(\d+)\s*(?:words?|mots?)`)
	maxWordsRe = regexp.MustCompile(`(?i)(?:max(?:imum)?|at most|au plus)\s*:?\s*(\d+)\s*(?:words?|mots?)`)
)

// Heuristic is the local grader used when no model is configured or the
// model is unreachable. It understands length rules written as "min 15
// words", "au moins 15 mots" or "max 200 words"; any other rule only gets
// the minimum-length check.
type Heuristic struct {
	MinChars int
}

func NewHeuristic(minChars int) *Heuristic {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Heuristic{MinChars: minChars}
}

func (h *Heuristic) Grade(_ context.Context, label, rule, answer string) (Result, error) {
	if strings.TrimSpace(rule) == "" {
		return Pass(), nil
	}
	answer = strings.TrimSpace(answer)

	var feedback []string
	if utf8.RuneCountInString(answer) < h.MinChars {
		feedback = append(feedback, fmt.Sprintf("Réponse trop courte: %s", labelOr(label)))
	}
	words := len(strings.Fields(answer))
	if n, ok := ruleCount(minWordsRe, rule); ok && words < n {
		feedback = append(feedback, fmt.Sprintf("expected at least %d words, got %d", n, words))
	}
	if n, ok := ruleCount(maxWordsRe, rule); ok && words > n {
		feedback = append(feedback, fmt.Sprintf("expected at most %d words, got %d", n, words))
	}
	if len(feedback) > 0 {
		return Fail(feedback...), nil
	}
	return Pass(), nil
}

func ruleCount(re *regexp.Regexp, rule string) (int, bool) {
	m := re.FindStringSubmatch(rule)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func labelOr(label string) string {
	if label == "" {
		return "Question"
	}
	return label
}
