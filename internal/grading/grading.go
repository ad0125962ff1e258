// Package grading judges a single free-text answer against a question's
// rule. Graders are called once per question and must treat an empty rule
// as a pass.
package grading

import (
	"context"
	"log/slog"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/metric"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

// Result is a grader's judgment of one answer.
type Result struct {
	Status   models.VerdictStatus `json:"status"`
	Feedback []string             `json:"feedback"`
}

// Pass is the result for an answer that satisfies its rule.
func Pass() Result {
	return Result{Status: models.Conformant, Feedback: []string{}}
}

// Fail is a non-conformant result with the given feedback.
func Fail(feedback ...string) Result {
	return Result{Status: models.NonConformant, Feedback: feedback}
}

type Grader interface {
	Grade(ctx context.Context, label, rule, answer string) (Result, error)
}

// Func adapts a function to the Grader interface.
type Func func(ctx context.Context, label, rule, answer string) (Result, error)

func (f Func) Grade(ctx context.Context, label, rule, answer string) (Result, error) {
	return f(ctx, label, rule, answer)
}

// WithFallback grades with primary and, when it fails, with fallback. The
// primary error is logged and dropped.
func WithFallback(primary, fallback Grader, logger *slog.Logger) Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(ctx context.Context, label, rule, answer string) (Result, error) {
		res, err := primary.Grade(ctx, label, rule, answer)
		if err == nil {
			return res, nil
		}
		logger.Warn("primary grader failed, using fallback", "question", label, "error", err)
		return fallback.Grade(ctx, label, rule, answer)
	})
}

// Instrument records call counts and latency for g under provider.
func Instrument(g Grader, provider string, m *metric.Metrics) Grader {
	if m == nil {
		return g
	}
	return Func(func(ctx context.Context, label, rule, answer string) (Result, error) {
		start := time.Now()
		res, err := g.Grade(ctx, label, rule, answer)
		outcome := string(res.Status)
		if err != nil {
			outcome = "error"
		}
		m.ObserveGrading(provider, outcome, time.Since(start))
		return res, err
	})
}
