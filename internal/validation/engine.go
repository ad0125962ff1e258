// Package validation checks a plan's meta values and answers against its
// snapshot and produces a Verdict.
//
// Findings come out in a fixed order: required meta fields first, then the
// title check, then questions in snapshot order. Questions with a rule are
// graded concurrently, but each question's findings land in its own slot so
// the order never depends on which grader call finishes first.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/grading"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/metric"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/snapshot"
)

// DefaultParallelism bounds concurrent grader calls per validation.
const DefaultParallelism = 4

// MinTitleChars is the shortest acceptable filled-in title.
const MinTitleChars = 3

type Engine struct {
	grader      grading.Grader
	parallelism int
	logger      *slog.Logger
	metrics     *metric.Metrics
}

type Option func(*Engine)

func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(g grading.Grader, opts ...Option) *Engine {
	e := &Engine{
		grader:      g,
		parallelism: DefaultParallelism,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is everything a validation pass looks at.
type Input struct {
	Snapshot   models.Snapshot
	MetaValues map[string]string
	Answers    map[string]string
}

// InputOf collects the validation input carried by p.
func InputOf(p *models.Plan) Input {
	return Input{Snapshot: p.Snapshot(), MetaValues: p.MetaValues, Answers: p.Answers}
}

// Validate runs one full pass. Grader failures never abort the pass; the
// question is reported as unresolved instead.
func (e *Engine) Validate(ctx context.Context, in Input) models.Verdict {
	findings := metaFindings(in.Snapshot.MetaFields, in.MetaValues)

	slots := make([][]string, len(in.Snapshot.Questions))
	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, q := range in.Snapshot.Questions {
		answer := in.Answers[q.ID]
		if strings.TrimSpace(q.Rule) == "" {
			if strings.TrimSpace(answer) == "" {
				slots[i] = []string{fmt.Sprintf("missing answer for %s", q.Label)}
			}
			continue
		}
		g.Go(func() error {
			slots[i] = e.grade(ctx, q, answer)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range slots {
		findings = append(findings, s...)
	}

	v := models.Verdict{Status: models.Conformant, Findings: findings}
	if len(findings) > 0 {
		v.Status = models.NonConformant
	}
	e.metrics.ObserveVerdict(string(v.Status))
	return v
}

func (e *Engine) grade(ctx context.Context, q models.Question, answer string) []string {
	res, err := e.grader.Grade(ctx, q.Label, q.Rule, answer)
	if err != nil {
		e.logger.Warn("grading failed", "question", q.ID, "label", q.Label, "error", err)
		return []string{fmt.Sprintf("validation unavailable for %s", q.Label)}
	}
	if res.Status == models.Conformant {
		return nil
	}
	if len(res.Feedback) == 0 {
		return []string{fmt.Sprintf("[%s] answer does not satisfy the rule", q.Label)}
	}
	out := make([]string, 0, len(res.Feedback))
	for _, f := range res.Feedback {
		out = append(out, fmt.Sprintf("[%s] %s", q.Label, f))
	}
	return out
}

func metaFindings(fields []models.FieldSpec, values map[string]string) []string {
	findings := []string{}
	for _, f := range fields {
		if f.Required && strings.TrimSpace(values[f.Key]) == "" {
			findings = append(findings, fmt.Sprintf("required field %q (%s) is empty", f.Label, f.Key))
		}
	}
	if title, ok := snapshot.TitleCandidate(fields, values); ok && utf8.RuneCountInString(title) < MinTitleChars {
		findings = append(findings, "title is too short")
	}
	return findings
}
