package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/grading"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

func neverCalled(t *testing.T) grading.Grader {
	return grading.Func(func(context.Context, string, string, string) (grading.Result, error) {
		t.Error("grader should not be called")
		return grading.Pass(), nil
	})
}

func TestRequiredTitleEmpty(t *testing.T) {
	in := Input{
		Snapshot: models.Snapshot{
			MetaFields: []models.FieldSpec{{Key: "title", Label: "Titre", Required: true}},
		},
		MetaValues: map[string]string{"title": ""},
	}

	v := New(neverCalled(t)).Validate(context.Background(), in)

	assert.Equal(t, models.NonConformant, v.Status)
	require.Len(t, v.Findings, 1)
	assert.Contains(t, v.Findings[0], "title")
}

func TestGraderFeedbackIsPrefixedWithLabel(t *testing.T) {
	in := Input{
		Snapshot: models.Snapshot{
			Questions: []models.Question{{ID: "q1", Label: "Objectif", Rule: "min 15 words"}},
		},
		Answers: map[string]string{"q1": "trois mots seulement"},
	}

	v := New(grading.NewHeuristic(grading.DefaultMinChars)).Validate(context.Background(), in)

	assert.Equal(t, models.NonConformant, v.Status)
	require.NotEmpty(t, v.Findings)
	for _, f := range v.Findings {
		assert.True(t, strings.HasPrefix(f, "[Objectif] "), f)
	}
}

func TestConformantWhenNothingFound(t *testing.T) {
	in := Input{
		Snapshot: models.Snapshot{
			MetaFields: []models.FieldSpec{{Key: "title", Label: "Titre", Required: true}},
			Questions: []models.Question{
				{ID: "q1", Label: "Objectif", Rule: "min 2 words"},
				{ID: "q2", Label: "Notes"},
			},
		},
		MetaValues: map[string]string{"title": "Algorithmique"},
		Answers:    map[string]string{"q1": "Comprendre les graphes", "q2": "rien"},
	}

	v := New(grading.NewHeuristic(0)).Validate(context.Background(), in)

	assert.Equal(t, models.Conformant, v.Status)
	assert.Empty(t, v.Findings)
}

func TestMissingAnswerWithoutRule(t *testing.T) {
	in := Input{
		Snapshot: models.Snapshot{Questions: []models.Question{{ID: "q1", Label: "Bibliographie"}}},
		Answers:  map[string]string{"q1": "   "},
	}
	v := New(neverCalled(t)).Validate(context.Background(), in)
	assert.Equal(t, []string{"missing answer for Bibliographie"}, v.Findings)
}

func TestGraderUnavailableIsConservative(t *testing.T) {
	down := grading.Func(func(context.Context, string, string, string) (grading.Result, error) {
		return grading.Result{}, errors.New("connection refused")
	})
	in := Input{
		Snapshot: models.Snapshot{Questions: []models.Question{{ID: "q1", Label: "Objectif", Rule: "be precise"}}},
		Answers:  map[string]string{"q1": "Une réponse complète et précise."},
	}

	v := New(down).Validate(context.Background(), in)

	assert.Equal(t, models.NonConformant, v.Status)
	assert.Equal(t, []string{"validation unavailable for Objectif"}, v.Findings)
}

func TestFindingsKeepDiscoveryOrder(t *testing.T) {
	// Earlier questions answer slower so completion order is reversed.
	slow := grading.Func(func(_ context.Context, label, _, _ string) (grading.Result, error) {
		var n int
		_, _ = fmt.Sscanf(label, "Q%d", &n)
		time.Sleep(time.Duration(5-n) * 5 * time.Millisecond)
		return grading.Fail("bad " + label), nil
	})
	in := Input{
		Snapshot: models.Snapshot{
			MetaFields: []models.FieldSpec{{Key: "code", Label: "Code", Required: true}},
			Questions: []models.Question{
				{ID: "1", Label: "Q1", Rule: "r"},
				{ID: "2", Label: "Q2"},
				{ID: "3", Label: "Q3", Rule: "r"},
				{ID: "4", Label: "Q4", Rule: "r"},
			},
		},
		Answers: map[string]string{},
	}

	v := New(slow, WithParallelism(4)).Validate(context.Background(), in)

	assert.Equal(t, []string{
		`required field "Code" (code) is empty`,
		"[Q1] bad Q1",
		"missing answer for Q2",
		"[Q3] bad Q3",
		"[Q4] bad Q4",
	}, v.Findings)
}

func TestValidateIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	g := grading.Func(func(ctx context.Context, label, rule, answer string) (grading.Result, error) {
		calls.Add(1)
		return grading.NewHeuristic(0).Grade(ctx, label, rule, answer)
	})
	in := Input{
		Snapshot: models.Snapshot{
			MetaFields: []models.FieldSpec{{Key: "title", Label: "Titre", Required: true}},
			Questions: []models.Question{
				{ID: "q1", Label: "Objectif", Rule: "min 15 words"},
				{ID: "q2", Label: "Méthode", Rule: "au moins 2 mots"},
			},
		},
		MetaValues: map[string]string{"title": "AB"},
		Answers:    map[string]string{"q1": "trop court ici", "q2": "Cours magistraux et laboratoires"},
	}
	e := New(g)

	first := e.Validate(context.Background(), in)
	second := e.Validate(context.Background(), in)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(4), calls.Load())
	assert.Contains(t, first.Findings, "title is too short")
}

func TestDigest(t *testing.T) {
	key := []byte("secret")
	p := &models.Plan{
		Questions:    []models.Question{{ID: "q1", Label: "Objectif"}},
		Answers:      map[string]string{"q1": "réponse"},
		AIValidation: &models.Verdict{Status: models.Conformant},
	}
	p.ValidationDigest = Digest(key, p)
	assert.True(t, Verify(key, p))

	p.AIValidation.Findings = []string{}
	assert.True(t, Verify(key, p), "nil and empty findings digest the same")

	p.Answers["q1"] = "autre chose"
	assert.False(t, Verify(key, p))

	p.Answers["q1"] = "réponse"
	assert.False(t, Verify([]byte("other"), p))

	p.AIValidation = nil
	assert.False(t, Verify(key, p))
}

func TestDigestBindsPlanAndTemplate(t *testing.T) {
	key := []byte("secret")
	p := &models.Plan{
		ID:           "p1",
		TemplateID:   "tpl-a",
		Questions:    []models.Question{{ID: "q1", Label: "Objectif"}},
		Answers:      map[string]string{"q1": "réponse"},
		AIValidation: &models.Verdict{Status: models.Conformant},
	}
	p.ValidationDigest = Digest(key, p)
	require.True(t, Verify(key, p))

	moved := *p
	moved.TemplateID = "tpl-b"
	assert.False(t, Verify(key, &moved), "digest is tied to the template")

	replayed := *p
	replayed.ID = "p2"
	assert.False(t, Verify(key, &replayed), "digest is tied to the plan")
}
