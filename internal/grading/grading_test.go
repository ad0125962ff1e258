package grading

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/metric"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

func TestHeuristic(t *testing.T) {
	h := NewHeuristic(0)
	tests := []struct {
		name   string
		rule   string
		answer string
		want   models.VerdictStatus
	}{
		{"empty rule passes", "", "", models.Conformant},
		{"blank rule passes", "   ", "x", models.Conformant},
		{"too short", "be clear", "court", models.NonConformant},
		{"min words unmet", "min 15 words", "trois petits mots", models.NonConformant},
		{"min words met", "min 3 words", "trois petits mots", models.Conformant},
		{"french min", "au moins 5 mots", "un deux trois quatre cinq", models.Conformant},
		{"french min unmet", "au moins 5 mots", "un deux trois quatre", models.NonConformant},
		{"max words exceeded", "max 2 words", "far too many words here", models.NonConformant},
		{"free rule long answer", "mentionner les objectifs", "Les objectifs sont listés.", models.Conformant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Grade(context.Background(), "Objectif", tt.rule, tt.answer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			if tt.want == models.NonConformant {
				assert.NotEmpty(t, res.Feedback)
			}
		})
	}
}

func TestHeuristicFeedbackNamesQuestion(t *testing.T) {
	res, err := NewHeuristic(10).Grade(context.Background(), "Objectif", "min 15 words", "trop court")
	require.NoError(t, err)
	assert.Equal(t, []string{"expected at least 15 words, got 2"}, res.Feedback)

	res, err = NewHeuristic(10).Grade(context.Background(), "", "min 1 word", "non")
	require.NoError(t, err)
	assert.Equal(t, []string{"Réponse trop courte: Question"}, res.Feedback)
}

func TestWithFallback(t *testing.T) {
	failing := Func(func(context.Context, string, string, string) (Result, error) {
		return Result{}, errors.New("boom")
	})
	fallback := Func(func(context.Context, string, string, string) (Result, error) {
		return Fail("from fallback"), nil
	})

	res, err := WithFallback(failing, fallback, nil).Grade(context.Background(), "q", "r", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"from fallback"}, res.Feedback)

	ok := Func(func(context.Context, string, string, string) (Result, error) { return Pass(), nil })
	res, err = WithFallback(ok, fallback, nil).Grade(context.Background(), "q", "r", "a")
	require.NoError(t, err)
	assert.Equal(t, models.Conformant, res.Status)
}

func TestInstrumentPassesThrough(t *testing.T) {
	g := Instrument(Func(func(context.Context, string, string, string) (Result, error) {
		return Result{}, errors.New("down")
	}), "stub", metric.New())

	_, err := g.Grade(context.Background(), "q", "r", "a")
	assert.EqualError(t, err, "down")
}

func openAIReply(text string) map[string]any {
	return map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	}
}

func newOpenAI(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	o := NewOpenAI("test-key", "", time.Second)
	o.URL = srv.URL
	return o
}

func TestOpenAIGrade(t *testing.T) {
	var got map[string]any
	o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(openAIReply("```json\n{\"status\":\"non_conformant\",\"feedback\":[\"trop court\"]}\n```"))
	})

	res, err := o.Grade(context.Background(), "Objectif", "min 15 words", "trois mots ici")
	require.NoError(t, err)
	assert.Equal(t, models.NonConformant, res.Status)
	assert.Equal(t, []string{"trop court"}, res.Feedback)
	assert.Equal(t, DefaultOpenAIModel, got["model"])
	assert.Contains(t, got["input"], "min 15 words")
}

func TestOpenAIEmptyRuleSkipsCall(t *testing.T) {
	o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	res, err := o.Grade(context.Background(), "q", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.Conformant, res.Status)
}

func TestOpenAIErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		})
		_, err := o.Grade(context.Background(), "q", "r", "a")
		assert.ErrorContains(t, err, "429")
	})
	t.Run("schema mismatch", func(t *testing.T) {
		o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(openAIReply(`{"status":"maybe","feedback":[]}`))
		})
		_, err := o.Grade(context.Background(), "q", "r", "a")
		assert.ErrorContains(t, err, "schema")
	})
	t.Run("empty output", func(t *testing.T) {
		o := newOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"output": []any{}})
		})
		_, err := o.Grade(context.Background(), "q", "r", "a")
		assert.ErrorIs(t, err, ErrEmptyReply)
	})
	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAI("", "", 0).Grade(context.Background(), "q", "r", "a")
		assert.Error(t, err)
	})
}
