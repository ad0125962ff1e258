package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

var (
	author   = models.Actor{UserID: "a1", Role: models.RoleTeacher}
	reviewer = models.Actor{UserID: "r1", Role: models.RoleReviewer}
	t0       = time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
)

func validatedDraft() *models.Plan {
	return &models.Plan{
		AuthorID:     author.UserID,
		Status:       models.StatusDraft,
		Questions:    []models.Question{{ID: "q1", Label: "Objectif"}},
		AIValidation: &models.Verdict{Status: models.Conformant, Findings: []string{}},
	}
}

func TestSubmitRequiresValidation(t *testing.T) {
	p := validatedDraft()
	p.AIValidation = nil

	err := Submit(p, t0)

	require.Error(t, err)
	assert.True(t, errs.IsTransition(err))
	assert.Equal(t, models.StatusDraft, p.Status)
}

func TestSubmitRequiresQuestions(t *testing.T) {
	p := validatedDraft()
	p.Questions = nil

	assert.True(t, errs.IsTransition(Submit(p, t0)))
	assert.Equal(t, models.StatusDraft, p.Status)
}

func TestSubmit(t *testing.T) {
	p := validatedDraft()
	require.NoError(t, Submit(p, t0))
	assert.Equal(t, models.StatusSubmitted, p.Status)
	assert.Equal(t, t0, p.CreatedAt)

	assert.True(t, errs.IsTransition(Submit(p, t0)), "a filed plan cannot be submitted twice")
}

func TestReviewOnDraftIsRefused(t *testing.T) {
	p := validatedDraft()
	err := Review(p, reviewer, Approve, "ok", t0)

	var te *errs.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "draft", te.From)
	assert.Equal(t, "approved", te.To)
	assert.Nil(t, p.ApprovedAt)
	assert.Equal(t, models.StatusDraft, p.Status)
}

func TestReviewByNonReviewerIsRefused(t *testing.T) {
	p := validatedDraft()
	require.NoError(t, Submit(p, t0))

	err := Review(p, author, Approve, "self approval", t0)

	assert.True(t, errs.IsTransition(err))
	var denied *errs.AccessDenied
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, models.StatusSubmitted, p.Status)
	assert.Empty(t, p.ReviewerComment)
}

func TestReviewReachableStates(t *testing.T) {
	tests := []struct {
		from models.Status
		ok   bool
	}{
		{models.StatusDraft, false},
		{models.StatusSubmitted, true},
		{models.StatusUnderRevision, true},
		{models.StatusNeedsCorrection, true},
		{models.StatusApproved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			p := validatedDraft()
			p.Status = tt.from
			err := Review(p, reviewer, Approve, "", t0)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, models.StatusApproved, p.Status)
				return
			}
			assert.True(t, errs.IsTransition(err))
			assert.Equal(t, tt.from, p.Status)
		})
	}
}

func TestResubmitApprovedGoesUnderRevision(t *testing.T) {
	p := validatedDraft()
	require.NoError(t, Submit(p, t0))
	require.NoError(t, Review(p, reviewer, Approve, "bien", t0))
	require.NotNil(t, p.ApprovedAt)

	require.NoError(t, Resubmit(p, t0.Add(time.Hour)))

	assert.Equal(t, models.StatusUnderRevision, p.Status)
	assert.Nil(t, p.ApprovedAt)
}

func TestResubmitFromSubmittedIsRefused(t *testing.T) {
	p := validatedDraft()
	require.NoError(t, Submit(p, t0))

	var te *errs.TransitionError
	require.ErrorAs(t, Resubmit(p, t0), &te)
	assert.Equal(t, "submitted", te.From)
	assert.Equal(t, models.StatusSubmitted, p.Status)
}

// submit, request correction, resubmit, approve.
func TestCorrectionRoundTrip(t *testing.T) {
	p := validatedDraft()
	require.NoError(t, Submit(p, t0))
	require.NoError(t, Review(p, reviewer, RequestCorrection, "fix intro", t0.Add(time.Minute)))
	assert.Equal(t, models.StatusNeedsCorrection, p.Status)
	assert.Nil(t, p.ApprovedAt)

	require.NoError(t, Resubmit(p, t0.Add(2*time.Minute)))
	assert.Equal(t, models.StatusSubmitted, p.Status)

	approvedAt := t0.Add(3 * time.Minute)
	require.NoError(t, Review(p, reviewer, Approve, "parfait", approvedAt))

	assert.Equal(t, models.StatusApproved, p.Status)
	require.NotNil(t, p.ApprovedAt)
	assert.Equal(t, approvedAt, *p.ApprovedAt)
	assert.Equal(t, "parfait", p.ReviewerComment)
	assert.Equal(t, reviewer.UserID, p.ReviewerID)
}

func TestAmend(t *testing.T) {
	p := validatedDraft()
	p.Status = models.StatusSubmitted
	assert.True(t, errs.IsTransition(Amend(p, reviewer, "x", t0)))

	require.NoError(t, Review(p, reviewer, Approve, "first", t0))
	require.NoError(t, Amend(p, reviewer, "second", t0))
	assert.Equal(t, "second", p.ReviewerComment)
	assert.Equal(t, models.StatusApproved, p.Status)

	assert.True(t, errs.IsTransition(Amend(p, author, "mine", t0)))
	assert.Equal(t, "second", p.ReviewerComment)
}

func TestReopen(t *testing.T) {
	p := validatedDraft()
	p.Status = models.StatusSubmitted
	require.NoError(t, Review(p, reviewer, Approve, "", t0))

	assert.Error(t, Reopen(p, reviewer, t0))
	assert.Equal(t, models.StatusApproved, p.Status)

	require.NoError(t, Reopen(p, author, t0))
	assert.Equal(t, models.StatusUnderRevision, p.Status)
	assert.Nil(t, p.ApprovedAt)

	assert.True(t, errs.IsTransition(Reopen(p, author, t0)))
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("Approuvé")
	require.NoError(t, err)
	assert.Equal(t, Approve, d)

	d, err = ParseDecision("request_correction")
	require.NoError(t, err)
	assert.Equal(t, RequestCorrection, d)

	_, err = ParseDecision("maybe")
	assert.True(t, errs.IsValidation(err))
}
