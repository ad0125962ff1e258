// Package lifecycle holds the plan state machine. Every function checks all
// of its guards before touching the plan, so a refused move leaves the plan
// exactly as it was.
package lifecycle

import (
	"strings"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

// Decision is a reviewer's verdict on a plan.
type Decision string

const (
	Approve           Decision = "approve"
	RequestCorrection Decision = "request_correction"
)

// ParseDecision accepts the canonical names and the labels the review
// screen used.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved", "approuvé":
		return Approve, nil
	case "request_correction", "needs_correction", "à corriger", "a corriger":
		return RequestCorrection, nil
	}
	return "", errs.Validation("decision", "unknown review decision %q", s)
}

func (d Decision) target() models.Status {
	if d == Approve {
		return models.StatusApproved
	}
	return models.StatusNeedsCorrection
}

// Submit files a draft. The plan must carry questions and a verdict from an
// explicit validation pass.
func Submit(p *models.Plan, now time.Time) error {
	if p.Status != models.StatusDraft && p.Status != "" {
		return errs.Transition(string(p.Status), string(models.StatusSubmitted), "plan was already filed")
	}
	if len(p.Questions) == 0 {
		return errs.Transition(string(models.StatusDraft), string(models.StatusSubmitted), "plan has no questions")
	}
	if p.AIValidation == nil {
		return errs.Transition(string(models.StatusDraft), string(models.StatusSubmitted), "plan must be validated before it is submitted")
	}
	p.Status = models.StatusSubmitted
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Resubmit files an edited plan. A plan sent back for correction or being
// revised returns to Submitted; an approved plan goes to UnderRevision and
// loses its approval.
func Resubmit(p *models.Plan, now time.Time) error {
	var to models.Status
	switch p.Status {
	case models.StatusNeedsCorrection, models.StatusUnderRevision:
		to = models.StatusSubmitted
	case models.StatusApproved:
		to = models.StatusUnderRevision
	default:
		return errs.Transition(string(p.Status), string(models.StatusSubmitted), "only plans needing correction, under revision or approved can be resubmitted")
	}
	if len(p.Questions) == 0 {
		return errs.Transition(string(p.Status), string(to), "plan has no questions")
	}
	if p.AIValidation == nil {
		return errs.Transition(string(p.Status), string(to), "plan must be validated before it is resubmitted")
	}
	p.Status = to
	p.ApprovedAt = nil
	p.UpdatedAt = now
	return nil
}

// Review records a reviewer's decision. The comment always replaces the
// previous one.
func Review(p *models.Plan, actor models.Actor, d Decision, comment string, now time.Time) error {
	to := d.target()
	if d != Approve && d != RequestCorrection {
		return errs.Validation("decision", "unknown review decision %q", d)
	}
	if !actor.Role.CanReview() {
		return errs.RefusedTransition(string(p.Status), string(to),
			errs.Denied(string(actor.Role), "only reviewers can review plans"))
	}
	switch p.Status {
	case models.StatusSubmitted, models.StatusUnderRevision, models.StatusNeedsCorrection:
	default:
		return errs.Transition(string(p.Status), string(to), "plan is not awaiting review")
	}

	p.Status = to
	p.ReviewerComment = comment
	p.ReviewerID = actor.UserID
	p.ReviewedAt = &now
	p.UpdatedAt = now
	if d == Approve {
		p.ApprovedAt = &now
	} else {
		p.ApprovedAt = nil
	}
	return nil
}

// Amend rewrites the reviewer comment of an approved plan without touching
// its status.
func Amend(p *models.Plan, actor models.Actor, comment string, now time.Time) error {
	if !actor.Role.CanReview() {
		return errs.RefusedTransition(string(p.Status), string(p.Status),
			errs.Denied(string(actor.Role), "only reviewers can amend a review"))
	}
	if p.Status != models.StatusApproved {
		return errs.Transition(string(p.Status), string(p.Status), "only approved plans can be amended")
	}
	p.ReviewerComment = comment
	p.ReviewerID = actor.UserID
	p.UpdatedAt = now
	return nil
}

// Reopen moves an approved plan back to UnderRevision at its author's
// request.
func Reopen(p *models.Plan, actor models.Actor, now time.Time) error {
	if p.AuthorID != actor.UserID {
		return errs.RefusedTransition(string(p.Status), string(models.StatusUnderRevision),
			errs.Denied(string(actor.Role), "only the author may reopen a plan"))
	}
	if p.Status != models.StatusApproved {
		return errs.Transition(string(p.Status), string(models.StatusUnderRevision), "only approved plans can be reopened")
	}
	p.Status = models.StatusUnderRevision
	p.ApprovedAt = nil
	p.UpdatedAt = now
	return nil
}
