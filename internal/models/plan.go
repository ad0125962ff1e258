package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a plan.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusUnderRevision   Status = "under_revision"
	StatusApproved        Status = "approved"
	StatusNeedsCorrection Status = "needs_correction"
)

// Statuses lists every persisted state in display order.
var Statuses = []Status{StatusSubmitted, StatusUnderRevision, StatusNeedsCorrection, StatusApproved}

// ParseStatus accepts canonical names and the French labels older plans
// were stored with. An empty value reads as Submitted, which is how the
// submissions list displayed plans that never had a status.
func ParseStatus(s string) (Status, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "draft", "brouillon":
		return StatusDraft, true
	case "", "submitted", "soumis":
		return StatusSubmitted, true
	case "under_revision", "en révision", "en revision":
		return StatusUnderRevision, true
	case "approved", "approuvé", "approuve":
		return StatusApproved, true
	case "needs_correction", "à corriger", "a corriger":
		return StatusNeedsCorrection, true
	}
	return "", false
}

// VerdictStatus is the overall outcome of a validation pass.
type VerdictStatus string

const (
	Conformant    VerdictStatus = "conformant"
	NonConformant VerdictStatus = "non_conformant"
)

// Verdict is the structured outcome of validating a plan's answers.
type Verdict struct {
	Status   VerdictStatus `json:"status"`
	Findings []string      `json:"findings"`
}

// Snapshot is the template structure copied into a plan at authoring time.
type Snapshot struct {
	MetaFields []FieldSpec `json:"metaFields"`
	Questions  []Question  `json:"questions"`
	Weeks      []Week      `json:"weeks"`
	Exams      []Exam      `json:"exams"`
	Rules      []Rule      `json:"rules"`
}

// Plan is one author's filled instance of a template.
type Plan struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	AuthorID   string    `json:"authorId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Status     Status    `json:"status"`
	Title      string    `json:"title"`

	MetaFields []FieldSpec       `json:"metaFieldsSnapshot"`
	MetaValues map[string]string `json:"metaValuesSnapshot"`
	Questions  []Question        `json:"questionsSnapshot"`
	Weeks      []Week            `json:"weeksSnapshot"`
	Exams      []Exam            `json:"examsSnapshot"`
	Rules      []Rule            `json:"rulesSnapshot"`

	Answers map[string]string `json:"answers"`

	AIValidation     *Verdict   `json:"aiValidation"`
	ValidationDigest string     `json:"validationDigest"`
	ValidatedAt      *time.Time `json:"validatedAt"`

	ReviewerComment string     `json:"reviewerComment"`
	ReviewerID      string     `json:"reviewerId"`
	ReviewedAt      *time.Time `json:"reviewedAt"`
	ApprovedAt      *time.Time `json:"approvedAt"`

	ReportURL string `json:"reportUrl"`
	Version   int    `json:"version"`
}

// Snapshot returns the plan's embedded template structure. The slices are
// shared with the plan; use snapshot.Clone for an independent copy.
func (p *Plan) Snapshot() Snapshot {
	return Snapshot{
		MetaFields: p.MetaFields,
		Questions:  p.Questions,
		Weeks:      p.Weeks,
		Exams:      p.Exams,
		Rules:      p.Rules,
	}
}

// SetSnapshot replaces the plan's embedded template structure.
func (p *Plan) SetSnapshot(s Snapshot) {
	p.MetaFields = s.MetaFields
	p.Questions = s.Questions
	p.Weeks = s.Weeks
	p.Exams = s.Exams
	p.Rules = s.Rules
}

// PlanSummary is a listing row for the review queue.
type PlanSummary struct {
	Plan
	AuthorName string `json:"teacherName"`
}
