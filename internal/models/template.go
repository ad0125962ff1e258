package models

import "time"

// FieldKind is the input flavour of a meta field.
type FieldKind string

const (
	FieldText      FieldKind = "text"
	FieldMultiline FieldKind = "multiline"
)

// FieldSpec is one dynamically defined "general information" input.
type FieldSpec struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder"`
}

// Question is a template prompt with its free-text validation rule.
// LinkedFieldKey is a hint only and is never enforced.
type Question struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	LinkedFieldKey string `json:"field"`
	Rule           string `json:"rule"`
}

// Week is one row of the weekly planning table.
type Week struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Learning string `json:"learning"`
	Homework string `json:"homework"`
}

// Exam is one row of the evaluation table.
type Exam struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Coverage string `json:"coverage"`
}

// Rule is a standalone rule not tied to a single question.
type Rule struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Template is a versionable questionnaire owned by its creator.
type Template struct {
	ID              string      `json:"id"`
	Name            string      `json:"templateName"`
	CreatorID       string      `json:"creatorId"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Active          bool        `json:"active"`
	MetaFields      []FieldSpec `json:"metaFields"`
	Questions       []Question  `json:"questions"`
	Weeks           []Week      `json:"weeks"`
	Exams           []Exam      `json:"exams"`
	StandaloneRules []Rule      `json:"aiRules"`
}

// Field returns the meta field with key, if any.
func (t *Template) Field(key string) (FieldSpec, bool) {
	for _, f := range t.MetaFields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}
