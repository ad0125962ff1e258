// Package snapshot copies template structure into plans so that later
// template edits never reach a filed plan, and normalizes the older flat
// meta shape into dynamic fields when plans are read back.
package snapshot

import (
	"strconv"
	"strings"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

const weekLabelPrefix = "Semaine "

// Build takes a deep copy of every structural part of t.
func Build(t *models.Template) models.Snapshot {
	return Clone(models.Snapshot{
		MetaFields: t.MetaFields,
		Questions:  t.Questions,
		Weeks:      t.Weeks,
		Exams:      t.Exams,
		Rules:      t.StandaloneRules,
	})
}

// Clone returns a copy of s sharing no backing arrays with it. Nil parts
// come back as empty slices so persisted plans never carry nulls.
func Clone(s models.Snapshot) models.Snapshot {
	return models.Snapshot{
		MetaFields: append(make([]models.FieldSpec, 0, len(s.MetaFields)), s.MetaFields...),
		Questions:  append(make([]models.Question, 0, len(s.Questions)), s.Questions...),
		Weeks:      append(make([]models.Week, 0, len(s.Weeks)), s.Weeks...),
		Exams:      append(make([]models.Exam, 0, len(s.Exams)), s.Exams...),
		Rules:      append(make([]models.Rule, 0, len(s.Rules)), s.Rules...),
	}
}

// Rebuild produces the snapshot filed on resubmission: the structure of
// the existing snapshot with the author's edited week and exam rows.
func Rebuild(existing models.Snapshot, weeks []models.Week, exams []models.Exam) models.Snapshot {
	s := Clone(existing)
	s.Weeks = append(make([]models.Week, 0, len(weeks)), weeks...)
	s.Exams = append(make([]models.Exam, 0, len(exams)), exams...)
	RelabelWeeks(s.Weeks)
	return s
}

// RelabelWeeks renumbers week labels sequentially in place.
func RelabelWeeks(weeks []models.Week) {
	for i := range weeks {
		weeks[i].Label = weekLabelPrefix + strconv.Itoa(i+1)
	}
}

// CopyValues copies a string map.
func CopyValues(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// InitValues returns a value map with an empty entry for each field key,
// keeping any value already present in seed.
func InitValues(fields []models.FieldSpec, seed map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Key] = seed[f.Key]
	}
	return out
}

// DefaultTitle is used when no meta field yields a title.
const DefaultTitle = "Sans titre"

// Title derives the listing title: the value of the field keyed "title",
// else of the first field whose label mentions a title, else DefaultTitle.
func Title(fields []models.FieldSpec, values map[string]string) string {
	if v, ok := titleValue(fields, values); ok {
		return v
	}
	return DefaultTitle
}

func titleValue(fields []models.FieldSpec, values map[string]string) (string, bool) {
	for _, f := range fields {
		if f.Key == "title" {
			if v := strings.TrimSpace(values[f.Key]); v != "" {
				return v, true
			}
			break
		}
	}
	for _, f := range fields {
		label := strings.ToLower(f.Label)
		if strings.Contains(label, "title") || strings.Contains(label, "titre") {
			if v := strings.TrimSpace(values[f.Key]); v != "" {
				return v, true
			}
			break
		}
	}
	return "", false
}

// TitleCandidate reports the derived title value, if one was filled in.
func TitleCandidate(fields []models.FieldSpec, values map[string]string) (string, bool) {
	return titleValue(fields, values)
}
