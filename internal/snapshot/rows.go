package snapshot

import (
	"github.com/google/uuid"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

// Rows are addressed by id, never by index, so removing one entry never
// shifts the identity of the others.

// AddWeek appends an empty week with a fresh id and renumbers labels.
func AddWeek(weeks []models.Week) []models.Week {
	out := append(make([]models.Week, 0, len(weeks)+1), weeks...)
	out = append(out, models.Week{ID: uuid.NewString()})
	RelabelWeeks(out)
	return out
}

// RemoveWeek drops the week with the given id and renumbers the rest.
func RemoveWeek(weeks []models.Week, id string) []models.Week {
	out := make([]models.Week, 0, len(weeks))
	for _, w := range weeks {
		if w.ID != id {
			out = append(out, w)
		}
	}
	RelabelWeeks(out)
	return out
}

// AddExam appends an empty exam row with a fresh id.
func AddExam(exams []models.Exam) []models.Exam {
	out := append(make([]models.Exam, 0, len(exams)+1), exams...)
	return append(out, models.Exam{ID: uuid.NewString()})
}

// RemoveExam drops the exam with the given id.
func RemoveExam(exams []models.Exam, id string) []models.Exam {
	out := make([]models.Exam, 0, len(exams))
	for _, e := range exams {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// EnsureIDs assigns ids to rows that arrive without one.
func EnsureIDs(s *models.Snapshot) {
	for i := range s.Weeks {
		if s.Weeks[i].ID == "" {
			s.Weeks[i].ID = uuid.NewString()
		}
	}
	for i := range s.Exams {
		if s.Exams[i].ID == "" {
			s.Exams[i].ID = uuid.NewString()
		}
	}
	for i := range s.Rules {
		if s.Rules[i].ID == "" {
			s.Rules[i].ID = uuid.NewString()
		}
	}
}

// SeedWeeks returns weeks, or a single default week when there are none.
func SeedWeeks(weeks []models.Week) []models.Week {
	if len(weeks) > 0 {
		return weeks
	}
	return AddWeek(nil)
}
