// Package render produces the plain-text report filed with each submitted
// plan.
package render

import (
	"fmt"
	"strings"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/snapshot"
)

// ContentType is the media type of a rendered report.
const ContentType = "text/plain; charset=utf-8"

// ReportTitle is used when the plan has no derivable title.
const ReportTitle = "Plan de cours"

// Report renders p: title, general information, weeks, exams, then the
// template questions with their answers.
func Report(p *models.Plan) []byte {
	var b strings.Builder

	title, ok := snapshot.TitleCandidate(p.MetaFields, p.MetaValues)
	if !ok {
		title = ReportTitle
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len([]rune(title))) + "\n\n")

	section(&b, "Informations générales")
	for _, f := range p.MetaFields {
		label := f.Label
		if label == "" {
			label = f.Key
		}
		fmt.Fprintf(&b, "%s: %s\n", label, p.MetaValues[f.Key])
	}
	b.WriteString("\n")

	section(&b, "Semaines")
	for _, w := range p.Weeks {
		b.WriteString(w.Label + "\n")
		fmt.Fprintf(&b, "  Apprentissage: %s\n", w.Learning)
		fmt.Fprintf(&b, "  Devoirs: %s\n", w.Homework)
	}
	b.WriteString("\n")

	section(&b, "Évaluations")
	for i, e := range p.Exams {
		date := e.Date
		if date == "" {
			date = "N/D"
		}
		fmt.Fprintf(&b, "#%d %s • Date: %s • Matière: %s\n", i+1, e.Title, date, e.Coverage)
	}
	b.WriteString("\n")

	section(&b, "Questions du plan")
	for i, q := range p.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Label)
		if a := strings.TrimSpace(p.Answers[q.ID]); a != "" {
			for _, line := range strings.Split(a, "\n") {
				b.WriteString("   " + line + "\n")
			}
		}
	}
	return []byte(b.String())
}

func section(b *strings.Builder, name string) {
	b.WriteString(name + ":\n")
}
