package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

func sampleTemplate() *models.Template {
	return &models.Template{
		ID:   "tpl-1",
		Name: "Plan de cours",
		MetaFields: []models.FieldSpec{
			{Key: "title", Label: "Titre", Kind: models.FieldText, Required: true},
			{Key: "objective", Label: "Objectif", Kind: models.FieldMultiline},
		},
		Questions: []models.Question{
			{ID: "q1", Label: "Objectif", Rule: "min 15 words"},
			{ID: "q2", Label: "Évaluation"},
		},
		Weeks:           []models.Week{{ID: "w1", Label: "Semaine 1"}},
		Exams:           []models.Exam{{ID: "e1", Title: "Intra"}},
		StandaloneRules: []models.Rule{{ID: "r1", Text: "Pas de plagiat"}},
	}
}

func TestBuildCopiesEveryPart(t *testing.T) {
	tpl := sampleTemplate()
	snap := Build(tpl)

	assert.Equal(t, tpl.MetaFields, snap.MetaFields)
	assert.Equal(t, tpl.Questions, snap.Questions)
	assert.Equal(t, tpl.Weeks, snap.Weeks)
	assert.Equal(t, tpl.Exams, snap.Exams)
	assert.Equal(t, tpl.StandaloneRules, snap.Rules)

	assert.NotSame(t, &tpl.MetaFields[0], &snap.MetaFields[0])
	assert.NotSame(t, &tpl.Questions[0], &snap.Questions[0])
	assert.NotSame(t, &tpl.Weeks[0], &snap.Weeks[0])
	assert.NotSame(t, &tpl.Exams[0], &snap.Exams[0])
	assert.NotSame(t, &tpl.StandaloneRules[0], &snap.Rules[0])
}

func TestBuildIsIsolatedFromLaterTemplateEdits(t *testing.T) {
	tpl := sampleTemplate()
	snap := Build(tpl)

	tpl.Questions[0].Rule = "min 200 words"
	tpl.Questions = append(tpl.Questions, models.Question{ID: "q3", Label: "Nouveau"})
	tpl.MetaFields[0].Label = "Intitulé"
	tpl.Weeks[0].Learning = "changed"

	assert.Equal(t, "min 15 words", snap.Questions[0].Rule)
	assert.Len(t, snap.Questions, 2)
	assert.Equal(t, "Titre", snap.MetaFields[0].Label)
	assert.Empty(t, snap.Weeks[0].Learning)
}

func TestBuildNilPartsBecomeEmpty(t *testing.T) {
	snap := Build(&models.Template{})
	assert.NotNil(t, snap.MetaFields)
	assert.NotNil(t, snap.Questions)
	assert.NotNil(t, snap.Weeks)
	assert.NotNil(t, snap.Exams)
	assert.NotNil(t, snap.Rules)
}

func TestRebuildKeepsStructureAndRelabelsWeeks(t *testing.T) {
	existing := Build(sampleTemplate())
	weeks := []models.Week{
		{ID: "w2", Label: "Semaine 2", Learning: "Boucles"},
		{ID: "w3", Label: "Semaine 3", Learning: "Fonctions"},
	}
	got := Rebuild(existing, weeks, nil)

	assert.Equal(t, existing.Questions, got.Questions)
	require.Len(t, got.Weeks, 2)
	assert.Equal(t, "Semaine 1", got.Weeks[0].Label)
	assert.Equal(t, "w2", got.Weeks[0].ID)
	assert.Equal(t, "Semaine 2", got.Weeks[1].Label)
	assert.Empty(t, got.Exams)
	assert.Equal(t, "Semaine 2", weeks[0].Label, "caller rows are not relabeled")
}

func TestTitle(t *testing.T) {
	fields := []models.FieldSpec{
		{Key: "code", Label: "Code du cours"},
		{Key: "course_title", Label: "Course Title"},
		{Key: "title", Label: "Intitulé"},
	}

	t.Run("key title wins", func(t *testing.T) {
		got := Title(fields, map[string]string{"title": " Algo ", "course_title": "Other"})
		assert.Equal(t, "Algo", got)
	})
	t.Run("label fallback", func(t *testing.T) {
		got := Title(fields, map[string]string{"course_title": "Réseaux"})
		assert.Equal(t, "Réseaux", got)
	})
	t.Run("french label", func(t *testing.T) {
		got := Title([]models.FieldSpec{{Key: "nom", Label: "Titre du cours"}}, map[string]string{"nom": "Bases de données"})
		assert.Equal(t, "Bases de données", got)
	})
	t.Run("default", func(t *testing.T) {
		assert.Equal(t, DefaultTitle, Title(fields, map[string]string{}))
	})
}

func TestLegacyMetaIsSynthesizedOnRead(t *testing.T) {
	doc := map[string]any{"meta": map[string]any{"title": "X"}}

	fields, values := Canonical(ShapeOf(doc))

	require.Len(t, fields, 1)
	assert.Equal(t, "title", fields[0].Key)
	assert.Equal(t, "X", values["title"])
}

func TestLegacyMetaOrderAndExtras(t *testing.T) {
	doc := map[string]any{"metaSnapshot": map[string]any{
		"description": "Intro",
		"zeta":        "z",
		"title":       "Algo",
		"credits":     float64(3),
		"objective":   "Apprendre",
	}}

	fields, values := Canonical(ShapeOf(doc))

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"title", "objective", "description", "credits", "zeta"}, keys)
	assert.Equal(t, "3", values["credits"])
}

func TestDynamicShapePassesThrough(t *testing.T) {
	doc := map[string]any{
		"metaFieldsSnapshot": []any{
			map[string]any{"key": "title", "label": "Titre", "type": "textarea", "required": true},
		},
		"metaValuesSnapshot": map[string]any{"title": "Algo"},
	}

	shape := ShapeOf(doc)
	require.IsType(t, Dynamic{}, shape)

	fields, values := Canonical(shape)
	require.Len(t, fields, 1)
	assert.Equal(t, models.FieldMultiline, fields[0].Kind)
	assert.True(t, fields[0].Required)
	assert.Equal(t, "Algo", values["title"])
}

func TestNormalizeDoc(t *testing.T) {
	doc := map[string]any{"metaSnapshot": map[string]any{"title": "X", "objective": "Y"}}

	NormalizeDoc(doc)

	assert.NotContains(t, doc, "metaSnapshot")
	fields, ok := doc["metaFieldsSnapshot"].([]any)
	require.True(t, ok)
	assert.Len(t, fields, 2)
	assert.Equal(t, map[string]any{"title": "X", "objective": "Y"}, doc["metaValuesSnapshot"])
}

func TestWeekRowsKeepIdentityOnRemoval(t *testing.T) {
	weeks := AddWeek(AddWeek(AddWeek(nil)))
	require.Len(t, weeks, 3)
	second, third := weeks[1].ID, weeks[2].ID

	weeks = RemoveWeek(weeks, weeks[0].ID)

	require.Len(t, weeks, 2)
	assert.Equal(t, second, weeks[0].ID)
	assert.Equal(t, third, weeks[1].ID)
	assert.Equal(t, "Semaine 1", weeks[0].Label)
	assert.Equal(t, "Semaine 2", weeks[1].Label)
}

func TestExamRows(t *testing.T) {
	exams := AddExam(AddExam(nil))
	require.Len(t, exams, 2)
	assert.NotEqual(t, exams[0].ID, exams[1].ID)

	exams = RemoveExam(exams, exams[1].ID)
	assert.Len(t, exams, 1)
	assert.Len(t, RemoveExam(exams, "missing"), 1)
}

func TestSeedWeeks(t *testing.T) {
	seeded := SeedWeeks(nil)
	require.Len(t, seeded, 1)
	assert.Equal(t, "Semaine 1", seeded[0].Label)
	assert.NotEmpty(t, seeded[0].ID)

	existing := []models.Week{{ID: "w1", Label: "Semaine 1"}}
	assert.Equal(t, existing, SeedWeeks(existing))
}
