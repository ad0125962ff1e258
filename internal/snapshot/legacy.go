package snapshot

import (
	"fmt"
	"sort"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
)

// MetaShape is the general-information block of a stored plan, in one of
// the two shapes it has been persisted with.
type MetaShape interface {
	metaShape()
}

// Legacy is the flat {title, objective, description, ...} object plans
// carried before meta fields became dynamic.
type Legacy struct {
	Values map[string]string
}

// Dynamic is the field-spec plus value-map shape.
type Dynamic struct {
	Fields []models.FieldSpec
	Values map[string]string
}

func (Legacy) metaShape()  {}
func (Dynamic) metaShape() {}

var legacyOrder = []struct {
	key   string
	label string
	kind  models.FieldKind
}{
	{"title", "Titre", models.FieldText},
	{"objective", "Objectif", models.FieldMultiline},
	{"description", "Description", models.FieldMultiline},
}

// Canonical turns either shape into field specs plus values. Legacy keys
// title, objective and description come first, then any other keys in
// lexical order.
func Canonical(shape MetaShape) ([]models.FieldSpec, map[string]string) {
	switch s := shape.(type) {
	case Dynamic:
		return append([]models.FieldSpec(nil), s.Fields...), CopyValues(s.Values)
	case Legacy:
		values := CopyValues(s.Values)
		fields := make([]models.FieldSpec, 0, len(values))
		seen := make(map[string]bool, len(values))
		for _, l := range legacyOrder {
			if _, ok := values[l.key]; !ok {
				continue
			}
			fields = append(fields, models.FieldSpec{Key: l.key, Label: l.label, Kind: l.kind})
			seen[l.key] = true
		}
		rest := make([]string, 0, len(values))
		for k := range values {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			fields = append(fields, models.FieldSpec{Key: k, Label: k, Kind: models.FieldText})
		}
		return fields, values
	}
	return []models.FieldSpec{}, map[string]string{}
}

// ShapeOf inspects a raw stored plan document and reports which meta shape
// it carries. Documents with metaFieldsSnapshot are Dynamic; documents with
// only a flat meta object ("meta" or "metaSnapshot") are Legacy. Values in
// metaValuesSnapshot win over legacy values with the same key.
func ShapeOf(doc map[string]any) MetaShape {
	values := stringMap(doc["metaValuesSnapshot"])
	if raw, ok := doc["metaFieldsSnapshot"].([]any); ok && len(raw) > 0 {
		return Dynamic{Fields: decodeFields(raw), Values: values}
	}
	legacy := stringMap(doc["metaSnapshot"])
	if len(legacy) == 0 {
		legacy = stringMap(doc["meta"])
	}
	if len(legacy) == 0 && len(values) == 0 {
		return Dynamic{Fields: []models.FieldSpec{}, Values: map[string]string{}}
	}
	for k, v := range values {
		legacy[k] = v
	}
	return Legacy{Values: legacy}
}

// NormalizeDoc rewrites the meta block of a raw plan document in place so
// it always carries metaFieldsSnapshot and metaValuesSnapshot.
func NormalizeDoc(doc map[string]any) {
	fields, values := Canonical(ShapeOf(doc))
	rawFields := make([]any, 0, len(fields))
	for _, f := range fields {
		rawFields = append(rawFields, map[string]any{
			"key":         f.Key,
			"label":       f.Label,
			"type":        string(f.Kind),
			"required":    f.Required,
			"placeholder": f.Placeholder,
		})
	}
	rawValues := make(map[string]any, len(values))
	for k, v := range values {
		rawValues[k] = v
	}
	doc["metaFieldsSnapshot"] = rawFields
	doc["metaValuesSnapshot"] = rawValues
	delete(doc, "metaSnapshot")
	delete(doc, "meta")
}

func decodeFields(raw []any) []models.FieldSpec {
	fields := make([]models.FieldSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f := models.FieldSpec{
			Key:         str(m["key"]),
			Label:       str(m["label"]),
			Kind:        models.FieldKind(str(m["type"])),
			Placeholder: str(m["placeholder"]),
		}
		f.Required, _ = m["required"].(bool)
		if f.Kind == "textarea" {
			f.Kind = models.FieldMultiline
		}
		if f.Kind == "" {
			f.Kind = models.FieldText
		}
		if f.Key == "" {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if val == nil {
			out[k] = ""
			continue
		}
		out[k] = str(val)
	}
	return out
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return fmt.Sprint(x)
	}
}
