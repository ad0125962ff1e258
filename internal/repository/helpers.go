package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
)

const (
	TemplatesCollection = "formTemplates"
	PlansCollection     = "coursePlans"
	UsersCollection     = "users"
)

// Collections lists every collection the repositories use.
var Collections = []string{TemplatesCollection, PlansCollection, UsersCollection}

// Indexes lists the fields each collection is queried by.
var Indexes = map[string][]string{
	TemplatesCollection: {"creatorId", "active"},
	PlansCollection:     {"authorId", "status"},
	UsersCollection:     {"email"},
}

var newestFirst = &store.Order{Field: "createdAt", Desc: true}

// toDoc converts a model into a store document through its JSON form.
func toDoc(v any) (store.Doc, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal doc: %w", err)
	}
	var doc store.Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal doc: %w", err)
	}
	delete(doc, store.IDField)
	return doc, nil
}

// fromDoc decodes a store document into a model.
func fromDoc(doc store.Doc, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal doc: %w", err)
	}
	return nil
}

// rename moves a legacy field to its current name unless the current name
// is already set.
func rename(doc store.Doc, from, to string) {
	v, ok := doc[from]
	if !ok {
		return
	}
	if cur, set := doc[to]; !set || cur == nil || cur == "" {
		doc[to] = v
	}
	delete(doc, from)
}

// stringifyIDs turns numeric "id" fields of array entries into strings.
// Older plans numbered weeks and exams by position.
func stringifyIDs(doc store.Doc, field string) {
	items, _ := doc[field].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch v := m["id"].(type) {
		case float64:
			m["id"] = fmt.Sprintf("%.0f", v)
		case nil:
			m["id"] = ""
		}
	}
}

// upgradeRules accepts rule lists stored as bare strings.
func upgradeRules(doc store.Doc, field string) {
	items, ok := doc[field].([]any)
	if !ok {
		return
	}
	for i, item := range items {
		if s, ok := item.(string); ok {
			items[i] = map[string]any{"id": fmt.Sprintf("rule-%d", i+1), "text": s}
		}
	}
	stringifyIDs(doc, field)
}

// fixTime rewrites timestamps stored as epoch milliseconds or as
// {seconds, nanoseconds} objects into RFC 3339.
func fixTime(doc store.Doc, field string) {
	switch v := doc[field].(type) {
	case float64:
		doc[field] = time.UnixMilli(int64(v)).UTC().Format(time.RFC3339Nano)
	case map[string]any:
		sec, _ := v["seconds"].(float64)
		nsec, _ := v["nanoseconds"].(float64)
		doc[field] = time.Unix(int64(sec), int64(nsec)).UTC().Format(time.RFC3339Nano)
	case string:
		if v == "" {
			delete(doc, field)
		}
	}
}
