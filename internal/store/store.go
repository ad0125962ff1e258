// Package store is the document store the plan workflow persists through:
// schemaless JSON documents keyed by string id and grouped in collections.
// Every backend guarantees single-document atomic writes; Atomic groups
// several writes when a backend can commit them together.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
)

// Doc is a stored document. The "id" field always holds the document id.
type Doc = map[string]any

// Filter selects documents whose top-level fields equal the given values.
type Filter map[string]any

// Order sorts a listing by one field. Timestamps stored as RFC 3339 strings
// sort chronologically.
type Order struct {
	Field string
	Desc  bool
}

type Store interface {
	// Get returns errs.ErrNotFound when no document has id.
	Get(ctx context.Context, coll, id string) (Doc, error)
	List(ctx context.Context, coll string, filter Filter, order *Order) ([]Doc, error)
	// Put writes doc under id, replacing any previous version. An empty id
	// gets a fresh one, which is returned.
	Put(ctx context.Context, coll, id string, doc Doc) (string, error)
	// Patch overwrites the given top-level fields of an existing document.
	Patch(ctx context.Context, coll, id string, fields Doc) error
	Delete(ctx context.Context, coll, id string) error
	// Atomic runs fn so that its writes commit together or not at all.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}

// IDField is the document field holding the id.
const IDField = "id"

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// normalize round-trips v through JSON so that documents and filters carry
// the same dynamic types (float64, string, bool, []any, map[string]any).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDoc(doc Doc) (Doc, error) {
	v, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	m, _ := v.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Matches reports whether doc satisfies filter.
func Matches(doc Doc, filter Filter) bool {
	if len(filter) == 0 {
		return true
	}
	want, err := normalize(map[string]any(filter))
	if err != nil {
		return false
	}
	for k, v := range want.(map[string]any) {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

// Sort orders docs in place.
func Sort(docs []Doc, order *Order) {
	if order == nil || order.Field == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		c := compare(docs[i][order.Field], docs[j][order.Field])
		if order.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			tx, errX := time.Parse(time.RFC3339Nano, x)
			ty, errY := time.Parse(time.RFC3339Nano, y)
			if errX == nil && errY == nil {
				return tx.Compare(ty)
			}
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	// Missing values sort first.
	switch {
	case a == nil && b != nil:
		return -1
	case a != nil && b == nil:
		return 1
	}
	return 0
}

// filterSorted applies filter and order to docs.
func filterSorted(docs []Doc, filter Filter, order *Order) []Doc {
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if Matches(d, filter) {
			out = append(out, d)
		}
	}
	Sort(out, order)
	return out
}

func unavailable(backend string, err error) error {
	return errs.Unavailable(backend, err)
}
