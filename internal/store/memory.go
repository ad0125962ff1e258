package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
)

// Memory keeps documents in process. Documents are stored encoded so no
// caller ever shares a map with the store.
type Memory struct {
	mu   sync.RWMutex
	data memData
}

type memData map[string]map[string][]byte

func NewMemory() *Memory {
	return &Memory{data: memData{}}
}

func (m *Memory) Get(ctx context.Context, coll, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.get(coll, id)
}

func (m *Memory) List(ctx context.Context, coll string, filter Filter, order *Order) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.list(coll, filter, order)
}

func (m *Memory) Put(ctx context.Context, coll, id string, doc Doc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.put(coll, id, doc)
}

func (m *Memory) Patch(ctx context.Context, coll, id string, fields Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.patch(coll, id, fields)
}

func (m *Memory) Delete(ctx context.Context, coll, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.delete(coll, id)
}

// Atomic runs fn against a private copy and swaps it in on success. Other
// writers wait until fn returns.
func (m *Memory) Atomic(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.data.clone()
	if err := fn(&memTx{data: staged}); err != nil {
		return err
	}
	m.data = staged
	return nil
}

// memTx is the Store handed to an Atomic callback. The outer lock is
// already held.
type memTx struct {
	data memData
}

func (t *memTx) Get(_ context.Context, coll, id string) (Doc, error) { return t.data.get(coll, id) }

func (t *memTx) List(_ context.Context, coll string, filter Filter, order *Order) ([]Doc, error) {
	return t.data.list(coll, filter, order)
}

func (t *memTx) Put(_ context.Context, coll, id string, doc Doc) (string, error) {
	return t.data.put(coll, id, doc)
}

func (t *memTx) Patch(_ context.Context, coll, id string, fields Doc) error {
	return t.data.patch(coll, id, fields)
}

func (t *memTx) Delete(_ context.Context, coll, id string) error { return t.data.delete(coll, id) }

func (t *memTx) Atomic(_ context.Context, fn func(tx Store) error) error { return fn(t) }

func (d memData) get(coll, id string) (Doc, error) {
	raw, ok := d[coll][id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d memData) list(coll string, filter Filter, order *Order) ([]Doc, error) {
	docs := make([]Doc, 0, len(d[coll]))
	for _, raw := range d[coll] {
		var doc Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	// Map iteration is random; sort by id first so unordered listings are
	// stable.
	Sort(docs, &Order{Field: IDField})
	return filterSorted(docs, filter, order), nil
}

func (d memData) put(coll, id string, doc Doc) (string, error) {
	id = newID(id)
	body := make(Doc, len(doc)+1)
	for k, v := range doc {
		body[k] = v
	}
	body[IDField] = id
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	if d[coll] == nil {
		d[coll] = map[string][]byte{}
	}
	d[coll][id] = raw
	return id, nil
}

func (d memData) patch(coll, id string, fields Doc) error {
	doc, err := d.get(coll, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		if k == IDField {
			continue
		}
		doc[k] = v
	}
	_, err = d.put(coll, id, doc)
	return err
}

func (d memData) delete(coll, id string) error {
	if _, ok := d[coll][id]; !ok {
		return errs.ErrNotFound
	}
	delete(d[coll], id)
	return nil
}

func (d memData) clone() memData {
	out := make(memData, len(d))
	for coll, docs := range d {
		c := make(map[string][]byte, len(docs))
		for id, raw := range docs {
			c[id] = raw
		}
		out[coll] = c
	}
	return out
}
