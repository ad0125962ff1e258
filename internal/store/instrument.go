package store

import (
	"context"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/metric"
)

// Instrument counts backend failures of s under the backend label. Not
// found and caller errors are not failures.
func Instrument(s Store, backend string, m *metric.Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{Store: s, backend: backend, m: m}
}

type instrumented struct {
	Store
	backend string
	m       *metric.Metrics
}

func (s *instrumented) observe(op string, err error) error {
	if errs.IsUnavailable(err) {
		s.m.ObserveStoreError(s.backend, op)
	}
	return err
}

func (s *instrumented) Get(ctx context.Context, coll, id string) (Doc, error) {
	doc, err := s.Store.Get(ctx, coll, id)
	return doc, s.observe("get", err)
}

func (s *instrumented) List(ctx context.Context, coll string, filter Filter, order *Order) ([]Doc, error) {
	docs, err := s.Store.List(ctx, coll, filter, order)
	return docs, s.observe("list", err)
}

func (s *instrumented) Put(ctx context.Context, coll, id string, doc Doc) (string, error) {
	id, err := s.Store.Put(ctx, coll, id, doc)
	return id, s.observe("put", err)
}

func (s *instrumented) Patch(ctx context.Context, coll, id string, fields Doc) error {
	return s.observe("patch", s.Store.Patch(ctx, coll, id, fields))
}

func (s *instrumented) Delete(ctx context.Context, coll, id string) error {
	return s.observe("delete", s.Store.Delete(ctx, coll, id))
}

func (s *instrumented) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.observe("atomic", s.Store.Atomic(ctx, func(tx Store) error {
		return fn(&instrumented{Store: tx, backend: s.backend, m: s.m})
	}))
}
