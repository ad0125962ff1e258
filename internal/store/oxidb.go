package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/db"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb"
)

const oxidbBackend = "oxidb store"

// client is the slice of the OxiDB client the store needs.
type client interface {
	Insert(ctx context.Context, collection string, doc map[string]any) (map[string]any, error)
	Find(ctx context.Context, collection string, query map[string]any, opts *oxidb.FindOptions) ([]map[string]any, error)
	FindOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error)
	UpdateOne(ctx context.Context, collection string, query, update map[string]any) (map[string]any, error)
	DeleteOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error)
	CreateCollection(ctx context.Context, name string) error
	CreateIndex(ctx context.Context, collection, field string) error
	CreateUniqueIndex(ctx context.Context, collection, field string) error
}

// OxiDB stores documents in oxidb-server collections. Documents are
// addressed by their string "id" field, backed by a unique index; the
// server's own numeric _id is stripped on read.
type OxiDB struct {
	pool *db.Pool
	conn client
}

func NewOxiDB(pool *db.Pool) *OxiDB {
	return &OxiDB{pool: pool}
}

// EnsureCollections creates the collections and their id indexes.
func (s *OxiDB) EnsureCollections(ctx context.Context, colls ...string) error {
	c := s.client()
	for _, coll := range colls {
		if err := c.CreateCollection(ctx, coll); err != nil && !alreadyExists(err) {
			return unavailable(oxidbBackend, fmt.Errorf("create collection %s: %w", coll, err))
		}
		if err := c.CreateUniqueIndex(ctx, coll, IDField); err != nil && !alreadyExists(err) {
			return unavailable(oxidbBackend, fmt.Errorf("index %s.%s: %w", coll, IDField, err))
		}
	}
	return nil
}

// EnsureIndexes creates non-unique indexes on the fields each collection
// is filtered by.
func (s *OxiDB) EnsureIndexes(ctx context.Context, indexes map[string][]string) error {
	c := s.client()
	for coll, fields := range indexes {
		for _, f := range fields {
			if err := c.CreateIndex(ctx, coll, f); err != nil && !alreadyExists(err) {
				return unavailable(oxidbBackend, fmt.Errorf("index %s.%s: %w", coll, f, err))
			}
		}
	}
	return nil
}

func (s *OxiDB) client() client {
	if s.conn != nil {
		return s.conn
	}
	return s.pool.Get()
}

func (s *OxiDB) Get(ctx context.Context, coll, id string) (Doc, error) {
	doc, err := s.client().FindOne(ctx, coll, map[string]any{IDField: id})
	if err != nil {
		return nil, unavailable(oxidbBackend, err)
	}
	if doc == nil {
		return nil, errs.ErrNotFound
	}
	delete(doc, "_id")
	return doc, nil
}

func (s *OxiDB) List(ctx context.Context, coll string, filter Filter, order *Order) ([]Doc, error) {
	query, err := normalizeDoc(Doc(filter))
	if err != nil {
		return nil, err
	}
	found, err := s.client().Find(ctx, coll, query, nil)
	if err != nil {
		return nil, unavailable(oxidbBackend, err)
	}
	docs := make([]Doc, 0, len(found))
	for _, d := range found {
		delete(d, "_id")
		docs = append(docs, d)
	}
	// Ordering happens here so timestamps sort chronologically.
	Sort(docs, &Order{Field: IDField})
	return filterSorted(docs, filter, order), nil
}

func (s *OxiDB) Put(ctx context.Context, coll, id string, doc Doc) (string, error) {
	id = newID(id)
	body, err := normalizeDoc(doc)
	if err != nil {
		return "", err
	}
	body[IDField] = id
	delete(body, "_id")

	c := s.client()
	existing, err := c.FindOne(ctx, coll, map[string]any{IDField: id})
	if err != nil {
		return "", unavailable(oxidbBackend, err)
	}
	if existing == nil {
		if _, err := c.Insert(ctx, coll, body); err != nil {
			return "", unavailable(oxidbBackend, err)
		}
		return id, nil
	}
	// Fields missing from the new version are blanked so Put replaces.
	for k := range existing {
		if _, ok := body[k]; !ok && k != "_id" {
			body[k] = nil
		}
	}
	if _, err := c.UpdateOne(ctx, coll, map[string]any{IDField: id}, map[string]any{"$set": body}); err != nil {
		return "", unavailable(oxidbBackend, err)
	}
	return id, nil
}

func (s *OxiDB) Patch(ctx context.Context, coll, id string, fields Doc) error {
	set, err := normalizeDoc(fields)
	if err != nil {
		return err
	}
	delete(set, IDField)
	delete(set, "_id")
	res, err := s.client().UpdateOne(ctx, coll, map[string]any{IDField: id}, map[string]any{"$set": set})
	if err != nil {
		return unavailable(oxidbBackend, err)
	}
	if n, ok := res["modified"].(float64); ok && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *OxiDB) Delete(ctx context.Context, coll, id string) error {
	res, err := s.client().DeleteOne(ctx, coll, map[string]any{IDField: id})
	if err != nil {
		return unavailable(oxidbBackend, err)
	}
	if n, ok := res["deleted"].(float64); ok && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Atomic runs fn on a dedicated connection inside an OxiDB transaction.
// Writes are buffered server-side until commit; reads inside fn see the
// last committed state.
func (s *OxiDB) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.conn != nil {
		return fn(s)
	}
	c, err := s.pool.Dedicated(ctx)
	if err != nil {
		return unavailable(oxidbBackend, err)
	}
	defer c.Close()

	tx := &OxiDB{pool: s.pool, conn: c}
	var fnErr error
	err = c.WithTransaction(ctx, func() error {
		fnErr = fn(tx)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	var conflict *oxidb.TransactionConflictError
	if errors.As(err, &conflict) {
		return errs.Transition("", "", "concurrent update: %s", conflict.Msg)
	}
	return unavailable(oxidbBackend, err)
}

func alreadyExists(err error) bool {
	var oe *oxidb.Error
	return errors.As(err, &oe) && oe.AlreadyExists()
}
