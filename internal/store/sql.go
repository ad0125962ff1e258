package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
)

const sqlBackend = "sqlite store"

// record is one document row. Documents are kept whole as JSON; filtering
// and ordering happen after load.
type record struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:64"`
	Body       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (record) TableName() string { return "documents" }

// SQL stores documents in a single table through gorm. It backs the
// embedded single-node deployment.
type SQL struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the sqlite database at path and migrates
// the documents table. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewSQL(db)
}

// NewSQL wraps an open gorm handle.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("store: migrate documents: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) Get(ctx context.Context, coll, id string) (Doc, error) {
	var r record
	err := s.db.WithContext(ctx).First(&r, "collection = ? AND id = ?", coll, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(sqlBackend, err)
	}
	return decodeRecord(r)
}

func (s *SQL) List(ctx context.Context, coll string, filter Filter, order *Order) ([]Doc, error) {
	var rows []record
	if err := s.db.WithContext(ctx).Where("collection = ?", coll).Order("id").Find(&rows).Error; err != nil {
		return nil, unavailable(sqlBackend, err)
	}
	docs := make([]Doc, 0, len(rows))
	for _, r := range rows {
		d, err := decodeRecord(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return filterSorted(docs, filter, order), nil
}

func (s *SQL) Put(ctx context.Context, coll, id string, doc Doc) (string, error) {
	id = newID(id)
	body := make(Doc, len(doc)+1)
	for k, v := range doc {
		body[k] = v
	}
	body[IDField] = id
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("store: encode document: %w", err)
	}
	r := record{Collection: coll, ID: id, Body: string(raw)}
	if err := s.db.WithContext(ctx).Save(&r).Error; err != nil {
		return "", unavailable(sqlBackend, err)
	}
	return id, nil
}

func (s *SQL) Patch(ctx context.Context, coll, id string, fields Doc) error {
	return s.Atomic(ctx, func(tx Store) error {
		doc, err := tx.Get(ctx, coll, id)
		if err != nil {
			return err
		}
		for k, v := range fields {
			if k != IDField {
				doc[k] = v
			}
		}
		_, err = tx.Put(ctx, coll, id, doc)
		return err
	})
}

func (s *SQL) Delete(ctx context.Context, coll, id string) error {
	res := s.db.WithContext(ctx).Where("collection = ? AND id = ?", coll, id).Delete(&record{})
	if res.Error != nil {
		return unavailable(sqlBackend, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Atomic runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (s *SQL) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQL{db: tx})
	})
}

// Close releases the underlying connection pool.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRecord(r record) (Doc, error) {
	var doc Doc
	if err := json.Unmarshal([]byte(r.Body), &doc); err != nil {
		return nil, fmt.Errorf("store: decode %s/%s: %w", r.Collection, r.ID, err)
	}
	if doc == nil {
		doc = Doc{}
	}
	doc[IDField] = r.ID
	return doc, nil
}
