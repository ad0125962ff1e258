// Package blob stores rendered plan reports and hands back a URL that the
// HTTP layer can serve them from.
package blob

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/db"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb"
)

// RoutePrefix is where the HTTP layer serves stored objects.
const RoutePrefix = "/api/v1/blobs/"

type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, path string) ([]byte, string, error)
}

// URL joins the public base with the blob route and path.
func URL(publicBase, path string) string {
	return strings.TrimRight(publicBase, "/") + RoutePrefix + strings.TrimLeft(path, "/")
}

// Memory keeps objects in process.
type Memory struct {
	base string
	mu   sync.RWMutex
	objs map[string]object
}

type object struct {
	data        []byte
	contentType string
}

func NewMemory(publicBase string) *Memory {
	return &Memory{base: publicBase, objs: map[string]object{}}
}

func (m *Memory) Upload(_ context.Context, path string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[path] = object{data: append([]byte(nil), data...), contentType: contentType}
	return URL(m.base, path), nil
}

func (m *Memory) Download(_ context.Context, path string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objs[path]
	if !ok {
		return nil, "", errs.ErrNotFound
	}
	return append([]byte(nil), o.data...), o.contentType, nil
}

// DefaultBucket holds plan reports in OxiDB.
const DefaultBucket = "plan_reports"

const oxidbBackend = "oxidb blob store"

// OxiDB stores objects in an oxidb-server bucket.
type OxiDB struct {
	pool   *db.Pool
	bucket string
	base   string
}

func NewOxiDB(pool *db.Pool, bucket, publicBase string) *OxiDB {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &OxiDB{pool: pool, bucket: bucket, base: publicBase}
}

// EnsureBucket creates the bucket unless it already exists.
func (o *OxiDB) EnsureBucket(ctx context.Context) error {
	err := o.pool.Get().CreateBucket(ctx, o.bucket)
	var oe *oxidb.Error
	if errors.As(err, &oe) && oe.AlreadyExists() {
		return nil
	}
	return errs.Unavailable(oxidbBackend, err)
}

func (o *OxiDB) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := o.pool.Get().PutObject(ctx, o.bucket, path, data, contentType, nil)
	if err != nil {
		return "", errs.Unavailable(oxidbBackend, err)
	}
	return URL(o.base, path), nil
}

func (o *OxiDB) Download(ctx context.Context, path string) ([]byte, string, error) {
	data, meta, err := o.pool.Get().GetObject(ctx, o.bucket, path)
	if err != nil {
		var oe *oxidb.Error
		if errors.As(err, &oe) && oe.NotFound() {
			return nil, "", errs.ErrNotFound
		}
		return nil, "", errs.Unavailable(oxidbBackend, err)
	}
	ct, _ := meta["content_type"].(string)
	return data, ct, nil
}
