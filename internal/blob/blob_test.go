package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/db"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb/oxidbtest"
)

func TestURL(t *testing.T) {
	assert.Equal(t, "http://h/api/v1/blobs/plans/a/1.txt", URL("http://h/", "/plans/a/1.txt"))
	assert.Equal(t, "/api/v1/blobs/x", URL("", "x"))
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	srv := oxidbtest.Start(t)
	pool, err := db.NewPool(ctx, srv.Host(), srv.Port(), 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	oxi := NewOxiDB(pool, "", "http://plans.local")
	require.NoError(t, oxi.EnsureBucket(ctx))
	require.NoError(t, oxi.EnsureBucket(ctx), "existing bucket is fine")

	for name, s := range map[string]Store{
		"memory": NewMemory("http://plans.local"),
		"oxidb":  oxi,
	} {
		t.Run(name, func(t *testing.T) {
			url, err := s.Upload(ctx, "plans/a1/42.txt", []byte("rapport"), "text/plain; charset=utf-8")
			require.NoError(t, err)
			assert.Equal(t, "http://plans.local/api/v1/blobs/plans/a1/42.txt", url)

			data, ct, err := s.Download(ctx, "plans/a1/42.txt")
			require.NoError(t, err)
			assert.Equal(t, "rapport", string(data))
			assert.Equal(t, "text/plain; charset=utf-8", ct)

			_, _, err = s.Download(ctx, "plans/none")
			assert.ErrorIs(t, err, errs.ErrNotFound)
		})
	}
}

func TestOxiDBUploadFailure(t *testing.T) {
	ctx := context.Background()
	srv := oxidbtest.Start(t)
	pool, err := db.NewPool(ctx, srv.Host(), srv.Port(), 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	srv.FailCommand("put_object", "quota exceeded")
	_, err = NewOxiDB(pool, "", "").Upload(ctx, "p", []byte("x"), "")
	assert.True(t, errs.IsUnavailable(err))
}
