package oxidb_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb/oxidbtest"
)

func fakeClient(t *testing.T) (*oxidb.Client, *oxidbtest.Server) {
	t.Helper()
	srv := oxidbtest.Start(t)
	c, err := oxidb.Connect(context.Background(), srv.Host(), srv.Port(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestPing(t *testing.T) {
	c, _ := fakeClient(t)
	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)
}

func TestInsertFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := fakeClient(t)

	require.NoError(t, c.CreateCollection(ctx, "plans"))
	_, err := c.Insert(ctx, "plans", map[string]any{"id": "p1", "status": "submitted"})
	require.NoError(t, err)

	doc, err := c.FindOne(ctx, "plans", map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "submitted", doc["status"])

	_, err = c.UpdateOne(ctx, "plans", map[string]any{"id": "p1"}, map[string]any{"$set": map[string]any{"status": "approved"}})
	require.NoError(t, err)
	docs, err := c.Find(ctx, "plans", map[string]any{"status": "approved"}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	n, err := c.Count(ctx, "plans", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.DeleteOne(ctx, "plans", map[string]any{"id": "p1"})
	require.NoError(t, err)
	missing, err := c.FindOne(ctx, "plans", map[string]any{"id": "p1"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	c, srv := fakeClient(t)
	require.NoError(t, c.CreateCollection(ctx, "t"))

	boom := errors.New("boom")
	err := c.WithTransaction(ctx, func() error {
		if _, err := c.Insert(ctx, "t", map[string]any{"id": "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, srv.Docs("t"))

	require.NoError(t, c.WithTransaction(ctx, func() error {
		_, err := c.Insert(ctx, "t", map[string]any{"id": "y"})
		return err
	}))
	assert.Len(t, srv.Docs("t"), 1)
}

func TestServerErrors(t *testing.T) {
	ctx := context.Background()
	c, srv := fakeClient(t)

	srv.FailCommand("commit_tx", "write conflict on doc 3")
	err := c.WithTransaction(ctx, func() error { return nil })
	var conflict *oxidb.TransactionConflictError
	assert.ErrorAs(t, err, &conflict)

	_, _, err = c.GetObject(ctx, "nobucket", "k")
	var oe *oxidb.Error
	require.ErrorAs(t, err, &oe)
	assert.True(t, oe.NotFound())
}

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := fakeClient(t)

	require.NoError(t, c.CreateBucket(ctx, "reports"))
	_, err := c.PutObject(ctx, "reports", "a/b.txt", []byte("bonjour"), "text/plain", nil)
	require.NoError(t, err)

	data, meta, err := c.GetObject(ctx, "reports", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", string(data))
	assert.Equal(t, "text/plain", meta["content_type"])
}

func TestCanceledContext(t *testing.T) {
	c, _ := fakeClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Broken())
}

// TestLiveServer talks to a real oxidb-server when OXIDB_HOST is set.
func TestLiveServer(t *testing.T) {
	host := os.Getenv("OXIDB_HOST")
	if host == "" {
		t.Skip("OXIDB_HOST not set")
	}
	port := 4444
	if p := os.Getenv("OXIDB_PORT"); p != "" {
		port, _ = strconv.Atoi(p)
	}
	c, err := oxidb.Connect(context.Background(), host, port, 5*time.Second)
	require.NoError(t, err)
	defer c.Close()

	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)
}
