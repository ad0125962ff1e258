package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb/oxidbtest"
)

func TestPoolRoundRobin(t *testing.T) {
	srv := oxidbtest.Start(t)
	p, err := NewPool(context.Background(), srv.Host(), srv.Port(), 3, nil)
	require.NoError(t, err)
	defer p.Close()

	seen := map[any]bool{}
	for i := 0; i < 3; i++ {
		seen[p.Get()] = true
	}
	assert.Len(t, seen, 3)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPoolDedicated(t *testing.T) {
	srv := oxidbtest.Start(t)
	p, err := NewPool(context.Background(), srv.Host(), srv.Port(), 1, nil)
	require.NoError(t, err)
	defer p.Close()

	c, err := p.Dedicated(context.Background())
	require.NoError(t, err)
	defer c.Close()
	assert.NotSame(t, p.Get(), c)
}

func TestPoolConnectFailure(t *testing.T) {
	_, err := NewPool(context.Background(), "127.0.0.1", 1, 1, nil)
	assert.Error(t, err)
}

func TestPoolCloseTwice(t *testing.T) {
	srv := oxidbtest.Start(t)
	p, err := NewPool(context.Background(), srv.Host(), srv.Port(), 1, nil)
	require.NoError(t, err)
	p.Close()
	assert.NotPanics(t, p.Close)
}
