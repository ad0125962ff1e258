package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/oxidb"
)

const dialTimeout = 5 * time.Second

// Pool is a round-robin connection pool for OxiDB with auto-reconnect.
type Pool struct {
	host    string
	port    int
	clients []*oxidb.Client
	mu      sync.RWMutex
	idx     uint64
	stop    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

// NewPool creates a pool of size OxiDB connections.
func NewPool(ctx context.Context, host string, port, size int, logger *slog.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		host:    host,
		port:    port,
		clients: make([]*oxidb.Client, size),
		stop:    make(chan struct{}),
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		c, err := oxidb.Connect(ctx, host, port, dialTimeout)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	// Keepalive pings every 10 seconds prevent the server's idle timeout.
	go p.keepalive()
	return p, nil
}

// Get returns the next client in round-robin order. A client whose last
// call failed at the transport level is replaced first.
func (p *Pool) Get() *oxidb.Client {
	n := atomic.AddUint64(&p.idx, 1)
	i := int(n % uint64(len(p.clients)))
	p.mu.RLock()
	c := p.clients[i]
	p.mu.RUnlock()
	if c.Broken() {
		p.reconnect(i)
		p.mu.RLock()
		c = p.clients[i]
		p.mu.RUnlock()
	}
	return c
}

// Dedicated opens a connection outside the round-robin set. Transactions
// are bound to a connection, so they must not share one with concurrent
// requests. The caller closes it.
func (p *Pool) Dedicated(ctx context.Context) (*oxidb.Client, error) {
	return oxidb.Connect(ctx, p.host, p.port, dialTimeout)
}

func (p *Pool) reconnect(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.clients[i]
	if !old.Broken() {
		return
	}
	c, err := oxidb.Connect(context.Background(), p.host, p.port, dialTimeout)
	if err != nil {
		p.logger.Warn("pool: reconnect failed", "client", i, "error", err)
		return
	}
	_ = old.Close()
	p.clients[i] = c
}

func (p *Pool) keepalive() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			for i := range p.clients {
				p.mu.RLock()
				c := p.clients[i]
				p.mu.RUnlock()
				ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
				_, err := c.Ping(ctx)
				cancel()
				if err != nil {
					p.logger.Warn("pool: ping failed, reconnecting", "client", i, "error", err)
					p.reconnect(i)
				}
			}
		}
	}
}

// Ping checks one pooled connection.
func (p *Pool) Ping(ctx context.Context) error {
	_, err := p.Get().Ping(ctx)
	return err
}

// Close closes all connections.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.stop)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range p.clients {
			if c != nil {
				_ = c.Close()
			}
		}
	})
}
