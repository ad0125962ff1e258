// Package oxidb is a TCP client for oxidb-server, limited to the document,
// transaction and blob commands the plan store uses.
//
// Protocol: each message is [4-byte little-endian length][JSON payload].
// Server responds with {"ok": true, "data": ...} or {"ok": false, "error": "..."}.
package oxidb

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Client is a TCP client for oxidb-server. Thread-safe via mutex.
type Client struct {
	conn   net.Conn
	mu     sync.Mutex
	broken atomic.Bool
}

// Connect creates a new client connected to oxidb-server.
func Connect(ctx context.Context, host string, port int, timeout time.Duration) (*Client, error) {
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("oxidb: connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Broken reports whether a transport error left the connection unusable.
func (c *Client) Broken() bool {
	return c.broken.Load()
}

// ------------------------------------------------------------------
// Low-level protocol
// ------------------------------------------------------------------

func (c *Client) sendRaw(data []byte) error {
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	_, err := c.conn.Write(buf)
	return err
}

func (c *Client) recvRaw() ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, lenBuf); err != nil {
		return nil, fmt.Errorf("oxidb: read length: %w", err)
	}
	length := binary.LittleEndian.Uint32(lenBuf)
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, fmt.Errorf("oxidb: read payload: %w", err)
	}
	return payload, nil
}

func (c *Client) request(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("oxidb: marshal request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	if err := c.sendRaw(jsonBytes); err != nil {
		c.broken.Store(true)
		return nil, fmt.Errorf("oxidb: send: %w", err)
	}
	respBytes, err := c.recvRaw()
	if err != nil {
		c.broken.Store(true)
		return nil, err
	}
	var resp map[string]any
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("oxidb: unmarshal response: %w", err)
	}
	return resp, nil
}

func (c *Client) checked(ctx context.Context, payload map[string]any) (any, error) {
	resp, err := c.request(ctx, payload)
	if err != nil {
		return nil, err
	}
	ok, _ := resp["ok"].(bool)
	if !ok {
		errMsg, _ := resp["error"].(string)
		if errMsg == "" {
			errMsg = "unknown error"
		}
		if strings.Contains(strings.ToLower(errMsg), "conflict") {
			return nil, &TransactionConflictError{Msg: errMsg}
		}
		return nil, &Error{Msg: errMsg}
	}
	return resp["data"], nil
}

func asMap(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	// Inside a transaction writes answer "buffered".
	return map[string]any{"status": data}
}

// Ping sends a ping to the server. Returns "pong".
func (c *Client) Ping(ctx context.Context) (string, error) {
	data, err := c.checked(ctx, map[string]any{"cmd": "ping"})
	if err != nil {
		return "", err
	}
	s, _ := data.(string)
	return s, nil
}

// ------------------------------------------------------------------
// Collections and indexes
// ------------------------------------------------------------------

// CreateCollection explicitly creates a collection.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "create_collection", "collection": name})
	return err
}

// CreateIndex creates a non-unique index on a field.
func (c *Client) CreateIndex(ctx context.Context, collection, field string) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "create_index", "collection": collection, "field": field})
	return err
}

// CreateUniqueIndex creates a unique index on a field.
func (c *Client) CreateUniqueIndex(ctx context.Context, collection, field string) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "create_unique_index", "collection": collection, "field": field})
	return err
}

// ------------------------------------------------------------------
// CRUD
// ------------------------------------------------------------------

// Insert inserts a single document.
func (c *Client) Insert(ctx context.Context, collection string, doc map[string]any) (map[string]any, error) {
	data, err := c.checked(ctx, map[string]any{"cmd": "insert", "collection": collection, "doc": doc})
	if err != nil {
		return nil, err
	}
	return asMap(data), nil
}

// FindOptions holds optional parameters for Find.
type FindOptions struct {
	Sort  map[string]any
	Skip  *int
	Limit *int
}

// Find returns documents matching a query.
func (c *Client) Find(ctx context.Context, collection string, query map[string]any, opts *FindOptions) ([]map[string]any, error) {
	payload := map[string]any{"cmd": "find", "collection": collection, "query": query}
	if opts != nil {
		if opts.Sort != nil {
			payload["sort"] = opts.Sort
		}
		if opts.Skip != nil {
			payload["skip"] = *opts.Skip
		}
		if opts.Limit != nil {
			payload["limit"] = *opts.Limit
		}
	}
	data, err := c.checked(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toMapSlice(data), nil
}

// FindOne returns a single document matching a query, or nil.
func (c *Client) FindOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error) {
	data, err := c.checked(ctx, map[string]any{"cmd": "find_one", "collection": collection, "query": query})
	if err != nil {
		return nil, err
	}
	m, _ := data.(map[string]any)
	return m, nil
}

// UpdateOne updates at most one document matching a query.
func (c *Client) UpdateOne(ctx context.Context, collection string, query, update map[string]any) (map[string]any, error) {
	data, err := c.checked(ctx, map[string]any{
		"cmd": "update_one", "collection": collection,
		"query": query, "update": update,
	})
	if err != nil {
		return nil, err
	}
	return asMap(data), nil
}

// DeleteOne deletes at most one document matching a query.
func (c *Client) DeleteOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error) {
	data, err := c.checked(ctx, map[string]any{
		"cmd": "delete_one", "collection": collection, "query": query,
	})
	if err != nil {
		return nil, err
	}
	return asMap(data), nil
}

// Count returns the number of documents matching a query.
func (c *Client) Count(ctx context.Context, collection string, query map[string]any) (int, error) {
	data, err := c.checked(ctx, map[string]any{
		"cmd": "count", "collection": collection, "query": query,
	})
	if err != nil {
		return 0, err
	}
	m, _ := data.(map[string]any)
	count, _ := m["count"].(float64)
	return int(count), nil
}

// ------------------------------------------------------------------
// Transactions
// ------------------------------------------------------------------

// BeginTx starts a transaction on this connection.
func (c *Client) BeginTx(ctx context.Context) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "begin_tx"})
	return err
}

// CommitTx commits the active transaction.
func (c *Client) CommitTx(ctx context.Context) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "commit_tx"})
	return err
}

// RollbackTx rolls back the active transaction.
func (c *Client) RollbackTx(ctx context.Context) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "rollback_tx"})
	return err
}

// WithTransaction executes fn within a transaction.
// Auto-commits on success, auto-rolls back on error. The transaction is
// bound to this connection, so fn must issue its writes through c.
func (c *Client) WithTransaction(ctx context.Context, fn func() error) error {
	if err := c.BeginTx(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = c.RollbackTx(context.WithoutCancel(ctx))
		return err
	}
	return c.CommitTx(ctx)
}

// ------------------------------------------------------------------
// Blob storage
// ------------------------------------------------------------------

// CreateBucket creates a blob storage bucket.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	_, err := c.checked(ctx, map[string]any{"cmd": "create_bucket", "bucket": bucket})
	return err
}

// PutObject uploads a blob object. Data is base64-encoded automatically.
func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (map[string]any, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	payload := map[string]any{
		"cmd":          "put_object",
		"bucket":       bucket,
		"key":          key,
		"data":         base64.StdEncoding.EncodeToString(data),
		"content_type": contentType,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	result, err := c.checked(ctx, payload)
	if err != nil {
		return nil, err
	}
	m, _ := result.(map[string]any)
	return m, nil
}

// GetObject downloads a blob object. Returns (data, metadata).
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, map[string]any, error) {
	result, err := c.checked(ctx, map[string]any{"cmd": "get_object", "bucket": bucket, "key": key})
	if err != nil {
		return nil, nil, err
	}
	m, _ := result.(map[string]any)
	content, _ := m["content"].(string)
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, nil, fmt.Errorf("oxidb: decode base64: %w", err)
	}
	meta, _ := m["metadata"].(map[string]any)
	return decoded, meta, nil
}

func toMapSlice(data any) []map[string]any {
	arr, _ := data.([]any)
	result := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			result = append(result, m)
		}
	}
	return result
}
