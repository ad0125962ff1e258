// Package oxidbtest runs an in-process stand-in for oxidb-server that speaks
// the same framing and understands the subset of commands the plan store
// sends: collections, equality queries, $set updates, per-connection
// transactions and buckets.
package oxidbtest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"reflect"
	"sort"
	"sync"
	"testing"
)

type Server struct {
	ln net.Listener

	mu      sync.Mutex
	nextID  int
	colls   map[string][]map[string]any
	buckets map[string]map[string]object
	fail    map[string]string
}

type object struct {
	Data        string
	ContentType string
}

// Start listens on a loopback port and serves until the test ends.
func Start(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("oxidbtest: listen: %v", err)
	}
	s := &Server{
		ln:      ln,
		colls:   map[string][]map[string]any{},
		buckets: map[string]map[string]object{},
		fail:    map[string]string{},
	}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

// Host and Port of the listener.
func (s *Server) Host() string { return "127.0.0.1" }

func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// FailCommand makes every later cmd answer with an error response.
func (s *Server) FailCommand(cmd, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[cmd] = msg
}

// Docs returns a copy of a collection's documents.
func (s *Server) Docs(coll string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.colls[coll]))
	for _, d := range s.colls[coll] {
		out = append(out, clone(d))
	}
	return out
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

type session struct {
	inTx    bool
	pending []func()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	sess := &session{}
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var req map[string]any
		resp := map[string]any{"ok": true}
		if err := json.Unmarshal(payload, &req); err != nil {
			resp = map[string]any{"ok": false, "error": err.Error()}
		} else if data, err := s.exec(sess, req); err != nil {
			resp = map[string]any{"ok": false, "error": err.Error()}
		} else {
			resp["data"] = data
		}
		out, _ := json.Marshal(resp)
		frame := make([]byte, 4+len(out))
		binary.LittleEndian.PutUint32(frame, uint32(len(out)))
		copy(frame[4:], out)
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *Server) exec(sess *session, req map[string]any) (any, error) {
	cmd, _ := req["cmd"].(string)
	coll, _ := req["collection"].(string)
	query, _ := req["query"].(map[string]any)

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.fail[cmd]; ok {
		return nil, fmt.Errorf("%s", msg)
	}

	// Writes inside a transaction are applied on commit.
	write := func(fn func()) any {
		if sess.inTx {
			sess.pending = append(sess.pending, fn)
			return "buffered"
		}
		fn()
		return nil
	}

	switch cmd {
	case "ping":
		return "pong", nil
	case "create_collection", "create_index", "create_unique_index":
		if _, ok := s.colls[coll]; !ok {
			s.colls[coll] = []map[string]any{}
		}
		return nil, nil
	case "insert":
		doc, _ := req["doc"].(map[string]any)
		s.nextID++
		id := s.nextID
		doc = clone(doc)
		doc["_id"] = float64(id)
		if buffered := write(func() { s.colls[coll] = append(s.colls[coll], doc) }); buffered != nil {
			return buffered, nil
		}
		return map[string]any{"id": id}, nil
	case "find":
		docs := s.match(coll, query)
		if srt, ok := req["sort"].(map[string]any); ok {
			for field, dir := range srt {
				desc := dir == float64(-1)
				sort.SliceStable(docs, func(i, j int) bool {
					a, b := fmt.Sprint(docs[i][field]), fmt.Sprint(docs[j][field])
					if desc {
						return a > b
					}
					return a < b
				})
			}
		}
		return docs, nil
	case "find_one":
		docs := s.match(coll, query)
		if len(docs) == 0 {
			return nil, nil
		}
		return docs[0], nil
	case "count":
		return map[string]any{"count": len(s.match(coll, query))}, nil
	case "update_one":
		update, _ := req["update"].(map[string]any)
		set, _ := update["$set"].(map[string]any)
		modified := 0
		for _, d := range s.colls[coll] {
			if matches(d, query) {
				modified = 1
				target := d
				if buffered := write(func() {
					for k, v := range set {
						target[k] = v
					}
				}); buffered != nil {
					return buffered, nil
				}
				break
			}
		}
		return map[string]any{"modified": modified}, nil
	case "delete_one":
		for _, d := range s.colls[coll] {
			if matches(d, query) {
				target := d
				if buffered := write(func() { s.remove(coll, target) }); buffered != nil {
					return buffered, nil
				}
				return map[string]any{"deleted": 1}, nil
			}
		}
		return map[string]any{"deleted": 0}, nil
	case "begin_tx":
		sess.inTx, sess.pending = true, nil
		return map[string]any{"tx_id": 1}, nil
	case "commit_tx":
		for _, fn := range sess.pending {
			fn()
		}
		sess.inTx, sess.pending = false, nil
		return nil, nil
	case "rollback_tx":
		sess.inTx, sess.pending = false, nil
		return nil, nil
	case "create_bucket":
		bucket, _ := req["bucket"].(string)
		if _, ok := s.buckets[bucket]; ok {
			return nil, fmt.Errorf("bucket %s already exists", bucket)
		}
		s.buckets[bucket] = map[string]object{}
		return nil, nil
	case "put_object":
		bucket, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		b, ok := s.buckets[bucket]
		if !ok {
			return nil, fmt.Errorf("bucket %s not found", bucket)
		}
		data, _ := req["data"].(string)
		ct, _ := req["content_type"].(string)
		b[key] = object{Data: data, ContentType: ct}
		return map[string]any{"key": key, "size": len(data)}, nil
	case "get_object":
		bucket, _ := req["bucket"].(string)
		key, _ := req["key"].(string)
		obj, ok := s.buckets[bucket][key]
		if !ok {
			return nil, fmt.Errorf("object %s not found", key)
		}
		return map[string]any{
			"content":  obj.Data,
			"metadata": map[string]any{"content_type": obj.ContentType},
		}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func (s *Server) match(coll string, query map[string]any) []map[string]any {
	out := []map[string]any{}
	for _, d := range s.colls[coll] {
		if matches(d, query) {
			out = append(out, clone(d))
		}
	}
	return out
}

func (s *Server) remove(coll string, target map[string]any) {
	docs := s.colls[coll]
	for i, d := range docs {
		if reflect.ValueOf(d).Pointer() == reflect.ValueOf(target).Pointer() {
			s.colls[coll] = append(docs[:i:i], docs[i+1:]...)
			return
		}
	}
}

func matches(doc, query map[string]any) bool {
	for k, want := range query {
		if !reflect.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

func clone(doc map[string]any) map[string]any {
	b, _ := json.Marshal(doc)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
