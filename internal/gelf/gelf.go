// Package gelf ships log lines to a Graylog input over UDP.
package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Writer sends one GELF message per Write and implements io.Writer so it
// can sit behind an slog.JSONHandler via io.MultiWriter.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "oxiplan-server"
	}
	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// Write implements io.Writer. Lines written by slog's JSON handler have
// their msg, level and attributes lifted into GELF fields; anything else
// is sent verbatim as the short message.
func (w *Writer) Write(p []byte) (int, error) {
	payload, err := json.Marshal(w.message(p))
	if err != nil {
		return len(p), nil // don't fail the log call
	}
	// Fire-and-forget
	w.conn.Write(payload)
	return len(p), nil
}

func (w *Writer) Close() error {
	return w.conn.Close()
}

func (w *Writer) message(p []byte) map[string]any {
	line := strings.TrimRight(string(p), "\n")
	msg := map[string]any{
		"version":       "1.1",
		"host":          w.hostname,
		"short_message": line,
		"timestamp":     float64(time.Now().UnixNano()) / 1e9,
		"level":         6,
		"_service":      w.service,
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return msg
	}
	if s, ok := rec["msg"].(string); ok {
		msg["short_message"] = s
	}
	if lvl, ok := rec["level"].(string); ok {
		msg["level"] = syslogLevel(lvl)
	}
	if ts, ok := rec["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg["timestamp"] = float64(t.UnixNano()) / 1e9
		}
	}
	for k, v := range rec {
		switch k {
		case "msg", "level", "time":
			continue
		case "id":
			k = "attr_id" // GELF reserves _id
		}
		msg["_"+k] = v
	}
	return msg
}

// syslogLevel maps slog level names to syslog severities.
func syslogLevel(level string) int {
	switch {
	case strings.HasPrefix(level, "ERROR"):
		return 3
	case strings.HasPrefix(level, "WARN"):
		return 4
	case strings.HasPrefix(level, "DEBUG"):
		return 7
	}
	return 6
}
