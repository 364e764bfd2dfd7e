// Package ipc implements the dmenu-style line protocol over the daemon's
// unix socket: a client sends an optional context line and its items, half
// closes, and blocks until a single reply line comes back.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/runger/heats/internal/item"
	"github.com/runger/heats/internal/session"
)

// Format selects how item lines are interpreted.
type Format string

const (
	// FormatText treats every non-empty line as a plain item title.
	FormatText Format = "text"
	// FormatJSONL parses each non-empty line as a JSON menu item.
	FormatJSONL Format = "jsonl"
)

// externalSource names the pseudo-provider attached to piped-in items.
const externalSource = "external"

// contextLine is the optional first line of a request.
type contextLine struct {
	Format Format `json:"format"`
}

// Sessions is the coordinator surface the server drives.
type Sessions interface {
	StartExternal(items []item.LoadedItem, reply session.ReplyFunc)
}

// Server accepts external sessions on a unix socket. Connections are
// serviced one at a time; a newly accepted session pre-empts the running
// one through the coordinator, which cancels the earlier client.
type Server struct {
	path     string
	sessions Sessions
	logger   *slog.Logger
}

// NewServer creates a Server for the given socket path.
func NewServer(path string, sessions Sessions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{path: path, sessions: sessions, logger: logger}
}

// Run binds the socket and serves until ctx is cancelled. A bind failure is
// not fatal: the daemon keeps running for internal sessions with the
// external surface disabled.
func (s *Server) Run(ctx context.Context) {
	ln, err := s.listen()
	if err != nil {
		s.logger.Error("ipc unavailable, external sessions disabled", "path", s.path, "error", err)
		<-ctx.Done()
		return
	}
	defer ln.Close()
	defer os.Remove(s.path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.handle(ctx, conn)
	}
}

// listen binds the socket, clearing a stale file left by a crashed daemon.
// A socket another process still answers on is a bind failure.
func (s *Server) listen() (net.Listener, error) {
	if _, err := os.Stat(s.path); err == nil {
		probe, err := net.DialTimeout("unix", s.path, 250*time.Millisecond)
		if err == nil {
			probe.Close()
			return nil, fmt.Errorf("socket %s is in use by another daemon", s.path)
		}
		s.logger.Info("removing stale socket", "path", s.path)
		if err := os.Remove(s.path); err != nil {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
	}
	return net.Listen("unix", s.path)
}

// request is one parsed client submission.
type request struct {
	format Format
	raw    []string              // every line after the context line, verbatim
	parsed map[int]item.MenuItem // raw index of each usable line
	items  []item.LoadedItem
}

// handle services a single connection start to finish.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	req, err := readRequest(conn)
	if err != nil {
		s.logger.Warn("bad external request", "error", err)
		return
	}
	if len(req.items) == 0 {
		// Nothing usable was sent; closing without a session or a reply.
		s.logger.Debug("external request had no usable items")
		return
	}
	s.logger.Info("external session", "format", req.format, "items", len(req.items))

	replies := make(chan *item.DisplayItem, 1)
	s.sessions.StartExternal(req.items, func(sel *item.DisplayItem) {
		replies <- sel
	})

	var selected *item.DisplayItem
	select {
	case selected = <-replies:
	case <-ctx.Done():
		return
	}

	if _, err := fmt.Fprintln(conn, req.replyValue(selected)); err != nil {
		s.logger.Warn("writing reply", "error", err)
	}
}

// readRequest consumes the connection up to the client's EOF (write-side
// close) and maps every usable line to an item whose ID is the line's index
// in the raw submission, so the reply can be recovered verbatim.
func readRequest(conn net.Conn) (*request, error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	req := &request{format: FormatText, parsed: make(map[int]item.MenuItem)}

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if format, ok := parseContextLine(line); ok {
				req.format = format
				continue
			}
			// Legacy client: the first line is already an item.
		}
		req.addLine(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	return req, nil
}

// parseContextLine recognizes {"format":"text"|"jsonl"}. Anything else,
// including valid JSON items, falls back to being treated as data.
func parseContextLine(line string) (Format, bool) {
	var cl contextLine
	if err := json.Unmarshal([]byte(line), &cl); err != nil {
		return "", false
	}
	switch cl.Format {
	case FormatText, FormatJSONL:
		return cl.Format, true
	default:
		return "", false
	}
}

// addLine records a raw line and, when usable, its item. Empty lines and
// malformed JSONL keep their raw index but contribute no item.
func (r *request) addLine(line string) {
	idx := len(r.raw)
	r.raw = append(r.raw, line)

	if strings.TrimSpace(line) == "" {
		return
	}

	var mi item.MenuItem
	if r.format == FormatJSONL {
		parsed, err := item.Parse([]byte(line))
		if err != nil {
			return
		}
		mi = parsed
	} else {
		mi = item.MenuItem{Title: line}
	}

	r.parsed[idx] = mi
	li := item.Loaded(mi, externalSource, externalSource)
	id := idx
	li.Display.ID = &id
	r.items = append(r.items, li)
}

// replyValue renders the one reply line: empty for cancellation, the
// verbatim raw line for text, and the configured data field (title when
// absent) for jsonl.
func (r *request) replyValue(selected *item.DisplayItem) string {
	if selected == nil || selected.ID == nil {
		return ""
	}
	idx := *selected.ID
	if idx < 0 || idx >= len(r.raw) {
		return ""
	}
	if r.format == FormatText {
		return r.raw[idx]
	}
	mi, ok := r.parsed[idx]
	if !ok {
		return ""
	}
	if v := mi.Field("data"); v != "" {
		return v
	}
	return mi.Title
}
