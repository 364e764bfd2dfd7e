package ipc

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrCancelled is returned by Request when the user dismissed the session
// without selecting anything.
var ErrCancelled = fmt.Errorf("selection cancelled")

// Client talks the line protocol to a running daemon.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient creates a Client for the daemon socket at path. timeout bounds
// the dial only; the selection wait is unbounded since it tracks a human.
func NewClient(path string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{path: path, timeout: timeout}
}

// Request streams the caller's items to the daemon and blocks until the
// user commits or cancels. items is read line by line until EOF. The
// selected value is returned verbatim; cancellation is ErrCancelled.
func (c *Client) Request(format Format, items io.Reader) (string, error) {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connecting to daemon: %w", err)
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if _, err := fmt.Fprintf(w, "{\"format\":%q}\n", format); err != nil {
		return "", fmt.Errorf("writing context line: %w", err)
	}
	if _, err := io.Copy(w, items); err != nil {
		return "", fmt.Errorf("sending items: %w", err)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("sending items: %w", err)
	}

	// Half-close the write side so the daemon sees EOF and opens the
	// session while we keep reading for the reply.
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return "", fmt.Errorf("closing write side: %w", err)
		}
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		if err == io.EOF {
			// The daemon closed without replying, e.g. we sent nothing
			// usable.
			return "", ErrCancelled
		}
		return "", fmt.Errorf("reading reply: %w", err)
	}
	reply = reply[:len(reply)-1]
	if reply == "" {
		return "", ErrCancelled
	}
	return reply, nil
}
