package tableclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/CunningBard/minase/internal/table"
	"github.com/CunningBard/minase/server/minasewire"
)

var (
	ErrNilClient         = errors.New("tableclient: nil client")
	ErrHandshakeMismatch = errors.New("tableclient: unexpected handshake reply")
)

// ServerError is a query error reported by the server instead of a table.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// Client is a simple synchronous client: one request in flight at a time.
// It locks send/recv so you can call Query concurrently but they'll serialize.
type Client struct {
	conn net.Conn
	mu   sync.Mutex

	// Optional per-request timeout (0 = no timeout).
	rwTimeout time.Duration
	// 0 = only the u32 length field bounds a response
	maxFrameSize uint32
	// reject decoded tables whose columns disagree on row count
	strictRows bool
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, maxFrameSize: minasewire.DefaultMaxFrameSize, strictRows: true}
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	return DialContext(context.Background(), addr, timeout)
}

func DialContext(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	slog.Debug("tableclient: connected", "addr", addr)
	return New(c), nil
}

// SetRWTimeout sets a per-request read/write deadline.
// Useful to avoid hanging forever if server dies.
func (c *Client) SetRWTimeout(d time.Duration) {
	if c == nil {
		return
	}
	c.rwTimeout = d
}

// SetMaxFrameSize bounds the size of a response payload.
func (c *Client) SetMaxFrameSize(n uint32) {
	if c == nil {
		return
	}
	c.maxFrameSize = n
}

// SetStrictRows toggles the row-count check on decoded tables.
func (c *Client) SetStrictRows(on bool) {
	if c == nil {
		return
	}
	c.strictRows = on
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Handshake sends the readiness token and waits for the server to echo it.
func (c *Client) Handshake(ctx context.Context) error {
	v, err := c.roundTrip(ctx, minasewire.HandshakeToken)
	if err != nil {
		return err
	}
	if s, ok := v.(string); !ok || s != minasewire.HandshakeToken {
		return fmt.Errorf("%w: %v", ErrHandshakeMismatch, v)
	}
	return nil
}

// SelectTable fetches table index from the server.
func (c *Client) SelectTable(ctx context.Context, index int) (*table.Table, error) {
	return c.Query(ctx, minasewire.SelectTable(index))
}

// Query sends cmd and decodes the response into a Table. A string response is
// returned as *ServerError.
func (c *Client) Query(ctx context.Context, cmd string) (*table.Table, error) {
	v, err := c.roundTrip(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if msg, ok := v.(string); ok {
		return nil, &ServerError{Message: msg}
	}

	t, err := table.DecodeTable(v)
	if err != nil {
		return nil, err
	}
	if c.strictRows {
		if err := t.CheckRows(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Exit asks the server to end the session. No response is expected.
func (c *Client) Exit(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return err
	}
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	return minasewire.WriteFrame(c.conn, []byte("exit"))
}

func (c *Client) roundTrip(ctx context.Context, cmd string) (any, error) {
	if c == nil || c.conn == nil {
		return nil, ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Apply deadline if configured or context has deadline.
	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	defer func() {
		// Clear deadline after request so idle connection doesn't expire.
		_ = c.conn.SetDeadline(time.Time{})
	}()

	if err := minasewire.WriteFrame(c.conn, []byte(cmd)); err != nil {
		return nil, fmt.Errorf("tableclient: send: %w", err)
	}

	payload, err := minasewire.ReadFrame(c.conn, c.maxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("tableclient: receive: %w", err)
	}
	slog.Debug("tableclient: response", "cmd", cmd, "bytes", len(payload))

	return table.DecodePayload(payload)
}

func (c *Client) applyDeadline(ctx context.Context) error {
	// Prefer context deadline if present; otherwise use rwTimeout.
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	if c.rwTimeout > 0 {
		return c.conn.SetDeadline(time.Now().Add(c.rwTimeout))
	}
	return nil
}
