package tableclient

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/CunningBard/minase/internal/table"
	"github.com/CunningBard/minase/server/minasewire"
)

// pipeServer answers each request on a net.Pipe with the next scripted reply.
// It records the raw request frames it saw.
func pipeServer(t *testing.T, replies ...func(net.Conn)) (*Client, <-chan [][]byte) {
	t.Helper()

	cliConn, srvConn := net.Pipe()
	seen := make(chan [][]byte, 1)

	go func() {
		defer func() { _ = srvConn.Close() }()
		var reqs [][]byte
		defer func() { seen <- reqs }()

		for _, reply := range replies {
			payload, err := minasewire.ReadFrame(srvConn, 0)
			if err != nil {
				return
			}
			frame, _ := minasewire.EncodeFrame(payload)
			reqs = append(reqs, frame)
			reply(srvConn)
		}
	}()

	c := New(cliConn)
	c.SetRWTimeout(5 * time.Second)
	t.Cleanup(func() { _ = c.Close() })
	return c, seen
}

func sendValue(v any) func(net.Conn) {
	return func(conn net.Conn) {
		b, err := msgpack.Marshal(v)
		if err != nil {
			panic(err)
		}
		_ = minasewire.WriteFrame(conn, b)
	}
}

func sendRaw(b []byte) func(net.Conn) {
	return func(conn net.Conn) { _, _ = conn.Write(b) }
}

func TestQuery_EndToEndScenario(t *testing.T) {
	wire := []any{
		[]any{
			map[string]any{"Int": []any{10, 20}},
			map[string]any{"String": []any{"a", "b"}},
		},
		[]any{"Int", "String"},
	}
	c, seen := pipeServer(t, sendValue(wire))

	tbl, err := c.SelectTable(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumRows())
	require.Equal(t, []table.ScalarType{table.Int, table.String}, tbl.Types())
	require.Equal(t, []int64{10, 20}, tbl.Column(0).Ints())
	require.Equal(t, []string{"a", "b"}, tbl.Column(1).Strings())

	_ = c.Close()
	reqs := <-seen
	require.Len(t, reqs, 1)
	require.Equal(t, append([]byte{0, 0, 0, 14}, "select table 0"...), reqs[0])
}

func TestQuery_ServerError(t *testing.T) {
	c, _ := pipeServer(t, sendValue("Query Error: Invalid Query"))

	_, err := c.Query(context.Background(), "drop everything")
	var serr *ServerError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, "Query Error: Invalid Query", serr.Message)
}

func TestQuery_UnknownColumnType(t *testing.T) {
	c, _ := pipeServer(t, sendValue([]any{
		[]any{map[string]any{"Date": []any{"2024-01-01"}}},
		[]any{"Date"},
	}))

	tbl, err := c.SelectTable(context.Background(), 0)
	require.ErrorIs(t, err, table.ErrUnknownColumnType)
	require.Nil(t, tbl)
}

func TestQuery_ArityMismatch(t *testing.T) {
	c, _ := pipeServer(t, sendValue([]any{
		[]any{
			map[string]any{"Int": []any{1}},
			map[string]any{"Int": []any{2}},
			map[string]any{"Int": []any{3}},
		},
		[]any{"Int", "Int"},
	}))

	_, err := c.SelectTable(context.Background(), 0)
	require.ErrorIs(t, err, table.ErrProtocolMismatch)
}

func TestQuery_RaggedTable(t *testing.T) {
	wire := []any{
		[]any{
			map[string]any{"Int": []any{1, 2}},
			map[string]any{"Bool": []any{true}},
		},
		[]any{"Int", "Bool"},
	}

	c, _ := pipeServer(t, sendValue(wire), sendValue(wire))

	_, err := c.SelectTable(context.Background(), 0)
	require.ErrorIs(t, err, table.ErrRaggedTable)

	c.SetStrictRows(false)
	tbl, err := c.SelectTable(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.NumColumns())
}

func TestQuery_TruncatedResponse(t *testing.T) {
	// header announces 100 bytes, stream closes after 3
	c, _ := pipeServer(t, sendRaw([]byte{0, 0, 0, 100, 0x91, 0x92, 0x93}))

	tbl, err := c.SelectTable(context.Background(), 0)
	require.ErrorIs(t, err, minasewire.ErrTruncatedFrame)
	require.Nil(t, tbl)
}

func TestQuery_FrameTooLarge(t *testing.T) {
	c, _ := pipeServer(t, sendRaw([]byte{0x7f, 0, 0, 0}))
	c.SetMaxFrameSize(1024)

	_, err := c.SelectTable(context.Background(), 0)
	require.ErrorIs(t, err, minasewire.ErrFrameTooLarge)
}

func TestQuery_ContextDeadline(t *testing.T) {
	// server reads the request but never answers
	c, _ := pipeServer(t, func(net.Conn) { time.Sleep(time.Second) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.SelectTable(ctx, 0)
	var nerr net.Error
	require.True(t, errors.As(err, &nerr))
	require.True(t, nerr.Timeout())
}

func TestHandshake(t *testing.T) {
	c, seen := pipeServer(t, sendValue(minasewire.HandshakeToken), sendValue("nope"))

	require.NoError(t, c.Handshake(context.Background()))
	require.ErrorIs(t, c.Handshake(context.Background()), ErrHandshakeMismatch)

	_ = c.Close()
	reqs := <-seen
	require.Len(t, reqs, 2)
	require.Equal(t, minasewire.HandshakeToken, string(reqs[0][minasewire.HeaderSize:]))
}

func TestNilClient(t *testing.T) {
	var c *Client
	_, err := c.Query(context.Background(), "select table 0")
	require.ErrorIs(t, err, ErrNilClient)
	require.NoError(t, c.Close())
}

func TestAgainstServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = minasewire.Serve(ctx, ln, minasewire.ServerConfig{SeedRows: 100, MaxFrameSize: minasewire.DefaultMaxFrameSize})
	}()

	c, err := Dial(ln.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	c.SetRWTimeout(5 * time.Second)

	require.NoError(t, c.Handshake(ctx))

	tbl, err := c.SelectTable(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 100, tbl.NumRows())
	require.Equal(t, []any{int64(99), "Person 99"}, tbl.Row(99))

	_, err = c.SelectTable(ctx, 7)
	var serr *ServerError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, minasewire.ErrTableNotFound.Error(), serr.Message)

	require.NoError(t, c.Exit(ctx))
}
