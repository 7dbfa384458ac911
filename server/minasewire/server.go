package minasewire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/CunningBard/minase/internal/catalog"
	"github.com/CunningBard/minase/internal/table"
)

type ServerConfig struct {
	Addr         string
	MaxFrameSize uint32
	SeedRows     int
}

// Run listens on sc.Addr and serves until ctx is done.
func Run(ctx context.Context, sc ServerConfig) error {
	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("minase tcp server listening", "addr", ln.Addr().String())
	return Serve(ctx, ln, sc)
}

// Serve accepts connections on ln until ctx is done. ln is closed on return.
func Serve(ctx context.Context, ln net.Listener, sc ServerConfig) error {
	defer func() { _ = ln.Close() }()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("accept", "err", err)
			continue
		}
		go handleConn(ctx, conn, sc)
	}
}

func handleConn(ctx context.Context, conn net.Conn, sc ServerConfig) {
	defer func() { _ = conn.Close() }()

	// Unblock a session waiting in ReadFrame when the server shuts down.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// No global deadline; you can set per-request deadline if needed.
	_ = conn.SetDeadline(time.Time{})

	remote := conn.RemoteAddr().String()
	cat, err := catalog.NewDemo(sc.SeedRows)
	if err != nil {
		slog.Error("seed catalog", "remote", remote, "err", err)
		return
	}
	slog.Debug("session opened", "remote", remote)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := ReadFrame(conn, sc.MaxFrameSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Warn("read frame", "remote", remote, "err", err)
			}
			return
		}

		resp, done := respond(cat, string(payload))
		if done {
			slog.Debug("session closed by client", "remote", remote)
			return
		}
		if err := WriteFrame(conn, resp); err != nil {
			slog.Warn("write frame", "remote", remote, "err", err)
			return
		}
	}
}

// respond builds the response payload for one request. done reports that the
// session should end without a response.
func respond(cat *catalog.Catalog, payload string) (resp []byte, done bool) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		return errorPayload(err), false
	}

	switch cmd.Kind {
	case CmdExit:
		return nil, true
	case CmdHandshake:
		b, err := EncodeText(HandshakeToken)
		if err != nil {
			return errorPayload(err), false
		}
		return b, false
	case CmdSelectTable:
		t, err := cat.Table(cmd.Table)
		if err != nil {
			return errorPayload(ErrTableNotFound), false
		}
		b, err := table.Marshal(t)
		if err != nil {
			return errorPayload(err), false
		}
		return b, false
	}
	return errorPayload(ErrInvalidQuery), false
}

func errorPayload(err error) []byte {
	b, encErr := EncodeText(err.Error())
	if encErr != nil {
		// a plain string cannot fail to encode
		slog.Error("encode error payload", "err", encErr)
		return nil
	}
	return b
}
