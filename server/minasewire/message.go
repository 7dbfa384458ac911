package minasewire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// HandshakeToken is sent by a client to check that the server is ready. The
// server answers with the same token as a msgpack string.
const HandshakeToken = "minase:ready"

// CommandKind identifies a parsed request payload.
type CommandKind uint8

const (
	CmdSelectTable CommandKind = iota + 1
	CmdHandshake
	CmdExit
)

// Command is a parsed request.
type Command struct {
	Kind  CommandKind
	Table int
}

// Query errors reported to clients as a msgpack string payload. The text is
// wire-compatible with existing servers and must keep its capitalisation.
var (
	ErrInvalidQuery  = errors.New("Query Error: Invalid Query")
	ErrTableNotFound = errors.New("Query Error: Table Not Found")
)

// SelectTable formats the command that fetches a whole table.
func SelectTable(index int) string {
	return "select table " + strconv.Itoa(index)
}

// ParseCommand parses a request payload.
//
//	select table <index>
//	exit
//	minase:ready
func ParseCommand(payload string) (Command, error) {
	if payload == HandshakeToken {
		return Command{Kind: CmdHandshake}, nil
	}

	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return Command{}, ErrInvalidQuery
	}

	switch fields[0] {
	case "exit":
		if len(fields) != 1 {
			return Command{}, ErrInvalidQuery
		}
		return Command{Kind: CmdExit}, nil
	case "select":
		if len(fields) != 3 || fields[1] != "table" {
			return Command{}, ErrInvalidQuery
		}
		idx, err := strconv.Atoi(fields[2])
		if err != nil || idx < 0 {
			return Command{}, ErrInvalidQuery
		}
		return Command{Kind: CmdSelectTable, Table: idx}, nil
	default:
		return Command{}, ErrInvalidQuery
	}
}

// EncodeText encodes s as a msgpack string payload, used for handshake replies
// and query errors.
func EncodeText(s string) ([]byte, error) {
	b, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("minasewire: marshal: %w", err)
	}
	return b, nil
}
