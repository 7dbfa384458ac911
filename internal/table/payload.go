package table

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

const (
	// maxPayloadDepth is the deepest container nesting a payload may use:
	// table array, payload array, column map, values array.
	maxPayloadDepth = 4

	// cap on up-front slice capacity; longer arrays grow as elements decode
	maxPrealloc = 1024
)

// payloadDecoder walks one MessagePack value. Every declared container or
// string length is checked against the bytes left in the buffer before
// anything is allocated for it.
type payloadDecoder struct {
	r   *bytes.Reader
	dec *msgpack.Decoder
}

// DecodePayload decodes one MessagePack value from b into plain Go values:
// []any, map[string]any, int64, uint64, float32, float64, string, bool and nil.
// Binary and extension values, non-string map keys, nesting deeper than the
// table layout and trailing bytes are rejected with ErrProtocolMismatch.
func DecodePayload(b []byte) (any, error) {
	r := bytes.NewReader(b)
	pd := &payloadDecoder{r: r, dec: msgpack.NewDecoder(r)}

	v, err := pd.value(0)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after payload", ErrProtocolMismatch, r.Len())
	}
	return v, nil
}

func isString(c byte) bool {
	return msgpcode.IsFixedString(c) || c == msgpcode.Str8 || c == msgpcode.Str16 || c == msgpcode.Str32
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrProtocolMismatch}, args...)...)
}

func (pd *payloadDecoder) value(depth int) (any, error) {
	c, err := pd.dec.PeekCode()
	if err != nil {
		return nil, mismatch("msgpack: %v", err)
	}

	var v any
	switch {
	case c == msgpcode.Nil:
		err = pd.dec.DecodeNil()
	case c == msgpcode.True || c == msgpcode.False:
		v, err = pd.dec.DecodeBool()
	case msgpcode.IsFixedNum(c),
		c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		v, err = pd.dec.DecodeInt64()
	case c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32, c == msgpcode.Uint64:
		v, err = pd.dec.DecodeUint64()
	case c == msgpcode.Float:
		v, err = pd.dec.DecodeFloat32()
	case c == msgpcode.Double:
		v, err = pd.dec.DecodeFloat64()
	case isString(c):
		return pd.str()
	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		return pd.array(depth + 1)
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		return pd.mapping(depth + 1)
	default:
		return nil, mismatch("unsupported msgpack code 0x%02x", c)
	}
	if err != nil {
		return nil, mismatch("msgpack: %v", err)
	}
	return v, nil
}

// str reads the length itself so a forged str32 header cannot force a large
// allocation. UTF-8 is checked where a value lands in a String column.
func (pd *payloadDecoder) str() (string, error) {
	n, err := pd.dec.DecodeBytesLen()
	if err != nil {
		return "", mismatch("msgpack: %v", err)
	}
	if n < 0 || n > pd.r.Len() {
		return "", mismatch("string of %d bytes with %d bytes left", n, pd.r.Len())
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(pd.r, buf); err != nil {
		return "", mismatch("read string: %v", err)
	}
	return string(buf), nil
}

func (pd *payloadDecoder) array(depth int) (any, error) {
	if depth > maxPayloadDepth {
		return nil, mismatch("nesting deeper than %d", maxPayloadDepth)
	}
	n, err := pd.dec.DecodeArrayLen()
	if err != nil {
		return nil, mismatch("msgpack: %v", err)
	}
	// each element takes at least one byte
	if n < 0 || n > pd.r.Len() {
		return nil, mismatch("array of %d elements with %d bytes left", n, pd.r.Len())
	}

	out := make([]any, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		v, err := pd.value(depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (pd *payloadDecoder) mapping(depth int) (any, error) {
	if depth > maxPayloadDepth {
		return nil, mismatch("nesting deeper than %d", maxPayloadDepth)
	}
	n, err := pd.dec.DecodeMapLen()
	if err != nil {
		return nil, mismatch("msgpack: %v", err)
	}
	// each entry takes at least two bytes
	if n < 0 || n > pd.r.Len()/2 {
		return nil, mismatch("map of %d entries with %d bytes left", n, pd.r.Len())
	}

	out := make(map[string]any, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		c, err := pd.dec.PeekCode()
		if err != nil {
			return nil, mismatch("msgpack: %v", err)
		}
		if !isString(c) {
			return nil, mismatch("map key with msgpack code 0x%02x is not a string", c)
		}
		key, err := pd.str()
		if err != nil {
			return nil, err
		}
		v, err := pd.value(depth)
		if err != nil {
			return nil, err
		}
		if _, dup := out[key]; dup {
			return nil, mismatch("duplicate map key %q", key)
		}
		out[key] = v
	}
	return out, nil
}
