package minasewire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the big-endian u32 length prefix.
	HeaderSize = 4

	// DefaultMaxFrameSize limits memory usage on malformed/hostile input.
	DefaultMaxFrameSize = 8 << 20 // 8 MiB

	// payloads above this size are read in steps instead of allocated up front
	eagerAllocLimit = 1 << 20
)

var (
	ErrFrameTooLarge   = errors.New("minasewire: frame too large")
	ErrMalformedHeader = errors.New("minasewire: malformed frame header")
	ErrTruncatedFrame  = errors.New("minasewire: truncated frame")
)

// EncodeFrame returns the u32 big-endian length of payload followed by payload.
func EncodeFrame(payload []byte) ([]byte, error) {
	if err := checkFrameLen(uint64(len(payload))); err != nil {
		return nil, err
	}
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

func checkFrameLen(n uint64) error {
	if n > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes exceeds u32 length field", ErrFrameTooLarge, n)
	}
	return nil
}

// DecodeFrameHeader reads the payload length from the first 4 bytes of b.
func DecodeFrameHeader(b []byte) (uint32, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: got %d of %d bytes", ErrMalformedHeader, len(b), HeaderSize)
	}
	return binary.BigEndian.Uint32(b[:HeaderSize]), nil
}

// ReadExactPayload reads exactly n bytes from r, across as many reads as the
// transport needs. End of stream before n bytes yields ErrTruncatedFrame.
func ReadExactPayload(r io.Reader, n uint32) ([]byte, error) {
	if n <= eagerAllocLimit {
		buf := make([]byte, n)
		got, err := io.ReadFull(r, buf)
		if err != nil {
			return nil, truncated(err, got, n)
		}
		return buf, nil
	}

	// Large declared lengths grow with the data that actually arrives.
	var buf bytes.Buffer
	buf.Grow(eagerAllocLimit)
	got, err := io.CopyN(&buf, r, int64(n))
	if err != nil {
		return nil, truncated(err, int(got), n)
	}
	return buf.Bytes(), nil
}

func truncated(err error, got int, want uint32) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: got %d of %d payload bytes", ErrTruncatedFrame, got, want)
	}
	return err
}

// ReadFrame reads one frame and returns its payload. A stream that ends cleanly
// before the first header byte returns io.EOF. maxSize 0 means only the u32
// limit applies.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var hdr [HeaderSize]byte
	got, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) && got == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			_, err = DecodeFrameHeader(hdr[:got])
		}
		return nil, err
	}

	n, err := DecodeFrameHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	return ReadExactPayload(r, n)
}

// WriteFrame writes payload as a single length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	b, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
