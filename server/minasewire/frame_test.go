package minasewire

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkReader returns at most n bytes per Read, like a socket that splits a
// large frame across several receives.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestEncodeFrame_Layout(t *testing.T) {
	b, err := EncodeFrame([]byte("select table 0"))
	require.NoError(t, err)
	require.Equal(t, append([]byte{0, 0, 0, 14}, "select table 0"...), b)

	b, err = EncodeFrame(nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestCheckFrameLen(t *testing.T) {
	require.NoError(t, checkFrameLen(math.MaxUint32))
	require.ErrorIs(t, checkFrameLen(math.MaxUint32+1), ErrFrameTooLarge)
}

func TestDecodeFrameHeader(t *testing.T) {
	n, err := DecodeFrameHeader([]byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, err)
	require.Equal(t, uint32(0x01020304), n)

	_, err = DecodeFrameHeader([]byte{0, 0, 1})
	require.ErrorIs(t, err, ErrMalformedHeader)

	_, err = DecodeFrameHeader(nil)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("x"),
		bytes.Repeat([]byte{0xAB}, 4096),
		bytes.Repeat([]byte("minase"), eagerAllocLimit/3), // above the eager limit
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, p))

		got, err := ReadFrame(&chunkReader{r: &buf, n: 7}, 0)
		require.NoError(t, err)
		require.Equal(t, len(p), len(got))
		require.True(t, bytes.Equal(p, got))
	}
}

func TestReadExactPayload_LoopsOverShortReads(t *testing.T) {
	src := bytes.Repeat([]byte("abc"), 1000)
	got, err := ReadExactPayload(&chunkReader{r: bytes.NewReader(src), n: 1}, uint32(len(src)))
	require.NoError(t, err)
	require.Equal(t, src, got)
}

func TestReadExactPayload_Truncated(t *testing.T) {
	_, err := ReadExactPayload(bytes.NewReader([]byte("short")), 10)
	require.ErrorIs(t, err, ErrTruncatedFrame)

	_, err = ReadExactPayload(bytes.NewReader(nil), 1)
	require.ErrorIs(t, err, ErrTruncatedFrame)

	// large declared size with little data behind it
	_, err = ReadExactPayload(bytes.NewReader([]byte("tiny")), eagerAllocLimit*4)
	require.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestReadExactPayload_TransportError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ReadExactPayload(errReader{err: boom}, 3)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrTruncatedFrame)
}

func TestReadFrame_Truncated(t *testing.T) {
	frame, err := EncodeFrame([]byte("select table 0"))
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(frame[:len(frame)-3]), 0)
	require.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestReadFrame_HeaderCases(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, io.EOF)

	_, err = ReadFrame(bytes.NewReader([]byte{0, 0}), 0)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReadFrame_MaxSize(t *testing.T) {
	frame, err := EncodeFrame(bytes.Repeat([]byte{1}, 100))
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(frame), 99)
	require.ErrorIs(t, err, ErrFrameTooLarge)

	got, err := ReadFrame(bytes.NewReader(frame), 100)
	require.NoError(t, err)
	require.Len(t, got, 100)
}
