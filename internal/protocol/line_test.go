package protocol

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineCodec_PlainFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	codec := NewLineCodec(&buf, &buf)

	require.NoError(t, codec.WriteFrame(KindSystem, "welcome alice"))

	kind, payload, err := codec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindInput, kind, "line framing carries no inbound discriminator")
	assert.Equal(t, "welcome alice", payload)
}

// countingWriter records how many Write calls reach it.
type countingWriter struct {
	buf    bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.buf.Write(p)
}

func TestLineCodec_GridBlockIsOneAtomicWrite(t *testing.T) {
	out := &countingWriter{}
	codec := NewLineCodec(nil, out)

	body := "  1 2 3\nA  . . .\nB  . . ."
	require.NoError(t, codec.WriteFrame(KindBoard, body))
	assert.Equal(t, 1, out.writes, "grid block must reach the transport in a single Write")

	lines := strings.Split(out.buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, gridSentinel, lines[0])
	assert.Equal(t, "", lines[len(lines)-2], "grid block must be closed by a blank line")
}

func TestLineCodec_ReadsUntilNewline(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("alice\nA5\n"))
	codec := NewLineCodec(r, &bytes.Buffer{})

	_, first, err := codec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "alice", first)

	_, second, err := codec.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "A5", second)
}
