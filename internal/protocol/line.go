package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// gridSentinel opens a grid block; a blank line closes it.
const gridSentinel = "GRID"

// LineCodec is the baseline framing: UTF-8 text, newline-delimited.
// A grid block is the line "GRID", a header line, exactly grid.Size
// rows, then a blank line; the server writes it as one atomic Write.
type LineCodec struct {
	r *bufio.Reader
	w io.Writer
}

// NewLineCodec wraps a connection's reader and writer halves.
func NewLineCodec(r io.Reader, w io.Writer) *LineCodec {
	return &LineCodec{r: bufio.NewReader(r), w: w}
}

// ReadFrame reads one newline-terminated inbound line. Inbound frames
// carry no kind discriminator on the wire, so every frame is reported
// as KindInput; callers (CommandHandler / MatchController) classify
// the text themselves.
func (c *LineCodec) ReadFrame() (Kind, string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if line == "" {
			return 0, "", err
		}
		// Last line before EOF with no trailing newline: still usable.
	}
	return KindInput, strings.TrimRight(line, "\r\n"), nil
}

// WriteFrame writes one outbound frame. KindBoard payloads are wrapped
// in the GRID/.../<blank> block; every other kind is a single plain
// line. Both cases perform exactly one underlying Write call.
func (c *LineCodec) WriteFrame(kind Kind, payload string) error {
	var b strings.Builder
	if kind == KindBoard {
		b.WriteString(gridSentinel)
		b.WriteByte('\n')
		b.WriteString(payload)
		b.WriteString("\n\n")
	} else {
		b.WriteString(payload)
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(c.w, b.String()); err != nil {
		return fmt.Errorf("writing line frame: %w", err)
	}
	return nil
}
