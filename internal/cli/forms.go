package cli

import (
	"bufio"
	"io"

	"github.com/charmbracelet/huh"
)

// lineReader hands out its input one line per Read. huh's accessible mode
// scans every field with a fresh bufio.Scanner over the same reader, and a
// scanner buffers whatever one Read returns, so a plain reader would let the
// first field swallow the answers meant for the rest.
type lineReader struct {
	r       *bufio.Reader
	pending []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) Read(p []byte) (int, error) {
	if len(l.pending) == 0 {
		line, err := l.r.ReadBytes('\n')
		if len(line) == 0 {
			return 0, err
		}
		l.pending = line
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// runForm runs form against in and out. Input that is not a terminal is
// answered in accessible mode, one line per field.
func runForm(form *huh.Form, in io.Reader, out io.Writer) error {
	form = form.WithOutput(out)
	if isTerminal(in) {
		return form.WithInput(in).Run()
	}
	return form.WithInput(newLineReader(in)).WithAccessible(true).Run()
}
