package secrets

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"
)

// Mask is what every registered secret value is replaced with.
const Mask = "***"

// Masker remembers secret values and scrubs them from text.
type Masker struct {
	mu     sync.RWMutex
	values []string
}

// NewMasker returns an empty Masker.
func NewMasker() *Masker {
	return &Masker{}
}

// Add registers a value for masking. Empty values are ignored.
func (m *Masker) Add(value string) {
	if value == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.values {
		if v == value {
			return
		}
	}
	m.values = append(m.values, value)
	// Longest first so that a secret containing another one is masked whole.
	sort.Slice(m.values, func(i, j int) bool { return len(m.values[i]) > len(m.values[j]) })
}

// Len reports how many values are registered.
func (m *Masker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Mask replaces every registered value in s.
func (m *Masker) Mask(s string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.values {
		s = strings.ReplaceAll(s, v, Mask)
	}
	return s
}

// Writer wraps w so that everything written through it is masked. Output is
// buffered per line, where a carriage return also ends a line so that
// redrawn progress output is passed through. Call Flush on the returned
// writer once the producer is done to emit a trailing partial line.
func (m *Masker) Writer(w io.Writer) *MaskedWriter {
	return &MaskedWriter{masker: m, out: w}
}

// MaskedWriter is a line buffered io.Writer that scrubs secrets.
type MaskedWriter struct {
	mu     sync.Mutex
	masker *Masker
	out    io.Writer
	buf    bytes.Buffer
}

// Write implements io.Writer.
func (w *MaskedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexAny(w.buf.Bytes(), "\r\n")
		if i < 0 {
			// Incomplete line, keep it for the next write.
			break
		}
		segment := string(w.buf.Next(i + 1))
		if _, err := io.WriteString(w.out, w.masker.Mask(segment)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Buffered reports how many bytes wait for a line terminator.
func (w *MaskedWriter) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Len()
}

// Flush writes any buffered partial line.
func (w *MaskedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(w.out, w.masker.Mask(w.buf.String()))
	w.buf.Reset()
	return err
}
