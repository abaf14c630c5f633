package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxLine bounds a single NDJSON document.
const maxLine = 16 << 20

// WriteNDJSON writes each document compacted on its own line.
func WriteNDJSON(w io.Writer, docs []json.RawMessage) error {
	var buf bytes.Buffer
	for i, doc := range docs {
		buf.Reset()
		if err := json.Compact(&buf, doc); err != nil {
			return fmt.Errorf("document %d is not valid json: %w", i, err)
		}
		buf.WriteByte('\n')
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// ReadNDJSON reads one document per non-empty line.
func ReadNDJSON(r io.Reader) ([]json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var docs []json.RawMessage
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("line %d is not valid json", line)
		}
		docs = append(docs, json.RawMessage(bytes.Clone(b)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ndjson: %w", err)
	}
	return docs, nil
}

// WithField returns doc with key set to value, keeping the other fields.
func WithField(doc json.RawMessage, key string, value any) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("document is not a json object: %w", err)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	fields[key] = encoded
	return json.Marshal(fields)
}
