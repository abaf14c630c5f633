package dataset

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// ReadParquet decodes a movies table. Empty input is an empty table.
func ReadParquet(data []byte) ([]Movie, error) {
	if len(data) == 0 {
		return nil, nil
	}
	rows, err := parquet.Read[Movie](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet dataset: %w", err)
	}
	return rows, nil
}

// WriteParquet encodes a movies table.
func WriteParquet(rows []Movie) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, fmt.Errorf("failed to write parquet dataset: %w", err)
	}
	return buf.Bytes(), nil
}
