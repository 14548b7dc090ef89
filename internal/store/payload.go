package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"affected/internal/report"
)

// payload is the stored body of a run. Its canonical JSON is also what the
// run ID is computed from.
type payload struct {
	Changed []string        `json:"changed"`
	Records []report.Record `json:"records"`
}

// encodePayload marshals p and compresses it with zstd.
func encodePayload(p payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(raw); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

func decodePayload(blob []byte) (payload, error) {
	var p payload
	decoder, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return p, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return p, fmt.Errorf("decompressing payload: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("unmarshaling payload: %w", err)
	}
	return p, nil
}
