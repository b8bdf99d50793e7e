package schema

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeSnapshot serializes the persisted fields of values for the cache.
// Map keys are written in sorted order so equal snapshots are byte-identical.
func (s *Schema) EncodeSnapshot(values map[string]any) ([]byte, error) {
	fields, err := s.Persisted(values)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encode %s snapshot: %w", s.Type, err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Keys that are no longer part of
// the schema are dropped and values are coerced to their field types, so a
// payload written by an older descriptor still decodes and composite values
// come back in the same canonical shape Coerce gives them on Set.
func (s *Schema) DecodeSnapshot(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode %s snapshot: empty payload", s.Type)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", s.Type, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode %s snapshot: payload is not a map", s.Type)
	}

	fields, err := s.Persisted(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", s.Type, err)
	}
	return fields, nil
}
