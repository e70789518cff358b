// Package types defines the wire contracts shared by the stream decoder,
// the chat client, and the poller.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeErrorKind classifies chunk decoding errors.
type DecodeErrorKind int

const (
	// DecodeErrorSyntax indicates a record that is not valid JSON.
	DecodeErrorSyntax DecodeErrorKind = iota
	// DecodeErrorUnknownType indicates a type discriminant outside the union.
	DecodeErrorUnknownType
	// DecodeErrorShape indicates a known type with malformed variant fields.
	DecodeErrorShape
)

// DecodeError represents a chunk decoding error.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeErrorKindOf returns the kind of a chunk decode error, or false if
// err is not one.
func DecodeErrorKindOf(err error) (DecodeErrorKind, bool) {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.Kind, true
	}
	return 0, false
}

// ChunkType discriminates the chunk union on the wire.
type ChunkType string

// Chunk type constants. The set is closed; decoders reject anything else.
const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeGraph ChunkType = "graph"
	ChunkTypeTable ChunkType = "table"
)

// Valid returns true if t is a known chunk type.
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkTypeText, ChunkTypeGraph, ChunkTypeTable:
		return true
	}
	return false
}

// Chunk is one unit of incrementally produced assistant output.
// Exactly one variant's fields are populated, selected by Type:
//   - text:  Content
//   - graph: Labels, Values (equal length)
//   - table: Headers, Rows (every row as wide as Headers)
type Chunk struct {
	Type ChunkType `json:"type"`

	// Text variant.
	Content string `json:"content,omitempty"`

	// Graph variant.
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`

	// Table variant.
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// Validate checks the per-variant invariants.
//
// Errors:
//   - *DecodeError with Kind=DecodeErrorUnknownType: type outside the union
//   - *DecodeError with Kind=DecodeErrorShape: malformed variant fields
func (c *Chunk) Validate() error {
	switch c.Type {
	case ChunkTypeText:
		return nil
	case ChunkTypeGraph:
		if len(c.Labels) != len(c.Values) {
			return &DecodeError{
				Kind: DecodeErrorShape,
				Msg:  fmt.Sprintf("graph chunk: %d labels but %d values", len(c.Labels), len(c.Values)),
			}
		}
		return nil
	case ChunkTypeTable:
		for i, row := range c.Rows {
			if len(row) != len(c.Headers) {
				return &DecodeError{
					Kind: DecodeErrorShape,
					Msg:  fmt.Sprintf("table chunk: row %d has %d cells, want %d", i, len(row), len(c.Headers)),
				}
			}
		}
		return nil
	default:
		return &DecodeError{
			Kind: DecodeErrorUnknownType,
			Msg:  fmt.Sprintf("unknown chunk type %q", c.Type),
		}
	}
}

// DecodeChunk parses a single JSON record into a validated Chunk.
// All failures are *DecodeError values classified by kind.
func DecodeChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &DecodeError{
			Kind: DecodeErrorSyntax,
			Msg:  "decode chunk",
			Err:  err,
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
