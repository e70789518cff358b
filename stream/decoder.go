// Package stream decodes newline-delimited JSON chunk streams (push mode).
//
// The wire format is application/x-ndjson: each line is one JSON object
// matching the types.Chunk union, terminated by '\n'. No trailing delimiter
// is required on the final line.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/teller/iox"
	"github.com/justapithecus/teller/log"
	"github.com/justapithecus/teller/metrics"
	"github.com/justapithecus/teller/types"
)

// readBufSize is the size of the per-read scratch buffer.
const readBufSize = 4096

// Handler receives decoder callbacks. Any field may be nil.
//
// Delivery contract:
//   - OnChunk fires once per well-formed record, in wire order.
//   - OnComplete fires exactly once after the final record, and never
//     after OnError.
//   - OnError fires at most once, on transport failure, and terminates
//     the stream session.
//
// Callbacks run on the decoder's goroutine; long work in OnChunk delays
// subsequent reads.
type Handler struct {
	OnChunk    func(types.Chunk)
	OnComplete func()
	OnError    func(error)
}

// Decoder reassembles newline-delimited JSON records across arbitrary read
// boundaries and emits one decoded chunk per well-formed line.
//
// A malformed record is logged and skipped; the stream continues. Only a
// transport-level read failure aborts the session.
//
// The delimiter '\n' is a single byte that never appears inside a multi-byte
// UTF-8 sequence, so accumulating raw bytes and splitting on it cannot
// corrupt characters split across reads.
type Decoder struct {
	r         io.ReadCloser
	handler   Handler
	logger    *log.Logger
	collector *metrics.Collector
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger for malformed-record reporting.
func WithLogger(l *log.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// WithCollector sets the session metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(d *Decoder) { d.collector = c }
}

// NewDecoder creates a decoder over the response body r.
// The decoder owns r and closes it when Run returns.
func NewDecoder(r io.ReadCloser, h Handler, opts ...Option) *Decoder {
	d := &Decoder{
		r:       r,
		handler: h,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run reads the stream to completion, invoking handler callbacks as records
// decode. Blocks until end-of-stream, transport error, or ctx cancellation.
//
// On cancellation no further callbacks fire; the reader is closed and Run
// returns. Cancelling the context that produced r (e.g. the HTTP request
// context) also unblocks an in-flight read.
func (d *Decoder) Run(ctx context.Context) {
	defer iox.DiscardClose(d.r)

	buf := make([]byte, readBufSize)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := d.r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = d.drain(pending)
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			// Final line may lack a trailing delimiter.
			d.emit(pending)
			if d.handler.OnComplete != nil {
				d.handler.OnComplete()
			}
			return
		}

		if ctx.Err() != nil {
			return
		}
		if d.handler.OnError != nil {
			d.handler.OnError(fmt.Errorf("read chunk stream: %w", err))
		}
		return
	}
}

// drain emits every complete record in pending and returns the retained
// (possibly incomplete) tail.
func (d *Decoder) drain(pending []byte) []byte {
	for {
		idx := bytes.IndexByte(pending, '\n')
		if idx < 0 {
			return pending
		}
		line := pending[:idx]
		pending = pending[idx+1:]
		d.emit(line)
	}
}

// emit decodes one candidate record. Empty lines are skipped; malformed
// records are logged and skipped so one bad line never aborts the stream.
func (d *Decoder) emit(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	chunk, err := types.DecodeChunk(line)
	if err != nil {
		d.logger.Warn("skipping malformed stream record", map[string]any{
			"error": err.Error(),
			"bytes": len(line),
		})
		d.collector.IncDecodeErrors()
		return
	}

	d.collector.IncChunksDecoded()
	if d.handler.OnChunk != nil {
		d.handler.OnChunk(*chunk)
	}
}
