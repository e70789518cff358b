package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/justapithecus/teller/metrics"
	"github.com/justapithecus/teller/types"
)

// fragmentReader delivers scripted byte fragments one Read at a time, then
// the configured terminal error. Models arbitrary transport read boundaries.
type fragmentReader struct {
	fragments []string
	finalErr  error
	closed    bool
}

func newFragmentReader(finalErr error, fragments ...string) *fragmentReader {
	return &fragmentReader{fragments: fragments, finalErr: finalErr}
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	if len(r.fragments) == 0 {
		return 0, r.finalErr
	}
	frag := r.fragments[0]
	r.fragments = r.fragments[1:]
	n := copy(p, frag)
	if n < len(frag) {
		r.fragments = append([]string{frag[n:]}, r.fragments...)
	}
	return n, nil
}

func (r *fragmentReader) Close() error {
	r.closed = true
	return nil
}

// recorder collects handler callbacks for assertions.
type recorder struct {
	chunks    []types.Chunk
	completes int
	errs      []error
}

func (rec *recorder) handler() Handler {
	return Handler{
		OnChunk:    func(c types.Chunk) { rec.chunks = append(rec.chunks, c) },
		OnComplete: func() { rec.completes++ },
		OnError:    func(err error) { rec.errs = append(rec.errs, err) },
	}
}

func runDecoder(t *testing.T, r io.ReadCloser, opts ...Option) *recorder {
	t.Helper()
	rec := &recorder{}
	NewDecoder(r, rec.handler(), opts...).Run(context.Background())
	return rec
}

func TestDecoder_SplitRecordReassembly(t *testing.T) {
	r := newFragmentReader(io.EOF,
		`{"type":"te`,
		"xt\",\"content\":\"hi\"}\n{\"typ",
		"e\":\"text\",\"content\":\"bye\"}\n",
	)

	rec := runDecoder(t, r)

	if len(rec.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(rec.chunks))
	}
	if rec.chunks[0].Content != "hi" || rec.chunks[1].Content != "bye" {
		t.Errorf("chunks = %q, %q, want hi, bye", rec.chunks[0].Content, rec.chunks[1].Content)
	}
	if rec.completes != 1 {
		t.Errorf("OnComplete fired %d times, want 1", rec.completes)
	}
	if len(rec.errs) != 0 {
		t.Errorf("unexpected errors: %v", rec.errs)
	}
	if !r.closed {
		t.Error("decoder did not close the reader")
	}
}

func TestDecoder_MalformedLineIsolation(t *testing.T) {
	r := newFragmentReader(io.EOF,
		"{\"type\":\"text\",\"content\":\"a\"}\nNOT JSON\n{\"type\":\"text\",\"content\":\"b\"}\n",
	)

	collector := metrics.NewCollector("")
	rec := runDecoder(t, r, WithCollector(collector))

	if len(rec.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(rec.chunks))
	}
	if rec.chunks[0].Content != "a" || rec.chunks[1].Content != "b" {
		t.Errorf("chunks = %q, %q, want a, b", rec.chunks[0].Content, rec.chunks[1].Content)
	}
	if len(rec.errs) != 0 {
		t.Errorf("malformed line must not surface OnError, got %v", rec.errs)
	}
	if rec.completes != 1 {
		t.Errorf("OnComplete fired %d times, want 1", rec.completes)
	}

	snap := collector.Snapshot()
	if snap.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", snap.DecodeErrors)
	}
	if snap.ChunksDecoded != 2 {
		t.Errorf("ChunksDecoded = %d, want 2", snap.ChunksDecoded)
	}
}

func TestDecoder_MultibyteRuneSplitAcrossReads(t *testing.T) {
	// "€" is 0xE2 0x82 0xAC; split it mid-sequence across fragments.
	record := `{"type":"text","content":"€42"}` + "\n"
	cut := strings.Index(record, "\xe2") + 1

	r := newFragmentReader(io.EOF, record[:cut], record[cut:])
	rec := runDecoder(t, r)

	if len(rec.chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(rec.chunks))
	}
	if rec.chunks[0].Content != "€42" {
		t.Errorf("Content = %q, want %q", rec.chunks[0].Content, "€42")
	}
}

func TestDecoder_FinalLineWithoutDelimiter(t *testing.T) {
	r := newFragmentReader(io.EOF,
		"{\"type\":\"text\",\"content\":\"a\"}\n",
		`{"type":"text","content":"tail"}`,
	)

	rec := runDecoder(t, r)

	if len(rec.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(rec.chunks))
	}
	if rec.chunks[1].Content != "tail" {
		t.Errorf("final chunk = %q, want %q", rec.chunks[1].Content, "tail")
	}
}

func TestDecoder_EmptyLinesSkipped(t *testing.T) {
	r := newFragmentReader(io.EOF, "\n\n{\"type\":\"text\",\"content\":\"x\"}\n\n")

	rec := runDecoder(t, r)

	if len(rec.chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(rec.chunks))
	}
	if rec.completes != 1 {
		t.Errorf("OnComplete fired %d times, want 1", rec.completes)
	}
}

func TestDecoder_ChunkOrderMatchesWireOrder(t *testing.T) {
	var lines strings.Builder
	want := []string{"one", "two", "three", "four", "five"}
	for _, w := range want {
		lines.WriteString(`{"type":"text","content":"` + w + "\"}\n")
	}

	r := newFragmentReader(io.EOF, lines.String())
	rec := runDecoder(t, r)

	if len(rec.chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(rec.chunks), len(want))
	}
	for i, w := range want {
		if rec.chunks[i].Content != w {
			t.Errorf("chunk %d = %q, want %q", i, rec.chunks[i].Content, w)
		}
	}
}

func TestDecoder_GraphAndTableChunks(t *testing.T) {
	r := newFragmentReader(io.EOF,
		"{\"type\":\"graph\",\"labels\":[\"Jan\",\"Feb\"],\"values\":[1,2]}\n"+
			"{\"type\":\"table\",\"headers\":[\"Asset\"],\"rows\":[[\"BTC\"]]}\n",
	)

	rec := runDecoder(t, r)

	if len(rec.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(rec.chunks))
	}
	if rec.chunks[0].Type != types.ChunkTypeGraph {
		t.Errorf("chunk 0 type = %q, want graph", rec.chunks[0].Type)
	}
	if rec.chunks[1].Type != types.ChunkTypeTable {
		t.Errorf("chunk 1 type = %q, want table", rec.chunks[1].Type)
	}
}

func TestDecoder_InvariantViolatingChunkSkipped(t *testing.T) {
	// Well-formed JSON, but labels/values lengths disagree.
	r := newFragmentReader(io.EOF,
		"{\"type\":\"graph\",\"labels\":[\"a\"],\"values\":[1,2]}\n{\"type\":\"text\",\"content\":\"ok\"}\n",
	)

	rec := runDecoder(t, r)

	if len(rec.chunks) != 1 || rec.chunks[0].Content != "ok" {
		t.Fatalf("got chunks %+v, want single text ok", rec.chunks)
	}
}

func TestDecoder_TransportError(t *testing.T) {
	readErr := errors.New("connection reset")
	r := newFragmentReader(readErr, "{\"type\":\"text\",\"content\":\"partial\"}\n")

	rec := runDecoder(t, r)

	if len(rec.chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (delivered before the failure)", len(rec.chunks))
	}
	if len(rec.errs) != 1 {
		t.Fatalf("OnError fired %d times, want 1", len(rec.errs))
	}
	if !errors.Is(rec.errs[0], readErr) {
		t.Errorf("error = %v, want wrapped %v", rec.errs[0], readErr)
	}
	if rec.completes != 0 {
		t.Errorf("OnComplete must not fire after OnError, fired %d times", rec.completes)
	}
	if !r.closed {
		t.Error("decoder did not close the reader")
	}
}

func TestDecoder_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newFragmentReader(io.EOF, "{\"type\":\"text\",\"content\":\"x\"}\n")
	rec := &recorder{}
	NewDecoder(r, rec.handler()).Run(ctx)

	if len(rec.chunks) != 0 || rec.completes != 0 || len(rec.errs) != 0 {
		t.Errorf("canceled run fired callbacks: %+v", rec)
	}
	if !r.closed {
		t.Error("canceled run did not close the reader")
	}
}

func TestDecoder_NilHandlerFields(t *testing.T) {
	// A handler with nil fields must not panic.
	r := newFragmentReader(io.EOF, "{\"type\":\"text\",\"content\":\"x\"}\nbad\n")
	NewDecoder(r, Handler{}).Run(context.Background())
}
