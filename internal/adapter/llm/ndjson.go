package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// defaultMaxLineBytes bounds a single buffered line (8 MiB).
const defaultMaxLineBytes = 8 * 1024 * 1024

// defaultReadBufferSize is the chunk size used to read response bodies.
const defaultReadBufferSize = 32 * 1024

// linePreviewBytes is how much of a malformed line is echoed into logs.
const linePreviewBytes = 120

// ErrDecoderFinished is returned when input is fed after Finish.
var ErrDecoderFinished = errors.New("ndjson decoder: input already finished")

var (
	errNotObject = errors.New("line is not a JSON object")
	utf8BOM      = []byte("\xef\xbb\xbf")
)

// RecordSink receives each decoded record, in arrival order.
type RecordSink[T any] interface {
	Record(T)
}

// SinkFunc adapts a plain function to RecordSink.
type SinkFunc[T any] func(T)

// Record implements RecordSink.
func (f SinkFunc[T]) Record(v T) { f(v) }

// Decoder incrementally decodes a newline-delimited JSON byte stream into
// records of type T. Chunks may split lines and multi-byte characters
// anywhere; undecoded bytes and the unterminated tail line are carried over
// to the next Feed. A Decoder holds no locks and must be used from one
// goroutine.
type Decoder[T any] struct {
	logger *slog.Logger
	sink   RecordSink[T]

	text    transform.Transformer
	pending []byte // incomplete UTF-8 sequence from the previous chunk
	scratch []byte
	buf     []byte // decoded text after the last newline

	maxLine    int
	discarding bool // inside an over-long line, dropping until '\n'
	finished   bool

	records []T
	lineNo  int
	skipped int
}

// NewDecoder returns a Decoder that forwards every record to sink.
// sink may be nil.
func NewDecoder[T any](logger *slog.Logger, sink RecordSink[T]) *Decoder[T] {
	return &Decoder[T]{
		logger:  logger,
		sink:    sink,
		text:    unicode.UTF8.NewDecoder(),
		scratch: make([]byte, 4096),
		maxLine: defaultMaxLineBytes,
	}
}

// SetMaxLineBytes bounds the length of a line, excluding its '\n'. Longer
// lines are logged and dropped however they were split into chunks.
// n <= 0 removes the bound.
func (d *Decoder[T]) SetMaxLineBytes(n int) {
	d.maxLine = n
}

// Feed decodes one chunk and returns the records completed by it.
func (d *Decoder[T]) Feed(chunk []byte) ([]T, error) {
	if d.finished {
		return nil, ErrDecoderFinished
	}

	text := d.decodeText(chunk, false)
	if d.discarding {
		i := bytes.IndexByte(text, '\n')
		if i < 0 {
			return nil, nil
		}
		text = text[i+1:]
		d.discarding = false
	}
	d.buf = append(d.buf, text...)

	out := d.drainLines()
	d.guardLineLength()
	return out, nil
}

// Finish flushes the decoder at end of stream. A non-blank unterminated
// tail is parsed as one last record. It returns nil when no record is
// recovered.
func (d *Decoder[T]) Finish() (*T, error) {
	if d.finished {
		return nil, ErrDecoderFinished
	}
	d.finished = true

	// At EOF an incomplete sequence becomes U+FFFD; it cannot contain '\n'.
	tail := d.decodeText(nil, true)
	if d.discarding {
		d.buf = d.buf[:0]
		return nil, nil
	}
	d.buf = append(d.buf, tail...)

	line := d.buf
	d.buf = nil
	rec, ok := d.parseLine(line)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Records returns every record decoded so far, in arrival order.
func (d *Decoder[T]) Records() []T {
	return d.records
}

// Skipped returns the number of malformed lines dropped.
func (d *Decoder[T]) Skipped() int {
	return d.skipped
}

// drainLines parses every complete line in buf and keeps the last,
// possibly incomplete, segment buffered.
func (d *Decoder[T]) drainLines() []T {
	last := bytes.LastIndexByte(d.buf, '\n')
	if last < 0 {
		return nil
	}

	var out []T
	complete := d.buf[:last]
	for {
		i := bytes.IndexByte(complete, '\n')
		line := complete
		if i >= 0 {
			line = complete[:i]
		}
		if rec, ok := d.parseLine(line); ok {
			out = append(out, rec)
		}
		if i < 0 {
			break
		}
		complete = complete[i+1:]
	}

	rest := d.buf[last+1:]
	d.buf = append(d.buf[:0], rest...)
	return out
}

// parseLine decodes one candidate line. Blank lines are skipped silently;
// malformed lines are logged and dropped.
func (d *Decoder[T]) parseLine(line []byte) (T, bool) {
	var zero T
	d.lineNo++
	if d.maxLine > 0 && len(line) > d.maxLine {
		d.rejectOverlong()
		return zero, false
	}
	if d.lineNo == 1 {
		line = bytes.TrimPrefix(line, utf8BOM)
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return zero, false
	}
	if trimmed[0] != '{' {
		d.reject(trimmed, errNotObject)
		return zero, false
	}

	var rec T
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		d.reject(trimmed, err)
		return zero, false
	}

	d.records = append(d.records, rec)
	if d.sink != nil {
		d.sink.Record(rec)
	}
	return rec, true
}

func (d *Decoder[T]) reject(line []byte, err error) {
	d.skipped++
	preview := line
	if len(preview) > linePreviewBytes {
		preview = preview[:linePreviewBytes]
	}
	d.logger.Warn("malformed stream line",
		"line", d.lineNo,
		"error", err,
		"preview", string(preview),
	)
}

func (d *Decoder[T]) guardLineLength() {
	if d.maxLine <= 0 || len(d.buf) <= d.maxLine {
		return
	}
	d.lineNo++
	d.rejectOverlong()
	d.buf = d.buf[:0]
	d.discarding = true
}

// rejectOverlong reports the current line as exceeding maxLine. A line is
// measured up to its '\n' whether it arrived whole or was cut off early.
func (d *Decoder[T]) rejectOverlong() {
	d.skipped++
	d.logger.Warn("malformed stream line",
		"line", d.lineNo,
		"error", "line exceeds size limit",
		"limit", d.maxLine,
	)
}

// decodeText runs chunk through the stateful UTF-8 decoder. Bytes of a
// multi-byte character cut by the chunk boundary are held back and
// prefixed to the next chunk. Invalid sequences become U+FFFD.
func (d *Decoder[T]) decodeText(chunk []byte, atEOF bool) []byte {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	out := make([]byte, 0, len(src))
	for {
		nDst, nSrc, err := d.text.Transform(d.scratch, src, atEOF)
		out = append(out, d.scratch[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return out
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src...)
			return out
		default:
			// The replacing decoder does not report malformed input.
			return append(out, src...)
		}
	}
}

// pumpBody reads body chunk by chunk into dec and finishes it at EOF.
// It stops after the current chunk when ctx is done and returns the
// context's cause.
func pumpBody[T any](ctx context.Context, body io.Reader, dec *Decoder[T], bufSize int) error {
	if bufSize <= 0 {
		bufSize = defaultReadBufferSize
	}
	buf := make([]byte, bufSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, ferr := dec.Feed(buf[:n]); ferr != nil {
				return ferr
			}
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
		}
		if err == io.EOF {
			_, ferr := dec.Finish()
			return ferr
		}
		if err != nil {
			return err
		}
	}
}
