package llm

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

type testRecord struct {
	A int    `json:"a"`
	S string `json:"s"`
}

// decodeAll feeds chunks in order, finishes the decoder and returns every
// record it produced.
func decodeAll(t *testing.T, chunks [][]byte) ([]testRecord, int) {
	t.Helper()
	return decodeAllLimited(t, chunks, defaultMaxLineBytes)
}

func decodeAllLimited(t *testing.T, chunks [][]byte, maxLine int) ([]testRecord, int) {
	t.Helper()
	dec := NewDecoder[testRecord](newTestLogger(), nil)
	dec.SetMaxLineBytes(maxLine)
	var got []testRecord
	for _, c := range chunks {
		recs, err := dec.Feed(c)
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		got = append(got, recs...)
	}
	last, err := dec.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if last != nil {
		got = append(got, *last)
	}
	if !reflect.DeepEqual(got, dec.Records()) {
		t.Errorf("Records() = %v, want %v", dec.Records(), got)
	}
	return got, dec.Skipped()
}

func TestDecoderTwoRecordsOneChunk(t *testing.T) {
	dec := NewDecoder[domain.ChatResponse](newTestLogger(), nil)

	recs, err := dec.Feed([]byte(helRecord + "\n" + loRecord + "\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Message.Content != "Hel" || recs[0].Done {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Message.Content != "lo" || !recs[1].Done {
		t.Errorf("second record = %+v", recs[1])
	}
	if recs[1].CreatedAt != "t" {
		t.Errorf("CreatedAt = %q, want %q", recs[1].CreatedAt, "t")
	}

	last, err := dec.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if last != nil {
		t.Errorf("Finish returned %+v, want nil", last)
	}
}

func TestDecoderChunkBoundaryInvariance(t *testing.T) {
	stream := []byte(`{"a":1,"s":"héllo"}` + "\n" +
		"\n" +
		`{"a":2,"s":"世界 🎉"}` + "\r\n" +
		`garbage` + "\n" +
		`{"a":3,"s":"tail ü"}`)

	want, wantSkipped := decodeAll(t, [][]byte{stream})
	if len(want) != 3 {
		t.Fatalf("single chunk decoded %d records, want 3", len(want))
	}
	if wantSkipped != 1 {
		t.Fatalf("single chunk skipped %d lines, want 1", wantSkipped)
	}

	// Every two-way split.
	for i := 0; i <= len(stream); i++ {
		got, skipped := decodeAll(t, [][]byte{stream[:i], stream[i:]})
		if !reflect.DeepEqual(got, want) || skipped != wantSkipped {
			t.Fatalf("split at %d: got %v (skipped %d), want %v", i, got, skipped, want)
		}
	}

	// Byte by byte.
	var chunks [][]byte
	for i := range stream {
		chunks = append(chunks, stream[i:i+1])
	}
	got, skipped := decodeAll(t, chunks)
	if !reflect.DeepEqual(got, want) || skipped != wantSkipped {
		t.Fatalf("byte by byte: got %v, want %v", got, want)
	}
}

func TestDecoderLineLimitIgnoresChunkBoundaries(t *testing.T) {
	const limit = 32
	exact := `{"a":1,"s":"` + strings.Repeat("x", 18) + `"}`
	if len(exact) != limit {
		t.Fatalf("fixture is %d bytes, want %d", len(exact), limit)
	}
	stream := []byte(exact + "\n" +
		`{"a":2,"s":"` + strings.Repeat("y", 40) + `"}` + "\r\n" +
		`{"a":3}` + "\n" +
		`{"a":4,"s":"` + strings.Repeat("z", 40) + `"}`)

	want, wantSkipped := decodeAllLimited(t, [][]byte{stream}, limit)
	if len(want) != 2 || want[0].A != 1 || want[1].A != 3 {
		t.Fatalf("single chunk decoded %+v, want records a=1 and a=3", want)
	}
	if wantSkipped != 2 {
		t.Fatalf("single chunk skipped %d lines, want 2", wantSkipped)
	}

	for i := 0; i <= len(stream); i++ {
		got, skipped := decodeAllLimited(t, [][]byte{stream[:i], stream[i:]}, limit)
		if !reflect.DeepEqual(got, want) || skipped != wantSkipped {
			t.Fatalf("split at %d: got %v (skipped %d), want %v", i, got, skipped, want)
		}
	}

	var chunks [][]byte
	for i := range stream {
		chunks = append(chunks, stream[i:i+1])
	}
	got, skipped := decodeAllLimited(t, chunks, limit)
	if !reflect.DeepEqual(got, want) || skipped != wantSkipped {
		t.Fatalf("byte by byte: got %v (skipped %d), want %v", got, skipped, want)
	}
}

func TestDecoderMultiByteCharacterSplit(t *testing.T) {
	line := []byte(`{"s":"🎉"}` + "\n")
	emoji := strings.Index(string(line), "🎉")

	// Split inside the four-byte sequence.
	got, _ := decodeAll(t, [][]byte{line[:emoji+2], line[emoji+2:]})
	if len(got) != 1 || got[0].S != "🎉" {
		t.Fatalf("got %+v, want one record with the emoji intact", got)
	}
}

func TestDecoderSkipsMalformedLines(t *testing.T) {
	logger, logs := newCaptureLogger()
	dec := NewDecoder[testRecord](logger, nil)

	recs, err := dec.Feed([]byte(`{"a":1}` + "\n" +
		`not json` + "\n" +
		`[1,2,3]` + "\n" +
		`{"a":` + "\n" +
		`{"a":2}` + "\n"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(recs) != 2 || recs[0].A != 1 || recs[1].A != 2 {
		t.Fatalf("records = %+v, want a=1 and a=2", recs)
	}
	if dec.Skipped() != 3 {
		t.Errorf("Skipped = %d, want 3", dec.Skipped())
	}
	out := logs.String()
	if !strings.Contains(out, "malformed stream line") {
		t.Errorf("expected malformed line warning, got %q", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected warn level, got %q", out)
	}
}

func TestDecoderBlankLinesAreNotErrors(t *testing.T) {
	got, skipped := decodeAll(t, [][]byte{[]byte("\n\n   \n\t\n" + `{"a":1}` + "\n\n")})
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if skipped != 0 {
		t.Errorf("Skipped = %d, want 0", skipped)
	}
}

func TestDecoderUnterminatedTrailingLine(t *testing.T) {
	dec := NewDecoder[testRecord](newTestLogger(), nil)

	recs, err := dec.Feed([]byte(`{"a":1}` + "\n" + `{"a":2}`))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(recs) != 1 || recs[0].A != 1 {
		t.Fatalf("Feed records = %+v, want only a=1", recs)
	}

	last, err := dec.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if last == nil || last.A != 2 {
		t.Fatalf("Finish = %+v, want a=2", last)
	}
	if len(dec.Records()) != 2 {
		t.Errorf("Records() len = %d, want 2", len(dec.Records()))
	}
}

func TestDecoderFinishEmptyAndWhitespace(t *testing.T) {
	for _, input := range []string{"", "   ", "\t \r"} {
		dec := NewDecoder[testRecord](newTestLogger(), nil)
		if _, err := dec.Feed([]byte(input)); err != nil {
			t.Fatalf("Feed(%q): %v", input, err)
		}
		last, err := dec.Finish()
		if err != nil {
			t.Fatalf("Finish(%q): %v", input, err)
		}
		if last != nil {
			t.Errorf("Finish(%q) = %+v, want nil", input, last)
		}
		if dec.Skipped() != 0 {
			t.Errorf("Skipped(%q) = %d, want 0", input, dec.Skipped())
		}
	}
}

func TestDecoderMalformedTailIsDropped(t *testing.T) {
	dec := NewDecoder[testRecord](newTestLogger(), nil)
	dec.Feed([]byte(`{"a":1`))

	last, err := dec.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if last != nil {
		t.Errorf("Finish = %+v, want nil", last)
	}
	if dec.Skipped() != 1 {
		t.Errorf("Skipped = %d, want 1", dec.Skipped())
	}
}

func TestDecoderRejectsInputAfterFinish(t *testing.T) {
	dec := NewDecoder[testRecord](newTestLogger(), nil)
	if _, err := dec.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := dec.Feed([]byte(`{"a":1}` + "\n")); !errors.Is(err, ErrDecoderFinished) {
		t.Errorf("Feed after Finish: err = %v, want ErrDecoderFinished", err)
	}
	if _, err := dec.Finish(); !errors.Is(err, ErrDecoderFinished) {
		t.Errorf("second Finish: err = %v, want ErrDecoderFinished", err)
	}
}

func TestDecoderInvalidUTF8BecomesReplacement(t *testing.T) {
	// A truncated three-byte sequence followed by a non-continuation byte.
	got, _ := decodeAll(t, [][]byte{
		[]byte(`{"s":"a` + "\xe4\xb8"),
		[]byte(`b"}` + "\n"),
	})
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if !strings.HasPrefix(got[0].S, "a") || !strings.HasSuffix(got[0].S, "b") {
		t.Errorf("S = %q, want a...b", got[0].S)
	}
	if !strings.ContainsRune(got[0].S, '�') {
		t.Errorf("S = %q, want U+FFFD replacement", got[0].S)
	}
}

func TestDecoderStripsLeadingBOM(t *testing.T) {
	got, skipped := decodeAll(t, [][]byte{[]byte("\xef\xbb\xbf" + `{"a":7}` + "\n")})
	if len(got) != 1 || got[0].A != 7 {
		t.Fatalf("got %+v, want a=7", got)
	}
	if skipped != 0 {
		t.Errorf("Skipped = %d, want 0", skipped)
	}
}

func TestDecoderDropsOverlongLine(t *testing.T) {
	dec := NewDecoder[testRecord](newTestLogger(), nil)
	dec.SetMaxLineBytes(16)

	recs, _ := dec.Feed([]byte(`{"s":"` + strings.Repeat("x", 40)))
	if len(recs) != 0 {
		t.Fatalf("got %d records from overlong prefix", len(recs))
	}
	recs, _ = dec.Feed([]byte(`xxx"}` + "\n" + `{"a":9}` + "\n"))
	if len(recs) != 1 || recs[0].A != 9 {
		t.Fatalf("records = %+v, want a=9", recs)
	}
	if dec.Skipped() != 1 {
		t.Errorf("Skipped = %d, want 1", dec.Skipped())
	}
}

func TestDecoderDropsOverlongCompleteLine(t *testing.T) {
	dec := NewDecoder[testRecord](newTestLogger(), nil)
	dec.SetMaxLineBytes(16)

	recs, _ := dec.Feed([]byte(`{"s":"` + strings.Repeat("x", 40) + `"}` + "\n" + `{"a":9}` + "\n"))
	if len(recs) != 1 || recs[0].A != 9 {
		t.Fatalf("records = %+v, want a=9", recs)
	}
	if dec.Skipped() != 1 {
		t.Errorf("Skipped = %d, want 1", dec.Skipped())
	}
}

func TestDecoderSinkSeesRecordsInOrder(t *testing.T) {
	var seen []int
	dec := NewDecoder[testRecord](newTestLogger(), SinkFunc[testRecord](func(r testRecord) {
		seen = append(seen, r.A)
	}))

	dec.Feed([]byte(`{"a":1}` + "\n" + `{"a":`))
	dec.Feed([]byte(`2}` + "\n" + `{"a":3}`))
	dec.Finish()

	if !reflect.DeepEqual(seen, []int{1, 2, 3}) {
		t.Errorf("sink saw %v, want [1 2 3]", seen)
	}
}
