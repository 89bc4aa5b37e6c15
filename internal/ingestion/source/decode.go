package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/yungbote/winegraph/internal/domain"
)

// NDJSON yields one record per non-blank line, tagged with its line number. A line that is not a JSON object
// yields a *domain.ValidationError with its line number and decoding continues;
// a read error is yielded once and ends the sequence. Numbers are kept as
// json.Number so the normalizer sees the source text.
func NDJSON(r io.Reader) iter.Seq2[domain.SourceRecord, error] {
	return func(yield func(domain.SourceRecord, error) bool) {
		br := bufio.NewReaderSize(r, 256<<10)
		line := 0
		for {
			b, err := br.ReadBytes('\n')
			if len(b) > 0 {
				line++
				if b = bytes.TrimSpace(b); len(b) > 0 {
					rec, derr := decodeObject(b)
					if derr != nil {
						derr = &domain.ValidationError{Line: line, Reason: "malformed json", Err: derr}
					}
					if !yield(domain.SourceRecord{Line: line, Fields: rec}, derr) {
						return
					}
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(domain.SourceRecord{}, fmt.Errorf("source: read line %d: %w", line+1, err))
				return
			}
		}
	}
}

// JSONArray yields the elements of a top-level JSON array. An element that is not
// an object yields a *domain.ValidationError (Line is the 1-based element index);
// a syntax error ends the sequence.
func JSONArray(r io.Reader) iter.Seq2[domain.SourceRecord, error] {
	return func(yield func(domain.SourceRecord, error) bool) {
		dec := json.NewDecoder(r)
		dec.UseNumber()
		tok, err := dec.Token()
		if err != nil {
			yield(domain.SourceRecord{}, fmt.Errorf("source: read array: %w", err))
			return
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			yield(domain.SourceRecord{}, fmt.Errorf("source: expected json array, got %v", tok))
			return
		}
		for i := 1; dec.More(); i++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				yield(domain.SourceRecord{}, fmt.Errorf("source: element %d: %w", i, err))
				return
			}
			rec, derr := decodeObject(raw)
			if derr != nil {
				derr = &domain.ValidationError{Line: i, Reason: "not a json object", Err: derr}
			}
			if !yield(domain.SourceRecord{Line: i, Fields: rec}, derr) {
				return
			}
		}
	}
}

// Records picks JSONArray when the first non-blank byte is '[' and NDJSON
// otherwise. Only the first 4 KiB are inspected.
func Records(r io.Reader) iter.Seq2[domain.SourceRecord, error] {
	br := bufio.NewReaderSize(r, 4096)
	head, _ := br.Peek(4096)
	if b := bytes.TrimLeft(head, " \t\r\n"); len(b) > 0 && b[0] == '[' {
		return JSONArray(br)
	}
	return NDJSON(br)
}

func decodeObject(b []byte) (domain.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rec domain.RawRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("null record")
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return rec, nil
}
