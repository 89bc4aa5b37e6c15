// Package batch partitions normalized records into fixed-size batches.
package batch

import (
	"iter"

	"github.com/yungbote/winegraph/internal/domain"
)

// Chunk returns the contiguous batches of records, in order. The sequence reads
// the slice lazily and can be ranged over any number of times. The last batch may
// be shorter than size.
func Chunk(records []domain.WineRecord, size int) (iter.Seq[domain.Batch], error) {
	if size <= 0 {
		return nil, &domain.ConfigError{Field: "batch_size", Reason: "must be positive"}
	}
	return func(yield func(domain.Batch) bool) {
		seq := 0
		for start := 0; start < len(records); start += size {
			end := min(start+size, len(records))
			// full slice expression keeps a consumer's append from touching the next batch
			if !yield(domain.Batch{Seq: seq, Records: records[start:end:end]}) {
				return
			}
			seq++
		}
	}, nil
}

// Count is the number of batches Chunk yields for n records.
func Count(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
