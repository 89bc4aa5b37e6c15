package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/winegraph/internal/domain"
)

func records(n int) []domain.WineRecord {
	out := make([]domain.WineRecord, n)
	for i := range out {
		out[i] = domain.WineRecord{ID: int64(1000 + i), Points: 80, Title: "w", Country: "Italy"}
	}
	return out
}

func TestChunkReproducesInput(t *testing.T) {
	for _, n := range []int{0, 1, 2, 9, 10, 11, 99, 100, 101} {
		for _, size := range []int{1, 3, 10, 100, 1000} {
			in := records(n)
			seq, err := Chunk(in, size)
			require.NoError(t, err)

			var got []domain.WineRecord
			batches := 0
			for b := range seq {
				assert.Equal(t, batches, b.Seq)
				assert.LessOrEqual(t, b.Len(), size)
				assert.NotZero(t, b.Len())
				got = append(got, b.Records...)
				batches++
			}
			assert.Equal(t, Count(n, size), batches, "n=%d size=%d", n, size)
			if n == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, in, got, "n=%d size=%d", n, size)
			}
		}
	}
}

func TestChunkIsRestartable(t *testing.T) {
	seq, err := Chunk(records(25), 10)
	require.NoError(t, err)

	var first, second []int
	for b := range seq {
		first = append(first, b.Len())
	}
	for b := range seq {
		second = append(second, b.Len())
	}
	assert.Equal(t, []int{10, 10, 5}, first)
	assert.Equal(t, first, second)
}

func TestChunkStopsEarly(t *testing.T) {
	seq, err := Chunk(records(30), 10)
	require.NoError(t, err)
	seen := 0
	for range seq {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestChunkRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunk(records(3), size)
		assert.True(t, domain.IsConfig(err))
	}
}

func TestChunkBatchesDoNotAlias(t *testing.T) {
	in := records(4)
	seq, err := Chunk(in, 2)
	require.NoError(t, err)
	for b := range seq {
		if b.Seq == 0 {
			_ = append(b.Records, domain.WineRecord{ID: -1})
		}
	}
	assert.Equal(t, int64(1002), in[2].ID)
}
