// Package chunk slices sorted entry lists into fixed-size chunk files.
package chunk

import (
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// Chunk is one fixed-capacity slice of a sorted list. Only the last chunk of
// a list may hold fewer than chunkSize items, and only it has HasMore false.
type Chunk[T any] struct {
	ChunkIndex int  `json:"chunkIndex"`
	Entries    []T  `json:"entries"`
	HasMore    bool `json:"hasMore"`
}

// TotalChunks returns ceil(total/chunkSize). chunkSize must be positive.
func TotalChunks(total, chunkSize int) int {
	if total <= 0 {
		return 0
	}
	return (total + chunkSize - 1) / chunkSize
}

// Split slices items into ceil(len/chunkSize) chunks. An exact multiple does
// not produce a trailing empty chunk and zero items produce zero chunks.
func Split[T any](items []T, chunkSize int) ([]Chunk[T], error) {
	if chunkSize <= 0 {
		return nil, errors.NewInvalidConfig("chunk_size", "must be a positive integer")
	}
	total := TotalChunks(len(items), chunkSize)
	chunks := make([]Chunk[T], 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(items))
		chunks = append(chunks, Chunk[T]{
			ChunkIndex: i,
			Entries:    items[start:end],
			HasMore:    i < total-1,
		})
	}
	return chunks, nil
}

// Empty returns the placeholder chunk published when a list has no items.
func Empty[T any]() Chunk[T] {
	return Chunk[T]{ChunkIndex: 0, Entries: []T{}, HasMore: false}
}
