// Package processing splits large genomic inputs into chunks and works them on a bounded pool.
package processing

import (
	"context"
	"runtime"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("processing")

const (
	DefaultChunkSize = 1000
	// inputs at or below this size are processed inline
	largeThreshold = 10000
)

type Optimizer struct {
	ChunkSize int
	Workers   int
}

func NewOptimizer(chunkSize, workers int) *Optimizer {
	o := &Optimizer{ChunkSize: chunkSize, Workers: workers}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// IsLarge reports whether n items are worth chunking.
func (o *Optimizer) IsLarge(n int) bool {
	return n > largeThreshold
}

// Chunk splits items into slices of at most size elements. The slices share items' backing array.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}

// ProcessInChunks runs fn over the chunks of items with at most o.Workers chunks in flight and
// returns the concatenated results in input order. The first error cancels the remaining chunks.
func ProcessInChunks[T, R any](ctx context.Context, o *Optimizer, items []T, fn func(ctx context.Context, chunk []T) ([]R, error)) ([]R, error) {
	if o == nil {
		o = NewOptimizer(0, 0)
	}
	chunks := Chunk(items, o.ChunkSize)
	results := make([][]R, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	eg.SetLimit(workers)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			out, err := fn(egCtx, chunk)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]R, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	log.Debugw("processed chunks", "items", len(items), "chunks", len(chunks), "workers", workers)
	return merged, nil
}
