package dutil

import (
	"fmt"
	"math/rand"
)

// Sampler generates the sample indexes a data loader visits.
type Sampler interface {
	Sample() []int
	BatchSize() int
}

// SequentialSampler visits every sample once, in order.
type SequentialSampler struct {
	n int
}

// NewSequentialSampler creates a SequentialSampler over n samples.
func NewSequentialSampler(n int) (*SequentialSampler, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset size must be positive, got %v", n)
	}
	return &SequentialSampler{n: n}, nil
}

func (s *SequentialSampler) Sample() []int {
	indexes := make([]int, s.n)
	for i := range indexes {
		indexes[i] = i
	}
	return indexes
}

func (s *SequentialSampler) BatchSize() int { return 1 }

// BatchSampler yields batches of indexes, optionally shuffled, and can
// drop a trailing batch smaller than the batch size.
type BatchSampler struct {
	n         int
	batchSize int
	dropLast  bool
	shuffle   bool
}

// NewBatchSampler creates a BatchSampler over n samples.
func NewBatchSampler(n, batchSize int, dropLast, shuffle bool) (*BatchSampler, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset size must be positive, got %v", n)
	}
	if batchSize <= 0 || batchSize > n {
		return nil, fmt.Errorf("batch size must be in range [1, %v], got %v", n, batchSize)
	}

	return &BatchSampler{
		n:         n,
		batchSize: batchSize,
		dropLast:  dropLast,
		shuffle:   shuffle,
	}, nil
}

func (s *BatchSampler) Sample() []int {
	indexes := make([]int, s.n)
	for i := range indexes {
		indexes[i] = i
	}
	if s.shuffle {
		rand.Shuffle(len(indexes), func(i, j int) {
			indexes[i], indexes[j] = indexes[j], indexes[i]
		})
	}
	if s.dropLast {
		indexes = indexes[:s.n-s.n%s.batchSize]
	}

	return indexes
}

func (s *BatchSampler) BatchSize() int { return s.batchSize }
