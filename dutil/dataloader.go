package dutil

import (
	"fmt"
	"reflect"
)

// DataLoader iterates a Dataset in the order and grouping a Sampler
// dictates. With a batch size above 1, Next returns a slice of the
// dataset's DType.
type DataLoader struct {
	dataset   Dataset
	sampler   Sampler
	indexes   []int
	batchSize int
	currIdx   int
}

// NewDataLoader creates a DataLoader from a dataset and a sampler.
func NewDataLoader(data Dataset, s Sampler) (*DataLoader, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("dataset must not be empty")
	}
	if s == nil {
		var err error
		if s, err = NewSequentialSampler(data.Len()); err != nil {
			return nil, err
		}
	}

	return &DataLoader{
		dataset:   data,
		sampler:   s,
		indexes:   s.Sample(),
		batchSize: s.BatchSize(),
	}, nil
}

// HasNext returns whether the current pass has remaining samples.
func (dl *DataLoader) HasNext() bool {
	return dl.currIdx < len(dl.indexes)
}

// Next returns the next sample, or the next batch of samples as a
// slice of the dataset's DType when the batch size is above 1.
func (dl *DataLoader) Next() (interface{}, error) {
	if !dl.HasNext() {
		return nil, fmt.Errorf("no more samples, reset the loader to iterate again")
	}

	if dl.batchSize == 1 {
		item, err := dl.dataset.Item(dl.indexes[dl.currIdx])
		if err != nil {
			return nil, err
		}
		dl.currIdx++
		return item, nil
	}

	items := reflect.MakeSlice(reflect.SliceOf(dl.dataset.DType()), 0, dl.batchSize)
	for i := 0; i < dl.batchSize && dl.HasNext(); i++ {
		item, err := dl.dataset.Item(dl.indexes[dl.currIdx])
		if err != nil {
			return nil, err
		}
		items = reflect.Append(items, reflect.ValueOf(item))
		dl.currIdx++
	}

	return items.Interface(), nil
}

// Reset re-samples the indexes and restarts the iteration.
func (dl *DataLoader) Reset() {
	dl.indexes = dl.sampler.Sample()
	dl.currIdx = 0
}

// Len returns the number of samples a full pass visits.
func (dl *DataLoader) Len() int {
	return len(dl.indexes)
}
