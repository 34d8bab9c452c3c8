package dutil

import "reflect"

// Dataset represents a set of samples addressable by index.
type Dataset interface {
	// Item returns the sample at idx.
	Item(idx int) (interface{}, error)
	// Len returns the number of samples.
	Len() int
	// DType returns the element type batches are collected into.
	DType() reflect.Type
}
