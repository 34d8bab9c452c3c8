package dutil_test

import (
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/cityseg/useg/dutil"
)

// intDataset serves its index as the sample value.
type intDataset struct {
	n int
}

func (ds *intDataset) Item(idx int) (interface{}, error) {
	if idx < 0 || idx >= ds.n {
		return nil, fmt.Errorf("index %v out of range", idx)
	}
	return idx, nil
}

func (ds *intDataset) Len() int { return ds.n }

func (ds *intDataset) DType() reflect.Type { return reflect.TypeOf(0) }

func TestDataLoaderSequential(t *testing.T) {
	ds := &intDataset{n: 5}
	dl, err := dutil.NewDataLoader(ds, nil)
	if err != nil {
		t.Fatal(err)
	}

	var got []int
	for dl.HasNext() {
		item, err := dl.Next()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, item.(int))
	}

	want := []int{0, 1, 2, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("visited %v, want %v", got, want)
	}
}

func TestDataLoaderBatched(t *testing.T) {
	ds := &intDataset{n: 10}
	s, err := dutil.NewBatchSampler(ds.Len(), 4, false, false)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := dutil.NewDataLoader(ds, s)
	if err != nil {
		t.Fatal(err)
	}

	var sizes []int
	var seen []int
	for dl.HasNext() {
		item, err := dl.Next()
		if err != nil {
			t.Fatal(err)
		}
		batch := item.([]int)
		sizes = append(sizes, len(batch))
		seen = append(seen, batch...)
	}

	if !reflect.DeepEqual(sizes, []int{4, 4, 2}) {
		t.Errorf("batch sizes = %v, want [4 4 2]", sizes)
	}
	if !reflect.DeepEqual(seen, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("visited %v", seen)
	}
}

func TestDataLoaderDropLastShuffle(t *testing.T) {
	ds := &intDataset{n: 10}
	s, err := dutil.NewBatchSampler(ds.Len(), 4, true, true)
	if err != nil {
		t.Fatal(err)
	}
	dl, err := dutil.NewDataLoader(ds, s)
	if err != nil {
		t.Fatal(err)
	}
	if dl.Len() != 8 {
		t.Fatalf("loader len = %v, want 8 with drop-last", dl.Len())
	}

	var seen []int
	for dl.HasNext() {
		item, err := dl.Next()
		if err != nil {
			t.Fatal(err)
		}
		batch := item.([]int)
		if len(batch) != 4 {
			t.Errorf("batch size = %v, want 4", len(batch))
		}
		seen = append(seen, batch...)
	}

	// every visited index is unique and in range
	sort.Ints(seen)
	for i := 1; i < len(seen); i++ {
		if seen[i] == seen[i-1] {
			t.Errorf("index %v visited twice", seen[i])
		}
	}
	if len(seen) != 8 {
		t.Errorf("visited %v indexes, want 8", len(seen))
	}

	dl.Reset()
	if !dl.HasNext() {
		t.Error("loader empty after Reset")
	}
}

func TestNewBatchSamplerValidation(t *testing.T) {
	if _, err := dutil.NewBatchSampler(0, 1, false, false); err == nil {
		t.Error("expected error for empty dataset")
	}
	if _, err := dutil.NewBatchSampler(4, 5, false, false); err == nil {
		t.Error("expected error for batch size above dataset size")
	}
	if _, err := dutil.NewBatchSampler(4, 0, false, false); err == nil {
		t.Error("expected error for zero batch size")
	}
}
