package base_test

import (
	"reflect"
	"testing"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/cityseg/useg/base"
)

func TestIdentityForward(t *testing.T) {
	x := ts.MustRand([]int64{2, 4, 8, 8}, gotch.Float, gotch.CPU)
	y := base.NewIdentity().ForwardT(x, false)

	if got := y.MustSize(); !reflect.DeepEqual(got, x.MustSize()) {
		t.Errorf("output shape = %v, want %v", got, x.MustSize())
	}
	if !reflect.DeepEqual(y.Float64Values(), x.Float64Values()) {
		t.Error("identity changed tensor values")
	}

	y.MustDrop()
	x.MustDrop()
}

// With no module given, Attention must behave as the identity.
func TestAttentionDefault(t *testing.T) {
	x := ts.MustRand([]int64{1, 4, 8, 8}, gotch.Float, gotch.CPU)
	y := base.NewAttention().ForwardT(x, false)

	if !reflect.DeepEqual(y.Float64Values(), x.Float64Values()) {
		t.Error("default attention changed tensor values")
	}

	y.MustDrop()
	x.MustDrop()
}

func TestAttentionSCSE(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	attn := base.NewAttention(base.NewSCSE(vs.Root().Sub("scse"), 16))

	x := ts.MustRand([]int64{1, 16, 8, 8}, gotch.Float, gotch.CPU)
	y := attn.ForwardT(x, false)

	if got := y.MustSize(); !reflect.DeepEqual(got, []int64{1, 16, 8, 8}) {
		t.Errorf("output shape = %v, want [1 16 8 8]", got)
	}

	y.MustDrop()
	x.MustDrop()
}

func TestSegmentationHead(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	head := base.NewSegmentationHead(vs.Root().Sub("logit"), 2, 8, 3, 1)

	x := ts.MustRand([]int64{1, 8, 16, 16}, gotch.Float, gotch.CPU)
	y := head.ForwardT(x, false)

	if got := y.MustSize(); !reflect.DeepEqual(got, []int64{1, 3, 16, 16}) {
		t.Errorf("output shape = %v, want [1 3 16 16]", got)
	}

	y.MustDrop()
	x.MustDrop()
}
