package base

import (
	"log"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// Identity is a nn.Module placeholder.
// It forwards the input tensor as such.
type Identity struct{}

// Forward implement nn.Module for Identity struct
func (i *Identity) Forward(x *ts.Tensor) *ts.Tensor {
	return x.MustDetach(false)
}

// ForwardT implement ts.ModuleT for Identity struct.
func (i *Identity) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return x.MustDetach(false)
}

// NewIdentity creates a new Identity struct.
func NewIdentity() *Identity {
	return &Identity{}
}

// Conv creates a convolution module for 1, 2 or 3 spatial dimensions.
func Conv(p *nn.Path, dim, cIn, cOut, ksize, padding, stride int64) ts.ModuleT {
	switch dim {
	case 1:
		config := nn.DefaultConv1DConfig()
		config.Stride = []int64{stride}
		config.Padding = []int64{padding}
		return nn.NewConv1D(p, cIn, cOut, ksize, config)
	case 2:
		config := nn.DefaultConv2DConfig()
		config.Stride = []int64{stride, stride}
		config.Padding = []int64{padding, padding}
		return nn.NewConv2D(p, cIn, cOut, ksize, config)
	case 3:
		config := nn.DefaultConv3DConfig()
		config.Stride = []int64{stride, stride, stride}
		config.Padding = []int64{padding, padding, padding}
		return nn.NewConv3D(p, cIn, cOut, ksize, config)
	default:
		log.Fatalf("Unsupported spatial dimension: %v\n", dim)
		return nil
	}
}

// ConvAct creates a SequentialT of a convolution and an ELU activation.
// Padding is ksize/2 so odd kernel sizes preserve spatial extents.
func ConvAct(p *nn.Path, dim, cIn, cOut, ksize int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv(p.Sub("conv"), dim, cIn, cOut, ksize, ksize/2, 1))
	seq.AddFn(nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustElu(false)
	}))

	return seq
}

// DoubleConvAct creates two ConvAct blocks in series.
func DoubleConvAct(p *nn.Path, dim, cIn, cOut, ksize int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(ConvAct(p.Sub("conv1"), dim, cIn, cOut, ksize))
	seq.Add(ConvAct(p.Sub("conv2"), dim, cOut, cOut, ksize))

	return seq
}
