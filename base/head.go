package base

import "github.com/sugarme/gotch/nn"

// NewSegmentationHead creates a projection head mapping decoder features
// to class logits (nn.SequentialT).
func NewSegmentationHead(p *nn.Path, dim, cIn, classes, ksize int64) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(Conv(p, dim, cIn, classes, ksize, ksize/2, 1))

	return seq
}
