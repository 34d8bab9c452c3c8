package unet

import (
	"fmt"
	"log"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// OutputSpec describes one tensor collected by a forward pass.
type OutputSpec struct {
	Part       Part
	DepthIndex int64
	Channels   int64
}

// stageOutput is one entry of the ordered side-output bookkeeping built
// during construction.
type stageOutput struct {
	spec    OutputSpec
	exposed bool
}

// UNet is a symmetric encoder-decoder convolutional network of
// configurable spatial dimension and depth, with skip connections
// between mirrored encoder and decoder stages.
//
// All operators are created once at construction and reused on every
// forward pass; only their weights change, externally, between passes.
// A forward pass keeps no model-level state, so concurrent passes with
// fixed weights are safe.
type UNet struct {
	topo *Topology

	start       ts.ModuleT
	downConvs   []ts.ModuleT
	downsamples []ts.ModuleT
	bottom      ts.ModuleT
	upConvs     []ts.ModuleT
	upsamples   []ts.ModuleT
	end         ts.ModuleT

	// stages holds one entry per conv stage in construction order:
	// start, down 0..depth-1, bottom, up in execution order, end.
	// Forward collects outputs by walking it front to back.
	stages []stageOutput
}

// NewUNet creates a UNet with the default operator policy.
func NewUNet(p *nn.Path, cfg Config) (*UNet, error) {
	policy, err := NewDefaultPolicy(cfg)
	if err != nil {
		return nil, err
	}

	return NewUNetWithPolicy(p, cfg, policy)
}

// NewUNetWithPolicy creates a UNet whose operators are supplied by the
// given policy. Stages are assembled in a fixed order (start, encoder,
// bottleneck, decoder, end, then pool and upsample operators) and the
// side-output bookkeeping follows that order.
func NewUNetWithPolicy(p *nn.Path, cfg Config, policy TopologyPolicy) (*UNet, error) {
	topo, err := NewTopology(cfg)
	if err != nil {
		return nil, err
	}

	n := &UNet{topo: topo}
	depth := cfg.Depth

	// start block
	spec := StageSpec{Part: PartStart, DepthIndex: -1, CIn: cfg.InChannels, COut: cfg.InitialFeatures}
	op, exposed := policy.ConvStage(p.Sub(spec.name()), spec)
	n.start = op
	n.record(spec, exposed)

	// encoder stages
	cIn := cfg.InitialFeatures
	for d := int64(0); d < depth; d++ {
		cOut := topo.mustChannels(PartDown, d)
		spec := StageSpec{Part: PartDown, DepthIndex: d, CIn: cIn, COut: cOut}
		op, exposed := policy.ConvStage(p.Sub(spec.name()), spec)
		n.downConvs = append(n.downConvs, op)
		n.record(spec, exposed)
		cIn = cOut
	}

	// bottleneck
	spec = StageSpec{
		Part:       PartBottom,
		DepthIndex: -1,
		CIn:        topo.mustChannels(PartDown, depth-1),
		COut:       topo.mustChannels(PartBottom, 0),
	}
	op, exposed = policy.ConvStage(p.Sub(spec.name()), spec)
	n.bottom = op
	n.record(spec, exposed)

	// decoder stages, in execution order. The depth index is flipped so
	// that channel lookups mirror the encoder stage the skip comes from.
	cBelow := spec.COut
	for i := int64(0); i < depth; i++ {
		d := MirroredDepthIndex(i, depth)
		cSkip := topo.mustChannels(PartDown, d)
		cOut := topo.mustChannels(PartUp, d)
		spec := StageSpec{Part: PartUp, DepthIndex: d, CIn: cBelow + cSkip, COut: cOut}
		op, exposed := policy.ConvStage(p.Sub(spec.name()), spec)
		n.upConvs = append(n.upConvs, op)
		n.record(spec, exposed)
		cBelow = cOut
	}

	// end block, always collected whatever the policy says
	spec = StageSpec{
		Part:       PartEnd,
		DepthIndex: -1,
		CIn:        topo.mustChannels(PartUp, 0),
		COut:       topo.OutChannels(),
	}
	op, _ = policy.ConvStage(p.Sub(spec.name()), spec)
	n.end = op
	n.record(spec, true)

	// pool and upsample operators come last. Upsample factories get the
	// flipped index, consistent with the decoder conv factories.
	for d := int64(0); d < depth; d++ {
		n.downsamples = append(n.downsamples, policy.Downsample(p.Sub(fmt.Sprintf("pool%d", d)), d))
	}
	for i := int64(0); i < depth; i++ {
		n.upsamples = append(n.upsamples, policy.Upsample(p.Sub(fmt.Sprintf("upsample%d", i)), MirroredDepthIndex(i, depth)))
	}

	return n, nil
}

func (n *UNet) record(spec StageSpec, exposed bool) {
	n.stages = append(n.stages, stageOutput{
		spec:    OutputSpec{Part: spec.Part, DepthIndex: spec.DepthIndex, Channels: spec.COut},
		exposed: exposed,
	})
}

// Topology returns the channel arithmetic of the model.
func (n *UNet) Topology() *Topology { return n.topo }

// OutChannels returns the channel count of the end output.
func (n *UNet) OutChannels() int64 { return n.topo.OutChannels() }

// OutputSpecs returns the collected outputs of a forward pass, in
// order. The end output is always last.
func (n *UNet) OutputSpecs() []OutputSpec {
	var specs []OutputSpec
	for _, s := range n.stages {
		if s.exposed {
			specs = append(specs, s.spec)
		}
	}
	return specs
}

// SideOutChannels returns the channel count of every collected output.
func (n *UNet) SideOutChannels() []int64 {
	var channels []int64
	for _, s := range n.OutputSpecs() {
		channels = append(channels, s.Channels)
	}
	return channels
}

// validateInput rejects tensors the assembled graph cannot process.
func (n *UNet) validateInput(x *ts.Tensor) error {
	cfg := n.topo.Config()
	size := x.MustSize()
	if int64(len(size)) != cfg.Dim+2 {
		return shapeErrorf("expected rank %v ([batch, channels, %v spatial axes]), got rank %v",
			cfg.Dim+2, cfg.Dim, len(size))
	}
	if size[1] != cfg.InChannels {
		return shapeErrorf("expected %v input channels, got %v", cfg.InChannels, size[1])
	}
	if steps := maxDownsampleSteps(size[2:], 2); steps < cfg.Depth {
		return shapeErrorf("cannot downsample %v times with input shape %v", cfg.Depth, size)
	}

	return nil
}

// Forward runs the network over x and returns the collected outputs in
// construction order. The slice has length 1 unless stages were exposed
// as side outputs; the end output is always its last element. The
// caller owns the returned tensors.
func (n *UNet) Forward(x *ts.Tensor, train bool) ([]*ts.Tensor, error) {
	if err := n.validateInput(x); err != nil {
		return nil, err
	}

	cfg := n.topo.Config()
	depth := cfg.Depth
	var collected []*ts.Tensor
	si := 0 // cursor into n.stages, advanced per conv stage

	collect := func(t *ts.Tensor) bool {
		exposed := n.stages[si].exposed
		if exposed {
			collected = append(collected, t)
		}
		si++
		return exposed
	}

	// encoder pass
	out := n.start.ForwardT(x, train)
	outKept := collect(out)

	downRes := make([]*ts.Tensor, depth)
	downKept := make([]bool, depth)
	for d := int64(0); d < depth; d++ {
		conv := n.downConvs[d].ForwardT(out, train)
		if !outKept {
			out.MustDrop()
		}
		assertChannels(conv, n.topo.mustChannels(PartDown, d), "encoder conv")
		downRes[d] = conv
		downKept[d] = collect(conv)

		out = n.downsamples[d].ForwardT(conv, train)
		outKept = false
	}

	// bottleneck
	assertChannels(out, n.topo.mustChannels(PartDown, depth-1), "bottleneck input")
	conv := n.bottom.ForwardT(out, train)
	if !outKept {
		out.MustDrop()
	}
	assertChannels(conv, n.topo.mustChannels(PartBottom, 0), "bottleneck conv")
	out = conv
	outKept = collect(out)

	// decoder pass, consuming the encoder results in reverse
	for i := int64(0); i < depth; i++ {
		d := MirroredDepthIndex(i, depth)

		up := n.upsamples[i].ForwardT(out, train)
		if !outKept {
			out.MustDrop()
		}

		skip := downRes[d]
		assertChannels(skip, n.topo.mustChannels(PartDown, d), "skip connection")
		cat := ts.MustCat([]ts.Tensor{*skip, *up}, 1)
		up.MustDrop()
		if !downKept[d] {
			skip.MustDrop()
		}
		downRes[d] = nil

		conv := n.upConvs[i].ForwardT(cat, train)
		cat.MustDrop()
		assertChannels(conv, n.topo.mustChannels(PartUp, d), "decoder conv")
		out = conv
		outKept = collect(out)
	}

	// end block, always collected
	endOut := n.end.ForwardT(out, train)
	if !outKept {
		out.MustDrop()
	}
	collected = append(collected, endOut)

	return collected, nil
}

// ForwardT implements ts.ModuleT, returning the end output only. Side
// outputs flagged by the policy are dropped; use Forward to keep them.
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	outs, err := n.Forward(x, train)
	if err != nil {
		log.Fatal(err)
	}

	last := outs[len(outs)-1]
	for _, o := range outs[:len(outs)-1] {
		o.MustDrop()
	}

	return last
}

// assertChannels checks an internal wiring invariant. A violation means
// the construction logic is broken, so it panics rather than returning
// a recoverable error.
func assertChannels(x *ts.Tensor, want int64, stage string) {
	if got := x.MustSize()[1]; got != want {
		panic(fmt.Sprintf("unet: internal: %v produced %v channels, want %v", stage, got, want))
	}
}
