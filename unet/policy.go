package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/cityseg/useg/base"
)

// StageSpec identifies one conv stage of the pipeline together with the
// channel counts it must consume and produce.
type StageSpec struct {
	Part Part
	// DepthIndex is the encoder-side depth index for down and up
	// stages, -1 for start, bottom and end.
	DepthIndex int64
	CIn        int64
	COut       int64
}

// name is the variable-store sub-path of the stage.
func (s StageSpec) name() string {
	switch s.Part {
	case PartDown, PartUp:
		return fmt.Sprintf("%v%d", s.Part, s.DepthIndex)
	default:
		return string(s.Part)
	}
}

// TopologyPolicy supplies the operators slotted into the assembled
// network. It is injected at construction; derived variants implement
// it instead of subclassing the model.
type TopologyPolicy interface {
	// ConvStage returns the conv operator for the stage and whether the
	// stage output is exposed as a side output.
	ConvStage(p *nn.Path, spec StageSpec) (ts.ModuleT, bool)
	// Downsample returns the halving operator after encoder stage index.
	Downsample(p *nn.Path, index int64) ts.ModuleT
	// Upsample returns the doubling operator before the decoder stage
	// mirroring encoder stage index.
	Upsample(p *nn.Path, index int64) ts.ModuleT
}

func resolveUpsampleMode(dim int64, mode string) (string, error) {
	if mode == "" {
		switch dim {
		case 1:
			return "linear", nil
		case 2:
			return "bilinear", nil
		case 3:
			return "trilinear", nil
		}
	}
	switch {
	case mode == "nearest":
	case dim == 1 && mode == "linear":
	case dim == 2 && mode == "bilinear":
	case dim == 3 && mode == "trilinear":
	default:
		return "", configErrorf("upsample mode %q is not supported for %vD data", mode, dim)
	}

	return mode, nil
}

// DefaultPolicy is the standard operator selection: a single ConvAct
// for the start block and encoder stage 0, double conv blocks for the
// other stages and the bottleneck, a 1x1 projection without activation
// for the end block, max-pool halving and interpolated doubling.
type DefaultPolicy struct {
	Dim          int64
	UpsampleMode string
	// Expose marks stage outputs to collect as side outputs. Nil
	// exposes nothing (the end output is always collected).
	Expose func(spec StageSpec) bool
}

// NewDefaultPolicy creates the default policy for cfg.
func NewDefaultPolicy(cfg Config) (*DefaultPolicy, error) {
	mode, err := resolveUpsampleMode(cfg.Dim, cfg.UpsampleMode)
	if err != nil {
		return nil, err
	}

	return &DefaultPolicy{Dim: cfg.Dim, UpsampleMode: mode}, nil
}

func (dp *DefaultPolicy) expose(spec StageSpec) bool {
	return dp.Expose != nil && dp.Expose(spec)
}

// ConvStage implements TopologyPolicy.
func (dp *DefaultPolicy) ConvStage(p *nn.Path, spec StageSpec) (ts.ModuleT, bool) {
	var op ts.ModuleT
	switch {
	case spec.Part == PartEnd:
		op = base.NewSegmentationHead(p, dp.Dim, spec.CIn, spec.COut, 1)
	case spec.Part == PartStart || (spec.Part == PartDown && spec.DepthIndex == 0):
		op = base.ConvAct(p, dp.Dim, spec.CIn, spec.COut, 3)
	default:
		op = base.DoubleConvAct(p, dp.Dim, spec.CIn, spec.COut, 3)
	}

	return op, dp.expose(spec)
}

// Downsample implements TopologyPolicy.
func (dp *DefaultPolicy) Downsample(p *nn.Path, index int64) ts.ModuleT {
	return &maxPool{dim: dp.Dim}
}

// Upsample implements TopologyPolicy.
func (dp *DefaultPolicy) Upsample(p *nn.Path, index int64) ts.ModuleT {
	return &interpolate{dim: dp.Dim, mode: dp.UpsampleMode}
}

// maxPool halves every spatial extent with kernel and stride 2.
type maxPool struct {
	dim int64
}

// ForwardT implements ts.ModuleT for maxPool struct.
func (m *maxPool) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	switch m.dim {
	case 1:
		return x.MustMaxPool1d([]int64{2}, []int64{2}, []int64{0}, []int64{1}, false, false)
	case 2:
		return x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)
	default:
		return x.MustMaxPool3d([]int64{2, 2, 2}, []int64{2, 2, 2}, []int64{0, 0, 0}, []int64{1, 1, 1}, false, false)
	}
}

// interpolate doubles every spatial extent with the configured mode.
type interpolate struct {
	dim  int64
	mode string
}

// ForwardT implements ts.ModuleT for interpolate struct.
func (u *interpolate) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	size := x.MustSize()
	outSize := make([]int64, len(size)-2)
	for i, extent := range size[2:] {
		outSize[i] = extent * 2
	}

	if u.mode == "nearest" {
		switch u.dim {
		case 1:
			return x.MustUpsampleNearest1d(outSize, nil, false)
		case 2:
			return x.MustUpsampleNearest2d(outSize, nil, nil, false)
		default:
			return x.MustUpsampleNearest3d(outSize, nil, nil, nil, false)
		}
	}

	switch u.dim {
	case 1:
		return x.MustUpsampleLinear1d(outSize, false, nil, false)
	case 2:
		return x.MustUpsampleBilinear2d(outSize, false, nil, nil, false)
	default:
		return x.MustUpsampleTrilinear3d(outSize, false, nil, nil, nil, false)
	}
}

// SCSEPolicy decorates the default conv stages with SCSE attention and
// can expose every decoder stage output alongside the end output.
// It only supports 2D data.
type SCSEPolicy struct {
	inner *DefaultPolicy
	// ExposeDecoder collects every up-stage output as a side output.
	ExposeDecoder bool
}

// NewSCSEPolicy creates an attention-augmented policy for cfg.
func NewSCSEPolicy(cfg Config, exposeDecoder bool) (*SCSEPolicy, error) {
	if cfg.Dim != 2 {
		return nil, configErrorf("SCSE policy supports 2D data only, got dim %v", cfg.Dim)
	}
	inner, err := NewDefaultPolicy(cfg)
	if err != nil {
		return nil, err
	}

	return &SCSEPolicy{inner: inner, ExposeDecoder: exposeDecoder}, nil
}

// ConvStage implements TopologyPolicy.
func (sp *SCSEPolicy) ConvStage(p *nn.Path, spec StageSpec) (ts.ModuleT, bool) {
	op, _ := sp.inner.ConvStage(p, spec)
	if spec.Part == PartStart || spec.Part == PartEnd {
		return op, false
	}

	seq := nn.SeqT()
	seq.Add(op)
	seq.Add(base.NewAttention(base.NewSCSE(p.Sub("scse"), spec.COut)))

	return seq, sp.ExposeDecoder && spec.Part == PartUp
}

// Downsample implements TopologyPolicy.
func (sp *SCSEPolicy) Downsample(p *nn.Path, index int64) ts.ModuleT {
	return sp.inner.Downsample(p, index)
}

// Upsample implements TopologyPolicy.
func (sp *SCSEPolicy) Upsample(p *nn.Path, index int64) ts.ModuleT {
	return sp.inner.Upsample(p, index)
}
