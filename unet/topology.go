package unet

// Part names a position in the encoder-decoder pipeline.
type Part string

const (
	PartStart  Part = "start"
	PartDown   Part = "down"
	PartBottom Part = "bottom"
	PartUp     Part = "up"
	PartEnd    Part = "end"
)

// Channel counts above this bound almost certainly exhaust memory long
// before the model is usable, so construction fails fast instead.
const maxStageChannels = 1 << 24

// Config holds the settings of a U-Net topology.
type Config struct {
	// Dim is the spatial dimension of the data. Must be 1, 2 or 3.
	Dim int64
	// InChannels is the channel count of input tensors.
	InChannels int64
	// InitialFeatures is the channel count after the start block.
	InitialFeatures int64
	// OutChannels is the channel count of the end block. Zero means
	// derive it as Channels(PartUp, 0).
	OutChannels int64
	// Depth is the number of downsample/upsample steps.
	Depth int64
	// Gain is the multiplicative channel growth per encoder stage.
	Gain int64
	// UpsampleMode overrides the interpolation mode of the default
	// upsample operators. Empty selects linear/bilinear/trilinear by Dim.
	UpsampleMode string
}

// DefaultConfig returns a Config with depth 3 and gain 2, matching the
// classical U-Net growth schedule.
func DefaultConfig(dim, cIn, features int64) Config {
	return Config{
		Dim:             dim,
		InChannels:      cIn,
		InitialFeatures: features,
		Depth:           3,
		Gain:            2,
	}
}

// Topology derives per-stage channel counts from a validated Config.
type Topology struct {
	cfg Config
}

// NewTopology validates cfg and returns the channel arithmetic for it.
func NewTopology(cfg Config) (*Topology, error) {
	if cfg.Dim < 1 || cfg.Dim > 3 {
		return nil, configErrorf("dim must be 1, 2 or 3, got %v", cfg.Dim)
	}
	if cfg.InChannels < 1 {
		return nil, configErrorf("in channels must be positive, got %v", cfg.InChannels)
	}
	if cfg.InitialFeatures < 1 {
		return nil, configErrorf("initial features must be positive, got %v", cfg.InitialFeatures)
	}
	if cfg.Depth < 0 {
		return nil, configErrorf("depth must not be negative, got %v", cfg.Depth)
	}
	if cfg.Gain < 1 {
		return nil, configErrorf("gain must be at least 1, got %v", cfg.Gain)
	}

	t := &Topology{cfg: cfg}

	// The widest stage is the bottleneck. Checking it bounds every stage.
	widest, err := t.Channels(PartBottom, 0)
	if err != nil {
		return nil, err
	}
	if widest > maxStageChannels {
		return nil, configErrorf("bottleneck channels %v exceed limit %v (features=%v gain=%v depth=%v)",
			widest, int64(maxStageChannels), cfg.InitialFeatures, cfg.Gain, cfg.Depth)
	}

	return t, nil
}

// Config returns the validated configuration.
func (t *Topology) Config() Config { return t.cfg }

// OutChannels returns the configured output channel count, deriving the
// default Channels(PartUp, 0) when none was set.
func (t *Topology) OutChannels() int64 {
	if t.cfg.OutChannels > 0 {
		return t.cfg.OutChannels
	}
	c, _ := t.Channels(PartUp, 0)
	return c
}

// Channels returns the output channel count of the conv stage at the
// given part and depth index:
//
//	down/up: InitialFeatures * Gain^(depthIndex+1)
//	bottom:  InitialFeatures * Gain^(Depth+1)   (depthIndex ignored)
//
// Mirrored encoder and decoder stages share a depth index and therefore
// a channel count, which is what makes the skip concatenation
// shape-valid. Any other part is a ConfigError.
func (t *Topology) Channels(part Part, depthIndex int64) (int64, error) {
	switch part {
	case PartDown, PartUp:
		return t.cfg.InitialFeatures * intPow(t.cfg.Gain, depthIndex+1), nil
	case PartBottom:
		return t.cfg.InitialFeatures * intPow(t.cfg.Gain, t.cfg.Depth+1), nil
	default:
		return 0, configErrorf("%q is not a valid part for a channel lookup", part)
	}
}

// mustChannels is Channels for parts known valid at the call site.
func (t *Topology) mustChannels(part Part, depthIndex int64) int64 {
	c, err := t.Channels(part, depthIndex)
	if err != nil {
		panic(err)
	}
	return c
}

// MirroredDepthIndex maps a decoder stage index, counted from the
// bottleneck, to the encoder stage index it structurally mirrors. It is
// an involution: applying it twice yields the input.
func MirroredDepthIndex(i, depth int64) int64 {
	return depth - 1 - i
}

// maxDownsampleSteps returns how often every extent in shape can be
// halved (generally: divided by factor) without remainder.
func maxDownsampleSteps(shape []int64, factor int64) int64 {
	steps := int64(-1)
	for _, extent := range shape {
		var n int64
		for extent > 1 && extent%factor == 0 {
			extent /= factor
			n++
		}
		if steps < 0 || n < steps {
			steps = n
		}
	}
	if steps < 0 {
		return 0
	}
	return steps
}

func intPow(base, exp int64) int64 {
	var out int64 = 1
	for i := int64(0); i < exp; i++ {
		out *= base
	}
	return out
}
