package unet_test

import (
	"errors"
	"testing"

	"github.com/cityseg/useg/unet"
)

func TestChannels(t *testing.T) {
	cfg := unet.DefaultConfig(2, 3, 8) // depth 3, gain 2
	topo, err := unet.NewTopology(cfg)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		part  unet.Part
		index int64
		want  int64
	}{
		{unet.PartDown, 0, 16},
		{unet.PartDown, 1, 32},
		{unet.PartDown, 2, 64},
		{unet.PartUp, 0, 16},
		{unet.PartUp, 1, 32},
		{unet.PartUp, 2, 64},
		{unet.PartBottom, 0, 128},
	}

	for _, tc := range tests {
		got, err := topo.Channels(tc.part, tc.index)
		if err != nil {
			t.Fatalf("Channels(%v, %v): %v", tc.part, tc.index, err)
		}
		if got != tc.want {
			t.Errorf("Channels(%v, %v) = %v, want %v", tc.part, tc.index, got, tc.want)
		}
	}
}

// The bottleneck width must not depend on the index argument.
func TestChannelsBottomIgnoresIndex(t *testing.T) {
	for _, depth := range []int64{0, 1, 3, 5} {
		cfg := unet.DefaultConfig(2, 3, 4)
		cfg.Depth = depth
		topo, err := unet.NewTopology(cfg)
		if err != nil {
			t.Fatal(err)
		}

		want := int64(4)
		for i := int64(0); i < depth+1; i++ {
			want *= cfg.Gain
		}

		for _, index := range []int64{-7, 0, 2, 99} {
			got, err := topo.Channels(unet.PartBottom, index)
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("depth %v: Channels(bottom, %v) = %v, want %v", depth, index, got, want)
			}
		}
	}
}

// Mirrored encoder and decoder stages must agree on channel counts,
// otherwise the skip concatenation cannot be shape-valid.
func TestChannelsSymmetry(t *testing.T) {
	for _, gain := range []int64{1, 2, 3} {
		for _, depth := range []int64{1, 2, 4} {
			cfg := unet.DefaultConfig(2, 3, 8)
			cfg.Gain = gain
			cfg.Depth = depth
			topo, err := unet.NewTopology(cfg)
			if err != nil {
				t.Fatal(err)
			}

			for i := int64(0); i < depth; i++ {
				down, _ := topo.Channels(unet.PartDown, i)
				up, _ := topo.Channels(unet.PartUp, i)
				if down != up {
					t.Errorf("gain %v depth %v index %v: down %v != up %v", gain, depth, i, down, up)
				}
			}

			// The deepest encoder stage feeds the bottleneck, whose
			// width is one more gain step.
			last, _ := topo.Channels(unet.PartDown, depth-1)
			bottom, _ := topo.Channels(unet.PartBottom, 0)
			if last*gain != bottom {
				t.Errorf("gain %v depth %v: bottleneck %v is not %v*%v", gain, depth, bottom, last, gain)
			}
		}
	}
}

func TestChannelsInvalidPart(t *testing.T) {
	topo, err := unet.NewTopology(unet.DefaultConfig(2, 3, 8))
	if err != nil {
		t.Fatal(err)
	}

	for _, part := range []unet.Part{"middle", "start", "end", ""} {
		_, err := topo.Channels(part, 0)
		var cfgErr *unet.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("Channels(%q, 0): got %v, want ConfigError", part, err)
		}
	}
}

func TestNewTopologyValidation(t *testing.T) {
	bad := []func(*unet.Config){
		func(c *unet.Config) { c.Dim = 0 },
		func(c *unet.Config) { c.Dim = 4 },
		func(c *unet.Config) { c.InChannels = 0 },
		func(c *unet.Config) { c.InitialFeatures = 0 },
		func(c *unet.Config) { c.Depth = -1 },
		func(c *unet.Config) { c.Gain = 0 },
		// 8 * 2^41 channels at the bottleneck
		func(c *unet.Config) { c.Depth = 40 },
	}

	for i, mutate := range bad {
		cfg := unet.DefaultConfig(2, 3, 8)
		mutate(&cfg)
		_, err := unet.NewTopology(cfg)
		var cfgErr *unet.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("case %v: got %v, want ConfigError", i, err)
		}
	}
}

func TestMirroredDepthIndexInvolution(t *testing.T) {
	for depth := int64(1); depth <= 6; depth++ {
		for i := int64(0); i < depth; i++ {
			m := unet.MirroredDepthIndex(i, depth)
			if m < 0 || m >= depth {
				t.Fatalf("MirroredDepthIndex(%v, %v) = %v out of range", i, depth, m)
			}
			if got := unet.MirroredDepthIndex(m, depth); got != i {
				t.Errorf("MirroredDepthIndex not an involution at (%v, %v): got %v", i, depth, got)
			}
		}
	}
}
