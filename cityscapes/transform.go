package cityscapes

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// Transform maps a tensor to a transformed tensor. The input is left
// intact; the caller owns both tensors.
type Transform interface {
	Transform(x *ts.Tensor) *ts.Tensor
}

// Compose chains tensor transforms, dropping every intermediate.
type Compose struct {
	transforms []Transform
}

// NewCompose creates a Compose of the given transforms.
func NewCompose(transforms ...Transform) *Compose {
	return &Compose{transforms: transforms}
}

func (c *Compose) Transform(x *ts.Tensor) *ts.Tensor {
	out := x.MustDetach(false)
	for _, t := range c.transforms {
		next := t.Transform(out)
		out.MustDrop()
		out = next
	}
	return out
}

// NormalizeRange scales pixel values from [0, Max] to [0, 1].
type NormalizeRange struct {
	Max float64 // zero means 255
}

func (n NormalizeRange) Transform(x *ts.Tensor) *ts.Tensor {
	max := n.Max
	if max == 0 {
		max = 255.0
	}
	return x.MustDiv1(ts.FloatScalar(max), false)
}

// Normalize shifts and scales each channel to zero mean and unit
// variance using the given per-channel statistics.
type Normalize struct {
	Mean []float32
	Std  []float32
}

func (n Normalize) Transform(x *ts.Tensor) *ts.Tensor {
	c := int64(len(n.Mean))
	mean := ts.MustOfSlice(n.Mean).MustView([]int64{c, 1, 1}, true)
	sd := ts.MustOfSlice(n.Std).MustView([]int64{c, 1, 1}, true)

	out := x.MustSub(mean, false).MustDiv(sd, true)
	mean.MustDrop()
	sd.MustDrop()

	return out
}

// RandomGamma raises pixel values to a random power drawn from
// [MinGamma, MaxGamma]. Values are expected in [0, 1], so apply it
// after NormalizeRange and before Normalize.
type RandomGamma struct {
	MinGamma float64 // zero means 0.75
	MaxGamma float64 // zero means 1.25
}

func (g RandomGamma) Transform(x *ts.Tensor) *ts.Tensor {
	min, max := g.MinGamma, g.MaxGamma
	if min == 0 {
		min = 0.75
	}
	if max == 0 {
		max = 1.25
	}
	gamma := min + rand.Float64()*(max-min)

	return x.MustPow(ts.FloatScalar(gamma), false)
}

// Cast converts a tensor to the given element kind.
type Cast struct {
	Kind gotch.DType
}

func (c Cast) Transform(x *ts.Tensor) *ts.Tensor {
	return x.MustTotype(c.Kind, false)
}

// JointTransform transforms a raw image and its label map together so
// that random parameters stay in sync between the two.
type JointTransform interface {
	TransformPair(img, label image.Image) (image.Image, image.Image)
}

// JointCompose chains joint transforms.
type JointCompose struct {
	transforms []JointTransform
}

// NewJointCompose creates a JointCompose of the given transforms.
func NewJointCompose(transforms ...JointTransform) *JointCompose {
	return &JointCompose{transforms: transforms}
}

func (c *JointCompose) TransformPair(img, label image.Image) (image.Image, image.Image) {
	for _, t := range c.transforms {
		img, label = t.TransformPair(img, label)
	}
	return img, label
}

// RandomSizedCrop crops both images to a random sub-window whose side
// ratio is drawn from [MinRatio, MaxRatio]. The aspect ratio of the
// input is preserved.
type RandomSizedCrop struct {
	MinRatio float64
	MaxRatio float64
}

func (c RandomSizedCrop) TransformPair(img, label image.Image) (image.Image, image.Image) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	ratio := c.MinRatio + rand.Float64()*(c.MaxRatio-c.MinRatio)
	cw := int(float64(w) * ratio)
	ch := int(float64(h) * ratio)
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	x0 := rand.Intn(w - cw + 1)
	y0 := rand.Intn(h - ch + 1)
	rect := image.Rect(b.Min.X+x0, b.Min.Y+y0, b.Min.X+x0+cw, b.Min.Y+y0+ch)

	return imaging.Crop(img, rect), imaging.Crop(label, rect)
}

// RandomFlip mirrors both images horizontally with probability 1/2.
// Vertical flips are never applied; street scenes are upright.
type RandomFlip struct{}

func (f RandomFlip) TransformPair(img, label image.Image) (image.Image, image.Image) {
	if rand.Float64() < 0.5 {
		return imaging.FlipH(img), imaging.FlipH(label)
	}
	return img, label
}

// Scale resizes both images to Width x Height: the raw image with
// Lanczos resampling, the label map with nearest-neighbour so class ids
// survive unmixed.
type Scale struct {
	Width  int
	Height int
}

func (s Scale) TransformPair(img, label image.Image) (image.Image, image.Image) {
	scaledImg := imaging.Resize(img, s.Width, s.Height, imaging.Lanczos)
	scaledLabel := resize.Resize(uint(s.Width), uint(s.Height), label, resize.NearestNeighbor)

	return scaledImg, scaledLabel
}

// Transforms bundles the per-sample pipelines of a Dataset.
type Transforms struct {
	// Joint runs on the decoded image pair before tensor conversion.
	Joint JointTransform
	// Image runs on the image tensor ([3, H, W], values 0..255).
	Image Transform
	// Label runs on the label tensor ([H, W], int64 labelIds).
	Label Transform
}

// DefaultTransforms mirrors the standard Cityscapes training pipeline:
// random aspect-preserving crop scaled back to width x height,
// horizontal flips, then range-normalization, gamma jitter and
// statistics-normalization of the image tensor.
func DefaultTransforms(width, height int) *Transforms {
	return &Transforms{
		Joint: NewJointCompose(
			RandomSizedCrop{MinRatio: 0.6, MaxRatio: 1.0},
			Scale{Width: width, Height: height},
			RandomFlip{},
		),
		Image: NewCompose(
			NormalizeRange{},
			RandomGamma{},
			Normalize{Mean: Mean, Std: Std},
		),
	}
}
