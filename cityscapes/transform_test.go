package cityscapes

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

func grayImage(w, h int, left, right uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := left
			if x >= w/2 {
				v = right
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Scaling a label map must never invent class ids.
func TestScalePreservesLabelIds(t *testing.T) {
	label := grayImage(8, 8, 7, 11)
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	_, scaled := Scale{Width: 4, Height: 4}.TransformPair(img, label)

	l := labelToTensor(scaled)
	for _, v := range l.Int64Values() {
		if v != 7 && v != 11 {
			t.Fatalf("scaled label holds %v, want only 7 or 11", v)
		}
	}
	l.MustDrop()
}

func TestRandomSizedCropBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	label := grayImage(64, 32, 7, 7)
	crop := RandomSizedCrop{MinRatio: 0.6, MaxRatio: 1.0}

	for i := 0; i < 100; i++ {
		ci, cl := crop.TransformPair(img, label)
		w, h := ci.Bounds().Dx(), ci.Bounds().Dy()
		if w < 38 || w > 64 || h < 19 || h > 32 {
			t.Fatalf("crop %vx%v outside the 0.6..1.0 ratio window", w, h)
		}
		if cl.Bounds().Dx() != w || cl.Bounds().Dy() != h {
			t.Fatalf("label crop %vx%v does not match image crop %vx%v",
				cl.Bounds().Dx(), cl.Bounds().Dy(), w, h)
		}
	}
}

func TestRandomFlipKeepsPair(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	label := grayImage(4, 4, 7, 11)

	for i := 0; i < 50; i++ {
		fi, fl := RandomFlip{}.TransformPair(img, label)
		if fi.Bounds() != img.Bounds() || fl.Bounds().Dx() != 4 {
			t.Fatal("flip changed image bounds")
		}
	}
}

func TestImageToTensor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(1, 0, color.NRGBA{R: 0, G: 128, B: 0, A: 255})

	x := imageToTensor(img)
	got := x.Float64Values()
	// layout [3, 1, 2]: R plane, G plane, B plane
	want := []float64{255, 0, 0, 128, 0, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 0.5 {
			t.Errorf("value %v = %v, want %v", i, got[i], want[i])
		}
	}
	x.MustDrop()
}

func TestRandomGamma(t *testing.T) {
	// a fixed gamma range makes the correction deterministic
	gamma := RandomGamma{MinGamma: 2, MaxGamma: 2}

	x := ts.MustOfSlice([]float32{0.25, 0.5, 1.0}).MustView([]int64{1, 1, 3}, true)
	out := gamma.Transform(x)

	got := out.Float64Values()
	want := []float64{0.0625, 0.25, 1.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-5 {
			t.Errorf("value %v = %v, want %v", i, got[i], want[i])
		}
	}

	out.MustDrop()
	x.MustDrop()
}

func TestNormalizePipeline(t *testing.T) {
	pipeline := NewCompose(
		NormalizeRange{},
		Normalize{Mean: []float32{0.5}, Std: []float32{0.5}},
		Cast{Kind: gotch.Double},
	)

	x := ts.MustOfSlice([]float32{0, 127.5, 255}).MustView([]int64{1, 1, 3}, true)
	out := pipeline.Transform(x)

	got := out.Float64Values()
	want := []float64{-1, 0, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-5 {
			t.Errorf("value %v = %v, want %v", i, got[i], want[i])
		}
	}

	out.MustDrop()
	x.MustDrop()
}
