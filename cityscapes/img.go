package cityscapes

import (
	"archive/zip"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/tiff"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
)

// decodeEntry decodes a png image straight from an archive entry.
func decodeEntry(f *zip.File) (image.Image, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return png.Decode(r)
}

// ReadImage reads an image from file.
func ReadImage(filename string) (image.Image, error) {
	ext := filepath.Ext(filename)
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".png", ".PNG":
		return png.Decode(f)
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return jpeg.Decode(f)
	case ".tiff", ".tif", ".TIFF", ".TIF":
		return tiff.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported image format: %v", ext)
	}
}

// imageToTensor converts an image to a float tensor [3, H, W] with
// values in [0, 255].
func imageToTensor(img image.Image) *ts.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*h*w)
	plane := h * w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r >> 8)
			data[plane+i] = float32(g >> 8)
			data[2*plane+i] = float32(bl >> 8)
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{3, int64(h), int64(w)}, true)
}

// labelToTensor converts a labelId image to an int64 tensor [H, W].
// LabelIds are stored as 8-bit intensities.
func labelToTensor(img image.Image) *ts.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]int64, h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			data[y*w+x] = int64(r >> 8)
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{int64(h), int64(w)}, true)
}

// Overlay blends the label map over the image at 25% opacity and writes
// the result as png, for visual inspection of a sample.
func Overlay(img, label image.Image, outPath string) error {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	mask := image.NewUniform(color.Alpha{64})
	draw.DrawMask(dst, b, label, label.Bounds().Min, mask, image.Point{}, draw.Over)

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return png.Encode(out, dst)
}
