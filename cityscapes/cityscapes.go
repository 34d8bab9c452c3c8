// Package cityscapes loads the Cityscapes semantic segmentation
// dataset straight from its distribution archives, pairing every
// street-scene image with its fine-annotation label map.
package cityscapes

import (
	"archive/zip"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	ts "github.com/sugarme/gotch/tensor"
)

// Classes maps a labelId to its class name.
var Classes = map[int64]string{
	0:  "unlabeled",
	1:  "ego vehicle",
	2:  "rectification border",
	3:  "out of roi",
	4:  "static",
	5:  "dynamic",
	6:  "ground",
	7:  "road",
	8:  "sidewalk",
	9:  "parking",
	10: "rail track",
	11: "building",
	12: "wall",
	13: "fence",
	14: "guard rail",
	15: "bridge",
	16: "tunnel",
	17: "pole",
	18: "polegroup",
	19: "traffic light",
	20: "traffic sign",
	21: "vegetation",
	22: "terrain",
	23: "sky",
	24: "person",
	25: "rider",
	26: "car",
	27: "truck",
	28: "bus",
	29: "caravan",
	30: "trailer",
	31: "train",
	32: "motorcycle",
	33: "bicycle",
	-1: "license plate",
}

// Categories maps each labelId (0..34) to its coarse category:
// 0:void 1:flat 2:construction 3:object 4:nature 5:sky 6:human 7:vehicle
var Categories = []int64{
	0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 5, 6, 6, 7, 7, 7, 7, 7, 7, 7, 7, 7,
}

// IgnoreInEval marks labelIds excluded from evaluation.
var IgnoreInEval = []bool{
	true, true, true, true, true, true, true, false, false, true, true,
	false, false, false, true, true, true, false, true, false, false,
	false, false, false, false,
	false, false, false, false, true, true, false, false, false, true,
}

// Per-channel RGB statistics of the training images, range [0,1].
var (
	Mean = []float32{0.28689554, 0.32513303, 0.28389177}
	Std  = []float32{0.18696375, 0.19017339, 0.18720214}
)

const (
	imageArchive = "leftImg8bit_trainvaltest.zip"
	labelArchive = "gtFine_trainvaltest.zip"
)

var splitNames = map[string]string{
	"train":      "train",
	"training":   "train",
	"val":        "val",
	"validate":   "val",
	"validation": "val",
	"test":       "test",
	"testing":    "test",
}

// labelPathFor derives the gtFine labelIds entry matching an image
// entry, e.g. leftImg8bit/train/aachen/aachen_000000_000019_leftImg8bit.png
// becomes gtFine/train/aachen/aachen_000000_000019_gtFine_labelIds.png.
func labelPathFor(imagePath string) string {
	parts := strings.Split(imagePath, "/")
	parts[0] = "gtFine"
	last := len(parts) - 1
	parts[last] = strings.Replace(parts[last], "leftImg8bit", "gtFine_labelIds", 1)

	return strings.Join(parts, "/")
}

// Sample is one image/label pair as tensors: the image as float
// [3, H, W], the label map as int64 [H, W] holding labelIds.
type Sample struct {
	Image ts.Tensor
	Label ts.Tensor
}

// pair holds the archive entry paths of one sample.
type pair struct {
	image string
	label string
}

// Dataset reads paired samples from the two Cityscapes archives. It
// implements dutil.Dataset.
type Dataset struct {
	images *zip.ReadCloser
	labels *zip.ReadCloser

	imageFiles map[string]*zip.File
	labelFiles map[string]*zip.File
	pairs      []pair

	split string
	tfs   *Transforms
}

// NewDataset opens the leftImg8bit and gtFine archives under root and
// indexes the pairs of the given split ("train", "val" or "test",
// aliases like "validation" accepted). tfs may be nil for raw samples.
func NewDataset(root, split string, tfs *Transforms) (*Dataset, error) {
	canonical, ok := splitNames[split]
	if !ok {
		return nil, fmt.Errorf("unknown split %q", split)
	}

	images, err := zip.OpenReader(filepath.Join(root, imageArchive))
	if err != nil {
		return nil, err
	}
	labels, err := zip.OpenReader(filepath.Join(root, labelArchive))
	if err != nil {
		images.Close()
		return nil, err
	}

	ds := &Dataset{
		images:     images,
		labels:     labels,
		imageFiles: make(map[string]*zip.File),
		labelFiles: make(map[string]*zip.File),
		split:      canonical,
		tfs:        tfs,
	}
	for _, f := range images.File {
		ds.imageFiles[f.Name] = f
	}
	for _, f := range labels.File {
		ds.labelFiles[f.Name] = f
	}

	// the second path element names the split the entry belongs to
	for _, f := range images.File {
		parts := strings.Split(f.Name, "/")
		if len(parts) < 2 || parts[1] != canonical || !strings.HasSuffix(f.Name, ".png") {
			continue
		}
		lp := labelPathFor(f.Name)
		if _, ok := ds.labelFiles[lp]; !ok {
			ds.Close()
			return nil, fmt.Errorf("no label entry %v for image %v", lp, f.Name)
		}
		ds.pairs = append(ds.pairs, pair{image: f.Name, label: lp})
	}
	if len(ds.pairs) == 0 {
		ds.Close()
		return nil, fmt.Errorf("no images found for split %q", canonical)
	}

	return ds, nil
}

// Close releases the archive handles.
func (ds *Dataset) Close() error {
	err := ds.images.Close()
	if err1 := ds.labels.Close(); err == nil {
		err = err1
	}
	return err
}

// Len implements dutil.Dataset.
func (ds *Dataset) Len() int { return len(ds.pairs) }

// DType implements dutil.Dataset.
func (ds *Dataset) DType() reflect.Type { return reflect.TypeOf(Sample{}) }

// Item implements dutil.Dataset. It decodes the pair at idx, applies
// the transforms and returns a Sample.
func (ds *Dataset) Item(idx int) (interface{}, error) {
	if idx < 0 || idx >= len(ds.pairs) {
		return nil, fmt.Errorf("index %v out of range [0, %v)", idx, len(ds.pairs))
	}
	p := ds.pairs[idx]

	img, err := decodeEntry(ds.imageFiles[p.image])
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", p.image, err)
	}
	label, err := decodeEntry(ds.labelFiles[p.label])
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", p.label, err)
	}

	if ds.tfs != nil && ds.tfs.Joint != nil {
		img, label = ds.tfs.Joint.TransformPair(img, label)
	}

	x := imageToTensor(img)
	if ds.tfs != nil && ds.tfs.Image != nil {
		out := ds.tfs.Image.Transform(x)
		x.MustDrop()
		x = out
	}

	l := labelToTensor(label)
	if ds.tfs != nil && ds.tfs.Label != nil {
		out := ds.tfs.Label.Transform(l)
		l.MustDrop()
		l = out
	}

	return Sample{Image: *x, Label: *l}, nil
}

// Collate stacks samples into batch tensors [B, 3, H, W] and [B, H, W].
func Collate(samples []Sample) (*ts.Tensor, *ts.Tensor) {
	var images, labels []ts.Tensor
	for _, s := range samples {
		images = append(images, s.Image)
		labels = append(labels, s.Label)
	}

	return ts.MustStack(images, 0), ts.MustStack(labels, 0)
}
