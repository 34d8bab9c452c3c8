package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"

	"github.com/cityseg/useg/cityscapes"
	"github.com/cityseg/useg/dutil"
	"github.com/cityseg/useg/unet"
)

var (
	dataPath  string
	split     string
	task      string
	imagePath string
	labelPath string
)

func init() {
	flag.StringVar(&dataPath, "data", "./data", "folder holding the Cityscapes archives")
	flag.StringVar(&split, "split", "train", "dataset split to load")
	flag.StringVar(&task, "task", "check", "task to run: check | eda | forward | overlay")
	flag.StringVar(&imagePath, "image", "", "image file for the overlay task")
	flag.StringVar(&labelPath, "label", "", "label file for the overlay task")
}

func main() {
	flag.Parse()

	switch task {
	case "check":
		runCheckDataLoader()
	case "eda":
		runEDA()
	case "forward":
		runForward()
	case "overlay":
		runOverlay()
	default:
		log.Fatalf("Unsupported task: %v\n", task)
	}
}

// runOverlay blends an extracted label map over its image for a quick
// visual check of the pairing.
func runOverlay() {
	img, err := cityscapes.ReadImage(imagePath)
	if err != nil {
		log.Fatal(err)
	}
	label, err := cityscapes.ReadImage(labelPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cityscapes.Overlay(img, label, "overlay.png"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("saved overlay.png")
}

func runCheckDataLoader() {
	ds, err := cityscapes.NewDataset(dataPath, split, cityscapes.DefaultTransforms(512, 256))
	if err != nil {
		log.Fatal(err)
	}
	defer ds.Close()

	batchSize := 4
	s, err := dutil.NewBatchSampler(ds.Len(), batchSize, true, true)
	if err != nil {
		log.Fatal(err)
	}
	dl, err := dutil.NewDataLoader(ds, s)
	if err != nil {
		log.Fatal(err)
	}

	count := 0
	for dl.HasNext() {
		item, err := dl.Next()
		if err != nil {
			log.Fatal(err)
		}
		batch := item.([]cityscapes.Sample)
		images, labels := cityscapes.Collate(batch)
		count++
		fmt.Printf("Loaded %v: %v samples, image shape: %v, label shape: %v\n",
			count, len(batch), images.MustSize(), labels.MustSize())

		for _, sp := range batch {
			sp.Image.MustDrop()
			sp.Label.MustDrop()
		}
		images.MustDrop()
		labels.MustDrop()
	}
}

func runForward() {
	device := gotch.CPU
	vs := nn.NewVarStore(device)

	cfg := unet.DefaultConfig(2, 3, 16)
	cfg.OutChannels = int64(len(cityscapes.Categories))
	net, err := unet.NewUNet(vs.Root(), cfg)
	if err != nil {
		log.Fatal(err)
	}

	ds, err := cityscapes.NewDataset(dataPath, split, cityscapes.DefaultTransforms(256, 128))
	if err != nil {
		log.Fatal(err)
	}
	defer ds.Close()

	item, err := ds.Item(0)
	if err != nil {
		log.Fatal(err)
	}
	sample := item.(cityscapes.Sample)

	input := sample.Image.MustUnsqueeze(0, false)
	outs, err := net.Forward(input, false)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("logits shape: %v\n", outs[0].MustSize())

	for _, o := range outs {
		o.MustDrop()
	}
	input.MustDrop()
	sample.Image.MustDrop()
	sample.Label.MustDrop()
}
