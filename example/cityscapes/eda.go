package main

import (
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cityseg/useg/cityscapes"
)

// runEDA tabulates per-class pixel frequencies over a handful of raw
// samples and renders them as a bar chart.
func runEDA() {
	ds, err := cityscapes.NewDataset(dataPath, split, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer ds.Close()

	n := ds.Len()
	if n > 20 {
		n = 20
	}

	counts := make(map[int64]int64)
	for i := 0; i < n; i++ {
		item, err := ds.Item(i)
		if err != nil {
			log.Fatal(err)
		}
		sample := item.(cityscapes.Sample)
		for _, v := range sample.Label.Int64Values() {
			counts[v]++
		}
		sample.Image.MustDrop()
		sample.Label.MustDrop()
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := [][]string{{"id", "class", "pixels"}}
	for _, id := range ids {
		name := cityscapes.Classes[id]
		if name == "" {
			name = "unknown"
		}
		records = append(records, []string{
			strconv.FormatInt(id, 10),
			name,
			strconv.FormatInt(counts[id], 10),
		})
	}

	df := dataframe.LoadRecords(records)
	fmt.Println(df)

	p, err := plot.New()
	if err != nil {
		log.Fatal(err)
	}
	p.Title.Text = "Class Pixel Frequency"
	p.Y.Label.Text = "pixels"

	v := make(plotter.Values, len(ids))
	names := make([]string, len(ids))
	for i, id := range ids {
		v[i] = float64(counts[id])
		names[i] = strconv.FormatInt(id, 10)
	}

	bars, err := plotter.NewBarChart(v, vg.Points(10))
	if err != nil {
		log.Fatal(err)
	}
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, "class-freq.png"); err != nil {
		log.Fatal(err)
	}
}
