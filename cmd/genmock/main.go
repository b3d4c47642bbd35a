// Command genmock writes a synthetic station catalog, climatology, county
// directory and size model in the layout the file source reads. It prints
// the figures tests assert on.
//
// Usage:
//
//	go run ./cmd/genmock -out data \
//	  -min-lat 37 -max-lat 41 -min-lon -109 -max-lon -102 -step 0.5 -seed 1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/couchcryptid/firewhere/internal/adapter/model"
	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/couchcryptid/firewhere/internal/mockdata"
)

// sampleDays are the days used to summarize model output.
var sampleDays = []int{15, 105, 196, 288}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	def := mockdata.DefaultOptions()
	out := flag.String("out", "", "output directory for the generated dataset")
	minLat := flag.Float64("min-lat", def.MinLat, "southern edge of the station grid")
	maxLat := flag.Float64("max-lat", def.MaxLat, "northern edge of the station grid")
	minLon := flag.Float64("min-lon", def.MinLon, "western edge of the station grid")
	maxLon := flag.Float64("max-lon", def.MaxLon, "eastern edge of the station grid")
	step := flag.Float64("step", def.Step, "grid spacing in degrees")
	seed := flag.Uint64("seed", def.Seed, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *step <= 0 || *minLat > *maxLat || *minLon > *maxLon {
		return fmt.Errorf("invalid grid: lat %.2f..%.2f lon %.2f..%.2f step %.2f", *minLat, *maxLat, *minLon, *maxLon, *step)
	}

	ds := mockdata.Generate(mockdata.Options{
		MinLat: *minLat, MaxLat: *maxLat,
		MinLon: *minLon, MaxLon: *maxLon,
		Step: *step, Seed: *seed,
	})
	if err := mockdata.Write(*out, ds); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	log.Printf("wrote dataset: %s", *out)

	return printStats(ds)
}

func printStats(ds mockdata.Dataset) error {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Stations: %d\n", len(ds.Stations))
	fmt.Printf("Climatology rows: %d\n", len(ds.Climatology))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range ds.Climatology {
		lo = math.Min(lo, e.MeanTemp)
		hi = math.Max(hi, e.MeanTemp)
	}
	fmt.Printf("Mean temperature range: %.1f..%.1f\n", lo, hi)

	printCounties(ds)
	return printClassMix(ds)
}

func printCounties(ds mockdata.Dataset) {
	states := make([]string, 0, len(ds.Counties))
	for s := range ds.Counties {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		names := make([]string, 0, len(ds.Counties[s]))
		for c := range ds.Counties[s] {
			names = append(names, c)
		}
		sort.Strings(names)
		fmt.Printf("%s (%d): %v\n", s, len(names), names)
	}
}

// printClassMix runs the generated model over every station, sample day and
// cause and reports how often each size class comes out.
func printClassMix(ds mockdata.Dataset) error {
	network, err := model.NewNetwork(ds.Model)
	if err != nil {
		return fmt.Errorf("generated model: %w", err)
	}
	catalog, err := domain.NewCatalog(ds.Stations, ds.Climatology)
	if err != nil {
		return fmt.Errorf("generated catalog: %w", err)
	}

	counts := map[domain.SizeClass]int{}
	ctx := context.Background()
	for _, s := range catalog.Stations() {
		for _, day := range sampleDays {
			clim, err := catalog.Climatology(s.ID, day)
			if err != nil {
				return err
			}
			q := domain.Query{Lat: s.Lat, Lon: s.Lon, DayOfYear: day}
			for _, cause := range domain.Causes {
				p, err := network.Predict(ctx, domain.NewFeatureVector(q, cause, clim))
				if err != nil {
					return err
				}
				counts[p.Class]++
			}
		}
	}

	fmt.Printf("Size classes: small=%d, medium=%d, large=%d\n",
		counts[domain.SizeSmall], counts[domain.SizeMedium], counts[domain.SizeLarge])
	return nil
}
