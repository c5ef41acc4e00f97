package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lzm-bryan/indoortrace/trace"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile     = flag.String("config", "config.yaml", "Path to configuration file")
	cacheDir       = flag.String("cache-dir", "", "Download cache directory (overrides config)")
	outDir         = flag.String("out-dir", "", "Output directory (overrides config)")
	localDataDir   = flag.String("local-data-dir", "", "Read floor data from this directory instead of fetching")
	siteFilter     = flag.String("site", "", "Process only this site")
	floorFilter    = flag.String("floor", "", "Process only this floor (requires --site)")
	affineOverride = flag.String("affine", "", "Override resolved transform: a,b,c,d,e,f")
	flipX          = flag.Bool("xflip", false, "Mirror pixel X after the affine")
	flipY          = flag.Bool("yflip", false, "Mirror pixel Y after the affine")
	forceIso       = flag.Bool("force-iso", false, "Force isotropic scale (SVD correction of the affine)")
	nameFilter     = flag.String("name-filter", "", "Only process trajectory files containing this substring")
	maxFiles       = flag.Int("max-files", 0, "Process at most N trajectory files per floor (0 = all)")
	renderFormat   = flag.String("format", "html", "Output format: html, png, svg, or all")
	writeCSV       = flag.Bool("csv", true, "Also write heat/tracks/stats CSV files per floor")
)

func main() {
	flag.Parse()
	fmt.Printf("indoortrace version: %s\n", Version)

	config, err := trace.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlagOverrides(config)

	switch *renderFormat {
	case "html", "png", "svg", "all":
	default:
		log.Fatalf("Invalid format: %s (must be html, png, svg, or all)", *renderFormat)
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	opts := config.Options()
	fetcher := trace.NewFetcher(config.CacheRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processed, failed := 0, 0
	for _, site := range config.Sites {
		if *siteFilter != "" && site.Name != *siteFilter {
			continue
		}
		for _, floor := range site.Floors {
			if *floorFilter != "" && floor != *floorFilter {
				continue
			}
			if ctx.Err() != nil {
				log.Printf("interrupted, stopping after %d floors", processed)
				return
			}
			if err := processFloor(ctx, fetcher, config, opts, site.Name, floor); err != nil {
				// One broken floor never aborts the batch.
				log.Printf("floor %s/%s failed: %v", site.Name, floor, err)
				failed++
				continue
			}
			processed++
		}
	}

	fmt.Printf("Done: %d floors rendered, %d failed\n", processed, failed)
	if processed == 0 && failed > 0 {
		os.Exit(1)
	}
}

func applyFlagOverrides(config *trace.Config) {
	if *cacheDir != "" {
		config.CacheRoot = *cacheDir
	}
	if *outDir != "" {
		config.OutputDir = *outDir
	}
	if *localDataDir != "" {
		config.LocalData = *localDataDir
	}
	if *affineOverride != "" {
		if _, ok := trace.ParseAffineString(*affineOverride); !ok {
			log.Fatalf("Invalid --affine value: %s (want a,b,c,d,e,f)", *affineOverride)
		}
	}
	if *nameFilter != "" {
		config.Pipeline.NameFilter = *nameFilter
	}
	if *maxFiles > 0 {
		config.Pipeline.MaxFilesPerFloor = *maxFiles
	}
	if *flipX {
		config.Pipeline.FlipX = true
	}
	if *flipY {
		config.Pipeline.FlipY = true
	}
	if *forceIso {
		config.Pipeline.ForceIsotropic = true
	}
}

func processFloor(ctx context.Context, fetcher *trace.Fetcher, config *trace.Config, opts trace.Options, site, floor string) error {
	key := fmt.Sprintf("%s/%s", site, floor)
	fmt.Printf("=== %s ===\n", key)

	opts.AffineOverride = *affineOverride

	assets, err := fetcher.LoadFloorAssets(ctx, config, site, floor, opts)
	if err != nil {
		return err
	}
	fmt.Printf("  trajectory files: %d\n", len(assets.Files))

	result, err := trace.ProcessFloor(assets, opts)
	if err != nil {
		if result == nil {
			return err
		}
		// Base map and tracks are still worth writing without heat.
		log.Printf("  %s: %v", key, err)
	}

	outBase := filepath.Join(config.OutputDir, site+"_"+floor)

	if *renderFormat == "html" || *renderFormat == "all" {
		if err := writeHTML(result, outBase, key); err != nil {
			return err
		}
	}
	if *renderFormat == "png" || *renderFormat == "all" {
		renderer := trace.NewFloorRenderer(result)
		renderer.PointSampleEvery = opts.PointSampleEvery
		if err := renderer.SavePNG(outBase + ".png"); err != nil {
			return fmt.Errorf("writing PNG: %w", err)
		}
		fmt.Printf("  wrote %s.png\n", outBase)
	}
	if *renderFormat == "svg" || *renderFormat == "all" {
		if err := writeSVG(result, outBase); err != nil {
			return err
		}
	}
	if *writeCSV {
		if err := writeCSVFiles(result, outBase); err != nil {
			return err
		}
	}

	fmt.Printf("  tracks: %d, heat points: %d\n", len(result.Tracks), len(result.Heat))
	return nil
}

func writeHTML(result *trace.FloorResult, outBase, title string) error {
	f, err := os.Create(outBase + ".html")
	if err != nil {
		return fmt.Errorf("creating HTML file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := trace.WriteFloorHTML(f, result, trace.HTMLOptions{Title: title}); err != nil {
		return err
	}
	fmt.Printf("  wrote %s.html\n", outBase)
	return nil
}

func writeSVG(result *trace.FloorResult, outBase string) error {
	f, err := os.Create(outBase + ".svg")
	if err != nil {
		return fmt.Errorf("creating SVG file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := trace.NewVectorRenderer(result).RenderToSVG(f); err != nil {
		return fmt.Errorf("rendering SVG: %w", err)
	}
	fmt.Printf("  wrote %s.svg\n", outBase)
	return nil
}

func writeCSVFiles(result *trace.FloorResult, outBase string) error {
	write := func(suffix string, fn func(f *os.File) error) error {
		f, err := os.Create(outBase + suffix)
		if err != nil {
			return fmt.Errorf("creating %s: %w", suffix, err)
		}
		defer func() { _ = f.Close() }()
		return fn(f)
	}

	if err := write("_heat.csv", func(f *os.File) error {
		return trace.WriteHeatCSV(f, result.Heat)
	}); err != nil {
		return err
	}
	if err := write("_tracks.csv", func(f *os.File) error {
		return trace.WriteTracksCSV(f, result.Tracks, result.TrackNames)
	}); err != nil {
		return err
	}
	return write("_stats.csv", func(f *os.File) error {
		return trace.WriteStatsCSV(f, result.Stats)
	})
}
