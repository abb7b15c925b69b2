package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"petgeom/internal/logger"
	"petgeom/internal/models"
	"petgeom/pkg/config"
	"petgeom/pkg/histogram"
	"petgeom/pkg/listmode"
	"petgeom/pkg/projdata"
	"petgeom/pkg/scanner"
	"petgeom/pkg/visualization"
	"petgeom/pkg/volume"
)

const usage = `usage: petgeom [-config file] <command> [args]

commands:
  info                                 print scanner and projection parameters
  lor -seg S -ax A -view V -tang T     print the detection points of a bin [-plot file]
  bin x1 y1 z1 x2 y2 z2                print the bin of the LOR through two points
  tables [-inverse]                    dump the detector lookup table
  histogram -events f.csv [-out dir]   bin list-mode events into sinograms [-plots]
  add-images out in1 in2 [in3...]      add volumes voxel by voxel
  init-config path                     write the default configuration
`

func main() {
	logger.Setup()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("petgeom", flag.ContinueOnError)
	configPath := global.String("config", "petgeom.yaml", "YAML configuration file")
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() < 1 {
		global.Usage()
		return errors.New("no command given")
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "init-config" {
		return initConfig(rest, stdout)
	}
	if cmd == "add-images" {
		return addImages(rest, stdout)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	switch cmd {
	case "info":
		return info(cfg, stdout)
	case "lor":
		return lor(cfg, rest, stdout)
	case "bin":
		return bin(cfg, rest, stdout)
	case "tables":
		return tables(cfg, rest, stdout)
	case "histogram":
		return histogramCmd(cfg, rest, stdout)
	}
	global.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func initConfig(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: init-config path")
	}
	if err := config.CreateDefaultConfigFile(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Default configuration written to %s\n", args[0])
	return nil
}

func info(cfg *config.Config, stdout io.Writer) error {
	proj, err := cfg.BuildProjection()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, proj.Scanner())
	fmt.Fprintf(stdout, "Known scanners: %v\n\n", scanner.KnownNames())
	fmt.Fprint(stdout, proj.ParameterInfo())
	return nil
}

func lor(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("lor", flag.ContinueOnError)
	seg := fs.Int("seg", 0, "segment")
	ax := fs.Int("ax", 0, "axial position")
	view := fs.Int("view", 0, "view")
	tang := fs.Int("tang", 0, "tangential position")
	plotFile := fs.String("plot", "", "save a ring plot of the LOR")
	if err := fs.Parse(args); err != nil {
		return err
	}

	proj, err := cfg.BuildProjection()
	if err != nil {
		return err
	}
	b := models.NewBin(*seg, *ax, *view, *tang)
	pair, err := proj.DetectorPairForBin(b)
	if err != nil {
		return err
	}
	c1, c2, err := proj.DetectionPointsForBin(b)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, b)
	fmt.Fprintln(stdout, pair)
	fmt.Fprintf(stdout, "point 1: (%.4f, %.4f, %.4f)\n", c1.X, c1.Y, c1.Z)
	fmt.Fprintf(stdout, "point 2: (%.4f, %.4f, %.4f)\n", c2.X, c2.Y, c2.Z)
	fmt.Fprintf(stdout, "phi: %.6f rad, s: %.4f mm\n", proj.Phi(b), proj.S(b))

	if *plotFile != "" {
		if err := visualization.PlotRing(proj.Geometry(), pair, *plotFile); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Ring plot saved to: %s\n", *plotFile)
	}
	return nil
}

func bin(cfg *config.Config, args []string, stdout io.Writer) error {
	if len(args) != 6 {
		return errors.New("usage: bin x1 y1 z1 x2 y2 z2")
	}
	var v [6]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		v[i] = f
	}

	proj, err := cfg.BuildProjection()
	if err != nil {
		return err
	}
	p1 := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	p2 := r3.Vec{X: v[3], Y: v[4], Z: v[5]}

	b, err := proj.FindBinForDetectionPoints(p1, p2)
	fmt.Fprintln(stdout, b)
	if err != nil {
		fmt.Fprintf(stdout, "invalid: %v\n", err)
	}
	return nil
}

func tables(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tables", flag.ContinueOnError)
	inverse := fs.Bool("inverse", false, "dump the (det1, det2) table instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	proj, err := cfg.BuildProjection()
	if err != nil {
		return err
	}
	return dumpTables(proj.Tables(), *inverse, stdout)
}

func dumpTables(t *projdata.IndexTables, inverse bool, stdout io.Writer) error {
	n := t.NumViews() * 2
	if !inverse {
		fmt.Fprintln(stdout, "view\ttang\tdet1\tdet2")
		for view := 0; view < t.NumViews(); view++ {
			for tang := t.MinTangentialPos(); tang <= t.MaxTangentialPos(); tang++ {
				e, err := t.Forward(view, tang)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%d\t%d\t%d\t%d\n", view, tang, e.Det1, e.Det2)
			}
		}
		return nil
	}

	fmt.Fprintln(stdout, "det1\tdet2\tview\ttang\tswap")
	for det1 := 0; det1 < n; det1++ {
		for det2 := 0; det2 < n; det2++ {
			if det1 == det2 {
				continue
			}
			e, err := t.Inverse(det1, det2)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%d\t%d\t%d\t%d\t%t\n", det1, det2, e.View, e.TangentialPos, e.SwapDetectors)
		}
	}
	return nil
}

func histogramCmd(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("histogram", flag.ContinueOnError)
	events := fs.String("events", "", "coincidence CSV file")
	outDir := fs.String("out", cfg.Output.Dir, "output directory")
	plots := fs.Bool("plots", cfg.Output.Plots, "also save heat maps")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *events == "" {
		return errors.New("histogram needs -events")
	}

	proj, err := cfg.BuildProjection()
	if err != nil {
		return err
	}
	stream, err := listmode.OpenCSV(*events)
	if err != nil {
		return err
	}

	h, err := histogram.NewHistogrammer(proj, &histogram.Params{
		NumCores: cfg.Processing.NumCores,
		Verbose:  cfg.Output.Verbose,
		Layout:   cfg.ListMode.Layout,
		Filter:   cfg.ListMode.Filter,
	})
	if err != nil {
		return err
	}

	startTime := time.Now()
	sinos, err := h.Process(stream)
	if err != nil {
		return err
	}
	processingTime := time.Since(startTime)

	viewer := visualization.NewViewer(sinos)
	for _, seg := range sinos.Segments() {
		segDir := filepath.Join(*outDir, fmt.Sprintf("segment_%+03d", seg))
		if err := viewer.SaveSinogramSequence(seg, segDir); err != nil {
			return err
		}
		if !*plots {
			continue
		}
		for ax := proj.MinAxialPos(seg); ax <= proj.MaxAxialPos(seg); ax++ {
			m, err := sinos.Sinogram(seg, ax)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("segment %d, axial position %d", seg, ax)
			file := filepath.Join(segDir, visualization.SinogramFileName(seg, ax, "svg"))
			if err := visualization.PlotSinogram(m, proj.MinTangentialPos(), title, file); err != nil {
				return err
			}
		}
	}

	stats := h.Stats()
	fmt.Fprintf(stdout, "Histogramming completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Fprintf(stdout, "Events: %d total, %d accepted\n", stats.Total, stats.Accepted)
	for _, reason := range stats.Reasons() {
		fmt.Fprintf(stdout, "- rejected (%s): %d\n", reason, stats.Rejected[reason])
	}
	fmt.Fprintf(stdout, "Counts: %.0f in %d bins\n", stats.Counts, stats.NonZeroBins)
	fmt.Fprintf(stdout, "Bin mean %.4f, std dev %.4f, entropy %.4f\n", stats.Mean, stats.StdDev, stats.Entropy)
	fmt.Fprintf(stdout, "Sinograms saved to: %s\n", *outDir)
	return nil
}

func addImages(args []string, stdout io.Writer) error {
	if len(args) < 3 {
		return errors.New("usage: add-images out_image image1 image2 [image3...]")
	}
	total, err := volume.Sum(args[1:]...)
	if err != nil {
		return err
	}
	if err := volume.Write(args[0], total); err != nil {
		return err
	}
	lo, hi, sum := volume.Stats(total)
	fmt.Fprintf(stdout, "Wrote %s (%dx%dx%d), min %g, max %g, sum %g\n",
		args[0], total.Width, total.Height, total.Depth, lo, hi, sum)
	return nil
}
