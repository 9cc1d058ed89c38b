package main

// inspect walks every row of a dataset, reports how many examples are usable,
// and writes diagnostic plots of the labels.
//
// Usage:
//
//	go run ./cmd/inspect -config inspect.yaml
//	go run ./cmd/inspect -root /data/friction -loader mask -mapped
//
// Flags given explicitly on the command line override the config file.

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/frictionVision/config"
	"github.com/Noofbiz/frictionVision/datasets"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// frictionBins is the number of histogram bins over [0, 1].
const frictionBins = 20

// report accumulates the results of walking a dataset.
type report struct {
	rows, kept, skipped, failed int

	// spectral: running sum of reflectance per channel.
	reflectanceSum []float64

	// mask: per-bin pixel counts (friction) or per-code counts (unmapped).
	bins    []float64
	unknown int

	// preview is the image of the first kept example, values in [0, 1].
	preview    datasets.ImageRGB
	hasPreview bool
}

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "", "path to a YAML (or JSON) config file")
	root := flag.String("root", ".", "root directory of the data")
	csvPath := flag.String("csv", "", "row table CSV; if empty, searched under root")
	loader := flag.String("loader", config.LoaderSpectral, "dataset to inspect: 'mask' or 'spectral'")
	mapped := flag.Bool("mapped", false, "map mask category codes to friction coefficients")
	outDir := flag.String("out", "plots", "output directory for generated plots")
	limit := flag.Int("limit", 0, "inspect at most this many rows (0 = all)")
	stopOnError := flag.Bool("stop-on-error", false, "abort on the first unreadable example instead of counting it")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (file+CLI merged) configuration and exit")
	flag.Parse()
	defer klog.Flush()

	cfg := config.Default()
	if *configPath != "" {
		cfg = must.M1(config.Load(*configPath))
	}

	// Only flags set explicitly override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *root
		case "csv":
			cfg.CSV = *csvPath
		case "loader":
			cfg.Loader = *loader
		case "mapped":
			cfg.Mask.Mapped = *mapped
		case "out":
			cfg.OutDir = *outDir
		}
	})
	if err := cfg.Validate(); err != nil {
		klog.Fatalf("invalid configuration: %v", err)
	}
	if *printEffectiveConfig {
		fmt.Print(string(must.M1(cfg.YAML())))
		return
	}

	ds, err := cfg.Open()
	if err != nil {
		klog.Fatalf("failed to open %s dataset: %v", cfg.Loader, err)
	}
	n := ds.Len()
	if *limit > 0 && *limit < n {
		n = *limit
	}

	bar := progressbar.NewOptions(n,
		progressbar.OptionSetDescription(fmt.Sprintf("Inspecting %s", ds.Name())),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)

	rep := &report{rows: n}
	for i := range n {
		var err error
		switch d := ds.(type) {
		case *datasets.SpectralDataset:
			err = rep.addSpectral(d, i)
		case *datasets.MaskDataset:
			err = rep.addMask(d, i)
		}
		if err != nil {
			if *stopOnError {
				klog.Fatalf("example %d: %v", i, err)
			}
			klog.Warningf("example %d: %v", i, err)
			rep.failed++
		}
		if err := bar.Add(1); err != nil {
			klog.V(1).Infof("progress bar: %v", err)
		}
	}
	if err := bar.Finish(); err != nil {
		klog.V(1).Infof("progress bar: %v", err)
	}
	fmt.Println()

	fmt.Printf("Rows inspected: %s\n", humanize.Comma(int64(rep.rows)))
	fmt.Printf("  kept:    %s\n", humanize.Comma(int64(rep.kept)))
	fmt.Printf("  skipped: %s\n", humanize.Comma(int64(rep.skipped)))
	fmt.Printf("  failed:  %s\n", humanize.Comma(int64(rep.failed)))

	must.M(ensureDir(cfg.OutDir))
	switch d := ds.(type) {
	case *datasets.SpectralDataset:
		must.M(plotCalibration(cfg.OutDir, d.Calibration))
		if rep.kept > 0 {
			mean := make([]float64, len(rep.reflectanceSum))
			for c, s := range rep.reflectanceSum {
				mean[c] = s / float64(rep.kept)
			}
			must.M(plotReflectance(cfg.OutDir, d.Calibration.MinChannel, mean))
		}
	case *datasets.MaskDataset:
		if rep.unknown > 0 {
			fmt.Printf("  pixels with unknown category: %s\n", humanize.Comma(int64(rep.unknown)))
		}
		must.M(plotLabels(cfg.OutDir, d.Options.Mapped, rep.bins))
	}
	if rep.hasPreview {
		must.M(imaging.Save(datasets.FromRGB(rep.preview), filepath.Join(cfg.OutDir, "preview.png")))
	}
	fmt.Printf("Plots written to %s\n", cfg.OutDir)
}

func (r *report) addSpectral(d *datasets.SpectralDataset, idx int) error {
	res, err := d.Example(idx)
	if err != nil {
		return err
	}
	s, ok := res.Sample()
	if !ok {
		r.skipped++
		return nil
	}
	r.kept++
	if !r.hasPreview {
		r.preview, r.hasPreview = denormalize(s.Image, d.Options.Mean, d.Options.Std), true
	}
	if r.reflectanceSum == nil {
		r.reflectanceSum = make([]float64, len(s.Reflectance))
	}
	for c, v := range s.Reflectance {
		r.reflectanceSum[c] += float64(v)
	}
	return nil
}

func (r *report) addMask(d *datasets.MaskDataset, idx int) error {
	s, err := d.Example(idx)
	if err != nil {
		return err
	}
	r.kept++
	r.unknown += s.Unknown
	if !r.hasPreview {
		r.preview, r.hasPreview = s.Image, true
	}
	if d.Options.Mapped {
		if r.bins == nil {
			r.bins = make([]float64, frictionBins)
		}
		for _, v := range s.Mask.Values {
			if v < 0 {
				continue
			}
			bin := min(int(v*frictionBins), frictionBins-1)
			r.bins[bin]++
		}
		return nil
	}
	if r.bins == nil {
		r.bins = make([]float64, len(datasets.Materials))
	}
	for _, v := range s.Mask.Values {
		code := int(v)
		if code >= 0 && code < len(r.bins) {
			r.bins[code]++
		} else {
			r.unknown++
		}
	}
	return nil
}

// plotCalibration writes a PNG with the dark (grey) and light (orange)
// reference curves over the calibrated channel window.
func plotCalibration(outDir string, cal *datasets.Calibration) error {
	p := plot.New()
	p.Title.Text = "Calibration curves: dark_min (grey), light_max (orange)"
	p.X.Label.Text = "channel"
	p.Y.Label.Text = "reading"

	dark := make(plotter.XYs, len(cal.DarkMin))
	light := make(plotter.XYs, len(cal.LightMax))
	for i := range cal.DarkMin {
		x := float64(cal.MinChannel + i)
		dark[i] = plotter.XY{X: x, Y: cal.DarkMin[i]}
		light[i] = plotter.XY{X: x, Y: cal.LightMax[i]}
	}

	dl, err := plotter.NewLine(dark)
	if err != nil {
		return err
	}
	dl.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	dl.Width = vg.Points(1)
	p.Add(dl)
	p.Legend.Add("dark_min", dl)

	ll, err := plotter.NewLine(light)
	if err != nil {
		return err
	}
	ll.Color = color.RGBA{R: 230, G: 120, B: 20, A: 255}
	ll.Width = vg.Points(1)
	p.Add(ll)
	p.Legend.Add("light_max", ll)

	p.Add(plotter.NewGrid())
	return p.Save(8*vg.Inch, 5*vg.Inch, filepath.Join(outDir, "calibration.png"))
}

// plotReflectance writes a PNG with the mean calibrated reflectance of the
// kept examples.
func plotReflectance(outDir string, firstChannel int, mean []float64) error {
	p := plot.New()
	p.Title.Text = "Mean calibrated reflectance"
	p.X.Label.Text = "channel"
	p.Y.Label.Text = "reflectance"
	p.Y.Min = 0
	p.Y.Max = 1

	xys := make(plotter.XYs, len(mean))
	for i, v := range mean {
		xys[i] = plotter.XY{X: float64(firstChannel + i), Y: v}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	return p.Save(8*vg.Inch, 5*vg.Inch, filepath.Join(outDir, "reflectance.png"))
}

// plotLabels writes a bar chart of mask pixels, either per friction bin or
// per material category.
func plotLabels(outDir string, mapped bool, bins []float64) error {
	if len(bins) == 0 {
		return nil
	}
	p := plot.New()
	name := "categories.png"
	if mapped {
		p.Title.Text = "Mask pixels per friction coefficient"
		p.X.Label.Text = fmt.Sprintf("friction bin (width %.2f)", 1.0/frictionBins)
		name = "friction.png"
	} else {
		p.Title.Text = "Mask pixels per material category"
		p.X.Label.Text = "category code"
	}
	p.Y.Label.Text = "pixels (log10)"

	values := make(plotter.Values, len(bins))
	for i, v := range bins {
		values[i] = math.Log10(1 + v)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(6))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 40, G: 120, B: 40, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	return p.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(outDir, name))
}

// denormalize undoes ImageRGB.Normalize(mean, std).
func denormalize(img datasets.ImageRGB, mean, std [3]float32) datasets.ImageRGB {
	var invMean, invStd [3]float32
	for c := range 3 {
		invMean[c] = -mean[c] / std[c]
		invStd[c] = 1 / std[c]
	}
	return img.Normalize(invMean, invStd)
}

func ensureDir(path string) error {
	// Attempt to create directory if it doesn't exist (silently succeed if present).
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
