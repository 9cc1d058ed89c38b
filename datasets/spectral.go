package datasets

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Default parameters of the spectral image transform and signal filter.
const (
	DefaultImageSize     = 224
	DefaultDarkThreshold = 1800
)

// SpectralOptions configures a SpectralDataset.
type SpectralOptions struct {
	// Size of the square image fed to the model.
	Size int

	// Mean and Std used to normalize each RGB channel after scaling to [0, 1].
	Mean, Std [3]float32

	// CalibrationDir holds dark_min.npy and light_max.npy. Relative paths are
	// resolved against the dataset root.
	CalibrationDir string

	Calibration CalibrationOptions

	// DarkThreshold: examples whose mean downsampled reading is at or below
	// this level are skipped.
	DarkThreshold float64
}

// DefaultSpectralOptions returns the options of the VAST sensor setup.
func DefaultSpectralOptions() SpectralOptions {
	return SpectralOptions{
		Size:           DefaultImageSize,
		Mean:           [3]float32{0.5, 0.5, 0.5},
		Std:            [3]float32{0.5, 0.5, 0.5},
		CalibrationDir: DefaultCalibrationDir,
		Calibration:    DefaultCalibrationOptions(),
		DarkThreshold:  DefaultDarkThreshold,
	}
}

// SpectralSample is one valid example of a SpectralDataset.
type SpectralSample struct {
	// Image resized to Size x Size and normalized.
	Image ImageRGB

	// Reflectance per calibrated channel, in [0, 1].
	Reflectance []float32

	// Mean of the downsampled raw readout.
	Mean float64
}

// Outcome tells whether a spectral example is usable.
type Outcome int

const (
	// Kept examples carry a SpectralSample.
	Kept Outcome = iota

	// Skipped examples had too little signal and carry no data.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Kept:
		return "kept"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// SpectralResult is the result of reading a spectral example: either Kept,
// with a sample, or Skipped.
type SpectralResult struct {
	Outcome Outcome

	// Mean of the downsampled raw readout, set in both outcomes.
	Mean float64

	sample SpectralSample
}

// Sample returns the sample and true if the example was kept.
func (r SpectralResult) Sample() (SpectralSample, bool) {
	if r.Outcome != Kept {
		return SpectralSample{}, false
	}
	return r.sample, true
}

// SpectralDataset reads RGB images with the spectral readout taken at the same
// spot, and calibrates the readout into reflectance.
type SpectralDataset struct {
	Rows        RowTable
	Root        string
	Options     SpectralOptions
	Calibration *Calibration

	// BatchSize for yielding batches.
	BatchSize int

	// DropIncompleteBatch makes Yield skip the final partial batch of an epoch.
	DropIncompleteBatch bool

	cursor *epochCursor
}

// NewSpectralDataset creates a spectral dataset over the given rows. Each row
// holds the image path and the spectral .npy path. The calibration curves are
// loaded once here; failing to read them is an error.
func NewSpectralDataset(rows RowTable, root string, opts SpectralOptions) (*SpectralDataset, error) {
	if rows == nil {
		return nil, errors.New("spectral dataset needs a row table")
	}
	if opts.Size <= 0 {
		return nil, errors.Errorf("invalid image size %d", opts.Size)
	}
	for c, s := range opts.Std {
		if s == 0 {
			return nil, errors.Errorf("std of channel %d is zero", c)
		}
	}
	calDir := resolvePath(root, opts.CalibrationDir)
	cal, err := LoadCalibration(calDir, opts.Calibration)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load calibration from %s", calDir)
	}

	ds := &SpectralDataset{
		Rows:        rows,
		Root:        root,
		Options:     opts,
		Calibration: cal,
		BatchSize:   32,
		cursor:      newEpochCursor(rows.Len()),
	}
	klog.Infof("%s: data loaded with rows: %d", ds.Name(), rows.Len())
	return ds, nil
}

// Len returns the number of rows, including the ones that will be skipped.
func (d *SpectralDataset) Len() int {
	return d.Rows.Len()
}

// Name returns the name of the dataset
func (d *SpectralDataset) Name() string {
	return "SpectralDataset"
}

// TransformImage resizes img to Size x Size and normalizes its channels.
func (d *SpectralDataset) TransformImage(img image.Image) ImageRGB {
	resized := imaging.Resize(img, d.Options.Size, d.Options.Size, imaging.Linear)
	return ToRGB(resized).Normalize(d.Options.Mean, d.Options.Std)
}

// Example reads example idx. Examples with too little signal return a Skipped
// result and no error.
func (d *SpectralDataset) Example(idx int) (SpectralResult, error) {
	imgPath, specPath, err := d.Rows.Row(idx)
	if err != nil {
		return SpectralResult{}, errors.WithMessagef(err, "%s example %d", d.Name(), idx)
	}
	img, err := openImage(imgPath)
	if err != nil {
		return SpectralResult{}, err
	}
	raw, err := readNpyVector(specPath)
	if err != nil {
		return SpectralResult{}, err
	}
	readout := Downsample(raw)
	if len(readout) == 0 {
		return SpectralResult{}, errors.Errorf("spectral readout %s is empty", specPath)
	}
	transformed := d.TransformImage(img)

	mean := stat.Mean(readout, nil)
	if mean <= d.Options.DarkThreshold {
		klog.V(2).Infof("%s: skipping example %d, mean readout %.2f <= %.2f",
			d.Name(), idx, mean, d.Options.DarkThreshold)
		return SpectralResult{Outcome: Skipped, Mean: mean}, nil
	}

	lo, hi := d.Calibration.MinChannel, d.Calibration.MaxChannel
	if len(readout) < hi {
		return SpectralResult{}, errors.Errorf("spectral readout %s has %d channels after downsampling, need at least %d",
			specPath, len(readout), hi)
	}
	refl, err := d.Calibration.Apply(readout[lo:hi])
	if err != nil {
		return SpectralResult{}, errors.WithMessagef(err, "failed to calibrate %s", specPath)
	}
	return SpectralResult{
		Outcome: Kept,
		Mean:    mean,
		sample:  SpectralSample{Image: transformed, Reflectance: refl, Mean: mean},
	}, nil
}

// Downsample keeps the odd-indexed readings of the raw sensor output, which
// line up with the calibration channels.
func Downsample(raw []float64) []float64 {
	out := make([]float64, 0, len(raw)/2)
	for i := 1; i < len(raw); i += 2 {
		out = append(out, raw[i])
	}
	return out
}

// Batch reads the examples with the given indices, drops the skipped ones, and
// packs the rest into flat buffers. The returned batch may be empty.
func (d *SpectralDataset) Batch(indices []int) (*SpectralBatchFlat, error) {
	samples := make([]SpectralSample, 0, len(indices))
	skipped := 0
	for _, idx := range indices {
		r, err := d.Example(idx)
		if err != nil {
			return nil, err
		}
		if s, ok := r.Sample(); ok {
			samples = append(samples, s)
		} else {
			skipped++
		}
	}
	b := MakeSpectralBatchFlat(samples, d.Options.Size, d.Calibration.Channels())
	b.Skipped = skipped
	return b, nil
}

// Shuffle makes Yield visit the examples in a random order, seeded by seed. It
// restarts the current epoch.
func (d *SpectralDataset) Shuffle(seed int64) {
	d.cursor.setShuffle(seed)
}

// Reset restarts the dataset for a new epoch
func (d *SpectralDataset) Reset() {
	d.cursor.restart()
}

// Yield returns the next batch of data for the gomlx Dataset interface.
// Skipped examples are filtered out, and rows keep being read until BatchSize
// samples are kept or the epoch ends. Inputs hold the images shaped
// [batch, size, size, 3], labels hold the reflectance shaped [batch, channels].
//
// It returns io.EOF at the end of the epoch. It is safe for concurrent use.
func (d *SpectralDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	want := max(d.BatchSize, 1)
	samples := make([]SpectralSample, 0, want)
	for len(samples) < want {
		indices := d.cursor.take(want - len(samples))
		if len(indices) == 0 {
			break
		}
		for _, idx := range indices {
			r, err := d.Example(idx)
			if err != nil {
				return nil, nil, nil, err
			}
			if s, ok := r.Sample(); ok {
				samples = append(samples, s)
			}
		}
	}
	if len(samples) == 0 || (d.DropIncompleteBatch && len(samples) < d.BatchSize) {
		return nil, nil, nil, io.EOF
	}
	batch := MakeSpectralBatchFlat(samples, d.Options.Size, d.Calibration.Channels())
	in, la, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// SpectralBatchFlat stores a batch of spectral examples in flat contiguous buffers
type SpectralBatchFlat struct {
	Images      []float32
	Reflectance []float32
	BatchSize   int
	Size        int
	Channels    int

	// Skipped counts the examples dropped from the batch for low signal.
	Skipped int
}

// MakeSpectralBatchFlat flattens samples into contiguous buffers. All samples
// are expected to come from the same dataset, so sizes are not rechecked.
func MakeSpectralBatchFlat(samples []SpectralSample, size, channels int) *SpectralBatchFlat {
	b := &SpectralBatchFlat{
		Images:      make([]float32, 0, len(samples)*size*size*3),
		Reflectance: make([]float32, 0, len(samples)*channels),
		BatchSize:   len(samples),
		Size:        size,
		Channels:    channels,
	}
	for _, s := range samples {
		b.Images = append(b.Images, s.Image.Pix...)
		b.Reflectance = append(b.Reflectance, s.Reflectance...)
	}
	return b
}

// ToGomlxTensors converts SpectralBatchFlat to gomlx tensors
func (b *SpectralBatchFlat) ToGomlxTensors() (images *tensors.Tensor, reflectance *tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("empty spectral batch")
	}
	if len(b.Images) != b.BatchSize*b.Size*b.Size*3 || len(b.Reflectance) != b.BatchSize*b.Channels {
		return nil, nil, errors.Errorf("spectral batch buffers do not match shape [%d, %d, %d, 3] / [%d, %d]",
			b.BatchSize, b.Size, b.Size, b.BatchSize, b.Channels)
	}
	images = tensors.FromFlatDataAndDimensions(b.Images, b.BatchSize, b.Size, b.Size, 3)
	reflectance = tensors.FromFlatDataAndDimensions(b.Reflectance, b.BatchSize, b.Channels)
	return images, reflectance, nil
}
