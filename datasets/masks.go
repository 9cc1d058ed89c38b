package datasets

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaskOptions configures a MaskDataset.
type MaskOptions struct {
	// Mapped replaces mask category codes with friction coefficients.
	Mapped bool

	// Transform, if not nil, is applied jointly to the image and the mask of
	// every example, after the friction mapping.
	Transform PairedTransform
}

// MaskSample is one example of a MaskDataset.
type MaskSample struct {
	Image ImageRGB
	Mask  Mask

	// Unknown is the number of mask pixels whose category code is not in
	// Materials. Only counted when the dataset is Mapped.
	Unknown int
}

// MaskDataset reads RGB images with their material segmentation masks.
type MaskDataset struct {
	Rows    RowTable
	Root    string
	Options MaskOptions

	// BatchSize for yielding batches.
	BatchSize int

	// DropIncompleteBatch makes Yield skip the final partial batch of an epoch.
	DropIncompleteBatch bool

	cursor *epochCursor
}

// NewMaskDataset creates a mask dataset over the given rows. Each row holds
// the image path and the mask path.
func NewMaskDataset(rows RowTable, root string, opts MaskOptions) (*MaskDataset, error) {
	if rows == nil {
		return nil, errors.New("mask dataset needs a row table")
	}
	ds := &MaskDataset{
		Rows:      rows,
		Root:      root,
		Options:   opts,
		BatchSize: 32,
		cursor:    newEpochCursor(rows.Len()),
	}
	klog.Infof("%s: data loaded with rows: %d", ds.Name(), rows.Len())
	return ds, nil
}

// Len returns the number of examples.
func (d *MaskDataset) Len() int {
	return d.Rows.Len()
}

// Name returns the name of the dataset
func (d *MaskDataset) Name() string {
	return "MaskDataset"
}

// Example reads the image and mask of example idx.
func (d *MaskDataset) Example(idx int) (MaskSample, error) {
	imgPath, maskPath, err := d.Rows.Row(idx)
	if err != nil {
		return MaskSample{}, errors.WithMessagef(err, "%s example %d", d.Name(), idx)
	}
	img, err := openImage(imgPath)
	if err != nil {
		return MaskSample{}, err
	}
	mask, err := openMask(maskPath)
	if err != nil {
		return MaskSample{}, err
	}

	var unknown int
	if d.Options.Mapped {
		mask, unknown = MapFriction(mask)
		if unknown > 0 {
			klog.V(1).Infof("%s: %d pixels with unknown category in %s", d.Name(), unknown, maskPath)
		}
	}

	if d.Options.Transform != nil {
		out, err := d.Options.Transform.Apply(PairedInput{Image: img, Mask: mask})
		if err != nil {
			return MaskSample{}, errors.WithMessagef(err, "failed to transform example %d (%s)", idx, imgPath)
		}
		img, mask = out.Image, out.Mask
	}

	return MaskSample{Image: ToRGB(img), Mask: mask, Unknown: unknown}, nil
}

// Batch reads multiple examples by their indices and packs them into flat
// buffers. All examples must have the same size.
func (d *MaskDataset) Batch(indices []int) (*MaskBatchFlat, error) {
	samples := make([]MaskSample, len(indices))
	for i, idx := range indices {
		s, err := d.Example(idx)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return MakeMaskBatchFlat(samples)
}

// Shuffle makes Yield visit the examples in a random order, seeded by seed. It
// restarts the current epoch.
func (d *MaskDataset) Shuffle(seed int64) {
	d.cursor.setShuffle(seed)
}

// Reset restarts the dataset for a new epoch
func (d *MaskDataset) Reset() {
	d.cursor.restart()
}

// Yield returns the next batch of data for the gomlx Dataset interface. Batch
// is determined by the BatchSize field. Inputs hold the images shaped
// [batch, height, width, 3], labels hold the masks shaped [batch, height, width].
//
// It returns io.EOF at the end of the epoch. It is safe for concurrent use.
func (d *MaskDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices := d.cursor.take(max(d.BatchSize, 1))
	if len(indices) == 0 || (d.DropIncompleteBatch && len(indices) < d.BatchSize) {
		return nil, nil, nil, io.EOF
	}
	batch, err := d.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	in, la, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// MaskBatchFlat stores a batch of mask examples in flat contiguous buffers
type MaskBatchFlat struct {
	Images    []float32
	Masks     []float32
	BatchSize int
	Height    int
	Width     int
	Unknown   int
}

// MakeMaskBatchFlat flattens a batch into contiguous buffers
func MakeMaskBatchFlat(samples []MaskSample) (*MaskBatchFlat, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty mask batch")
	}
	w, h := samples[0].Image.Width, samples[0].Image.Height
	b := &MaskBatchFlat{
		Images:    make([]float32, 0, len(samples)*w*h*3),
		Masks:     make([]float32, 0, len(samples)*w*h),
		BatchSize: len(samples),
		Height:    h,
		Width:     w,
	}
	for i, s := range samples {
		if s.Image.Width != w || s.Image.Height != h {
			return nil, errors.Errorf("inconsistent image size at example %d: expected %dx%d, got %dx%d",
				i, w, h, s.Image.Width, s.Image.Height)
		}
		if s.Mask.Width != w || s.Mask.Height != h {
			return nil, errors.Errorf("inconsistent mask size at example %d: expected %dx%d, got %dx%d",
				i, w, h, s.Mask.Width, s.Mask.Height)
		}
		b.Images = append(b.Images, s.Image.Pix...)
		b.Masks = append(b.Masks, s.Mask.Values...)
		b.Unknown += s.Unknown
	}
	return b, nil
}

// ToGomlxTensors converts MaskBatchFlat to gomlx tensors
func (b *MaskBatchFlat) ToGomlxTensors() (images *tensors.Tensor, masks *tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("empty mask batch")
	}
	images = tensors.FromFlatDataAndDimensions(b.Images, b.BatchSize, b.Height, b.Width, 3)
	masks = tensors.FromFlatDataAndDimensions(b.Masks, b.BatchSize, b.Height, b.Width)
	return images, masks, nil
}
