package datasets

import (
	"image"
	"math/rand"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// PairedInput is an image and its mask, transformed together so that the
// geometry of both stays aligned.
type PairedInput struct {
	Image image.Image
	Mask  Mask
}

// PairedTransform transforms an image and its mask jointly.
type PairedTransform interface {
	Apply(in PairedInput) (PairedInput, error)
}

// PairedTransformFunc adapts a function to PairedTransform.
type PairedTransformFunc func(in PairedInput) (PairedInput, error)

// Apply implements PairedTransform.
func (f PairedTransformFunc) Apply(in PairedInput) (PairedInput, error) {
	return f(in)
}

// checkAligned returns an error if the image and mask sizes differ.
func checkAligned(in PairedInput) error {
	b := in.Image.Bounds()
	if b.Dx() != in.Mask.Width || b.Dy() != in.Mask.Height {
		return errors.Errorf("image is %dx%d but mask is %dx%d",
			b.Dx(), b.Dy(), in.Mask.Width, in.Mask.Height)
	}
	return nil
}

// Compose applies the transforms in order.
type Compose []PairedTransform

// Apply implements PairedTransform.
func (c Compose) Apply(in PairedInput) (PairedInput, error) {
	var err error
	for i, t := range c {
		in, err = t.Apply(in)
		if err != nil {
			return PairedInput{}, errors.WithMessagef(err, "transform #%d failed", i)
		}
	}
	return in, nil
}

// FlipHorizontal mirrors image and mask left to right.
type FlipHorizontal struct{}

// Apply implements PairedTransform.
func (FlipHorizontal) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	return PairedInput{Image: imaging.FlipH(in.Image), Mask: flipMaskH(in.Mask)}, nil
}

// FlipVertical mirrors image and mask top to bottom.
type FlipVertical struct{}

// Apply implements PairedTransform.
func (FlipVertical) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	return PairedInput{Image: imaging.FlipV(in.Image), Mask: flipMaskV(in.Mask)}, nil
}

// Rotate90 rotates image and mask 90 degrees counter-clockwise.
type Rotate90 struct{}

// Apply implements PairedTransform.
func (Rotate90) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	return PairedInput{Image: imaging.Rotate90(in.Image), Mask: rotateMask90(in.Mask)}, nil
}

// Crop cuts the rectangle Rect (relative to the image origin) out of image and
// mask. The rectangle must lie within the image.
type Crop struct {
	Rect image.Rectangle
}

// Apply implements PairedTransform.
func (c Crop) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	full := image.Rect(0, 0, in.Mask.Width, in.Mask.Height)
	if c.Rect.Empty() || !c.Rect.In(full) {
		return PairedInput{}, errors.Errorf("crop %v outside of image %v", c.Rect, full)
	}
	return cropPair(in, c.Rect), nil
}

// CenterCrop cuts a Width x Height window from the center of image and mask.
type CenterCrop struct {
	Width, Height int
}

// Apply implements PairedTransform.
func (c CenterCrop) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	if c.Width > in.Mask.Width || c.Height > in.Mask.Height || c.Width <= 0 || c.Height <= 0 {
		return PairedInput{}, errors.Errorf("center crop %dx%d does not fit image %dx%d",
			c.Width, c.Height, in.Mask.Width, in.Mask.Height)
	}
	x0 := (in.Mask.Width - c.Width) / 2
	y0 := (in.Mask.Height - c.Height) / 2
	return cropPair(in, image.Rect(x0, y0, x0+c.Width, y0+c.Height)), nil
}

// RandomCrop cuts a Width x Height window at a random position. It is safe for
// concurrent use.
type RandomCrop struct {
	Width, Height int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomCrop creates a RandomCrop with its own seeded random source.
func NewRandomCrop(width, height int, seed int64) *RandomCrop {
	return &RandomCrop{Width: width, Height: height, rng: rand.New(rand.NewSource(seed))}
}

// Apply implements PairedTransform.
func (c *RandomCrop) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	if c.Width > in.Mask.Width || c.Height > in.Mask.Height || c.Width <= 0 || c.Height <= 0 {
		return PairedInput{}, errors.Errorf("random crop %dx%d does not fit image %dx%d",
			c.Width, c.Height, in.Mask.Width, in.Mask.Height)
	}
	c.mu.Lock()
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(1))
	}
	x0 := c.rng.Intn(in.Mask.Width - c.Width + 1)
	y0 := c.rng.Intn(in.Mask.Height - c.Height + 1)
	c.mu.Unlock()
	return cropPair(in, image.Rect(x0, y0, x0+c.Width, y0+c.Height)), nil
}

// RandomFlip mirrors image and mask left to right with probability P. It is
// safe for concurrent use.
type RandomFlip struct {
	P float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomFlip creates a RandomFlip with its own seeded random source.
func NewRandomFlip(p float64, seed int64) *RandomFlip {
	return &RandomFlip{P: p, rng: rand.New(rand.NewSource(seed))}
}

// Apply implements PairedTransform.
func (f *RandomFlip) Apply(in PairedInput) (PairedInput, error) {
	f.mu.Lock()
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(1))
	}
	flip := f.rng.Float64() < f.P
	f.mu.Unlock()
	if !flip {
		if err := checkAligned(in); err != nil {
			return PairedInput{}, err
		}
		return in, nil
	}
	return FlipHorizontal{}.Apply(in)
}

// Resize scales image and mask to Width x Height. The image is resampled
// bilinearly, the mask with nearest neighbor so no new codes appear.
type Resize struct {
	Width, Height int
}

// Apply implements PairedTransform.
func (r Resize) Apply(in PairedInput) (PairedInput, error) {
	if err := checkAligned(in); err != nil {
		return PairedInput{}, err
	}
	if r.Width <= 0 || r.Height <= 0 {
		return PairedInput{}, errors.Errorf("invalid resize target %dx%d", r.Width, r.Height)
	}
	return PairedInput{
		Image: imaging.Resize(in.Image, r.Width, r.Height, imaging.Linear),
		Mask:  resizeMaskNearest(in.Mask, r.Width, r.Height),
	}, nil
}

func cropPair(in PairedInput, rect image.Rectangle) PairedInput {
	return PairedInput{
		Image: imaging.Crop(in.Image, rect.Add(in.Image.Bounds().Min)),
		Mask:  cropMask(in.Mask, rect),
	}
}

func flipMaskH(m Mask) Mask {
	out := NewMask(m.Width, m.Height)
	for y := range m.Height {
		row := m.Values[y*m.Width : (y+1)*m.Width]
		dst := out.Values[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			dst[m.Width-1-x] = v
		}
	}
	return out
}

func flipMaskV(m Mask) Mask {
	out := NewMask(m.Width, m.Height)
	for y := range m.Height {
		copy(out.Values[(m.Height-1-y)*m.Width:(m.Height-y)*m.Width], m.Values[y*m.Width:(y+1)*m.Width])
	}
	return out
}

// rotateMask90 rotates counter-clockwise, the same direction as imaging.Rotate90.
func rotateMask90(m Mask) Mask {
	out := NewMask(m.Height, m.Width)
	for y := range m.Height {
		for x := range m.Width {
			out.Values[(m.Width-1-x)*out.Width+y] = m.Values[y*m.Width+x]
		}
	}
	return out
}

func cropMask(m Mask, rect image.Rectangle) Mask {
	out := NewMask(rect.Dx(), rect.Dy())
	for y := range out.Height {
		src := (rect.Min.Y+y)*m.Width + rect.Min.X
		copy(out.Values[y*out.Width:(y+1)*out.Width], m.Values[src:src+out.Width])
	}
	return out
}

func resizeMaskNearest(m Mask, width, height int) Mask {
	out := NewMask(width, height)
	for y := range height {
		sy := min((2*y+1)*m.Height/(2*height), m.Height-1)
		for x := range width {
			sx := min((2*x+1)*m.Width/(2*width), m.Width-1)
			out.Values[y*width+x] = m.Values[sy*m.Width+sx]
		}
	}
	return out
}
