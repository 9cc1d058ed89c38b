package datasets

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Decoders beyond the ones imaging registers (jpeg, png, gif, bmp, tiff).
	_ "golang.org/x/image/webp"
)

// ImageRGB is a decoded image as float32 values laid out [height, width, 3],
// matching the channels-last layout gomlx uses for images.
type ImageRGB struct {
	Width, Height int
	Pix           []float32
}

// Channels is always 3 for ImageRGB.
func (m ImageRGB) Channels() int { return 3 }

// At returns the (r, g, b) values at pixel (x, y).
func (m ImageRGB) At(x, y int) (r, g, b float32) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Normalize returns a copy of the image with each channel c mapped to
// (v - mean[c]) / std[c].
func (m ImageRGB) Normalize(mean, std [3]float32) ImageRGB {
	out := ImageRGB{Width: m.Width, Height: m.Height, Pix: make([]float32, len(m.Pix))}
	for i, v := range m.Pix {
		c := i % 3
		out.Pix[i] = (v - mean[c]) / std[c]
	}
	return out
}

// Mask is a single channel label grid laid out [height, width]. Values hold
// category codes when read from disk, or friction coefficients once mapped.
type Mask struct {
	Width, Height int
	Values        []float32
}

// At returns the value at pixel (x, y).
func (m Mask) At(x, y int) float32 {
	return m.Values[y*m.Width+x]
}

// NewMask allocates a zeroed mask.
func NewMask(width, height int) Mask {
	return Mask{Width: width, Height: height, Values: make([]float32, width*height)}
}

// Clone returns a deep copy of the mask.
func (m Mask) Clone() Mask {
	out := Mask{Width: m.Width, Height: m.Height, Values: make([]float32, len(m.Values))}
	copy(out.Values, m.Values)
	return out
}

// openImage decodes the image at path. Any format registered with the image
// package is accepted.
func openImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return img, nil
}

// ToRGB converts img to float32 RGB in [0, 1], dropping the alpha channel
// without compositing.
func ToRGB(img image.Image) ImageRGB {
	var nrgba *image.NRGBA
	if v, ok := img.(*image.NRGBA); ok && v.Rect.Min == (image.Point{}) && v.Stride == 4*v.Rect.Dx() {
		nrgba = v
	} else {
		nrgba = imaging.Clone(img)
	}
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	out := ImageRGB{Width: w, Height: h, Pix: make([]float32, w*h*3)}
	for p := range w * h {
		out.Pix[p*3] = float32(nrgba.Pix[p*4]) / 255
		out.Pix[p*3+1] = float32(nrgba.Pix[p*4+1]) / 255
		out.Pix[p*3+2] = float32(nrgba.Pix[p*4+2]) / 255
	}
	return out
}

// FromRGB converts an ImageRGB with values in [0, 1] back to an opaque
// image.NRGBA. Values are clamped and rounded to 8 bits.
func FromRGB(m ImageRGB) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for p := range m.Width * m.Height {
		for c := range 3 {
			img.Pix[p*4+c] = toUint8(m.Pix[p*3+c])
		}
		img.Pix[p*4+3] = 0xFF
	}
	return img
}

func toUint8(v float32) uint8 {
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}

// openMask decodes the mask at path into category codes. Paletted images yield
// their palette index, gray images their gray level, and anything else the
// 8-bit value of its red channel.
func openMask(path string) (Mask, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Mask{}, errors.Wrapf(err, "failed to decode mask %s", path)
	}
	return MaskFromImage(img), nil
}

// MaskFromImage extracts the category codes of a decoded mask image.
func MaskFromImage(img image.Image) Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Paletted:
		for y := range m.Height {
			for x := range m.Width {
				m.Values[y*m.Width+x] = float32(src.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			}
		}
	case *image.Gray:
		for y := range m.Height {
			for x := range m.Width {
				m.Values[y*m.Width+x] = float32(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := range m.Height {
			for x := range m.Width {
				m.Values[y*m.Width+x] = float32(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := range m.Height {
			for x := range m.Width {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				m.Values[y*m.Width+x] = float32(c.R)
			}
		}
	}
	return m
}
