package datasets

import (
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
)

// Default calibration parameters of the spectral sensor.
const (
	DefaultCalibrationDir = "data/vast_data/calibration"
	DefaultMinChannel     = 250
	DefaultMaxChannel     = 1800
	DefaultLightFloor     = 2000
	DefaultEpsilon        = 1e-6
)

// Calibration holds the dark and light reference curves of the spectral
// sensor, already restricted to the channel window [MinChannel, MaxChannel).
//
// It is read-only after construction, and safe for concurrent use.
type Calibration struct {
	DarkMin, LightMax      []float64
	MinChannel, MaxChannel int
	Epsilon                float64
}

// CalibrationOptions configures LoadCalibration and NewCalibration.
type CalibrationOptions struct {
	MinChannel, MaxChannel int
	LightFloor             float64
	Epsilon                float64
}

// DefaultCalibrationOptions returns the options of the VAST sensor setup.
func DefaultCalibrationOptions() CalibrationOptions {
	return CalibrationOptions{
		MinChannel: DefaultMinChannel,
		MaxChannel: DefaultMaxChannel,
		LightFloor: DefaultLightFloor,
		Epsilon:    DefaultEpsilon,
	}
}

// LoadCalibration reads dark_min.npy and light_max.npy from dir.
func LoadCalibration(dir string, opts CalibrationOptions) (*Calibration, error) {
	dark, err := readNpyVector(filepath.Join(dir, "dark_min.npy"))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load dark calibration")
	}
	light, err := readNpyVector(filepath.Join(dir, "light_max.npy"))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load light calibration")
	}
	return NewCalibration(dark, light, opts)
}

// NewCalibration builds a Calibration from full-length reference curves. The
// light curve is floored at opts.LightFloor and then both curves are sliced
// to [opts.MinChannel, opts.MaxChannel). The inputs are not modified.
func NewCalibration(darkMin, lightMax []float64, opts CalibrationOptions) (*Calibration, error) {
	if opts.MinChannel < 0 || opts.MaxChannel <= opts.MinChannel {
		return nil, errors.Errorf("invalid channel window [%d, %d)", opts.MinChannel, opts.MaxChannel)
	}
	if len(darkMin) < opts.MaxChannel {
		return nil, errors.Errorf("dark calibration has %d channels, need at least %d", len(darkMin), opts.MaxChannel)
	}
	if len(lightMax) < opts.MaxChannel {
		return nil, errors.Errorf("light calibration has %d channels, need at least %d", len(lightMax), opts.MaxChannel)
	}

	n := opts.MaxChannel - opts.MinChannel
	c := &Calibration{
		DarkMin:    make([]float64, n),
		LightMax:   make([]float64, n),
		MinChannel: opts.MinChannel,
		MaxChannel: opts.MaxChannel,
		Epsilon:    opts.Epsilon,
	}
	copy(c.DarkMin, darkMin[opts.MinChannel:opts.MaxChannel])
	for i, v := range lightMax[opts.MinChannel:opts.MaxChannel] {
		c.LightMax[i] = max(v, opts.LightFloor)
	}
	return c, nil
}

// Channels returns the number of calibrated channels.
func (c *Calibration) Channels() int {
	return len(c.DarkMin)
}

// Apply converts raw readings, already restricted to the calibration window,
// into reflectance: clamp((raw - dark) / (light - dark + eps), 0, 1).
func (c *Calibration) Apply(raw []float64) ([]float32, error) {
	if len(raw) != len(c.DarkMin) {
		return nil, errors.Errorf("spectrum has %d channels, calibration has %d", len(raw), len(c.DarkMin))
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		r := (v - c.DarkMin[i]) / (c.LightMax[i] - c.DarkMin[i] + c.Epsilon)
		out[i] = float32(min(max(r, 0), 1))
	}
	return out, nil
}

// readNpyVector reads a .npy file and returns its values flattened to float64.
func readNpyVector(path string) ([]float64, error) {
	t, err := numpy.FromNpyFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	v, err := tensorToFloat64(t)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to convert %s", path)
	}
	return v, nil
}

// tensorToFloat64 copies the flat data of a numeric tensor into a []float64.
func tensorToFloat64(t *tensors.Tensor) ([]float64, error) {
	var out []float64
	var convErr error
	t.ConstFlatData(func(flat any) {
		switch v := flat.(type) {
		case []float64:
			out = make([]float64, len(v))
			copy(out, v)
		case []float32:
			out = convertSlice(v)
		case []int64:
			out = convertSlice(v)
		case []int32:
			out = convertSlice(v)
		case []int16:
			out = convertSlice(v)
		case []int8:
			out = convertSlice(v)
		case []uint64:
			out = convertSlice(v)
		case []uint32:
			out = convertSlice(v)
		case []uint16:
			out = convertSlice(v)
		case []uint8:
			out = convertSlice(v)
		default:
			convErr = errors.Errorf("unsupported array dtype %s", t.DType())
		}
	})
	return out, convErr
}

func convertSlice[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
