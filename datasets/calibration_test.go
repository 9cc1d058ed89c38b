package datasets

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCalibration_LightFloorAndWindow(t *testing.T) {
	dark := make([]float64, 2048)
	light := constant(2048, 5000)
	for i := range dark {
		dark[i] = float64(i)
	}
	// Raw entries below the floor, inside the window.
	light[250] = 500
	light[251] = 1999

	cal, err := NewCalibration(dark, light, DefaultCalibrationOptions())
	require.NoError(t, err)
	require.Equal(t, 1550, cal.Channels())
	require.Len(t, cal.LightMax, 1550)
	require.Equal(t, 2000.0, cal.LightMax[0])
	require.Equal(t, 2000.0, cal.LightMax[1])
	require.Equal(t, 5000.0, cal.LightMax[2])
	for _, v := range cal.LightMax {
		require.GreaterOrEqual(t, v, 2000.0)
	}
	// Window starts at channel 250.
	require.Equal(t, 250.0, cal.DarkMin[0])
	require.Equal(t, 1799.0, cal.DarkMin[len(cal.DarkMin)-1])
	// Inputs are not modified.
	require.Equal(t, 500.0, light[250])
}

func TestNewCalibration_Errors(t *testing.T) {
	opts := DefaultCalibrationOptions()
	_, err := NewCalibration(constant(1799, 0), constant(1800, 1), opts)
	require.Error(t, err)
	_, err = NewCalibration(constant(1800, 0), constant(100, 1), opts)
	require.Error(t, err)

	opts.MaxChannel = opts.MinChannel
	_, err = NewCalibration(constant(1800, 0), constant(1800, 1), opts)
	require.Error(t, err)
}

func TestCalibration_Apply(t *testing.T) {
	dark := make([]float64, 1800)
	light := make([]float64, 1800)
	for i := range dark {
		dark[i] = 100 + float64(i%7)
		light[i] = 2500 + float64(i%11)*300
	}
	cal, err := NewCalibration(dark, light, DefaultCalibrationOptions())
	require.NoError(t, err)

	// raw == dark gives ~0, raw == light gives ~1.
	got, err := cal.Apply(cal.DarkMin)
	require.NoError(t, err)
	for _, v := range got {
		require.InDelta(t, 0, v, 1e-6)
	}
	got, err = cal.Apply(cal.LightMax)
	require.NoError(t, err)
	for _, v := range got {
		require.InDelta(t, 1, v, 1e-6)
	}

	// Bounded for any raw value, including extremes.
	for _, raw := range []float64{-1e9, -1, 0, 150, 1800, 3000, 1e9, math.MaxFloat32} {
		got, err := cal.Apply(constant(cal.Channels(), raw))
		require.NoError(t, err)
		for _, v := range got {
			require.GreaterOrEqual(t, v, float32(0))
			require.LessOrEqual(t, v, float32(1))
		}
	}

	_, err = cal.Apply(make([]float64, 10))
	require.Error(t, err)
}

// Equal dark and light readings must not divide by zero.
func TestCalibration_ApplyDegenerateChannel(t *testing.T) {
	cal, err := NewCalibration(constant(1800, 2000), constant(1800, 2000), DefaultCalibrationOptions())
	require.NoError(t, err)
	got, err := cal.Apply(constant(cal.Channels(), 2000))
	require.NoError(t, err)
	for _, v := range got {
		require.False(t, math.IsNaN(float64(v)))
		require.InDelta(t, 0, v, 1e-6)
	}
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()
	light := constant(2048, 4000)
	light[300] = 10
	writeNpy(t, filepath.Join(dir, "dark_min.npy"), constant(2048, 50))
	writeNpy(t, filepath.Join(dir, "light_max.npy"), light)

	cal, err := LoadCalibration(dir, DefaultCalibrationOptions())
	require.NoError(t, err)
	require.Equal(t, 1550, cal.Channels())
	require.Equal(t, 50.0, cal.DarkMin[0])
	require.Equal(t, 2000.0, cal.LightMax[300-250])
	require.Equal(t, 4000.0, cal.LightMax[0])

	_, err = LoadCalibration(filepath.Join(dir, "missing"), DefaultCalibrationOptions())
	require.Error(t, err)
}
