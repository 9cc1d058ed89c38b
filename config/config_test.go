package config

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/frictionVision/datasets"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	writeFile(t, path, `
root: /data
loader: mask
batch_size: 8
shuffle: true
mask:
  mapped: true
  augment:
    resize_width: 64
    resize_height: 48
    flip_probability: 0.5
spectral:
  size: 128
  dark_threshold: 1500
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data", cfg.Root)
	require.Equal(t, LoaderMask, cfg.Loader)
	require.Equal(t, 8, cfg.BatchSize)
	require.True(t, cfg.Shuffle)
	require.True(t, cfg.Mask.Mapped)
	require.Equal(t, 64, cfg.Mask.Augment.ResizeWidth)
	require.Equal(t, 128, cfg.Spectral.Size)
	require.Equal(t, 1500.0, cfg.Spectral.DarkThreshold)

	// Fields missing from the file keep their defaults.
	def := Default()
	require.Equal(t, def.Seed, cfg.Seed)
	require.Equal(t, def.OutDir, cfg.OutDir)
	require.Equal(t, def.Spectral.MinChannel, cfg.Spectral.MinChannel)
	require.Equal(t, def.Spectral.Std, cfg.Spectral.Std)
	require.Equal(t, datasets.DefaultCalibrationDir, cfg.Spectral.CalibrationDir)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"loader": "spectral", "csv": "rows.csv", "spectral": {"mean": [0.4, 0.45, 0.5]}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "rows.csv", cfg.CSV)
	require.Equal(t, [3]float32{0.4, 0.45, 0.5}, cfg.Spectral.Mean)
	require.Equal(t, datasets.DefaultImageSize, cfg.Spectral.Size)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "batch_size: [1, 2\n")
	_, err = Load(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, "loader: video\n")
	_, err = Load(invalid)
	require.ErrorContains(t, err, "unknown loader")
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(c *Config){
		"batch size":   func(c *Config) { c.BatchSize = 0 },
		"resize pair":  func(c *Config) { c.Mask.Augment.ResizeWidth = 10 },
		"crop pair":    func(c *Config) { c.Mask.Augment.CropHeight = 10 },
		"flip":         func(c *Config) { c.Mask.Augment.FlipProbability = 1.5 },
		"size":         func(c *Config) { c.Spectral.Size = -1 },
		"window":       func(c *Config) { c.Spectral.MaxChannel = c.Spectral.MinChannel },
		"negative min": func(c *Config) { c.Spectral.MinChannel = -1 },
		"std":          func(c *Config) { c.Spectral.Std[2] = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")
	cfg := Default()
	cfg.Loader = LoaderMask
	cfg.Mask.Augment.CropWidth, cfg.Mask.Augment.CropHeight = 32, 16
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	require.Nil(t, cfg.MaskOptions().Transform)

	cfg.Mask.Mapped = true
	cfg.Mask.Augment = Augment{ResizeWidth: 8, ResizeHeight: 8, CropWidth: 4, CropHeight: 4, FlipProbability: 0.5}
	opts := cfg.MaskOptions()
	require.True(t, opts.Mapped)
	pipeline, ok := opts.Transform.(datasets.Compose)
	require.True(t, ok)
	require.Len(t, pipeline, 3)
	require.Equal(t, datasets.Resize{Width: 8, Height: 8}, pipeline[0])

	sopts := cfg.SpectralOptions()
	def := datasets.DefaultSpectralOptions()
	require.Equal(t, def, sopts)
}

func TestOpen_Mask(t *testing.T) {
	root := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	mask := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range mask.Pix {
		mask.Pix[i] = 3
		img.Pix[i*4+3] = 255
	}
	for _, f := range []struct {
		name string
		img  image.Image
	}{{"img.png", img}, {"mask.png", mask}} {
		out, err := os.Create(filepath.Join(root, f.name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(out, f.img))
		require.NoError(t, out.Close())
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0755))
	writeFile(t, filepath.Join(root, "data", "masks.csv"), "image,mask\nimg.png,mask.png\nimg.png,mask.png\nimg.png,mask.png\n")

	cfg := Default()
	cfg.Root = root
	cfg.Loader = LoaderMask
	cfg.BatchSize = 2
	cfg.Shuffle = true
	cfg.Mask.Mapped = true
	cfg.Mask.Augment = Augment{CropWidth: 6, CropHeight: 4, FlipProbability: 1}

	path, err := cfg.RowTablePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data", "masks.csv"), path)

	cfg.CSV = filepath.Join(root, "data")
	path, err = cfg.RowTablePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data", "masks.csv"), path)

	ds, err := cfg.Open()
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	md, ok := ds.(*datasets.MaskDataset)
	require.True(t, ok)
	require.Equal(t, 2, md.BatchSize)

	_, inputs, labels, err := ds.Yield()
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6, 3}, inputs[0].Shape().Dimensions)
	require.Equal(t, []int{2, 4, 6}, labels[0].Shape().Dimensions)

	cfg.CSV = filepath.Join(root, "nope.csv")
	_, err = cfg.Open()
	require.Error(t, err)
}
