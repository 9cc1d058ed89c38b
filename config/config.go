// Package config holds the settings used by the commands to build the
// datasets. Files are YAML; JSON files parse as well.
package config

import (
	"os"
	"path/filepath"

	"github.com/Noofbiz/frictionVision/datasets"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Loader names.
const (
	LoaderMask     = "mask"
	LoaderSpectral = "spectral"
)

// Config is the top level configuration.
type Config struct {
	// Root directory of the data. Relative paths in the row table and the
	// calibration directory are resolved against it.
	Root string `yaml:"root" json:"root"`

	// CSV is the row table. If empty, datasets.DefaultRowTablePatterns is searched.
	CSV string `yaml:"csv" json:"csv"`

	// Loader selects the dataset: "mask" or "spectral".
	Loader string `yaml:"loader" json:"loader"`

	BatchSize int   `yaml:"batch_size" json:"batch_size"`
	Shuffle   bool  `yaml:"shuffle" json:"shuffle"`
	Seed      int64 `yaml:"seed" json:"seed"`

	// OutDir receives plots and reports.
	OutDir string `yaml:"out_dir" json:"out_dir"`

	Mask     Mask     `yaml:"mask" json:"mask"`
	Spectral Spectral `yaml:"spectral" json:"spectral"`
}

// Mask configures the mask loader.
type Mask struct {
	Mapped  bool    `yaml:"mapped" json:"mapped"`
	Augment Augment `yaml:"augment" json:"augment"`
}

// Augment describes the paired augmentation pipeline, applied in field order.
type Augment struct {
	// ResizeWidth and ResizeHeight, when both set, resize image and mask first.
	ResizeWidth  int `yaml:"resize_width" json:"resize_width"`
	ResizeHeight int `yaml:"resize_height" json:"resize_height"`

	// CropWidth and CropHeight, when both set, crop a random window.
	CropWidth  int `yaml:"crop_width" json:"crop_width"`
	CropHeight int `yaml:"crop_height" json:"crop_height"`

	// FlipProbability of a horizontal flip.
	FlipProbability float64 `yaml:"flip_probability" json:"flip_probability"`
}

// Spectral configures the spectral loader.
type Spectral struct {
	Size           int        `yaml:"size" json:"size"`
	Mean           [3]float32 `yaml:"mean" json:"mean"`
	Std            [3]float32 `yaml:"std" json:"std"`
	CalibrationDir string     `yaml:"calibration_dir" json:"calibration_dir"`
	MinChannel     int        `yaml:"min_channel" json:"min_channel"`
	MaxChannel     int        `yaml:"max_channel" json:"max_channel"`
	LightFloor     float64    `yaml:"light_floor" json:"light_floor"`
	Epsilon        float64    `yaml:"epsilon" json:"epsilon"`
	DarkThreshold  float64    `yaml:"dark_threshold" json:"dark_threshold"`
}

// Default returns the configuration matching the VAST sensor setup.
func Default() *Config {
	opts := datasets.DefaultSpectralOptions()
	return &Config{
		Root:      ".",
		Loader:    LoaderSpectral,
		BatchSize: 32,
		Seed:      42,
		OutDir:    "plots",
		Spectral: Spectral{
			Size:           opts.Size,
			Mean:           opts.Mean,
			Std:            opts.Std,
			CalibrationDir: opts.CalibrationDir,
			MinChannel:     opts.Calibration.MinChannel,
			MaxChannel:     opts.Calibration.MaxChannel,
			LightFloor:     opts.Calibration.LightFloor,
			Epsilon:        opts.Calibration.Epsilon,
			DarkThreshold:  opts.DarkThreshold,
		},
	}
}

// Load reads the file at path over the defaults. Fields missing from the
// file keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid config %s", path)
	}
	return cfg, nil
}

// YAML encodes the configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return data, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed to write config %s", path)
}

// Validate checks the values that would make a loader unusable.
func (c *Config) Validate() error {
	switch c.Loader {
	case LoaderMask, LoaderSpectral:
	default:
		return errors.Errorf("unknown loader %q, want %q or %q", c.Loader, LoaderMask, LoaderSpectral)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	a := c.Mask.Augment
	if (a.ResizeWidth > 0) != (a.ResizeHeight > 0) {
		return errors.New("resize_width and resize_height must be set together")
	}
	if (a.CropWidth > 0) != (a.CropHeight > 0) {
		return errors.New("crop_width and crop_height must be set together")
	}
	if a.FlipProbability < 0 || a.FlipProbability > 1 {
		return errors.Errorf("flip_probability must be in [0, 1], got %g", a.FlipProbability)
	}
	s := c.Spectral
	if s.Size <= 0 {
		return errors.Errorf("spectral size must be positive, got %d", s.Size)
	}
	if s.MinChannel < 0 || s.MaxChannel <= s.MinChannel {
		return errors.Errorf("invalid spectral channel window [%d, %d)", s.MinChannel, s.MaxChannel)
	}
	for ch, v := range s.Std {
		if v == 0 {
			return errors.Errorf("spectral std of channel %d is zero", ch)
		}
	}
	return nil
}

// MaskOptions builds the mask loader options, including the augmentation
// pipeline. Random augmentations are seeded from Seed.
func (c *Config) MaskOptions() datasets.MaskOptions {
	var pipeline datasets.Compose
	a := c.Mask.Augment
	if a.ResizeWidth > 0 && a.ResizeHeight > 0 {
		pipeline = append(pipeline, datasets.Resize{Width: a.ResizeWidth, Height: a.ResizeHeight})
	}
	if a.CropWidth > 0 && a.CropHeight > 0 {
		pipeline = append(pipeline, datasets.NewRandomCrop(a.CropWidth, a.CropHeight, c.Seed))
	}
	if a.FlipProbability > 0 {
		pipeline = append(pipeline, datasets.NewRandomFlip(a.FlipProbability, c.Seed+1))
	}
	opts := datasets.MaskOptions{Mapped: c.Mask.Mapped}
	if len(pipeline) > 0 {
		opts.Transform = pipeline
	}
	return opts
}

// SpectralOptions builds the spectral loader options.
func (c *Config) SpectralOptions() datasets.SpectralOptions {
	s := c.Spectral
	return datasets.SpectralOptions{
		Size:           s.Size,
		Mean:           s.Mean,
		Std:            s.Std,
		CalibrationDir: s.CalibrationDir,
		Calibration: datasets.CalibrationOptions{
			MinChannel: s.MinChannel,
			MaxChannel: s.MaxChannel,
			LightFloor: s.LightFloor,
			Epsilon:    s.Epsilon,
		},
		DarkThreshold: s.DarkThreshold,
	}
}

// RowTablePath returns CSV, or the first row table found under Root. If CSV
// names a directory, the first CSV file in it is used.
func (c *Config) RowTablePath() (string, error) {
	if c.CSV != "" {
		if info, err := os.Stat(c.CSV); err == nil && info.IsDir() {
			return datasets.FindCSVInDir(c.CSV)
		}
		return c.CSV, nil
	}
	return datasets.FindRowTable(datasets.DefaultRowTablePatterns(c.Root))
}

// Open builds the configured dataset.
func (c *Config) Open() (datasets.Dataset, error) {
	csvPath, err := c.RowTablePath()
	if err != nil {
		return nil, err
	}
	rows, err := datasets.NewCSVRowTable(csvPath, c.Root)
	if err != nil {
		return nil, err
	}
	var ds datasets.Dataset
	switch c.Loader {
	case LoaderMask:
		m, err := datasets.NewMaskDataset(rows, c.Root, c.MaskOptions())
		if err != nil {
			return nil, err
		}
		m.BatchSize = c.BatchSize
		ds = m
	case LoaderSpectral:
		s, err := datasets.NewSpectralDataset(rows, c.Root, c.SpectralOptions())
		if err != nil {
			return nil, err
		}
		s.BatchSize = c.BatchSize
		ds = s
	default:
		return nil, errors.Errorf("unknown loader %q", c.Loader)
	}
	if c.Shuffle {
		ds.Shuffle(c.Seed)
	}
	return ds, nil
}
