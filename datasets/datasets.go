package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// This file provides two dataset implementations that read paired image/label
// samples from disk and present them as examples suitable for model training.
//
// Both datasets use lazy loading - a RowTable stores the file paths and the
// actual files are only decoded when an example is requested.
//
// Notes on gomlx tensors:
//   - Examples are returned as contiguous float32 buffers along with shape
//     metadata (ImageRGB, Mask, reflectance vectors). Batches are packed into
//     flat buffers (MaskBatchFlat, SpectralBatchFlat) and converted to gomlx
//     tensors in a single final step with ToGomlxTensors.
//
// Layout and intended usage:
//
// MaskDataset
//   - Row table of (image path, mask path)
//   - Image decoded to RGB, mask decoded to palette category codes
//   - Optionally maps category codes to friction coefficients (see Materials)
//   - Optionally applies a PairedTransform to keep image and mask aligned
//
// SpectralDataset
//   - Row table of (image path, spectral .npy path)
//   - Image resized to 224x224 and normalized to [-1, 1]
//   - Spectral readout downsampled, filtered for low signal, and calibrated
//     against dark/light reference curves into [0, 1] reflectance
//
// The datasets implement this interface in order to interact with GoMLX
// training loops and batching utilities.
type Dataset interface {
	Len() int
	Name() string
	Shuffle(seed int64)

	// To implement gomlx's train.Dataset interface
	Reset()
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
}

// ErrOutOfRange is returned (wrapped) when an example index is outside [0, Len()).
var ErrOutOfRange = errors.New("index out of range")

// checkIndex returns an error wrapping ErrOutOfRange if idx is not in [0, n).
func checkIndex(idx, n int) error {
	if idx < 0 || idx >= n {
		return errors.Wrapf(ErrOutOfRange, "index %d not in [0, %d)", idx, n)
	}
	return nil
}
