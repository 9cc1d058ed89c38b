package main

// Example command that demonstrates loading the mask and spectral datasets
// and converting small batches into gomlx tensors using the helpers provided
// in the package.
//
// The datasets use lazy loading - they store file paths and only decode the
// images, masks and spectral readouts when needed, minimizing memory usage.
//
// Usage:
//   go run ./datasets/example -root /path/to/data
//
// Note: this example expects the row tables under <root>/data/ (masks.csv and
// vast.csv). If a table is missing that part of the example is skipped.

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"github.com/Noofbiz/frictionVision/datasets"
)

func main() {
	root := flag.String("root", ".", "root directory of the data")
	flag.Parse()

	// Mask dataset: friction-mapped masks, resized so they can be batched.
	maskRows, err := datasets.NewCSVRowTable(filepath.Join(*root, "data", "masks.csv"), *root)
	if err != nil {
		fmt.Printf("Note: Could not load mask rows: %v\n", err)
	} else {
		maskDS, err := datasets.NewMaskDataset(maskRows, *root, datasets.MaskOptions{
			Mapped:    true,
			Transform: datasets.Resize{Width: 256, Height: 256},
		})
		if err != nil {
			log.Fatalf("failed to create mask dataset: %v", err)
		}
		fmt.Printf("Total mask examples available: %d\n", maskDS.Len())

		n := min(4, maskDS.Len())
		if n > 0 {
			indices := make([]int, n)
			for i := range n {
				indices[i] = i
			}
			fmt.Printf("Loading batch of %d mask examples...\n", n)
			batch, err := maskDS.Batch(indices)
			if err != nil {
				log.Fatalf("failed to build mask batch: %v", err)
			}
			imgT, maskT, err := batch.ToGomlxTensors()
			if err != nil {
				log.Fatalf("failed to convert mask batch to gomlx tensors: %v", err)
			}
			fmt.Printf("  Image tensor: %s\n", imgT.Shape())
			fmt.Printf("  Mask tensor:  %s\n", maskT.Shape())
			if batch.Unknown > 0 {
				fmt.Printf("  Pixels with unknown category: %d\n", batch.Unknown)
			}
		}
	}

	fmt.Println()

	// Spectral dataset: calibrated reflectance, low-signal rows dropped.
	specRows, err := datasets.NewCSVRowTable(filepath.Join(*root, "data", "vast.csv"), *root)
	if err != nil {
		fmt.Printf("Note: Could not load spectral rows: %v\n", err)
		return
	}
	specDS, err := datasets.NewSpectralDataset(specRows, *root, datasets.DefaultSpectralOptions())
	if err != nil {
		log.Fatalf("failed to create spectral dataset: %v", err)
	}
	fmt.Printf("Total spectral rows available: %d\n", specDS.Len())

	m := min(8, specDS.Len())
	if m > 0 {
		indices := make([]int, m)
		for i := range m {
			indices[i] = i
		}
		fmt.Printf("Loading batch of %d spectral rows...\n", m)
		batch, err := specDS.Batch(indices)
		if err != nil {
			log.Fatalf("failed to build spectral batch: %v", err)
		}
		fmt.Printf("  Kept %d, skipped %d (mean readout too low)\n", batch.BatchSize, batch.Skipped)
		if batch.BatchSize > 0 {
			imgT, reflT, err := batch.ToGomlxTensors()
			if err != nil {
				log.Fatalf("failed to convert spectral batch to gomlx tensors: %v", err)
			}
			fmt.Printf("  Image tensor:       %s\n", imgT.Shape())
			fmt.Printf("  Reflectance tensor: %s\n", reflT.Shape())
		}
	}

	fmt.Println("\nExample completed successfully!")
}
