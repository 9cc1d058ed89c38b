package datasets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Auto-discovery helpers

// FindRowTable returns the first file matching any of the patterns.
func FindRowTable(patterns []string) (string, error) {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", errors.Errorf("no row table found in %v", patterns)
}

// FindCSVInDir returns the first regular .csv file in dir, in lexical order.
// Config uses it when the configured row table is a directory.
func FindCSVInDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list %s", dir)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errors.Errorf("no CSV files found in %s", dir)
}

// DefaultRowTablePatterns are the locations searched for a row table under
// root when none is configured.
func DefaultRowTablePatterns(root string) []string {
	return []string{
		filepath.Join(root, "data", "*.csv"),
		filepath.Join(root, "data", "*", "*.csv"),
		filepath.Join(root, "*.csv"),
	}
}
