package datasets

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// RowTable provides ordered access to pairs of file paths. Row i holds the
// path of the input image (a) and of its label file (b).
type RowTable interface {
	Len() int
	Row(i int) (a, b string, err error)
}

// CSVRowTable is a RowTable backed by a CSV file with a header row. The first
// two columns hold the paths; any extra columns are ignored.
//
// It is immutable after construction and safe for concurrent use.
type CSVRowTable struct {
	// Path of the CSV file the table was loaded from.
	Path string

	// Root directory used to resolve relative paths.
	Root string

	a, b []string
}

// NewCSVRowTable reads the CSV file at csvPath. Relative paths stored in the
// table are resolved against root.
func NewCSVRowTable(csvPath, root string) (*CSVRowTable, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open row table %s", csvPath)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse row table %s", csvPath)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("row table %s has no header", csvPath)
	}
	if len(records[0]) < 2 {
		return nil, errors.Errorf("row table %s has %d columns, need at least 2", csvPath, len(records[0]))
	}
	t := &CSVRowTable{Path: csvPath, Root: root}
	if len(records) == 1 {
		// Header only.
		return t, nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to load row table %s", csvPath)
	}

	n := df.Nrow()
	t.a, t.b = make([]string, n), make([]string, n)
	for i := range n {
		t.a[i] = resolvePath(root, df.Elem(i, 0).String())
		t.b[i] = resolvePath(root, df.Elem(i, 1).String())
	}
	return t, nil
}

// Len returns the number of rows.
func (t *CSVRowTable) Len() int {
	return len(t.a)
}

// Row returns the two paths of row i.
func (t *CSVRowTable) Row(i int) (string, string, error) {
	if err := checkIndex(i, len(t.a)); err != nil {
		return "", "", err
	}
	return t.a[i], t.b[i], nil
}

// PathRowTable is an in-memory RowTable, mostly useful for tests and for
// callers that build the file list themselves.
type PathRowTable [][2]string

// Len returns the number of rows.
func (t PathRowTable) Len() int {
	return len(t)
}

// Row returns the two paths of row i.
func (t PathRowTable) Row(i int) (string, string, error) {
	if err := checkIndex(i, len(t)); err != nil {
		return "", "", err
	}
	return t[i][0], t[i][1], nil
}

// resolvePath joins relative paths to root. Absolute paths, and any path when
// root is empty, are returned as they are.
func resolvePath(root, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
