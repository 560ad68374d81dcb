package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// ReadBitMatrixCSV parses a CSV of 0/1 cells into a BitMatrix. When header
// is true the first record is skipped.
func ReadBitMatrixCSV(r io.Reader, header bool) (*BitMatrix, error) {
	records, err := readCSV(r, header)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return NewBitMatrix(0, 0), nil
	}

	m := NewBitMatrix(len(records), len(records[0]))
	for i, record := range records {
		if len(record) != len(records[0]) {
			return nil, fmt.Errorf("csv row %d has %d cells, want %d", i, len(record), len(records[0]))
		}
		for j, cell := range record {
			switch strings.TrimSpace(cell) {
			case "0":
			case "1":
				m.Set(i, j, true)
			default:
				return nil, fmt.Errorf("csv cell (%d, %d) is %q, want 0 or 1", i, j, cell)
			}
		}
	}
	return m, nil
}

// ReadDenseCSV parses a CSV of floats into a gonum dense matrix. When
// header is true the first record is skipped.
func ReadDenseCSV(r io.Reader, header bool) (*mat.Dense, error) {
	records, err := readCSV(r, header)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv contains no data rows")
	}

	rows, cols := len(records), len(records[0])
	dense := mat.NewDense(rows, cols, nil)
	for i, record := range records {
		if len(record) != cols {
			return nil, fmt.Errorf("csv row %d has %d cells, want %d", i, len(record), cols)
		}
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("csv cell (%d, %d): %w", i, j, err)
			}
			dense.Set(i, j, v)
		}
	}
	return dense, nil
}

// ReadNpy reads a NumPy .npy array into a gonum dense matrix.
func ReadNpy(r io.Reader) (*mat.Dense, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	dense := &mat.Dense{}
	if err := nr.Read(dense); err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	return dense, nil
}

// OpenBitMatrix reads a binarized matrix from a file. Supported formats,
// chosen by extension: .csv, .csv.gz (values 0/1, no header) and .npy
// (values thresholded at 0.5).
func OpenBitMatrix(path string) (*BitMatrix, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if strings.HasSuffix(path, ".npy") {
		dense, err := ReadNpy(r)
		if err != nil {
			return nil, err
		}
		rows, cols := dense.Dims()
		m := NewBitMatrix(rows, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				m.Set(i, j, dense.At(i, j) > 0.5)
			}
		}
		return m, nil
	}
	return ReadBitMatrixCSV(r, false)
}

// OpenDense reads a float matrix from a .csv, .csv.gz or .npy file.
func OpenDense(path string) (*mat.Dense, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if strings.HasSuffix(path, ".npy") {
		return ReadNpy(r)
	}
	return ReadDenseCSV(r, false)
}

func openMaybeGzip(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if filepath.Ext(path) != ".gz" {
		return f, f.Close, nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("gzip: %w", err)
	}
	closeFn := func() error {
		if err := zr.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return zr, closeFn, nil
}

func readCSV(r io.Reader, header bool) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if header && len(records) > 0 {
		records = records[1:]
	}
	return records, nil
}
