package artifacts

import (
	"fmt"
	"os"

	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/sbinet/npyio"
)

// StandardScaler applies (x - mean) / scale per column
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler creates a scaler from fitted parameters. Zero scale
// entries are treated as 1 so constant columns map to zero.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler parameter lengths differ: mean=%d scale=%d", len(mean), len(scale))
	}
	if len(mean) == 0 {
		return nil, fmt.Errorf("scaler parameters are empty")
	}

	s := &StandardScaler{
		mean:  make([]float64, len(mean)),
		scale: make([]float64, len(scale)),
	}
	copy(s.mean, mean)
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// LoadStandardScaler reads mean and scale arrays from .npy files
func LoadStandardScaler(meanPath, scalePath string) (*StandardScaler, error) {
	mean, err := readNPY(meanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler mean: %w", err)
	}
	scale, err := readNPY(scalePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler scale: %w", err)
	}
	return NewStandardScaler(mean, scale)
}

func readNPY(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data []float64
	if err := npyio.Read(f, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// NumFeatures returns the width the scaler was fitted on
func (s *StandardScaler) NumFeatures() int {
	return len(s.mean)
}

// Transform scales every row. Rows of the wrong width yield
// core.ErrDimensionMismatch.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("%w: row %d has %d features, scaler expects %d",
				core.ErrDimensionMismatch, i, len(row), len(s.mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}
