package features

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChunkSize is the window width used for per-chunk entropy
const ChunkSize = 1024

// EntropyStats holds byte-level statistics of a sample
type EntropyStats struct {
	FileSize    int64
	FileEntropy float64
	WindowMean  float64
	WindowStd   float64
	WindowMin   float64
	WindowMax   float64
	Windows     int
}

// ShannonEntropy returns the entropy in bits per byte of a byte-frequency
// table holding total observations. It returns 0 when total is 0.
func ShannonEntropy(counts *[256]uint64, total uint64) float64 {
	if total == 0 {
		return 0.0
	}

	n := float64(total)
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// AnalyzeEntropy streams the file at path and computes its entropy statistics
func AnalyzeEntropy(path string) (*EntropyStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample: %w", err)
	}
	defer f.Close()

	return AnalyzeEntropyReader(f)
}

// AnalyzeEntropyReader reads r sequentially in ChunkSize chunks. Whole-file
// entropy is computed from the accumulated counts, never from chunk averages.
func AnalyzeEntropyReader(r io.Reader) (*EntropyStats, error) {
	var (
		global  [256]uint64
		size    uint64
		windows []float64
		buf     = make([]byte, ChunkSize)
	)

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			var local [256]uint64
			for _, b := range buf[:n] {
				local[b]++
				global[b]++
			}
			size += uint64(n)
			windows = append(windows, ShannonEntropy(&local, uint64(n)))
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sample: %w", err)
		}
	}

	stats := &EntropyStats{
		FileSize:    int64(size),
		FileEntropy: ShannonEntropy(&global, size),
		Windows:     len(windows),
	}

	// An empty sample has no windows; its window statistics stay zero.
	if len(windows) > 0 {
		stats.WindowMean, stats.WindowStd = stat.PopMeanStdDev(windows, nil)
		stats.WindowMin = floats.Min(windows)
		stats.WindowMax = floats.Max(windows)
	}

	return stats, nil
}

// Map returns the statistics keyed by feature name
func (s *EntropyStats) Map() map[string]float64 {
	return map[string]float64{
		"file_size":    float64(s.FileSize),
		"file_entropy": s.FileEntropy,
		"sw_ent_mean":  s.WindowMean,
		"sw_ent_std":   s.WindowStd,
		"sw_ent_min":   s.WindowMin,
		"sw_ent_max":   s.WindowMax,
	}
}
