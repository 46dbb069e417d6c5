package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// excludedColumns are identifier and label columns of the reference dataset
var excludedColumns = map[string]struct{}{
	"label":      {},
	"path":       {},
	"filename":   {},
	"sha256":     {},
	"Unnamed: 0": {},
	"index":      {},
}

// Schema is the ordered list of feature names a classifier expects.
// It is immutable once constructed.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from an ordered list of names
func NewSchema(names []string) *Schema {
	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(s.names, names)
	for i, n := range s.names {
		if _, dup := s.index[n]; !dup {
			s.index[n] = i
		}
	}
	return s
}

// LoadSchema reads the header of the reference CSV at path
func LoadSchema(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature schema: %w", err)
	}
	defer f.Close()

	return ParseSchema(f)
}

// ParseSchema reads a CSV header and drops identifier and label columns.
// Empty header cells are named "Unnamed: <position>".
func ParseSchema(r io.Reader) (*Schema, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("feature schema has no header")
		}
		return nil, fmt.Errorf("failed to read feature schema header: %w", err)
	}

	names := make([]string, 0, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if col == "" {
			col = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, skip := excludedColumns[col]; skip {
			continue
		}
		names = append(names, col)
	}

	if len(names) == 0 {
		return nil, errors.New("feature schema has no feature columns")
	}

	return NewSchema(names), nil
}

// Len returns the number of features
func (s *Schema) Len() int {
	return len(s.names)
}

// Names returns a copy of the feature names in order
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Index returns the position of name, or -1
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Assemble returns a vector of exactly Len entries in schema order.
// Names missing from values are 0.
func (s *Schema) Assemble(values map[string]float64) []float32 {
	vec := make([]float32, len(s.names))
	for i, name := range s.names {
		vec[i] = float32(values[name])
	}
	return vec
}
