package features

import (
	"debug/pe"
	"encoding/binary"
	"fmt"
	"os"
)

// ParseStatus tags the outcome of structural extraction
type ParseStatus int

const (
	// ParseOK means the container was parsed and all fields are populated
	ParseOK ParseStatus = iota
	// ParseFailed means the input is not a readable PE; fields are zero
	ParseFailed
	// ParserUnavailable means no parser was configured; fields are zero
	ParserUnavailable
)

func (s ParseStatus) String() string {
	switch s {
	case ParseOK:
		return "ok"
	case ParseFailed:
		return "parse_failed"
	case ParserUnavailable:
		return "parser_unavailable"
	default:
		return fmt.Sprintf("ParseStatus(%d)", int(s))
	}
}

// StructuralFeatures holds PE container metadata
type StructuralFeatures struct {
	NSections   int
	DLLCount    int
	NImports    int
	OverlaySize int64
	RsrcSize    int64
	Status      ParseStatus
	Err         error
}

// Map returns the features keyed by name
func (s StructuralFeatures) Map() map[string]float64 {
	return map[string]float64{
		"n_sections":   float64(s.NSections),
		"dll_count":    float64(s.DLLCount),
		"n_imports":    float64(s.NImports),
		"overlay_size": float64(s.OverlaySize),
		"rsrc_size":    float64(s.RsrcSize),
	}
}

// PEOpener opens a PE container. The returned file is closed by the caller.
type PEOpener func(path string) (*pe.File, error)

// StructuralExtractor extracts PE metadata without failing the analysis
type StructuralExtractor struct {
	open PEOpener
}

// NewStructuralExtractor creates an extractor backed by debug/pe
func NewStructuralExtractor() *StructuralExtractor {
	return &StructuralExtractor{open: pe.Open}
}

// NewStructuralExtractorWithOpener creates an extractor with a custom opener.
// A nil opener yields an extractor that always reports ParserUnavailable.
func NewStructuralExtractorWithOpener(open PEOpener) *StructuralExtractor {
	return &StructuralExtractor{open: open}
}

// ExtractStructural parses path with the default extractor
func ExtractStructural(path string) StructuralFeatures {
	return NewStructuralExtractor().Extract(path)
}

// Extract returns the structural features of the file at path. It never
// returns an error: any failure yields zero features tagged with a status.
func (e *StructuralExtractor) Extract(path string) (out StructuralFeatures) {
	if e == nil || e.open == nil {
		return StructuralFeatures{Status: ParserUnavailable}
	}

	// debug/pe can panic on some hostile section tables
	defer func() {
		if r := recover(); r != nil {
			out = StructuralFeatures{Status: ParseFailed, Err: fmt.Errorf("pe parser panic: %v", r)}
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		return StructuralFeatures{Status: ParseFailed, Err: err}
	}

	f, err := e.open(path)
	if err != nil {
		return StructuralFeatures{Status: ParseFailed, Err: err}
	}
	defer f.Close()

	dlls, imports, err := countImports(f)
	if err != nil {
		return StructuralFeatures{Status: ParseFailed, Err: fmt.Errorf("failed to read imports: %w", err)}
	}

	return StructuralFeatures{
		NSections:   len(f.Sections),
		DLLCount:    dlls,
		NImports:    imports,
		OverlaySize: overlaySize(f, info.Size()),
		RsrcSize:    resourceSize(f),
		Status:      ParseOK,
	}
}

const (
	importDescriptorSize = 20
	maxImportDescriptors = 1 << 12
	maxThunksPerLibrary  = 1 << 16
)

// countImports walks the import directory and returns the number of import
// descriptors and of non-zero thunks. Ordinal thunks count like named ones.
func countImports(f *pe.File) (dlls, imports int, err error) {
	var (
		dirs      []pe.DataDirectory
		thunkSize int
	)
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
		thunkSize = 4
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
		thunkSize = 8
	default:
		return 0, 0, nil
	}
	if len(dirs) <= pe.IMAGE_DIRECTORY_ENTRY_IMPORT || dirs[pe.IMAGE_DIRECTORY_ENTRY_IMPORT].VirtualAddress == 0 {
		return 0, 0, nil
	}

	img := &imageReader{file: f, data: make(map[*pe.Section][]byte)}
	rva := dirs[pe.IMAGE_DIRECTORY_ENTRY_IMPORT].VirtualAddress

	for i := 0; i < maxImportDescriptors; i++ {
		desc, err := img.read(rva+uint32(i*importDescriptorSize), importDescriptorSize)
		if err != nil {
			return 0, 0, err
		}
		originalFirstThunk := binary.LittleEndian.Uint32(desc[0:4])
		name := binary.LittleEndian.Uint32(desc[12:16])
		firstThunk := binary.LittleEndian.Uint32(desc[16:20])
		if originalFirstThunk == 0 && name == 0 && firstThunk == 0 {
			break
		}
		dlls++

		table := originalFirstThunk
		if table == 0 {
			table = firstThunk
		}
		if table == 0 {
			continue
		}
		for j := 0; j < maxThunksPerLibrary; j++ {
			thunk, err := img.read(table+uint32(j*thunkSize), thunkSize)
			if err != nil {
				return 0, 0, err
			}
			if isZero(thunk) {
				break
			}
			imports++
		}
	}
	return dlls, imports, nil
}

// imageReader reads byte ranges of the mapped image by RVA
type imageReader struct {
	file *pe.File
	data map[*pe.Section][]byte
}

func (r *imageReader) read(rva uint32, n int) ([]byte, error) {
	for _, s := range r.file.Sections {
		size := max(s.VirtualSize, s.Size)
		if rva < s.VirtualAddress || rva-s.VirtualAddress >= size {
			continue
		}
		data, ok := r.data[s]
		if !ok {
			var err error
			if data, err = s.Data(); err != nil {
				return nil, fmt.Errorf("failed to read section %s: %w", s.Name, err)
			}
			r.data[s] = data
		}
		off := int(rva - s.VirtualAddress)
		out := make([]byte, n)
		// bytes past the raw data are zero-filled in the loaded image
		if off < len(data) {
			copy(out, data[off:])
		}
		return out, nil
	}
	return nil, fmt.Errorf("rva %#x is outside every section", rva)
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func overlaySize(f *pe.File, fileSize int64) int64 {
	var end int64
	for _, s := range f.Sections {
		if e := int64(s.Offset) + int64(s.Size); e > end {
			end = e
		}
	}
	if len(f.Sections) == 0 || fileSize <= end {
		return 0
	}
	return fileSize - end
}

// resourceSize prefers the resource data directory and falls back to the
// raw size of a .rsrc section.
func resourceSize(f *pe.File) int64 {
	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))]
	}
	if len(dirs) > pe.IMAGE_DIRECTORY_ENTRY_RESOURCE && dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE].Size > 0 {
		return int64(dirs[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE].Size)
	}

	if s := f.Section(".rsrc"); s != nil {
		return int64(s.Size)
	}
	return 0
}
