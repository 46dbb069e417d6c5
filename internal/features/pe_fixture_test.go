package features

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fixtureImport is one import descriptor. Thunks are raw 32-bit entries;
// named entries are generated for names, ordinals are OR'd with the flag.
type fixtureImport struct {
	DLL      string
	Names    []string
	Ordinals []uint16
	// IATOnly leaves OriginalFirstThunk zero so only FirstThunk is set
	IATOnly bool
}

// writeMinimalPE writes a PE32 image with two sections and no imports.
// overlay bytes are appended after the last section; rsrc sets the size of
// the resource data directory.
func writeMinimalPE(t *testing.T, dir string, overlay int, rsrc uint32) string {
	t.Helper()
	return writePE(t, dir, overlay, rsrc, nil)
}

// buildImportSection lays out descriptors, thunk tables, hint/name entries
// and DLL names starting at rva. It returns the section bytes and the size
// of the descriptor array.
func buildImportSection(t *testing.T, rva uint32, imports []fixtureImport) ([]byte, uint32) {
	t.Helper()

	descSize := uint32(20 * (len(imports) + 1))
	var tail bytes.Buffer
	tailRVA := func() uint32 { return rva + descSize + uint32(tail.Len()) }

	type desc struct{ oft, name, ft uint32 }
	descs := make([]desc, len(imports))

	for i, imp := range imports {
		var thunks []uint32
		for _, n := range imp.Names {
			hintRVA := tailRVA()
			tail.Write([]byte{0, 0})
			tail.WriteString(n)
			tail.WriteByte(0)
			if tail.Len()%2 == 1 {
				tail.WriteByte(0)
			}
			thunks = append(thunks, hintRVA)
		}
		for _, o := range imp.Ordinals {
			thunks = append(thunks, 0x80000000|uint32(o))
		}

		for tail.Len()%4 != 0 {
			tail.WriteByte(0)
		}
		tableRVA := tailRVA()
		for _, th := range append(thunks, 0) {
			mustWrite(t, &tail, th)
		}

		nameRVA := tailRVA()
		tail.WriteString(imp.DLL)
		tail.WriteByte(0)

		descs[i] = desc{oft: tableRVA, name: nameRVA, ft: tableRVA}
		if imp.IATOnly {
			descs[i].oft = 0
		}
	}

	var out bytes.Buffer
	for _, d := range descs {
		mustWrite(t, &out, [5]uint32{d.oft, 0, 0, d.name, d.ft})
	}
	mustWrite(t, &out, [5]uint32{})
	out.Write(tail.Bytes())
	return out.Bytes(), descSize
}

// writePE is writeMinimalPE with an optional import directory stored at the
// start of .text
func writePE(t *testing.T, dir string, overlay int, rsrc uint32, imports []fixtureImport) string {
	t.Helper()

	const (
		peOffset   = 0x40
		rawAlign   = 0x200
		sectionLen = 0x200
	)

	var buf bytes.Buffer

	dos := make([]byte, peOffset)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], peOffset)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     2,
		SizeOfOptionalHeader: 224,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
	}
	mustWrite(t, &buf, fh)

	oh := pe.OptionalHeader32{
		Magic:               0x10b,
		AddressOfEntryPoint: 0x1000,
		ImageBase:           0x400000,
		SectionAlignment:    0x1000,
		FileAlignment:       rawAlign,
		SizeOfImage:         0x3000,
		SizeOfHeaders:       rawAlign,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes: 16,
	}
	if rsrc > 0 {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE] = pe.DataDirectory{VirtualAddress: 0x2000, Size: rsrc}
	}
	var text []byte
	if len(imports) > 0 {
		var size uint32
		text, size = buildImportSection(t, 0x1000, imports)
		if len(text) > sectionLen {
			t.Fatalf("import fixture too large: %d bytes", len(text))
		}
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_IMPORT] = pe.DataDirectory{VirtualAddress: 0x1000, Size: size}
	}
	mustWrite(t, &buf, oh)

	sections := []struct {
		name string
		va   uint32
	}{
		{".text", 0x1000},
		{".rsrc", 0x2000},
	}
	for i, s := range sections {
		var sh pe.SectionHeader32
		copy(sh.Name[:], s.name)
		sh.VirtualSize = sectionLen
		sh.VirtualAddress = s.va
		sh.SizeOfRawData = sectionLen
		sh.PointerToRawData = uint32(rawAlign + i*sectionLen)
		sh.Characteristics = pe.IMAGE_SCN_MEM_READ
		mustWrite(t, &buf, sh)
	}

	buf.Write(make([]byte, rawAlign-buf.Len()))
	for i := 0; i < len(sections); i++ {
		if i == 0 && text != nil {
			buf.Write(text)
			buf.Write(make([]byte, sectionLen-len(text)))
			continue
		}
		buf.Write(bytes.Repeat([]byte{byte(0x90 + i)}, sectionLen))
	}
	buf.Write(bytes.Repeat([]byte{0xcc}, overlay))

	path := filepath.Join(dir, "minimal.exe")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func mustWrite(t *testing.T, buf *bytes.Buffer, v any) {
	t.Helper()
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}
}
