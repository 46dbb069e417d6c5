package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile_StableAcrossChunkSizes(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("ransomware-detector"), 100000)
	path := filepath.Join(t.TempDir(), "sample.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	want, err := HashFile(path, DefaultHashChunkSize)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	for _, size := range []int{1, 7, 1024, 4096, 65536, 0, len(data) * 2} {
		for i := 0; i < 2; i++ {
			got, err := HashFile(path, size)
			if err != nil {
				t.Fatalf("chunk %d: %v", size, err)
			}
			if got != want {
				t.Errorf("chunk %d: digest %s, want %s", size, got, want)
			}
		}
	}
}

func TestHashReader_KnownDigest(t *testing.T) {
	got, err := HashReader(bytes.NewReader(nil), 16)
	if err != nil {
		t.Fatal(err)
	}
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != empty {
		t.Errorf("digest of empty input = %s, want %s", got, empty)
	}

	if _, err := HashFile(filepath.Join(t.TempDir(), "missing"), 16); err == nil {
		t.Error("expected error for missing file")
	}
}
