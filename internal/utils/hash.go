package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultHashChunkSize is the read size used when hashing samples
const DefaultHashChunkSize = 1 << 20

// HashFile returns the hex SHA-256 digest of the file at path, streaming it
// in chunkSize reads.
func HashFile(path string, chunkSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	return HashReader(f, chunkSize)
}

// HashReader returns the hex SHA-256 digest of everything read from r
func HashReader(r io.Reader, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultHashChunkSize
	}

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to hash file: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
