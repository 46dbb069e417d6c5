package whitelist

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether a sample digest is a known-good SHA-256
type Checker struct {
	digests map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new allowlist checker. Invalid digests are skipped.
func NewChecker(digests []string, logger *zap.Logger) *Checker {
	c := &Checker{
		digests: make(map[string]struct{}, len(digests)),
		logger:  logger,
	}
	for _, d := range digests {
		c.add(d)
	}

	if len(c.digests) > 0 && logger != nil {
		logger.Info("Initialized hash allowlist", zap.Int("entries", len(c.digests)))
	}
	return c
}

// LoadFile adds one digest per line from path. Blank lines and lines
// starting with '#' are ignored.
func (c *Checker) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open allowlist: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	added := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// "sha256  filename" as written by sha256sum
		if i := strings.IndexAny(line, " \t"); i > 0 {
			line = line[:i]
		}
		if c.add(line) {
			added++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read allowlist: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("Loaded allowlist file", zap.String("path", path), zap.Int("entries", added))
	}
	return nil
}

func (c *Checker) add(digest string) bool {
	d := normalize(digest)
	if len(d) != 64 {
		if c.logger != nil && d != "" {
			c.logger.Warn("Ignoring malformed allowlist entry", zap.String("entry", digest))
		}
		return false
	}
	if _, err := hex.DecodeString(d); err != nil {
		return false
	}
	c.digests[d] = struct{}{}
	return true
}

// IsAllowlisted checks if the digest is in the allowlist
func (c *Checker) IsAllowlisted(sha256 string) bool {
	if len(c.digests) == 0 {
		return false
	}

	_, ok := c.digests[normalize(sha256)]
	if ok && c.logger != nil {
		c.logger.Debug("Digest is allowlisted", zap.String("sha256", sha256))
	}
	return ok
}

// Len returns the number of entries
func (c *Checker) Len() int {
	return len(c.digests)
}

func normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}
