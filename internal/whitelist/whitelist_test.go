package whitelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const (
	known = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	other = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
)

func TestChecker_IsAllowlisted(t *testing.T) {
	t.Parallel()

	c := NewChecker([]string{"  " + strings.ToUpper(known) + " ", "not-a-digest", "zz" + known[2:]}, zap.NewNop())

	tests := []struct {
		digest string
		want   bool
	}{
		{known, true},
		{strings.ToUpper(known), true},
		{other, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsAllowlisted(tt.digest); got != tt.want {
			t.Errorf("IsAllowlisted(%q) = %v, want %v", tt.digest, got, tt.want)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestChecker_LoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "allowlist.txt")
	body := "# vendor installers\n\n" + other + "  setup.exe\n" + known + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewChecker(nil, nil)
	if c.IsAllowlisted(known) {
		t.Fatal("empty checker matched")
	}
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !c.IsAllowlisted(known) || !c.IsAllowlisted(other) {
		t.Error("loaded digests not matched")
	}

	if err := c.LoadFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
