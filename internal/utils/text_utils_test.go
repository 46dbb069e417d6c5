package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestTextProcessor(t *testing.T) {
	t.Parallel()

	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		fn   func() string
		want string
	}{
		{"no limit", func() string { return tp.TruncateText("hello", 0) }, "hello"},
		{"within limit", func() string { return tp.TruncateText("hello", 5) }, "hello"},
		{"ascii cut", func() string { return tp.TruncateText("hello world", 5) }, "hello [truncated]"},
		{"rune boundary", func() string { return tp.TruncateText("héllo", 2) }, "h [truncated]"},
		{"invalid bytes", func() string { return tp.SanitizeUTF8("ok\xffok") }, "okok"},
		{"header folding", func() string { return tp.HeaderValue("High\r\nentropy\tand  overlay", 0) }, "High entropy and overlay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextProcessor_ProcessTextIsValidUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	in := strings.Repeat("ransom\xe2\x82", 50)
	out := tp.ProcessText(in, 64)
	if !utf8.ValidString(out) {
		t.Errorf("ProcessText returned invalid UTF-8: %q", out)
	}
	if len(out) > 64+len(" [truncated]") {
		t.Errorf("ProcessText returned %d bytes", len(out))
	}
}
