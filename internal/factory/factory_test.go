package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/ransomware-detector/internal/adapters/filter"
	"github.com/mikey/ransomware-detector/internal/config"
	"go.uber.org/zap"
)

func newTestConfig(t *testing.T, values map[string]interface{}) *config.Config {
	t.Helper()
	cfg := config.NewFromViper(config.NewEmptyViper())
	for k, v := range values {
		cfg.Set(k, v)
	}
	return cfg
}

func TestCacheFactory(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		wantErr bool
	}{
		{"memory", "memory", false},
		{"unknown", "redis", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t, map[string]interface{}{"cache.type": tt.typ})
			c, err := NewCacheFactory(cfg, zap.NewNop()).CreateCacheRepository()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if c != nil {
				c.Stop()
			}
		})
	}
}

func TestDetectorFactory_ModelOpener(t *testing.T) {
	for _, format := range []string{"json", "onnx"} {
		cfg := newTestConfig(t, map[string]interface{}{"artifacts.model_format": format})
		if _, err := NewDetectorFactory(cfg, zap.NewNop()).CreateModelOpener(); err != nil {
			t.Errorf("format %s: %v", format, err)
		}
	}

	cfg := newTestConfig(t, map[string]interface{}{"artifacts.model_format": "pickle"})
	if _, err := NewDetectorFactory(cfg, zap.NewNop()).CreateModelOpener(); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestDetectorFactory_SchemaAndAllowlist(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "features.csv")
	if err := os.WriteFile(csvPath, []byte("sha256,file_entropy,n_sections,label\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	listPath := filepath.Join(dir, "allow.txt")
	digest := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if err := os.WriteFile(listPath, []byte(digest+"  empty.bin\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := newTestConfig(t, map[string]interface{}{
		"artifacts.features_csv":  csvPath,
		"detection.allowlist_file": listPath,
	})
	f := NewDetectorFactory(cfg, zap.NewNop())

	schema, err := f.CreateSchema()
	if err != nil {
		t.Fatal(err)
	}
	if schema.Len() != 2 {
		t.Errorf("schema len = %d, want 2", schema.Len())
	}

	allow, err := f.CreateAllowlist()
	if err != nil {
		t.Fatal(err)
	}
	if !allow.IsAllowlisted(digest) {
		t.Error("digest from file not allowlisted")
	}

	loader, err := f.CreateArtifactLoader()
	if err != nil {
		t.Fatal(err)
	}
	if f.CreatePredictor(schema, loader) == nil {
		t.Error("nil predictor")
	}
	if f.CreateExplainer(schema, loader) == nil {
		t.Error("explainer enabled by default")
	}
	cfg.Set("explain.enabled", false)
	if f.CreateExplainer(schema, loader) != nil {
		t.Error("explainer should be disabled")
	}
}

func TestNarratorFactory(t *testing.T) {
	cfg := newTestConfig(t, nil)
	f := NewNarratorFactory(cfg, zap.NewNop(), nil)

	n, err := f.CreateNarrator(context.Background())
	if err != nil || n != nil {
		t.Fatalf("provider none: narrator=%v err=%v", n, err)
	}

	cfg.Set("narrator.provider", "openai")
	if _, err := f.CreateNarrator(context.Background()); err == nil {
		t.Error("expected error without an OpenAI API key")
	}

	cfg.Set("narrator.provider", "parrot")
	if _, err := f.CreateNarrator(context.Background()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFilterFactory(t *testing.T) {
	cfg := newTestConfig(t, map[string]interface{}{"server.filter_type": "cli"})
	sf, err := NewFilterFactory(cfg, zap.NewNop(), nil, nil).CreateSampleFilter()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sf.(*filter.CliFilter); !ok {
		t.Errorf("got %T, want *filter.CliFilter", sf)
	}

	cfg.Set("server.filter_type", "postfix")
	sf, err = NewFilterFactory(cfg, zap.NewNop(), nil, nil).CreateSampleFilter()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sf.(*filter.PostfixFilter); !ok {
		t.Errorf("got %T, want *filter.PostfixFilter", sf)
	}
}
