package di

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/ransomware-detector/internal/config"
	"github.com/mikey/ransomware-detector/internal/core"
	"github.com/mikey/ransomware-detector/internal/ports"
)

func TestRegisterFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := registerFlags(fs)
	if err := fs.Parse([]string{"-file", "a.exe", "-explain", "-threshold", "0.7", "-model", "m.json"}); err != nil {
		t.Fatal(err)
	}
	if flags.InputFile != "a.exe" || !flags.Explain || flags.Threshold != 0.7 || flags.ModelPath != "m.json" {
		t.Errorf("flags = %+v", flags)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	if err := applyFlags(cfg, &CLIFlags{Threshold: -1, OutputDir: "out"}); err != nil {
		t.Fatal(err)
	}
	if got := cfg.GetDetection().Threshold; got != 0.5 {
		t.Errorf("threshold = %v, want default 0.5", got)
	}
	if got := cfg.GetExplain().OutputDir; got != "out" {
		t.Errorf("output dir = %q", got)
	}
	if got := cfg.GetString("server.filter_type"); got != "cli" {
		t.Errorf("filter type = %q", got)
	}

	if err := applyFlags(cfg, &CLIFlags{Threshold: 1.5}); err == nil {
		t.Error("expected error for threshold > 1")
	}
}

func TestBuildCLIContainer(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "features.csv")
	if err := os.WriteFile(csvPath, []byte("file_entropy,n_sections,label\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	model := map[string]any{
		"format":        "logistic",
		"n_features_in": 2,
		"classes":       []int{0, 1},
		"coef":          []float64{1, 0},
		"intercept":     0.0,
	}
	data, _ := json.Marshal(model)
	modelPath := filepath.Join(dir, "model.json")
	if err := os.WriteFile(modelPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("narrator:\n  provider: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	container, err := BuildCLIContainer(&CLIFlags{
		ConfigFile:  configPath,
		ModelPath:   modelPath,
		FeaturesCSV: csvPath,
		OutputDir:   dir,
		Threshold:   -1,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = container.Invoke(func(service *core.DetectorService, f ports.SampleFilter) {
		if service == nil || f == nil {
			t.Error("nil service or filter")
		}
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
}
