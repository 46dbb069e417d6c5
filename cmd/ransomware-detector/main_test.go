package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/ransomware-detector/internal/di"
)

func TestExecute_GenericFailureMessage(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "sample.exe")
	if err := os.WriteFile(sample, []byte("MZ"), 0o644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, "features.csv")
	if err := os.WriteFile(csvPath, []byte("file_entropy,n_sections,label\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("narrator:\n  provider: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		flags *di.CLIFlags
	}{
		{
			name: "missing schema",
			flags: &di.CLIFlags{
				InputFile:   sample,
				ConfigFile:  configPath,
				FeaturesCSV: filepath.Join(dir, "secret-missing.csv"),
				Threshold:   -1,
			},
		},
		{
			name: "missing model",
			flags: &di.CLIFlags{
				InputFile:   sample,
				ConfigFile:  configPath,
				FeaturesCSV: csvPath,
				ModelPath:   filepath.Join(dir, "secret-missing.json"),
				OutputDir:   dir,
				Threshold:   -1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container, err := di.BuildCLIContainer(tt.flags)
			if err != nil {
				t.Fatal(err)
			}

			var stderr bytes.Buffer
			if code := execute(container, tt.flags, &stderr); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if got := stderr.String(); got != failureMessage+"\n" {
				t.Errorf("stderr = %q, want %q", got, failureMessage+"\n")
			}
			if strings.Contains(stderr.String(), "secret-missing") {
				t.Error("stderr leaks error details")
			}
		})
	}
}
