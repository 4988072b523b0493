package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.ModelsDir != def.ModelsDir || cfg.MaxDepth != def.MaxDepth || cfg.MaxSteps != def.MaxSteps {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, def)
	}
	if len(cfg.BaseClasses) != 2 {
		t.Errorf("base classes = %v", cfg.BaseClasses)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `models_dir: engines/core/app/models
base_classes: [CoreRecord]
exclude:
  - "concerns/"
max_depth: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelsDir != "engines/core/app/models" {
		t.Errorf("models_dir = %q", cfg.ModelsDir)
	}
	if len(cfg.BaseClasses) != 1 || cfg.BaseClasses[0] != "CoreRecord" {
		t.Errorf("base_classes = %v", cfg.BaseClasses)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "concerns/" {
		t.Errorf("exclude = %v", cfg.Exclude)
	}
	if cfg.MaxDepth != 4 {
		t.Errorf("max_depth = %d", cfg.MaxDepth)
	}
	// Untouched keys keep defaults.
	if cfg.MaxSteps != Default().MaxSteps {
		t.Errorf("max_steps = %d", cfg.MaxSteps)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "max_depth: [not a number\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"negative depth", "max_depth: -1\n", "max_depth"},
		{"zero steps", "max_steps: 0\n", "max_steps"},
		{"empty models dir", "models_dir: \"\"\n", "models_dir"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}
