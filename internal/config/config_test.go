package config

import (
	"os"
	"path/filepath"
	"testing"

	"navbake"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Build.CellSize != 0.3 {
		t.Errorf("default cellSize = %g, want 0.3", cfg.Build.CellSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Build.MaxVertsPerPoly != 6 {
		t.Errorf("maxVertsPerPoly = %d, want default 6", cfg.Build.MaxVertsPerPoly)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bake.yaml")
	body := `
build:
  cellSize: 0.2
  partition: monotone
  agent:
    radius: 0.4
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Build.CellSize != 0.2 {
		t.Errorf("cellSize = %g, want 0.2 from file", cfg.Build.CellSize)
	}
	if cfg.Build.Partition != navbake.PartitionMonotone {
		t.Errorf("partition = %v, want monotone", cfg.Build.Partition)
	}
	if cfg.Build.Agent.Radius != 0.4 {
		t.Errorf("agent radius = %g, want 0.4 from file", cfg.Build.Agent.Radius)
	}
	// Untouched fields keep their defaults.
	if cfg.Build.CellHeight != 0.2 {
		t.Errorf("cellHeight = %g, want default 0.2", cfg.Build.CellHeight)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadPartition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bake.yaml")
	if err := os.WriteFile(path, []byte("build:\n  partition: voronoi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("accepted unknown partition method")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("accepted missing config file")
	}
}
