package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestFileLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "bake.log")
	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}

	log := New("debug", cfg, false)
	log.Info("bake started", zap.String("mesh", "level01.obj"))
	log.Debug("stage done")
	if err := log.Sync(); err != nil {
		t.Logf("sync: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "bake started") || !strings.Contains(out, "stage done") {
		t.Errorf("log file missing entries:\n%s", out)
	}
}

func TestNoCoresIsNop(t *testing.T) {
	log := New("info", FileConfig{}, false)
	// Must be safe to use even though nothing is configured.
	log.Info("dropped")
}

func TestParseLevel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"debug", "debug"},
		{"warn", "warn"},
		{"error", "error"},
		{"info", "info"},
		{"bogus", "info"},
		{"", "info"},
	}
	for _, tc := range cases {
		in, want := tc.in, tc.want
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
