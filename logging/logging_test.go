package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/hybridge/config"
)

func TestConfigureOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Dir = dir
	cfg.Log.Verbosity = 1
	cfg.Log.File = "bridge.log"

	Configure(cfg)
	Configure(nil)

	if _, err := os.Stat(filepath.Join(dir, "bridge.log")); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}
