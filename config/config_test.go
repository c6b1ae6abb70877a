package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/host/dynhost"
	"github.com/chazu/hybridge/registry"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[bridge]
name = "inventory"

[accessors]
getter = "fetch"
setter = "store"

[registry]
prune-threshold = 64

[cache]
preload = ["inventory.Item", "inventory.Stock"]

[log]
verbosity = 2
file = "bridge.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Bridge.Name != "inventory" {
		t.Errorf("bridge name = %q, want inventory", c.Bridge.Name)
	}
	if c.Registry.PruneThreshold != 64 {
		t.Errorf("prune-threshold = %d, want 64", c.Registry.PruneThreshold)
	}
	if diff := cmp.Diff([]string{"inventory.Item", "inventory.Stock"}, c.Cache.Preload); diff != "" {
		t.Errorf("preload mismatch (-want +got):\n%s", diff)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if want := filepath.Join(c.Dir, "bridge.log"); c.LogPath() != want {
		t.Errorf("LogPath = %q, want %q", c.LogPath(), want)
	}
	want := host.Convention{Getter: "fetch", Setter: "store"}
	if got := c.Convention(dynhost.NewRuntime()); got != want {
		t.Errorf("Convention = %+v, want %+v", got, want)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[bridge]\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Bridge.Name != "hybridge" {
		t.Errorf("default name = %q", c.Bridge.Name)
	}
	if c.Registry.PruneThreshold != registry.DefaultPruneThreshold {
		t.Errorf("default prune-threshold = %d", c.Registry.PruneThreshold)
	}
	if c.LogPath() != "" {
		t.Errorf("default LogPath = %q, want stderr", c.LogPath())
	}
	rt := dynhost.NewRuntime()
	if got := c.Convention(rt); got != rt.Convention() {
		t.Errorf("Convention = %+v, want the host's", got)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[bridge\n", "parse error"},
		{"unknown key", "[bridge]\ncolour = \"red\"\n", "unknown key"},
		{"negative threshold", "[registry]\nprune-threshold = -1\n", "prune-threshold"},
		{"negative verbosity", "[log]\nverbosity = -3\n", "verbosity"},
		{"same prefixes", "[accessors]\ngetter = \"x\"\nsetter = \"x\"\n", "accessors"},
		{"empty preload", "[cache]\npreload = [\"\"]\n", "preload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[bridge]\nname = \"outer\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil || c.Bridge.Name != "outer" {
		t.Fatalf("FindAndLoad = %+v, want the outer config", c)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Errorf("Default() is invalid: %v", err)
	}
	if c.Dir != "" {
		t.Errorf("Default().Dir = %q", c.Dir)
	}
}
