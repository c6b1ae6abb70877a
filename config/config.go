// Package config handles hybridge.toml bridge configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/hybridge/host"
	"github.com/chazu/hybridge/registry"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "hybridge.toml"

// Config represents a hybridge.toml file.
type Config struct {
	Bridge    Bridge    `toml:"bridge"`
	Accessors Accessors `toml:"accessors"`
	Registry  Registry  `toml:"registry"`
	Cache     Cache     `toml:"cache"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the hybridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Bridge names the bridge instance in logs.
type Bridge struct {
	Name string `toml:"name"`
}

// Accessors overrides the host's bean accessor prefixes. Leaving both empty
// keeps the host's own convention.
type Accessors struct {
	Getter string `toml:"getter"`
	Setter string `toml:"setter"`
}

// Registry configures the identity registry.
type Registry struct {
	PruneThreshold int `toml:"prune-threshold"`
}

// Cache configures the meta-object cache.
type Cache struct {
	// Preload lists classes to reflect at startup.
	Preload []string `toml:"preload"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no hybridge.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Bridge.Name == "" {
		c.Bridge.Name = "hybridge"
	}
	if c.Registry.PruneThreshold == 0 {
		c.Registry.PruneThreshold = registry.DefaultPruneThreshold
	}
}

// Load parses a hybridge.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a hybridge.toml file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Registry.PruneThreshold < 0 {
		errs = append(errs, fmt.Errorf("registry.prune-threshold must not be negative, got %d", c.Registry.PruneThreshold))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity))
	}
	if c.Accessors.Getter != "" && c.Accessors.Getter == c.Accessors.Setter {
		errs = append(errs, fmt.Errorf("accessors.getter and accessors.setter are both %q", c.Accessors.Getter))
	}
	for _, name := range c.Cache.Preload {
		if name == "" {
			errs = append(errs, errors.New("cache.preload contains an empty class name"))
			break
		}
	}
	return errors.Join(errs...)
}

// Convention returns the accessor convention to use with rt.
func (c *Config) Convention(rt host.Runtime) host.Convention {
	if c.Accessors.Getter == "" && c.Accessors.Setter == "" {
		return rt.Convention()
	}
	return host.Convention{Getter: c.Accessors.Getter, Setter: c.Accessors.Setter}
}

// LogPath returns the absolute log file path, or "" for standard error.
func (c *Config) LogPath() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) || c.Dir == "" {
		return c.Log.File
	}
	return filepath.Join(c.Dir, c.Log.File)
}
