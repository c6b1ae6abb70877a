// Package logging configures the commonlog backend for the bridge's
// package loggers.
package logging

import (
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/hybridge/config"

	_ "github.com/tliron/commonlog/simple"
)

var once sync.Once

// Configure applies the [log] section of cfg. Only the first call has any
// effect; later calls are ignored.
func Configure(cfg *config.Config) {
	once.Do(func() {
		if cfg == nil {
			cfg = config.Default()
		}
		var path *string
		if p := cfg.LogPath(); p != "" {
			path = &p
		}
		commonlog.Configure(cfg.Log.Verbosity, path)
		commonlog.GetLogger("hybridge").Infof("logging configured for %s", cfg.Bridge.Name)
	})
}
