// hybridge CLI - describes host classes the way the bridge exposes them
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/hybridge/config"
	"github.com/chazu/hybridge/dispatch"
	"github.com/chazu/hybridge/examples/inventory"
	"github.com/chazu/hybridge/host/gohost"
	"github.com/chazu/hybridge/logging"
	"github.com/chazu/hybridge/meta"
	"github.com/chazu/hybridge/value"
)

func main() {
	configDir := flag.String("config", "", "Directory containing hybridge.toml (default: search upward from the working directory)")
	format := flag.String("format", "text", "Output format: text, json or cbor")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hybridge [options] [class...]\n\n")
		fmt.Fprintf(os.Stderr, "Describes the sample inventory classes through the bridge.\n")
		fmt.Fprintf(os.Stderr, "With no class arguments every sample class is described.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  hybridge                          # Describe all classes as text\n")
		fmt.Fprintf(os.Stderr, "  hybridge -format json inventory.Stock\n")
		fmt.Fprintf(os.Stderr, "  hybridge -config ./conf -format cbor > classes.cbor\n")
	}
	flag.Parse()

	if err := run(os.Stdout, *configDir, *format, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, configDir, format string, classes []string) error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	logging.Configure(cfg)

	rt := gohost.NewRuntime()
	if err := inventory.Bind(rt); err != nil {
		return err
	}
	b := dispatch.New(rt,
		dispatch.WithConvention(cfg.Convention(rt)),
		dispatch.WithPruneThreshold(cfg.Registry.PruneThreshold),
	)
	if err := b.Cache().Warm(cfg.Cache.Preload...); err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	if len(classes) == 0 {
		classes = inventory.Classes()
	}
	infos := make([]value.Value, 0, len(classes))
	mos := make([]*meta.MetaObject, 0, len(classes))
	for _, name := range classes {
		mo, err := b.Cache().MetaObjectForName(name)
		if err != nil {
			return err
		}
		mos = append(mos, mo)
		infos = append(infos, meta.Describe(mo))
	}

	switch format {
	case "text":
		for i, mo := range mos {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeText(w, mo)
		}
		return nil
	case "json":
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "cbor":
		data, err := value.EncodeCBOR(value.FromArray(infos...))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown format %q (want text, json or cbor)", format)
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func writeText(w io.Writer, mo *meta.MetaObject) {
	if super := mo.Superclass(); super != nil {
		fmt.Fprintf(w, "class %s extends %s\n", mo.ClassName(), super.ClassName())
	} else {
		fmt.Fprintf(w, "class %s\n", mo.ClassName())
	}

	for i := range mo.PropertyCount() {
		p, _ := mo.Property(i)
		var access []string
		if p.IsReadable() {
			access = append(access, "read")
		}
		if p.IsWritable() {
			access = append(access, "write")
		}
		fmt.Fprintf(w, "  property %2d  %s %s [%s]\n", i, p.Type, p.Name, strings.Join(access, "/"))
	}
	for i := range mo.MethodCount() {
		m, _ := mo.Method(i)
		if m.IsSignal() {
			fmt.Fprintf(w, "  signal   %2d  %s\n", i, m.Signature())
			continue
		}
		fmt.Fprintf(w, "  method   %2d  %s %s\n", i, m.Return, m.Signature())
	}
}
