package main

import (
	"flag"

	"optreg/pkg/config"
)

// registerOverrides defines the flags that replace configuration values
func registerOverrides(fs *flag.FlagSet) {
	fs.String("scan", "", "Scan type, overrides the configured one")
	fs.Bool("figures", true, "Save line fit plots and per-probe intensity strips, overrides the configured value")
	fs.Bool("verbose", false, "Enable debug logging")
}

// applyOverrides copies the override flags given on the command line into
// cfg. Flags left unset keep the configured values.
func applyOverrides(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch f.Name {
		case "scan":
			if v := getter.Get().(string); v != "" {
				cfg.Subject.ScanType = v
			}
		case "figures":
			cfg.Output.SaveFigures = getter.Get().(bool)
		case "verbose":
			cfg.Log.Verbose = getter.Get().(bool)
		}
	})
}
