package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"optreg/internal/logging"
	"optreg/pkg/config"
	"optreg/pkg/registration"
	"optreg/pkg/visualization"
	"optreg/pkg/volume"
)

func main() {
	// Parse command line arguments
	mouse := flag.String("mouse", "", "Mouse ID, used in the volume file name mouse<ID>_<scan>.pvl.nc.001")
	optDir := flag.String("dir", "", "Directory holding the mouse's OPT scan, landmarks and probe annotations")
	configPath := flag.String("config", "", "Configuration file (.yaml or .toml)")
	registerOverrides(flag.CommandLine)
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save subject volume slices along all axes")
	slicesDir := flag.String("slices-dir", "slices", "Directory, relative to -dir, for extracted slices")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *mouse == "" || *optDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(flag.CommandLine, cfg)

	closer := logging.Setup(cfg.Log)
	defer closer.Close()

	reg := registration.NewRegistration(&registration.Params{
		Mouse:  *mouse,
		OptDir: *optDir,
		Config: cfg,
	})

	start := time.Now()
	report, err := reg.Process()
	if err != nil {
		log.WithError(err).Error("Registration failed")
		closer.Close()
		os.Exit(1)
	}

	log.WithFields(log.Fields{
		"probes":   len(report.Probes),
		"skipped":  len(report.Skipped),
		"residual": report.WarpResidual,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("Registration completed")

	for _, s := range report.Skipped {
		log.WithField("probe", s.Probe).Info(s.Reason)
	}

	// Extract and save subject slices if requested
	if *extractSlices {
		mode, err := volume.ParseHeaderMode(cfg.Subject.HeaderMode)
		if err != nil {
			log.WithError(err).Fatal("Invalid header mode")
		}
		vol, err := volume.LoadVolume(reg.VolumePath(), mode)
		if err != nil {
			log.WithError(err).Fatal("Failed to reload subject volume")
		}
		viewer := visualization.NewViewer(vol)

		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(*optDir, *slicesDir, axis)
			log.WithField("dir", axisDir).Infof("Saving %s-axis slices", axis)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.WithError(err).Warnf("Failed to save %s-axis slices", axis)
			}
		}
	}
}
