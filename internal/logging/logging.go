// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"

	"optreg/pkg/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup routes log output to stderr and, when cfg.Logfile is set, to a
// rotating log file as well. The returned closer releases the file.
func Setup(cfg config.LogConfig) io.Closer {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if cfg.Logfile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	l := &lumberjack.Logger{
		Filename: cfg.Logfile,
		MaxSize:  cfg.MaxSize, // megabytes
		MaxAge:   cfg.MaxAge,  // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, l))
	log.WithField("logfile", cfg.Logfile).Debug("Sending log messages to file")
	return l
}
