package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/brummer10/jalvselect/internal/config"
	"github.com/brummer10/jalvselect/internal/core"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func init() {
	// GTK must stay on the thread that initialised it.
	runtime.LockOSThread()
}

func main() {
	var (
		startHidden bool
		height      int
		configPath  string
		debug       bool
	)
	flag.BoolVarP(&startHidden, "systray", "s", false, "start hidden; show with the hotkey")
	flag.IntVarP(&height, "high", "H", 0, "start with the given window height in pixels")
	flag.StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.LoadAndValidateConfig(configPath)
	if err != nil {
		log.Warnf("%v, using defaults", err)
		cfg = config.Default()
	}
	if startHidden {
		cfg.Window.StartHidden = true
	}
	if height > 0 {
		cfg.Window.Height = height
	}

	logFile := setupLogging(cfg, debug)
	if logFile != nil {
		defer logFile.Close()
	}

	app, err := core.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "jalvselect: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config, debug bool) *os.File {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = log.InfoLevel
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	if cfg.LogFile == "" {
		return nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Warnf("Cannot open log file %s: %v", cfg.LogFile, err)
		return nil
	}
	log.SetOutput(f)
	return f
}
