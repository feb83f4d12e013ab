package main

import (
	"fmt"
	"os"

	"github.com/brummer10/jalvselect/internal/config"
	"github.com/brummer10/jalvselect/internal/instance"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var commands = map[string]instance.Kind{
	"show": instance.KindShow,
	"hide": instance.KindHide,
	"quit": instance.KindQuit,
}

func main() {
	var configPath, fifoPath string
	flag.StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")
	flag.StringVarP(&fifoPath, "fifo", "f", "", "channel path (default from config)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() != 1 {
		printUsage()
		os.Exit(1)
	}
	command := flag.Arg(0)
	if command == "help" {
		printUsage()
		return
	}
	kind, ok := commands[command]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}

	if fifoPath == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Warnf("Failed to load config: %v", err)
			cfg = config.Default()
		}
		fifoPath = cfg.Instance.FifoPath
	}

	if err := instance.Send(fifoPath, instance.Message{Kind: kind}); err != nil {
		log.Fatalf("%v\nIs jalvselect running?", err)
	}
	log.Debugf("Sent %s to %s", command, fifoPath)
}

func printUsage() {
	fmt.Println("jalvselect-msg - Control a running jalvselect")
	fmt.Println()
	fmt.Println("Usage: jalvselect-msg [-c config] [-f fifo] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  show    Raise the plugin window")
	fmt.Println("  hide    Hide the plugin window")
	fmt.Println("  quit    Close jalvselect")
	fmt.Println("  help    Show this help message")
	fmt.Println()
	flag.PrintDefaults()
}
