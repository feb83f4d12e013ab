package main

import (
	"fmt"
	"os"

	"github.com/brummer10/jalvselect/internal/config"
)

func main() {
	configPath := config.DefaultPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	fmt.Printf("Validating config: %s\n", configPath)

	cfg, err := config.LoadAndValidateConfig(configPath)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Config is valid!")
	fmt.Printf("   channel:  %s\n", cfg.Instance.FifoPath)
	if cfg.Hotkey.Enabled {
		fmt.Printf("   hotkey:   %s+%v (fallback %v)\n", cfg.Hotkey.Key, cfg.Hotkey.Modifiers, cfg.Hotkey.FallbackModifiers)
	} else {
		fmt.Println("   hotkey:   disabled")
	}
	fmt.Printf("   catalog:  %s / %s\n", cfg.Launcher.CatalogCommand, cfg.Launcher.InfoCommand)
}
