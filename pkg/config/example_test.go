package config_test

import (
	"fmt"

	"github.com/wonny/talos/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Mode: %s\n", cfg.Trading.Mode)
	fmt.Printf("Symbols: %v\n", cfg.Trading.AllowedSymbols)
	fmt.Printf("Max position: %.1f\n", cfg.Trading.MaxPosition)
}
