package main

import (
	"os"

	_ "apollo-supervisor/cmd"
	"apollo-supervisor/cmd/root"
	"apollo-supervisor/internal/logger"
)

func main() {
	defer logger.Sync()
	if err := root.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
