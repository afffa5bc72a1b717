package main

import (
	"fmt"
	"os"

	"pharmawatch/cmd/pharmawatch/handlers"
	"pharmawatch/internal/logger"
)

func main() {
	logger.Init()
	if err := handlers.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
