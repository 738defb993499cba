// Package main is the entry point for the authkit CLI.
package main

import (
	"os"

	"github.com/terravista/authkit/cmd/authkit/app"
	"github.com/terravista/authkit/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
