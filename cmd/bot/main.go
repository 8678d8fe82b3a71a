// Package main is the entry point for the price sentinel bot.
package main

import (
	"os"

	"PriceSentinel/cmd/bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
