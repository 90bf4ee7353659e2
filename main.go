// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package main is the entrypoint for lspm, the laptop smart power manager.
package main

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	Execute(version)
}
