package main

import (
	"os"

	"aegis/cmd/aegisctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
