package main

import (
	"os"

	"github.com/sourpat/payresolve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
