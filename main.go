package main

import (
	"os"

	"github.com/TFMV/squeeze/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
