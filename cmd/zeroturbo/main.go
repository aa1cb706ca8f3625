package main

import (
	"os"

	"github.com/layer-3/zeroturbo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
