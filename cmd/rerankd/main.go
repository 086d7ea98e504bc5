package main

import (
	"os"

	"github.com/soundprediction/go-rerank/cmd/rerankd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
