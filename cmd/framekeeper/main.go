package main

import (
	"os"

	"github.com/solatis/framekeeper/cmd/framekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
