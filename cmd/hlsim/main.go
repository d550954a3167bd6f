package main

import (
	"os"

	"github.com/liangcheng-yu/hyperlight/cmd/hlsim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
