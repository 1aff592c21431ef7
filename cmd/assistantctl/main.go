package main

import (
	"os"

	"github.com/rowens2025/powervisualize/cmd/assistantctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
