package main

import (
	"fmt"
	"os"

	"github.com/taihochan/superclaude-code-pm-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
