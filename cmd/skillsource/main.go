package main

import (
	"os"

	"github.com/barysiuk/skillsource/cmd/skillsource/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.ReportError(os.Stderr, err)
		os.Exit(1)
	}
}
