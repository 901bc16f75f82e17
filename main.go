package main

import (
	"os"

	"github.com/stower/stower/cmd"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	if err := cmd.ExecuteCLI(version, commit, date); err != nil {
		os.Exit(1)
	}
}
