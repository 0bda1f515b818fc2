package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/curator-desk/cmd/curatorctl/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
