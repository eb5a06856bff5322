package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{Use: os.Args[0]}
	cmd.AddCommand(NewRoundCmd("round"))
	cmd.AddCommand(NewLIBCmd("lib"))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
