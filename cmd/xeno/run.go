package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file.xeno>",
	Short: "Compile and execute a Xeno program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := newInterpreter()
		if err != nil {
			return err
		}
		source, err := readSource(args[0])
		if err != nil {
			return err
		}

		if !x.Compile(source) {
			// Compile diagnostics already went to the console; run what
			// compiled anyway, matching the on-device behavior.
			fmt.Fprintln(cmd.ErrOrStderr(), "compile finished with errors")
		}
		return x.Run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
