package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.xeno>",
	Short: "Compile a Xeno program and print its bytecode listing",
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

		x.Compile(source)
		fmt.Fprint(cmd.OutOrStdout(), x.CompiledListing())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}
