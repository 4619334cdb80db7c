package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/xenolang/xeno"
	"github.com/xenolang/xeno/security"
	"github.com/xenolang/xeno/vm"
)

var (
	configPath      string
	verbosity       int
	maxInstructions int
	allowPins       []int
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "xeno [command] [flags]",
	Short: "Compiler and sandboxed VM for the Xeno language",
	Long: xeno.LanguageName + ` ` + xeno.LanguageVersion + `

Compiles line-oriented Xeno source into compact bytecode and executes it on
a stack-based virtual machine under strict resource and pin limits. Hosted
I/O maps the serial console to stdin/stdout.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commonlog.Configure(verbosity, nil)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a xeno.toml limits file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
	rootCmd.PersistentFlags().IntVar(&maxInstructions, "max-instructions", 0, "override the instruction budget")
	rootCmd.PersistentFlags().IntSliceVar(&allowPins, "allow-pin", nil, "additional allowed pin (repeatable)")
}

// newInterpreter builds a facade wired to stdio and applies the command-line
// security overrides.
func newInterpreter() (*xeno.Xeno, error) {
	console := vm.NewSerialConsole(os.Stdin, os.Stdout)
	x := xeno.New(console, vm.NullPins{})

	if configPath != "" {
		if err := security.LoadFile(configPath, x.Security()); err != nil {
			return nil, err
		}
	}
	if maxInstructions != 0 {
		if err := x.SetMaxInstructions(maxInstructions); err != nil {
			return nil, err
		}
	}
	for _, pin := range allowPins {
		if err := x.AllowPin(pin); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	return string(data), nil
}
