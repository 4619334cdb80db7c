package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xenolang/xeno"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactively enter a program, then run it",
	Long: `Reads program lines from stdin into a buffer. Buffer commands:

  :run    compile and run the buffer
  :list   show the compiled bytecode listing
  :state  dump the VM state of the last run
  :clear  discard the buffer
  :quit   exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := newInterpreter()
		if err != nil {
			return err
		}
		repl(x)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func repl(x *xeno.Xeno) {
	fmt.Printf("%s %s\n", xeno.LanguageName, xeno.LanguageVersion)
	fmt.Println("Enter program lines; :run executes, :quit exits.")

	var buffer []string
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case ":quit", ":q":
			return
		case ":clear":
			buffer = nil
		case ":list":
			x.Compile(strings.Join(buffer, "\n"))
			fmt.Print(x.CompiledListing())
		case ":state":
			fmt.Print(x.DumpState())
		case ":run":
			x.Compile(strings.Join(buffer, "\n"))
			if err := x.Run(); err != nil {
				fmt.Println(err)
			}
		default:
			buffer = append(buffer, line)
		}
	}
}
