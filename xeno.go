// Package xeno is the top-level facade over the Xeno language core: a
// line-oriented source language compiled to compact bytecode and executed by
// a sandboxed stack machine. The facade owns the shared security config and
// wires the compiler and VM to a console and pin driver supplied by the
// host.
package xeno

import (
	"github.com/xenolang/xeno/compiler"
	"github.com/xenolang/xeno/security"
	"github.com/xenolang/xeno/vm"
)

const (
	// LanguageName and LanguageVersion identify this implementation.
	LanguageName    = "Xeno Language"
	LanguageVersion = "v0.1.0"
)

// Xeno bundles one compiler and one VM around a shared security config.
type Xeno struct {
	sec      *security.Config
	compiler *compiler.Compiler
	machine  *vm.VM
}

// New creates an interpreter speaking to the given console and pins.
func New(console vm.Console, pins vm.Pins) *Xeno {
	sec := security.NewConfig()
	return &Xeno{
		sec:      sec,
		compiler: compiler.New(sec, console),
		machine:  vm.New(sec, console, pins),
	}
}

// Security exposes the shared limits config. Mutate it only between runs.
func (x *Xeno) Security() *security.Config {
	return x.sec
}

// Compile translates source to bytecode. Returns true when no compile
// errors were reported; the bytecode of the good lines is available either
// way.
func (x *Xeno) Compile(source string) bool {
	return x.compiler.Compile(source)
}

// Load verifies the compiled bytecode and installs it in the VM.
func (x *Xeno) Load() error {
	return x.machine.LoadProgram(x.compiler.Bytecode(), x.compiler.StringTable())
}

// Run loads the compiled program and executes it to completion or a fatal
// limit.
func (x *Xeno) Run() error {
	if err := x.Load(); err != nil {
		return err
	}
	x.machine.Run()
	return nil
}

// Step retires one instruction of a loaded program.
func (x *Xeno) Step() bool {
	return x.machine.Step()
}

// Stop halts execution; a subsequent Step returns false.
func (x *Xeno) Stop() {
	x.machine.Stop()
}

// IsRunning reports whether the VM will make progress on the next Step.
func (x *Xeno) IsRunning() bool {
	return x.machine.IsRunning()
}

// DumpState returns a snapshot of the VM's registers, stack and variables.
func (x *Xeno) DumpState() string {
	return x.machine.DumpState()
}

// Disassemble returns the loaded program's listing.
func (x *Xeno) Disassemble() string {
	return x.machine.Disassemble()
}

// CompiledListing returns the compiler's output listing: string table and
// bytecode.
func (x *Xeno) CompiledListing() string {
	return x.compiler.Listing()
}

// Security setter forwarding.

// SetMaxStringLength bounds interned string length.
func (x *Xeno) SetMaxStringLength(n int) error { return x.sec.SetMaxStringLength(n) }

// SetMaxVariableNameLength bounds identifier length.
func (x *Xeno) SetMaxVariableNameLength(n int) error { return x.sec.SetMaxVariableNameLength(n) }

// SetMaxExpressionDepth bounds nested calls in expressions.
func (x *Xeno) SetMaxExpressionDepth(n int) error { return x.sec.SetMaxExpressionDepth(n) }

// SetMaxLoopDepth bounds loop nesting.
func (x *Xeno) SetMaxLoopDepth(n int) error { return x.sec.SetMaxLoopDepth(n) }

// SetMaxIfDepth bounds conditional nesting.
func (x *Xeno) SetMaxIfDepth(n int) error { return x.sec.SetMaxIfDepth(n) }

// SetMaxStackSize sizes the VM stack at the next load.
func (x *Xeno) SetMaxStackSize(n int) error { return x.sec.SetMaxStackSize(n) }

// SetMaxInstructions bounds retired instructions per run.
func (x *Xeno) SetMaxInstructions(n int) error { return x.sec.SetMaxInstructions(n) }

// AllowPin whitelists a pin for LED_ON/LED_OFF.
func (x *Xeno) AllowPin(pin int) error { return x.sec.AllowPin(pin) }
