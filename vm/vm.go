// Package vm executes verified Xeno bytecode over a fixed-size typed value
// stack, a flat variable map, and sandboxed console/pin/clock devices.
//
// The machine is single-threaded and synchronous: the host drives it either
// with Run (to completion or a fatal limit) or with repeated Step calls.
// Side effects happen in instruction order. Soft errors (overflow, division
// by zero, unauthorized pins) are reported to the console and execution
// continues with a default value; fatal errors (stack over/underflow,
// invalid jumps or indices, unknown opcodes, exhausted budgets) clear the
// running flag and end the run.
package vm

import (
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/tliron/commonlog"

	"github.com/xenolang/xeno/bytecode"
	"github.com/xenolang/xeno/security"
)

// MaxIterations is the hard per-run cap on executed steps, independent of
// the configurable instruction budget.
const MaxIterations = 100000

// inputTimeout is how long INPUT waits for a console line.
const inputTimeout = 30 * time.Second

type handler func(*VM, bytecode.Instruction)

// VM is the Xeno virtual machine. Create one with New and load programs
// with LoadProgram; each load resets all execution state.
type VM struct {
	sec     *security.Config
	console Console
	pins    Pins
	clk     clock.Clock
	log     commonlog.Logger

	program bytecode.Program
	table   []string
	lookup  map[string]uint16

	pc               uint32
	stack            []bytecode.Value
	sp               int
	variables        map[string]bytecode.Value
	running          bool
	instructionCount uint32
	maxInstructions  uint32
	iterationCount   uint32

	dispatch [256]handler
}

// New creates a VM bound to a security config and device set. The clock
// defaults to the wall clock; tests may replace it with SetClock.
func New(sec *security.Config, console Console, pins Pins) *VM {
	m := &VM{
		sec:     sec,
		console: console,
		pins:    pins,
		clk:     clock.New(),
		log:     commonlog.GetLogger("xeno.vm"),
	}
	m.initDispatch()
	m.resetState()
	return m
}

// SetClock replaces the VM's clock. Intended for tests.
func (m *VM) SetClock(c clock.Clock) {
	m.clk = c
}

func (m *VM) resetState() {
	m.pc = 0
	m.sp = 0
	m.running = false
	m.instructionCount = 0
	m.iterationCount = 0
	m.maxInstructions = uint32(m.sec.MaxInstructions())
	m.stack = make([]bytecode.Value, m.sec.MaxStackSize())
	m.variables = make(map[string]bytecode.Value)
	m.lookup = make(map[string]uint16)
}

// LoadProgram sanitizes the string table, verifies the bytecode against the
// security policy, and installs both atomically. On verification failure the
// VM stays halted with nothing installed and the error is returned.
func (m *VM) LoadProgram(program bytecode.Program, table []string) error {
	m.resetState()

	sanitized := make([]string, len(table))
	for i, s := range table {
		sanitized[i] = m.sec.SanitizeString(s)
	}

	if err := m.sec.VerifyBytecode(program, sanitized); err != nil {
		m.console.PrintLine("SECURITY: Bytecode verification failed - refusing to load")
		m.program = nil
		m.table = nil
		return fmt.Errorf("bytecode verification: %w", err)
	}

	m.program = append(bytecode.Program(nil), program...)
	m.table = sanitized
	for i, s := range m.table {
		m.lookup[s] = uint16(i)
	}

	m.running = true
	m.log.Infof("program loaded and verified: %d instructions, %d strings",
		len(m.program), len(m.table))
	return nil
}

// Step retires one instruction. Returns false when the VM is not running or
// has just stopped, whether cleanly or on error.
func (m *VM) Step() bool {
	if !m.running || m.pc >= uint32(len(m.program)) {
		return false
	}

	m.iterationCount++
	if m.iterationCount > MaxIterations {
		m.fatalf("ERROR: Iteration limit exceeded - possible infinite loop")
		return false
	}

	instr := m.program[m.pc]
	m.pc++

	h := m.dispatch[instr.Op]
	if h == nil {
		m.fatalf("ERROR: Unknown instruction %d", uint8(instr.Op))
		return false
	}
	h(m, instr)

	m.instructionCount++
	if m.instructionCount > m.maxInstructions {
		m.fatalf("ERROR: Instruction limit exceeded - possible infinite loop")
		return false
	}

	return m.running
}

// Run executes the loaded program to completion or a fatal limit.
func (m *VM) Run() {
	m.log.Debug("starting")
	for m.Step() {
	}
	m.log.Debugf("finished after %d instructions", m.instructionCount)
}

// Stop clears the running flag and resets the program and stack pointers.
// A Step after Stop returns false.
func (m *VM) Stop() {
	m.running = false
	m.pc = 0
	m.sp = 0
}

// IsRunning reports whether the VM will make progress on the next Step.
func (m *VM) IsRunning() bool { return m.running }

// PC returns the program counter.
func (m *VM) PC() uint32 { return m.pc }

// SP returns the stack pointer.
func (m *VM) SP() int { return m.sp }

// InstructionCount returns the number of instructions retired this run.
func (m *VM) InstructionCount() uint32 { return m.instructionCount }

// IterationCount returns the number of steps taken this run.
func (m *VM) IterationCount() uint32 { return m.iterationCount }

// fatalf reports an error and terminates execution.
func (m *VM) fatalf(format string, args ...any) {
	m.console.PrintLine(fmt.Sprintf(format, args...))
	m.running = false
}

// errorf reports a soft error; execution continues.
func (m *VM) errorf(format string, args ...any) {
	m.console.PrintLine(fmt.Sprintf(format, args...))
}

// Stack helpers. All bounds failures are fatal.

func (m *VM) push(v bytecode.Value) bool {
	if m.sp >= len(m.stack) {
		m.fatalf("CRITICAL ERROR: Stack overflow - terminating execution")
		return false
	}
	m.stack[m.sp] = v
	m.sp++
	return true
}

func (m *VM) pop() (bytecode.Value, bool) {
	if m.sp == 0 {
		m.fatalf("CRITICAL ERROR: Stack underflow - terminating execution")
		return bytecode.Value{}, false
	}
	m.sp--
	return m.stack[m.sp], true
}

// pop2 pops two values, returning them in push order: b was on top.
func (m *VM) pop2() (a, b bytecode.Value, ok bool) {
	if m.sp < 2 {
		m.fatalf("CRITICAL ERROR: Stack underflow in binary operation - terminating execution")
		return bytecode.Value{}, bytecode.Value{}, false
	}
	m.sp--
	b = m.stack[m.sp]
	m.sp--
	a = m.stack[m.sp]
	return a, b, true
}

func (m *VM) peek() (bytecode.Value, bool) {
	if m.sp == 0 {
		m.fatalf("CRITICAL ERROR: Stack underflow in peek - terminating execution")
		return bytecode.Value{}, false
	}
	return m.stack[m.sp-1], true
}

// addString interns a runtime-produced string, sanitizing it first. The
// lookup map keeps interning O(1).
func (m *VM) addString(s string) uint16 {
	safe := m.sec.SanitizeString(s)
	if idx, ok := m.lookup[safe]; ok {
		return idx
	}
	if len(m.table) >= 65535 {
		m.errorf("ERROR: String table overflow")
		return 0
	}
	m.table = append(m.table, safe)
	idx := uint16(len(m.table) - 1)
	m.lookup[safe] = idx
	return idx
}

// convertToString renders a value for concatenation: ints in decimal,
// floats with three fractional digits, strings as their contents.
func (m *VM) convertToString(v bytecode.Value) string {
	return v.Display(m.table)
}
