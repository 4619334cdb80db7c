// Package compiler translates Xeno source text into a flat bytecode program
// and an interned string table.
//
// Compilation is a single pass over the source, one statement per line.
// Forward control flow (if/else/endif, for/endfor) is resolved by emitting
// placeholder jumps and patching them when the matching closer is reached.
// Errors are reported to the console with the offending line number and
// compilation continues with the next line, so a program with bad lines
// still produces loadable bytecode for the good ones.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/xenolang/xeno/bytecode"
	"github.com/xenolang/xeno/security"
)

const (
	maxLineLength = 512

	// Emission caps. Instruction and string indices must fit in the
	// instruction encoding.
	maxProgramLength     = 65535
	maxStringTableLength = 65535
)

// Console receives compile diagnostics, one line per message.
type Console interface {
	PrintLine(text string)
}

// loopInfo records the open for-loop being compiled: the loop variable, the
// address of the condition re-evaluation, and the address of the exit jump
// awaiting its patch.
type loopInfo struct {
	varName   string
	startAddr int
	condAddr  int
}

// Compiler turns source lines into bytecode. Create one with New and reuse
// it; Compile resets all per-program state.
type Compiler struct {
	sec     *security.Config
	console Console
	log     commonlog.Logger

	program   bytecode.Program
	table     []string
	varTypes  map[string]bytecode.ValueType
	ifStack   []int
	loopStack []loopInfo
	errors    int
}

// New creates a compiler bound to a security config and a diagnostics
// console.
func New(sec *security.Config, console Console) *Compiler {
	return &Compiler{
		sec:     sec,
		console: console,
		log:     commonlog.GetLogger("xeno.compiler"),
	}
}

// Compile translates source into bytecode, replacing any previous program.
// Returns true when no errors were reported. The bytecode is retrievable
// through Bytecode and StringTable either way; erroneous lines are skipped
// but the emitted program is always structurally valid.
func (c *Compiler) Compile(source string) bool {
	c.program = nil
	c.table = nil
	c.varTypes = make(map[string]bytecode.ValueType)
	c.ifStack = nil
	c.loopStack = nil
	c.errors = 0

	for i, line := range strings.Split(source, "\n") {
		if line == "" {
			continue
		}
		c.compileLine(line, i+1)
	}

	if n := len(c.ifStack); n > 0 {
		c.warnf("WARNING: %d IF block(s) not closed at end of program", n)
	}
	if n := len(c.loopStack); n > 0 {
		c.warnf("WARNING: %d FOR loop(s) not closed at end of program", n)
	}

	if len(c.program) == 0 || c.program[len(c.program)-1].Op != bytecode.OpHalt {
		c.emit(bytecode.OpHalt, 0)
	}

	c.log.Debugf("compiled %d instructions, %d strings, %d errors",
		len(c.program), len(c.table), c.errors)
	return c.errors == 0
}

// Bytecode returns the most recently compiled program.
func (c *Compiler) Bytecode() bytecode.Program {
	return c.program
}

// StringTable returns the most recently compiled string table.
func (c *Compiler) StringTable() []string {
	return c.table
}

// Errors returns the number of errors reported by the last Compile.
func (c *Compiler) Errors() int {
	return c.errors
}

// Listing returns the compiled-program listing (string table plus bytecode).
func (c *Compiler) Listing() string {
	return bytecode.DisassembleListing(c.program, c.table)
}

func (c *Compiler) errorf(format string, args ...any) {
	c.errors++
	c.console.PrintLine(fmt.Sprintf(format, args...))
}

func (c *Compiler) warnf(format string, args ...any) {
	c.console.PrintLine(fmt.Sprintf(format, args...))
}

// cleanLine strips a trailing // comment and surrounding whitespace.
func cleanLine(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func (c *Compiler) compileLine(line string, lineNumber int) {
	cleaned := cleanLine(line)
	if cleaned == "" {
		return
	}
	if len(cleaned) > maxLineLength {
		c.errorf("ERROR: Line too long at line %d", lineNumber)
		return
	}

	command := cleaned
	args := ""
	if i := strings.IndexByte(cleaned, ' '); i > 0 {
		command = cleaned[:i]
		args = strings.TrimSpace(cleaned[i+1:])
	}
	command = strings.ToLower(command)

	switch command {
	case "print":
		c.compilePrint(args, lineNumber)
	case "printnum":
		c.emit(bytecode.OpPrintNum, 0)
	case "led":
		c.compileLed(args, lineNumber)
	case "delay":
		c.compileDelay(args, lineNumber)
	case "push":
		c.compilePush(args, lineNumber)
	case "pop":
		c.emit(bytecode.OpPop, 0)
	case "add":
		c.emit(bytecode.OpAdd, 0)
	case "sub":
		c.emit(bytecode.OpSub, 0)
	case "mul":
		c.emit(bytecode.OpMul, 0)
	case "div":
		c.emit(bytecode.OpDiv, 0)
	case "mod":
		c.emit(bytecode.OpMod, 0)
	case "abs":
		c.emit(bytecode.OpAbs, 0)
	case "pow":
		c.emit(bytecode.OpPow, 0)
	case "max":
		c.emit(bytecode.OpMax, 0)
	case "min":
		c.emit(bytecode.OpMin, 0)
	case "sqrt":
		c.emit(bytecode.OpSqrt, 0)
	case "input":
		if !c.validateVariableName(args) {
			c.errorf("ERROR: Invalid variable name for input at line %d", lineNumber)
			return
		}
		c.emit(bytecode.OpInput, c.variableIndex(args))
	case "set":
		c.compileSet(args, lineNumber)
	case "if":
		c.compileIf(args, lineNumber)
	case "else":
		c.compileElse(lineNumber)
	case "endif":
		c.compileEndif(lineNumber)
	case "for":
		c.compileFor(args, lineNumber)
	case "endfor":
		c.compileEndfor(lineNumber)
	case "halt":
		c.emit(bytecode.OpHalt, 0)
	default:
		c.warnf("WARNING: Unknown command at line %d: %s", lineNumber, command)
	}
}

func (c *Compiler) compilePrint(args string, lineNumber int) {
	if strings.HasPrefix(args, "$") {
		name := args[1:]
		if !isValidVariableName(name, c.sec.MaxVariableNameLength()) {
			c.errorf("ERROR: Invalid variable name in print at line %d", lineNumber)
			return
		}
		c.emit(bytecode.OpLoad, c.variableIndex(name))
		c.emit(bytecode.OpPrintNum, 0)
		return
	}

	text := args
	if strings.HasPrefix(text, "\"") && strings.HasSuffix(text, "\"") && len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	if !c.validateString(text) {
		text = ""
	}
	c.emit(bytecode.OpPrint, c.addString(text))
}

func (c *Compiler) compileLed(args string, lineNumber int) {
	i := strings.IndexByte(args, ' ')
	if i <= 0 {
		c.warnf("WARNING: Invalid LED command at line %d", lineNumber)
		return
	}
	pinStr := args[:i]
	state := strings.ToLower(strings.TrimSpace(args[i+1:]))

	pin, err := strconv.Atoi(pinStr)
	if err != nil || pin < 0 || pin > security.MaxPinNumber {
		c.errorf("ERROR: Invalid pin number at line %d", lineNumber)
		return
	}

	switch state {
	case "on", "1":
		c.emit(bytecode.OpLedOn, uint32(pin))
	case "off", "0":
		c.emit(bytecode.OpLedOff, uint32(pin))
	default:
		c.warnf("WARNING: Unknown LED state at line %d", lineNumber)
	}
}

func (c *Compiler) compileDelay(args string, lineNumber int) {
	ms, err := strconv.Atoi(args)
	if err != nil {
		ms = 0
	}
	if err != nil || ms < 0 || ms > security.VerifyMaxDelayMillis {
		c.warnf("WARNING: Delay time out of range at line %d", lineNumber)
		ms = min(max(ms, 0), security.VerifyMaxDelayMillis)
	}
	c.emit(bytecode.OpDelay, uint32(ms))
}

func (c *Compiler) compilePush(args string, lineNumber int) {
	switch {
	case isValidVariableName(args, c.sec.MaxVariableNameLength()):
		c.emit(bytecode.OpLoad, c.variableIndex(args))
	case isFloatLiteral(args):
		f, _ := strconv.ParseFloat(args, 32)
		c.emit(bytecode.OpPushFloat, bytecode.FloatBits(float32(f)))
	case isQuotedString(args):
		str := args[1 : len(args)-1]
		if !c.validateString(str) {
			str = ""
		}
		c.emit(bytecode.OpPushString, c.addString(str))
	default:
		v, err := strconv.ParseInt(args, 10, 32)
		if err != nil {
			c.errorf("ERROR: Invalid push value at line %d", lineNumber)
			v = 0
		}
		c.emit(bytecode.OpPush, bytecode.IntBits(int32(v)))
	}
}

func (c *Compiler) compileSet(args string, lineNumber int) {
	i := strings.IndexByte(args, ' ')
	if i <= 0 {
		c.errorf("ERROR: Invalid SET command at line %d", lineNumber)
		return
	}
	name := args[:i]
	expr := strings.TrimSpace(args[i+1:])

	if !isValidVariableName(name, c.sec.MaxVariableNameLength()) {
		c.errorf("ERROR: Invalid variable name '%s' at line %d", name, lineNumber)
		return
	}

	c.recordLiteralType(name, expr)
	c.compileExpression(expr)
	c.emit(bytecode.OpStore, c.variableIndex(name))
}

// recordLiteralType remembers a variable's type when the assigned expression
// is a bare literal. endfor consults this to pick an integer or float
// increment.
func (c *Compiler) recordLiteralType(name, expr string) {
	switch {
	case isQuotedString(expr):
		c.varTypes[name] = bytecode.TypeString
	case isFloatLiteral(expr):
		c.varTypes[name] = bytecode.TypeFloat
	case isIntegerLiteral(expr):
		c.varTypes[name] = bytecode.TypeInt
	}
}

func (c *Compiler) compileIf(args string, lineNumber int) {
	if len(c.ifStack) >= c.sec.MaxIfDepth() {
		c.errorf("ERROR: IF nesting too deep at line %d", lineNumber)
		return
	}

	thenPos := strings.Index(args, " then")
	if thenPos <= 0 {
		c.errorf("ERROR: Invalid IF command at line %d", lineNumber)
		return
	}

	c.compileExpression(args[:thenPos])
	jumpAddr := len(c.program)
	c.emit(bytecode.OpJumpIf, 0)
	c.ifStack = append(c.ifStack, jumpAddr)
}

func (c *Compiler) compileElse(lineNumber int) {
	if len(c.ifStack) == 0 {
		c.errorf("ERROR: ELSE without IF at line %d", lineNumber)
		return
	}

	elseJump := len(c.program)
	c.emit(bytecode.OpJump, 0)

	// The if's false-edge now lands just past the unconditional jump.
	c.patch(c.ifStack[len(c.ifStack)-1])
	c.ifStack[len(c.ifStack)-1] = elseJump
}

func (c *Compiler) compileEndif(lineNumber int) {
	if len(c.ifStack) == 0 {
		c.errorf("ERROR: ENDIF without IF at line %d", lineNumber)
		return
	}
	c.patch(c.ifStack[len(c.ifStack)-1])
	c.ifStack = c.ifStack[:len(c.ifStack)-1]
}

func (c *Compiler) compileFor(args string, lineNumber int) {
	if len(c.loopStack) >= c.sec.MaxLoopDepth() {
		c.errorf("ERROR: Loop nesting too deep at line %d", lineNumber)
		return
	}

	equalsPos := strings.IndexByte(args, '=')
	toPos := strings.Index(args, " to ")
	if equalsPos <= 0 || toPos <= equalsPos {
		c.errorf("ERROR: Invalid FOR command at line %d", lineNumber)
		return
	}

	name := strings.TrimSpace(args[:equalsPos])
	if !isValidVariableName(name, c.sec.MaxVariableNameLength()) {
		c.errorf("ERROR: Invalid variable name in FOR at line %d", lineNumber)
		return
	}

	startExpr := strings.TrimSpace(args[equalsPos+1 : toPos])
	endExpr := strings.TrimSpace(args[toPos+4:])

	// A literal start expression fixes the loop variable's type, and with it
	// the increment emitted by endfor.
	c.recordLiteralType(name, startExpr)

	c.compileExpression(startExpr)
	varIdx := c.variableIndex(name)
	c.emit(bytecode.OpStore, varIdx)

	loopStart := len(c.program)
	c.emit(bytecode.OpLoad, varIdx)
	c.compileExpression(endExpr)
	c.emit(bytecode.OpLte, 0)

	condJump := len(c.program)
	c.emit(bytecode.OpJumpIf, 0)

	c.loopStack = append(c.loopStack, loopInfo{
		varName:   name,
		startAddr: loopStart,
		condAddr:  condJump,
	})
}

func (c *Compiler) compileEndfor(lineNumber int) {
	if len(c.loopStack) == 0 {
		c.errorf("ERROR: ENDFOR without FOR at line %d", lineNumber)
		return
	}
	loop := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(bytecode.OpLoad, c.variableIndex(loop.varName))
	if c.varTypes[loop.varName] == bytecode.TypeFloat {
		c.emit(bytecode.OpPushFloat, bytecode.FloatBits(1.0))
	} else {
		c.emit(bytecode.OpPush, 1)
	}
	c.emit(bytecode.OpAdd, 0)
	c.emit(bytecode.OpStore, c.variableIndex(loop.varName))
	c.emit(bytecode.OpJump, uint32(loop.startAddr))

	c.patch(loop.condAddr)
}

// emit appends one instruction, refusing past the encoding cap.
func (c *Compiler) emit(op bytecode.Opcode, arg1 uint32) {
	if len(c.program) >= maxProgramLength {
		c.errorf("ERROR: Program too large")
		return
	}
	c.program = append(c.program, bytecode.InstrArg(op, arg1))
}

// patch points a placeholder jump at the current end of the program.
func (c *Compiler) patch(addr int) {
	if addr < len(c.program) {
		c.program[addr].Arg1 = uint32(len(c.program))
	}
}

// addString interns a string and returns its index. The scan runs
// newest-first: recently added strings are the likeliest to repeat.
func (c *Compiler) addString(s string) uint32 {
	if !c.validateString(s) {
		return 0
	}
	for i := len(c.table) - 1; i >= 0; i-- {
		if c.table[i] == s {
			return uint32(i)
		}
	}
	if len(c.table) >= maxStringTableLength {
		c.errorf("ERROR: String table overflow")
		return 0
	}
	c.table = append(c.table, s)
	return uint32(len(c.table) - 1)
}

// variableIndex interns a variable name, validating it first.
func (c *Compiler) variableIndex(name string) uint32 {
	if !c.validateVariableName(name) {
		return 0
	}
	return c.addString(name)
}

func (c *Compiler) validateString(s string) bool {
	if len(s) > c.sec.MaxStringLength() {
		c.errorf("ERROR: String too long")
		return false
	}
	return true
}

func (c *Compiler) validateVariableName(name string) bool {
	if len(name) > c.sec.MaxVariableNameLength() {
		c.errorf("ERROR: Variable name too long")
		return false
	}
	if !isValidVariableName(name, c.sec.MaxVariableNameLength()) {
		c.errorf("ERROR: Invalid variable name")
		return false
	}
	return true
}
