package vm

import (
	"strconv"
	"strings"
	"time"

	"github.com/xenolang/xeno/bytecode"
)

// initDispatch fills the 256-entry opcode table. Slots left nil are fatal at
// execution time.
func (m *VM) initDispatch() {
	m.dispatch = [256]handler{}
	m.dispatch[bytecode.OpNop] = (*VM).handleNop
	m.dispatch[bytecode.OpPrint] = (*VM).handlePrint
	m.dispatch[bytecode.OpLedOn] = (*VM).handleLedOn
	m.dispatch[bytecode.OpLedOff] = (*VM).handleLedOff
	m.dispatch[bytecode.OpDelay] = (*VM).handleDelay
	m.dispatch[bytecode.OpPush] = (*VM).handlePush
	m.dispatch[bytecode.OpPop] = (*VM).handlePop
	m.dispatch[bytecode.OpAdd] = (*VM).handleAdd
	m.dispatch[bytecode.OpSub] = (*VM).handleSub
	m.dispatch[bytecode.OpMul] = (*VM).handleMul
	m.dispatch[bytecode.OpDiv] = (*VM).handleDiv
	m.dispatch[bytecode.OpJump] = (*VM).handleJump
	m.dispatch[bytecode.OpJumpIf] = (*VM).handleJumpIf
	m.dispatch[bytecode.OpPrintNum] = (*VM).handlePrintNum
	m.dispatch[bytecode.OpStore] = (*VM).handleStore
	m.dispatch[bytecode.OpLoad] = (*VM).handleLoad
	m.dispatch[bytecode.OpMod] = (*VM).handleMod
	m.dispatch[bytecode.OpAbs] = (*VM).handleAbs
	m.dispatch[bytecode.OpPow] = (*VM).handlePow
	m.dispatch[bytecode.OpEq] = (*VM).handleCompare
	m.dispatch[bytecode.OpNeq] = (*VM).handleCompare
	m.dispatch[bytecode.OpLt] = (*VM).handleCompare
	m.dispatch[bytecode.OpGt] = (*VM).handleCompare
	m.dispatch[bytecode.OpLte] = (*VM).handleCompare
	m.dispatch[bytecode.OpGte] = (*VM).handleCompare
	m.dispatch[bytecode.OpPushFloat] = (*VM).handlePushFloat
	m.dispatch[bytecode.OpPushString] = (*VM).handlePushString
	m.dispatch[bytecode.OpInput] = (*VM).handleInput
	m.dispatch[bytecode.OpMax] = (*VM).handleMax
	m.dispatch[bytecode.OpMin] = (*VM).handleMin
	m.dispatch[bytecode.OpSqrt] = (*VM).handleSqrt
	m.dispatch[bytecode.OpHalt] = (*VM).handleHalt
}

func (m *VM) handleNop(bytecode.Instruction) {}

func (m *VM) handlePrint(instr bytecode.Instruction) {
	if int(instr.Arg1) < len(m.table) {
		m.console.PrintLine(m.table[instr.Arg1])
	} else {
		m.fatalf("ERROR: Invalid string index")
	}
}

func (m *VM) handleLedOn(instr bytecode.Instruction) {
	m.driveLed(instr, true)
}

func (m *VM) handleLedOff(instr bytecode.Instruction) {
	m.driveLed(instr, false)
}

// driveLed consults the pin whitelist, then configures and writes the pin.
// An unauthorized pin is a reported soft error; no write happens.
func (m *VM) driveLed(instr bytecode.Instruction, high bool) {
	if instr.Arg1 > 255 || !m.sec.IsPinAllowed(uint8(instr.Arg1)) {
		m.errorf("ERROR: Pin not allowed: %d", instr.Arg1)
		return
	}
	pin := uint8(instr.Arg1)
	m.pins.SetOutput(pin)
	m.pins.Write(pin, high)
	if high {
		m.console.PrintLine("LED ON pin " + strconv.Itoa(int(pin)))
	} else {
		m.console.PrintLine("LED OFF pin " + strconv.Itoa(int(pin)))
	}
}

func (m *VM) handleDelay(instr bytecode.Instruction) {
	m.clk.Sleep(time.Duration(instr.Arg1) * time.Millisecond)
}

func (m *VM) handlePush(instr bytecode.Instruction) {
	m.push(bytecode.IntValue(instr.IntArg()))
}

func (m *VM) handlePushFloat(instr bytecode.Instruction) {
	m.push(bytecode.FloatValue(instr.FloatArg()))
}

func (m *VM) handlePushString(instr bytecode.Instruction) {
	if int(instr.Arg1) >= len(m.table) {
		m.fatalf("ERROR: Invalid string index")
		return
	}
	m.push(bytecode.StringValue(uint16(instr.Arg1)))
}

func (m *VM) handlePop(bytecode.Instruction) {
	m.pop()
}

func (m *VM) handleAdd(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performAddition(a, b))
	}
}

func (m *VM) handleSub(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performSubtraction(a, b))
	}
}

func (m *VM) handleMul(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performMultiplication(a, b))
	}
}

func (m *VM) handleDiv(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performDivision(a, b))
	}
}

func (m *VM) handleMod(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performModulo(a, b))
	}
}

func (m *VM) handlePow(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performPower(a, b))
	}
}

func (m *VM) handleMax(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performMax(a, b))
	}
}

func (m *VM) handleMin(bytecode.Instruction) {
	if a, b, ok := m.pop2(); ok {
		m.push(m.performMin(a, b))
	}
}

// handleAbs and handleSqrt rewrite the top of stack in place.

func (m *VM) handleAbs(bytecode.Instruction) {
	if a, ok := m.peek(); ok {
		m.stack[m.sp-1] = m.performAbs(a)
	}
}

func (m *VM) handleSqrt(bytecode.Instruction) {
	if a, ok := m.peek(); ok {
		m.stack[m.sp-1] = m.performSqrt(a)
	}
}

// handleCompare serves all six relations; the pushed result encodes true as
// 0 and false as 1.
func (m *VM) handleCompare(instr bytecode.Instruction) {
	a, b, ok := m.pop2()
	if !ok {
		return
	}
	if m.performComparison(a, b, instr.Op) {
		m.push(bytecode.IntValue(0))
	} else {
		m.push(bytecode.IntValue(1))
	}
}

func (m *VM) handlePrintNum(bytecode.Instruction) {
	v, ok := m.peek()
	if !ok {
		return
	}
	switch v.Type {
	case bytecode.TypeInt:
		m.console.PrintLine(strconv.FormatInt(int64(v.Int), 10))
	case bytecode.TypeFloat:
		m.console.PrintLine(strconv.FormatFloat(float64(v.Float), 'f', 2, 32))
	case bytecode.TypeString:
		m.console.PrintLine(m.stringAt(v.Str))
	}
}

func (m *VM) handleStore(instr bytecode.Instruction) {
	if int(instr.Arg1) >= len(m.table) {
		m.fatalf("ERROR: Invalid variable name index in STORE")
		return
	}
	v, ok := m.pop()
	if !ok {
		return
	}
	m.variables[m.table[instr.Arg1]] = v
}

func (m *VM) handleLoad(instr bytecode.Instruction) {
	if int(instr.Arg1) >= len(m.table) {
		m.fatalf("ERROR: Invalid variable name index in LOAD")
		return
	}
	name := m.table[instr.Arg1]
	if v, ok := m.variables[name]; ok {
		m.push(v)
		return
	}
	m.errorf("ERROR: Variable not found: %s", name)
	m.push(bytecode.IntValue(0))
}

func (m *VM) handleJump(instr bytecode.Instruction) {
	if instr.Arg1 < uint32(len(m.program)) {
		m.pc = instr.Arg1
		return
	}
	m.fatalf("ERROR: Jump to invalid address")
}

// handleJumpIf branches when the popped value carries a taken condition:
// nonzero int, nonzero float, or non-empty string. Comparisons encode true
// as 0 and the compiler patches JUMP_IF to the false edge, so a failed test
// is what takes the branch.
func (m *VM) handleJumpIf(instr bytecode.Instruction) {
	v, ok := m.pop()
	if !ok {
		return
	}

	taken := false
	switch v.Type {
	case bytecode.TypeInt:
		taken = v.Int != 0
	case bytecode.TypeFloat:
		taken = v.Float != 0.0
	case bytecode.TypeString:
		taken = m.stringAt(v.Str) != ""
	}
	if !taken {
		return
	}

	if instr.Arg1 < uint32(len(m.program)) {
		m.pc = instr.Arg1
		return
	}
	m.fatalf("ERROR: Jump to invalid address")
}

func (m *VM) handleInput(instr bytecode.Instruction) {
	if int(instr.Arg1) >= len(m.table) {
		m.fatalf("ERROR: Invalid variable name index in INPUT")
		return
	}
	name := m.table[instr.Arg1]
	m.console.PrintLine("INPUT " + name + ":")

	line, ok := m.console.ReadLineWithTimeout(inputTimeout)
	line = strings.TrimSpace(line)
	if !ok || line == "" {
		m.console.PrintLine("TIMEOUT - using default value 0")
		m.variables[name] = bytecode.IntValue(0)
		return
	}

	m.variables[name] = m.parseInput(line)
	m.console.PrintLine("-> " + line)
}

// parseInput classifies a console line: all decimal digits with an optional
// leading minus is an integer, the same with exactly one '.' is a float,
// anything else is interned as a string.
func (m *VM) parseInput(line string) bytecode.Value {
	if isInputInteger(line) {
		v, _ := strconv.ParseInt(line, 10, 64)
		return bytecode.IntValue(int32(v))
	}
	if isInputFloat(line) {
		f, _ := strconv.ParseFloat(line, 32)
		return bytecode.FloatValue(float32(f))
	}
	return bytecode.StringValue(m.addString(line))
}

func isInputInteger(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isInputFloat(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		start = 1
	}
	hasDecimal := false
	hasDigit := false
	for i := start; i < len(s); i++ {
		switch {
		case s[i] == '.':
			if hasDecimal {
				return false
			}
			hasDecimal = true
		case s[i] >= '0' && s[i] <= '9':
			hasDigit = true
		default:
			return false
		}
	}
	return hasDecimal && hasDigit
}

func (m *VM) handleHalt(bytecode.Instruction) {
	m.running = false
}
