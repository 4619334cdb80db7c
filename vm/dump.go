package vm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xenolang/xeno/bytecode"
)

// dumpStackLimit caps how many stack slots DumpState renders.
const dumpStackLimit = 10

// DumpState returns a human-readable snapshot of the machine: program
// counter, stack pointer, the bottom of the stack, and every variable.
func (m *VM) DumpState() string {
	var sb strings.Builder
	sb.WriteString("=== VM State ===\n")
	sb.WriteString(fmt.Sprintf("Program Counter: %d\n", m.pc))
	sb.WriteString(fmt.Sprintf("Stack Pointer: %d\n", m.sp))

	sb.WriteString("Stack: [\n")
	for i := 0; i < m.sp && i < dumpStackLimit; i++ {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, m.formatValue(m.stack[i])))
	}
	if m.sp > dumpStackLimit {
		sb.WriteString("  ...\n")
	}
	sb.WriteString("]\n")

	names := make([]string, 0, len(m.variables))
	for name := range m.variables {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("Variables: {\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", name, m.formatValue(m.variables[name])))
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (m *VM) formatValue(v bytecode.Value) string {
	switch v.Type {
	case bytecode.TypeInt:
		return fmt.Sprintf("INT %d", v.Int)
	case bytecode.TypeFloat:
		return fmt.Sprintf("FLOAT %.4f", v.Float)
	case bytecode.TypeString:
		return fmt.Sprintf("STRING %q", m.stringAt(v.Str))
	}
	return "?"
}

// Disassemble returns the loaded program's listing.
func (m *VM) Disassemble() string {
	return bytecode.Disassemble(m.program, m.table)
}
