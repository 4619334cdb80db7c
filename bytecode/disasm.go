package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a program against its
// string table, one instruction per line.
func Disassemble(program Program, table []string) string {
	var sb strings.Builder
	for i, instr := range program {
		sb.WriteString(fmt.Sprintf("%4d: %s\n", i, FormatInstruction(instr, table)))
	}
	return sb.String()
}

// DisassembleListing returns the full compiled-program listing: the string
// table followed by the bytecode.
func DisassembleListing(program Program, table []string) string {
	var sb strings.Builder
	sb.WriteString("String table:\n")
	for i, s := range table {
		display := s
		if len(display) > 40 {
			display = display[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("  %3d: %q\n", i, display))
	}
	sb.WriteString("Bytecode:\n")
	for i, instr := range program {
		sb.WriteString(fmt.Sprintf("  %3d: %s\n", i, FormatInstruction(instr, table)))
	}
	return sb.String()
}

// FormatInstruction renders a single instruction, resolving string-table
// references where possible.
func FormatInstruction(instr Instruction, table []string) string {
	info := GetOpcodeInfo(instr.Op)
	switch info.Arg {
	case ArgNone:
		return info.Name
	case ArgInt:
		return fmt.Sprintf("%s %d", info.Name, instr.IntArg())
	case ArgFloat:
		return fmt.Sprintf("%s %.4f", info.Name, instr.FloatArg())
	case ArgString:
		if int(instr.Arg1) < len(table) {
			return fmt.Sprintf("%s %q", info.Name, table[instr.Arg1])
		}
		return fmt.Sprintf("%s <invalid string %d>", info.Name, instr.Arg1)
	case ArgVar:
		if int(instr.Arg1) < len(table) {
			return fmt.Sprintf("%s %s", info.Name, table[instr.Arg1])
		}
		return fmt.Sprintf("%s <invalid var %d>", info.Name, instr.Arg1)
	case ArgTarget:
		return fmt.Sprintf("%s %d", info.Name, instr.Arg1)
	case ArgPin:
		return fmt.Sprintf("%s pin=%d", info.Name, instr.Arg1)
	case ArgMillis:
		return fmt.Sprintf("%s %dms", info.Name, instr.Arg1)
	}
	return info.Name
}
