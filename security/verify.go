package security

import (
	"fmt"

	"github.com/xenolang/xeno/bytecode"
)

// Hard verification limits. These are not configurable: they cap what any
// program may look like regardless of the tunable runtime budgets.
const (
	// VerifyMaxProgramLength is the largest loadable program.
	VerifyMaxProgramLength = 10000

	// VerifyMaxStringTableLength is the largest loadable string table.
	VerifyMaxStringTableLength = 1000

	// VerifyMaxDelayMillis caps a single DELAY instruction.
	VerifyMaxDelayMillis = 60000

	// haltRequiredAbove is the program length beyond which a HALT must be
	// present somewhere in the program.
	haltRequiredAbove = 10
)

// VerifyBytecode checks a program against the string table and the pin
// whitelist before it may be loaded. A nil return means the program is safe
// to execute: every opcode is defined, every jump lands inside the program,
// every string argument indexes the table, every pin is whitelisted, no
// delay exceeds the cap, and any nontrivial program can halt.
func (c *Config) VerifyBytecode(program bytecode.Program, table []string) error {
	if len(program) > VerifyMaxProgramLength {
		return fmt.Errorf("program too large: %d instructions (limit %d)", len(program), VerifyMaxProgramLength)
	}
	if len(table) > VerifyMaxStringTableLength {
		return fmt.Errorf("string table too large: %d entries (limit %d)", len(table), VerifyMaxStringTableLength)
	}

	hasHalt := false
	for i, instr := range program {
		if !instr.Op.IsDefined() {
			return fmt.Errorf("invalid opcode %d at instruction %d", uint8(instr.Op), i)
		}
		if instr.Op.IsJump() && instr.Arg1 >= uint32(len(program)) {
			return fmt.Errorf("invalid jump target %d at instruction %d", instr.Arg1, i)
		}
		if instr.Op.HasStringArg() && instr.Arg1 >= uint32(len(table)) {
			return fmt.Errorf("invalid string index %d at instruction %d", instr.Arg1, i)
		}
		switch instr.Op {
		case bytecode.OpLedOn, bytecode.OpLedOff:
			if instr.Arg1 > MaxPinNumber || !c.IsPinAllowed(uint8(instr.Arg1)) {
				return fmt.Errorf("unauthorized pin %d at instruction %d", instr.Arg1, i)
			}
		case bytecode.OpDelay:
			if instr.Arg1 > VerifyMaxDelayMillis {
				return fmt.Errorf("excessive delay %dms at instruction %d", instr.Arg1, i)
			}
		case bytecode.OpHalt:
			hasHalt = true
		}
	}

	if !hasHalt && len(program) > haltRequiredAbove {
		return fmt.Errorf("program of %d instructions has no HALT", len(program))
	}
	return nil
}
