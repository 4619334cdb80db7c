package security

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xenolang/xeno/bytecode"
)

func halting(instrs ...bytecode.Instruction) bytecode.Program {
	return append(bytecode.Program(instrs), bytecode.Instr(bytecode.OpHalt))
}

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	c := NewConfig()
	program := halting(
		bytecode.InstrArg(bytecode.OpPrint, 0),
		bytecode.InstrArg(bytecode.OpPush, 5),
		bytecode.InstrArg(bytecode.OpLedOn, 13),
		bytecode.InstrArg(bytecode.OpDelay, 60000),
		bytecode.InstrArg(bytecode.OpJump, 0),
	)
	require.NoError(t, c.VerifyBytecode(program, []string{"hello"}))
}

func TestVerifyRejectsUndefinedOpcode(t *testing.T) {
	c := NewConfig()
	program := halting(bytecode.Instr(bytecode.Opcode(31)))
	err := c.VerifyBytecode(program, nil)
	require.ErrorContains(t, err, "invalid opcode")

	program = halting(bytecode.Instr(bytecode.Opcode(200)))
	require.Error(t, c.VerifyBytecode(program, nil))
}

func TestVerifyRejectsBadJumpTarget(t *testing.T) {
	c := NewConfig()
	program := halting(bytecode.InstrArg(bytecode.OpJump, 99))
	require.ErrorContains(t, c.VerifyBytecode(program, nil), "jump target")

	program = halting(bytecode.InstrArg(bytecode.OpJumpIf, 2))
	require.Error(t, c.VerifyBytecode(program, nil))
}

func TestVerifyRejectsBadStringIndex(t *testing.T) {
	c := NewConfig()
	for _, op := range []bytecode.Opcode{
		bytecode.OpPrint, bytecode.OpPushString, bytecode.OpStore,
		bytecode.OpLoad, bytecode.OpInput,
	} {
		program := halting(bytecode.InstrArg(op, 1))
		require.ErrorContains(t, c.VerifyBytecode(program, []string{"only"}), "string index", "op %s", op)
	}
}

func TestVerifyRejectsUnauthorizedPin(t *testing.T) {
	c := NewConfig()
	program := halting(bytecode.InstrArg(bytecode.OpLedOn, 14))
	require.ErrorContains(t, c.VerifyBytecode(program, nil), "unauthorized pin")

	program = halting(bytecode.InstrArg(bytecode.OpLedOff, 1000))
	require.Error(t, c.VerifyBytecode(program, nil))
}

func TestVerifyRejectsExcessiveDelay(t *testing.T) {
	c := NewConfig()
	program := halting(bytecode.InstrArg(bytecode.OpDelay, 60001))
	require.ErrorContains(t, c.VerifyBytecode(program, nil), "excessive delay")
}

func TestVerifyRejectsOversizedProgram(t *testing.T) {
	c := NewConfig()
	program := make(bytecode.Program, VerifyMaxProgramLength+1)
	for i := range program {
		program[i] = bytecode.Instr(bytecode.OpNop)
	}
	program[len(program)-1] = bytecode.Instr(bytecode.OpHalt)
	require.ErrorContains(t, c.VerifyBytecode(program, nil), "program too large")
}

func TestVerifyRejectsOversizedStringTable(t *testing.T) {
	c := NewConfig()
	table := make([]string, VerifyMaxStringTableLength+1)
	require.ErrorContains(t, c.VerifyBytecode(halting(), table), "string table too large")
}

func TestVerifyRequiresHaltInLongPrograms(t *testing.T) {
	c := NewConfig()

	// Short programs may omit HALT.
	short := make(bytecode.Program, 10)
	for i := range short {
		short[i] = bytecode.Instr(bytecode.OpNop)
	}
	require.NoError(t, c.VerifyBytecode(short, nil))

	// Longer ones may not.
	long := make(bytecode.Program, 11)
	for i := range long {
		long[i] = bytecode.Instr(bytecode.OpNop)
	}
	require.ErrorContains(t, c.VerifyBytecode(long, nil), "no HALT")

	long[5] = bytecode.Instr(bytecode.OpHalt)
	require.NoError(t, c.VerifyBytecode(long, nil))
}
