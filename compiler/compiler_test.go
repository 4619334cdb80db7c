package compiler

import (
	"strings"
	"testing"

	"github.com/xenolang/xeno/bytecode"
	"github.com/xenolang/xeno/security"
)

// testConsole collects diagnostics.
type testConsole struct {
	lines []string
}

func (c *testConsole) PrintLine(text string) {
	c.lines = append(c.lines, text)
}

func (c *testConsole) contains(substr string) bool {
	for _, l := range c.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func compile(t *testing.T, source string) (*Compiler, *testConsole) {
	t.Helper()
	console := &testConsole{}
	c := New(security.NewConfig(), console)
	c.Compile(source)
	return c, console
}

func opcodes(p bytecode.Program) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, len(p))
	for i, instr := range p {
		ops[i] = instr.Op
	}
	return ops
}

func expectOps(t *testing.T, got bytecode.Program, want ...bytecode.Opcode) {
	t.Helper()
	gotOps := opcodes(got)
	if len(gotOps) != len(want) {
		t.Fatalf("program = %v, want %v", gotOps, want)
	}
	for i := range want {
		if gotOps[i] != want[i] {
			t.Fatalf("instruction %d = %s, want %s (program %v)", i, gotOps[i], want[i], gotOps)
		}
	}
}

func TestPrintLiteral(t *testing.T) {
	c, _ := compile(t, `print "hello"`)
	expectOps(t, c.Bytecode(), bytecode.OpPrint, bytecode.OpHalt)
	if got := c.StringTable()[c.Bytecode()[0].Arg1]; got != "hello" {
		t.Errorf("interned %q", got)
	}
}

func TestPrintUnquotedLiteral(t *testing.T) {
	c, _ := compile(t, "print hello world")
	expectOps(t, c.Bytecode(), bytecode.OpPrint, bytecode.OpHalt)
	if got := c.StringTable()[0]; got != "hello world" {
		t.Errorf("interned %q", got)
	}
}

func TestPrintVariable(t *testing.T) {
	c, _ := compile(t, "print $x")
	expectOps(t, c.Bytecode(), bytecode.OpLoad, bytecode.OpPrintNum, bytecode.OpHalt)
	if got := c.StringTable()[c.Bytecode()[0].Arg1]; got != "x" {
		t.Errorf("variable name %q", got)
	}
}

func TestPrintInvalidVariable(t *testing.T) {
	_, console := compile(t, "print $9bad")
	if !console.contains("Invalid variable name in print at line 1") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestLed(t *testing.T) {
	c, _ := compile(t, "led 13 on\nled 13 off\nled 5 1\nled 5 0")
	expectOps(t, c.Bytecode(),
		bytecode.OpLedOn, bytecode.OpLedOff, bytecode.OpLedOn, bytecode.OpLedOff,
		bytecode.OpHalt)
	if c.Bytecode()[0].Arg1 != 13 || c.Bytecode()[2].Arg1 != 5 {
		t.Errorf("pins = %d, %d", c.Bytecode()[0].Arg1, c.Bytecode()[2].Arg1)
	}
}

func TestLedErrors(t *testing.T) {
	c, console := compile(t, "led 300 on\nled 4 blink\nled 4")
	if !console.contains("Invalid pin number at line 1") {
		t.Errorf("diagnostics = %v", console.lines)
	}
	if !console.contains("Unknown LED state at line 2") {
		t.Errorf("diagnostics = %v", console.lines)
	}
	if !console.contains("Invalid LED command at line 3") {
		t.Errorf("diagnostics = %v", console.lines)
	}
	expectOps(t, c.Bytecode(), bytecode.OpHalt)
}

func TestDelayClamped(t *testing.T) {
	c, console := compile(t, "delay 500\ndelay 99999\ndelay -3")
	expectOps(t, c.Bytecode(),
		bytecode.OpDelay, bytecode.OpDelay, bytecode.OpDelay, bytecode.OpHalt)
	if c.Bytecode()[0].Arg1 != 500 {
		t.Errorf("delay = %d", c.Bytecode()[0].Arg1)
	}
	if c.Bytecode()[1].Arg1 != 60000 {
		t.Errorf("clamped high delay = %d", c.Bytecode()[1].Arg1)
	}
	if c.Bytecode()[2].Arg1 != 0 {
		t.Errorf("clamped low delay = %d", c.Bytecode()[2].Arg1)
	}
	if !console.contains("Delay time out of range at line 2") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestPushVariants(t *testing.T) {
	c, _ := compile(t, "push 42\npush -7\npush 1.5\npush \"txt\"\npush v")
	expectOps(t, c.Bytecode(),
		bytecode.OpPush, bytecode.OpPush, bytecode.OpPushFloat,
		bytecode.OpPushString, bytecode.OpLoad, bytecode.OpHalt)

	if c.Bytecode()[0].IntArg() != 42 || c.Bytecode()[1].IntArg() != -7 {
		t.Errorf("immediates = %d, %d", c.Bytecode()[0].IntArg(), c.Bytecode()[1].IntArg())
	}
	if c.Bytecode()[2].FloatArg() != 1.5 {
		t.Errorf("float immediate = %v", c.Bytecode()[2].FloatArg())
	}
}

func TestPushOutOfRange(t *testing.T) {
	c, console := compile(t, "push 99999999999")
	expectOps(t, c.Bytecode(), bytecode.OpPush, bytecode.OpHalt)
	if c.Bytecode()[0].IntArg() != 0 {
		t.Errorf("fallback immediate = %d", c.Bytecode()[0].IntArg())
	}
	if !console.contains("Invalid push value at line 1") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestStackCommands(t *testing.T) {
	c, _ := compile(t, "pop\nadd\nsub\nmul\ndiv\nmod\nabs\npow\nmax\nmin\nsqrt")
	expectOps(t, c.Bytecode(),
		bytecode.OpPop, bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul,
		bytecode.OpDiv, bytecode.OpMod, bytecode.OpAbs, bytecode.OpPow,
		bytecode.OpMax, bytecode.OpMin, bytecode.OpSqrt, bytecode.OpHalt)
}

func TestCommandsAreCaseInsensitive(t *testing.T) {
	c, _ := compile(t, `PRINT "hi"`+"\nHALT")
	expectOps(t, c.Bytecode(), bytecode.OpPrint, bytecode.OpHalt)
}

func TestSetWithExpression(t *testing.T) {
	c, _ := compile(t, "set x 2+3*4")
	expectOps(t, c.Bytecode(),
		bytecode.OpPush, bytecode.OpPush, bytecode.OpPush,
		bytecode.OpMul, bytecode.OpAdd, bytecode.OpStore, bytecode.OpHalt)
	if got := c.StringTable()[c.Bytecode()[5].Arg1]; got != "x" {
		t.Errorf("store target %q", got)
	}
}

func TestInput(t *testing.T) {
	c, console := compile(t, "input count\ninput 9bad")
	expectOps(t, c.Bytecode(), bytecode.OpInput, bytecode.OpHalt)
	if !console.contains("Invalid variable name for input at line 2") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestIfElseEndifPatching(t *testing.T) {
	c, _ := compile(t, strings.Join([]string{
		"set i 5",
		"if i >= 3 then",
		`print "big"`,
		"else",
		`print "small"`,
		"endif",
	}, "\n"))

	expectOps(t, c.Bytecode(),
		bytecode.OpPush,   // 0: 5
		bytecode.OpStore,  // 1: i
		bytecode.OpLoad,   // 2: i
		bytecode.OpPush,   // 3: 3
		bytecode.OpGte,    // 4
		bytecode.OpJumpIf, // 5 -> else branch
		bytecode.OpPrint,  // 6: "big"
		bytecode.OpJump,   // 7 -> endif
		bytecode.OpPrint,  // 8: "small"
		bytecode.OpHalt,   // 9
	)
	if got := c.Bytecode()[5].Arg1; got != 8 {
		t.Errorf("JUMP_IF target = %d, want 8", got)
	}
	if got := c.Bytecode()[7].Arg1; got != 9 {
		t.Errorf("JUMP target = %d, want 9", got)
	}
}

func TestIfWithoutElse(t *testing.T) {
	c, _ := compile(t, "if x == 1 then\nprint \"one\"\nendif")
	ops := opcodes(c.Bytecode())
	// LOAD PUSH EQ JUMP_IF PRINT HALT
	if ops[3] != bytecode.OpJumpIf {
		t.Fatalf("program = %v", ops)
	}
	if got := c.Bytecode()[3].Arg1; got != 5 {
		t.Errorf("JUMP_IF target = %d, want 5", got)
	}
}

func TestControlFlowErrors(t *testing.T) {
	_, console := compile(t, "else\nendif\nendfor\nif x then")
	for _, want := range []string{
		"ELSE without IF at line 1",
		"ENDIF without IF at line 2",
		"ENDFOR without FOR at line 3",
		"IF block(s) not closed",
	} {
		if !console.contains(want) {
			t.Errorf("missing %q in %v", want, console.lines)
		}
	}
}

func TestInvalidIf(t *testing.T) {
	_, console := compile(t, "if x == 1")
	if !console.contains("Invalid IF command at line 1") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestIfNestingLimit(t *testing.T) {
	console := &testConsole{}
	sec := security.NewConfig()
	if err := sec.SetMaxIfDepth(2); err != nil {
		t.Fatal(err)
	}
	c := New(sec, console)
	c.Compile(strings.Join([]string{
		"if a == 1 then",
		"if b == 1 then",
		"if c == 1 then",
		"endif",
		"endif",
		"endif",
	}, "\n"))
	if !console.contains("IF nesting too deep at line 3") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestForEndforShape(t *testing.T) {
	c, _ := compile(t, "for n = 1 to 3\nprint $n\nendfor")
	expectOps(t, c.Bytecode(),
		bytecode.OpPush,     // 0: 1
		bytecode.OpStore,    // 1: n
		bytecode.OpLoad,     // 2: n (loop start)
		bytecode.OpPush,     // 3: 3
		bytecode.OpLte,      // 4
		bytecode.OpJumpIf,   // 5 -> exit
		bytecode.OpLoad,     // 6: n
		bytecode.OpPrintNum, // 7
		bytecode.OpLoad,     // 8: n
		bytecode.OpPush,     // 9: 1
		bytecode.OpAdd,      // 10
		bytecode.OpStore,    // 11: n
		bytecode.OpJump,     // 12 -> loop start
		bytecode.OpHalt,     // 13
	)
	if got := c.Bytecode()[5].Arg1; got != 13 {
		t.Errorf("exit target = %d, want 13", got)
	}
	if got := c.Bytecode()[12].Arg1; got != 2 {
		t.Errorf("back edge = %d, want 2", got)
	}
}

func TestForFloatIncrement(t *testing.T) {
	c, _ := compile(t, "for f = 1.5 to 3\nendfor")
	ops := opcodes(c.Bytecode())
	found := false
	for i, op := range ops {
		if op == bytecode.OpPushFloat && c.Bytecode()[i].FloatArg() == 1.0 {
			found = true
		}
	}
	if !found {
		t.Errorf("no PUSH_FLOAT 1.0 increment in %v", ops)
	}
}

func TestForIntIncrementForNonLiteralStart(t *testing.T) {
	c, _ := compile(t, "for i = x to 3\nendfor")
	for i, instr := range c.Bytecode() {
		if instr.Op == bytecode.OpPushFloat {
			t.Errorf("unexpected PUSH_FLOAT at %d", i)
		}
	}
}

func TestForErrors(t *testing.T) {
	_, console := compile(t, "for x 1 to 3\nfor 9x = 1 to 3")
	if !console.contains("Invalid FOR command at line 1") {
		t.Errorf("diagnostics = %v", console.lines)
	}
	if !console.contains("Invalid variable name in FOR at line 2") {
		t.Errorf("diagnostics = %v", console.lines)
	}
}

func TestHaltAppendedWhenMissing(t *testing.T) {
	c, _ := compile(t, `print "x"`)
	ops := opcodes(c.Bytecode())
	if ops[len(ops)-1] != bytecode.OpHalt {
		t.Errorf("program does not end with HALT: %v", ops)
	}

	c, _ = compile(t, "halt")
	expectOps(t, c.Bytecode(), bytecode.OpHalt)
}

func TestEmptySourceCompilesToHalt(t *testing.T) {
	c, _ := compile(t, "")
	expectOps(t, c.Bytecode(), bytecode.OpHalt)
}

func TestCommentsAndBlankLines(t *testing.T) {
	c, _ := compile(t, "// leading comment\n\nprint \"hi\" // trailing\n\n")
	expectOps(t, c.Bytecode(), bytecode.OpPrint, bytecode.OpHalt)
}

func TestUnknownCommandContinues(t *testing.T) {
	c, console := compile(t, "frobnicate 1\nprint \"ok\"")
	if !console.contains("Unknown command at line 1: frobnicate") {
		t.Errorf("diagnostics = %v", console.lines)
	}
	expectOps(t, c.Bytecode(), bytecode.OpPrint, bytecode.OpHalt)
}

func TestLineTooLong(t *testing.T) {
	long := "print \"" + strings.Repeat("a", 600) + "\""
	c, console := compile(t, long)
	if !console.contains("Line too long at line 1") {
		t.Errorf("diagnostics = %v", console.lines)
	}
	if c.Errors() == 0 {
		t.Error("line-too-long not counted as an error")
	}
}

func TestStringInterningDedup(t *testing.T) {
	c, _ := compile(t, `print "a"`+"\n"+`print "b"`+"\n"+`print "a"`)
	if len(c.StringTable()) != 2 {
		t.Fatalf("table = %v", c.StringTable())
	}
	if c.Bytecode()[0].Arg1 != c.Bytecode()[2].Arg1 {
		t.Error("repeated literal got a different index")
	}
}

func TestVariablesAndLiteralsShareTable(t *testing.T) {
	c, _ := compile(t, "set a 1\nprint \"a\"")
	// The variable name "a" and the literal "a" intern to the same entry.
	if len(c.StringTable()) != 1 {
		t.Fatalf("table = %v", c.StringTable())
	}
}

func TestJumpTargetsWithinProgram(t *testing.T) {
	source := strings.Join([]string{
		"for i = 1 to 3",
		"if i == 2 then",
		`print "two"`,
		"else",
		`print "other"`,
		"endif",
		"endfor",
	}, "\n")
	c, _ := compile(t, source)
	for i, instr := range c.Bytecode() {
		if instr.Op.IsJump() && instr.Arg1 >= uint32(len(c.Bytecode())) {
			t.Errorf("instruction %d: jump target %d out of range", i, instr.Arg1)
		}
	}
}
