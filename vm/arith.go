package vm

import (
	"math"

	"github.com/xenolang/xeno/bytecode"
)

// Overflow-checked 32-bit signed arithmetic. Each predicate returns false
// instead of wrapping; the perform* wrappers turn that into a reported soft
// error with a zero result.

func addChecked(a, b int32) (int32, bool) {
	if (b > 0 && a > math.MaxInt32-b) || (b < 0 && a < math.MinInt32-b) {
		return 0, false
	}
	return a + b, true
}

func subChecked(a, b int32) (int32, bool) {
	if (b > 0 && a < math.MinInt32+b) || (b < 0 && a > math.MaxInt32+b) {
		return 0, false
	}
	return a - b, true
}

func mulChecked(a, b int32) (int32, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt32/b {
				return 0, false
			}
		} else {
			if b < math.MinInt32/a {
				return 0, false
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt32/b {
				return 0, false
			}
		} else {
			if a < math.MaxInt32/b {
				return 0, false
			}
		}
	}
	return a * b, true
}

// powChecked computes base**exponent by repeated multiplication, checking
// for overflow at each step. Negative exponents fail.
func powChecked(base, exponent int32) (int32, bool) {
	if exponent < 0 {
		return 0, false
	}
	if exponent == 0 {
		return 1, true
	}
	if base == 0 {
		return 0, true
	}
	result := int32(1)
	for i := int32(0); i < exponent; i++ {
		var ok bool
		result, ok = mulChecked(result, base)
		if !ok {
			return 0, false
		}
	}
	return result, true
}

func bothNumeric(a, b bytecode.Value) bool {
	return a.IsNumeric() && b.IsNumeric()
}

func anyFloat(a, b bytecode.Value) bool {
	return a.Type == bytecode.TypeFloat || b.Type == bytecode.TypeFloat
}

// performAddition implements the polymorphic +: string operands force
// concatenation of display strings (interned as a new string value),
// otherwise numeric addition with float promotion and overflow checking.
func (m *VM) performAddition(a, b bytecode.Value) bytecode.Value {
	if a.Type == bytecode.TypeString || b.Type == bytecode.TypeString {
		combined := m.convertToString(a) + m.convertToString(b)
		return bytecode.StringValue(m.addString(combined))
	}

	if bothNumeric(a, b) {
		if anyFloat(a, b) {
			return bytecode.FloatValue(a.AsFloat() + b.AsFloat())
		}
		if result, ok := addChecked(a.Int, b.Int); ok {
			return bytecode.IntValue(result)
		}
		m.errorf("ERROR: Integer overflow in addition")
		return bytecode.IntValue(0)
	}
	return bytecode.IntValue(0)
}

func (m *VM) performSubtraction(a, b bytecode.Value) bytecode.Value {
	if bothNumeric(a, b) {
		if anyFloat(a, b) {
			return bytecode.FloatValue(a.AsFloat() - b.AsFloat())
		}
		if result, ok := subChecked(a.Int, b.Int); ok {
			return bytecode.IntValue(result)
		}
		m.errorf("ERROR: Integer overflow in subtraction")
		return bytecode.IntValue(0)
	}
	return bytecode.IntValue(0)
}

func (m *VM) performMultiplication(a, b bytecode.Value) bytecode.Value {
	if bothNumeric(a, b) {
		if anyFloat(a, b) {
			return bytecode.FloatValue(a.AsFloat() * b.AsFloat())
		}
		if result, ok := mulChecked(a.Int, b.Int); ok {
			return bytecode.IntValue(result)
		}
		m.errorf("ERROR: Integer overflow in multiplication")
		return bytecode.IntValue(0)
	}
	return bytecode.IntValue(0)
}

func (m *VM) performDivision(a, b bytecode.Value) bytecode.Value {
	if !bothNumeric(a, b) {
		return bytecode.IntValue(0)
	}
	if anyFloat(a, b) {
		bf := b.AsFloat()
		if bf == 0.0 {
			m.errorf("ERROR: Division by zero")
			return bytecode.FloatValue(0.0)
		}
		return bytecode.FloatValue(a.AsFloat() / bf)
	}
	if b.Int == 0 {
		m.errorf("ERROR: Division by zero")
		return bytecode.IntValue(0)
	}
	if a.Int == math.MinInt32 && b.Int == -1 {
		m.errorf("ERROR: Integer overflow in division")
		return bytecode.IntValue(0)
	}
	return bytecode.IntValue(a.Int / b.Int)
}

func (m *VM) performModulo(a, b bytecode.Value) bytecode.Value {
	if a.Type != bytecode.TypeInt || b.Type != bytecode.TypeInt {
		m.errorf("ERROR: Modulo requires integer operands")
		return bytecode.IntValue(0)
	}
	if b.Int == 0 {
		m.errorf("ERROR: Modulo by zero")
		return bytecode.IntValue(0)
	}
	if a.Int == math.MinInt32 && b.Int == -1 {
		return bytecode.IntValue(0)
	}
	return bytecode.IntValue(a.Int % b.Int)
}

func (m *VM) performPower(a, b bytecode.Value) bytecode.Value {
	if bothNumeric(a, b) {
		if anyFloat(a, b) {
			return bytecode.FloatValue(float32(math.Pow(float64(a.AsFloat()), float64(b.AsFloat()))))
		}
		if result, ok := powChecked(a.Int, b.Int); ok {
			return bytecode.IntValue(result)
		}
		if b.Int >= 0 {
			m.errorf("ERROR: Integer overflow in power operation")
		}
		return bytecode.IntValue(0)
	}
	return bytecode.IntValue(0)
}

func (m *VM) performAbs(a bytecode.Value) bytecode.Value {
	switch a.Type {
	case bytecode.TypeInt:
		if a.Int == math.MinInt32 {
			m.errorf("ERROR: Integer overflow in absolute value")
			return bytecode.IntValue(math.MaxInt32)
		}
		if a.Int < 0 {
			return bytecode.IntValue(-a.Int)
		}
		return a
	case bytecode.TypeFloat:
		return bytecode.FloatValue(float32(math.Abs(float64(a.Float))))
	}
	return bytecode.IntValue(0)
}

func (m *VM) performSqrt(a bytecode.Value) bytecode.Value {
	switch a.Type {
	case bytecode.TypeInt:
		if a.Int < 0 {
			m.errorf("ERROR: Square root of negative number")
			return bytecode.FloatValue(0.0)
		}
		return bytecode.FloatValue(float32(math.Sqrt(float64(a.Int))))
	case bytecode.TypeFloat:
		if a.Float < 0 {
			m.errorf("ERROR: Square root of negative number")
			return bytecode.FloatValue(0.0)
		}
		return bytecode.FloatValue(float32(math.Sqrt(float64(a.Float))))
	}
	return bytecode.IntValue(0)
}

func (m *VM) performMax(a, b bytecode.Value) bytecode.Value {
	if !bothNumeric(a, b) {
		return bytecode.IntValue(0)
	}
	if anyFloat(a, b) {
		if a.AsFloat() >= b.AsFloat() {
			return bytecode.FloatValue(a.AsFloat())
		}
		return bytecode.FloatValue(b.AsFloat())
	}
	if a.Int >= b.Int {
		return a
	}
	return b
}

func (m *VM) performMin(a, b bytecode.Value) bytecode.Value {
	if !bothNumeric(a, b) {
		return bytecode.IntValue(0)
	}
	if anyFloat(a, b) {
		if a.AsFloat() <= b.AsFloat() {
			return bytecode.FloatValue(a.AsFloat())
		}
		return bytecode.FloatValue(b.AsFloat())
	}
	if a.Int <= b.Int {
		return a
	}
	return b
}

// performComparison evaluates one of the six relations. Same-type operands
// compare directly, mixed numerics compare as floats, and string/number
// pairs are never equal, less, or greater.
func (m *VM) performComparison(a, b bytecode.Value, op bytecode.Opcode) bool {
	if a.Type != b.Type {
		if bothNumeric(a, b) {
			return compareFloats(a.AsFloat(), b.AsFloat(), op)
		}
		return false
	}

	switch a.Type {
	case bytecode.TypeInt:
		switch op {
		case bytecode.OpEq:
			return a.Int == b.Int
		case bytecode.OpNeq:
			return a.Int != b.Int
		case bytecode.OpLt:
			return a.Int < b.Int
		case bytecode.OpGt:
			return a.Int > b.Int
		case bytecode.OpLte:
			return a.Int <= b.Int
		case bytecode.OpGte:
			return a.Int >= b.Int
		}
	case bytecode.TypeFloat:
		return compareFloats(a.Float, b.Float, op)
	case bytecode.TypeString:
		sa, sb := m.stringAt(a.Str), m.stringAt(b.Str)
		switch op {
		case bytecode.OpEq:
			return sa == sb
		case bytecode.OpNeq:
			return sa != sb
		case bytecode.OpLt:
			return sa < sb
		case bytecode.OpGt:
			return sa > sb
		case bytecode.OpLte:
			return sa <= sb
		case bytecode.OpGte:
			return sa >= sb
		}
	}
	return false
}

func compareFloats(a, b float32, op bytecode.Opcode) bool {
	switch op {
	case bytecode.OpEq:
		return a == b
	case bytecode.OpNeq:
		return a != b
	case bytecode.OpLt:
		return a < b
	case bytecode.OpGt:
		return a > b
	case bytecode.OpLte:
		return a <= b
	case bytecode.OpGte:
		return a >= b
	}
	return false
}

func (m *VM) stringAt(idx uint16) string {
	if int(idx) < len(m.table) {
		return m.table[idx]
	}
	return ""
}
