package bytecode

import "strconv"

// ValueType tags a Value's payload.
type ValueType uint8

const (
	TypeInt    ValueType = 0
	TypeFloat  ValueType = 1
	TypeString ValueType = 2
)

// String returns a human-readable name for a ValueType.
func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return "STRING"
	default:
		return "ValueType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Value is the VM's tagged value. The tag is always valid; only the payload
// field matching the tag is meaningful. String values carry an index into
// the program's string table, never the text itself.
type Value struct {
	Type  ValueType
	Int   int32
	Float float32
	Str   uint16
}

// IntValue makes an integer value.
func IntValue(n int32) Value {
	return Value{Type: TypeInt, Int: n}
}

// FloatValue makes a float value.
func FloatValue(f float32) Value {
	return Value{Type: TypeFloat, Float: f}
}

// StringValue makes a string value referencing a string-table index.
func StringValue(idx uint16) Value {
	return Value{Type: TypeString, Str: idx}
}

// IsNumeric returns true for int and float values.
func (v Value) IsNumeric() bool {
	return v.Type == TypeInt || v.Type == TypeFloat
}

// AsFloat widens a numeric value to float32. Non-numeric values yield 0.
func (v Value) AsFloat() float32 {
	switch v.Type {
	case TypeInt:
		return float32(v.Int)
	case TypeFloat:
		return v.Float
	}
	return 0
}

// Display renders a value the way the VM converts it for concatenation:
// ints in decimal, floats with three fractional digits, strings as their
// table contents.
func (v Value) Display(strings []string) string {
	switch v.Type {
	case TypeInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(v.Float), 'f', 3, 32)
	case TypeString:
		if int(v.Str) < len(strings) {
			return strings[v.Str]
		}
	}
	return ""
}
