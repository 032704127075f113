// Package value implements the typed runtime values sketches operate
// on, and the nested scope store that holds them.
//
// Composite values (arrays, structs, library objects) are heap cells
// shared by reference: assigning one aliases storage rather than
// copying it, so a mutation through any holder is visible to every
// holder. This is required behavior, not an accident of the
// implementation.
package value

import (
	"fmt"
	"strconv"
)

// Kind tags the Value union.
type Kind uint8

const (
	Void Kind = iota
	Bool
	Int32
	UInt32
	Float64
	String
	Array
	Struct
	Object
)

var kindNames = [...]string{
	Void:    "void",
	Bool:    "bool",
	Int32:   "int",
	UInt32:  "unsigned",
	Float64: "float",
	String:  "String",
	Array:   "array",
	Struct:  "struct",
	Object:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ObjectHandle identifies a constructed library object. The concrete
// type lives with the library registry; the engine only needs the
// names for command emission.
type ObjectHandle interface {
	TypeName() string
	ObjectName() string
}

// ArrayCell is the shared storage behind an Array value.
type ArrayCell struct {
	ElemKind Kind
	Elems    []Value
}

// StructCell is the shared storage behind a Struct value.
type StructCell struct {
	TypeName string
	Fields   map[string]Value
}

// Value is the tagged union of everything a sketch can compute.
type Value struct {
	Kind Kind
	B    bool
	I    int32
	U    uint32
	F    float64
	S    string
	Arr  *ArrayCell
	St   *StructCell
	Obj  ObjectHandle
}

// Constructors.

func VoidValue() Value          { return Value{Kind: Void} }
func BoolValue(v bool) Value    { return Value{Kind: Bool, B: v} }
func IntValue(v int32) Value    { return Value{Kind: Int32, I: v} }
func UIntValue(v uint32) Value  { return Value{Kind: UInt32, U: v} }
func FloatValue(v float64) Value { return Value{Kind: Float64, F: v} }
func StringValue(v string) Value { return Value{Kind: String, S: v} }

func ArrayValue(cell *ArrayCell) Value   { return Value{Kind: Array, Arr: cell} }
func StructValue(cell *StructCell) Value { return Value{Kind: Struct, St: cell} }
func ObjectValue(h ObjectHandle) Value   { return Value{Kind: Object, Obj: h} }

// Zero returns the sentinel value of a kind: false, 0, 0u, 0.0, "".
// Out-of-bounds array reads degrade to this rather than aborting.
func Zero(kind Kind) Value {
	switch kind {
	case Bool:
		return BoolValue(false)
	case UInt32:
		return UIntValue(0)
	case Float64:
		return FloatValue(0)
	case String:
		return StringValue("")
	case Void:
		return VoidValue()
	default:
		return IntValue(0)
	}
}

// String renders a value for Serial output and diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case Void:
		return ""
	case Bool:
		if v.B {
			return "1"
		}
		return "0"
	case Int32:
		return strconv.FormatInt(int64(v.I), 10)
	case UInt32:
		return strconv.FormatUint(uint64(v.U), 10)
	case Float64:
		// Arduino prints two decimals by default.
		return strconv.FormatFloat(v.F, 'f', 2, 64)
	case String:
		return v.S
	case Array:
		return fmt.Sprintf("array[%d]", len(v.Arr.Elems))
	case Struct:
		return v.St.TypeName
	case Object:
		return v.Obj.TypeName()
	default:
		return "?"
	}
}

// IsNumeric reports whether the value participates in arithmetic.
func (v Value) IsNumeric() bool {
	switch v.Kind {
	case Bool, Int32, UInt32, Float64:
		return true
	default:
		return false
	}
}

// IsTruthy implements the sketch truthiness rules: zero and false are
// falsy, everything else (including references) is truthy.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case Void:
		return false
	case Bool:
		return v.B
	case Int32:
		return v.I != 0
	case UInt32:
		return v.U != 0
	case Float64:
		return v.F != 0
	case String:
		return v.S != ""
	default:
		return true
	}
}

// AsFloat widens any numeric value to float64.
func (v Value) AsFloat() float64 {
	switch v.Kind {
	case Bool:
		if v.B {
			return 1
		}
		return 0
	case Int32:
		return float64(v.I)
	case UInt32:
		return float64(v.U)
	case Float64:
		return v.F
	default:
		return 0
	}
}

// AsInt64 widens any numeric value to int64 (truncating floats,
// C-style).
func (v Value) AsInt64() int64 {
	switch v.Kind {
	case Bool:
		if v.B {
			return 1
		}
		return 0
	case Int32:
		return int64(v.I)
	case UInt32:
		return int64(v.U)
	case Float64:
		return int64(v.F)
	default:
		return 0
	}
}

// DeclKind maps a declared sketch type name onto a value kind.
func DeclKind(typeName string) Kind {
	switch typeName {
	case "void":
		return Void
	case "bool", "boolean":
		return Bool
	case "unsigned int", "unsigned long", "unsigned short", "word", "byte", "uint8_t", "uint16_t", "uint32_t":
		return UInt32
	case "float", "double":
		return Float64
	case "String", "string":
		return String
	default:
		// int, long, short, char, int8_t..int32_t and anything unknown.
		return Int32
	}
}

// Convert coerces v to the declared kind, C-style (truncation, wrap).
// Converting a composite to a scalar kind is a type error.
func Convert(v Value, kind Kind) (Value, error) {
	if v.Kind == kind {
		return v, nil
	}
	switch kind {
	case Bool:
		if !v.IsNumeric() && v.Kind != String {
			return Value{}, convertErr(v, kind)
		}
		return BoolValue(v.IsTruthy()), nil
	case Int32:
		if !v.IsNumeric() {
			return Value{}, convertErr(v, kind)
		}
		return IntValue(int32(v.AsInt64())), nil
	case UInt32:
		if !v.IsNumeric() {
			return Value{}, convertErr(v, kind)
		}
		return UIntValue(uint32(v.AsInt64())), nil
	case Float64:
		if !v.IsNumeric() {
			return Value{}, convertErr(v, kind)
		}
		return FloatValue(v.AsFloat()), nil
	case String:
		return StringValue(v.String()), nil
	case Void:
		return VoidValue(), nil
	default:
		return Value{}, convertErr(v, kind)
	}
}

func convertErr(v Value, kind Kind) error {
	return fmt.Errorf("cannot convert %s to %s", v.Kind, kind)
}
