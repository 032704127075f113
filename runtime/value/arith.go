package value

import "fmt"

// promote widens two numeric operands to their common kind, C-style:
// float64 wins over unsigned, unsigned wins over signed, bools count
// as ints.
func promote(a, b Value) (Value, Value, Kind) {
	if a.Kind == Float64 || b.Kind == Float64 {
		return FloatValue(a.AsFloat()), FloatValue(b.AsFloat()), Float64
	}
	if a.Kind == UInt32 || b.Kind == UInt32 {
		return UIntValue(uint32(a.AsInt64())), UIntValue(uint32(b.AsInt64())), UInt32
	}
	return IntValue(int32(a.AsInt64())), IntValue(int32(b.AsInt64())), Int32
}

func opErr(op string, a, b Value) error {
	return fmt.Errorf("invalid operands for %q: %s and %s", op, a.Kind, b.Kind)
}

// BinaryOp applies a (non-logical) binary operator with implicit
// numeric promotion. Logical && and || never reach here - the
// evaluator short-circuits them.
func BinaryOp(op string, a, b Value) (Value, error) {
	switch op {
	case "+":
		// String concatenation, Arduino String-style: either side
		// being a string stringifies the other.
		if a.Kind == String || b.Kind == String {
			return StringValue(a.String() + b.String()), nil
		}
		fallthrough
	case "-", "*", "/", "%":
		return arithmetic(op, a, b)
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(op, a, b)
	case "&", "|", "^", "<<", ">>":
		return bitwise(op, a, b)
	default:
		return Value{}, fmt.Errorf("unknown operator %q", op)
	}
}

func arithmetic(op string, a, b Value) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Value{}, opErr(op, a, b)
	}
	pa, pb, kind := promote(a, b)

	if kind == Float64 {
		switch op {
		case "+":
			return FloatValue(pa.F + pb.F), nil
		case "-":
			return FloatValue(pa.F - pb.F), nil
		case "*":
			return FloatValue(pa.F * pb.F), nil
		case "/":
			if pb.F == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return FloatValue(pa.F / pb.F), nil
		case "%":
			return Value{}, opErr(op, a, b)
		}
	}

	if kind == UInt32 {
		switch op {
		case "+":
			return UIntValue(pa.U + pb.U), nil
		case "-":
			return UIntValue(pa.U - pb.U), nil
		case "*":
			return UIntValue(pa.U * pb.U), nil
		case "/":
			if pb.U == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return UIntValue(pa.U / pb.U), nil
		case "%":
			if pb.U == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return UIntValue(pa.U % pb.U), nil
		}
	}

	switch op {
	case "+":
		return IntValue(pa.I + pb.I), nil
	case "-":
		return IntValue(pa.I - pb.I), nil
	case "*":
		return IntValue(pa.I * pb.I), nil
	case "/":
		if pb.I == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return IntValue(pa.I / pb.I), nil
	case "%":
		if pb.I == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return IntValue(pa.I % pb.I), nil
	}
	return Value{}, opErr(op, a, b)
}

func compare(op string, a, b Value) (Value, error) {
	if a.Kind == String && b.Kind == String {
		switch op {
		case "==":
			return BoolValue(a.S == b.S), nil
		case "!=":
			return BoolValue(a.S != b.S), nil
		case "<":
			return BoolValue(a.S < b.S), nil
		case "<=":
			return BoolValue(a.S <= b.S), nil
		case ">":
			return BoolValue(a.S > b.S), nil
		case ">=":
			return BoolValue(a.S >= b.S), nil
		}
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Value{}, opErr(op, a, b)
	}
	// Compare as float64; exact for every int32/uint32.
	fa, fb := a.AsFloat(), b.AsFloat()
	switch op {
	case "==":
		return BoolValue(fa == fb), nil
	case "!=":
		return BoolValue(fa != fb), nil
	case "<":
		return BoolValue(fa < fb), nil
	case "<=":
		return BoolValue(fa <= fb), nil
	case ">":
		return BoolValue(fa > fb), nil
	case ">=":
		return BoolValue(fa >= fb), nil
	}
	return Value{}, opErr(op, a, b)
}

func bitwise(op string, a, b Value) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() || a.Kind == Float64 || b.Kind == Float64 {
		return Value{}, opErr(op, a, b)
	}
	pa, pb, kind := promote(a, b)

	if kind == UInt32 {
		switch op {
		case "&":
			return UIntValue(pa.U & pb.U), nil
		case "|":
			return UIntValue(pa.U | pb.U), nil
		case "^":
			return UIntValue(pa.U ^ pb.U), nil
		case "<<":
			return UIntValue(pa.U << (pb.U & 31)), nil
		case ">>":
			return UIntValue(pa.U >> (pb.U & 31)), nil
		}
	}

	switch op {
	case "&":
		return IntValue(pa.I & pb.I), nil
	case "|":
		return IntValue(pa.I | pb.I), nil
	case "^":
		return IntValue(pa.I ^ pb.I), nil
	case "<<":
		return IntValue(pa.I << (uint32(pb.I) & 31)), nil
	case ">>":
		return IntValue(pa.I >> (uint32(pb.I) & 31)), nil
	}
	return Value{}, opErr(op, a, b)
}

// UnaryOp applies a prefix operator.
func UnaryOp(op string, v Value) (Value, error) {
	switch op {
	case "-":
		switch v.Kind {
		case Int32:
			return IntValue(-v.I), nil
		case UInt32:
			return UIntValue(-v.U), nil
		case Float64:
			return FloatValue(-v.F), nil
		case Bool:
			return IntValue(-int32(v.AsInt64())), nil
		}
	case "!":
		return BoolValue(!v.IsTruthy()), nil
	case "~":
		switch v.Kind {
		case Int32:
			return IntValue(^v.I), nil
		case UInt32:
			return UIntValue(^v.U), nil
		case Bool:
			return IntValue(^int32(v.AsInt64())), nil
		}
	case "+":
		if v.IsNumeric() {
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("invalid operand for unary %q: %s", op, v.Kind)
}
