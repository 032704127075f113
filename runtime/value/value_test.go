package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadboard-sim/breadboard/runtime/value"
)

func TestNumericPromotion(t *testing.T) {
	tests := []struct {
		name string
		op   string
		a, b value.Value
		want value.Value
	}{
		{"int plus int", "+", value.IntValue(2), value.IntValue(3), value.IntValue(5)},
		{"int plus float promotes", "+", value.IntValue(2), value.FloatValue(0.5), value.FloatValue(2.5)},
		{"uint wins over int", "+", value.UIntValue(10), value.IntValue(-1), value.UIntValue(9)},
		{"bool counts as int", "+", value.BoolValue(true), value.IntValue(1), value.IntValue(2)},
		{"int32 wraparound", "+", value.IntValue(2147483647), value.IntValue(1), value.IntValue(-2147483648)},
		{"uint32 wraparound", "-", value.UIntValue(0), value.UIntValue(1), value.UIntValue(4294967295)},
		{"float division", "/", value.IntValue(1), value.FloatValue(4), value.FloatValue(0.25)},
		{"int division truncates", "/", value.IntValue(7), value.IntValue(2), value.IntValue(3)},
		{"modulo", "%", value.IntValue(7), value.IntValue(3), value.IntValue(1)},
		{"string concat", "+", value.StringValue("v="), value.IntValue(5), value.StringValue("v=5")},
		{"comparison promotes", "<", value.IntValue(3), value.FloatValue(3.5), value.BoolValue(true)},
		{"string equality", "==", value.StringValue("a"), value.StringValue("a"), value.BoolValue(true)},
		{"bit and", "&", value.IntValue(6), value.IntValue(3), value.IntValue(2)},
		{"shift left", "<<", value.IntValue(1), value.IntValue(4), value.IntValue(16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := value.BinaryOp(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, op := range []string{"/", "%"} {
		_, err := value.BinaryOp(op, value.IntValue(1), value.IntValue(0))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "division by zero")
	}
	_, err := value.BinaryOp("/", value.FloatValue(1), value.FloatValue(0))
	require.Error(t, err)
}

func TestInvalidOperands(t *testing.T) {
	_, err := value.BinaryOp("-", value.StringValue("a"), value.IntValue(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operands")

	_, err = value.BinaryOp("%", value.FloatValue(1), value.FloatValue(2))
	require.Error(t, err)

	_, err = value.BinaryOp("&", value.FloatValue(1), value.IntValue(2))
	require.Error(t, err)
}

func TestUnaryOps(t *testing.T) {
	got, err := value.UnaryOp("-", value.IntValue(5))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(-5), got)

	got, err = value.UnaryOp("!", value.IntValue(0))
	require.NoError(t, err)
	assert.Equal(t, value.BoolValue(true), got)

	got, err = value.UnaryOp("~", value.IntValue(0))
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(-1), got)

	_, err = value.UnaryOp("-", value.StringValue("x"))
	require.Error(t, err)
}

func TestTruthiness(t *testing.T) {
	assert.False(t, value.VoidValue().IsTruthy())
	assert.False(t, value.IntValue(0).IsTruthy())
	assert.False(t, value.StringValue("").IsTruthy())
	assert.True(t, value.FloatValue(0.1).IsTruthy())
	assert.True(t, value.ArrayValue(&value.ArrayCell{}).IsTruthy())
}

func TestDeclKind(t *testing.T) {
	assert.Equal(t, value.Int32, value.DeclKind("int"))
	assert.Equal(t, value.Int32, value.DeclKind("long"))
	assert.Equal(t, value.UInt32, value.DeclKind("unsigned long"))
	assert.Equal(t, value.UInt32, value.DeclKind("byte"))
	assert.Equal(t, value.Float64, value.DeclKind("float"))
	assert.Equal(t, value.Bool, value.DeclKind("boolean"))
	assert.Equal(t, value.String, value.DeclKind("String"))
}

func TestConvert(t *testing.T) {
	got, err := value.Convert(value.FloatValue(3.9), value.Int32)
	require.NoError(t, err)
	assert.Equal(t, value.IntValue(3), got, "C-style truncation")

	got, err = value.Convert(value.IntValue(-1), value.UInt32)
	require.NoError(t, err)
	assert.Equal(t, value.UIntValue(4294967295), got)

	got, err = value.Convert(value.IntValue(42), value.String)
	require.NoError(t, err)
	assert.Equal(t, value.StringValue("42"), got)

	_, err = value.Convert(value.ArrayValue(&value.ArrayCell{}), value.Int32)
	require.Error(t, err)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "512", value.IntValue(512).String())
	assert.Equal(t, "3.14", value.FloatValue(3.14159).String()[:4])
	assert.Equal(t, "1", value.BoolValue(true).String())
	assert.Equal(t, "hi", value.StringValue("hi").String())
}
