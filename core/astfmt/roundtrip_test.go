package astfmt_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadboard-sim/breadboard/core/ast"
	"github.com/breadboard-sim/breadboard/core/astfmt"
)

// TestRoundTrip verifies tree -> encode -> decode -> encode produces an
// identical tree and identical bytes.
func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tree *ast.Node
	}{
		{
			name: "minimal loop-only program",
			tree: ast.Program(
				ast.FuncDef("loop", "void", nil, ast.Block()),
			),
		},
		{
			name: "blink",
			tree: ast.Program(
				ast.FuncDef("setup", "void", nil, ast.Block(
					ast.ExprStmt(ast.Call("pinMode", ast.Int(13), ast.Ident("OUTPUT"))),
				)),
				ast.FuncDef("loop", "void", nil, ast.Block(
					ast.ExprStmt(ast.Call("digitalWrite", ast.Int(13), ast.Ident("HIGH"))),
					ast.ExprStmt(ast.Call("delay", ast.Int(1000))),
					ast.ExprStmt(ast.Call("digitalWrite", ast.Int(13), ast.Ident("LOW"))),
					ast.ExprStmt(ast.Call("delay", ast.Int(1000))),
				)),
			),
		},
		{
			name: "every literal kind",
			tree: ast.Program(
				ast.VarDecl("b", "bool", ast.Bool(true)),
				ast.VarDecl("i", "int", ast.Int(-42)),
				ast.VarDecl("u", "unsigned long", ast.UInt(4294967295)),
				ast.VarDecl("f", "float", ast.Float(3.14159)),
				ast.VarDecl("s", "String", ast.Str("héllo")),
				ast.FuncDef("setup", "void", nil, ast.Block()),
			),
		},
		{
			name: "control flow and operators",
			tree: ast.Program(
				ast.FuncDef("loop", "void", nil, ast.Block(
					ast.VarDecl("v", "int", ast.Call("analogRead", ast.Ident("A0"))),
					ast.If(
						ast.BinaryOp(">", ast.Ident("v"), ast.Int(512)),
						ast.Block(ast.ExprStmt(ast.Call("digitalWrite", ast.Int(13), ast.Ident("HIGH")))),
						ast.Block(ast.ExprStmt(ast.Call("digitalWrite", ast.Int(13), ast.Ident("LOW")))),
					),
					ast.For(
						ast.VarDecl("i", "int", ast.Int(0)),
						ast.BinaryOp("<", ast.Ident("i"), ast.Int(8)),
						ast.ExprStmt(ast.PostfixOp("++", ast.Ident("i"))),
						ast.Block(ast.ExprStmt(ast.CompoundAssign("+", ast.Ident("v"), ast.Ident("i")))),
					),
					ast.While(ast.BinaryOp("<", ast.Ident("v"), ast.Int(0)), ast.Block(ast.Break())),
					ast.DoWhile(ast.Bool(false), ast.Block(ast.Continue())),
					ast.ExprStmt(ast.Ternary(ast.Ident("v"), ast.Int(1), ast.Int(0))),
					ast.Return(nil),
				)),
			),
		},
		{
			name: "switch, arrays, statics",
			tree: ast.Program(
				ast.ArrayDecl("readings", "int", ast.Int(4), ast.ArrayLiteral(ast.Int(1), ast.Int(2), ast.Int(3), ast.Int(4))),
				ast.FuncDef("loop", "void", nil, ast.Block(
					ast.StaticVarDecl("count", "int", ast.Int(0)),
					ast.ExprStmt(ast.PostfixOp("++", ast.Ident("count"))),
					ast.Assign(
						ast.ArrayAccess(ast.Ident("readings"), ast.Int(0)),
						ast.Ident("count"),
					),
					ast.Switch(ast.Ident("count"),
						ast.Case(ast.Int(1), ast.ExprStmt(ast.Call("delay", ast.Int(10)))),
						ast.DefaultCase(ast.ExprStmt(ast.Call("delay", ast.Int(20)))),
					),
				)),
			),
		},
		{
			name: "library objects and methods",
			tree: ast.Program(
				ast.ObjectDecl("Servo", "arm"),
				ast.ObjectDecl("LiquidCrystal", "lcd", ast.Int(12), ast.Int(11), ast.Int(5), ast.Int(4), ast.Int(3), ast.Int(2)),
				ast.FuncDef("setup", "void", nil, ast.Block(
					ast.ExprStmt(ast.MethodCall(ast.Ident("arm"), "attach", ast.Int(9))),
					ast.ExprStmt(ast.MethodCall(ast.Ident("lcd"), "begin", ast.Int(16), ast.Int(2))),
					ast.ExprStmt(ast.MethodCall(ast.Ident("Serial"), "begin", ast.Int(9600))),
				)),
				ast.FuncDef("loop", "void", nil, ast.Block(
					ast.ExprStmt(ast.MethodCall(ast.Ident("arm"), "write",
						ast.MemberAccess(ast.Ident("arm"), "position"))),
				)),
			),
		},
		{
			name: "user functions with params and unary ops",
			tree: ast.Program(
				ast.FuncDef("scale", "int",
					[]*ast.Node{ast.Param("x", "int"), ast.Param("factor", "float")},
					ast.Block(
						ast.Return(ast.BinaryOp("*", ast.Ident("x"), ast.UnaryOp("-", ast.Ident("factor")))),
					)),
				ast.FuncDef("loop", "void", nil, ast.Block(
					ast.ExprStmt(ast.Call("scale", ast.Int(10), ast.Float(0.5))),
					ast.ExprStmt(ast.UnaryOp("!", ast.Bool(false))),
				)),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data1, fp1, err := astfmt.Encode(tt.tree)
			require.NoError(t, err)

			decoded, fp2, err := astfmt.Decode(data1)
			require.NoError(t, err)
			assert.Equal(t, fp1, fp2, "fingerprint must survive the round trip")

			if diff := cmp.Diff(tt.tree, decoded); diff != "" {
				t.Errorf("tree mismatch after round trip (-want +got):\n%s", diff)
			}

			data2, fp3, err := astfmt.Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, data1, data2, "second encode must be byte-identical")
			assert.Equal(t, fp1, fp3)
		})
	}
}

// TestStringInterning verifies repeated names land in the table once.
func TestStringInterning(t *testing.T) {
	tree := ast.Program(
		ast.FuncDef("loop", "void", nil, ast.Block(
			ast.ExprStmt(ast.Call("digitalWrite", ast.Int(13), ast.Ident("HIGH"))),
			ast.ExprStmt(ast.Call("digitalWrite", ast.Int(12), ast.Ident("HIGH"))),
			ast.ExprStmt(ast.Call("digitalWrite", ast.Int(11), ast.Ident("HIGH"))),
		)),
	)
	data, _, err := astfmt.Encode(tree)
	require.NoError(t, err)

	// "digitalWrite" must appear exactly once in the buffer.
	assert.Equal(t, 1, bytes.Count(data, []byte("digitalWrite")))
}

func TestFingerprintIgnoresNothingButHeader(t *testing.T) {
	a := ast.Program(ast.FuncDef("loop", "void", nil, ast.Block()))
	b := ast.Program(ast.FuncDef("loop", "void", nil, ast.Block(
		ast.ExprStmt(ast.Call("delay", ast.Int(1))),
	)))

	_, fpA, err := astfmt.Encode(a)
	require.NoError(t, err)
	_, fpB, err := astfmt.Encode(b)
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpB, "different programs must have different fingerprints")

	_, fpA2, err := astfmt.Encode(a)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpA2, "fingerprint must be stable")
}
