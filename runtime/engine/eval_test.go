package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadboard-sim/breadboard/core/ast"
	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/engine"
	"github.com/breadboard-sim/breadboard/runtime/library"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// runSketch executes a program to COMPLETE or ERROR and returns the
// command stream plus any runtime error. Requests are answered in
// order from answers, inside the command callback.
func runSketch(t *testing.T, prog *ast.Node, reg library.Registry, cfg engine.Config, answers ...value.Value) ([]command.Command, error) {
	t.Helper()
	eng, err := engine.New(prog, reg, cfg)
	require.NoError(t, err)

	var (
		cmds    []command.Command
		answerN int
	)
	done := make(chan struct{})
	eng.OnCommand(func(c command.Command) {
		cmds = append(cmds, c)
		if c.IsRequest() {
			if !assert.Less(t, answerN, len(answers), "unexpected request %s", c.Type) {
				return
			}
			assert.True(t, eng.ResumeWithValue(c.RequestID, answers[answerN]))
			answerN++
		}
	})
	// A run ends through exactly one of these callbacks.
	var runErr error
	eng.OnError(func(err error) {
		runErr = err
		close(done)
	})
	eng.OnStateChange(func(_, to engine.State) {
		if to == engine.StateComplete {
			close(done)
		}
	})

	require.NoError(t, eng.Start())
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("sketch did not finish")
	}
	assert.Equal(t, len(answers), answerN, "unconsumed answers")
	return cmds, runErr
}

// setupProg wraps statements in a setup-only program.
func setupProg(stmts ...*ast.Node) *ast.Node {
	return ast.Program(ast.FuncDef("setup", "void", nil, ast.Block(stmts...)))
}

// report builds `analogWrite(0, expr)` so tests can observe values
// through the command stream.
func report(expr *ast.Node) *ast.Node {
	return ast.ExprStmt(ast.Call("analogWrite", ast.Int(0), expr))
}

// reported extracts the values of every AnalogWrite in order.
func reported(cmds []command.Command) []int64 {
	var out []int64
	for _, c := range cmds {
		if c.Type == command.TypeAnalogWrite {
			out = append(out, c.IntField("value"))
		}
	}
	return out
}

func warnings(cmds []command.Command) []string {
	var out []string
	for _, c := range cmds {
		if c.Type == command.TypeWarning {
			out = append(out, c.StrField("message"))
		}
	}
	return out
}

func TestArithmeticAndPromotion(t *testing.T) {
	prog := setupProg(
		report(ast.BinaryOp("+", ast.Int(2), ast.Int(3))),
		report(ast.BinaryOp("*", ast.Int(7), ast.Int(6))),
		// Integer division truncates; mixing in a float promotes.
		report(ast.BinaryOp("/", ast.Int(7), ast.Int(2))),
		report(ast.BinaryOp("/", ast.Float(7), ast.Int(2))),
		report(ast.BinaryOp("%", ast.Int(10), ast.Int(3))),
		report(ast.BinaryOp("<<", ast.Int(1), ast.Int(4))),
		report(ast.UnaryOp("-", ast.Int(5))),
		report(ast.Ternary(ast.BinaryOp(">", ast.Int(2), ast.Int(1)), ast.Int(100), ast.Int(200))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 42, 3, 3, 1, 16, -5, 100}, reported(cmds))
}

func TestShortCircuitSkipsRightOperand(t *testing.T) {
	// The right operand divides by zero; short-circuiting must never
	// reach it. Built fresh per use: the AST must be a strict tree.
	divZero := func() *ast.Node {
		return ast.BinaryOp(">", ast.BinaryOp("/", ast.Int(1), ast.Int(0)), ast.Int(0))
	}
	prog := setupProg(
		report(ast.BinaryOp("&&", ast.Int(0), divZero())),
		report(ast.BinaryOp("||", ast.Int(1), divZero())),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, reported(cmds))
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	prog := setupProg(report(ast.BinaryOp("/", ast.Int(1), ast.Int(0))))
	_, err := runSketch(t, prog, nil, engine.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestVariablesAndCompoundAssign(t *testing.T) {
	prog := setupProg(
		ast.VarDecl("x", "int", ast.Int(10)),
		ast.ExprStmt(ast.CompoundAssign("+", ast.Ident("x"), ast.Int(5))),
		report(ast.Ident("x")),
		ast.ExprStmt(ast.PostfixOp("++", ast.Ident("x"))),
		report(ast.Ident("x")),
		// Assigning a float to an int slot truncates.
		ast.ExprStmt(ast.Assign(ast.Ident("x"), ast.Float(3.9))),
		report(ast.Ident("x")),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{15, 16, 3}, reported(cmds))
}

func TestArrayOutOfBoundsDegrades(t *testing.T) {
	prog := setupProg(
		ast.ArrayDecl("vals", "int", ast.Int(3), ast.ArrayLiteral(ast.Int(20))),
		// In-bounds write lands, out-of-bounds write is dropped.
		ast.ExprStmt(ast.Assign(ast.ArrayAccess(ast.Ident("vals"), ast.Int(2)), ast.Int(99))),
		ast.ExprStmt(ast.Assign(ast.ArrayAccess(ast.Ident("vals"), ast.Int(7)), ast.Int(1))),
		report(ast.ArrayAccess(ast.Ident("vals"), ast.Int(0))),
		report(ast.ArrayAccess(ast.Ident("vals"), ast.Int(5))), // OOB read: zero
		report(ast.ArrayAccess(ast.Ident("vals"), ast.Int(2))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 0, 99}, reported(cmds))

	warns := warnings(cmds)
	require.Len(t, warns, 2)
	assert.Equal(t, "array index 7 out of bounds (length 3), write ignored", warns[0])
	assert.Equal(t, "array index 5 out of bounds (length 3), returning zero", warns[1])
}

func TestStaticLocalPersistsAcrossCalls(t *testing.T) {
	prog := ast.Program(
		ast.FuncDef("tick", "void", nil, ast.Block(
			ast.StaticVarDecl("n", "int", ast.Int(0)),
			ast.ExprStmt(ast.PostfixOp("++", ast.Ident("n"))),
			report(ast.Ident("n")),
		)),
		ast.FuncDef("setup", "void", nil, ast.Block()),
		ast.FuncDef("loop", "void", nil, ast.Block(
			ast.ExprStmt(ast.Call("tick")),
		)),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{MaxLoopIterations: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, reported(cmds))
}

func TestGlobalsPersistAcrossLoopIterations(t *testing.T) {
	prog := ast.Program(
		ast.VarDecl("total", "int", ast.Int(0)),
		ast.FuncDef("setup", "void", nil, ast.Block()),
		ast.FuncDef("loop", "void", nil, ast.Block(
			ast.ExprStmt(ast.CompoundAssign("+", ast.Ident("total"), ast.Int(10))),
			report(ast.Ident("total")),
		)),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{MaxLoopIterations: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, reported(cmds))
}

func TestArraysAliasThroughFunctionParams(t *testing.T) {
	prog := ast.Program(
		ast.FuncDef("bump", "void", []*ast.Node{ast.Param("arr", "int")}, ast.Block(
			ast.ExprStmt(ast.Assign(ast.ArrayAccess(ast.Ident("arr"), ast.Int(0)), ast.Int(77))),
		)),
		ast.FuncDef("setup", "void", nil, ast.Block(
			ast.ArrayDecl("vals", "int", ast.Int(2), nil),
			ast.ExprStmt(ast.Call("bump", ast.Ident("vals"))),
			report(ast.ArrayAccess(ast.Ident("vals"), ast.Int(0))),
		)),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, reported(cmds))
}

func TestSwitchFallsThroughUntilBreak(t *testing.T) {
	prog := setupProg(
		ast.Switch(ast.Int(2),
			ast.Case(ast.Int(1), report(ast.Int(1))),
			ast.Case(ast.Int(2), report(ast.Int(2))),
			ast.Case(ast.Int(3), report(ast.Int(3)), ast.Break()),
			ast.DefaultCase(report(ast.Int(9))),
		),
		// No match: only the default branch runs.
		ast.Switch(ast.Int(42),
			ast.Case(ast.Int(1), report(ast.Int(1))),
			ast.DefaultCase(report(ast.Int(9))),
		),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 9}, reported(cmds))
}

func TestLoopsBreakAndContinue(t *testing.T) {
	prog := setupProg(
		// for i in 0..4: skip 2, stop at 4 => 0 1 3
		ast.For(
			ast.VarDecl("i", "int", ast.Int(0)),
			ast.BinaryOp("<", ast.Ident("i"), ast.Int(10)),
			ast.PostfixOp("++", ast.Ident("i")),
			ast.Block(
				ast.If(ast.BinaryOp("==", ast.Ident("i"), ast.Int(2)), ast.Continue(), nil),
				ast.If(ast.BinaryOp("==", ast.Ident("i"), ast.Int(4)), ast.Break(), nil),
				report(ast.Ident("i")),
			),
		),
		// while: counts down 2 1
		ast.VarDecl("n", "int", ast.Int(2)),
		ast.While(ast.BinaryOp(">", ast.Ident("n"), ast.Int(0)), ast.Block(
			report(ast.Ident("n")),
			ast.ExprStmt(ast.PostfixOp("--", ast.Ident("n"))),
		)),
		// do/while runs the body once even with a false condition.
		ast.DoWhile(ast.Bool(false), ast.Block(report(ast.Int(7)))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 3, 2, 1, 7}, reported(cmds))
}

func TestRecursion(t *testing.T) {
	// fib(10) == 55
	prog := ast.Program(
		ast.FuncDef("fib", "int", []*ast.Node{ast.Param("n", "int")}, ast.Block(
			ast.If(ast.BinaryOp("<", ast.Ident("n"), ast.Int(2)),
				ast.Return(ast.Ident("n")), nil),
			ast.Return(ast.BinaryOp("+",
				ast.Call("fib", ast.BinaryOp("-", ast.Ident("n"), ast.Int(1))),
				ast.Call("fib", ast.BinaryOp("-", ast.Ident("n"), ast.Int(2))))),
		)),
		ast.FuncDef("setup", "void", nil, ast.Block(
			report(ast.Call("fib", ast.Int(10))),
		)),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{55}, reported(cmds))
}

func TestBuiltinMathHelpers(t *testing.T) {
	prog := setupProg(
		report(ast.Call("constrain", ast.Int(150), ast.Int(0), ast.Int(100))),
		report(ast.Call("constrain", ast.Int(-5), ast.Int(0), ast.Int(100))),
		report(ast.Call("map", ast.Int(50), ast.Int(0), ast.Int(100), ast.Int(0), ast.Int(255))),
		report(ast.Call("min", ast.Int(3), ast.Int(9))),
		report(ast.Call("max", ast.Int(3), ast.Int(9))),
		report(ast.Call("abs", ast.Int(-12))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 0, 127, 3, 9, 12}, reported(cmds))
}

func TestRandomIsDeterministicPerSeed(t *testing.T) {
	prog := setupProg(
		ast.ExprStmt(ast.Call("randomSeed", ast.Int(42))),
		report(ast.Call("random", ast.Int(100))),
		report(ast.Call("random", ast.Int(10), ast.Int(20))),
	)
	first, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	second, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, reported(first), reported(second))

	vals := reported(first)
	require.Len(t, vals, 2)
	assert.GreaterOrEqual(t, vals[0], int64(0))
	assert.Less(t, vals[0], int64(100))
	assert.GreaterOrEqual(t, vals[1], int64(10))
	assert.Less(t, vals[1], int64(20))
}

func TestMillisAnswerFeedsExpression(t *testing.T) {
	prog := setupProg(
		ast.VarDecl("t", "unsigned long", ast.Call("millis")),
		report(ast.BinaryOp("%", ast.Ident("t"), ast.Int(1000))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{}, value.UIntValue(123456))
	require.NoError(t, err)
	assert.Equal(t, []int64{456}, reported(cmds))
}

func TestPulseInDefaultTimeout(t *testing.T) {
	prog := setupProg(
		report(ast.Call("pulseIn", ast.Int(7), ast.Ident("HIGH"))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{}, value.UIntValue(2500))
	require.NoError(t, err)

	var req command.Command
	for _, c := range cmds {
		if c.Type == command.TypePulseInRequest {
			req = c
		}
	}
	require.NotEmpty(t, req.Type)
	assert.Equal(t, int64(7), req.IntField("pin"))
	assert.Equal(t, int64(1), req.IntField("level"))
	assert.Equal(t, int64(1000000), req.IntField("timeout"))
	assert.Equal(t, []int64{2500}, reported(cmds))
}

func TestServoObjectLifecycle(t *testing.T) {
	prog := setupProg(
		ast.ObjectDecl("Servo", "arm"),
		ast.ExprStmt(ast.MethodCall(ast.Ident("arm"), "attach", ast.Int(9))),
		ast.ExprStmt(ast.MethodCall(ast.Ident("arm"), "write", ast.Int(90))),
		report(ast.MethodCall(ast.Ident("arm"), "read")),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{90}, reported(cmds))

	var inst, calls int
	for _, c := range cmds {
		switch c.Type {
		case command.TypeLibraryObjectInstantiation:
			inst++
			assert.Equal(t, "Servo", c.StrField("library"))
			assert.Equal(t, "arm", c.StrField("object"))
		case command.TypeLibraryMethodCall:
			calls++
			assert.Equal(t, "arm", c.StrField("object"))
		}
	}
	assert.Equal(t, 1, inst)
	assert.Equal(t, 2, calls, "attach and write emit, read does not")
}

func TestSerialStaticsThroughSketch(t *testing.T) {
	prog := setupProg(
		ast.ExprStmt(ast.MethodCall(ast.Ident("Serial"), "begin", ast.Int(9600))),
		ast.ExprStmt(ast.MethodCall(ast.Ident("Serial"), "println",
			ast.BinaryOp("+", ast.Str("v="), ast.Int(512)))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)

	var prints []command.Command
	for _, c := range cmds {
		if c.Type == command.TypeSerialPrint {
			prints = append(prints, c)
		}
	}
	require.Len(t, prints, 1)
	assert.Equal(t, "v=512", prints[0].StrField("text"))
}

func TestUnknownFunctionSuggestion(t *testing.T) {
	prog := setupProg(ast.ExprStmt(ast.Call("digitalWrit", ast.Int(1), ast.Int(1))))
	_, err := runSketch(t, prog, nil, engine.Config{})
	require.Error(t, err)
	assert.Equal(t, `unknown function "digitalWrit" (did you mean "digitalWrite"?)`, err.Error())
}

func TestUnknownTypeSuggestion(t *testing.T) {
	prog := setupProg(ast.ObjectDecl("Sevro", "s"))
	_, err := runSketch(t, prog, nil, engine.Config{})
	require.Error(t, err)
	assert.Equal(t, `unknown library type "Sevro" (did you mean "Servo"?)`, err.Error())
}

func TestUndefinedIdentifierSuggestion(t *testing.T) {
	prog := setupProg(
		ast.VarDecl("counter", "int", ast.Int(1)),
		report(ast.Ident("countre")),
	)
	_, err := runSketch(t, prog, nil, engine.Config{})
	require.Error(t, err)
	assert.Equal(t, `undefined identifier "countre" (did you mean "counter"?)`, err.Error())
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	prog := setupProg(ast.Break())
	_, err := runSketch(t, prog, nil, engine.Config{})
	require.Error(t, err)
	assert.Equal(t, "break outside a loop or switch", err.Error())
}

// telemetryRegistry exposes a statics-only type whose method returns a
// struct, exercising member access and field assignment.
type telemetryRegistry struct {
	library.Registry
}

func (r telemetryRegistry) HasStaticMethod(typeName, method string) bool {
	if typeName == "Telemetry" && method == "sample" {
		return true
	}
	return r.Registry.HasStaticMethod(typeName, method)
}

func (r telemetryRegistry) CallStatic(typeName, method string, args []value.Value) (library.Result, error) {
	if typeName == "Telemetry" && method == "sample" {
		cell := &value.StructCell{TypeName: "Telemetry", Fields: map[string]value.Value{
			"x": value.IntValue(11),
			"y": value.IntValue(22),
		}}
		return library.Result{Value: value.StructValue(cell)}, nil
	}
	return r.Registry.CallStatic(typeName, method, args)
}

func TestStructFieldsReadAndWrite(t *testing.T) {
	prog := setupProg(
		ast.VarDecl("s", "Telemetry", ast.MethodCall(ast.Ident("Telemetry"), "sample")),
		report(ast.MemberAccess(ast.Ident("s"), "x")),
		report(ast.MemberAccess(ast.Ident("s"), "y")),
		ast.ExprStmt(ast.Assign(ast.MemberAccess(ast.Ident("s"), "x"), ast.Int(33))),
		report(ast.MemberAccess(ast.Ident("s"), "x")),
	)
	reg := telemetryRegistry{Registry: library.NewBuiltin()}
	cmds, err := runSketch(t, prog, reg, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 22, 33}, reported(cmds))
}

func TestUnknownFieldIsError(t *testing.T) {
	prog := setupProg(
		ast.VarDecl("s", "Telemetry", ast.MethodCall(ast.Ident("Telemetry"), "sample")),
		report(ast.MemberAccess(ast.Ident("s"), "z")),
	)
	reg := telemetryRegistry{Registry: library.NewBuiltin()}
	_, err := runSketch(t, prog, reg, engine.Config{})
	require.Error(t, err)
	assert.Equal(t, `Telemetry has no field "z"`, err.Error())
}

func TestStringConcatenation(t *testing.T) {
	prog := setupProg(
		ast.VarDecl("msg", "String", ast.BinaryOp("+", ast.Str("pin "), ast.Int(13))),
		ast.ExprStmt(ast.MethodCall(ast.Ident("Serial"), "begin", ast.Int(9600))),
		ast.ExprStmt(ast.MethodCall(ast.Ident("Serial"), "print", ast.Ident("msg"))),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)

	var texts []string
	for _, c := range cmds {
		if c.Type == command.TypeSerialPrint {
			texts = append(texts, c.StrField("text"))
		}
	}
	assert.Equal(t, []string{"pin 13"}, texts)
}

func TestWrongArityIsError(t *testing.T) {
	prog := ast.Program(
		ast.FuncDef("pair", "int", []*ast.Node{ast.Param("a", "int"), ast.Param("b", "int")}, ast.Block(
			ast.Return(ast.BinaryOp("+", ast.Ident("a"), ast.Ident("b"))),
		)),
		ast.FuncDef("setup", "void", nil, ast.Block(
			report(ast.Call("pair", ast.Int(1))),
		)),
	)
	_, err := runSketch(t, prog, nil, engine.Config{})
	require.Error(t, err)
	assert.Equal(t, "pair expects 2 arguments, got 1", err.Error())
}

func TestUserFunctionShadowsNothingButReturnsConverted(t *testing.T) {
	// A float expression returned from an int function truncates.
	prog := ast.Program(
		ast.FuncDef("half", "int", []*ast.Node{ast.Param("n", "int")}, ast.Block(
			ast.Return(ast.BinaryOp("/", ast.Ident("n"), ast.Float(2))),
		)),
		ast.FuncDef("setup", "void", nil, ast.Block(
			report(ast.Call("half", ast.Int(7))),
		)),
	)
	cmds, err := runSketch(t, prog, nil, engine.Config{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, reported(cmds))
}
