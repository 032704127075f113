package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/breadboard-sim/breadboard/core/ast"
	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/value"
)

// ctrlKind tags the evaluator's control signals. Break, continue and
// return propagate through the statement walk as errors but never past
// a function call.
type ctrlKind uint8

const (
	ctrlBreak ctrlKind = iota + 1
	ctrlContinue
	ctrlReturn
)

type ctrlSignal struct {
	kind ctrlKind
	val  value.Value // ctrlReturn only
}

// Error makes a signal that escapes its construct read as the runtime
// error it is: break outside a loop is a sketch fault.
func (c *ctrlSignal) Error() string {
	switch c.kind {
	case ctrlBreak:
		return "break outside a loop or switch"
	case ctrlContinue:
		return "continue outside a loop"
	default:
		return "return outside a function"
	}
}

func asSignal(err error) (*ctrlSignal, bool) {
	sig, ok := err.(*ctrlSignal)
	return sig, ok
}

func isBreak(err error) bool {
	sig, ok := asSignal(err)
	return ok && sig.kind == ctrlBreak
}

func isContinue(err error) bool {
	sig, ok := asSignal(err)
	return ok && sig.kind == ctrlContinue
}

// execStmt executes one statement. Every statement except a bare block
// is a checkpoint: the place pause, step and stop take effect.
func (e *Engine) execStmt(n *ast.Node) error {
	if n.Kind != ast.KindBlock {
		e.checkpoint()
	}
	switch n.Kind {
	case ast.KindBlock:
		e.store.EnterScope()
		defer e.store.ExitScope()
		for _, stmt := range n.Children {
			if err := e.execStmt(stmt); err != nil {
				return err
			}
		}
		return nil

	case ast.KindVarDecl:
		return e.execVarDecl(n)
	case ast.KindArrayDecl:
		return e.execArrayDecl(n)
	case ast.KindObjectDecl:
		return e.execObjectDecl(n)

	case ast.KindExprStmt:
		_, err := e.evalExpr(n.Children[0])
		return err

	case ast.KindIf:
		cond, err := e.evalExpr(n.Children[0])
		if err != nil {
			return err
		}
		if cond.IsTruthy() {
			return e.execStmt(n.Children[1])
		}
		if len(n.Children) == 3 {
			return e.execStmt(n.Children[2])
		}
		return nil

	case ast.KindFor:
		e.store.EnterScope()
		defer e.store.ExitScope()
		return e.execFor(n)
	case ast.KindWhile:
		return e.execWhile(n.Children[0], n.Children[1], false)
	case ast.KindDoWhile:
		return e.execWhile(n.Children[0], n.Children[1], true)
	case ast.KindSwitch:
		return e.execSwitch(n)

	case ast.KindReturn:
		val := value.VoidValue()
		if len(n.Children) == 1 {
			v, err := e.evalExpr(n.Children[0])
			if err != nil {
				return err
			}
			val = v
		}
		return &ctrlSignal{kind: ctrlReturn, val: val}
	case ast.KindBreak:
		return &ctrlSignal{kind: ctrlBreak}
	case ast.KindContinue:
		return &ctrlSignal{kind: ctrlContinue}

	default:
		// Assignments and bare expressions in statement position.
		_, err := e.evalExpr(n)
		return err
	}
}

func (e *Engine) execFor(n *ast.Node) error {
	init, cond, post, body := n.Children[0], n.Children[1], n.Children[2], n.Children[3]
	if !emptyBlock(init) {
		if err := e.execStmt(init); err != nil {
			return err
		}
	}
	for {
		e.checkpoint()
		if !emptyBlock(cond) {
			c, err := e.evalExpr(cond)
			if err != nil {
				return err
			}
			if !c.IsTruthy() {
				return nil
			}
		}
		if err := e.execStmt(body); err != nil {
			if isBreak(err) {
				return nil
			}
			if !isContinue(err) {
				return err
			}
		}
		if !emptyBlock(post) {
			if _, err := e.evalExpr(post); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) execWhile(cond, body *ast.Node, bodyFirst bool) error {
	runBody := func() (done bool, err error) {
		if err := e.execStmt(body); err != nil {
			if isBreak(err) {
				return true, nil
			}
			if !isContinue(err) {
				return true, err
			}
		}
		return false, nil
	}

	if bodyFirst {
		e.checkpoint()
		if done, err := runBody(); done {
			return err
		}
	}
	for {
		e.checkpoint()
		c, err := e.evalExpr(cond)
		if err != nil {
			return err
		}
		if !c.IsTruthy() {
			return nil
		}
		if done, err := runBody(); done {
			return err
		}
	}
}

func (e *Engine) execSwitch(n *ast.Node) error {
	subject, err := e.evalExpr(n.Children[0])
	if err != nil {
		return err
	}
	cases := n.Children[1:]

	start := -1
	for i, c := range cases {
		if c.Flags&ast.FlagDefault != 0 {
			continue
		}
		match, err := e.evalExpr(c.Children[0])
		if err != nil {
			return err
		}
		eq, err := value.BinaryOp("==", subject, match)
		if err != nil {
			return err
		}
		if eq.IsTruthy() {
			start = i
			break
		}
	}
	if start < 0 {
		for i, c := range cases {
			if c.Flags&ast.FlagDefault != 0 {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return nil
	}

	// C switch semantics: fall through subsequent cases until break.
	e.store.EnterScope()
	defer e.store.ExitScope()
	for _, c := range cases[start:] {
		stmts := c.Children
		if c.Flags&ast.FlagDefault == 0 {
			stmts = stmts[1:]
		}
		for _, stmt := range stmts {
			if err := e.execStmt(stmt); err != nil {
				if isBreak(err) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

func (e *Engine) execVarDecl(n *ast.Node) error {
	kind := value.DeclKind(n.Type)
	init := func() (value.Value, error) {
		if len(n.Children) == 1 {
			v, err := e.evalExpr(n.Children[0])
			if err != nil {
				return value.Value{}, err
			}
			if isComposite(v) {
				return v, nil // composites alias
			}
			return value.Convert(v, kind)
		}
		return value.Zero(kind), nil
	}
	if n.Flags&ast.FlagStatic != 0 {
		return e.store.DeclareStatic(e.currentFunc(), n.Name, init)
	}
	v, err := init()
	if err != nil {
		return err
	}
	return e.store.Declare(n.Name, v)
}

func (e *Engine) execArrayDecl(n *ast.Node) error {
	elem := value.DeclKind(n.Type)
	idx := 0
	length := -1
	if n.Flags&ast.FlagSized != 0 {
		sz, err := e.evalExpr(n.Children[idx])
		idx++
		if err != nil {
			return err
		}
		if !sz.IsNumeric() || sz.AsInt64() < 0 {
			return fmt.Errorf("invalid size for array %q", n.Name)
		}
		length = int(sz.AsInt64())
	}
	var inits []*ast.Node
	if n.Flags&ast.FlagInit != 0 {
		inits = n.Children[idx].Children
		if length < 0 {
			length = len(inits)
		}
		if len(inits) > length {
			return fmt.Errorf("too many initializers for array %q (size %d)", n.Name, length)
		}
	}
	if length < 0 {
		return fmt.Errorf("array %q needs a size or an initializer", n.Name)
	}

	cell := &value.ArrayCell{ElemKind: elem, Elems: make([]value.Value, length)}
	for i := range cell.Elems {
		cell.Elems[i] = value.Zero(elem)
	}
	for i, initN := range inits {
		v, err := e.evalExpr(initN)
		if err != nil {
			return err
		}
		cv, err := value.Convert(v, elem)
		if err != nil {
			return err
		}
		cell.Elems[i] = cv
	}
	return e.store.Declare(n.Name, value.ArrayValue(cell))
}

func (e *Engine) execObjectDecl(n *ast.Node) error {
	if !e.reg.HasType(n.Type) {
		return e.unknownTypeErr(n.Type)
	}
	args, err := e.evalArgs(n.Children)
	if err != nil {
		return err
	}
	handle, extra, err := e.reg.Construct(n.Type, n.Name, args)
	if err != nil {
		return err
	}
	e.emit(command.LibraryObjectInstantiation(n.Type, n.Name, hostArgs(args)))
	e.emitAll(extra)
	return e.store.Declare(n.Name, value.ObjectValue(handle))
}

// evalExpr evaluates an expression. Argument and operand evaluation is
// strict left-to-right; && and || short-circuit; a ternary evaluates
// exactly one branch.
func (e *Engine) evalExpr(n *ast.Node) (value.Value, error) {
	switch n.Kind {
	case ast.KindLiteral:
		return litValue(n.Lit), nil

	case ast.KindIdentifier:
		if v, ok := e.store.Get(n.Name); ok {
			return v, nil
		}
		return value.Value{}, e.undefinedErr(n.Name)

	case ast.KindBinaryOp:
		if n.Name == "&&" || n.Name == "||" {
			l, err := e.evalExpr(n.Children[0])
			if err != nil {
				return value.Value{}, err
			}
			if n.Name == "&&" && !l.IsTruthy() {
				return value.BoolValue(false), nil
			}
			if n.Name == "||" && l.IsTruthy() {
				return value.BoolValue(true), nil
			}
			r, err := e.evalExpr(n.Children[1])
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(r.IsTruthy()), nil
		}
		l, err := e.evalExpr(n.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		r, err := e.evalExpr(n.Children[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.BinaryOp(n.Name, l, r)

	case ast.KindUnaryOp:
		v, err := e.evalExpr(n.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.UnaryOp(n.Name, v)

	case ast.KindPostfixOp:
		old, err := e.evalExpr(n.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		op := "+"
		if n.Name == "--" {
			op = "-"
		}
		next, err := value.BinaryOp(op, old, value.IntValue(1))
		if err != nil {
			return value.Value{}, err
		}
		if err := e.assignTo(n.Children[0], next); err != nil {
			return value.Value{}, err
		}
		return old, nil

	case ast.KindAssign:
		v, err := e.evalExpr(n.Children[1])
		if err != nil {
			return value.Value{}, err
		}
		if err := e.assignTo(n.Children[0], v); err != nil {
			return value.Value{}, err
		}
		return v, nil

	case ast.KindCompoundAssign:
		cur, err := e.evalExpr(n.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		rhs, err := e.evalExpr(n.Children[1])
		if err != nil {
			return value.Value{}, err
		}
		next, err := value.BinaryOp(n.Name, cur, rhs)
		if err != nil {
			return value.Value{}, err
		}
		if err := e.assignTo(n.Children[0], next); err != nil {
			return value.Value{}, err
		}
		return next, nil

	case ast.KindTernary:
		cond, err := e.evalExpr(n.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		if cond.IsTruthy() {
			return e.evalExpr(n.Children[1])
		}
		return e.evalExpr(n.Children[2])

	case ast.KindCall:
		return e.evalCall(n)
	case ast.KindMethodCall:
		return e.evalMethodCall(n)

	case ast.KindMemberAccess:
		recv, err := e.evalExpr(n.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		if recv.Kind != value.Struct {
			return value.Value{}, fmt.Errorf("cannot access field %q on %s", n.Name, recv.Kind)
		}
		f, ok := recv.St.Fields[n.Name]
		if !ok {
			return value.Value{}, fmt.Errorf("%s has no field %q", recv.St.TypeName, n.Name)
		}
		return f, nil

	case ast.KindArrayAccess:
		return e.evalArrayAccess(n)

	case ast.KindArrayLiteral:
		elems := make([]value.Value, len(n.Children))
		for i, child := range n.Children {
			v, err := e.evalExpr(child)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		elemKind := value.Int32
		if len(elems) > 0 {
			elemKind = elems[0].Kind
		}
		return value.ArrayValue(&value.ArrayCell{ElemKind: elemKind, Elems: elems}), nil

	default:
		return value.Value{}, fmt.Errorf("cannot evaluate %s as an expression", n.Kind)
	}
}

func (e *Engine) evalArgs(nodes []*ast.Node) ([]value.Value, error) {
	args := make([]value.Value, len(nodes))
	for i, n := range nodes {
		v, err := e.evalExpr(n)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (e *Engine) evalCall(n *ast.Node) (value.Value, error) {
	if fn, ok := e.funcs[n.Name]; ok {
		args, err := e.evalArgs(n.Children)
		if err != nil {
			return value.Value{}, err
		}
		return e.callFunction(fn, args)
	}
	if bi, ok := builtins[n.Name]; ok {
		args, err := e.evalArgs(n.Children)
		if err != nil {
			return value.Value{}, err
		}
		return bi(e, args)
	}
	return value.Value{}, e.unknownFunctionErr(n.Name)
}

func (e *Engine) callFunction(fn *ast.Node, args []value.Value) (value.Value, error) {
	if e.callDepth >= e.config.MaxCallDepth {
		return value.Value{}, fmt.Errorf("stack overflow: call depth exceeds %d in %q", e.config.MaxCallDepth, fn.Name)
	}
	params := fn.Children[:len(fn.Children)-1]
	body := fn.Children[len(fn.Children)-1]
	if len(args) != len(params) {
		return value.Value{}, fmt.Errorf("%s expects %d arguments, got %d", fn.Name, len(params), len(args))
	}

	e.callDepth++
	e.funcStack = append(e.funcStack, fn.Name)
	e.store.PushFrame()
	defer func() {
		e.store.PopFrame()
		e.funcStack = e.funcStack[:len(e.funcStack)-1]
		e.callDepth--
	}()

	for i, p := range params {
		v := args[i]
		if !isComposite(v) {
			cv, err := value.Convert(v, value.DeclKind(p.Type))
			if err != nil {
				return value.Value{}, fmt.Errorf("argument %q of %s: %w", p.Name, fn.Name, err)
			}
			v = cv
		}
		if err := e.store.Declare(p.Name, v); err != nil {
			return value.Value{}, err
		}
	}

	err := e.execStmt(body)
	retKind := value.DeclKind(fn.Type)
	if err != nil {
		sig, ok := asSignal(err)
		if !ok || sig.kind != ctrlReturn {
			return value.Value{}, err
		}
		if fn.Type == "void" || fn.Type == "" {
			return value.VoidValue(), nil
		}
		if isComposite(sig.val) {
			return sig.val, nil
		}
		return value.Convert(sig.val, retKind)
	}
	if fn.Type == "void" || fn.Type == "" {
		return value.VoidValue(), nil
	}
	return value.Zero(retKind), nil
}

func (e *Engine) evalMethodCall(n *ast.Node) (value.Value, error) {
	recvNode := n.Children[0]
	argNodes := n.Children[1:]

	// A receiver naming no variable may be a statics-only library type
	// (Serial.begin, EEPROM.read).
	if recvNode.Kind == ast.KindIdentifier {
		if _, bound := e.store.Get(recvNode.Name); !bound {
			if e.reg.HasStaticMethod(recvNode.Name, n.Name) {
				args, err := e.evalArgs(argNodes)
				if err != nil {
					return value.Value{}, err
				}
				res, err := e.reg.CallStatic(recvNode.Name, n.Name, args)
				if err != nil {
					return value.Value{}, err
				}
				e.emitAll(res.Commands)
				return res.Value, nil
			}
			return value.Value{}, e.undefinedErr(recvNode.Name)
		}
	}

	recv, err := e.evalExpr(recvNode)
	if err != nil {
		return value.Value{}, err
	}
	if recv.Kind != value.Object {
		return value.Value{}, fmt.Errorf("cannot call method %q on %s", n.Name, recv.Kind)
	}
	args, err := e.evalArgs(argNodes)
	if err != nil {
		return value.Value{}, err
	}
	res, err := e.reg.CallInstance(recv.Obj, n.Name, args)
	if err != nil {
		return value.Value{}, err
	}
	e.emitAll(res.Commands)
	return res.Value, nil
}

// evalArrayAccess reads an array element. Out-of-bounds indices degrade
// to the element-type zero value plus a Warning command; completing the
// command stream is preferred over terminating the run.
func (e *Engine) evalArrayAccess(n *ast.Node) (value.Value, error) {
	arr, idx, err := e.resolveIndex(n)
	if err != nil {
		return value.Value{}, err
	}
	if idx < 0 || idx >= len(arr.Elems) {
		e.emit(command.Warning(fmt.Sprintf(
			"array index %d out of bounds (length %d), returning zero", idx, len(arr.Elems))))
		return value.Zero(arr.ElemKind), nil
	}
	return arr.Elems[idx], nil
}

func (e *Engine) resolveIndex(n *ast.Node) (*value.ArrayCell, int, error) {
	arrV, err := e.evalExpr(n.Children[0])
	if err != nil {
		return nil, 0, err
	}
	if arrV.Kind != value.Array {
		return nil, 0, fmt.Errorf("cannot index %s", arrV.Kind)
	}
	idxV, err := e.evalExpr(n.Children[1])
	if err != nil {
		return nil, 0, err
	}
	if !idxV.IsNumeric() {
		return nil, 0, fmt.Errorf("array index must be numeric, got %s", idxV.Kind)
	}
	return arrV.Arr, int(idxV.AsInt64()), nil
}

func (e *Engine) assignTo(target *ast.Node, v value.Value) error {
	switch target.Kind {
	case ast.KindIdentifier:
		cur, ok := e.store.Get(target.Name)
		if !ok {
			return e.undefinedErr(target.Name)
		}
		nv, err := coerceAssign(cur, v)
		if err != nil {
			return err
		}
		return e.store.Set(target.Name, nv)

	case ast.KindArrayAccess:
		arr, idx, err := e.resolveIndex(target)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(arr.Elems) {
			e.emit(command.Warning(fmt.Sprintf(
				"array index %d out of bounds (length %d), write ignored", idx, len(arr.Elems))))
			return nil
		}
		cv, err := value.Convert(v, arr.ElemKind)
		if err != nil {
			return err
		}
		arr.Elems[idx] = cv
		return nil

	case ast.KindMemberAccess:
		recv, err := e.evalExpr(target.Children[0])
		if err != nil {
			return err
		}
		if recv.Kind != value.Struct {
			return fmt.Errorf("cannot assign field %q on %s", target.Name, recv.Kind)
		}
		nv := v
		if cur, ok := recv.St.Fields[target.Name]; ok {
			nv, err = coerceAssign(cur, v)
			if err != nil {
				return err
			}
		}
		recv.St.Fields[target.Name] = nv
		return nil

	default:
		return fmt.Errorf("invalid assignment target %s", target.Kind)
	}
}

// coerceAssign converts an assigned value to the slot's current scalar
// kind, C-style. Composites always alias.
func coerceAssign(cur, v value.Value) (value.Value, error) {
	if isComposite(v) {
		return v, nil
	}
	switch cur.Kind {
	case value.Bool, value.Int32, value.UInt32, value.Float64, value.String:
		return value.Convert(v, cur.Kind)
	default:
		return v, nil
	}
}

func isComposite(v value.Value) bool {
	switch v.Kind {
	case value.Array, value.Struct, value.Object:
		return true
	default:
		return false
	}
}

func litValue(lit *ast.Literal) value.Value {
	switch lit.Kind {
	case ast.LitBool:
		return value.BoolValue(lit.Bool)
	case ast.LitUInt:
		return value.UIntValue(lit.UInt)
	case ast.LitFloat:
		return value.FloatValue(lit.Float)
	case ast.LitString:
		return value.StringValue(lit.Str)
	default:
		return value.IntValue(lit.Int)
	}
}

func emptyBlock(n *ast.Node) bool {
	return n.Kind == ast.KindBlock && len(n.Children) == 0
}

func (e *Engine) currentFunc() string {
	if len(e.funcStack) == 0 {
		return ""
	}
	return e.funcStack[len(e.funcStack)-1]
}

func (e *Engine) undefinedErr(name string) error {
	if s := suggest(name, e.store.VisibleNames()); s != "" {
		return fmt.Errorf("undefined identifier %q (did you mean %q?)", name, s)
	}
	return fmt.Errorf("undefined identifier %q", name)
}

func (e *Engine) unknownFunctionErr(name string) error {
	candidates := make([]string, 0, len(e.funcs)+len(builtins))
	for fn := range e.funcs {
		candidates = append(candidates, fn)
	}
	for fn := range builtins {
		candidates = append(candidates, fn)
	}
	sort.Strings(candidates)
	if s := suggest(name, candidates); s != "" {
		return fmt.Errorf("unknown function %q (did you mean %q?)", name, s)
	}
	return fmt.Errorf("unknown function %q", name)
}

func (e *Engine) unknownTypeErr(name string) error {
	if s := suggest(name, e.reg.Types()); s != "" {
		return fmt.Errorf("unknown library type %q (did you mean %q?)", name, s)
	}
	return fmt.Errorf("unknown library type %q", name)
}

// suggest picks the closest candidate within edit distance 2.
// Candidates must be sorted so ties resolve deterministically.
func suggest(name string, candidates []string) string {
	best, bestDist := "", 3
	lower := strings.ToLower(name)
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(lower, strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// hostArgs converts runtime values to plain command field values.
func hostArgs(args []value.Value) []command.Value {
	out := make([]command.Value, len(args))
	for i, a := range args {
		switch a.Kind {
		case value.Bool:
			out[i] = command.Bool(a.B)
		case value.Float64:
			out[i] = command.Float(a.F)
		case value.String:
			out[i] = command.Str(a.S)
		default:
			out[i] = command.Int(a.AsInt64())
		}
	}
	return out
}
