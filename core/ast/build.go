package ast

// Constructor helpers for building trees in hosts and tests. Decoded
// trees come from core/astfmt; these exist for everything else.

// Program builds the root node.
func Program(children ...*Node) *Node {
	return &Node{Kind: KindProgram, Children: children}
}

// FuncDef builds a function definition. params may be empty; body must
// be a Block and is always the last child.
func FuncDef(name, returnType string, params []*Node, body *Node) *Node {
	children := append(append([]*Node{}, params...), body)
	return &Node{Kind: KindFuncDef, Name: name, Type: returnType, Children: children}
}

// Param builds a function parameter.
func Param(name, typeName string) *Node {
	return &Node{Kind: KindParam, Name: name, Type: typeName}
}

// VarDecl builds a variable declaration with an optional initializer.
func VarDecl(name, typeName string, init *Node) *Node {
	n := &Node{Kind: KindVarDecl, Name: name, Type: typeName}
	if init != nil {
		n.Children = []*Node{init}
	}
	return n
}

// StaticVarDecl builds a function-local static declaration.
func StaticVarDecl(name, typeName string, init *Node) *Node {
	n := VarDecl(name, typeName, init)
	n.Flags |= FlagStatic
	return n
}

// ArrayDecl builds an array declaration. size and init are optional.
func ArrayDecl(name, elemType string, size *Node, init *Node) *Node {
	n := &Node{Kind: KindArrayDecl, Name: name, Type: elemType}
	if size != nil {
		n.Flags |= FlagSized
		n.Children = append(n.Children, size)
	}
	if init != nil {
		n.Flags |= FlagInit
		n.Children = append(n.Children, init)
	}
	return n
}

// ObjectDecl builds a library object declaration such as `Servo s;` or
// `LiquidCrystal lcd(12, 11, 5, 4, 3, 2);`.
func ObjectDecl(typeName, name string, args ...*Node) *Node {
	return &Node{Kind: KindObjectDecl, Name: name, Type: typeName, Children: args}
}

// Block builds a statement block.
func Block(stmts ...*Node) *Node {
	return &Node{Kind: KindBlock, Children: stmts}
}

// ExprStmt wraps an expression as a statement.
func ExprStmt(expr *Node) *Node {
	return &Node{Kind: KindExprStmt, Children: []*Node{expr}}
}

// If builds a conditional; elseStmt may be nil.
func If(cond, then, elseStmt *Node) *Node {
	children := []*Node{cond, then}
	if elseStmt != nil {
		children = append(children, elseStmt)
	}
	return &Node{Kind: KindIf, Children: children}
}

// For builds a for loop. Absent parts are represented by empty Blocks;
// an empty Block condition means "always true".
func For(init, cond, post, body *Node) *Node {
	if init == nil {
		init = Block()
	}
	if cond == nil {
		cond = Block()
	}
	if post == nil {
		post = Block()
	}
	return &Node{Kind: KindFor, Children: []*Node{init, cond, post, body}}
}

// While builds a while loop.
func While(cond, body *Node) *Node {
	return &Node{Kind: KindWhile, Children: []*Node{cond, body}}
}

// DoWhile builds a do/while loop.
func DoWhile(cond, body *Node) *Node {
	return &Node{Kind: KindDoWhile, Children: []*Node{cond, body}}
}

// Switch builds a switch over subject with the given Case nodes.
func Switch(subject *Node, cases ...*Node) *Node {
	return &Node{Kind: KindSwitch, Children: append([]*Node{subject}, cases...)}
}

// Case builds a case branch.
func Case(match *Node, stmts ...*Node) *Node {
	return &Node{Kind: KindCase, Children: append([]*Node{match}, stmts...)}
}

// DefaultCase builds the default branch of a switch.
func DefaultCase(stmts ...*Node) *Node {
	return &Node{Kind: KindCase, Flags: FlagDefault, Children: stmts}
}

// Return builds a return statement; value may be nil.
func Return(value *Node) *Node {
	n := &Node{Kind: KindReturn}
	if value != nil {
		n.Children = []*Node{value}
	}
	return n
}

// Break builds a break statement.
func Break() *Node { return &Node{Kind: KindBreak} }

// Continue builds a continue statement.
func Continue() *Node { return &Node{Kind: KindContinue} }

// Assign builds `target = value`.
func Assign(target, value *Node) *Node {
	return &Node{Kind: KindAssign, Children: []*Node{target, value}}
}

// CompoundAssign builds `target op= value` where op is "+", "-", etc.
func CompoundAssign(op string, target, value *Node) *Node {
	return &Node{Kind: KindCompoundAssign, Name: op, Children: []*Node{target, value}}
}

// BinaryOp builds a binary expression.
func BinaryOp(op string, left, right *Node) *Node {
	return &Node{Kind: KindBinaryOp, Name: op, Children: []*Node{left, right}}
}

// UnaryOp builds a unary expression ("-", "!", "~").
func UnaryOp(op string, operand *Node) *Node {
	return &Node{Kind: KindUnaryOp, Name: op, Children: []*Node{operand}}
}

// PostfixOp builds `target++` or `target--`.
func PostfixOp(op string, target *Node) *Node {
	return &Node{Kind: KindPostfixOp, Name: op, Children: []*Node{target}}
}

// Ternary builds `cond ? then : else`.
func Ternary(cond, then, elseExpr *Node) *Node {
	return &Node{Kind: KindTernary, Children: []*Node{cond, then, elseExpr}}
}

// Call builds a named function call.
func Call(name string, args ...*Node) *Node {
	return &Node{Kind: KindCall, Name: name, Children: args}
}

// MethodCall builds `receiver.method(args...)`.
func MethodCall(receiver *Node, method string, args ...*Node) *Node {
	return &Node{Kind: KindMethodCall, Name: method, Children: append([]*Node{receiver}, args...)}
}

// MemberAccess builds `receiver.field`.
func MemberAccess(receiver *Node, field string) *Node {
	return &Node{Kind: KindMemberAccess, Name: field, Children: []*Node{receiver}}
}

// ArrayAccess builds `array[index]`.
func ArrayAccess(array, index *Node) *Node {
	return &Node{Kind: KindArrayAccess, Children: []*Node{array, index}}
}

// ArrayLiteral builds `{a, b, c}`.
func ArrayLiteral(elems ...*Node) *Node {
	return &Node{Kind: KindArrayLiteral, Children: elems}
}

// Ident builds an identifier reference.
func Ident(name string) *Node {
	return &Node{Kind: KindIdentifier, Name: name}
}

// Bool builds a boolean literal.
func Bool(v bool) *Node {
	return &Node{Kind: KindLiteral, Lit: &Literal{Kind: LitBool, Bool: v}}
}

// Int builds an int32 literal.
func Int(v int32) *Node {
	return &Node{Kind: KindLiteral, Lit: &Literal{Kind: LitInt, Int: v}}
}

// UInt builds a uint32 literal.
func UInt(v uint32) *Node {
	return &Node{Kind: KindLiteral, Lit: &Literal{Kind: LitUInt, UInt: v}}
}

// Float builds a float64 literal.
func Float(v float64) *Node {
	return &Node{Kind: KindLiteral, Lit: &Literal{Kind: LitFloat, Float: v}}
}

// Str builds a string literal.
func Str(v string) *Node {
	return &Node{Kind: KindLiteral, Lit: &Literal{Kind: LitString, Str: v}}
}
