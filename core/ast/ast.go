// Package ast defines the typed tree the execution engine walks.
//
// The tree is produced by decoding the binary interchange format
// (core/astfmt) or built directly through the constructor helpers.
// Nodes are treated as immutable once a tree has been handed to an
// engine instance.
package ast

import (
	"fmt"
	"strconv"
)

// Kind discriminates AST nodes.
type Kind uint8

const (
	KindProgram Kind = iota
	KindFuncDef
	KindParam
	KindVarDecl
	KindArrayDecl
	KindObjectDecl
	KindBlock
	KindExprStmt
	KindIf
	KindFor
	KindWhile
	KindDoWhile
	KindSwitch
	KindCase
	KindReturn
	KindBreak
	KindContinue
	KindAssign
	KindCompoundAssign
	KindBinaryOp
	KindUnaryOp
	KindPostfixOp
	KindTernary
	KindCall
	KindMethodCall
	KindMemberAccess
	KindArrayAccess
	KindArrayLiteral
	KindLiteral
	KindIdentifier

	// KindCount is the number of valid kinds. Kind tags at or above this
	// value are rejected by the codec.
	KindCount
)

var kindNames = [...]string{
	KindProgram:        "Program",
	KindFuncDef:        "FuncDef",
	KindParam:          "Param",
	KindVarDecl:        "VarDecl",
	KindArrayDecl:      "ArrayDecl",
	KindObjectDecl:     "ObjectDecl",
	KindBlock:          "Block",
	KindExprStmt:       "ExprStmt",
	KindIf:             "If",
	KindFor:            "For",
	KindWhile:          "While",
	KindDoWhile:        "DoWhile",
	KindSwitch:         "Switch",
	KindCase:           "Case",
	KindReturn:         "Return",
	KindBreak:          "Break",
	KindContinue:       "Continue",
	KindAssign:         "Assign",
	KindCompoundAssign: "CompoundAssign",
	KindBinaryOp:       "BinaryOp",
	KindUnaryOp:        "UnaryOp",
	KindPostfixOp:      "PostfixOp",
	KindTernary:        "Ternary",
	KindCall:           "Call",
	KindMethodCall:     "MethodCall",
	KindMemberAccess:   "MemberAccess",
	KindArrayAccess:    "ArrayAccess",
	KindArrayLiteral:   "ArrayLiteral",
	KindLiteral:        "Literal",
	KindIdentifier:     "Identifier",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Declaration flags carried by VarDecl and ArrayDecl nodes.
const (
	FlagStatic uint8 = 1 << 0 // persists across calls of the declaring function
	FlagConst  uint8 = 1 << 1
	FlagSized  uint8 = 1 << 2 // ArrayDecl: first child is the size expression
	FlagInit   uint8 = 1 << 3 // ArrayDecl: last child is the initializer
)

// FlagDefault marks a Case node as the default branch; it carries no
// match expression.
const FlagDefault uint8 = 1 << 0

// LitKind discriminates literal payloads.
type LitKind uint8

const (
	LitBool LitKind = iota
	LitInt
	LitUInt
	LitFloat
	LitString
)

// Literal is the typed immediate carried by a KindLiteral node.
type Literal struct {
	Kind  LitKind
	Bool  bool
	Int   int32
	UInt  uint32
	Float float64
	Str   string
}

// Node is a single AST node. Which of Name, Type, Flags and Lit are
// meaningful depends on Kind; the codec enforces the shape.
//
// Child layout conventions:
//
//	FuncDef   params..., body Block (always last)
//	VarDecl   [initializer]
//	ArrayDecl [size expr][ArrayLiteral]    (presence via FlagSized/FlagInit)
//	ObjectDecl constructor args...
//	If        cond, then Block[, else stmt]
//	For       init, cond, post, body       (empty Block for absent parts)
//	While     cond, body
//	DoWhile   cond, body
//	Switch    subject, Case...
//	Case      [match expr,] statements...  (no match expr when FlagDefault)
//	Assign    target, value
//	MethodCall receiver, args...
//	Call      args...                      (callee name in Name)
type Node struct {
	Kind     Kind
	Children []*Node
	Name     string   // identifier, operator symbol or method name
	Type     string   // declared/return type name
	Flags    uint8
	Lit      *Literal // KindLiteral only
}

// String renders a short one-line description, mainly for diagnostics.
func (n *Node) String() string {
	switch n.Kind {
	case KindLiteral:
		return fmt.Sprintf("Literal(%s)", n.Lit.String())
	case KindIdentifier:
		return fmt.Sprintf("Identifier(%s)", n.Name)
	case KindBinaryOp, KindUnaryOp, KindCompoundAssign, KindPostfixOp:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Name)
	case KindCall, KindMethodCall, KindFuncDef, KindMemberAccess:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Name)
	default:
		return n.Kind.String()
	}
}

func (l *Literal) String() string {
	switch l.Kind {
	case LitBool:
		return strconv.FormatBool(l.Bool)
	case LitInt:
		return strconv.FormatInt(int64(l.Int), 10)
	case LitUInt:
		return strconv.FormatUint(uint64(l.UInt), 10) + "u"
	case LitFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case LitString:
		return strconv.Quote(l.Str)
	default:
		return "Literal(?)"
	}
}

// FindFunction returns the FuncDef child named name, or nil.
// The receiver must be a Program node.
func (n *Node) FindFunction(name string) *Node {
	for _, child := range n.Children {
		if child.Kind == KindFuncDef && child.Name == name {
			return child
		}
	}
	return nil
}

// Validate checks the structural invariants a decoded or hand-built tree
// must satisfy before an engine may consume it: a single Program root,
// acyclic structure, at most one setup and one loop definition.
//
// It does not require setup or loop to exist; that is a start-time check
// (the engine refuses to start, it is not a malformed tree).
func Validate(root *Node) error {
	if root == nil {
		return fmt.Errorf("nil root")
	}
	if root.Kind != KindProgram {
		return fmt.Errorf("root must be Program, got %s", root.Kind)
	}

	seen := make(map[*Node]bool)
	if err := checkAcyclic(root, seen); err != nil {
		return err
	}

	var setups, loops int
	for _, child := range root.Children {
		switch child.Kind {
		case KindFuncDef:
			switch child.Name {
			case "setup":
				setups++
			case "loop":
				loops++
			}
		case KindVarDecl, KindArrayDecl, KindObjectDecl:
			// Globals are fine at the top level.
		default:
			return fmt.Errorf("invalid top-level node %s", child.Kind)
		}
	}
	if setups > 1 {
		return fmt.Errorf("multiple setup definitions")
	}
	if loops > 1 {
		return fmt.Errorf("multiple loop definitions")
	}
	return nil
}

func checkAcyclic(n *Node, seen map[*Node]bool) error {
	if seen[n] {
		return fmt.Errorf("node %s appears more than once in the tree", n)
	}
	seen[n] = true
	for _, child := range n.Children {
		if child == nil {
			return fmt.Errorf("nil child under %s", n)
		}
		if err := checkAcyclic(child, seen); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of nodes in the subtree rooted at n.
func Count(n *Node) int {
	total := 1
	for _, child := range n.Children {
		total += Count(child)
	}
	return total
}
