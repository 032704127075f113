package astfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/breadboard-sim/breadboard/core/ast"
	"github.com/breadboard-sim/breadboard/core/invariant"
)

// Encode serializes a validated tree and returns the buffer together
// with the program fingerprint. Encoding is deterministic: strings are
// interned in first-use order during a pre-order walk, so identical
// trees produce identical bytes.
func Encode(root *ast.Node) ([]byte, [32]byte, error) {
	invariant.NotNil(root, "root")

	if err := ast.Validate(root); err != nil {
		return nil, [32]byte{}, fmt.Errorf("encode: %w", err)
	}

	enc := &encoder{indices: make(map[string]uint32)}
	enc.internTree(root)

	var body bytes.Buffer
	if err := enc.writeStringTable(&body); err != nil {
		return nil, [32]byte{}, err
	}
	if err := enc.writeNode(&body, root); err != nil {
		return nil, [32]byte{}, err
	}

	nodeCount := ast.Count(root)
	if nodeCount > maxNodes {
		return nil, [32]byte{}, fmt.Errorf("encode: node count %d exceeds maximum %d", nodeCount, maxNodes)
	}

	var out bytes.Buffer
	out.Grow(headerLen + body.Len())
	out.WriteString(Magic)
	if err := binary.Write(&out, binary.LittleEndian, Version); err != nil {
		return nil, [32]byte{}, err
	}
	if err := binary.Write(&out, binary.LittleEndian, uint32(nodeCount)); err != nil {
		return nil, [32]byte{}, err
	}
	if err := binary.Write(&out, binary.LittleEndian, uint32(len(enc.strings))); err != nil {
		return nil, [32]byte{}, err
	}
	out.Write(body.Bytes())

	return out.Bytes(), fingerprint(body.Bytes()), nil
}

// encoder holds the string interning state for one Encode call.
type encoder struct {
	strings []string
	indices map[string]uint32
}

// intern returns the table index for s, adding it on first use.
func (enc *encoder) intern(s string) uint32 {
	if idx, ok := enc.indices[s]; ok {
		return idx
	}
	idx := uint32(len(enc.strings))
	enc.strings = append(enc.strings, s)
	enc.indices[s] = idx
	return idx
}

// internTree interns every string the node array will reference, in the
// exact order writeNode will ask for them.
func (enc *encoder) internTree(n *ast.Node) {
	switch n.Kind {
	case ast.KindIdentifier, ast.KindMemberAccess, ast.KindMethodCall, ast.KindCall,
		ast.KindBinaryOp, ast.KindUnaryOp, ast.KindCompoundAssign, ast.KindPostfixOp:
		enc.intern(n.Name)
	case ast.KindFuncDef, ast.KindParam:
		enc.intern(n.Name)
		enc.intern(n.Type)
	case ast.KindVarDecl, ast.KindArrayDecl:
		enc.intern(n.Name)
		enc.intern(n.Type)
	case ast.KindObjectDecl:
		enc.intern(n.Type)
		enc.intern(n.Name)
	case ast.KindLiteral:
		if n.Lit.Kind == ast.LitString {
			enc.intern(n.Lit.Str)
		}
	}
	for _, child := range n.Children {
		enc.internTree(child)
	}
}

func (enc *encoder) writeStringTable(buf *bytes.Buffer) error {
	if len(enc.strings) > maxStrings {
		return fmt.Errorf("encode: string table size %d exceeds maximum %d", len(enc.strings), maxStrings)
	}
	for _, s := range enc.strings {
		if len(s) > math.MaxUint16 {
			return fmt.Errorf("encode: string length %d exceeds maximum %d", len(s), math.MaxUint16)
		}
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(s))); err != nil {
			return err
		}
		buf.WriteString(s)
	}
	return nil
}

// writeNode writes one node and recurses into its children (pre-order).
func (enc *encoder) writeNode(buf *bytes.Buffer, n *ast.Node) error {
	buf.WriteByte(uint8(n.Kind))
	writeUvarint(buf, uint64(len(n.Children)))

	switch n.Kind {
	case ast.KindIdentifier, ast.KindMemberAccess, ast.KindMethodCall, ast.KindCall,
		ast.KindBinaryOp, ast.KindUnaryOp, ast.KindCompoundAssign, ast.KindPostfixOp:
		writeUvarint(buf, uint64(enc.intern(n.Name)))

	case ast.KindFuncDef, ast.KindParam:
		writeUvarint(buf, uint64(enc.intern(n.Name)))
		writeUvarint(buf, uint64(enc.intern(n.Type)))

	case ast.KindVarDecl, ast.KindArrayDecl:
		writeUvarint(buf, uint64(enc.intern(n.Name)))
		writeUvarint(buf, uint64(enc.intern(n.Type)))
		buf.WriteByte(n.Flags)

	case ast.KindObjectDecl:
		writeUvarint(buf, uint64(enc.intern(n.Type)))
		writeUvarint(buf, uint64(enc.intern(n.Name)))

	case ast.KindCase:
		buf.WriteByte(n.Flags)

	case ast.KindLiteral:
		if err := enc.writeLiteral(buf, n.Lit); err != nil {
			return err
		}
	}

	for _, child := range n.Children {
		if err := enc.writeNode(buf, child); err != nil {
			return err
		}
	}
	return nil
}

func (enc *encoder) writeLiteral(buf *bytes.Buffer, lit *ast.Literal) error {
	if lit == nil {
		return fmt.Errorf("encode: literal node without payload")
	}
	buf.WriteByte(uint8(lit.Kind))
	switch lit.Kind {
	case ast.LitBool:
		if lit.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case ast.LitInt:
		writeVarint(buf, int64(lit.Int))
	case ast.LitUInt:
		writeUvarint(buf, uint64(lit.UInt))
	case ast.LitFloat:
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], math.Float64bits(lit.Float))
		buf.Write(raw[:])
	case ast.LitString:
		writeUvarint(buf, uint64(enc.intern(lit.Str)))
	default:
		return fmt.Errorf("encode: unknown literal kind %d", lit.Kind)
	}
	return nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var raw [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(raw[:], v)
	buf.Write(raw[:n])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var raw [binary.MaxVarintLen64]byte
	n := binary.PutVarint(raw[:], v)
	buf.Write(raw[:n])
}
