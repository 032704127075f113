package astfmt

import (
	"encoding/binary"
	"math"

	"github.com/breadboard-sim/breadboard/core/ast"
)

// Decode parses a binary AST buffer. It makes a single forward pass,
// interning each string-table entry once. Any structural inconsistency
// (bad magic or version, truncated buffer, declared counts that do not
// match the actual content, out-of-range string index) fails with
// *CorruptFormatError before any engine state can be built on the tree.
func Decode(data []byte) (*ast.Node, [32]byte, error) {
	d := &decoder{data: data}

	nodeCount, stringCount, err := d.readHeader()
	if err != nil {
		return nil, [32]byte{}, err
	}

	bodyStart := d.pos

	if err := d.readStringTable(stringCount); err != nil {
		return nil, [32]byte{}, err
	}

	d.nodeBudget = nodeCount
	root, err := d.readNode(0)
	if err != nil {
		return nil, [32]byte{}, err
	}
	if d.nodeBudget != 0 {
		return nil, [32]byte{}, corrupt(d.pos, "declared nodeCount %d exceeds nodes present by %d", nodeCount, d.nodeBudget)
	}
	if d.pos != len(d.data) {
		return nil, [32]byte{}, corrupt(d.pos, "%d trailing bytes after node array", len(d.data)-d.pos)
	}

	if err := ast.Validate(root); err != nil {
		return nil, [32]byte{}, corrupt(bodyStart, "invalid tree: %v", err)
	}

	return root, fingerprint(data[bodyStart:]), nil
}

type decoder struct {
	data       []byte
	pos        int
	strings    []string
	nodeBudget int // declared nodes not yet consumed
}

func (d *decoder) readHeader() (nodeCount, stringCount int, err error) {
	if len(d.data) < headerLen {
		return 0, 0, corrupt(len(d.data), "buffer shorter than %d-byte header", headerLen)
	}
	if string(d.data[0:4]) != Magic {
		return 0, 0, corrupt(0, "invalid magic: got %q, expected %q", string(d.data[0:4]), Magic)
	}
	version := binary.LittleEndian.Uint16(d.data[4:6])
	if version != Version {
		return 0, 0, corrupt(4, "unsupported version: got 0x%04x, expected 0x%04x", version, Version)
	}

	declaredNodes := binary.LittleEndian.Uint32(d.data[6:10])
	declaredStrings := binary.LittleEndian.Uint32(d.data[10:14])

	if declaredNodes == 0 {
		return 0, 0, corrupt(6, "nodeCount must be at least 1")
	}
	if declaredNodes > maxNodes {
		return 0, 0, corrupt(6, "nodeCount %d exceeds maximum %d", declaredNodes, maxNodes)
	}
	if declaredStrings > maxStrings {
		return 0, 0, corrupt(10, "stringTableSize %d exceeds maximum %d", declaredStrings, maxStrings)
	}

	d.pos = headerLen
	return int(declaredNodes), int(declaredStrings), nil
}

func (d *decoder) readStringTable(count int) error {
	d.strings = make([]string, 0, count)
	var total int
	for i := 0; i < count; i++ {
		if d.pos+2 > len(d.data) {
			return corrupt(d.pos, "truncated string table: entry %d of %d", i, count)
		}
		length := int(binary.LittleEndian.Uint16(d.data[d.pos : d.pos+2]))
		d.pos += 2
		total += length
		if total > maxStringBytes {
			return corrupt(d.pos, "string table exceeds %d bytes", maxStringBytes)
		}
		if d.pos+length > len(d.data) {
			return corrupt(d.pos, "truncated string table: entry %d declares %d bytes, %d remain", i, length, len(d.data)-d.pos)
		}
		d.strings = append(d.strings, string(d.data[d.pos:d.pos+length]))
		d.pos += length
	}
	return nil
}

// readNode decodes one node and its children recursively (the node
// array is flat pre-order, so children immediately follow their parent).
func (d *decoder) readNode(depth int) (*ast.Node, error) {
	if depth >= maxDepth {
		return nil, corrupt(d.pos, "max node depth %d exceeded", maxDepth)
	}
	if d.nodeBudget == 0 {
		return nil, corrupt(d.pos, "more nodes present than declared nodeCount")
	}
	d.nodeBudget--

	kindByte, err := d.readByte("kind tag")
	if err != nil {
		return nil, err
	}
	if kindByte >= uint8(ast.KindCount) {
		return nil, corrupt(d.pos-1, "unknown kind tag 0x%02x", kindByte)
	}
	n := &ast.Node{Kind: ast.Kind(kindByte)}

	childCount, err := d.readUvarint("child count")
	if err != nil {
		return nil, err
	}
	if childCount > uint64(d.nodeBudget) {
		return nil, corrupt(d.pos, "child count %d exceeds remaining declared nodes %d", childCount, d.nodeBudget)
	}

	if err := d.readPayload(n); err != nil {
		return nil, err
	}

	if childCount > 0 {
		n.Children = make([]*ast.Node, childCount)
		for i := range n.Children {
			child, err := d.readNode(depth + 1)
			if err != nil {
				return nil, err
			}
			n.Children[i] = child
		}
	}
	return n, nil
}

func (d *decoder) readPayload(n *ast.Node) error {
	switch n.Kind {
	case ast.KindIdentifier, ast.KindMemberAccess, ast.KindMethodCall, ast.KindCall,
		ast.KindBinaryOp, ast.KindUnaryOp, ast.KindCompoundAssign, ast.KindPostfixOp:
		name, err := d.readStringRef("name")
		if err != nil {
			return err
		}
		n.Name = name

	case ast.KindFuncDef, ast.KindParam:
		name, err := d.readStringRef("name")
		if err != nil {
			return err
		}
		typeName, err := d.readStringRef("type")
		if err != nil {
			return err
		}
		n.Name, n.Type = name, typeName

	case ast.KindVarDecl, ast.KindArrayDecl:
		name, err := d.readStringRef("name")
		if err != nil {
			return err
		}
		typeName, err := d.readStringRef("type")
		if err != nil {
			return err
		}
		flags, err := d.readByte("declaration flags")
		if err != nil {
			return err
		}
		n.Name, n.Type, n.Flags = name, typeName, flags

	case ast.KindObjectDecl:
		typeName, err := d.readStringRef("type")
		if err != nil {
			return err
		}
		name, err := d.readStringRef("name")
		if err != nil {
			return err
		}
		n.Name, n.Type = name, typeName

	case ast.KindCase:
		flags, err := d.readByte("case flags")
		if err != nil {
			return err
		}
		n.Flags = flags

	case ast.KindLiteral:
		lit, err := d.readLiteral()
		if err != nil {
			return err
		}
		n.Lit = lit
	}
	return nil
}

func (d *decoder) readLiteral() (*ast.Literal, error) {
	tag, err := d.readByte("literal tag")
	if err != nil {
		return nil, err
	}
	lit := &ast.Literal{Kind: ast.LitKind(tag)}
	switch lit.Kind {
	case ast.LitBool:
		b, err := d.readByte("bool literal")
		if err != nil {
			return nil, err
		}
		lit.Bool = b != 0
	case ast.LitInt:
		v, err := d.readVarint("int literal")
		if err != nil {
			return nil, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, corrupt(d.pos, "int literal %d outside int32 range", v)
		}
		lit.Int = int32(v)
	case ast.LitUInt:
		v, err := d.readUvarint("uint literal")
		if err != nil {
			return nil, err
		}
		if v > math.MaxUint32 {
			return nil, corrupt(d.pos, "uint literal %d outside uint32 range", v)
		}
		lit.UInt = uint32(v)
	case ast.LitFloat:
		if d.pos+8 > len(d.data) {
			return nil, corrupt(d.pos, "truncated float literal")
		}
		lit.Float = math.Float64frombits(binary.LittleEndian.Uint64(d.data[d.pos : d.pos+8]))
		d.pos += 8
	case ast.LitString:
		s, err := d.readStringRef("string literal")
		if err != nil {
			return nil, err
		}
		lit.Str = s
	default:
		return nil, corrupt(d.pos-1, "unknown literal tag 0x%02x", tag)
	}
	return lit, nil
}

func (d *decoder) readStringRef(field string) (string, error) {
	idx, err := d.readUvarint(field + " index")
	if err != nil {
		return "", err
	}
	if idx >= uint64(len(d.strings)) {
		return "", corrupt(d.pos, "%s index %d out of range (table has %d entries)", field, idx, len(d.strings))
	}
	return d.strings[idx], nil
}

func (d *decoder) readByte(field string) (uint8, error) {
	if d.pos >= len(d.data) {
		return 0, corrupt(d.pos, "truncated buffer reading %s", field)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readUvarint(field string) (uint64, error) {
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		return 0, corrupt(d.pos, "truncated or malformed varint reading %s", field)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readVarint(field string) (int64, error) {
	v, n := binary.Varint(d.data[d.pos:])
	if n <= 0 {
		return 0, corrupt(d.pos, "truncated or malformed varint reading %s", field)
	}
	d.pos += n
	return v, nil
}
