package command

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// canonicalCommand is the intermediate form for deterministic hashing.
// CBOR canonical mode sorts map keys and uses minimal integer widths,
// so two conforming engines hash identical streams to identical
// digests regardless of how their JSON encoders format numbers or
// order object keys.
type canonicalCommand struct {
	Type      string           `cbor:"1,keyasint"`
	RequestID string           `cbor:"2,keyasint,omitempty"`
	Fields    []canonicalField `cbor:"3,keyasint,omitempty"`
}

type canonicalField struct {
	Key string      `cbor:"1,keyasint"`
	Val interface{} `cbor:"2,keyasint"`
}

func (v Value) canonical() interface{} {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	case ValueList:
		list := make([]interface{}, len(v.List))
		for i, elem := range v.List {
			list[i] = elem.canonical()
		}
		return list
	default:
		return nil
	}
}

// CanonicalEncode returns the canonical CBOR encoding of a command.
// Byte-for-byte stable across runs and engines.
func CanonicalEncode(c Command) ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("create canonical encoder: %w", err)
	}

	cc := canonicalCommand{Type: c.Type, RequestID: c.RequestID}
	for _, f := range c.Fields {
		cc.Fields = append(cc.Fields, canonicalField{Key: f.Key, Val: f.Val.canonical()})
	}
	data, err := encMode.Marshal(cc)
	if err != nil {
		return nil, fmt.Errorf("canonical encode %s: %w", c.Type, err)
	}
	return data, nil
}

// StreamHash computes the BLAKE2b-256 digest of a command sequence.
// Each command's canonical encoding is length-prefixed before hashing
// so stream boundaries are unambiguous. Two conforming engines given
// the same AST and the same response sequence must produce the same
// stream hash - this is the cross-engine determinism check.
func StreamHash(stream []Command) ([32]byte, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("create hasher: %w", err)
	}
	var prefix [8]byte
	for i, c := range stream {
		data, err := CanonicalEncode(c)
		if err != nil {
			return [32]byte{}, fmt.Errorf("command %d: %w", i, err)
		}
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(data)))
		if _, err := hasher.Write(prefix[:]); err != nil {
			return [32]byte{}, err
		}
		if _, err := hasher.Write(data); err != nil {
			return [32]byte{}, err
		}
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
