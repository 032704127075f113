// Package astfmt implements the binary AST interchange format.
//
// Layout:
//
//	header  : MAGIC(4) "BAST" | VERSION(2) LE | NODE_COUNT(4) LE | STRING_COUNT(4) LE
//	strings : STRING_COUNT entries, each uint16 LE length + UTF-8 bytes
//	nodes   : NODE_COUNT entries, flat pre-order:
//	          kindTag uint8 | childCount uvarint | payload (kind-specific)
//
// Strings are interned once in the table and referenced by index. Both
// conforming engines must accept and produce this format bit-exactly;
// Encode is deterministic (first-use interning order, pre-order node
// walk), so Encode(Decode(b)) == b for any valid buffer.
//
// The 32-byte digest returned by Encode and Decode is the BLAKE2b-256
// program fingerprint over everything after the header (string table +
// node array). Hosts use it to correlate command streams with inputs.
package astfmt

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	// Magic is the file magic number "BAST" (4 bytes).
	Magic = "BAST"

	// Version is the format version (uint16, little-endian).
	// Breaking changes increment major, additions increment minor.
	Version uint16 = 0x0001

	headerLen = 14
)

// Decoding limits. These bound allocations before any content is
// trusted, so a hostile buffer cannot OOM the host.
const (
	maxNodes       = 1 << 20
	maxStrings     = 1 << 16
	maxStringBytes = 1 << 20
	maxDepth       = 1000
)

// CorruptFormatError is the structural error tier: the buffer cannot be
// decoded and no engine state is created from it.
type CorruptFormatError struct {
	Offset int
	Reason string
}

func (e *CorruptFormatError) Error() string {
	return fmt.Sprintf("corrupt ast format at byte %d: %s", e.Offset, e.Reason)
}

func corrupt(offset int, format string, args ...interface{}) error {
	return &CorruptFormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// fingerprint hashes the post-header bytes (string table + node array).
// The header is excluded so the fingerprint is a function of program
// content only.
func fingerprint(body []byte) [32]byte {
	return blake2b.Sum256(body)
}
