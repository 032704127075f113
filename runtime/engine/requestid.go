package engine

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/breadboard-sim/breadboard/core/invariant"
)

// idFactory produces the request ids paired with ResumeWithValue
// answers. Ids are deterministic: the key is derived from the program
// fingerprint via HKDF, and each id hashes the key with a counter, so
// two conforming engines running the same program issue identical ids
// in identical order.
type idFactory struct {
	key [32]byte
	n   uint64
}

func newIDFactory(fingerprint [32]byte) *idFactory {
	kdf := hkdf.New(sha3.New256, fingerprint[:], nil, []byte("breadboard/requestid/v1"))
	f := &idFactory{}
	_, err := io.ReadFull(kdf, f.key[:])
	invariant.Precondition(err == nil, "hkdf expansion failed: %v", err)
	return f
}

// Next returns the next request id: 24 hex characters, unique within
// the run.
func (f *idFactory) Next() string {
	f.n++
	var buf [40]byte
	copy(buf[:32], f.key[:])
	binary.LittleEndian.PutUint64(buf[32:], f.n)
	sum := blake2b.Sum256(buf[:])
	return hex.EncodeToString(sum[:12])
}
