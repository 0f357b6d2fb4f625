package abi

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain separation strings for every hash computed in the kernel.
// Hashing the same bytes under different domains yields unrelated
// digests, so a commit hash can never be confused for a state hash.
const (
	DomainCommit   = "zero-os/commit/v1"
	DomainState    = "zero-os/state/v1"
	DomainManifest = "zero-os/manifest/v1"
)

// ZeroHash is the digest-shaped value that precedes the first commit in
// a chain.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashDomain computes hex(SHA-256(domain || 0x00 || part0 || part1 ...)).
// Callers are responsible for making the concatenation unambiguous;
// every caller here prefixes a fixed-length digest or uses a single
// canonical-JSON part.
func HashDomain(domain string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
