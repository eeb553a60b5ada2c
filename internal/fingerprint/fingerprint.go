// Package fingerprint computes the content hashes used to decide whether a
// lifecycle step of a part is up to date.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Fingerprint is the hex encoded sha256 digest of a step's inputs. The zero
// value means "unknown" and never equals anything.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Short returns an abbreviated form for display.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// IsZero reports whether f is unknown.
func (f Fingerprint) IsZero() bool { return f == "" }

// Equal reports whether two fingerprints denote the same inputs. Unknown
// fingerprints are never equal, so a missing record is always stale.
func Equal(a, b Fingerprint) bool {
	return a != "" && a == b
}

// Hasher accumulates length-prefixed fields so that no two distinct field
// sequences produce the same digest.
type Hasher struct {
	h hash.Hash
}

// NewHasher starts a digest scoped to kind.
func NewHasher(kind string) *Hasher {
	h := &Hasher{h: sha256.New()}
	h.String(kind)
	return h
}

// Bytes adds a raw field.
func (h *Hasher) Bytes(data []byte) *Hasher {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.h.Write(prefix[:])
	h.h.Write(data)
	return h
}

// String adds a string field.
func (h *Hasher) String(s string) *Hasher {
	return h.Bytes([]byte(s))
}

// Strings adds an ordered list, prefixed by its length.
func (h *Hasher) Strings(items []string) *Hasher {
	h.Int(len(items))
	for _, item := range items {
		h.String(item)
	}
	return h
}

// Map adds a string map with its keys sorted.
func (h *Hasher) Map(m map[string]string) *Hasher {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h.Int(len(keys))
	for _, k := range keys {
		h.String(k).String(m[k])
	}
	return h
}

// Int adds an integer field.
func (h *Hasher) Int(n int) *Hasher {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return h.Bytes(buf[:])
}

// Fingerprint adds another fingerprint.
func (h *Hasher) Fingerprint(f Fingerprint) *Hasher {
	return h.String(string(f))
}

// Sum returns the accumulated digest.
func (h *Hasher) Sum() Fingerprint {
	return Fingerprint(hex.EncodeToString(h.h.Sum(nil)))
}
