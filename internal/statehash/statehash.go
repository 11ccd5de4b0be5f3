// Package statehash computes order-independent checksums of opaque game state.
//
// The state is rewritten into RFC 8785 canonical JSON and hashed with
// xxHash64 (seed 0). Canonical JSON sorts object keys by UTF-16 code units,
// prints numbers the way ECMAScript does and escapes only what JSON requires,
// so a browser client hashing its own canonical text gets the same digest.
package statehash

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/gowebpki/jcs"
)

var ErrEmptyState = errors.New("empty state")

// Checksum canonicalizes raw and returns the hex checksum.
func Checksum(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", ErrEmptyState
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("decode state: %w", err)
	}
	return Format(xxhash.Sum64(canon)), nil
}

// Sum hashes an already decoded tree of primitives, []any and map[string]any.
func Sum(tree any) (string, error) {
	canon, err := Canonical(tree)
	if err != nil {
		return "", err
	}
	return Format(xxhash.Sum64(canon)), nil
}

// Format renders a 64-bit hash as 16 lowercase hex digits.
func Format(h uint64) string { return fmt.Sprintf("%016x", h) }

// Canonical returns the canonical text form of tree.
func Canonical(tree any) ([]byte, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", tree, err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return canon, nil
}
