package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/roach88/tessera/internal/fault"
)

// addressDomain prefixes every digest preimage. The version suffix enables
// future algorithm migration without colliding with old addresses.
const addressDomain = "tessera/object/v1"

// AddressSize is the digest width in bytes.
const AddressSize = sha256.Size

// Address is the content address of a stored representation: a
// domain-separated SHA-256 digest over the tag and the canonical encoding.
// Identical (tag, value) pairs always produce identical addresses, across
// processes and restarts.
type Address [AddressSize]byte

// Hex returns the lowercase hex form of the address.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether the address is the zero value, which no stored
// representation ever has.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes the hex form produced by Hex.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}
	if len(raw) != AddressSize {
		return a, fmt.Errorf("parse address: want %d bytes, got %d", AddressSize, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// AddressOf canonicalizes v and digests it together with the tag.
// Fails with an ENCODING_ERROR fault if v is not canonicalizable or the
// tag is empty.
func AddressOf(tag Tag, v Value) (Address, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return Address{}, err
	}
	return AddressOfCanonical(tag, canonical)
}

// AddressOfCanonical digests already-canonical bytes together with the tag.
// Preimage layout: domain, 0x00, then tag and canonical bytes each preceded
// by a uvarint length. The separator and length framing prevent boundary
// ambiguity between domain, tag, and content.
func AddressOfCanonical(tag Tag, canonical []byte) (Address, error) {
	if tag == "" {
		return Address{}, fault.NewEncodingError("tag must not be empty")
	}

	h := sha256.New()
	h.Write([]byte(addressDomain))
	h.Write([]byte{0x00})

	var frame [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(frame[:], uint64(len(tag)))
	h.Write(frame[:n])
	h.Write([]byte(tag))

	n = binary.PutUvarint(frame[:], uint64(len(canonical)))
	h.Write(frame[:n])
	h.Write(canonical)

	var a Address
	h.Sum(a[:0])
	return a, nil
}

// MustAddressOf is like AddressOf but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustAddressOf(tag Tag, v Value) Address {
	a, err := AddressOf(tag, v)
	if err != nil {
		panic(err)
	}
	return a
}
