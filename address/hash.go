////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package address defines the fixed-length hash used to address every
// endpoint on the weft overlay. A Hash is a truncated BLAKE2b-256 digest of
// the material that names the endpoint; it carries no routing information
// of its own.
package address

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// HashLen is the length of an address hash in bytes.
const HashLen = 16

// shortLen is the number of leading bytes rendered by Hash.ShortString.
const shortLen = 4

// Hash identifies a single addressable endpoint on the overlay.
type Hash [HashLen]byte

// Unmarshal converts the byte slice to a Hash. An error is returned if the
// slice is not exactly HashLen bytes.
func Unmarshal(data []byte) (Hash, error) {
	var h Hash
	if len(data) != HashLen {
		return h, errors.Errorf(
			"address hash must be %d bytes; received %d", HashLen, len(data))
	}
	copy(h[:], data)
	return h, nil
}

// FromString parses the hexadecimal rendering produced by Hash.String.
func FromString(s string) (Hash, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errors.WithMessagef(err,
			"failed to decode address hash %q", s)
	}
	return Unmarshal(data)
}

// NewRandom generates a random Hash from the given reader.
func NewRandom(rng io.Reader) (Hash, error) {
	var h Hash
	if _, err := io.ReadFull(rng, h[:]); err != nil {
		return Hash{}, errors.WithMessage(err,
			"failed to generate random address hash")
	}
	return h, nil
}

// HashOf derives the Hash of the concatenation of the given fields.
func HashOf(fields ...[]byte) Hash {
	// blake2b.New256 cannot fail with a nil key.
	digest, _ := blake2b.New256(nil)
	for _, f := range fields {
		digest.Write(f)
	}

	var h Hash
	copy(h[:], digest.Sum(nil))
	return h
}

// Bytes returns a copy of the Hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashLen)
	copy(b, h[:])
	return b
}

// String returns the full hexadecimal rendering of the Hash. This function
// adheres to the fmt.Stringer interface.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString returns an abbreviated rendering of the Hash for logging and
// display.
func (h Hash) ShortString() string {
	return hex.EncodeToString(h[:shortLen])
}

// Equal determines if the two hashes are identical.
func (h Hash) Equal(o Hash) bool {
	return bytes.Equal(h[:], o[:])
}

// IsZero determines if the Hash is the all-zero value, which addresses
// nothing.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText adheres to the encoding.TextMarshaler interface so that hashes
// render as hexadecimal strings in JSON documents.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText adheres to the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
