////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package identity holds the local cryptographic identity of a weft client:
// an x25519 keypair for key agreement and an ed25519 keypair for
// signatures. The address hash that names the owner on the overlay is
// derived from the two public keys and is stable for the life of the
// identity.
package identity

import (
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"

	"gitlab.com/weftnet/client/address"
)

const (
	// KeyLen is the length of each private key seed in bytes.
	KeyLen = 32

	// MarshalLen is the length of a marshalled Identity: the x25519
	// private key followed by the ed25519 seed.
	MarshalLen = 2 * KeyLen
)

// Identity is a full local identity, private keys included. Remote parties
// only ever see the Public half.
type Identity struct {
	encPriv []byte
	encPub  []byte
	signKey ed25519.PrivateKey
}

// Public is the shareable half of an Identity.
type Public struct {
	EncryptionKey []byte
	SigningKey    ed25519.PublicKey
}

// Generate creates a new Identity from the given entropy source.
func Generate(rng io.Reader) (*Identity, error) {
	encPriv := make([]byte, KeyLen)
	if _, err := io.ReadFull(rng, encPriv); err != nil {
		return nil, errors.WithMessage(err,
			"failed to generate encryption key")
	}

	signSeed := make([]byte, KeyLen)
	if _, err := io.ReadFull(rng, signSeed); err != nil {
		return nil, errors.WithMessage(err, "failed to generate signing key")
	}

	return fromSeeds(encPriv, signSeed)
}

// Unmarshal reconstructs an Identity from the output of Marshal. The same
// seeds always reconstruct an identity with the same hash.
func Unmarshal(data []byte) (*Identity, error) {
	if len(data) != MarshalLen {
		return nil, errors.Errorf(
			"marshalled identity must be %d bytes; received %d",
			MarshalLen, len(data))
	}

	encPriv := make([]byte, KeyLen)
	copy(encPriv, data[:KeyLen])
	signSeed := make([]byte, KeyLen)
	copy(signSeed, data[KeyLen:])

	return fromSeeds(encPriv, signSeed)
}

func fromSeeds(encPriv, signSeed []byte) (*Identity, error) {
	encPub, err := curve25519.X25519(encPriv, curve25519.Basepoint)
	if err != nil {
		return nil, errors.WithMessage(err,
			"failed to derive encryption public key")
	}

	return &Identity{
		encPriv: encPriv,
		encPub:  encPub,
		signKey: ed25519.NewKeyFromSeed(signSeed),
	}, nil
}

// Marshal serializes the private half of the Identity: the x25519 private
// key concatenated with the ed25519 seed. The output is exactly what the
// identity file on disk holds.
func (i *Identity) Marshal() []byte {
	data := make([]byte, 0, MarshalLen)
	data = append(data, i.encPriv...)
	data = append(data, i.signKey.Seed()...)
	return data
}

// Public returns the shareable half of the Identity.
func (i *Identity) Public() Public {
	pub := Public{
		EncryptionKey: make([]byte, KeyLen),
		SigningKey:    make([]byte, ed25519.PublicKeySize),
	}
	copy(pub.EncryptionKey, i.encPub)
	copy(pub.SigningKey, i.signKey.Public().(ed25519.PublicKey))
	return pub
}

// Hash returns the address hash that names this identity on the overlay.
func (i *Identity) Hash() address.Hash {
	return i.Public().Hash()
}

// Hash derives the identity hash from the two public keys.
func (p Public) Hash() address.Hash {
	return address.HashOf(p.EncryptionKey, p.SigningKey)
}
