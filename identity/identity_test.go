////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"bytes"
	"math/rand"
	"testing"
)

// Tests that Marshal followed by Unmarshal reconstructs an identity with
// identical key material and an identical hash.
func TestIdentity_MarshalUnmarshal(t *testing.T) {
	prng := rand.New(rand.NewSource(42))
	original, err := Generate(prng)
	if err != nil {
		t.Fatalf("Failed to generate identity: %+v", err)
	}

	reloaded, err := Unmarshal(original.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal returned an error: %+v", err)
	}

	if !bytes.Equal(original.Marshal(), reloaded.Marshal()) {
		t.Errorf("Reloaded identity has different key material."+
			"\nexpected: %X\nreceived: %X",
			original.Marshal(), reloaded.Marshal())
	}

	if !original.Hash().Equal(reloaded.Hash()) {
		t.Errorf("Reloaded identity has a different hash."+
			"\nexpected: %s\nreceived: %s", original.Hash(), reloaded.Hash())
	}
}

// Error path: tests that Unmarshal rejects data of the wrong length.
func TestUnmarshal_LengthError(t *testing.T) {
	for _, n := range []int{0, KeyLen, MarshalLen - 1, MarshalLen + 1} {
		if _, err := Unmarshal(make([]byte, n)); err == nil {
			t.Errorf("Unmarshal did not error on %d bytes.", n)
		}
	}
}

// Tests that distinct identities produce distinct hashes and that the hash
// is derived from the public half alone.
func TestIdentity_Hash(t *testing.T) {
	prng := rand.New(rand.NewSource(42))
	a, _ := Generate(prng)
	b, _ := Generate(prng)

	if a.Hash().Equal(b.Hash()) {
		t.Errorf("Two generated identities share the hash %s.", a.Hash())
	}

	if !a.Hash().Equal(a.Public().Hash()) {
		t.Errorf("Identity hash differs from its public half's hash."+
			"\nidentity: %s\npublic:   %s", a.Hash(), a.Public().Hash())
	}
}

// Tests that Public returns copies, so mutating them cannot corrupt the
// identity.
func TestIdentity_Public_Copies(t *testing.T) {
	prng := rand.New(rand.NewSource(42))
	ident, _ := Generate(prng)

	pub := ident.Public()
	expected := ident.Hash()
	for i := range pub.EncryptionKey {
		pub.EncryptionKey[i] = 0
	}

	if !ident.Hash().Equal(expected) {
		t.Error("Mutating the public copy changed the identity hash.")
	}
}
