package net

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"
)

// KeyFromSeed derives an identity key as
// ed25519(blake2b("rv32i_quic_ed25519" ++ seed)), so a server keeps its name
// across restarts. An empty seed yields a fresh random key.
func KeyFromSeed(seed string) (ed25519.PrivateKey, error) {
	if seed == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate key")
		}
		return priv, nil
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create BLAKE2b hash")
	}
	h.Write([]byte("rv32i_quic_ed25519"))
	h.Write([]byte(seed))
	return ed25519.NewKeyFromSeed(h.Sum(nil)), nil
}
