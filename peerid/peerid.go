// Package peerid handles node identifiers. A peer id is the base58 encoding of
// an identity multihash over a protobuf wrapped ed25519 public key, which
// always yields a 52 character string starting with "12D3KooW".
package peerid

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Len is the length of every encoded peer id. The relay network relies on it
// to split the cleartext entry peer id from the boxed request.
const Len = 52

// identity multihash (code 0x00, length 36) over the protobuf PublicKey
// message {Type: Ed25519, Data: <32 bytes>}.
var keyPrefix = []byte{0x00, 0x24, 0x08, 0x01, 0x12, 0x20}

// Identity is a node's ed25519 key pair together with its peer id.
type Identity struct {
	PeerID     string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Generate creates a fresh identity.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Identity{PeerID: FromPublicKey(pub), PublicKey: pub, PrivateKey: priv}, nil
}

// FromSeed restores an identity from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{PeerID: FromPublicKey(pub), PublicKey: pub, PrivateKey: priv}, nil
}

// FromPublicKey encodes the peer id of an ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) string {
	b := make([]byte, 0, len(keyPrefix)+ed25519.PublicKeySize)
	b = append(b, keyPrefix...)
	b = append(b, pub...)
	return base58.Encode(b)
}

// PublicKey extracts the ed25519 public key embedded in a peer id.
func PublicKey(id string) (ed25519.PublicKey, error) {
	if len(id) != Len {
		return nil, fmt.Errorf("peer id %q: length %d, want %d", id, len(id), Len)
	}
	b, err := base58.Decode(id)
	if err != nil {
		return nil, fmt.Errorf("peer id %q: %w", id, err)
	}
	if len(b) != len(keyPrefix)+ed25519.PublicKeySize || !bytes.HasPrefix(b, keyPrefix) {
		return nil, fmt.Errorf("peer id %q: not an ed25519 identity", id)
	}
	return ed25519.PublicKey(b[len(keyPrefix):]), nil
}

// Validate reports whether id is a well formed peer id.
func Validate(id string) error {
	_, err := PublicKey(id)
	return err
}

// Short returns the last four characters of id prefixed with a dot, e.g.
// ".a1b2". It is used for compact route diagnostics.
func Short(id string) string {
	if len(id) < 4 {
		return "." + id
	}
	return "." + id[len(id)-4:]
}
