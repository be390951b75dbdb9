// Package box seals requests for a single exit node and opens them on the
// exit side. A sealed request carries a fresh x25519 ephemeral key, so every
// request gets its own session key:
//
//	version(1) || ephemeral(32) || nonce(12) || AEAD(counter(8) || message)
//
// The exit's x25519 key is derived from its ed25519 identity key, so the
// public half can be recovered from the exit's peer id alone.
package box

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"github.com/benbjohnson/clock"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	protoID   = "phttp-box-x25519-chacha20poly1305-1"
	infoReq   = protoID + ":request"
	adReq     = protoID + ":req:"
	adResp    = protoID + ":resp:"
	versionV1 = 0x01

	headerLen  = 1 + 32 + chacha20poly1305.NonceSize
	counterLen = 8
)

var errShortMessage = errors.New("sealed message too short")

// Session is the state shared by client and exit for one request. On the
// sending side Request holds the sealed bytes, on the receiving side the
// opened message.
type Session struct {
	RequestID  string
	ExitPeerID string
	Counter    int64 // milliseconds, sender clock plus counter offset

	request []byte
	key     [32]byte
}

// Request returns the session's request bytes.
func (s *Session) Request() []byte {
	return s.request
}

// Close zeroes the session key.
func (s *Session) Close() {
	clear(s.key[:])
}

// Box seals and opens requests. The clock supplies the request counter.
type Box struct {
	clock clock.Clock
}

// New returns a Box reading counters from c; nil uses the wall clock.
func New(c clock.Clock) *Box {
	if c == nil {
		c = clock.New()
	}
	return &Box{clock: c}
}

// BoxRequest seals message for the exit identified by exitPeerID and its
// ed25519 public key.
func (b *Box) BoxRequest(message []byte, exitPeerID, requestID string, exitPublicKey []byte, counterOffset int64) (*Session, error) {
	exitX, err := montgomeryPublic(exitPublicKey)
	if err != nil {
		return nil, fmt.Errorf("exit public key: %w", err)
	}

	var eph [32]byte
	if _, err := rand.Read(eph[:]); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	defer clear(eph[:])
	ephPub, err := curve25519.X25519(eph[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("compute ephemeral public key: %w", err)
	}
	shared, err := curve25519.X25519(eph[:], exitX)
	if err != nil {
		return nil, fmt.Errorf("curve25519 eph*X: %w", err)
	}
	defer clear(shared)

	s := &Session{
		RequestID:  requestID,
		ExitPeerID: exitPeerID,
		Counter:    b.clock.Now().UnixMilli() + counterOffset,
	}
	if err := deriveKey(s.key[:], shared, ephPub, exitX, requestID, exitPeerID); err != nil {
		return nil, err
	}

	plain := make([]byte, counterLen+len(message))
	binary.BigEndian.PutUint64(plain, uint64(s.Counter))
	copy(plain[counterLen:], message)

	out := make([]byte, headerLen, headerLen+len(plain)+chacha20poly1305.Overhead)
	out[0] = versionV1
	copy(out[1:33], ephPub)
	if _, err := rand.Read(out[33:headerLen]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed, err := seal(s.key[:], out[33:headerLen], plain, adReq+requestID)
	if err != nil {
		return nil, err
	}
	s.request = append(out, sealed...)
	return s, nil
}

// UnboxRequest opens a request sealed for the exit owning exitPrivateKey, an
// ed25519 private key.
func (b *Box) UnboxRequest(message []byte, requestID, exitPeerID string, exitPrivateKey []byte) (*Session, error) {
	if len(exitPrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("exit private key: length %d, want %d", len(exitPrivateKey), ed25519.PrivateKeySize)
	}
	if len(message) < headerLen+chacha20poly1305.Overhead+counterLen {
		return nil, errShortMessage
	}
	if message[0] != versionV1 {
		return nil, fmt.Errorf("unsupported box version %d", message[0])
	}

	scalar := montgomeryPrivate(ed25519.PrivateKey(exitPrivateKey))
	defer clear(scalar)
	exitX, err := curve25519.X25519(scalar, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("compute exit public key: %w", err)
	}
	ephPub := message[1:33]
	shared, err := curve25519.X25519(scalar, ephPub)
	if err != nil {
		return nil, fmt.Errorf("curve25519 x*EPH: %w", err)
	}
	defer clear(shared)

	s := &Session{RequestID: requestID, ExitPeerID: exitPeerID}
	if err := deriveKey(s.key[:], shared, ephPub, exitX, requestID, exitPeerID); err != nil {
		return nil, err
	}
	plain, err := open(s.key[:], message[33:headerLen], message[headerLen:], adReq+requestID)
	if err != nil {
		return nil, err
	}
	s.Counter = int64(binary.BigEndian.Uint64(plain[:counterLen]))
	s.request = plain[counterLen:]
	return s, nil
}

// BoxResponse seals an exit's response under the session key.
func (s *Session) BoxResponse(message []byte) ([]byte, error) {
	out := make([]byte, chacha20poly1305.NonceSize, chacha20poly1305.NonceSize+len(message)+chacha20poly1305.Overhead)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed, err := seal(s.key[:], out, message, adResp+s.RequestID)
	if err != nil {
		return nil, err
	}
	return append(out, sealed...), nil
}

// UnboxResponse opens a response sealed with BoxResponse.
func (s *Session) UnboxResponse(message []byte) ([]byte, error) {
	if len(message) < chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, errShortMessage
	}
	n := chacha20poly1305.NonceSize
	return open(s.key[:], message[:n], message[n:], adResp+s.RequestID)
}

func deriveKey(dst, shared, ephPub, exitX []byte, requestID, exitPeerID string) error {
	if isZero(shared) {
		return fmt.Errorf("x25519 produced all-zeros point")
	}
	info := make([]byte, 0, len(infoReq)+64+len(requestID)+len(exitPeerID))
	info = append(info, infoReq...)
	info = append(info, ephPub...)
	info = append(info, exitX...)
	info = append(info, requestID...)
	info = append(info, exitPeerID...)
	kdf := hkdf.New(sha256.New, shared, nil, info)
	if _, err := io.ReadFull(kdf, dst); err != nil {
		return fmt.Errorf("HKDF key derivation: %w", err)
	}
	return nil
}

func seal(key, nonce, plain []byte, ad string) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plain, []byte(ad)), nil
}

func open(key, nonce, sealed []byte, ad string) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, sealed, []byte(ad))
	if err != nil {
		return nil, fmt.Errorf("open sealed message: %w", err)
	}
	return plain, nil
}

// montgomeryPublic maps an ed25519 public key to its x25519 counterpart.
func montgomeryPublic(pub []byte) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("length %d, want %d", len(pub), ed25519.PublicKeySize)
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, err
	}
	return p.BytesMontgomery(), nil
}

// montgomeryPrivate returns the x25519 scalar matching an ed25519 private
// key. X25519 clamps it.
func montgomeryPrivate(priv ed25519.PrivateKey) []byte {
	h := sha512.Sum512(priv.Seed())
	s := make([]byte, 32)
	copy(s, h[:32])
	clear(h[:])
	return s
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
