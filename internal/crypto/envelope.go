package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope parameters. Version 1 is the only one understood.
const (
	AlgRSAOAEP256 = "RSA-OAEP-256"
	EncAES256GCM  = "AES-256-GCM"
	VerV1         = 1

	// HeaderEncrypted marks a request body that is an Envelope.
	HeaderEncrypted = "X-Encrypted"
	HeaderValueV1   = "v1"

	// HeaderInnerEncoding carries the Content-Encoding of the sealed payload.
	HeaderInnerEncoding = "X-Inner-Encoding"
)

var (
	ErrNilKey       = errors.New("nil key")
	ErrBadParams    = errors.New("bad envelope params")
	ErrWrongKeySize = errors.New("wrong AES key size")
	ErrWrongIV      = errors.New("wrong IV size")
	ErrEmptyCipher  = errors.New("empty ciphertext")
)

// Envelope carries a body sealed with a one-time AES-256-GCM key, the key itself wrapped with RSA-OAEP.
// Byte fields are base64 in JSON.
type Envelope struct {
	V   int    `json:"v"`
	Alg string `json:"alg"`
	Enc string `json:"enc"`
	EK  []byte `json:"ek"`
	IV  []byte `json:"iv"`
	CT  []byte `json:"ct"`
}

// Seal encrypts plain for the holder of the private half of pub.
func Seal(pub *rsa.PublicKey, plain []byte) ([]byte, error) {
	if pub == nil {
		return nil, ErrNilKey
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("aes key: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	ek, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	return json.Marshal(Envelope{
		V:   VerV1,
		Alg: AlgRSAOAEP256,
		Enc: EncAES256GCM,
		EK:  ek,
		IV:  iv,
		CT:  gcm.Seal(nil, iv, plain, nil),
	})
}

// Open reverses Seal.
func Open(priv *rsa.PrivateKey, sealed []byte) ([]byte, error) {
	if priv == nil {
		return nil, ErrNilKey
	}
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.V != VerV1 || env.Alg != AlgRSAOAEP256 || env.Enc != EncAES256GCM {
		return nil, ErrBadParams
	}
	if len(env.IV) != 12 {
		return nil, ErrWrongIV
	}
	if len(env.CT) == 0 {
		return nil, ErrEmptyCipher
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, env.EK, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrWrongKeySize
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, env.IV, env.CT, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(blk)
}
