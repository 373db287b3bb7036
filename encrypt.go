package databind

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Encryption errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrMissingKey       = errors.New("missing key")
)

// envelopeDataKeySize is the AES-256 data key generated per value.
const envelopeDataKeySize = 32

func newGCM(key []byte) (cipher.AEAD, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: want 16, 24 or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal returns nonce || ciphertext.
func seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(aead cipher.AEAD, sealed []byte) ([]byte, error) {
	n := aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextShort
	}
	plaintext, err := aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

type gcmEncryptor struct {
	aead cipher.AEAD
}

// AES returns an AES-GCM encryptor. The key selects AES-128, AES-192 or
// AES-256 by its length.
func AES(key []byte) (Encryptor, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &gcmEncryptor{aead: aead}, nil
}

func (e *gcmEncryptor) Encrypt(plaintext []byte) ([]byte, error) { return seal(e.aead, plaintext) }

func (e *gcmEncryptor) Decrypt(ciphertext []byte) ([]byte, error) { return open(e.aead, ciphertext) }

type rsaEncryptor struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
}

// RSA returns an RSA-OAEP encryptor. Either key may be nil when only one
// direction is needed.
func RSA(pub *rsa.PublicKey, priv *rsa.PrivateKey) Encryptor {
	return &rsaEncryptor{pub: pub, priv: priv}
}

func (e *rsaEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if e.pub == nil {
		return nil, fmt.Errorf("%w: rsa public key", ErrMissingKey)
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, e.pub, plaintext, nil)
}

func (e *rsaEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, fmt.Errorf("%w: rsa private key", ErrMissingKey)
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, e.priv, ciphertext, nil)
}

// envelopeEncryptor seals every value with a fresh data key and stores that
// key, sealed by the master key, in front of the value:
//
//	uint16 len(sealed key) | sealed key | sealed value
type envelopeEncryptor struct {
	master cipher.AEAD
}

// Envelope returns an envelope encryptor around a 16, 24 or 32 byte master key.
func Envelope(masterKey []byte) (Encryptor, error) {
	master, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}
	return &envelopeEncryptor{master: master}, nil
}

func (e *envelopeEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	dataKey := make([]byte, envelopeDataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, err
	}
	data, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}
	body, err := seal(data, plaintext)
	if err != nil {
		return nil, err
	}
	sealedKey, err := seal(e.master, dataKey)
	if err != nil {
		return nil, err
	}

	out := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(sealedKey)+len(body)), uint16(len(sealedKey))) // #nosec G115 -- sealed 32 byte key
	out = append(out, sealedKey...)
	return append(out, body...), nil
}

func (e *envelopeEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 2 {
		return nil, ErrCiphertextShort
	}
	n := int(binary.BigEndian.Uint16(ciphertext))
	rest := ciphertext[2:]
	if len(rest) < n {
		return nil, ErrCiphertextShort
	}
	dataKey, err := open(e.master, rest[:n])
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	data, err := newGCM(dataKey)
	if err != nil {
		return nil, err
	}
	return open(data, rest[n:])
}
