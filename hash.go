package databind

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params configures Argon2id hashing.
type Argon2Params struct {
	Time    uint32 // Iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgon2Params returns the OWASP baseline for Argon2id.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
}

type argon2Hasher struct {
	p Argon2Params
}

// Argon2 returns an Argon2id hasher with DefaultArgon2Params.
func Argon2() Hasher { return Argon2WithParams(DefaultArgon2Params()) }

// Argon2WithParams returns an Argon2id hasher.
func Argon2WithParams(p Argon2Params) Hasher { return &argon2Hasher{p: p} }

// Hash returns the PHC string form $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func (h *argon2Hasher) Hash(plaintext []byte) (string, error) {
	salt := make([]byte, h.p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	sum := argon2.IDKey(plaintext, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.p.Memory, h.p.Time, h.p.Threads,
		enc.EncodeToString(salt), enc.EncodeToString(sum)), nil
}

// BcryptCost is the bcrypt work factor.
type BcryptCost int

// Bcrypt cost bounds.
const (
	BcryptMinCost     = BcryptCost(bcrypt.MinCost)
	BcryptDefaultCost = BcryptCost(bcrypt.DefaultCost)
	BcryptMaxCost     = BcryptCost(bcrypt.MaxCost)
)

type bcryptHasher struct {
	cost BcryptCost
}

// Bcrypt returns a bcrypt hasher at BcryptDefaultCost.
func Bcrypt() Hasher { return BcryptWithCost(BcryptDefaultCost) }

// BcryptWithCost returns a bcrypt hasher at cost.
func BcryptWithCost(cost BcryptCost) Hasher { return &bcryptHasher{cost: cost} }

func (h *bcryptHasher) Hash(plaintext []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(plaintext, int(h.cost))
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

// digestHasher hex-encodes a plain digest. Not for passwords.
type digestHasher struct {
	newHash func() hash.Hash
}

func (h digestHasher) Hash(plaintext []byte) (string, error) {
	d := h.newHash()
	d.Write(plaintext)
	return hex.EncodeToString(d.Sum(nil)), nil
}

// SHA256Hasher returns a deterministic hasher producing 64 hex characters.
func SHA256Hasher() Hasher { return digestHasher{newHash: sha256.New} }

// SHA512Hasher returns a deterministic hasher producing 128 hex characters.
func SHA512Hasher() Hasher { return digestHasher{newHash: sha512.New} }

func builtinHashers() map[HashAlgo]Hasher {
	return map[HashAlgo]Hasher{
		HashArgon2: Argon2(),
		HashBcrypt: Bcrypt(),
		HashSHA256: SHA256Hasher(),
		HashSHA512: SHA512Hasher(),
	}
}
