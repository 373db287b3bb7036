package databind

import "maps"

// EncryptAlgo names an encryption handler. Used in tags: `bind:"token,encrypt=aes"`.
type EncryptAlgo string

// Encryption algorithms with built-in constructors.
const (
	EncryptAES      EncryptAlgo = "aes"      // AES-GCM
	EncryptRSA      EncryptAlgo = "rsa"      // RSA-OAEP
	EncryptEnvelope EncryptAlgo = "envelope" // per-value data key sealed by a master key
)

// HashAlgo names a hash handler. Used in tags: `bind:"password,hash=argon2"`.
type HashAlgo string

// Hash algorithms. argon2 and bcrypt are salted; sha256 and sha512 are
// deterministic and only suitable for fingerprints.
const (
	HashArgon2 HashAlgo = "argon2"
	HashBcrypt HashAlgo = "bcrypt"
	HashSHA256 HashAlgo = "sha256"
	HashSHA512 HashAlgo = "sha512"
)

// MaskType names a masking rule. Used in tags: `bind:"email,mask=email"`.
type MaskType string

// Mask types with built-in maskers.
const (
	MaskSSN   MaskType = "ssn"
	MaskEmail MaskType = "email"
	MaskPhone MaskType = "phone"
	MaskCard  MaskType = "card"
	MaskIP    MaskType = "ip"
	MaskUUID  MaskType = "uuid"
	MaskIBAN  MaskType = "iban"
	MaskName  MaskType = "name"
)

// Encryptor seals and opens property values.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Hasher performs one-way hashing. Salted hashers encode their parameters
// into the result.
type Hasher interface {
	Hash(plaintext []byte) (string, error)
}

// Masker rewrites a value for display, hiding part of it.
type Masker interface {
	Mask(value string) string
}

var (
	knownEncryptAlgos = map[EncryptAlgo]bool{EncryptAES: true, EncryptRSA: true, EncryptEnvelope: true}
	knownHashAlgos    = map[HashAlgo]bool{HashArgon2: true, HashBcrypt: true, HashSHA256: true, HashSHA512: true}
	knownMaskTypes    = map[MaskType]bool{
		MaskSSN: true, MaskEmail: true, MaskPhone: true, MaskCard: true,
		MaskIP: true, MaskUUID: true, MaskIBAN: true, MaskName: true,
	}
)

// IsValidEncryptAlgo reports whether algo is a known encryption algorithm.
func IsValidEncryptAlgo(algo EncryptAlgo) bool { return knownEncryptAlgos[algo] }

// IsValidHashAlgo reports whether algo is a known hash algorithm.
func IsValidHashAlgo(algo HashAlgo) bool { return knownHashAlgos[algo] }

// IsValidMaskType reports whether mt is a known mask type.
func IsValidMaskType(mt MaskType) bool { return knownMaskTypes[mt] }

// handlerSet holds the transform handlers a Config resolves against.
// Encryptors need keys, so none are installed by default.
type handlerSet struct {
	encryptors map[EncryptAlgo]Encryptor
	hashers    map[HashAlgo]Hasher
	maskers    map[MaskType]Masker
}

func defaultHandlers() handlerSet {
	return handlerSet{
		encryptors: map[EncryptAlgo]Encryptor{},
		hashers:    builtinHashers(),
		maskers:    builtinMaskers(),
	}
}

// clone copies the maps so options never mutate a shared Config.
func (h handlerSet) clone() handlerSet {
	out := handlerSet{
		encryptors: maps.Clone(h.encryptors),
		hashers:    maps.Clone(h.hashers),
		maskers:    maps.Clone(h.maskers),
	}
	if out.encryptors == nil {
		out.encryptors = map[EncryptAlgo]Encryptor{}
	}
	if out.hashers == nil {
		out.hashers = map[HashAlgo]Hasher{}
	}
	if out.maskers == nil {
		out.maskers = map[MaskType]Masker{}
	}
	return out
}
