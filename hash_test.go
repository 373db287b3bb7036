package databind

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestArgon2(t *testing.T) {
	h := Argon2WithParams(Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8})

	h1, err := h.Hash([]byte("password123"))
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if !strings.HasPrefix(h1, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("Hash() = %q, want argon2id PHC prefix", h1)
	}

	h2, _ := h.Hash([]byte("password123"))
	if h1 == h2 {
		t.Error("Hash() returned identical output for two calls, want random salt")
	}
}

func TestDefaultArgon2Params(t *testing.T) {
	p := DefaultArgon2Params()
	if p.Time != 1 || p.Memory != 64*1024 || p.Threads != 4 || p.KeyLen != 32 || p.SaltLen != 16 {
		t.Errorf("DefaultArgon2Params() = %+v", p)
	}
}

func TestBcrypt(t *testing.T) {
	h := BcryptWithCost(BcryptMinCost)
	out, err := h.Hash([]byte("secret"))
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(out), []byte("secret")); err != nil {
		t.Errorf("CompareHashAndPassword() error: %v", err)
	}
	if cost, _ := bcrypt.Cost([]byte(out)); cost != int(BcryptMinCost) {
		t.Errorf("Cost() = %d, want %d", cost, BcryptMinCost)
	}
}

func TestDigestHashers(t *testing.T) {
	tests := []struct {
		name string
		h    Hasher
		want string
	}{
		{"sha256", SHA256Hasher(), "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{"sha512", SHA512Hasher(), "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca72323c3d99ba5c11d7c7acc6e14b8c5da0c4663475c2e5c3adef46f73bcdec043"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.h.Hash([]byte("hello"))
			if err != nil {
				t.Fatalf("Hash() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Hash(\"hello\") = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuiltinHashers(t *testing.T) {
	hashers := builtinHashers()
	for algo := range knownHashAlgos {
		if _, ok := hashers[algo]; !ok {
			t.Errorf("builtinHashers() missing %q", algo)
		}
	}
}
