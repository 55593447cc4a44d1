// Package secrets implements the encrypted secret subsystem from §4.8:
// a process-wide key-encryption key loaded once at boot seals each
// secret's plaintext directly with AES-GCM, with associated data binding
// (owner_id, secret_name, scope). No per-record data key is generated
// or wrapped.
// This is the one deliberately stdlib-only component in the domain
// stack — see DESIGN.md and SPEC_FULL.md's DOMAIN STACK section for why
// no third-party crypto library earns a place here.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/rcrt-io/rcrt/internal/types"
)

// KEK is the boot-time key-encryption key, decoded once from
// LOCAL_KEK_BASE64 and never rotated live (per §5: "rotation requires
// restart").
type KEK struct {
	aead cipher.AEAD
	ref  string
}

// NewKEK decodes a base64-encoded 32-byte AES-256 key.
func NewKEK(base64Key string) (*KEK, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode LOCAL_KEK_BASE64: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("LOCAL_KEK_BASE64 must decode to 32 bytes, got %d", len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build gcm: %w", err)
	}
	return &KEK{aead: aead, ref: fingerprint(raw)}, nil
}

func fingerprint(key []byte) string {
	var sum byte
	for _, b := range key {
		sum ^= b
	}
	return fmt.Sprintf("kek-%x", sum)
}

// associatedData binds ciphertext to the tuple the spec names in §4.8,
// so a secret's ciphertext cannot be swapped between owners, names, or
// scopes without decryption failing.
func associatedData(ownerID, name string, scope types.SecretScope, scopeRef string) []byte {
	return []byte(ownerID + "|" + name + "|" + string(scope) + "|" + scopeRef)
}

// Encrypt seals plaintext, returning ciphertext and the nonce used.
func (k *KEK) Encrypt(ownerID, name string, scope types.SecretScope, scopeRef string, plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	ad := associatedData(ownerID, name, scope, scopeRef)
	ciphertext = k.aead.Seal(nil, nonce, plaintext, ad)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext, verifying it was sealed for exactly this
// owner/name/scope tuple.
func (k *KEK) Decrypt(ownerID, name string, scope types.SecretScope, scopeRef string, ciphertext, nonce []byte) ([]byte, error) {
	ad := associatedData(ownerID, name, scope, scopeRef)
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func (k *KEK) Ref() string { return k.ref }
