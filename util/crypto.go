package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/vaultpass/go-vaultpass-core/types"
	"golang.org/x/crypto/hkdf"
)

const (
	// Symmetric key width in bytes
	KeySize = 32
	// AES-GCM nonce width in bytes
	NonceSize = 12
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Sha256Hex returns the sha256 hash of the data as a hex string
func Sha256Hex(data []byte) string {
	hash := sha256.New()
	hash.Write(data)
	sum := hash.Sum(nil)
	return hex.EncodeToString(sum)
}

// HmacSha256 derives a 32 byte key as HMAC-SHA256(key, context).
func HmacSha256(key []byte, context string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(context))
	return mac.Sum(nil)
}

// HkdfExpand derives a 32 byte key from the secret with the given salt and
// purpose label, scoping key reuse to one semantic purpose.
func HkdfExpand(secret, salt []byte, label string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(label))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptAESGCM seals plaintext under a 32 byte key. The returned bytes are
// nonce||ciphertext||tag.
func EncryptAESGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce, err := RandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

// DecryptAESGCM opens nonce||ciphertext||tag produced by EncryptAESGCM.
func DecryptAESGCM(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, types.ErrDecryptionFailed
	}
	nonce, ct := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return pt, nil
}
