package services

import (
	"os"

	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// SoftwareDeviceKey is a file-backed DeviceKeyProvider for dev/test builds.
// Mobile builds provide a secure-element-backed implementation behind the same
// interface; wrap/unwrap semantics are identical.
type SoftwareDeviceKey struct {
	key []byte
}

// NewSoftwareDeviceKey wraps an existing 32 byte key.
func NewSoftwareDeviceKey(key []byte) *SoftwareDeviceKey {
	return &SoftwareDeviceKey{key: key}
}

// LoadOrCreateDeviceKey reads the device key from path, generating and
// persisting a fresh one when the file does not exist yet.
func LoadOrCreateDeviceKey(path string) (*SoftwareDeviceKey, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) == util.KeySize {
		return &SoftwareDeviceKey{key: data}, nil
	}
	key, err := util.RandomBytes(util.KeySize)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, err
	}
	return &SoftwareDeviceKey{key: key}, nil
}

func (d *SoftwareDeviceKey) Wrap(plaintextKey []byte) ([]byte, error) {
	return util.EncryptAESGCM(d.key, plaintextKey)
}

func (d *SoftwareDeviceKey) Unwrap(wrappedKey []byte) ([]byte, error) {
	pt, err := util.DecryptAESGCM(d.key, wrappedKey)
	if err != nil {
		return nil, types.ErrVaultKeysExpired
	}
	return pt, nil
}

// Rotate swaps the in-memory key, invalidating every key wrapped before.
func (d *SoftwareDeviceKey) Rotate() error {
	key, err := util.RandomBytes(util.KeySize)
	if err != nil {
		return err
	}
	d.key = key
	return nil
}
