package services

import (
	"sync"

	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// VaultCipher is the per-vault symmetric encrypt/decrypt surface over the
// three vault keys. Keys are unwrapped lazily from the stored triple; once the
// device key rotates or the triple is deleted, every operation fails with
// ErrVaultKeysExpired instead of returning garbage.
type VaultCipher struct {
	vaultID   string
	keys      *types.VaultKeys
	deviceKey types.DeviceKeyProvider

	mu       sync.Mutex
	trusted  []byte
	secret   []byte
	external []byte
}

func NewVaultCipher(keys *types.VaultKeys, deviceKey types.DeviceKeyProvider) *VaultCipher {
	return &VaultCipher{
		vaultID:   keys.VaultID,
		keys:      keys,
		deviceKey: deviceKey,
	}
}

func (vc *VaultCipher) VaultID() string {
	return vc.vaultID
}

func (vc *VaultCipher) unwrap(cached *[]byte, wrapped []byte) ([]byte, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if *cached != nil {
		return *cached, nil
	}
	key, err := vc.deviceKey.Unwrap(wrapped)
	if err != nil {
		return nil, types.ErrVaultKeysExpired
	}
	*cached = key
	return key, nil
}

func (vc *VaultCipher) trustedKey() ([]byte, error) {
	return vc.unwrap(&vc.trusted, vc.keys.TrustedKeyEnc)
}

func (vc *VaultCipher) secretKey() ([]byte, error) {
	return vc.unwrap(&vc.secret, vc.keys.SecretKeyEnc)
}

func (vc *VaultCipher) externalKey() ([]byte, error) {
	return vc.unwrap(&vc.external, vc.keys.ExternalKeyEnc)
}

func (vc *VaultCipher) EncryptWithTrustedKey(plaintext []byte) ([]byte, error) {
	key, err := vc.trustedKey()
	if err != nil {
		return nil, err
	}
	return util.EncryptAESGCM(key, plaintext)
}

func (vc *VaultCipher) DecryptWithTrustedKey(data []byte) ([]byte, error) {
	key, err := vc.trustedKey()
	if err != nil {
		return nil, err
	}
	return util.DecryptAESGCM(key, data)
}

func (vc *VaultCipher) EncryptWithSecretKey(plaintext []byte) ([]byte, error) {
	key, err := vc.secretKey()
	if err != nil {
		return nil, err
	}
	return util.EncryptAESGCM(key, plaintext)
}

func (vc *VaultCipher) DecryptWithSecretKey(data []byte) ([]byte, error) {
	key, err := vc.secretKey()
	if err != nil {
		return nil, err
	}
	return util.DecryptAESGCM(key, data)
}

func (vc *VaultCipher) EncryptWithExternalKey(plaintext []byte) ([]byte, error) {
	key, err := vc.externalKey()
	if err != nil {
		return nil, err
	}
	return util.EncryptAESGCM(key, plaintext)
}

func (vc *VaultCipher) DecryptWithExternalKey(data []byte) ([]byte, error) {
	key, err := vc.externalKey()
	if err != nil {
		return nil, err
	}
	return util.DecryptAESGCM(key, data)
}

// IsTrustedValid probes key availability without attempting a decrypt.
func (vc *VaultCipher) IsTrustedValid() bool {
	_, err := vc.trustedKey()
	return err == nil
}

func (vc *VaultCipher) IsSecretValid() bool {
	_, err := vc.secretKey()
	return err == nil
}

func (vc *VaultCipher) IsExternalValid() bool {
	_, err := vc.externalKey()
	return err == nil
}

// IsValid means all three keys unwrap under the current device key.
func (vc *VaultCipher) IsValid() bool {
	return vc.IsTrustedValid() && vc.IsSecretValid() && vc.IsExternalValid()
}
