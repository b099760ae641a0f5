package types

// Vault key derivation context suffixes. One derived key must never be reused
// across vaults or contexts.
const (
	VaultKeyContextTrusted  = "/tKey"
	VaultKeyContextSecret   = "/sKey"
	VaultKeyContextExternal = "/eKey"
)

// Vault is the metadata of a single vault. Items, tags and tombstones hang off
// the vault by VaultID.
type Vault struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// VaultKeys is the per-vault {trusted, secret, external} triple. Each member
// is an independently derived symmetric key, wrapped under the device-local
// key before storage. Valid means all three unwrap under the current device key.
type VaultKeys struct {
	VaultID        string `json:"vaultId"`
	TrustedKeyEnc  []byte `json:"trustedKeyEnc"`
	SecretKeyEnc   []byte `json:"secretKeyEnc"`
	ExternalKeyEnc []byte `json:"externalKeyEnc"`
	CreatedAt      int64  `json:"createdAt"`
}

// VaultHashes is the same derivation as VaultKeys but over the seed instead of
// the master key. It proves seed possession without revealing vault keys and
// is embedded in EncryptionSpec.SeedHash.
type VaultHashes struct {
	VaultID     string `json:"vaultId"`
	TrustedHex  string `json:"trustedHex"`
	SecretHex   string `json:"secretHex"`
	ExternalHex string `json:"externalHex"`
}

// DeviceKeyProvider abstracts device-level secure key storage. Wrap and Unwrap
// move symmetric vault keys in and out of the secure element.
type DeviceKeyProvider interface {
	Wrap(plaintextKey []byte) ([]byte, error)
	Unwrap(wrappedKey []byte) ([]byte, error)
}
