package types

const (
	// Seed entropy width in bytes (160 bits, 15 mnemonic words)
	SeedEntropySize = 20

	// Salt width derived from the entropy
	SeedSaltSize = 16
)

// Seed is the root of the key hierarchy. It is derived from entropy, never
// persisted in the clear and restorable from its mnemonic word list.
type Seed struct {
	SeedHex string   `json:"seedHex"`
	SaltHex string   `json:"saltHex"`
	Words   []string `json:"-"`
}

// MasterKey is derived from password + seed + KDF spec. Only the hash of the
// key material is ever carried around; the key is re-derived on demand.
type MasterKey struct {
	HashHex string `json:"hashHex"`
}

// KdfSpec pins the algorithm and cost parameters used to derive a master key
// so future derivations reproduce the same key.
type KdfSpec struct {
	Type        string `json:"type" validate:"required"`
	Iterations  uint32 `json:"iterations"`
	MemoryKB    uint32 `json:"memoryKb"`
	Parallelism uint8  `json:"parallelism"`
	HashLength  uint32 `json:"hashLength"`
}

const KdfTypeArgon2id = "argon2id"

// DefaultKdfSpec returns the Argon2id parameters used for new vaults.
func DefaultKdfSpec() KdfSpec {
	return KdfSpec{
		Type:        KdfTypeArgon2id,
		Iterations:  3,
		MemoryKB:    64 * 1024,
		Parallelism: 4,
		HashLength:  32,
	}
}
