package types

const (
	// BackupSchemaV1 is read-only legacy
	BackupSchemaV1 = 1
	// BackupSchemaV2 is the current write format
	BackupSchemaV2 = 2

	// BackupSchemaCurrent is the highest schema this build understands.
	// Parsing anything newer fails hard with ErrInvalidSchemaVersion.
	BackupSchemaCurrent = BackupSchemaV2
)

// BackupOrigin identifies the device that produced a backup.
type BackupOrigin struct {
	OS             string `json:"os"`
	AppVersionCode int    `json:"appVersionCode"`
	AppVersionName string `json:"appVersionName"`
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName"`
}

// EncryptionSpec accompanies an encrypted backup. Reference is a probe
// ciphertext (the vault id encrypted under the external key) used to validate
// a candidate password before bulk decryption.
type EncryptionSpec struct {
	SeedHash  string  `json:"seedHash"`
	Reference []byte  `json:"reference"`
	KdfSpec   KdfSpec `json:"kdfSpec"`
}

// BackupVault holds the vault payload of a backup. Exactly one of the
// plaintext/encrypted pairs is populated depending on encryption state.
type BackupVault struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`

	Items         []Item          `json:"items,omitempty"`
	ItemsEnc      []ItemEncrypted `json:"itemsEncrypted,omitempty"`
	Tags          []Tag           `json:"tags,omitempty"`
	TagsEnc       []TagEncrypted  `json:"tagsEncrypted,omitempty"`
	DeletedItems  []DeletedItem   `json:"deletedItems,omitempty"`
	DeletedEnc    [][]byte        `json:"deletedItemsEncrypted,omitempty"`
}

// VaultBackup is the versioned backup document.
type VaultBackup struct {
	SchemaVersion int             `json:"schemaVersion" validate:"required"`
	Origin        BackupOrigin    `json:"origin"`
	Encryption    *EncryptionSpec `json:"encryption,omitempty"`
	Vault         BackupVault     `json:"vault"`
}

// Encrypted reports whether the backup payload is in its export-encrypted form.
func (b *VaultBackup) Encrypted() bool {
	return b.Encryption != nil
}
