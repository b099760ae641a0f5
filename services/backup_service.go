package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// BackupService builds, encrypts, serializes and parses versioned vault
// backups. Export encryption uses the vault's external key, never the at-rest
// keys, so a backup can travel without exposing the device key hierarchy.
type BackupService struct {
	itemService *ItemService
	keyService  *KeyService
}

func NewBackupService(itemService *ItemService, keyService *KeyService) *BackupService {
	return &BackupService{itemService: itemService, keyService: keyService}
}

func backupOrigin() types.BackupOrigin {
	return types.BackupOrigin{
		OS:             "linux",
		AppVersionCode: global.Conf.Relay.AppVersionCode,
		AppVersionName: global.Conf.Relay.AppVersionName,
		DeviceID:       global.Conf.Device.ID,
		DeviceName:     global.Conf.Device.Name,
	}
}

// CreateBackup snapshots a vault's items and tags (plus tombstones when
// requested) in plaintext domain form, not yet encrypted for export. Items
// whose keys no longer unwrap are skipped.
func (bs *BackupService) CreateBackup(vc *VaultCipher, vault *types.Vault, includeDeleted bool, decryptSecrets bool) (*types.VaultBackup, error) {
	encItems, err := bs.itemService.ListItems(vault.ID)
	if err != nil {
		return nil, err
	}
	items, err := bs.itemService.DecryptItems(vc, encItems, decryptSecrets)
	if err != nil {
		return nil, err
	}

	encTags, err := bs.itemService.ListTags(vault.ID)
	if err != nil {
		return nil, err
	}
	tags := make([]types.Tag, 0, len(encTags))
	for i := range encTags {
		tag, err := bs.itemService.DecryptTag(vc, &encTags[i])
		if err != nil {
			return nil, err
		}
		if tag == nil {
			continue
		}
		tags = append(tags, *tag)
	}

	backup := &types.VaultBackup{
		SchemaVersion: types.BackupSchemaCurrent,
		Origin:        backupOrigin(),
		Vault: types.BackupVault{
			ID:        vault.ID,
			Name:      vault.Name,
			CreatedAt: vault.CreatedAt,
			UpdatedAt: vault.UpdatedAt,
			Items:     items,
			Tags:      tags,
		},
	}
	if includeDeleted {
		tombstones, err := bs.itemService.ListTombstones(vault.ID)
		if err != nil {
			return nil, err
		}
		backup.Vault.DeletedItems = tombstones
	}
	return backup, nil
}

// EncryptBackup re-encrypts every item, tag and tombstone of a plaintext
// backup under the vault's external key and attaches the EncryptionSpec. The
// spec's probe ciphertext is the vault id, letting an import validate a
// candidate password before bulk decryption.
func (bs *BackupService) EncryptBackup(vc *VaultCipher, seed *types.Seed, kdfSpec types.KdfSpec, backup *types.VaultBackup) (*types.VaultBackup, error) {
	if backup.Encrypted() {
		return backup, nil
	}
	hashes, err := bs.keyService.DeriveVaultHashes(seed.SeedHex, backup.Vault.ID)
	if err != nil {
		return nil, err
	}
	reference, err := vc.EncryptWithExternalKey([]byte(backup.Vault.ID))
	if err != nil {
		return nil, err
	}

	out := &types.VaultBackup{
		SchemaVersion: backup.SchemaVersion,
		Origin:        backup.Origin,
		Encryption: &types.EncryptionSpec{
			SeedHash:  hashes.ExternalHex,
			Reference: reference,
			KdfSpec:   kdfSpec,
		},
		Vault: types.BackupVault{
			ID:        backup.Vault.ID,
			Name:      backup.Vault.Name,
			CreatedAt: backup.Vault.CreatedAt,
			UpdatedAt: backup.Vault.UpdatedAt,
		},
	}

	for i := range backup.Vault.Items {
		item := backup.Vault.Items[i]
		serialized, err := json.Marshal(item.Content)
		if err != nil {
			return nil, err
		}
		contentEnc, err := vc.EncryptWithExternalKey(serialized)
		if err != nil {
			return nil, err
		}
		out.Vault.ItemsEnc = append(out.Vault.ItemsEnc, types.ItemEncrypted{
			ID:         item.ID,
			VaultID:    item.VaultID,
			Type:       item.Type,
			Tier:       item.Tier,
			CreatedAt:  item.CreatedAt,
			UpdatedAt:  item.UpdatedAt,
			TagIDs:     item.TagIDs,
			ContentEnc: contentEnc,
		})
	}
	for i := range backup.Vault.Tags {
		tag := backup.Vault.Tags[i]
		nameEnc, err := vc.EncryptWithExternalKey([]byte(tag.Name))
		if err != nil {
			return nil, err
		}
		out.Vault.TagsEnc = append(out.Vault.TagsEnc, types.TagEncrypted{
			ID:        tag.ID,
			VaultID:   tag.VaultID,
			NameEnc:   nameEnc,
			Position:  tag.Position,
			UpdatedAt: tag.UpdatedAt,
		})
	}
	for i := range backup.Vault.DeletedItems {
		serialized, err := json.Marshal(backup.Vault.DeletedItems[i])
		if err != nil {
			return nil, err
		}
		enc, err := vc.EncryptWithExternalKey(serialized)
		if err != nil {
			return nil, err
		}
		out.Vault.DeletedEnc = append(out.Vault.DeletedEnc, enc)
	}
	return out, nil
}

// ValidateReference checks the probe ciphertext of an encrypted backup against
// the candidate external key before any bulk decryption is attempted.
func (bs *BackupService) ValidateReference(vc *VaultCipher, backup *types.VaultBackup) error {
	if !backup.Encrypted() {
		return nil
	}
	pt, err := vc.DecryptWithExternalKey(backup.Encryption.Reference)
	if err != nil {
		return err
	}
	if !bytes.Equal(pt, []byte(backup.Vault.ID)) {
		return types.ErrDecryptionFailed
	}
	return nil
}

// DecryptBackup is the inverse of EncryptBackup. The reference probe is
// verified first so a wrong password fails fast.
func (bs *BackupService) DecryptBackup(vc *VaultCipher, backup *types.VaultBackup) (*types.VaultBackup, error) {
	if !backup.Encrypted() {
		return backup, nil
	}
	if err := bs.ValidateReference(vc, backup); err != nil {
		return nil, err
	}

	out := &types.VaultBackup{
		SchemaVersion: backup.SchemaVersion,
		Origin:        backup.Origin,
		Vault: types.BackupVault{
			ID:        backup.Vault.ID,
			Name:      backup.Vault.Name,
			CreatedAt: backup.Vault.CreatedAt,
			UpdatedAt: backup.Vault.UpdatedAt,
		},
	}
	for i := range backup.Vault.ItemsEnc {
		enc := backup.Vault.ItemsEnc[i]
		serialized, err := vc.DecryptWithExternalKey(enc.ContentEnc)
		if err != nil {
			return nil, err
		}
		var content types.ItemContent
		if err := json.Unmarshal(serialized, &content); err != nil {
			return nil, err
		}
		out.Vault.Items = append(out.Vault.Items, types.Item{
			ID:        enc.ID,
			VaultID:   enc.VaultID,
			Type:      enc.Type,
			Tier:      enc.Tier,
			CreatedAt: enc.CreatedAt,
			UpdatedAt: enc.UpdatedAt,
			TagIDs:    enc.TagIDs,
			Content:   content,
		})
	}
	for i := range backup.Vault.TagsEnc {
		enc := backup.Vault.TagsEnc[i]
		name, err := vc.DecryptWithExternalKey(enc.NameEnc)
		if err != nil {
			return nil, err
		}
		out.Vault.Tags = append(out.Vault.Tags, types.Tag{
			ID:        enc.ID,
			VaultID:   enc.VaultID,
			Name:      string(name),
			Position:  enc.Position,
			UpdatedAt: enc.UpdatedAt,
		})
	}
	for i := range backup.Vault.DeletedEnc {
		serialized, err := vc.DecryptWithExternalKey(backup.Vault.DeletedEnc[i])
		if err != nil {
			return nil, err
		}
		var tombstone types.DeletedItem
		if err := json.Unmarshal(serialized, &tombstone); err != nil {
			return nil, err
		}
		out.Vault.DeletedItems = append(out.Vault.DeletedItems, tombstone)
	}
	return out, nil
}

// Serialize maps a backup to its JSON document.
func (bs *BackupService) Serialize(backup *types.VaultBackup) ([]byte, error) {
	return json.MarshalIndent(backup, "", "  ")
}

// Parse maps a JSON document back to a backup. A document declaring a schema
// newer than this build understands fails with ErrInvalidSchemaVersion; this
// is a hard compatibility gate, never a partial parse.
func (bs *BackupService) Parse(data []byte) (*types.VaultBackup, error) {
	var gate struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &gate); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrBadRequest, err.Error())
	}
	switch {
	case gate.SchemaVersion > types.BackupSchemaCurrent:
		return nil, types.ErrInvalidSchemaVersion
	case gate.SchemaVersion == types.BackupSchemaV1:
		return parseBackupV1(data)
	case gate.SchemaVersion == types.BackupSchemaV2:
		var backup types.VaultBackup
		if err := json.Unmarshal(data, &backup); err != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrBadRequest, err.Error())
		}
		if backup.Vault.ID == "" {
			return nil, fmt.Errorf("%w: backup vault id missing", types.ErrBadRequest)
		}
		return &backup, nil
	default:
		return nil, types.ErrInvalidSchemaVersion
	}
}
