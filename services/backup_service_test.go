package services

import (
	"fmt"
	"testing"

	"github.com/tj/assert"
	"github.com/vaultpass/go-vaultpass-core/types"
)

func newBackupFixture(t *testing.T) (*testFixture, *BackupService, *VaultCipher, *types.Seed) {
	t.Helper()
	f := newTestFixture(t)
	seed, err := f.keyService.GenerateSeed(nil)
	if err != nil {
		t.Fatal(err)
	}
	master, err := f.keyService.DeriveMasterKey("hunter2", seed, testKdfSpec())
	if err != nil {
		t.Fatal(err)
	}
	keys, err := f.keyService.DeriveVaultKeys(master.HashHex, "vault-1")
	if err != nil {
		t.Fatal(err)
	}
	vc := NewVaultCipher(keys, f.deviceKey)
	return f, NewBackupService(f.itemService, f.keyService), vc, seed
}

func TestCreateBackupSnapshotsVault(t *testing.T) {
	f, bs, vc, _ := newBackupFixture(t)

	if _, err := f.itemService.SaveItem(vc, testLoginItem("item-1", "vault-1", types.SecurityTier2, "pa55word")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.itemService.SaveTag(vc, &types.Tag{ID: "tag-1", VaultID: "vault-1", Name: "work"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.itemService.SaveItem(vc, testLoginItem("item-2", "vault-1", types.SecurityTier2, "x")); err != nil {
		t.Fatal(err)
	}
	if err := f.itemService.DeleteItem("item-2"); err != nil {
		t.Fatal(err)
	}

	vault := &types.Vault{ID: "vault-1", Name: "Personal"}
	backup, err := bs.CreateBackup(vc, vault, true, true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.BackupSchemaCurrent, backup.SchemaVersion)
	assert.False(t, backup.Encrypted())
	assert.Len(t, backup.Vault.Items, 1)
	assert.Len(t, backup.Vault.Tags, 1)
	assert.Len(t, backup.Vault.DeletedItems, 1)
	assert.Equal(t, "pa55word", *backup.Vault.Items[0].Content.Login.Password.ClearText)

	withoutDeleted, err := bs.CreateBackup(vc, vault, false, true)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, withoutDeleted.Vault.DeletedItems, 0)
}

func TestEncryptDecryptBackupRoundTrip(t *testing.T) {
	f, bs, vc, seed := newBackupFixture(t)

	if _, err := f.itemService.SaveItem(vc, testLoginItem("item-1", "vault-1", types.SecurityTier1, "pa55word")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.itemService.SaveTag(vc, &types.Tag{ID: "tag-1", VaultID: "vault-1", Name: "work"}); err != nil {
		t.Fatal(err)
	}

	plain, err := bs.CreateBackup(vc, &types.Vault{ID: "vault-1", Name: "Personal"}, false, true)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := bs.EncryptBackup(vc, seed, testKdfSpec(), plain)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, enc.Encrypted())
	assert.Len(t, enc.Vault.Items, 0)
	assert.Len(t, enc.Vault.ItemsEnc, 1)
	assert.Len(t, enc.Vault.TagsEnc, 1)
	assert.NotEmpty(t, enc.Encryption.SeedHash)
	assert.Equal(t, types.KdfTypeArgon2id, enc.Encryption.KdfSpec.Type)

	data, err := bs.Serialize(enc)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := bs.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := bs.DecryptBackup(vc, parsed)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, dec.Vault.Items, 1)
	assert.Equal(t, "pa55word", *dec.Vault.Items[0].Content.Login.Password.ClearText)
	assert.Equal(t, "work", dec.Vault.Tags[0].Name)
}

func TestValidateReferenceWrongPassword(t *testing.T) {
	f, bs, vc, seed := newBackupFixture(t)

	plain, err := bs.CreateBackup(vc, &types.Vault{ID: "vault-1"}, false, true)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := bs.EncryptBackup(vc, seed, testKdfSpec(), plain)
	if err != nil {
		t.Fatal(err)
	}

	// derive keys from a wrong password: the reference probe must fail before
	// any bulk decryption
	wrongMaster, err := f.keyService.DeriveMasterKey("wrong password", seed, testKdfSpec())
	if err != nil {
		t.Fatal(err)
	}
	wrongKeys, err := f.keyService.DeriveVaultKeys(wrongMaster.HashHex, "vault-1")
	if err != nil {
		t.Fatal(err)
	}
	wrong := NewVaultCipher(wrongKeys, f.deviceKey)
	assert.Equal(t, types.ErrDecryptionFailed, bs.ValidateReference(wrong, enc))
	_, err = bs.DecryptBackup(wrong, enc)
	assert.Equal(t, types.ErrDecryptionFailed, err)
}

func TestParseRejectsNewerSchema(t *testing.T) {
	_, bs, _, _ := newBackupFixture(t)
	doc := fmt.Sprintf(`{"schemaVersion":%d,"vault":{"id":"vault-1"}}`, types.BackupSchemaCurrent+1)
	_, err := bs.Parse([]byte(doc))
	assert.Equal(t, types.ErrInvalidSchemaVersion, err)
}

func TestParseRejectsMissingSchema(t *testing.T) {
	_, bs, _, _ := newBackupFixture(t)
	_, err := bs.Parse([]byte(`{"vault":{"id":"vault-1"}}`))
	assert.Equal(t, types.ErrInvalidSchemaVersion, err)
}

func TestParseLegacyV1(t *testing.T) {
	_, bs, _, _ := newBackupFixture(t)
	doc := `{
		"schemaVersion": 1,
		"device": {"id": "dev-1", "name": "Pixel", "os": "android", "version": "1.4.2"},
		"vault": {
			"id": "vault-1",
			"name": "Personal",
			"logins": [
				{"id": "login-1", "name": "example.com", "username": "alice",
				 "password": {"clearText": "pa55word"}, "uris": ["https://example.com"],
				 "securityTier": 0, "updatedAt": 100}
			],
			"tags": [
				{"id": "tag-1", "name": "work", "updatedAt": 50},
				{"id": "tag-2", "name": "home", "updatedAt": 60}
			]
		}
	}`
	backup, err := bs.Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.BackupSchemaV1, backup.SchemaVersion)
	assert.False(t, backup.Encrypted())
	assert.Equal(t, "android", backup.Origin.OS)
	assert.Len(t, backup.Vault.Items, 1)

	item := backup.Vault.Items[0]
	assert.Equal(t, types.ItemTypeLogin, item.Type)
	// invalid legacy tier defaults to tier 2
	assert.Equal(t, types.SecurityTier2, item.Tier)
	assert.Equal(t, "https://example.com", item.Content.Login.URIs[0].Text)

	// tag position follows legacy list order
	assert.Equal(t, 0, backup.Vault.Tags[0].Position)
	assert.Equal(t, 1, backup.Vault.Tags[1].Position)
}
