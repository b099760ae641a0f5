package services

import (
	"encoding/json"
	"fmt"

	"github.com/vaultpass/go-vaultpass-core/types"
)

// Legacy schema v1 backup document. Supported read-only; all new writes use
// v2. V1 predates typed item contents: every entry is a login, secure notes
// never existed and tags carried no position.
type backupV1 struct {
	SchemaVersion int `json:"schemaVersion"`
	Device        struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		OS      string `json:"os"`
		Version string `json:"version"`
	} `json:"device"`
	Vault struct {
		ID        string         `json:"id"`
		Name      string         `json:"name"`
		CreatedAt int64          `json:"createdAt"`
		UpdatedAt int64          `json:"updatedAt"`
		Logins    []backupV1Item `json:"logins"`
		Tags      []backupV1Tag  `json:"tags"`
	} `json:"vault"`
}

type backupV1Item struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Username     *string            `json:"username,omitempty"`
	Password     *types.SecretField `json:"password,omitempty"`
	URIs         []string           `json:"uris,omitempty"`
	Notes        *string            `json:"notes,omitempty"`
	SecurityTier int                `json:"securityTier"`
	CreatedAt    int64              `json:"createdAt"`
	UpdatedAt    int64              `json:"updatedAt"`
}

type backupV1Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updatedAt"`
}

// parseBackupV1 maps a legacy document onto the current model. V1 never
// shipped export encryption, so the result is always a plaintext backup.
func parseBackupV1(data []byte) (*types.VaultBackup, error) {
	var legacy backupV1
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrBadRequest, err.Error())
	}
	if legacy.Vault.ID == "" {
		return nil, fmt.Errorf("%w: backup vault id missing", types.ErrBadRequest)
	}

	backup := &types.VaultBackup{
		SchemaVersion: types.BackupSchemaV1,
		Origin: types.BackupOrigin{
			OS:             legacy.Device.OS,
			AppVersionName: legacy.Device.Version,
			DeviceID:       legacy.Device.ID,
			DeviceName:     legacy.Device.Name,
		},
		Vault: types.BackupVault{
			ID:        legacy.Vault.ID,
			Name:      legacy.Vault.Name,
			CreatedAt: legacy.Vault.CreatedAt,
			UpdatedAt: legacy.Vault.UpdatedAt,
		},
	}

	for _, login := range legacy.Vault.Logins {
		tier := types.SecurityTier(login.SecurityTier)
		if !tier.Valid() {
			tier = types.SecurityTier2
		}
		uris := make([]types.LoginURI, 0, len(login.URIs))
		for _, u := range login.URIs {
			uris = append(uris, types.LoginURI{Text: u})
		}
		backup.Vault.Items = append(backup.Vault.Items, types.Item{
			ID:        login.ID,
			VaultID:   legacy.Vault.ID,
			Type:      types.ItemTypeLogin,
			Tier:      tier,
			CreatedAt: login.CreatedAt,
			UpdatedAt: login.UpdatedAt,
			Content: types.ItemContent{
				Login: &types.LoginContent{
					Name:     login.Name,
					Username: login.Username,
					Password: login.Password,
					URIs:     uris,
					Notes:    login.Notes,
				},
			},
		})
	}
	for position, tag := range legacy.Vault.Tags {
		backup.Vault.Tags = append(backup.Vault.Tags, types.Tag{
			ID:        tag.ID,
			VaultID:   legacy.Vault.ID,
			Name:      tag.Name,
			Position:  position,
			UpdatedAt: tag.UpdatedAt,
		})
	}
	return backup, nil
}
