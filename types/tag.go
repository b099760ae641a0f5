package types

// Tag is a named label with a position ordinal within a vault. The name is
// always encrypted with the vault's trusted key.
type Tag struct {
	ID        string `json:"id" validate:"required"`
	VaultID   string `json:"vaultId" validate:"required"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	UpdatedAt int64  `json:"updatedAt"`
}

type TagEncrypted struct {
	ID        string `json:"id"`
	VaultID   string `json:"vaultId"`
	NameEnc   []byte `json:"nameEnc"`
	Position  int    `json:"position"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (t Tag) GetID() string                 { return t.ID }
func (t Tag) GetUpdatedAt() int64           { return t.UpdatedAt }
func (t TagEncrypted) GetID() string        { return t.ID }
func (t TagEncrypted) GetUpdatedAt() int64  { return t.UpdatedAt }
