package types

import "encoding/json"

// SecurityTier classifies an item and decides which vault key protects its
// envelope and its secret sub-fields.
type SecurityTier int

const (
	// SecurityTier1: vault unlock required for everything
	SecurityTier1 SecurityTier = 1
	// SecurityTier2: envelope readable without unlock, secrets are not
	SecurityTier2 SecurityTier = 2
	// SecurityTier3: most fields available without unlock, secret fields still marked
	SecurityTier3 SecurityTier = 3
)

func (t SecurityTier) Valid() bool {
	return t >= SecurityTier1 && t <= SecurityTier3
}

type ItemType string

const (
	ItemTypeLogin       ItemType = "login"
	ItemTypeSecureNote  ItemType = "secureNote"
	ItemTypePaymentCard ItemType = "paymentCard"
	// ItemTypeUnknown carries opaque raw JSON defined by a newer app version
	ItemTypeUnknown ItemType = "unknown"
)

// SecretFieldPrefix marks secret keys inside an unknown item's raw JSON.
const SecretFieldPrefix = "s_"

// SecretField wraps a secret value in exactly one of two states. A decrypted
// item holds ClearText; an item whose keys cannot be unwrapped may still carry
// the Encrypted wrapper untouched.
type SecretField struct {
	ClearText *string `json:"clearText,omitempty"`
	Encrypted *string `json:"encrypted,omitempty"`
}

func ClearTextField(s string) *SecretField {
	return &SecretField{ClearText: &s}
}

func EncryptedField(b64 string) *SecretField {
	return &SecretField{Encrypted: &b64}
}

func (f *SecretField) IsEncrypted() bool {
	return f != nil && f.Encrypted != nil
}

type LoginURI struct {
	Text    string `json:"text"`
	Matcher string `json:"matcher,omitempty"`
}

type LoginContent struct {
	Name     string       `json:"name"`
	Username *string      `json:"username,omitempty"`
	Password *SecretField `json:"password,omitempty"`
	URIs     []LoginURI   `json:"uris,omitempty"`
	Notes    *string      `json:"notes,omitempty"`
	IconURI  *string      `json:"iconUri,omitempty"`
}

type SecureNoteContent struct {
	Name string       `json:"name"`
	Text *SecretField `json:"text,omitempty"`
}

type PaymentCardContent struct {
	Name           string       `json:"name"`
	CardholderName *string      `json:"cardholderName,omitempty"`
	Number         *SecretField `json:"number,omitempty"`
	Expiry         *SecretField `json:"expiry,omitempty"`
	CVV            *SecretField `json:"cvv,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
}

// ItemContent is a tagged union; exactly one member matching Item.Type is set.
// Unknown item kinds keep their raw JSON so a newer app's data round-trips
// through this version without schema changes.
type ItemContent struct {
	Login       *LoginContent       `json:"login,omitempty"`
	SecureNote  *SecureNoteContent  `json:"secureNote,omitempty"`
	PaymentCard *PaymentCardContent `json:"paymentCard,omitempty"`
	Raw         json.RawMessage     `json:"raw,omitempty"`
}

// Item is the plaintext view of a credential record. Secret sub-fields may be
// either ClearText or still Encrypted.
type Item struct {
	ID        string       `json:"id" validate:"required"`
	VaultID   string       `json:"vaultId" validate:"required"`
	Type      ItemType     `json:"type" validate:"required"`
	Tier      SecurityTier `json:"securityTier"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
	TagIDs    []string     `json:"tagIds,omitempty"`
	Content   ItemContent  `json:"content"`
}

// ItemEncrypted is the at-rest view. ContentEnc is the whole serialized
// content encrypted under the tier's envelope key; it never holds plaintext
// secret fields.
type ItemEncrypted struct {
	ID         string       `json:"id"`
	VaultID    string       `json:"vaultId"`
	Type       ItemType     `json:"type"`
	Tier       SecurityTier `json:"securityTier"`
	CreatedAt  int64        `json:"createdAt"`
	UpdatedAt  int64        `json:"updatedAt"`
	TagIDs     []string     `json:"tagIds,omitempty"`
	ContentEnc []byte       `json:"contentEnc"`
}

// DeletedItem is the tombstone kept after deletion so sync peers can detect
// and apply it.
type DeletedItem struct {
	ID        string   `json:"id"`
	VaultID   string   `json:"vaultId"`
	Type      ItemType `json:"type"`
	DeletedAt int64    `json:"deletedAt"`
}

// Clone returns a copy whose active union member can be reassigned without
// touching the receiver's. Secret field pointers are replaced, never written
// through, so copying one level is enough.
func (c ItemContent) Clone() ItemContent {
	out := c
	switch {
	case c.Login != nil:
		login := *c.Login
		out.Login = &login
	case c.SecureNote != nil:
		note := *c.SecureNote
		out.SecureNote = &note
	case c.PaymentCard != nil:
		card := *c.PaymentCard
		out.PaymentCard = &card
	}
	return out
}

func (i Item) GetID() string                { return i.ID }
func (i Item) GetUpdatedAt() int64          { return i.UpdatedAt }
func (i ItemEncrypted) GetID() string       { return i.ID }
func (i ItemEncrypted) GetUpdatedAt() int64 { return i.UpdatedAt }
func (d DeletedItem) GetID() string         { return d.ID }
func (d DeletedItem) GetUpdatedAt() int64   { return d.DeletedAt }
