package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// ItemService is the tier-dispatch encryption mapper. Items and tags pass
// through here on every read and write; plaintext never reaches the store.
//
// Key selection per security tier:
//
//	tier   envelope  secret fields
//	1      secret    secret
//	2      trusted   secret
//	3      trusted   trusted
type ItemService struct {
	itemsRepo   repository.Repository
	tagsRepo    repository.Repository
	deletedRepo repository.Repository
}

func NewItemService(dbSelector repository.DBSelector) *ItemService {
	itemsRepo, err := dbSelector.ChooseDB(repository.Items)
	if err != nil {
		panic(err)
	}
	tagsRepo, err := dbSelector.ChooseDB(repository.Tags)
	if err != nil {
		panic(err)
	}
	deletedRepo, err := dbSelector.ChooseDB(repository.DeletedItems)
	if err != nil {
		panic(err)
	}
	return &ItemService{itemsRepo: itemsRepo, tagsRepo: tagsRepo, deletedRepo: deletedRepo}
}

type cryptoFn func([]byte) ([]byte, error)

func envelopeEncryptFn(vc *VaultCipher, tier types.SecurityTier) cryptoFn {
	if tier == types.SecurityTier1 {
		return vc.EncryptWithSecretKey
	}
	return vc.EncryptWithTrustedKey
}

func envelopeDecryptFn(vc *VaultCipher, tier types.SecurityTier) cryptoFn {
	if tier == types.SecurityTier1 {
		return vc.DecryptWithSecretKey
	}
	return vc.DecryptWithTrustedKey
}

func secretFieldEncryptFn(vc *VaultCipher, tier types.SecurityTier) cryptoFn {
	if tier == types.SecurityTier3 {
		return vc.EncryptWithTrustedKey
	}
	return vc.EncryptWithSecretKey
}

func secretFieldDecryptFn(vc *VaultCipher, tier types.SecurityTier) cryptoFn {
	if tier == types.SecurityTier3 {
		return vc.DecryptWithTrustedKey
	}
	return vc.DecryptWithSecretKey
}

// encryptSecretField wraps a clear-text field. Re-encrypting an already
// encrypted wrapper is a no-op so double encryption can never happen.
func encryptSecretField(enc cryptoFn, f *types.SecretField) (*types.SecretField, error) {
	if f == nil {
		return nil, nil
	}
	if f.IsEncrypted() {
		return f, nil
	}
	if f.ClearText == nil {
		return f, nil
	}
	ct, err := enc([]byte(*f.ClearText))
	if err != nil {
		return nil, err
	}
	return types.EncryptedField(base64.StdEncoding.EncodeToString(ct)), nil
}

func decryptSecretField(dec cryptoFn, f *types.SecretField) (*types.SecretField, error) {
	if f == nil || !f.IsEncrypted() {
		return f, nil
	}
	ct, err := base64.StdEncoding.DecodeString(*f.Encrypted)
	if err != nil {
		return nil, err
	}
	pt, err := dec(ct)
	if err != nil {
		return nil, err
	}
	return types.ClearTextField(string(pt)), nil
}

// encryptRawSecrets walks the top-level keys of an unknown item's raw JSON and
// encrypts every value whose key carries the s_ prefix. Everything else stays
// plaintext JSON, which is what makes unknown item kinds round-trip safely
// through this version.
func encryptRawSecrets(enc cryptoFn, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unknown item content is not a JSON object: %w", err)
	}
	for key, val := range obj {
		if !strings.HasPrefix(key, types.SecretFieldPrefix) {
			continue
		}
		// already encrypted wrappers pass through unchanged
		var wrapper types.SecretField
		if err := json.Unmarshal(val, &wrapper); err == nil && wrapper.IsEncrypted() {
			continue
		}
		ct, err := enc(val)
		if err != nil {
			return nil, err
		}
		wrapped, err := json.Marshal(types.EncryptedField(base64.StdEncoding.EncodeToString(ct)))
		if err != nil {
			return nil, err
		}
		obj[key] = wrapped
	}
	return json.Marshal(obj)
}

func decryptRawSecrets(dec cryptoFn, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unknown item content is not a JSON object: %w", err)
	}
	for key, val := range obj {
		if !strings.HasPrefix(key, types.SecretFieldPrefix) {
			continue
		}
		var wrapper types.SecretField
		if err := json.Unmarshal(val, &wrapper); err != nil || !wrapper.IsEncrypted() {
			continue
		}
		ct, err := base64.StdEncoding.DecodeString(*wrapper.Encrypted)
		if err != nil {
			return nil, err
		}
		pt, err := dec(ct)
		if err != nil {
			return nil, err
		}
		obj[key] = json.RawMessage(pt)
	}
	return json.Marshal(obj)
}

// encryptContentSecrets encrypts the secret sub-fields of a content union in
// place, per the tier table. Login password, secure-note text and payment-card
// number/expiry/cvv are always secret; everything else is envelope-only.
func encryptContentSecrets(vc *VaultCipher, tier types.SecurityTier, content *types.ItemContent) error {
	enc := secretFieldEncryptFn(vc, tier)
	var err error
	switch {
	case content.Login != nil:
		content.Login.Password, err = encryptSecretField(enc, content.Login.Password)
	case content.SecureNote != nil:
		content.SecureNote.Text, err = encryptSecretField(enc, content.SecureNote.Text)
	case content.PaymentCard != nil:
		card := content.PaymentCard
		if card.Number, err = encryptSecretField(enc, card.Number); err != nil {
			return err
		}
		if card.Expiry, err = encryptSecretField(enc, card.Expiry); err != nil {
			return err
		}
		card.CVV, err = encryptSecretField(enc, card.CVV)
	case content.Raw != nil:
		content.Raw, err = encryptRawSecrets(enc, content.Raw)
	}
	return err
}

func decryptContentSecrets(vc *VaultCipher, tier types.SecurityTier, content *types.ItemContent) error {
	dec := secretFieldDecryptFn(vc, tier)
	var err error
	switch {
	case content.Login != nil:
		content.Login.Password, err = decryptSecretField(dec, content.Login.Password)
	case content.SecureNote != nil:
		content.SecureNote.Text, err = decryptSecretField(dec, content.SecureNote.Text)
	case content.PaymentCard != nil:
		card := content.PaymentCard
		if card.Number, err = decryptSecretField(dec, card.Number); err != nil {
			return err
		}
		if card.Expiry, err = decryptSecretField(dec, card.Expiry); err != nil {
			return err
		}
		card.CVV, err = decryptSecretField(dec, card.CVV)
	case content.Raw != nil:
		content.Raw, err = decryptRawSecrets(dec, content.Raw)
	}
	return err
}

// EncryptItem maps a plaintext item to its at-rest form: secret sub-fields
// first, then the whole serialized content under the tier's envelope key.
// Total for a valid cipher.
func (is *ItemService) EncryptItem(vc *VaultCipher, item *types.Item) (*types.ItemEncrypted, error) {
	if !item.Tier.Valid() {
		return nil, fmt.Errorf("item %s: unknown security tier %d", item.ID, item.Tier)
	}
	// work on a copy so the caller's plaintext item is left untouched
	content := item.Content.Clone()
	if err := encryptContentSecrets(vc, item.Tier, &content); err != nil {
		return nil, err
	}
	serialized, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	envelope, err := envelopeEncryptFn(vc, item.Tier)(serialized)
	if err != nil {
		return nil, err
	}
	return &types.ItemEncrypted{
		ID:         item.ID,
		VaultID:    item.VaultID,
		Type:       item.Type,
		Tier:       item.Tier,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
		TagIDs:     item.TagIDs,
		ContentEnc: envelope,
	}, nil
}

// DecryptItem is the inverse of EncryptItem. When the vault keys are expired
// it returns (nil, nil) so batch decryption skips the item instead of
// aborting. With decryptSecrets false the secret wrappers stay encrypted.
func (is *ItemService) DecryptItem(vc *VaultCipher, enc *types.ItemEncrypted, decryptSecrets bool) (*types.Item, error) {
	serialized, err := envelopeDecryptFn(vc, enc.Tier)(enc.ContentEnc)
	if err != nil {
		if errors.Is(err, types.ErrVaultKeysExpired) {
			return nil, nil
		}
		return nil, err
	}
	var content types.ItemContent
	if err := json.Unmarshal(serialized, &content); err != nil {
		return nil, err
	}
	if decryptSecrets {
		if err := decryptContentSecrets(vc, enc.Tier, &content); err != nil {
			if errors.Is(err, types.ErrVaultKeysExpired) {
				return nil, nil
			}
			return nil, err
		}
	}
	return &types.Item{
		ID:        enc.ID,
		VaultID:   enc.VaultID,
		Type:      enc.Type,
		Tier:      enc.Tier,
		CreatedAt: enc.CreatedAt,
		UpdatedAt: enc.UpdatedAt,
		TagIDs:    enc.TagIDs,
		Content:   content,
	}, nil
}

// EncryptTag encrypts the tag name under the vault's trusted key. Tag names
// are always trusted-key material regardless of any item tier.
func (is *ItemService) EncryptTag(vc *VaultCipher, tag *types.Tag) (*types.TagEncrypted, error) {
	nameEnc, err := vc.EncryptWithTrustedKey([]byte(tag.Name))
	if err != nil {
		return nil, err
	}
	return &types.TagEncrypted{
		ID:        tag.ID,
		VaultID:   tag.VaultID,
		NameEnc:   nameEnc,
		Position:  tag.Position,
		UpdatedAt: tag.UpdatedAt,
	}, nil
}

// DecryptTag returns (nil, nil) on expired keys, mirroring DecryptItem.
func (is *ItemService) DecryptTag(vc *VaultCipher, enc *types.TagEncrypted) (*types.Tag, error) {
	name, err := vc.DecryptWithTrustedKey(enc.NameEnc)
	if err != nil {
		if errors.Is(err, types.ErrVaultKeysExpired) {
			return nil, nil
		}
		return nil, err
	}
	return &types.Tag{
		ID:        enc.ID,
		VaultID:   enc.VaultID,
		Name:      string(name),
		Position:  enc.Position,
		UpdatedAt: enc.UpdatedAt,
	}, nil
}

// SaveItem encrypts and persists an item.
func (is *ItemService) SaveItem(vc *VaultCipher, item *types.Item) (*types.ItemEncrypted, error) {
	enc, err := is.EncryptItem(vc, item)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := is.itemsRepo.Save(ctx, enc.ID, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// GetItem loads a stored encrypted item by id.
func (is *ItemService) GetItem(itemID string) (*types.ItemEncrypted, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	doc, err := is.itemsRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	var enc types.ItemEncrypted
	if err := repository.MapToObject(doc, &enc); err != nil {
		return nil, err
	}
	return &enc, nil
}

// ListItems returns every stored encrypted item of a vault.
func (is *ItemService) ListItems(vaultID string) ([]types.ItemEncrypted, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	docs, err := is.itemsRepo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	items := make([]types.ItemEncrypted, 0, len(docs))
	for _, doc := range docs {
		var enc types.ItemEncrypted
		if err := repository.MapToObject(doc, &enc); err != nil {
			level.Error(global.Logger).Log("msg", "skipping unreadable item document", "err", err)
			continue
		}
		if enc.VaultID == vaultID {
			items = append(items, enc)
		}
	}
	return items, nil
}

// DecryptItems batch-decrypts a vault's items, skipping any that cannot be
// decrypted under the current keys. Items are independent; no ordering is
// guaranteed beyond store order.
func (is *ItemService) DecryptItems(vc *VaultCipher, encs []types.ItemEncrypted, decryptSecrets bool) ([]types.Item, error) {
	items := make([]types.Item, 0, len(encs))
	for i := range encs {
		item, err := is.DecryptItem(vc, &encs[i], decryptSecrets)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// DeleteItem removes an item and records a tombstone so sync peers can apply
// the deletion.
func (is *ItemService) DeleteItem(itemID string) error {
	enc, err := is.GetItem(itemID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	tombstone := types.DeletedItem{
		ID:        enc.ID,
		VaultID:   enc.VaultID,
		Type:      enc.Type,
		DeletedAt: time.Now().UTC().UnixMilli(),
	}
	if err := is.deletedRepo.Save(ctx, tombstone.ID, tombstone); err != nil {
		return err
	}
	return is.itemsRepo.Delete(ctx, itemID)
}

// ClearTombstone drops a tombstone on restore or permanent deletion.
func (is *ItemService) ClearTombstone(itemID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := is.deletedRepo.Delete(ctx, itemID)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	return err
}

// ListTombstones returns every tombstone of a vault.
func (is *ItemService) ListTombstones(vaultID string) ([]types.DeletedItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	docs, err := is.deletedRepo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	tombstones := make([]types.DeletedItem, 0, len(docs))
	for _, doc := range docs {
		var d types.DeletedItem
		if err := repository.MapToObject(doc, &d); err != nil {
			continue
		}
		if d.VaultID == vaultID {
			tombstones = append(tombstones, d)
		}
	}
	return tombstones, nil
}

// SaveTag encrypts and persists a tag.
func (is *ItemService) SaveTag(vc *VaultCipher, tag *types.Tag) (*types.TagEncrypted, error) {
	enc, err := is.EncryptTag(vc, tag)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := is.tagsRepo.Save(ctx, enc.ID, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// ListTags returns every stored encrypted tag of a vault.
func (is *ItemService) ListTags(vaultID string) ([]types.TagEncrypted, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	docs, err := is.tagsRepo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	tags := make([]types.TagEncrypted, 0, len(docs))
	for _, doc := range docs {
		var enc types.TagEncrypted
		if err := repository.MapToObject(doc, &enc); err != nil {
			continue
		}
		if enc.VaultID == vaultID {
			tags = append(tags, enc)
		}
	}
	return tags, nil
}

// DeleteTag removes a tag. Tags have no tombstones; deletions propagate via
// the item merge.
func (is *ItemService) DeleteTag(tagID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return is.tagsRepo.Delete(ctx, tagID)
}
