package services

import (
	"encoding/base64"
	"encoding/json"

	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// ExportService builds the compressed export consumed by the browser
// extension. Tier rules are deliberate trust boundaries, not an optimization:
// Tier1 items never leave the device, Tier2 passwords are omitted, Tier3
// passwords travel re-encrypted under the transfer-specific key only.
type ExportService struct {
	itemService *ItemService
}

func NewExportService(itemService *ItemService) *ExportService {
	return &ExportService{itemService: itemService}
}

// ExtensionExport is the {logins, tags} document; both members are
// gzip+base64 compressed JSON arrays.
type ExtensionExport struct {
	Logins string `json:"logins"`
	Tags   string `json:"tags"`
}

type extensionLogin struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Username     *string            `json:"username,omitempty"`
	PasswordEnc  *string            `json:"passwordEnc"`
	URIs         []types.LoginURI   `json:"uris,omitempty"`
	SecurityTier types.SecurityTier `json:"securityTier"`
	UpdatedAt    int64              `json:"updatedAt"`
}

type extensionTag struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// BuildExtensionExport snapshots a vault for the extension. passT3Key is the
// HKDF "PassT3" context key of the current session; Tier3 passwords are
// re-encrypted under it before inclusion.
func (es *ExportService) BuildExtensionExport(vc *VaultCipher, vaultID string, passT3Key []byte) (*ExtensionExport, error) {
	encItems, err := es.itemService.ListItems(vaultID)
	if err != nil {
		return nil, err
	}
	items, err := es.itemService.DecryptItems(vc, encItems, true)
	if err != nil {
		return nil, err
	}

	logins := make([]extensionLogin, 0, len(items))
	for i := range items {
		item := items[i]
		if item.Type != types.ItemTypeLogin || item.Content.Login == nil {
			continue
		}
		if item.Tier == types.SecurityTier1 {
			continue
		}
		login := extensionLogin{
			ID:           item.ID,
			Name:         item.Content.Login.Name,
			Username:     item.Content.Login.Username,
			URIs:         item.Content.Login.URIs,
			SecurityTier: item.Tier,
			UpdatedAt:    item.UpdatedAt,
		}
		// Tier2 passwords stay on the device; the extension pulls them on
		// demand through the Request protocol.
		if item.Tier == types.SecurityTier3 && item.Content.Login.Password != nil && item.Content.Login.Password.ClearText != nil {
			ct, err := util.EncryptAESGCM(passT3Key, []byte(*item.Content.Login.Password.ClearText))
			if err != nil {
				return nil, err
			}
			encoded := base64.StdEncoding.EncodeToString(ct)
			login.PasswordEnc = &encoded
		}
		logins = append(logins, login)
	}

	encTags, err := es.itemService.ListTags(vaultID)
	if err != nil {
		return nil, err
	}
	tags := make([]extensionTag, 0, len(encTags))
	for i := range encTags {
		tag, err := es.itemService.DecryptTag(vc, &encTags[i])
		if err != nil {
			return nil, err
		}
		if tag == nil {
			continue
		}
		tags = append(tags, extensionTag{ID: tag.ID, Name: tag.Name, Position: tag.Position})
	}

	loginsJSON, err := json.Marshal(logins)
	if err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	loginsB64, err := util.GzipBase64(loginsJSON)
	if err != nil {
		return nil, err
	}
	tagsB64, err := util.GzipBase64(tagsJSON)
	if err != nil {
		return nil, err
	}
	return &ExtensionExport{Logins: loginsB64, Tags: tagsB64}, nil
}
