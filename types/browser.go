package types

// ConnectedBrowser is a paired browser extension identity. NextSessionID
// rotates on every successful session close; an aborted session never rotates
// it (replay defense).
type ConnectedBrowser struct {
	PublicKeyB64   string `json:"publicKey" validate:"required"`
	ExtensionName  string `json:"extensionName"`
	BrowserName    string `json:"browserName"`
	BrowserVersion string `json:"browserVersion"`
	Identicon      string `json:"identicon"`
	NextSessionID  string `json:"nextSessionId"`
	CreatedAt      int64  `json:"createdAt"`
	LastSyncAt     int64  `json:"lastSyncAt"`
}

// BrowserRequestType enumerates the actions a browser can ask for.
type BrowserRequestType string

const (
	BrowserRequestPassword   BrowserRequestType = "passwordRequest"
	BrowserRequestAddItem    BrowserRequestType = "addItem"
	BrowserRequestUpdateItem BrowserRequestType = "updateItem"
	BrowserRequestDeleteItem BrowserRequestType = "deleteItem"
)

// BrowserRequestData is a pending browser action received as a signed push
// notification payload. It expires if not handled in time.
type BrowserRequestData struct {
	ID             string             `json:"id" validate:"required"`
	Type           BrowserRequestType `json:"type" validate:"required"`
	PublicKeyB64   string             `json:"publicKey"`
	ChannelID      string             `json:"channelId"`
	CreatedAt      int64              `json:"createdAt"`
	ExpiresAt      int64              `json:"expiresAt"`
}

// Expired reports whether the request is past its expiry at the given time
// (unix millis).
func (r *BrowserRequestData) Expired(nowMillis int64) bool {
	return r.ExpiresAt > 0 && nowMillis > r.ExpiresAt
}
