package types

import "encoding/json"

// WebSocket envelope scheme understood by this build.
const MessageScheme = 1

// Envelope actions.
const (
	ActionHello             = "hello"
	ActionChallenge         = "challenge"
	ActionInitTransfer      = "initTransfer"
	ActionTransferChunk     = "transferChunk"
	ActionCloseWithSuccess  = "closeWithSuccess"
	ActionCloseWithError    = "closeWithError"
	ActionPullRequest       = "pullRequest"
	ActionPullRequestAction = "pullRequestAction"
)

// Message is the WebSocket envelope exchanged with the browser extension.
// Every outgoing message carries a fresh random id; the next inbound message
// must echo that id or the session aborts.
type Message struct {
	Scheme        int             `json:"scheme" validate:"required"`
	Origin        string          `json:"origin"`
	OriginVersion string          `json:"originVersion"`
	ID            string          `json:"id" validate:"required"`
	Action        string          `json:"action" validate:"required"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload announces device identity and capabilities.
type HelloPayload struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	Capability string `json:"capability,omitempty"`
}

// HelloResponsePayload is the peer's identity, persisted as ConnectedBrowser.
type HelloResponsePayload struct {
	BrowserName    string `json:"browserName"`
	BrowserVersion string `json:"browserVersion"`
	ExtensionName  string `json:"extensionName"`
	PublicKeyB64   string `json:"publicKey" validate:"required"`
	Identicon      string `json:"identicon,omitempty"`
}

// ChallengePayload carries our ephemeral EC public key and the HKDF salt.
type ChallengePayload struct {
	PublicKeyB64 string `json:"publicKey"`
	HkdfSaltHex  string `json:"hkdfSalt"`
}

// ChallengeResponsePayload carries the peer's ephemeral EC public key and the
// salt echoed back encrypted under the derived SessionKey.
type ChallengeResponsePayload struct {
	PublicKeyB64 string `json:"publicKey" validate:"required"`
	SaltEncB64   string `json:"hkdfSaltEnc" validate:"required"`
}

// InitTransferPayload announces the chunked vault transfer.
type InitTransferPayload struct {
	TotalChunks     int    `json:"totalChunks"`
	TotalSize       int64  `json:"totalSize"`
	SHA256Hex       string `json:"sha256"`
	FcmTokenEnc     string `json:"fcmTokenEnc,omitempty"`
	NewSessionIDEnc string `json:"newSessionIdEnc"`
}

// TransferChunkPayload carries one base64 slice of the export ciphertext.
type TransferChunkPayload struct {
	ChunkIndex int    `json:"chunkIndex"`
	ChunkSize  int    `json:"chunkSize"`
	ChunkData  string `json:"chunkData"`
}

// TransferChunkConfirmPayload acknowledges a chunk and requests the next one.
type TransferChunkConfirmPayload struct {
	ChunkIndex int `json:"chunkIndex"`
}

// CloseWithErrorPayload terminates a session with a coded failure.
type CloseWithErrorPayload struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Pull request statuses.
const (
	PullRequestStatusPending   = "pending"
	PullRequestStatusCompleted = "completed"
)

// PullRequestPayload carries an encrypted browser action, or the completion
// marker that ends the Request session.
type PullRequestPayload struct {
	Status  string `json:"status"`
	DataEnc string `json:"dataEnc,omitempty"`
}

// PullRequestActionPayload is the app's encrypted response to a browser action.
type PullRequestActionPayload struct {
	DataEnc         string `json:"dataEnc"`
	NewSessionIDEnc string `json:"newSessionIdEnc,omitempty"`
}

// BrowserAction is the decrypted single-action payload of a Request session.
type BrowserAction struct {
	Type   BrowserRequestType `json:"type" validate:"required"`
	ItemID string             `json:"itemId,omitempty"`
	URL    string             `json:"url,omitempty"`
	Item   *Item              `json:"item,omitempty"`
}

// BrowserActionStatus is the user's decision on a pending action.
type BrowserActionStatus string

const (
	BrowserActionAccept BrowserActionStatus = "accept"
	BrowserActionCancel BrowserActionStatus = "cancel"
)

// BrowserActionResponse is returned to the extension. PasswordEnc is encrypted
// under the HKDF context key matching the target item's security tier.
type BrowserActionResponse struct {
	Status      BrowserActionStatus `json:"status"`
	ItemID      string              `json:"itemId,omitempty"`
	Tier        SecurityTier        `json:"securityTier,omitempty"`
	PasswordEnc string              `json:"passwordEnc,omitempty"`
	Item        *Item               `json:"item,omitempty"`
}
