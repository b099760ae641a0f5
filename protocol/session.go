package protocol

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/services"
	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// HKDF purpose labels of the session key schedule.
const (
	hkdfLabelSessionKey = "SessionKey"
	hkdfLabelData       = "Data"
	hkdfLabelPassT1     = "PassT1"
	hkdfLabelPassT2     = "PassT2"
	hkdfLabelPassT3     = "PassT3"
)

const hkdfSaltSize = 16

// grace period for delivering a closeWithError before the socket drops
const closeErrorTimeout = 5 * time.Second

var validate = validator.New()

// session carries the state shared by the Connect and Request machines: the
// handshake, the key schedule and the message-id discipline. One session is
// driven by a single sequential loop; no two steps run concurrently.
type session struct {
	transport      Transport
	browserService *services.BrowserService

	lastSentID string

	hkdfSalt   []byte
	sessionKey []byte
	dataKey    []byte

	peer         *types.ConnectedBrowser
	newSessionID string
}

func newSession(transport Transport, browserService *services.BrowserService) *session {
	return &session{transport: transport, browserService: browserService}
}

// send wraps a payload in an envelope with a fresh random message id. The id
// becomes the one the next inbound message must echo.
func (s *session) send(ctx context.Context, action string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return wrapErr(CodeInternal, "failed to encode payload", err)
		}
		raw = data
	}
	msg := &types.Message{
		Scheme:        types.MessageScheme,
		Origin:        global.Conf.Device.ID,
		OriginVersion: global.Conf.Relay.AppVersionName,
		ID:            uuid.NewString(),
		Action:        action,
		Payload:       raw,
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		return wrapErr(CodeInternal, "failed to send message", err)
	}
	s.lastSentID = msg.ID
	return nil
}

// receive waits for the reply to the last sent message. A stale or reordered
// message (wrong id) aborts the session rather than being applied; a peer
// closeWithError surfaces as a remote failure.
func (s *session) receive(ctx context.Context, expectedAction string) (*types.Message, error) {
	msg, err := s.transport.Receive(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, wrapErr(CodeInternal, "failed to receive message", err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, wrapErr(CodeInvalidPayload, "malformed envelope", err)
	}
	if msg.Scheme > types.MessageScheme {
		return nil, protocolErr(CodeUpdateRequired, fmt.Sprintf("unsupported scheme %d", msg.Scheme))
	}
	if msg.Action == types.ActionCloseWithError {
		var payload types.CloseWithErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && payload.ErrorCode != 0 {
			return nil, protocolErr(payload.ErrorCode, payload.ErrorMessage)
		}
		return nil, protocolErr(CodeRemoteError, "peer closed with error")
	}
	if msg.ID != s.lastSentID {
		return nil, protocolErr(CodeMessageOutOfOrder,
			fmt.Sprintf("expected reply to %s, got %s", s.lastSentID, msg.ID))
	}
	if msg.Action != expectedAction {
		return nil, protocolErr(CodeInvalidPayload,
			fmt.Sprintf("expected action %s, got %s", expectedAction, msg.Action))
	}
	return msg, nil
}

// handshake runs the shared prefix of both machines: hello exchange, ECDH
// challenge, key schedule derivation and the rotating session id.
func (s *session) handshake(ctx context.Context) error {
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "failed to generate ephemeral key", err)
	}
	s.hkdfSalt, err = util.RandomBytes(hkdfSaltSize)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "failed to generate salt", err)
	}

	// 1. hello exchange; the peer's identity is persisted before the challenge
	hello := types.HelloPayload{
		DeviceID:   global.Conf.Device.ID,
		DeviceName: global.Conf.Device.Name,
	}
	if err := s.send(ctx, types.ActionHello, hello); err != nil {
		return err
	}
	msg, err := s.receive(ctx, types.ActionHello)
	if err != nil {
		return err
	}
	var peerHello types.HelloResponsePayload
	if err := json.Unmarshal(msg.Payload, &peerHello); err != nil {
		return wrapErr(CodeInvalidPayload, "malformed hello payload", err)
	}
	if err := validate.Struct(&peerHello); err != nil {
		return wrapErr(CodeInvalidPayload, "incomplete hello payload", err)
	}
	s.peer, err = s.browserService.UpsertBrowser(&peerHello)
	if err != nil {
		return wrapErr(CodeInternal, "failed to persist paired browser", err)
	}

	// 2. challenge: ephemeral public key + salt out, peer ephemeral key +
	// encrypted salt echo back
	challenge := types.ChallengePayload{
		PublicKeyB64: base64.StdEncoding.EncodeToString(ephemeral.PublicKey().Bytes()),
		HkdfSaltHex:  hex.EncodeToString(s.hkdfSalt),
	}
	if err := s.send(ctx, types.ActionChallenge, challenge); err != nil {
		return err
	}
	msg, err = s.receive(ctx, types.ActionChallenge)
	if err != nil {
		return err
	}
	var response types.ChallengeResponsePayload
	if err := json.Unmarshal(msg.Payload, &response); err != nil {
		return wrapErr(CodeInvalidPayload, "malformed challenge payload", err)
	}
	if err := validate.Struct(&response); err != nil {
		return wrapErr(CodeInvalidPayload, "incomplete challenge payload", err)
	}

	peerKeyBytes, err := base64.StdEncoding.DecodeString(response.PublicKeyB64)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "malformed peer public key", err)
	}
	peerKey, err := ecdh.P256().NewPublicKey(peerKeyBytes)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "invalid peer public key", err)
	}
	shared, err := ephemeral.ECDH(peerKey)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "ecdh agreement failed", err)
	}
	s.sessionKey, err = util.HkdfExpand(shared, s.hkdfSalt, hkdfLabelSessionKey)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "session key derivation failed", err)
	}
	s.dataKey, err = util.HkdfExpand(s.sessionKey, s.hkdfSalt, hkdfLabelData)
	if err != nil {
		return wrapErr(CodeHandshakeFailed, "data key derivation failed", err)
	}

	// the salt echo proves the peer derived the same SessionKey
	saltEnc, err := base64.StdEncoding.DecodeString(response.SaltEncB64)
	if err != nil {
		return wrapErr(CodeSignatureInvalid, "malformed salt echo", err)
	}
	echo, err := util.DecryptAESGCM(s.sessionKey, saltEnc)
	if err != nil {
		return wrapErr(CodeSignatureInvalid, "salt echo verification failed", err)
	}
	if !bytes.Equal(echo, s.hkdfSalt) {
		return protocolErr(CodeSignatureInvalid, "salt echo mismatch")
	}

	// 3. rotating session id, adopted only after a successful close
	s.newSessionID = uuid.NewString()
	return nil
}

// encryptedNewSessionID encrypts the pending session id under DataKey.
func (s *session) encryptedNewSessionID() (string, error) {
	enc, err := util.EncryptAESGCM(s.dataKey, []byte(s.newSessionID))
	if err != nil {
		return "", wrapErr(CodeInternal, "failed to encrypt session id", err)
	}
	return base64.StdEncoding.EncodeToString(enc), nil
}

// passKey derives the HKDF context key of a security tier.
func (s *session) passKey(tier types.SecurityTier) ([]byte, error) {
	var label string
	switch tier {
	case types.SecurityTier1:
		label = hkdfLabelPassT1
	case types.SecurityTier2:
		label = hkdfLabelPassT2
	case types.SecurityTier3:
		label = hkdfLabelPassT3
	default:
		return nil, protocolErr(CodeInternal, fmt.Sprintf("unknown security tier %d", tier))
	}
	key, err := util.HkdfExpand(s.sessionKey, s.hkdfSalt, label)
	if err != nil {
		return nil, wrapErr(CodeInternal, "context key derivation failed", err)
	}
	return key, nil
}

// rotate commits the pending session id. Called only on the success path.
func (s *session) rotate() error {
	if s.peer == nil {
		return protocolErr(CodeInternal, "no paired browser in session")
	}
	return s.browserService.CommitSessionID(s.peer.PublicKeyB64, s.newSessionID)
}

// closeWithSuccess ends the session cleanly after rotation.
func (s *session) closeWithSuccess(ctx context.Context) error {
	if err := s.send(ctx, types.ActionCloseWithSuccess, nil); err != nil {
		return err
	}
	return s.transport.Close()
}

// finishWithError converts any handler error into the peer-visible
// closeWithError, closes the socket and produces the caller-visible Result.
// External cancellation is reported as "closed by user", never as a protocol
// error code, and never rotates the stored session id.
func (s *session) finishWithError(err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		_ = s.transport.Close()
		return cancelledResult()
	}
	wsErr := asWebSocketError(err)
	level.Error(global.Logger).Log("msg", "protocol session failed", "code", wsErr.Code, "err", wsErr.Error())

	payload := types.CloseWithErrorPayload{ErrorCode: wsErr.Code, ErrorMessage: wsErr.Message}
	sendCtx, cancel := context.WithTimeout(context.Background(), closeErrorTimeout)
	defer cancel()
	_ = s.send(sendCtx, types.ActionCloseWithError, payload)
	_ = s.transport.Close()
	return failureResult(wsErr)
}
