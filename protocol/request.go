package protocol

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/vaultpass/go-vaultpass-core/metrics"
	"github.com/vaultpass/go-vaultpass-core/services"
	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// ActionHandler produces the user's decision on a pending browser action. The
// protocol driver suspends at exactly this point and resumes when the
// decision arrives; Handle must honor ctx cancellation.
type ActionHandler interface {
	Handle(ctx context.Context, action *types.BrowserAction) (*types.BrowserActionResponse, error)
}

// Request is the single-action state machine: handshake, one browser-
// initiated pull request, one handled response, done.
type Request struct {
	session *session
	handler ActionHandler
}

func NewRequest(transport Transport, browserService *services.BrowserService, handler ActionHandler) *Request {
	return &Request{
		session: newSession(transport, browserService),
		handler: handler,
	}
}

func (r *Request) Run(ctx context.Context) Result {
	metrics.SessionStarted("request")
	result := r.run(ctx)
	metrics.SessionClosed("request", string(result.Status))
	return result
}

func (r *Request) run(ctx context.Context) Result {
	s := r.session
	if err := s.handshake(ctx); err != nil {
		return s.finishWithError(err)
	}

	msg, err := s.receive(ctx, types.ActionPullRequest)
	if err != nil {
		return s.finishWithError(err)
	}
	var pull types.PullRequestPayload
	if err := json.Unmarshal(msg.Payload, &pull); err != nil {
		return s.finishWithError(wrapErr(CodeInvalidPayload, "malformed pull request", err))
	}

	action, err := r.decryptAction(&pull)
	if err != nil {
		return s.finishWithError(err)
	}

	// suspend for the user decision
	response, err := r.handler.Handle(ctx, action)
	if err != nil {
		return s.finishWithError(err)
	}

	dataEnc, err := r.encryptResponse(response)
	if err != nil {
		return s.finishWithError(err)
	}
	newSessionIDEnc, err := s.encryptedNewSessionID()
	if err != nil {
		return s.finishWithError(err)
	}
	reply := types.PullRequestActionPayload{
		DataEnc:         dataEnc,
		NewSessionIDEnc: newSessionIDEnc,
	}
	if err := s.send(ctx, types.ActionPullRequestAction, reply); err != nil {
		return s.finishWithError(err)
	}

	// the completion marker ends the session; anything else is a protocol error
	msg, err = s.receive(ctx, types.ActionPullRequest)
	if err != nil {
		return s.finishWithError(err)
	}
	var completed types.PullRequestPayload
	if err := json.Unmarshal(msg.Payload, &completed); err != nil {
		return s.finishWithError(wrapErr(CodeInvalidPayload, "malformed completion", err))
	}
	if completed.Status != types.PullRequestStatusCompleted {
		return s.finishWithError(protocolErr(CodeInvalidPayload, "expected pull request completion"))
	}

	if err := s.rotate(); err != nil {
		return s.finishWithError(wrapErr(CodeInternal, "failed to rotate session id", err))
	}
	if err := s.closeWithSuccess(ctx); err != nil {
		return s.finishWithError(err)
	}
	return successResult()
}

func (r *Request) decryptAction(pull *types.PullRequestPayload) (*types.BrowserAction, error) {
	ct, err := base64.StdEncoding.DecodeString(pull.DataEnc)
	if err != nil {
		return nil, wrapErr(CodeInvalidPayload, "malformed action ciphertext", err)
	}
	pt, err := util.DecryptAESGCM(r.session.dataKey, ct)
	if err != nil {
		return nil, wrapErr(CodeSignatureInvalid, "action decryption failed", err)
	}
	var action types.BrowserAction
	if err := json.Unmarshal(pt, &action); err != nil {
		return nil, wrapErr(CodeInvalidPayload, "malformed action payload", err)
	}
	if err := validate.Struct(&action); err != nil {
		return nil, wrapErr(CodeInvalidPayload, "incomplete action payload", err)
	}
	return &action, nil
}

// encryptResponse seals the handler's answer under DataKey. A password inside
// the response is additionally encrypted under the context key of the target
// item's security tier — the item's tier, not the session default.
func (r *Request) encryptResponse(response *types.BrowserActionResponse) (string, error) {
	if response.PasswordEnc != "" && response.Status == types.BrowserActionAccept {
		tier := response.Tier
		if !tier.Valid() {
			return "", protocolErr(CodeInternal, "response with password needs a security tier")
		}
		key, err := r.session.passKey(tier)
		if err != nil {
			return "", err
		}
		ct, err := util.EncryptAESGCM(key, []byte(response.PasswordEnc))
		if err != nil {
			return "", wrapErr(CodeInternal, "failed to encrypt password", err)
		}
		response.PasswordEnc = base64.StdEncoding.EncodeToString(ct)
	}
	serialized, err := json.Marshal(response)
	if err != nil {
		return "", wrapErr(CodeInternal, "failed to encode response", err)
	}
	ct, err := util.EncryptAESGCM(r.session.dataKey, serialized)
	if err != nil {
		return "", wrapErr(CodeInternal, "failed to encrypt response", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// PendingAction pairs a decoded browser action with the channel its decision
// arrives on.
type PendingAction struct {
	Action   *types.BrowserAction
	Decision chan *types.BrowserActionResponse
}

// QueueActionHandler bridges the protocol loop and the UI: actions are posted
// to a queue and the loop blocks on the per-action decision channel. This
// keeps the one suspension point explicit instead of threading UI callbacks
// through the state machine.
type QueueActionHandler struct {
	Queue chan *PendingAction
}

func NewQueueActionHandler(depth int) *QueueActionHandler {
	return &QueueActionHandler{Queue: make(chan *PendingAction, depth)}
}

func (h *QueueActionHandler) Handle(ctx context.Context, action *types.BrowserAction) (*types.BrowserActionResponse, error) {
	pending := &PendingAction{
		Action:   action,
		Decision: make(chan *types.BrowserActionResponse, 1),
	}
	select {
	case h.Queue <- pending:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case response := <-pending.Decision:
		return response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
