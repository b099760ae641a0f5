package services

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// signedRequestEnvelope is the backend's wire format: a JWS compact
// serialization whose payload is a BrowserRequestData document, signed by the
// requesting browser's persistent key.
type signedRequestEnvelope struct {
	Jws string `json:"jws"`
}

type requestListResponse struct {
	Requests []signedRequestEnvelope `json:"requests"`
}

// NotificationService fetches pending browser requests from the backend,
// verifies their signatures against the paired browser's key and tracks them
// locally until they are handled or expire.
type NotificationService struct {
	client         *resty.Client
	browserService *BrowserService
	requestsRepo   repository.Repository
}

func NewNotificationService(dbSelector repository.DBSelector, browserService *BrowserService, env *types.Environment) *NotificationService {
	requestsRepo, err := dbSelector.ChooseDB(repository.BrowserRequests)
	if err != nil {
		panic(err)
	}
	client := resty.New().SetBaseURL(global.Conf.Backend.URL).SetTimeout(time.Second * 10)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	ns := &NotificationService{
		client:         client,
		browserService: browserService,
		requestsRepo:   requestsRepo,
	}
	// purge expired requests every few minutes
	if env != nil && env.Cron != nil {
		env.Cron.AddFunc("@every 5m", func() {
			if err := ns.PurgeExpired(); err != nil {
				level.Error(global.Logger).Log("msg", "failed to purge expired browser requests", "err", err)
			}
		})
	}
	return ns
}

// Client exposes the underlying resty client for test mocking.
func (ns *NotificationService) Client() *resty.Client {
	return ns.client
}

// verifyEnvelope checks the JWS signature against the paired browser's
// Ed25519 key and returns the embedded request. An envelope signed by an
// unpaired key is rejected outright.
func (ns *NotificationService) verifyEnvelope(envelope *signedRequestEnvelope) (*types.BrowserRequestData, error) {
	sig, err := jose.ParseSigned(envelope.Jws)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrSignatureInvalid, err.Error())
	}
	// the payload names the signer; verification below keeps it honest
	var unverified types.BrowserRequestData
	if err := json.Unmarshal(sig.UnsafePayloadWithoutVerification(), &unverified); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrSignatureInvalid, err.Error())
	}
	browser, err := ns.browserService.GetBrowser(unverified.PublicKeyB64)
	if err != nil {
		return nil, types.ErrSignatureInvalid
	}
	keyBytes, err := base64.StdEncoding.DecodeString(browser.PublicKeyB64)
	if err != nil || len(keyBytes) != ed25519.PublicKeySize {
		return nil, types.ErrSignatureInvalid
	}
	payload, err := sig.Verify(ed25519.PublicKey(keyBytes))
	if err != nil {
		return nil, types.ErrSignatureInvalid
	}
	var request types.BrowserRequestData
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrSignatureInvalid, err.Error())
	}
	return &request, nil
}

// FetchRequests pulls pending requests for this device, drops envelopes that
// fail verification or are already expired, and stores the rest.
func (ns *NotificationService) FetchRequests() ([]types.BrowserRequestData, error) {
	var list requestListResponse
	resp, err := ns.client.R().
		SetResult(&list).
		Get(fmt.Sprintf("/requests/%s", global.Conf.Device.ID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("request fetch failed: %s", resp.Status())
	}

	now := time.Now().UTC().UnixMilli()
	requests := make([]types.BrowserRequestData, 0, len(list.Requests))
	for i := range list.Requests {
		request, err := ns.verifyEnvelope(&list.Requests[i])
		if err != nil {
			level.Error(global.Logger).Log("msg", "dropping unverifiable browser request", "err", err)
			continue
		}
		if request.Expired(now) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		if err := ns.requestsRepo.Save(ctx, request.ID, request); err != nil {
			cancel()
			return nil, err
		}
		cancel()
		requests = append(requests, *request)
	}
	return requests, nil
}

// DeleteRequest acknowledges a handled request on the backend and drops it
// locally.
func (ns *NotificationService) DeleteRequest(requestID string) error {
	resp, err := ns.client.R().
		Delete(fmt.Sprintf("/requests/%s/%s", global.Conf.Device.ID, requestID))
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return fmt.Errorf("request delete failed: %s", resp.Status())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err = ns.requestsRepo.Delete(ctx, requestID)
	if err == types.ErrNotFound {
		return nil
	}
	return err
}

// PurgeExpired drops every locally tracked request past its expiry.
func (ns *NotificationService) PurgeExpired() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	docs, err := ns.requestsRepo.GetAll(ctx, 0, 0)
	if err != nil {
		return err
	}
	now := time.Now().UTC().UnixMilli()
	for _, doc := range docs {
		var request types.BrowserRequestData
		if err := repository.MapToObject(doc, &request); err != nil {
			continue
		}
		if request.Expired(now) {
			if err := ns.requestsRepo.Delete(ctx, request.ID); err != nil && err != types.ErrNotFound {
				return err
			}
		}
	}
	return nil
}
