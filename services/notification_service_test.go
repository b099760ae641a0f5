package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/jarcoal/httpmock"
	"github.com/tj/assert"
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/types"
)

type notificationFixture struct {
	*testFixture
	browserService *BrowserService
	service        *NotificationService
	signer         ed25519.PrivateKey
	publicKeyB64   string
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	global.Conf.Backend.URL = "http://localhost:9789"
	global.Conf.Device.ID = "device-1"

	f := newTestFixture(t)
	browserService := NewBrowserService(f.selector)
	ns := NewNotificationService(f.selector, browserService, f.env)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	publicKeyB64 := base64.StdEncoding.EncodeToString(pub)
	if _, err := browserService.UpsertBrowser(testHello(publicKeyB64)); err != nil {
		t.Fatal(err)
	}

	httpmock.ActivateNonDefault(ns.Client().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return &notificationFixture{
		testFixture:    f,
		browserService: browserService,
		service:        ns,
		signer:         priv,
		publicKeyB64:   publicKeyB64,
	}
}

func (nf *notificationFixture) sign(t *testing.T, request types.BrowserRequestData) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: nf.signer}, nil)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatal(err)
	}
	compact, err := sig.CompactSerialize()
	if err != nil {
		t.Fatal(err)
	}
	return compact
}

func pendingRequest(publicKeyB64 string) types.BrowserRequestData {
	now := time.Now().UTC().UnixMilli()
	return types.BrowserRequestData{
		ID:           "req-1",
		Type:         types.BrowserRequestPassword,
		PublicKeyB64: publicKeyB64,
		ChannelID:    "channel-1",
		CreatedAt:    now,
		ExpiresAt:    now + 60_000,
	}
}

func TestFetchRequestsVerified(t *testing.T) {
	nf := newNotificationFixture(t)

	jws := nf.sign(t, pendingRequest(nf.publicKeyB64))
	httpmock.RegisterResponder("GET", "http://localhost:9789/requests/device-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(fmt.Sprintf(`{"requests":[{"jws":"%s"}]}`, jws))))

	requests, err := nf.service.FetchRequests()
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
	assert.Equal(t, types.BrowserRequestPassword, requests[0].Type)
}

func TestFetchRequestsDropsForgedSignature(t *testing.T) {
	nf := newNotificationFixture(t)

	// signed by a key other than the paired browser's
	_, forger, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	forged := notificationFixture{signer: forger}
	jws := forged.sign(t, pendingRequest(nf.publicKeyB64))
	httpmock.RegisterResponder("GET", "http://localhost:9789/requests/device-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(fmt.Sprintf(`{"requests":[{"jws":"%s"}]}`, jws))))

	requests, err := nf.service.FetchRequests()
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, requests, 0)
}

func TestFetchRequestsDropsUnpairedSigner(t *testing.T) {
	nf := newNotificationFixture(t)

	request := pendingRequest(nf.publicKeyB64)
	request.PublicKeyB64 = "someone-else"
	jws := nf.sign(t, request)
	httpmock.RegisterResponder("GET", "http://localhost:9789/requests/device-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(fmt.Sprintf(`{"requests":[{"jws":"%s"}]}`, jws))))

	requests, err := nf.service.FetchRequests()
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, requests, 0)
}

func TestFetchRequestsDropsExpired(t *testing.T) {
	nf := newNotificationFixture(t)

	request := pendingRequest(nf.publicKeyB64)
	request.ExpiresAt = time.Now().UTC().UnixMilli() - 1000
	jws := nf.sign(t, request)
	httpmock.RegisterResponder("GET", "http://localhost:9789/requests/device-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(fmt.Sprintf(`{"requests":[{"jws":"%s"}]}`, jws))))

	requests, err := nf.service.FetchRequests()
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, requests, 0)
}

func TestDeleteRequestAcknowledges(t *testing.T) {
	nf := newNotificationFixture(t)

	jws := nf.sign(t, pendingRequest(nf.publicKeyB64))
	httpmock.RegisterResponder("GET", "http://localhost:9789/requests/device-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(fmt.Sprintf(`{"requests":[{"jws":"%s"}]}`, jws))))
	httpmock.RegisterResponder("DELETE", "http://localhost:9789/requests/device-1/req-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(`{}`)))

	if _, err := nf.service.FetchRequests(); err != nil {
		t.Fatal(err)
	}
	assert.NoError(t, nf.service.DeleteRequest("req-1"))
	// a second delete hits the backend again but the local record is gone
	assert.NoError(t, nf.service.DeleteRequest("req-1"))
}

func TestPurgeExpiredRequests(t *testing.T) {
	nf := newNotificationFixture(t)

	jws := nf.sign(t, pendingRequest(nf.publicKeyB64))
	httpmock.RegisterResponder("GET", "http://localhost:9789/requests/device-1",
		httpmock.NewJsonResponderOrPanic(200, json.RawMessage(fmt.Sprintf(`{"requests":[{"jws":"%s"}]}`, jws))))
	if _, err := nf.service.FetchRequests(); err != nil {
		t.Fatal(err)
	}

	// not yet expired: purge keeps it
	assert.NoError(t, nf.service.PurgeExpired())
	docs, err := nf.service.requestsRepo.GetAll(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, docs, 1)
}
