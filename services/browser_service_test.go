package services

import (
	"testing"

	"github.com/tj/assert"
	"github.com/vaultpass/go-vaultpass-core/types"
)

func testHello(publicKeyB64 string) *types.HelloResponsePayload {
	return &types.HelloResponsePayload{
		PublicKeyB64:   publicKeyB64,
		ExtensionName:  "vaultpass-ext",
		BrowserName:    "firefox",
		BrowserVersion: "128.0",
		Identicon:      "icon-a",
	}
}

func TestUpsertBrowserFirstPairing(t *testing.T) {
	f := newTestFixture(t)
	bs := NewBrowserService(f.selector)

	browser, err := bs.UpsertBrowser(testHello("pk-1"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "pk-1", browser.PublicKeyB64)
	assert.NotEmpty(t, browser.NextSessionID)
	assert.True(t, browser.CreatedAt > 0)
}

func TestUpsertBrowserKeepsSessionID(t *testing.T) {
	f := newTestFixture(t)
	bs := NewBrowserService(f.selector)

	first, err := bs.UpsertBrowser(testHello("pk-1"))
	if err != nil {
		t.Fatal(err)
	}
	// re-pairing refreshes metadata but never touches the session id
	hello := testHello("pk-1")
	hello.BrowserVersion = "129.0"
	hello.Identicon = ""
	second, err := bs.UpsertBrowser(hello)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, first.NextSessionID, second.NextSessionID)
	assert.Equal(t, "129.0", second.BrowserVersion)
	// empty identicon keeps the previous one
	assert.Equal(t, "icon-a", second.Identicon)
}

func TestCommitSessionIDRotates(t *testing.T) {
	f := newTestFixture(t)
	bs := NewBrowserService(f.selector)

	browser, err := bs.UpsertBrowser(testHello("pk-1"))
	if err != nil {
		t.Fatal(err)
	}
	old := browser.NextSessionID

	if err := bs.CommitSessionID("pk-1", "session-next"); err != nil {
		t.Fatal(err)
	}
	got, err := bs.GetBrowser("pk-1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "session-next", got.NextSessionID)
	assert.NotEqual(t, old, got.NextSessionID)
	assert.True(t, got.LastSyncAt > 0)
}

func TestCommitSessionIDUnknownBrowser(t *testing.T) {
	f := newTestFixture(t)
	bs := NewBrowserService(f.selector)
	assert.Equal(t, types.ErrNotFound, bs.CommitSessionID("pk-missing", "x"))
}

func TestListAndForgetBrowsers(t *testing.T) {
	f := newTestFixture(t)
	bs := NewBrowserService(f.selector)

	if _, err := bs.UpsertBrowser(testHello("pk-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := bs.UpsertBrowser(testHello("pk-2")); err != nil {
		t.Fatal(err)
	}
	browsers, err := bs.ListBrowsers()
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, browsers, 2)

	if err := bs.ForgetBrowser("pk-1"); err != nil {
		t.Fatal(err)
	}
	_, err = bs.GetBrowser("pk-1")
	assert.Equal(t, types.ErrNotFound, err)
}
