package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// BrowserService owns the ConnectedBrowser records. The stored record is the
// only cross-session shared resource; every mutation goes through a single
// read-modify-write section so a concurrently rotated nextSessionId is never
// lost.
type BrowserService struct {
	browsersRepo repository.Repository
	mu           sync.Mutex
}

func NewBrowserService(dbSelector repository.DBSelector) *BrowserService {
	browsersRepo, err := dbSelector.ChooseDB(repository.ConnectedBrowsers)
	if err != nil {
		panic(err)
	}
	return &BrowserService{browsersRepo: browsersRepo}
}

// GetBrowser loads a paired browser by its persistent public key.
func (bs *BrowserService) GetBrowser(publicKeyB64 string) (*types.ConnectedBrowser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	doc, err := bs.browsersRepo.GetByID(ctx, publicKeyB64)
	if err != nil {
		return nil, err
	}
	var browser types.ConnectedBrowser
	if err := repository.MapToObject(doc, &browser); err != nil {
		return nil, err
	}
	return &browser, nil
}

// UpsertBrowser persists or refreshes a paired browser from a handshake
// hello. A first-time pairing gets its initial session id here.
func (bs *BrowserService) UpsertBrowser(hello *types.HelloResponsePayload) (*types.ConnectedBrowser, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	now := time.Now().UTC().UnixMilli()
	browser, err := bs.GetBrowser(hello.PublicKeyB64)
	if err == types.ErrNotFound {
		browser = &types.ConnectedBrowser{
			PublicKeyB64:  hello.PublicKeyB64,
			NextSessionID: uuid.NewString(),
			CreatedAt:     now,
		}
	} else if err != nil {
		return nil, err
	}

	browser.ExtensionName = hello.ExtensionName
	browser.BrowserName = hello.BrowserName
	browser.BrowserVersion = hello.BrowserVersion
	if hello.Identicon != "" {
		browser.Identicon = hello.Identicon
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := bs.browsersRepo.Save(ctx, browser.PublicKeyB64, browser); err != nil {
		return nil, err
	}
	return browser, nil
}

// CommitSessionID rotates the stored session id after a successful session
// close. Aborted sessions never reach this point, so a replayed session id
// stays invalid.
func (bs *BrowserService) CommitSessionID(publicKeyB64 string, newSessionID string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	browser, err := bs.GetBrowser(publicKeyB64)
	if err != nil {
		return err
	}
	browser.NextSessionID = newSessionID
	browser.LastSyncAt = time.Now().UTC().UnixMilli()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return bs.browsersRepo.Save(ctx, browser.PublicKeyB64, browser)
}

// ListBrowsers returns every paired browser.
func (bs *BrowserService) ListBrowsers() ([]types.ConnectedBrowser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	docs, err := bs.browsersRepo.GetAll(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	browsers := make([]types.ConnectedBrowser, 0, len(docs))
	for _, doc := range docs {
		var browser types.ConnectedBrowser
		if err := repository.MapToObject(doc, &browser); err != nil {
			continue
		}
		browsers = append(browsers, browser)
	}
	return browsers, nil
}

// ForgetBrowser unpairs a browser.
func (bs *BrowserService) ForgetBrowser(publicKeyB64 string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return bs.browsersRepo.Delete(ctx, publicKeyB64)
}
