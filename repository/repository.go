package repository

import (
	"context"

	"github.com/vaultpass/go-vaultpass-core/types"
)

// Store names served by the DBSelector.
const (
	Vaults            = "vaults"
	VaultKeys         = "vault_keys"
	Items             = "items"
	Tags              = "tags"
	DeletedItems      = "deleted_items"
	ConnectedBrowsers = "connected_browsers"
	BrowserRequests   = "browser_requests"
	SyncMeta          = "sync_meta"
)

// Repository is the local persistence contract. The storage engine itself is
// an external collaborator; everything in this repo goes through this surface.
type Repository interface {
	GetByID(ctx context.Context, id string) (interface{}, error)
	GetAll(ctx context.Context, limit int, skip int) ([]interface{}, error)
	Save(ctx context.Context, docID string, data interface{}) error
	Delete(ctx context.Context, id string) error
	GetDBName() string
}

// DBSelector routes services to the store they need by name.
type DBSelector interface {
	ChooseDB(dbName string) (Repository, error)
}

type StoreSelector struct {
	dbs []Repository
}

func NewStoreSelector() *StoreSelector {
	return &StoreSelector{}
}

// adds a database to the database selector
func (s *StoreSelector) AddDB(db Repository) {
	s.dbs = append(s.dbs, db)
}

// returns the required database
func (s *StoreSelector) ChooseDB(dbName string) (Repository, error) {
	if len(s.dbs) == 0 {
		return nil, types.ErrNotFound
	}
	for i, r := range s.dbs {
		if r.GetDBName() == dbName {
			return s.dbs[i], nil
		}
	}
	return nil, types.ErrNotFound
}
