package repository

import (
	"context"
	"sync"

	"github.com/vaultpass/go-vaultpass-core/types"
)

// MemoryRepository is the in-process Repository used by tests and the CLI.
// Mobile builds plug the platform row store in behind the same interface.
type MemoryRepository struct {
	mu     sync.RWMutex
	dbName string
	docs   map[string]interface{}
	order  []string
}

func NewMemoryRepository(dbName string) *MemoryRepository {
	return &MemoryRepository{
		dbName: dbName,
		docs:   make(map[string]interface{}),
	}
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return doc, nil
}

func (m *MemoryRepository) GetAll(ctx context.Context, limit int, skip int) ([]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if skip >= len(m.order) {
		return []interface{}{}, nil
	}
	end := len(m.order)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	docs := make([]interface{}, 0, end-skip)
	for _, id := range m.order[skip:end] {
		docs = append(docs, m.docs[id])
	}
	return docs, nil
}

func (m *MemoryRepository) Save(ctx context.Context, docID string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[docID]; !exists {
		m.order = append(m.order, docID)
	}
	m.docs[docID] = data
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[id]; !exists {
		return types.ErrNotFound
	}
	delete(m.docs, id)
	for i, docID := range m.order {
		if docID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryRepository) GetDBName() string {
	return m.dbName
}

// NewStoreSelectorWithDefaults wires a memory-backed store for every store
// name this repo uses.
func NewStoreSelectorWithDefaults() *StoreSelector {
	selector := NewStoreSelector()
	for _, name := range []string{Vaults, VaultKeys, Items, Tags, DeletedItems, ConnectedBrowsers, BrowserRequests, SyncMeta} {
		selector.AddDB(NewMemoryRepository(name))
	}
	return selector
}
