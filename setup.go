package main

import (
	"github.com/vaultpass/go-vaultpass-core/global"
	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/services"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// Configure store repositories and create the store selector
func ConfigStoreSelector() repository.DBSelector {
	selector := repository.NewStoreSelector()
	selector.AddDB(repository.NewMemoryRepository(repository.Vaults))
	selector.AddDB(repository.NewMemoryRepository(repository.VaultKeys))
	selector.AddDB(repository.NewMemoryRepository(repository.Items))
	selector.AddDB(repository.NewMemoryRepository(repository.Tags))
	selector.AddDB(repository.NewMemoryRepository(repository.DeletedItems))
	selector.AddDB(repository.NewMemoryRepository(repository.ConnectedBrowsers))
	selector.AddDB(repository.NewMemoryRepository(repository.BrowserRequests))
	selector.AddDB(repository.NewMemoryRepository(repository.SyncMeta))
	return selector
}

// Load (or create on first run) the software device key backing vault key wrapping
func ConfigDeviceKey(conf *global.Config) types.DeviceKeyProvider {
	deviceKey, err := services.LoadOrCreateDeviceKey(conf.Device.DeviceKeyPath)
	if err != nil {
		global.Logger.Log("error", "Failed to load device key", "error", err.Error())
		panic(err)
	}
	return deviceKey
}

// Wire background services onto the environment cron (expired request purging)
func ConfigBackgroundServices(dbSelector repository.DBSelector, env *types.Environment) {
	browserService := services.NewBrowserService(dbSelector)
	services.NewNotificationService(dbSelector, browserService, env)
	env.Cron.Start()
}
