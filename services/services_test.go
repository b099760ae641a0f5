package services

import (
	"testing"

	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
)

// cheap argon2 parameters so key derivation tests stay fast
func testKdfSpec() types.KdfSpec {
	return types.KdfSpec{
		Type:        types.KdfTypeArgon2id,
		Iterations:  1,
		MemoryKB:    8 * 1024,
		Parallelism: 1,
		HashLength:  32,
	}
}

type testFixture struct {
	selector    *repository.StoreSelector
	deviceKey   *SoftwareDeviceKey
	env         *types.Environment
	keyService  *KeyService
	itemService *ItemService
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	key, err := util.RandomBytes(util.KeySize)
	if err != nil {
		t.Fatal(err)
	}
	deviceKey := NewSoftwareDeviceKey(key)
	env := types.NewEnvironment(deviceKey)
	selector := repository.NewStoreSelectorWithDefaults()
	return &testFixture{
		selector:    selector,
		deviceKey:   deviceKey,
		env:         env,
		keyService:  NewKeyService(selector, env),
		itemService: NewItemService(selector),
	}
}

// newTestCipher derives and persists vault keys for vaultID and returns the
// cipher over them.
func (f *testFixture) newTestCipher(t *testing.T, vaultID string) *VaultCipher {
	t.Helper()
	seed, err := f.keyService.GenerateSeed(nil)
	if err != nil {
		t.Fatal(err)
	}
	master, err := f.keyService.DeriveMasterKey("correct horse battery staple", seed, testKdfSpec())
	if err != nil {
		t.Fatal(err)
	}
	keys, err := f.keyService.DeriveVaultKeys(master.HashHex, vaultID)
	if err != nil {
		t.Fatal(err)
	}
	return NewVaultCipher(keys, f.deviceKey)
}

func testLoginItem(id, vaultID string, tier types.SecurityTier, password string) *types.Item {
	return &types.Item{
		ID:      id,
		VaultID: vaultID,
		Type:    types.ItemTypeLogin,
		Tier:    tier,
		Content: types.ItemContent{
			Login: &types.LoginContent{
				Name:     "example.com",
				Username: strPtr("alice"),
				Password: types.ClearTextField(password),
				URIs:     []types.LoginURI{{Text: "https://example.com"}},
			},
		},
	}
}

func strPtr(s string) *string { return &s }
