package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vaultpass/go-vaultpass-core/repository"
	"github.com/vaultpass/go-vaultpass-core/types"
	"github.com/vaultpass/go-vaultpass-core/util"
	"golang.org/x/crypto/argon2"
)

// KeyService derives the vault key hierarchy: seed -> master key -> per-vault
// {trusted, secret, external} keys, and persists the wrapped triples.
type KeyService struct {
	vaultKeysRepo repository.Repository
	deviceKey     types.DeviceKeyProvider
}

func NewKeyService(dbSelector repository.DBSelector, env *types.Environment) *KeyService {
	vaultKeysRepo, err := dbSelector.ChooseDB(repository.VaultKeys)
	if err != nil {
		panic(err)
	}
	return &KeyService{vaultKeysRepo: vaultKeysRepo, deviceKey: env.DeviceKey}
}

// DeviceKey exposes the provider used to wrap vault keys.
func (ks *KeyService) DeviceKey() types.DeviceKeyProvider {
	return ks.deviceKey
}

// GenerateSeed creates a new seed. Deterministic when entropy is supplied;
// otherwise 20 bytes are drawn from the secure random source.
func (ks *KeyService) GenerateSeed(entropy []byte) (*types.Seed, error) {
	if entropy == nil {
		var err error
		entropy, err = util.RandomBytes(types.SeedEntropySize)
		if err != nil {
			return nil, err
		}
	}
	if len(entropy) != types.SeedEntropySize {
		return nil, fmt.Errorf("seed entropy must be %d bytes", types.SeedEntropySize)
	}
	words, err := util.EntropyToMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return seedFromEntropy(entropy, words), nil
}

// RestoreSeed rebuilds a seed from its mnemonic word list.
func (ks *KeyService) RestoreSeed(words []string) (*types.Seed, error) {
	entropy, err := util.MnemonicToEntropy(words)
	if err != nil {
		return nil, err
	}
	if len(entropy) != types.SeedEntropySize {
		return nil, types.ErrInvalidMnemonic
	}
	return seedFromEntropy(entropy, words), nil
}

// Salt is derived from the entropy so the mnemonic alone restores the full seed.
func seedFromEntropy(entropy []byte, words []string) *types.Seed {
	sum := sha256.Sum256(entropy)
	return &types.Seed{
		SeedHex: hex.EncodeToString(entropy),
		SaltHex: hex.EncodeToString(sum[:types.SeedSaltSize]),
		Words:   words,
	}
}

// DeriveMasterKey stretches the password with Argon2id over the seed salt and
// binds the result to the seed material. Deterministic for fixed inputs so the
// same password always reproduces the same vault keys.
func (ks *KeyService) DeriveMasterKey(password string, seed *types.Seed, spec types.KdfSpec) (*types.MasterKey, error) {
	if spec.Type != types.KdfTypeArgon2id {
		return nil, types.ErrInvalidKdfSpec
	}
	salt, err := hex.DecodeString(seed.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("malformed seed salt: %w", err)
	}
	seedBytes, err := hex.DecodeString(seed.SeedHex)
	if err != nil {
		return nil, fmt.Errorf("malformed seed: %w", err)
	}
	hashLen := spec.HashLength
	if hashLen == 0 {
		hashLen = util.KeySize
	}
	stretched := argon2.IDKey([]byte(password), salt, spec.Iterations, spec.MemoryKB, spec.Parallelism, hashLen)
	master := util.HmacSha256(stretched, hex.EncodeToString(seedBytes))
	return &types.MasterKey{HashHex: hex.EncodeToString(master)}, nil
}

// DeriveVaultKeys derives the {trusted, secret, external} triple for a vault,
// wraps each under the device key and persists the result.
func (ks *KeyService) DeriveVaultKeys(masterKeyHex string, vaultID string) (*types.VaultKeys, error) {
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("malformed master key: %w", err)
	}

	trusted := util.HmacSha256(master, vaultID+types.VaultKeyContextTrusted)
	secret := util.HmacSha256(master, vaultID+types.VaultKeyContextSecret)
	external := util.HmacSha256(master, vaultID+types.VaultKeyContextExternal)

	trustedEnc, err := ks.deviceKey.Wrap(trusted)
	if err != nil {
		return nil, err
	}
	secretEnc, err := ks.deviceKey.Wrap(secret)
	if err != nil {
		return nil, err
	}
	externalEnc, err := ks.deviceKey.Wrap(external)
	if err != nil {
		return nil, err
	}

	keys := &types.VaultKeys{
		VaultID:        vaultID,
		TrustedKeyEnc:  trustedEnc,
		SecretKeyEnc:   secretEnc,
		ExternalKeyEnc: externalEnc,
		CreatedAt:      time.Now().UTC().UnixMilli(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := ks.vaultKeysRepo.Save(ctx, vaultID, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeriveVaultHashes runs the vault key derivation over the seed instead of the
// master key. The hashes prove seed possession without revealing vault keys.
func (ks *KeyService) DeriveVaultHashes(seedHex string, vaultID string) (*types.VaultHashes, error) {
	seedBytes, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("malformed seed: %w", err)
	}
	return &types.VaultHashes{
		VaultID:     vaultID,
		TrustedHex:  hex.EncodeToString(util.HmacSha256(seedBytes, vaultID+types.VaultKeyContextTrusted)),
		SecretHex:   hex.EncodeToString(util.HmacSha256(seedBytes, vaultID+types.VaultKeyContextSecret)),
		ExternalHex: hex.EncodeToString(util.HmacSha256(seedBytes, vaultID+types.VaultKeyContextExternal)),
	}, nil
}

// GetVaultKeys loads the stored wrapped triple for a vault.
func (ks *KeyService) GetVaultKeys(vaultID string) (*types.VaultKeys, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	doc, err := ks.vaultKeysRepo.GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	var keys types.VaultKeys
	if err := repository.MapToObject(doc, &keys); err != nil {
		return nil, err
	}
	return &keys, nil
}

// DeleteVaultKeys drops the stored triple, expiring every cipher built on it.
func (ks *KeyService) DeleteVaultKeys(vaultID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return ks.vaultKeysRepo.Delete(ctx, vaultID)
}
