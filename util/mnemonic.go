package util

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// EntropyToMnemonic encodes seed entropy as a BIP39 word list. 20 bytes of
// entropy yield 15 words.
func EntropyToMnemonic(entropy []byte) ([]string, error) {
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Split(mnemonic, " "), nil
}

// MnemonicToEntropy is the inverse of EntropyToMnemonic. Fails with
// ErrInvalidMnemonic on unknown words or a bad checksum.
func MnemonicToEntropy(words []string) ([]byte, error) {
	normalized := make([]string, len(words))
	for i, w := range words {
		normalized[i] = strings.ToLower(strings.TrimSpace(w))
	}
	entropy, err := bip39.EntropyFromMnemonic(strings.Join(normalized, " "))
	if err != nil {
		return nil, types.ErrInvalidMnemonic
	}
	return entropy, nil
}
