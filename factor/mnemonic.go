package factor

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// KeyToMnemonic encodes a raw factor key as a human-transcribable 24-word
// sequence. The encoding is deterministic and invertible via MnemonicToKey.
func KeyToMnemonic(key interfaces.FactorKeyHex) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrValidation, err)
	}
	entropy, err := key.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrValidation, err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("could not encode factor key as mnemonic: %w", err)
	}
	return mnemonic, nil
}

// MnemonicToKey recovers the raw factor key from its word encoding. Invalid
// mnemonics fail the conversion.
func MnemonicToKey(mnemonic string) (interfaces.FactorKeyHex, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return "", fmt.Errorf("%w: empty mnemonic", interfaces.ErrValidation)
	}

	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return "", fmt.Errorf("%w: invalid mnemonic: %v", interfaces.ErrValidation, err)
	}
	return interfaces.FactorKeyHex(hex.EncodeToString(entropy)), nil
}
