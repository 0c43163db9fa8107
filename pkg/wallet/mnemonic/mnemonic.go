// Package mnemonic wraps the BIP39 word lists used as send credentials.
package mnemonic

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	Entropy12Words = 128
	Entropy24Words = 256
)

var (
	ErrInvalidEntropySize = fmt.Errorf(
		"entropy size must be either %d or %d bits", Entropy12Words, Entropy24Words,
	)
	ErrInvalidMnemonic = fmt.Errorf("invalid mnemonic")
)

// Generate returns the words of a new random mnemonic.
func Generate(entropyBits int) ([]string, error) {
	if entropyBits != Entropy12Words && entropyBits != Entropy24Words {
		return nil, ErrInvalidEntropySize
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, err
	}
	sentence, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Fields(sentence), nil
}

func IsValid(words []string) bool {
	return bip39.IsMnemonicValid(strings.Join(words, " "))
}

// Seed checks the mnemonic checksum and returns its BIP39 seed.
func Seed(words []string, passphrase string) ([]byte, error) {
	sentence := strings.Join(words, " ")
	seed, err := bip39.NewSeedWithErrorChecking(sentence, passphrase)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	return seed, nil
}
