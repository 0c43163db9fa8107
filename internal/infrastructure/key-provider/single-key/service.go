package singlekey_provider

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/pkg/wallet"
	path "github.com/vulpemventures/dinghy/pkg/wallet/derivation-path"
	"github.com/vulpemventures/dinghy/pkg/wallet/mnemonic"
)

const (
	sighashLen = 32
)

var (
	ErrMissingNetwork         = fmt.Errorf("missing network")
	ErrInvalidCredential      = fmt.Errorf("credential is neither a valid WIF nor a valid mnemonic")
	ErrCredentialWrongNetwork = fmt.Errorf("credential is not for the configured network")
	ErrInvalidPayload         = fmt.Errorf("payload to sign must be a 32-byte digest")
)

type ServiceArgs struct {
	Network *chaincfg.Params
	// DerivationPath is used only for mnemonic credentials, defaults to
	// m/44'/<coin_type>'/0'/0/0.
	DerivationPath string
}

func (a ServiceArgs) validate() error {
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.DerivationPath != "" {
		if _, err := path.ParseDerivationPath(a.DerivationPath); err != nil {
			return fmt.Errorf("invalid derivation path: %s", err)
		}
	}
	return nil
}

type service struct {
	network        *chaincfg.Params
	derivationPath path.DerivationPath
}

// NewService returns a key provider handling single-sig legacy P2PKH keys
// encoded as WIF or derived from a BIP39 mnemonic.
func NewService(args ServiceArgs) (ports.KeyProvider, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	derivationPath := path.DefaultDerivationPath(args.Network)
	if args.DerivationPath != "" {
		derivationPath, _ = path.ParseDerivationPath(args.DerivationPath)
	}
	return &service{args.Network, derivationPath}, nil
}

func (s *service) IsValidAddress(address string) bool {
	decoded, err := btcutil.DecodeAddress(address, s.network)
	if err != nil {
		return false
	}
	return decoded.IsForNet(s.network)
}

func (s *service) DeriveAddress(credential domain.Credential) (string, error) {
	pubkey, err := s.DerivePublicKey(credential)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubkey), s.network)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (s *service) DerivePublicKey(credential domain.Credential) ([]byte, error) {
	key, compressed, err := s.privateKey(credential)
	if err != nil {
		return nil, err
	}
	if !compressed {
		return key.PubKey().SerializeUncompressed(), nil
	}
	return key.PubKey().SerializeCompressed(), nil
}

func (s *service) Sign(
	payload []byte, credential domain.Credential,
) ([]byte, error) {
	if len(payload) != sighashLen {
		return nil, ErrInvalidPayload
	}
	key, _, err := s.privateKey(credential)
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(key, payload).Serialize(), nil
}

func (s *service) SignMessage(
	message string, credential domain.Credential,
) (string, error) {
	key, compressed, err := s.privateKey(credential)
	if err != nil {
		return "", err
	}
	return wallet.SignMessage(key, compressed, message)
}

func (s *service) VerifyMessage(
	address, signature, message string,
) (bool, error) {
	return wallet.VerifyMessage(address, signature, message, s.network)
}

// privateKey returns the key of the given credential and whether its pubkey
// is serialized in compressed form.
func (s *service) privateKey(
	credential domain.Credential,
) (*btcec.PrivateKey, bool, error) {
	if credential.IsEmpty() {
		return nil, false, domain.ErrMissingCredential
	}

	secret, passphrase := credential.Reveal()
	if words := strings.Fields(secret); len(words) > 1 {
		seed, err := mnemonic.Seed(words, passphrase)
		if err != nil {
			return nil, false, ErrInvalidCredential
		}
		key, err := path.DeriveKey(seed, s.network, s.derivationPath)
		if err != nil {
			return nil, false, err
		}
		return key, true, nil
	}

	// Decoding errors are not wrapped, they may quote the secret.
	wif, err := btcutil.DecodeWIF(secret)
	if err != nil {
		return nil, false, ErrInvalidCredential
	}
	if !wif.IsForNet(s.network) {
		return nil, false, ErrCredentialWrongNetwork
	}
	return wif.PrivKey, wif.CompressPubKey, nil
}
