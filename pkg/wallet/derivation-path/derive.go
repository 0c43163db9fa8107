package path

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	bip44Purpose = 44
)

// DefaultDerivationPath returns the BIP44 path of the first external key of
// the first account for the given network, ie. m/44'/<coin_type>'/0'/0/0.
func DefaultDerivationPath(network *chaincfg.Params) DerivationPath {
	return DerivationPath{
		hdkeychain.HardenedKeyStart + bip44Purpose,
		hdkeychain.HardenedKeyStart + network.HDCoinType,
		hdkeychain.HardenedKeyStart,
		0,
		0,
	}
}

// DeriveKey derives the private key at the given path from the master key
// generated with the given seed.
func DeriveKey(
	seed []byte, network *chaincfg.Params, path DerivationPath,
) (*btcec.PrivateKey, error) {
	if len(seed) <= 0 {
		return nil, ErrMissingSeed
	}
	if network == nil {
		return nil, ErrMissingNetwork
	}
	if len(path) <= 0 {
		return nil, ErrMissingDerivationPath
	}

	hdNode, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, err
	}
	for _, step := range path {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, err
		}
	}

	return hdNode.ECPrivKey()
}
