package wallet

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const messageMagic = "Bitcoin Signed Message:\n"

var (
	ErrMissingMessage            = fmt.Errorf("missing message")
	ErrMessageAddressNotP2PKH    = fmt.Errorf("message signatures can be verified only against P2PKH addresses")
	ErrMalformedMessageSignature = fmt.Errorf("malformed message signature")
)

// MessageHash returns the digest committed to by a signed message: the
// double sha256 of the magic prefix and the message, each serialized as a
// var string.
func MessageHash(message string) []byte {
	buf := new(bytes.Buffer)
	// Writes to a bytes.Buffer never fail.
	_ = wire.WriteVarString(buf, 0, messageMagic)
	_ = wire.WriteVarString(buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

// SignMessage returns the base64 encoded compact signature of the given
// message. The recovery flag records whether the signing pubkey is
// serialized compressed, so that verifiers derive the same address.
func SignMessage(
	key *btcec.PrivateKey, compressed bool, message string,
) (string, error) {
	if message == "" {
		return "", ErrMissingMessage
	}
	sig, err := ecdsa.SignCompact(key, MessageHash(message), compressed)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyMessage returns whether the signature of the message has been made
// with the key controlling the given P2PKH address.
// A well-formed signature made by any other key is not an error.
func VerifyMessage(
	address, signature, message string, network *chaincfg.Params,
) (bool, error) {
	if message == "" {
		return false, ErrMissingMessage
	}
	if !IsP2PKHAddress(address, network) {
		return false, ErrMessageAddressNotP2PKH
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, ErrMalformedMessageSignature
	}

	pubkey, compressed, err := ecdsa.RecoverCompact(sig, MessageHash(message))
	if err != nil {
		return false, nil
	}
	serialized := pubkey.SerializeUncompressed()
	if compressed {
		serialized = pubkey.SerializeCompressed()
	}
	recovered, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(serialized), network,
	)
	if err != nil {
		return false, err
	}
	return recovered.EncodeAddress() == address, nil
}
