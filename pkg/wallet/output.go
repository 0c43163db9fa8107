package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrOutputMissingAddress = fmt.Errorf("output is missing address")
	ErrOutputInvalidAddress = fmt.Errorf("invalid output address")
	ErrOutputZeroAmount     = fmt.Errorf("output amount must be greater than zero")
)

// Output is the data structure representing an output to be added to a
// transaction, therefore including amount and destination address.
type Output struct {
	Address string
	Amount  uint64
}

func (o Output) Validate(network *chaincfg.Params) error {
	if o.Address == "" {
		return ErrOutputMissingAddress
	}
	if _, err := o.Script(network); err != nil {
		return err
	}
	if o.Amount == 0 {
		return ErrOutputZeroAmount
	}
	return nil
}

// Script returns the locking script for the output address.
func (o Output) Script(network *chaincfg.Params) ([]byte, error) {
	return AddressToScript(o.Address, network)
}

func (o Output) txOut(network *chaincfg.Params) (*wire.TxOut, error) {
	script, err := o.Script(network)
	if err != nil {
		return nil, err
	}
	return wire.NewTxOut(int64(o.Amount), script), nil
}

// AddressToScript decodes the given address for the given network and
// returns the related output script.
func AddressToScript(addr string, network *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputInvalidAddress, err)
	}
	if !decoded.IsForNet(network) {
		return nil, fmt.Errorf(
			"%w: address is not for network %s", ErrOutputInvalidAddress, network.Name,
		)
	}
	return txscript.PayToAddrScript(decoded)
}

// IsP2PKHAddress returns whether the given address is a legacy pay to
// pubkey hash address of the given network, the only kind of address this
// package can sign for.
func IsP2PKHAddress(addr string, network *chaincfg.Params) bool {
	decoded, err := btcutil.DecodeAddress(addr, network)
	if err != nil || !decoded.IsForNet(network) {
		return false
	}
	_, ok := decoded.(*btcutil.AddressPubKeyHash)
	return ok
}
