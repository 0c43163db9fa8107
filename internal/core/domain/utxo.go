package domain

import (
	"fmt"
)

// UtxoKey represents the key of an Utxo, composed by its txid and vout.
type UtxoKey struct {
	TxID string
	VOut uint32
}

func (k UtxoKey) String() string {
	return fmt.Sprintf("{%s: %d}", k.TxID, k.VOut)
}

// Utxo is a snapshot of an unspent output owned by an address, as returned
// by a chain data provider. It's never cached, confirmations and spent
// status may change between two fetches.
type Utxo struct {
	UtxoKey
	Value         uint64
	Confirmations uint32
	Address       string
}

func (u Utxo) Key() UtxoKey {
	return u.UtxoKey
}

func (u Utxo) IsConfirmed() bool {
	return u.Confirmations > 0
}

// CoinSelection is the result of a coin selection: the utxos to spend, the
// fee estimated for a tx spending them with a recipient and a change
// output, and the resulting change amount.
type CoinSelection struct {
	Utxos  []Utxo
	Fee    uint64
	Change uint64
}

// Total returns the sum of the values of the selected utxos.
func (s CoinSelection) Total() uint64 {
	var total uint64
	for _, u := range s.Utxos {
		total += u.Value
	}
	return total
}

// TxSummary is an entry of the history of an address.
type TxSummary struct {
	TxID          string
	Amount        int64
	Fee           uint64
	Confirmations uint32
	BlockHeight   uint64
	BlockTime     int64
}

func (s TxSummary) IsConfirmed() bool {
	return s.Confirmations > 0
}
