package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrInputMissingTxid   = fmt.Errorf("input is missing txid")
	ErrInputInvalidTxid   = fmt.Errorf("invalid input txid: must be a 32 bytes hex string")
	ErrInputMissingScript = fmt.Errorf("input is missing prevout script")
	ErrInputZeroValue     = fmt.Errorf("input value must be greater than zero")
)

// Input is the data structure representing an input to be added to a
// transaction, therefore including the previous outpoint as long as the
// value and the locking script of the prevout itself.
type Input struct {
	TxID    string
	TxIndex uint32
	Value   uint64
	Script  []byte
}

func (i Input) Validate() error {
	if i.TxID == "" {
		return ErrInputMissingTxid
	}
	if _, err := chainhash.NewHashFromStr(i.TxID); err != nil ||
		len(i.TxID) != chainhash.MaxHashStringSize {
		return ErrInputInvalidTxid
	}
	if len(i.Script) <= 0 {
		return ErrInputMissingScript
	}
	if i.Value == 0 {
		return ErrInputZeroValue
	}
	return nil
}

func (i Input) outpoint() *wire.OutPoint {
	hash, _ := chainhash.NewHashFromStr(i.TxID)
	return wire.NewOutPoint(hash, i.TxIndex)
}

// Prevout returns the output spent by the input.
func (i Input) Prevout() *wire.TxOut {
	return wire.NewTxOut(int64(i.Value), i.Script)
}

func (i Input) ScriptClass() txscript.ScriptClass {
	return txscript.GetScriptClass(i.Script)
}
