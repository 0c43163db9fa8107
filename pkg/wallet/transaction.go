package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	TxVersion = 2
)

var (
	ErrMissingNetwork      = fmt.Errorf("missing network")
	ErrMissingInputs       = fmt.Errorf("at least one input is mandatory")
	ErrMissingOutputs      = fmt.Errorf("at least one output is mandatory")
	ErrInvalidInputIndex   = fmt.Errorf("input index out of range")
	ErrMissingSignature    = fmt.Errorf("missing signature")
	ErrMissingPubkey       = fmt.Errorf("missing public key")
	ErrInvalidSignatures   = fmt.Errorf("transaction contains invalid signature(s)")
	ErrInputsCountMismatch = fmt.Errorf("number of prevouts does not match tx inputs")
)

type CreateTxArgs struct {
	Inputs  []Input
	Outputs []Output
	Network *chaincfg.Params
}

func (a CreateTxArgs) validate() error {
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if len(a.Inputs) <= 0 {
		return ErrMissingInputs
	}
	if len(a.Outputs) <= 0 {
		return ErrMissingOutputs
	}
	for i, in := range a.Inputs {
		if err := in.Validate(); err != nil {
			return fmt.Errorf("invalid input %d: %s", i, err)
		}
	}
	for i, out := range a.Outputs {
		if err := out.Validate(a.Network); err != nil {
			return fmt.Errorf("invalid output %d: %s", i, err)
		}
	}
	return nil
}

// CreateTx creates a new unsigned transaction with the given inputs and
// outputs, preserving their order.
func CreateTx(args CreateTxArgs) (*wire.MsgTx, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(TxVersion)
	for _, in := range args.Inputs {
		tx.AddTxIn(wire.NewTxIn(in.outpoint(), nil, nil))
	}
	for _, out := range args.Outputs {
		txOut, err := out.txOut(args.Network)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(txOut)
	}
	return tx, nil
}

// SignatureHash returns the legacy SIGHASH_ALL digest to be signed for the
// input at the given index.
func SignatureHash(
	tx *wire.MsgTx, inIndex int, prevoutScript []byte,
) ([]byte, error) {
	if inIndex < 0 || inIndex >= len(tx.TxIn) {
		return nil, ErrInvalidInputIndex
	}
	return txscript.CalcSignatureHash(
		prevoutScript, txscript.SigHashAll, tx, inIndex,
	)
}

// UnlockingScript returns the P2PKH scriptsig made of the given DER
// signature, suffixed with the SIGHASH_ALL flag, and the public key.
func UnlockingScript(derSig, pubkey []byte) ([]byte, error) {
	if len(derSig) <= 0 {
		return nil, ErrMissingSignature
	}
	if len(pubkey) <= 0 {
		return nil, ErrMissingPubkey
	}
	sig := append(append([]byte{}, derSig...), byte(txscript.SigHashAll))
	return txscript.NewScriptBuilder().
		AddData(sig).
		AddData(pubkey).
		Script()
}

// VerifyTransaction executes the scripts of every input of the transaction
// against the related prevout and returns an error if any fails.
func VerifyTransaction(tx *wire.MsgTx, inputs []Input) error {
	if len(inputs) != len(tx.TxIn) {
		return ErrInputsCountMismatch
	}

	prevouts := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range inputs {
		prevouts.AddPrevOut(tx.TxIn[i].PreviousOutPoint, in.Prevout())
	}
	sigHashes := txscript.NewTxSigHashes(tx, prevouts)

	for i, in := range inputs {
		engine, err := txscript.NewEngine(
			in.Script, tx, i, txscript.StandardVerifyFlags, nil, sigHashes,
			int64(in.Value), prevouts,
		)
		if err != nil {
			return fmt.Errorf("input %d: %s", i, err)
		}
		if err := engine.Execute(); err != nil {
			return fmt.Errorf("%w: input %d: %s", ErrInvalidSignatures, i, err)
		}
	}
	return nil
}

// SerializeTx returns the hex encoded wire format of the given transaction.
func SerializeTx(tx *wire.MsgTx) (string, error) {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// DeserializeTx parses the given hex encoded transaction.
func DeserializeTx(txHex string) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	return tx, nil
}
