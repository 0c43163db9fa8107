package application

import (
	"fmt"

	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

// signTransaction creates the tx from the assembled inputs and outputs,
// signs every input with the key of the given credential and verifies the
// result. It returns the txid, the serialized tx and the unlocking script of
// every input.
func (ts *TransactionService) signTransaction(
	tx *domain.Transaction, credential domain.Credential,
) (string, string, [][]byte, error) {
	address, err := ts.keyProvider.DeriveAddress(credential)
	if err != nil {
		return "", "", nil, &domain.SigningError{Err: err}
	}
	if address != tx.Sender {
		return "", "", nil, &domain.SigningError{Err: ErrCredentialNotForSender}
	}
	pubkey, err := ts.keyProvider.DerivePublicKey(credential)
	if err != nil {
		return "", "", nil, &domain.SigningError{Err: err}
	}

	prevScript, err := wallet.AddressToScript(tx.Sender, ts.network)
	if err != nil {
		return "", "", nil, &domain.SigningError{Err: err}
	}

	inputs := make([]wallet.Input, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		inputs = append(inputs, wallet.Input{
			TxID:    in.TxID,
			TxIndex: in.VOut,
			Value:   in.Value,
			Script:  prevScript,
		})
	}
	outputs := make([]wallet.Output, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		outputs = append(outputs, wallet.Output{
			Address: out.Address,
			Amount:  out.Value,
		})
	}

	msgTx, err := wallet.CreateTx(wallet.CreateTxArgs{
		Inputs:  inputs,
		Outputs: outputs,
		Network: ts.network,
	})
	if err != nil {
		return "", "", nil, &domain.SigningError{Err: err}
	}

	unlockingScripts := make([][]byte, 0, len(inputs))
	for i, in := range inputs {
		sigHash, err := wallet.SignatureHash(msgTx, i, in.Script)
		if err != nil {
			return "", "", nil, &domain.SigningError{Err: err}
		}
		sig, err := ts.keyProvider.Sign(sigHash, credential)
		if err != nil {
			return "", "", nil, &domain.SigningError{
				Err: fmt.Errorf("input %d: %w", i, err),
			}
		}
		script, err := wallet.UnlockingScript(sig, pubkey)
		if err != nil {
			return "", "", nil, &domain.SigningError{Err: err}
		}
		msgTx.TxIn[i].SignatureScript = script
		unlockingScripts = append(unlockingScripts, script)
	}

	if err := wallet.VerifyTransaction(msgTx, inputs); err != nil {
		return "", "", nil, &domain.SigningError{Err: err}
	}

	txHex, err := wallet.SerializeTx(msgTx)
	if err != nil {
		return "", "", nil, &domain.SigningError{Err: err}
	}
	return msgTx.TxHash().String(), txHex, unlockingScripts, nil
}
