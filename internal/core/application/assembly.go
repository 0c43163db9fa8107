package application

import (
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

// AssembleTransaction turns the selected utxos into the inputs and outputs
// of the tx paying Amount to Recipient.
// The fee is computed for the actual number of inputs and the recipient
// output plus a change one. The change output is added only if above the
// dust threshold, otherwise its value goes to fees, so that the sum of the
// inputs always equals the sum of the outputs plus the fee.
func AssembleTransaction(args AssembleArgs) (*Assembly, error) {
	if len(args.Utxos) <= 0 {
		return nil, domain.ErrNoFundsAvailable
	}
	if args.Amount == 0 {
		return nil, domain.InvalidInputError("amount must be greater than zero")
	}

	recipientScript, err := wallet.AddressToScript(args.Recipient, args.Network)
	if err != nil {
		return nil, domain.InvalidInputError("recipient: %s", err)
	}
	senderScript, err := wallet.AddressToScript(args.Sender, args.Network)
	if err != nil {
		return nil, domain.InvalidInputError("sender: %s", err)
	}

	inputs := make([]domain.TxInput, 0, len(args.Utxos))
	var inputTotal uint64
	for _, u := range args.Utxos {
		if inputTotal, err = wallet.SumAmounts(inputTotal, u.Value); err != nil {
			return nil, err
		}
		inputs = append(inputs, domain.TxInput{UtxoKey: u.Key(), Value: u.Value})
	}

	outputs := []domain.TxOutput{
		{Address: args.Recipient, Value: args.Amount, Script: recipientScript},
	}

	fee, err := args.Estimator.Fee(len(inputs), len(outputs)+1, args.SatsPerByte)
	if err != nil {
		return nil, err
	}
	if inputTotal < args.Amount {
		needed, err := wallet.SumAmounts(args.Amount, fee)
		if err != nil {
			return nil, err
		}
		return nil, &domain.InsufficientFundsError{
			Needed: needed, Available: inputTotal,
		}
	}

	var change uint64
	if inputTotal-args.Amount > fee {
		change = inputTotal - args.Amount - fee
	}
	if change > args.Estimator.DustThreshold(args.SatsPerByte) {
		outputs = append(outputs, domain.TxOutput{
			Address:  args.Sender,
			Value:    change,
			Script:   senderScript,
			IsChange: true,
		})
	} else {
		change = 0
		fee = inputTotal - args.Amount
	}

	return &Assembly{
		Inputs:  inputs,
		Outputs: outputs,
		Fee:     fee,
		Change:  change,
	}, nil
}
