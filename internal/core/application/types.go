package application

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

const (
	DefaultSatsPerByte = uint64(5)
)

// SendRequest holds the arguments of a send operation. Amount is in sats.
type SendRequest struct {
	From       string
	To         string
	Amount     uint64
	Credential domain.Credential
}

// FeeEstimate is the fee computed locally for a tx with the given number of
// inputs and outputs at the configured rate.
type FeeEstimate struct {
	NumInputs   int
	NumOutputs  int
	Size        uint64
	SatsPerByte uint64
	Fee         uint64
	MaxFee      uint64
	DustAmount  uint64
}

// AssembleArgs holds the arguments for assembling the inputs and outputs of
// a send transaction.
type AssembleArgs struct {
	Utxos       []domain.Utxo
	Sender      string
	Recipient   string
	Amount      uint64
	SatsPerByte uint64
	Network     *chaincfg.Params
	Estimator   wallet.FeeEstimator
}

// Assembly is the result of the assembling step.
type Assembly struct {
	Inputs  []domain.TxInput
	Outputs []domain.TxOutput
	Fee     uint64
	Change  uint64
}

func (a Assembly) HasChange() bool {
	return a.Change > 0
}

type Utxos []domain.Utxo

func (u Utxos) Total() uint64 {
	var total uint64
	for _, utxo := range u {
		total += utxo.Value
	}
	return total
}
