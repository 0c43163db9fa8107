package wallet

import (
	"fmt"
	"math"
	"math/bits"
)

const (
	// Legacy P2PKH sizes in bytes.
	DefaultBaseSize   = 10  // version + locktime + in/out counts
	DefaultInputSize  = 148 // outpoint + sequence + scriptsig <sig> <pubkey>
	DefaultOutputSize = 34  // value + len + p2pkh script

	// MinDustAmount is the floor of the dust threshold, regardless of the
	// fee rate.
	MinDustAmount = 546
	// MaxSatsPerByte is the fee rate above which a fee is flagged as
	// anomalous.
	MaxSatsPerByte = 100

	dustOutputsMultiplier = 3
)

var (
	ErrInvalidNumOfInputs  = fmt.Errorf("number of inputs must be greater than zero")
	ErrInvalidNumOfOutputs = fmt.Errorf("number of outputs must be greater than zero")
	ErrFeeOverflow         = fmt.Errorf("fee amount overflows 64 bits")
)

// FeeEstimator estimates size and fee of a transaction given the number of
// its inputs and outputs. The zero value is not usable, use
// NewFeeEstimator or fill all sizes.
type FeeEstimator struct {
	BaseSize   uint64
	InputSize  uint64
	OutputSize uint64
}

// NewFeeEstimator returns an estimator for legacy single-sig (P2PKH)
// transactions.
func NewFeeEstimator() FeeEstimator {
	return FeeEstimator{
		BaseSize:   DefaultBaseSize,
		InputSize:  DefaultInputSize,
		OutputSize: DefaultOutputSize,
	}
}

// TransactionSize returns the estimated size in bytes of a transaction with
// the given number of inputs and outputs.
func (e FeeEstimator) TransactionSize(numInputs, numOutputs int) (uint64, error) {
	if numInputs <= 0 {
		return 0, ErrInvalidNumOfInputs
	}
	if numOutputs <= 0 {
		return 0, ErrInvalidNumOfOutputs
	}
	return e.BaseSize +
		uint64(numInputs)*e.InputSize +
		uint64(numOutputs)*e.OutputSize, nil
}

// Fee returns the fee amount in sats for a transaction with the given number
// of inputs and outputs at the given sats/byte ratio.
func (e FeeEstimator) Fee(
	numInputs, numOutputs int, satsPerByte uint64,
) (uint64, error) {
	size, err := e.TransactionSize(numInputs, numOutputs)
	if err != nil {
		return 0, err
	}
	return mul(size, satsPerByte)
}

// DustThreshold returns the amount below which an output is not worth
// creating at the given sats/byte ratio.
func (e FeeEstimator) DustThreshold(satsPerByte uint64) uint64 {
	threshold, err := mul(dustOutputsMultiplier*e.OutputSize, satsPerByte)
	if err != nil {
		return math.MaxUint64
	}
	if threshold < MinDustAmount {
		return MinDustAmount
	}
	return threshold
}

// MaxFee returns the ceiling fee amount for a transaction with the given
// number of inputs and outputs. It's meant only to flag anomalous fee rates.
func (e FeeEstimator) MaxFee(numInputs, numOutputs int) (uint64, error) {
	return e.Fee(numInputs, numOutputs, MaxSatsPerByte)
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrFeeOverflow
	}
	return lo, nil
}
