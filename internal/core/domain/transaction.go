package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TxStatusValidating TxStatus = iota
	TxStatusFunded
	TxStatusAssembled
	TxStatusSigned
	TxStatusBroadcast
	TxStatusFailed
)

const (
	FailureNone FailureReason = iota
	FailureInvalidInput
	FailureNoFundsAvailable
	FailureInsufficientFunds
	FailureBackendError
	FailureSigningError
	FailureBroadcastRejected
	FailureCancelled
	// FailureInternalError is a broken local invariant, like an invalid
	// status transition or an unbalanced tx. It never comes from a backend.
	FailureInternalError
)

var (
	txStatusString = map[TxStatus]string{
		TxStatusValidating: "validating",
		TxStatusFunded:     "funded",
		TxStatusAssembled:  "assembled",
		TxStatusSigned:     "signed",
		TxStatusBroadcast:  "broadcast",
		TxStatusFailed:     "failed",
	}
	failureReasonString = map[FailureReason]string{
		FailureNone:              "",
		FailureInvalidInput:      "invalid-input",
		FailureNoFundsAvailable:  "no-funds-available",
		FailureInsufficientFunds: "insufficient-funds",
		FailureBackendError:      "backend-error",
		FailureSigningError:      "signing-error",
		FailureBroadcastRejected: "broadcast-rejected",
		FailureCancelled:         "cancelled",
		FailureInternalError:     "internal-error",
	}
	// allowed forward transitions, failure excluded.
	nextTxStatus = map[TxStatus]TxStatus{
		TxStatusValidating: TxStatusFunded,
		TxStatusFunded:     TxStatusAssembled,
		TxStatusAssembled:  TxStatusSigned,
		TxStatusSigned:     TxStatusBroadcast,
	}
)

type TxStatus int

func (s TxStatus) String() string {
	return txStatusString[s]
}

type FailureReason int

func (r FailureReason) String() string {
	return failureReasonString[r]
}

// TxInput references the utxo spent by a transaction input. The unlocking
// script is set only once the transaction is signed.
type TxInput struct {
	UtxoKey
	Value           uint64
	UnlockingScript []byte
}

// TxOutput is a transaction output paying Value to Address.
type TxOutput struct {
	Address  string
	Value    uint64
	Script   []byte
	IsChange bool
}

// Transaction is the record of a single send attempt. It's created fresh
// for every request and moves forward through the statuses
// validating -> funded -> assembled -> signed -> broadcast, or to failed
// from any non terminal status.
type Transaction struct {
	ID             string
	Sender         string
	Recipient      string
	Amount         uint64
	SatsPerByte    uint64
	Inputs         []TxInput
	Outputs        []TxOutput
	Fee            uint64
	Status         TxStatus
	FailureReason  FailureReason
	FailureMessage string
	// TxID is the hash of the signed tx, BroadcastID the identifier
	// returned by the backend once accepted.
	TxID        string
	TxHex       string
	BroadcastID string
	CreatedAt   int64
	UpdatedAt   int64
}

func NewTransaction(
	sender, recipient string, amount, satsPerByte uint64,
) *Transaction {
	now := time.Now().Unix()
	return &Transaction{
		ID:          uuid.New().String(),
		Sender:      sender,
		Recipient:   recipient,
		Amount:      amount,
		SatsPerByte: satsPerByte,
		Status:      TxStatusValidating,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Fund marks the tx as funded after a successful coin selection.
func (t *Transaction) Fund() error {
	return t.moveTo(TxStatusFunded)
}

// Assemble fixes inputs, outputs and fee of the tx. It fails if the sum of
// the inputs doesn't match exactly the sum of outputs plus fee.
func (t *Transaction) Assemble(
	inputs []TxInput, outputs []TxOutput, fee uint64,
) error {
	if t.Status != TxStatusFunded {
		return t.transitionErr(TxStatusAssembled)
	}
	if len(inputs) <= 0 || len(outputs) <= 0 {
		return fmt.Errorf("%w: missing inputs or outputs", ErrUnbalancedTransaction)
	}
	if !isBalanced(inputs, outputs, fee) {
		return ErrUnbalancedTransaction
	}

	t.Inputs = inputs
	t.Outputs = outputs
	t.Fee = fee
	return t.moveTo(TxStatusAssembled)
}

// Sign sets the unlocking script of every input and records the signed tx.
func (t *Transaction) Sign(
	txid, txHex string, unlockingScripts [][]byte,
) error {
	if t.Status != TxStatusAssembled {
		return t.transitionErr(TxStatusSigned)
	}
	if len(unlockingScripts) != len(t.Inputs) {
		return fmt.Errorf(
			"expected %d unlocking scripts, got %d",
			len(t.Inputs), len(unlockingScripts),
		)
	}

	for i := range t.Inputs {
		t.Inputs[i].UnlockingScript = unlockingScripts[i]
	}
	t.TxID = txid
	t.TxHex = txHex
	return t.moveTo(TxStatusSigned)
}

// Broadcast records the identifier assigned by the backend to the tx.
func (t *Transaction) Broadcast(broadcastID string) error {
	if t.Status != TxStatusSigned {
		return t.transitionErr(TxStatusBroadcast)
	}
	if !t.IsBalanced() {
		return ErrUnbalancedTransaction
	}
	t.BroadcastID = broadcastID
	return t.moveTo(TxStatusBroadcast)
}

// Fail moves the tx to the absorbing failed status.
func (t *Transaction) Fail(reason FailureReason, message string) error {
	if t.IsTerminal() {
		return t.transitionErr(TxStatusFailed)
	}
	t.Status = TxStatusFailed
	t.FailureReason = reason
	t.FailureMessage = message
	t.UpdatedAt = time.Now().Unix()
	return nil
}

func (t *Transaction) IsTerminal() bool {
	return t.Status == TxStatusBroadcast || t.Status == TxStatusFailed
}

// IsBalanced returns whether sum(inputs) == sum(outputs) + fee.
func (t *Transaction) IsBalanced() bool {
	return isBalanced(t.Inputs, t.Outputs, t.Fee)
}

// ChangeOutput returns the output paying back the sender, if any.
func (t *Transaction) ChangeOutput() (TxOutput, bool) {
	for _, out := range t.Outputs {
		if out.IsChange {
			return out, true
		}
	}
	return TxOutput{}, false
}

// Clone returns a deep copy of the tx.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	if t.Inputs != nil {
		cp.Inputs = make([]TxInput, len(t.Inputs))
		for i, in := range t.Inputs {
			cp.Inputs[i] = in
			if in.UnlockingScript != nil {
				cp.Inputs[i].UnlockingScript = append([]byte{}, in.UnlockingScript...)
			}
		}
	}
	if t.Outputs != nil {
		cp.Outputs = make([]TxOutput, len(t.Outputs))
		for i, out := range t.Outputs {
			cp.Outputs[i] = out
			if out.Script != nil {
				cp.Outputs[i].Script = append([]byte{}, out.Script...)
			}
		}
	}
	return &cp
}

func (t *Transaction) moveTo(status TxStatus) error {
	if next, ok := nextTxStatus[t.Status]; !ok || next != status {
		return t.transitionErr(status)
	}
	t.Status = status
	t.UpdatedAt = time.Now().Unix()
	return nil
}

func (t *Transaction) transitionErr(status TxStatus) error {
	return fmt.Errorf(
		"%w: %s -> %s", ErrInvalidStatusTransition, t.Status, status,
	)
}

func isBalanced(inputs []TxInput, outputs []TxOutput, fee uint64) bool {
	inTotal := sumInputs(inputs)
	outTotal := sumOutputs(outputs)
	return inTotal >= outTotal && inTotal-outTotal == fee
}

func sumInputs(inputs []TxInput) uint64 {
	var total uint64
	for _, in := range inputs {
		total += in.Value
	}
	return total
}

func sumOutputs(outputs []TxOutput) uint64 {
	var total uint64
	for _, out := range outputs {
		total += out.Value
	}
	return total
}
