package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

var (
	ErrMissingChainDataProvider = fmt.Errorf("missing chain data provider")
	ErrMissingKeyProvider       = fmt.Errorf("missing key provider")
	ErrMissingCoinSelector      = fmt.Errorf("missing coin selector")
	ErrMissingRepoManager       = fmt.Errorf("missing repo manager")
	ErrMissingNetwork           = fmt.Errorf("missing network")
	ErrCredentialNotForSender   = fmt.Errorf("credential does not control the sender address")
)

// TransactionService is responsible for sending funds from an address and
// for the related read operations:
//   - Send an amount from an address to another one. The tx goes through the
//     statuses validating, funded, assembled, signed and broadcast, or fails
//     at any step. The record of every attempt is persisted.
//   - Get the balance, utxos or history of an address.
//   - Estimate the fee of a tx, locally or with the chain data provider.
//   - Get one or all the send records of an address.
//
// Sends from the same address are serialized from the fetching of the utxos
// until the broadcast of the tx, so that they never select the same coins.
type TransactionService struct {
	repoManager  ports.RepoManager
	chainData    ports.ChainDataProvider
	keyProvider  ports.KeyProvider
	coinSelector ports.CoinSelector
	estimator    wallet.FeeEstimator
	network      *chaincfg.Params
	satsPerByte  uint64
	locker       *addressLocker

	log func(format string, a ...interface{})
}

type TransactionServiceArgs struct {
	RepoManager       ports.RepoManager
	ChainDataProvider ports.ChainDataProvider
	KeyProvider       ports.KeyProvider
	CoinSelector      ports.CoinSelector
	Network           *chaincfg.Params
	// SatsPerByte is the fixed fee rate used for sends, defaults to
	// DefaultSatsPerByte.
	SatsPerByte uint64
}

func (a *TransactionServiceArgs) validate() error {
	if a.RepoManager == nil {
		return ErrMissingRepoManager
	}
	if a.ChainDataProvider == nil {
		return ErrMissingChainDataProvider
	}
	if a.KeyProvider == nil {
		return ErrMissingKeyProvider
	}
	if a.CoinSelector == nil {
		return ErrMissingCoinSelector
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.SatsPerByte == 0 {
		a.SatsPerByte = DefaultSatsPerByte
	}
	return nil
}

func NewTransactionService(
	args TransactionServiceArgs,
) (*TransactionService, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("transaction service: %s", format)
		log.Debugf(format, a...)
	}
	if args.SatsPerByte > wallet.MaxSatsPerByte {
		log.Warnf(
			"transaction service: fee rate %d sats/byte is above the sanity "+
				"limit of %d sats/byte", args.SatsPerByte, wallet.MaxSatsPerByte,
		)
	}

	return &TransactionService{
		repoManager:  args.RepoManager,
		chainData:    args.ChainDataProvider,
		keyProvider:  args.KeyProvider,
		coinSelector: args.CoinSelector,
		estimator:    wallet.NewFeeEstimator(),
		network:      args.Network,
		satsPerByte:  args.SatsPerByte,
		locker:       newAddressLocker(),
		log:          logFn,
	}, nil
}

// Send transfers req.Amount sats from req.From to req.To. It always returns
// the record of the attempt, in status broadcast if successful, or failed
// together with the error otherwise.
func (ts *TransactionService) Send(
	ctx context.Context, req SendRequest,
) (*domain.Transaction, error) {
	tx := domain.NewTransaction(req.From, req.To, req.Amount, ts.satsPerByte)
	ts.addTransaction(ctx, tx)
	ts.log("send %s: %d sats from %s to %s", tx.ID, req.Amount, req.From, req.To)

	if err := ts.validateSendRequest(req); err != nil {
		return ts.fail(ctx, tx, err)
	}

	unlock, err := ts.locker.acquire(ctx, req.From)
	if err != nil {
		return ts.fail(ctx, tx, cancelledError(err))
	}
	defer unlock()

	utxos, err := ts.chainData.GetUtxos(ctx, req.From)
	if err != nil {
		return ts.fail(ctx, tx, ts.checkCancelled(ctx, err))
	}
	if len(utxos) <= 0 {
		return ts.fail(ctx, tx, domain.ErrNoFundsAvailable)
	}

	selection, err := ts.coinSelector.SelectUtxos(
		utxos, req.Amount, ts.satsPerByte,
	)
	if err != nil {
		return ts.fail(ctx, tx, amountError(err))
	}
	if err := tx.Fund(); err != nil {
		return ts.fail(ctx, tx, err)
	}
	ts.updateTransaction(ctx, tx)
	ts.log(
		"send %s: selected %d of %d utxo(s) for a total of %d sats",
		tx.ID, len(selection.Utxos), len(utxos), selection.Total(),
	)

	assembly, err := AssembleTransaction(AssembleArgs{
		Utxos:       selection.Utxos,
		Sender:      req.From,
		Recipient:   req.To,
		Amount:      req.Amount,
		SatsPerByte: ts.satsPerByte,
		Network:     ts.network,
		Estimator:   ts.estimator,
	})
	if err != nil {
		return ts.fail(ctx, tx, amountError(err))
	}
	ts.warnIfFeeTooHigh(tx.ID, len(assembly.Inputs), len(assembly.Outputs), assembly.Fee)
	if err := tx.Assemble(assembly.Inputs, assembly.Outputs, assembly.Fee); err != nil {
		return ts.fail(ctx, tx, err)
	}
	ts.updateTransaction(ctx, tx)

	if err := ctx.Err(); err != nil {
		return ts.fail(ctx, tx, cancelledError(err))
	}

	txid, txHex, unlockingScripts, err := ts.signTransaction(tx, req.Credential)
	if err != nil {
		return ts.fail(ctx, tx, err)
	}
	if err := tx.Sign(txid, txHex, unlockingScripts); err != nil {
		return ts.fail(ctx, tx, &domain.SigningError{Err: err})
	}
	ts.updateTransaction(ctx, tx)
	ts.log("send %s: signed tx %s", tx.ID, txid)

	if err := ctx.Err(); err != nil {
		return ts.fail(ctx, tx, cancelledError(err))
	}

	// The broadcast can't be undone, it's not interrupted by the caller.
	broadcastID, err := ts.chainData.BroadcastTransaction(
		context.WithoutCancel(ctx), txHex,
	)
	if err != nil {
		return ts.fail(ctx, tx, err)
	}
	if broadcastID != txid {
		log.Warnf(
			"transaction service: send %s: backend returned txid %s, expected %s",
			tx.ID, broadcastID, txid,
		)
	}
	if err := tx.Broadcast(broadcastID); err != nil {
		return ts.fail(ctx, tx, err)
	}
	ts.updateTransaction(ctx, tx)
	ts.log("send %s: broadcasted tx %s", tx.ID, broadcastID)

	return tx, nil
}

func (ts *TransactionService) GetBalance(
	ctx context.Context, address string,
) (uint64, error) {
	if err := ts.validateAddress(address); err != nil {
		return 0, err
	}
	return ts.chainData.GetBalance(ctx, address)
}

func (ts *TransactionService) GetUtxos(
	ctx context.Context, address string,
) (Utxos, error) {
	if err := ts.validateAddress(address); err != nil {
		return nil, err
	}
	return ts.chainData.GetUtxos(ctx, address)
}

func (ts *TransactionService) GetHistory(
	ctx context.Context, address string,
) ([]domain.TxSummary, error) {
	if err := ts.validateAddress(address); err != nil {
		return nil, err
	}
	return ts.chainData.GetHistory(ctx, address)
}

// EstimateFee returns the fee computed locally at the configured rate. This
// is the fee actually used for sends.
func (ts *TransactionService) EstimateFee(
	numInputs, numOutputs int,
) (*FeeEstimate, error) {
	size, err := ts.estimator.TransactionSize(numInputs, numOutputs)
	if err != nil {
		return nil, domain.InvalidInputError("%s", err)
	}
	fee, err := ts.estimator.Fee(numInputs, numOutputs, ts.satsPerByte)
	if err != nil {
		return nil, domain.InvalidInputError("%s", err)
	}
	maxFee, err := ts.estimator.MaxFee(numInputs, numOutputs)
	if err != nil {
		return nil, domain.InvalidInputError("%s", err)
	}
	return &FeeEstimate{
		NumInputs:   numInputs,
		NumOutputs:  numOutputs,
		Size:        size,
		SatsPerByte: ts.satsPerByte,
		Fee:         fee,
		MaxFee:      maxFee,
		DustAmount:  ts.estimator.DustThreshold(ts.satsPerByte),
	}, nil
}

// EstimateBackendFee returns the fee suggested by the chain data provider.
// It's advisory only and never used for sends.
func (ts *TransactionService) EstimateBackendFee(
	ctx context.Context, numInputs, numOutputs int,
) (uint64, error) {
	if numInputs <= 0 || numOutputs <= 0 {
		return 0, domain.InvalidInputError(
			"number of inputs and outputs must be greater than zero",
		)
	}
	return ts.chainData.EstimateFee(ctx, numInputs, numOutputs)
}

func (ts *TransactionService) GetTransaction(
	ctx context.Context, id string,
) (*domain.Transaction, error) {
	return ts.repoManager.TransactionRepository().GetTransaction(ctx, id)
}

func (ts *TransactionService) ListTransactions(
	ctx context.Context, sender string,
) ([]*domain.Transaction, error) {
	if err := ts.validateAddress(sender); err != nil {
		return nil, err
	}
	return ts.repoManager.TransactionRepository().GetTransactionsBySender(
		ctx, sender,
	)
}

func (ts *TransactionService) validateSendRequest(req SendRequest) error {
	if !ts.keyProvider.IsValidAddress(req.From) {
		return domain.InvalidInputError("invalid sender address %q", req.From)
	}
	if !wallet.IsP2PKHAddress(req.From, ts.network) {
		return domain.InvalidInputError(
			"sender address %q is not a legacy p2pkh address", req.From,
		)
	}
	if !ts.keyProvider.IsValidAddress(req.To) {
		return domain.InvalidInputError("invalid recipient address %q", req.To)
	}
	if req.Amount == 0 {
		return domain.InvalidInputError("amount must be greater than zero")
	}
	if req.Amount > btcutil.MaxSatoshi {
		return domain.InvalidInputError(
			"amount %d exceeds the max of %d sats", req.Amount, uint64(btcutil.MaxSatoshi),
		)
	}
	if req.Credential.IsEmpty() {
		return domain.InvalidInputError("%s", domain.ErrMissingCredential)
	}
	return nil
}

func (ts *TransactionService) validateAddress(address string) error {
	if !ts.keyProvider.IsValidAddress(address) {
		return domain.InvalidInputError("invalid address %q", address)
	}
	return nil
}

func (ts *TransactionService) warnIfFeeTooHigh(
	id string, numInputs, numOutputs int, fee uint64,
) {
	maxFee, err := ts.estimator.MaxFee(numInputs, numOutputs)
	if err != nil || fee <= maxFee {
		return
	}
	log.Warnf(
		"transaction service: send %s: fee %d sats is above the sanity limit "+
			"of %d sats", id, fee, maxFee,
	)
}

func (ts *TransactionService) fail(
	ctx context.Context, tx *domain.Transaction, err error,
) (*domain.Transaction, error) {
	reason := domain.FailureReasonFromError(err)
	if failErr := tx.Fail(reason, err.Error()); failErr != nil {
		log.WithError(failErr).Warnf(
			"transaction service: send %s: failed to mark as failed", tx.ID,
		)
		return tx, err
	}
	ts.updateTransaction(ctx, tx)
	ts.log("send %s: failed with reason %s: %s", tx.ID, reason, err)
	return tx, err
}

// checkCancelled returns ErrCancelled if the given error was caused by the
// cancellation of the context.
func (ts *TransactionService) checkCancelled(
	ctx context.Context, err error,
) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelledError(ctxErr)
	}
	return err
}

// Persistence is best effort, errors don't change the outcome of the send.
func (ts *TransactionService) addTransaction(
	ctx context.Context, tx *domain.Transaction,
) {
	if _, err := ts.repoManager.TransactionRepository().AddTransaction(
		context.WithoutCancel(ctx), tx.Clone(),
	); err != nil {
		log.WithError(err).Warnf(
			"transaction service: send %s: failed to persist record", tx.ID,
		)
	}
}

func (ts *TransactionService) updateTransaction(
	ctx context.Context, tx *domain.Transaction,
) {
	record := tx.Clone()
	if err := ts.repoManager.TransactionRepository().UpdateTransaction(
		context.WithoutCancel(ctx), tx.ID,
		func(_ *domain.Transaction) (*domain.Transaction, error) {
			return record, nil
		},
	); err != nil {
		log.WithError(err).Warnf(
			"transaction service: send %s: failed to update record", tx.ID,
		)
	}
}

// amountError turns the overflows caused by the amount or the configured fee
// rate into invalid input errors.
func amountError(err error) error {
	if errors.Is(err, wallet.ErrAmountOverflow) || errors.Is(err, wallet.ErrFeeOverflow) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return err
}

func cancelledError(err error) error {
	return fmt.Errorf("%w: %s", domain.ErrCancelled, err)
}
