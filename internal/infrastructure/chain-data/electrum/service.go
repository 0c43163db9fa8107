package electrum_provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

const (
	DefaultFeeTarget      = 6
	DefaultRequestTimeout = 15 * time.Second

	// maxHistoryTxs is the max number of most recent txs returned by
	// GetHistory, each one costs at least a couple of requests.
	maxHistoryTxs  = 25
	minSatsPerByte = 1
)

var (
	ErrMissingURL     = fmt.Errorf("missing electrum url")
	ErrInvalidURL     = fmt.Errorf("invalid electrum url, must be in the form proto://host:port")
	ErrMissingNetwork = fmt.Errorf("missing network")
)

type ServiceArgs struct {
	// Addr is in the form proto://host:port, with proto one of tcp, ssl, ws
	// and wss.
	Addr           string
	Network        *chaincfg.Params
	RequestTimeout time.Duration
	FeeTarget      int
}

func (a *ServiceArgs) validate() error {
	if a.Addr == "" {
		return ErrMissingURL
	}
	if len(strings.Split(a.Addr, "://")) != 2 {
		return ErrInvalidURL
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.RequestTimeout <= 0 {
		a.RequestTimeout = DefaultRequestTimeout
	}
	if a.FeeTarget <= 0 {
		a.FeeTarget = DefaultFeeTarget
	}
	return nil
}

type service struct {
	client         electrumClient
	network        *chaincfg.Params
	estimator      wallet.FeeEstimator
	requestTimeout time.Duration
	feeTarget      int
}

// NewService returns a chain data provider connected to an electrum server.
// The connection is kept open until Close is called.
func NewService(args ServiceArgs) (ports.ChainDataProvider, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), args.RequestTimeout)
	defer cancel()

	client, err := newClient(ctx, args.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to electrum server: %w", err)
	}
	go client.listen()

	svc := &service{
		client:         client,
		network:        args.Network,
		estimator:      wallet.NewFeeEstimator(),
		requestTimeout: args.RequestTimeout,
		feeTarget:      args.FeeTarget,
	}

	if err := svc.subscribeForBlocks(ctx); err != nil {
		client.close()
		return nil, err
	}
	logFn("connected to %s, tip height %d", args.Addr, client.tipHeight())

	return svc, nil
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (uint64, error) {
	scriptHash, err := s.scriptHash(address)
	if err != nil {
		return 0, err
	}

	balance := balanceInfo{}
	if err := s.call(
		ctx, &balance, "blockchain.scripthash.get_balance", scriptHash,
	); err != nil {
		return 0, domain.NewBackendError("get balance", err)
	}
	return balance.total(), nil
}

func (s *service) GetUtxos(
	ctx context.Context, address string,
) ([]domain.Utxo, error) {
	scriptHash, err := s.scriptHash(address)
	if err != nil {
		return nil, err
	}

	utxos := make([]utxoInfo, 0)
	if err := s.call(
		ctx, &utxos, "blockchain.scripthash.listunspent", scriptHash,
	); err != nil {
		return nil, domain.NewBackendError("get utxos", err)
	}

	tipHeight := s.client.tipHeight()
	result := make([]domain.Utxo, 0, len(utxos))
	for _, u := range utxos {
		result = append(result, domain.Utxo{
			UtxoKey:       domain.UtxoKey{TxID: u.TxHash, VOut: u.TxPos},
			Value:         u.Value,
			Confirmations: confirmations(u.Height, tipHeight),
			Address:       address,
		})
	}
	logFn("fetched %d utxos for address %s", len(result), address)
	return result, nil
}

func (s *service) GetHistory(
	ctx context.Context, address string,
) ([]domain.TxSummary, error) {
	script, err := wallet.AddressToScript(address, s.network)
	if err != nil {
		return nil, domain.InvalidInputError("%s", err)
	}

	history := make([]txInfo, 0)
	if err := s.call(
		ctx, &history, "blockchain.scripthash.get_history",
		calcScriptHash(script),
	); err != nil {
		return nil, domain.NewBackendError("get history", err)
	}

	// Electrum lists txs oldest first, with the mempool ones at the end.
	if len(history) > maxHistoryTxs {
		history = history[len(history)-maxHistoryTxs:]
	}

	txCache := make(map[string]*wire.MsgTx)
	blockTimeCache := make(map[int64]int64)
	tipHeight := s.client.tipHeight()

	summaries := make([]domain.TxSummary, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		info := history[i]
		summary, err := s.summarizeTx(ctx, info, script, txCache)
		if err != nil {
			return nil, domain.NewBackendError("get history", err)
		}
		summary.Confirmations = confirmations(info.Height, tipHeight)
		if info.Height > 0 {
			summary.BlockHeight = uint64(info.Height)
			blockTime, ok := blockTimeCache[info.Height]
			if !ok {
				blockTime, err = s.getBlockTime(ctx, info.Height)
				if err != nil {
					return nil, domain.NewBackendError("get history", err)
				}
				blockTimeCache[info.Height] = blockTime
			}
			summary.BlockTime = blockTime
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *service) EstimateFee(
	ctx context.Context, numInputs, numOutputs int,
) (uint64, error) {
	size, err := s.estimator.TransactionSize(numInputs, numOutputs)
	if err != nil {
		return 0, err
	}

	var btcPerKb float64
	if err := s.call(
		ctx, &btcPerKb, "blockchain.estimatefee", s.feeTarget,
	); err != nil {
		return 0, domain.NewBackendError("estimate fee", err)
	}

	satsPerByte := btcPerKbToSatsPerByte(btcPerKb)
	logFn("fee rate for target %d: %d sats/byte", s.feeTarget, satsPerByte)
	return size * satsPerByte, nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	resp, err := s.client.request(
		ctx, "blockchain.transaction.broadcast", txHex,
	)
	if err != nil {
		var rpcErr *responseErr
		if errors.As(err, &rpcErr) {
			return "", &domain.BroadcastRejectedError{Message: rpcErr.Message}
		}
		return "", domain.NewBackendError("broadcast", err)
	}

	var txid string
	if err := resp.decode(&txid); err != nil {
		return "", domain.NewBackendError("broadcast", err)
	}
	return txid, nil
}

// IsValidAddress validates the address locally since electrum has no
// dedicated method.
func (s *service) IsValidAddress(
	_ context.Context, address string,
) (bool, error) {
	decoded, err := btcutil.DecodeAddress(address, s.network)
	if err != nil {
		return false, nil
	}
	return decoded.IsForNet(s.network), nil
}

func (s *service) Close() {
	s.client.close()
	logFn("connection closed")
}

func (s *service) subscribeForBlocks(ctx context.Context) error {
	header := headerInfo{}
	if err := s.call(ctx, &header, "blockchain.headers.subscribe"); err != nil {
		return fmt.Errorf("failed to subscribe for blocks: %w", err)
	}
	s.client.setTipHeight(header.Height)
	return nil
}

func (s *service) summarizeTx(
	ctx context.Context, info txInfo, script []byte,
	txCache map[string]*wire.MsgTx,
) (domain.TxSummary, error) {
	tx, err := s.getTx(ctx, info.TxHash, txCache)
	if err != nil {
		return domain.TxSummary{}, err
	}

	var received, sent, outTotal, inTotal uint64
	for _, out := range tx.TxOut {
		outTotal += uint64(out.Value)
		if bytes.Equal(out.PkScript, script) {
			received += uint64(out.Value)
		}
	}

	isCoinbase := false
	for _, in := range tx.TxIn {
		prevout := in.PreviousOutPoint
		if prevout.Hash == (chainhash.Hash{}) {
			isCoinbase = true
			continue
		}
		prevTx, err := s.getTx(ctx, prevout.Hash.String(), txCache)
		if err != nil {
			return domain.TxSummary{}, err
		}
		if int(prevout.Index) >= len(prevTx.TxOut) {
			return domain.TxSummary{}, fmt.Errorf(
				"prevout %s not found", prevout,
			)
		}
		prevOut := prevTx.TxOut[prevout.Index]
		inTotal += uint64(prevOut.Value)
		if bytes.Equal(prevOut.PkScript, script) {
			sent += uint64(prevOut.Value)
		}
	}

	fee := info.Fee
	if fee == 0 && !isCoinbase && inTotal >= outTotal {
		fee = inTotal - outTotal
	}

	return domain.TxSummary{
		TxID:   info.TxHash,
		Amount: int64(received) - int64(sent),
		Fee:    fee,
	}, nil
}

func (s *service) getTx(
	ctx context.Context, txid string, cache map[string]*wire.MsgTx,
) (*wire.MsgTx, error) {
	if tx, ok := cache[txid]; ok {
		return tx, nil
	}

	var txHex string
	if err := s.call(ctx, &txHex, "blockchain.transaction.get", txid); err != nil {
		return nil, err
	}
	tx, err := wallet.DeserializeTx(txHex)
	if err != nil {
		return nil, err
	}
	cache[txid] = tx
	return tx, nil
}

func (s *service) getBlockTime(ctx context.Context, height int64) (int64, error) {
	var headerHex string
	if err := s.call(
		ctx, &headerHex, "blockchain.block.header", height,
	); err != nil {
		return 0, err
	}
	return parseBlockTime(headerHex)
}

func (s *service) call(
	ctx context.Context, result interface{}, method string,
	params ...interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	resp, err := s.client.request(ctx, method, params...)
	if err != nil {
		return err
	}
	return resp.decode(result)
}

func (s *service) scriptHash(address string) (string, error) {
	script, err := wallet.AddressToScript(address, s.network)
	if err != nil {
		return "", domain.InvalidInputError("%s", err)
	}
	return calcScriptHash(script), nil
}

// btcPerKbToSatsPerByte converts the rate returned by the server, rounding it
// up. Electrum returns -1 when it can't estimate.
func btcPerKbToSatsPerByte(btcPerKb float64) uint64 {
	if btcPerKb <= 0 {
		return minSatsPerByte
	}
	rate := decimal.NewFromFloat(btcPerKb).
		Shift(8).
		Div(decimal.NewFromInt(1000)).
		Ceil().
		IntPart()
	if rate < minSatsPerByte {
		return minSatsPerByte
	}
	return uint64(rate)
}
