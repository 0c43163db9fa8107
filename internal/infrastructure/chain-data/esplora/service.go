package esplora_provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/restclient"
	"github.com/vulpemventures/dinghy/pkg/wallet"
)

const (
	DefaultFeeTarget      = 6
	DefaultRequestTimeout = 15 * time.Second
	DefaultMaxRetries     = 3

	minSatsPerByte = 1
)

var (
	ErrMissingURL     = fmt.Errorf("missing esplora url")
	ErrInvalidURL     = fmt.Errorf("invalid esplora url")
	ErrMissingNetwork = fmt.Errorf("missing network")
)

type ServiceArgs struct {
	URL            string
	Network        *chaincfg.Params
	RequestTimeout time.Duration
	MaxRetries     int
	// FeeTarget is the confirmation target in blocks used to pick the fee
	// rate from the backend's estimates.
	FeeTarget int
}

func (a *ServiceArgs) validate() error {
	if a.URL == "" {
		return ErrMissingURL
	}
	if u, err := url.Parse(a.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL
	}
	if a.Network == nil {
		return ErrMissingNetwork
	}
	if a.RequestTimeout <= 0 {
		a.RequestTimeout = DefaultRequestTimeout
	}
	if a.MaxRetries < 0 {
		a.MaxRetries = DefaultMaxRetries
	}
	if a.FeeTarget <= 0 {
		a.FeeTarget = DefaultFeeTarget
	}
	return nil
}

type service struct {
	client    *restclient.Client
	network   *chaincfg.Params
	estimator wallet.FeeEstimator
	feeTarget int

	log func(format string, a ...interface{})
}

// NewService returns a chain data provider for Esplora compatible REST
// APIs, like those of blockstream.info and mempool.space.
func NewService(args ServiceArgs) (ports.ChainDataProvider, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("esplora: %s", format)
		log.Debugf(format, a...)
	}

	return &service{
		client:    restclient.New(args.URL, args.RequestTimeout, args.MaxRetries),
		network:   args.Network,
		estimator: wallet.NewFeeEstimator(),
		feeTarget: args.FeeTarget,
		log:       logFn,
	}, nil
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (uint64, error) {
	info := addressInfo{}
	if err := s.client.Get(ctx, addressPath(address), &info); err != nil {
		return 0, domain.NewBackendError("get balance", err)
	}
	return info.balance(), nil
}

func (s *service) GetUtxos(
	ctx context.Context, address string,
) ([]domain.Utxo, error) {
	tipHeight, err := s.tipHeight(ctx)
	if err != nil {
		return nil, domain.NewBackendError("get utxos", err)
	}

	utxos := make([]utxo, 0)
	if err := s.client.Get(ctx, addressPath(address)+"/utxo", &utxos); err != nil {
		return nil, domain.NewBackendError("get utxos", err)
	}

	result := make([]domain.Utxo, 0, len(utxos))
	for _, u := range utxos {
		result = append(result, domain.Utxo{
			UtxoKey:       domain.UtxoKey{TxID: u.TxID, VOut: u.Vout},
			Value:         u.Value,
			Confirmations: u.Status.confirmations(tipHeight),
			Address:       address,
		})
	}
	s.log("fetched %d utxos for address %s", len(result), address)
	return result, nil
}

func (s *service) GetHistory(
	ctx context.Context, address string,
) ([]domain.TxSummary, error) {
	tipHeight, err := s.tipHeight(ctx)
	if err != nil {
		return nil, domain.NewBackendError("get history", err)
	}

	txs := make([]tx, 0)
	if err := s.client.Get(ctx, addressPath(address)+"/txs", &txs); err != nil {
		return nil, domain.NewBackendError("get history", err)
	}

	history := make([]domain.TxSummary, 0, len(txs))
	for _, t := range txs {
		history = append(history, domain.TxSummary{
			TxID:          t.TxID,
			Amount:        t.netAmount(address),
			Fee:           t.Fee,
			Confirmations: t.Status.confirmations(tipHeight),
			BlockHeight:   t.Status.BlockHeight,
			BlockTime:     t.Status.BlockTime,
		})
	}
	return history, nil
}

func (s *service) EstimateFee(
	ctx context.Context, numInputs, numOutputs int,
) (uint64, error) {
	size, err := s.estimator.TransactionSize(numInputs, numOutputs)
	if err != nil {
		return 0, err
	}

	estimates := feeEstimates{}
	if err := s.client.Get(ctx, "/fee-estimates", &estimates); err != nil {
		return 0, domain.NewBackendError("estimate fee", err)
	}

	satsPerByte := estimates.rateForTarget(s.feeTarget)
	s.log("fee rate for target %d: %d sats/byte", s.feeTarget, satsPerByte)
	return size * satsPerByte, nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	body, err := s.client.Post(
		ctx, "/tx", "text/plain", strings.NewReader(txHex),
	)
	if err != nil {
		var httpErr *restclient.HTTPError
		if restclient.IsClientError(err) && errors.As(err, &httpErr) {
			return "", &domain.BroadcastRejectedError{Message: httpErr.Body}
		}
		return "", domain.NewBackendError("broadcast", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (s *service) IsValidAddress(
	ctx context.Context, address string,
) (bool, error) {
	if strings.TrimSpace(address) == "" {
		return false, nil
	}
	if err := s.client.Get(ctx, addressPath(address), nil); err != nil {
		if restclient.IsClientError(err) {
			return false, nil
		}
		return false, domain.NewBackendError("validate address", err)
	}
	return true, nil
}

func (s *service) Close() {}

func (s *service) tipHeight(ctx context.Context) (uint64, error) {
	body, err := s.client.GetRaw(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse tip height: %w", err)
	}
	return height, nil
}

// rateForTarget returns the rate for the given target rounded up, or the one
// for the closest greater target if missing.
func (e feeEstimates) rateForTarget(target int) uint64 {
	targets := make([]int, 0, len(e))
	for k := range e {
		if t, err := strconv.Atoi(k); err == nil {
			targets = append(targets, t)
		}
	}
	sort.Ints(targets)

	for _, t := range targets {
		if t >= target {
			rate := uint64(math.Ceil(e[strconv.Itoa(t)]))
			if rate < minSatsPerByte {
				return minSatsPerByte
			}
			return rate
		}
	}
	return minSatsPerByte
}

func addressPath(address string) string {
	return "/address/" + url.PathEscape(address)
}
