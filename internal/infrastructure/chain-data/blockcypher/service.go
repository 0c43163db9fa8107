package blockcypher_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
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
	DefaultTestnetURL     = "https://api.blockcypher.com/v1/btc/test3"
	DefaultMainnetURL     = "https://api.blockcypher.com/v1/btc/main"
	DefaultRequestTimeout = 15 * time.Second

	utxosLimit   = 2000
	historyLimit = 50
)

var (
	ErrMissingURL     = fmt.Errorf("missing blockcypher url")
	ErrInvalidURL     = fmt.Errorf("invalid blockcypher url")
	ErrMissingNetwork = fmt.Errorf("missing network")
)

type ServiceArgs struct {
	URL            string
	Token          string
	Network        *chaincfg.Params
	RequestTimeout time.Duration
	MaxRetries     int
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
		a.MaxRetries = 0
	}
	return nil
}

type service struct {
	client    *restclient.Client
	token     string
	network   *chaincfg.Params
	estimator wallet.FeeEstimator

	log func(format string, a ...interface{})
}

// NewService returns a chain data provider for the BlockCypher REST API.
func NewService(args ServiceArgs) (ports.ChainDataProvider, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("blockcypher: %s", format)
		log.Debugf(format, a...)
	}

	return &service{
		client:    restclient.New(args.URL, args.RequestTimeout, args.MaxRetries),
		token:     args.Token,
		network:   args.Network,
		estimator: wallet.NewFeeEstimator(),
		log:       logFn,
	}, nil
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (uint64, error) {
	resp := addressBalance{}
	path := s.path(addressPath(address)+"/balance", nil)
	if err := s.client.Get(ctx, path, &resp); err != nil {
		return 0, domain.NewBackendError("get balance", err)
	}
	if resp.FinalBalance < 0 {
		return 0, nil
	}
	return uint64(resp.FinalBalance), nil
}

func (s *service) GetUtxos(
	ctx context.Context, address string,
) ([]domain.Utxo, error) {
	resp := addressUtxos{}
	path := s.path(addressPath(address), url.Values{
		"unspentOnly": {"true"},
		"limit":       {fmt.Sprint(utxosLimit)},
	})
	if err := s.client.Get(ctx, path, &resp); err != nil {
		return nil, domain.NewBackendError("get utxos", err)
	}
	if resp.HasMore {
		s.log("address %s has more than %d utxos, list is truncated", address, utxosLimit)
	}

	refs := append(resp.TxRefs, resp.UnconfirmedTxRefs...)
	utxos := make([]domain.Utxo, 0, len(refs))
	for _, ref := range refs {
		if ref.Spent || ref.TxOutputN < 0 {
			continue
		}
		utxos = append(utxos, domain.Utxo{
			UtxoKey: domain.UtxoKey{
				TxID: ref.TxHash,
				VOut: uint32(ref.TxOutputN),
			},
			Value:         ref.Value,
			Confirmations: ref.Confirmations,
			Address:       address,
		})
	}
	s.log("fetched %d utxos for address %s", len(utxos), address)
	return utxos, nil
}

func (s *service) GetHistory(
	ctx context.Context, address string,
) ([]domain.TxSummary, error) {
	resp := addressFull{}
	path := s.path(addressPath(address)+"/full", url.Values{
		"limit": {fmt.Sprint(historyLimit)},
	})
	if err := s.client.Get(ctx, path, &resp); err != nil {
		return nil, domain.NewBackendError("get history", err)
	}

	history := make([]domain.TxSummary, 0, len(resp.Txs))
	for _, t := range resp.Txs {
		history = append(history, domain.TxSummary{
			TxID:          t.Hash,
			Amount:        t.netAmount(address),
			Fee:           t.Fees,
			Confirmations: t.Confirmations,
			BlockHeight:   t.blockHeight(),
			BlockTime:     t.blockTime(),
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

	info := chainInfo{}
	if err := s.client.Get(ctx, s.path("", nil), &info); err != nil {
		return 0, domain.NewBackendError("estimate fee", err)
	}

	satsPerByte := uint64(math.Ceil(float64(info.MediumFeePerKb) / 1000))
	if satsPerByte < 1 {
		satsPerByte = 1
	}
	s.log("medium fee rate: %d sats/byte", satsPerByte)
	return size * satsPerByte, nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	body, _ := json.Marshal(pushTxRequest{txHex})
	respBody, err := s.client.Post(
		ctx, s.path("/txs/push", nil), "application/json", bytes.NewReader(body),
	)
	if err != nil {
		var httpErr *restclient.HTTPError
		if restclient.IsClientError(err) && errors.As(err, &httpErr) {
			return "", &domain.BroadcastRejectedError{
				Message: parseErrorMessage(httpErr.Body),
			}
		}
		return "", domain.NewBackendError("broadcast", err)
	}

	resp := pushTxResponse{}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", domain.NewBackendError(
			"broadcast", fmt.Errorf("failed to parse response: %w", err),
		)
	}
	return resp.Tx.Hash, nil
}

func (s *service) IsValidAddress(
	ctx context.Context, address string,
) (bool, error) {
	if strings.TrimSpace(address) == "" {
		return false, nil
	}
	path := s.path(addressPath(address)+"/balance", nil)
	if err := s.client.Get(ctx, path, nil); err != nil {
		if restclient.IsClientError(err) {
			return false, nil
		}
		return false, domain.NewBackendError("validate address", err)
	}
	return true, nil
}

func (s *service) Close() {}

// path returns the given path with the given query params and the api
// token, if any.
func (s *service) path(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if s.token != "" {
		params.Set("token", s.token)
	}
	if len(params) <= 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func addressPath(address string) string {
	return "/addrs/" + url.PathEscape(address)
}

func parseErrorMessage(body string) string {
	resp := errorResponse{}
	if err := json.Unmarshal([]byte(body), &resp); err != nil || resp.Error == "" {
		return body
	}
	return resp.Error
}
