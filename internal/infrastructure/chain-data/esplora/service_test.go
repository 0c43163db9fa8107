package esplora_provider_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	esplora_provider "github.com/vulpemventures/dinghy/internal/infrastructure/chain-data/esplora"
)

const (
	address  = "mrcNu71ztWjAQA6ww9kHiW3zBWSQidHXTQ"
	other    = "n31WD8pkfAjg2APV78GnbDTdZb1QonBi5D"
	txid     = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	prevTxid = "fa84eb6806daf1b3c495ed30554d80573a39335b2993b66b3cc1afaa53816e47"
)

func TestGetBalance(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"/address/" + address: func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"address": "`+address+`",
				"chain_stats": {"funded_txo_sum": 80000, "spent_txo_sum": 30000, "tx_count": 3},
				"mempool_stats": {"funded_txo_sum": 1000, "spent_txo_sum": 0, "tx_count": 1}
			}`)
		},
	})

	balance, err := svc.GetBalance(context.Background(), address)
	require.NoError(t, err)
	require.Equal(t, uint64(51000), balance)
}

func TestGetUtxos(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"/blocks/tip/height": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "2500100")
		},
		"/address/" + address + "/utxo": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[
				{"txid": "`+txid+`", "vout": 1, "value": 50000, "status": {"confirmed": true, "block_height": 2500091}},
				{"txid": "`+prevTxid+`", "vout": 0, "value": 30000, "status": {"confirmed": false}}
			]`)
		},
	})

	utxos, err := svc.GetUtxos(context.Background(), address)
	require.NoError(t, err)
	require.Equal(t, []domain.Utxo{
		{
			UtxoKey:       domain.UtxoKey{TxID: txid, VOut: 1},
			Value:         50000,
			Confirmations: 10,
			Address:       address,
		},
		{
			UtxoKey: domain.UtxoKey{TxID: prevTxid, VOut: 0},
			Value:   30000,
			Address: address,
		},
	}, utxos)
}

func TestGetHistory(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"/blocks/tip/height": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "100")
		},
		"/address/" + address + "/txs": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{
				"txid": "`+txid+`",
				"fee": 1130,
				"vin": [{"txid": "`+prevTxid+`", "vout": 0, "prevout": {"scriptpubkey_address": "`+address+`", "value": 50000}}],
				"vout": [
					{"scriptpubkey_address": "`+other+`", "value": 40000},
					{"scriptpubkey_address": "`+address+`", "value": 8870}
				],
				"status": {"confirmed": true, "block_height": 99, "block_time": 1700000000}
			}]`)
		},
	})

	history, err := svc.GetHistory(context.Background(), address)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.TxSummary{
		TxID:          txid,
		Amount:        -41130,
		Fee:           1130,
		Confirmations: 2,
		BlockHeight:   99,
		BlockTime:     1700000000,
	}, history[0])
}

func TestEstimateFee(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"/fee-estimates": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"1": 20.5, "3": 10.2, "10": 4.1, "144": 1.0}`)
		},
	})

	// target 6 is missing, the one for 10 blocks is used.
	fee, err := svc.EstimateFee(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(226*5), fee)

	_, err = svc.EstimateFee(context.Background(), 0, 2)
	require.Error(t, err)
}

func TestBroadcastTransaction(t *testing.T) {
	t.Parallel()

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t, map[string]http.HandlerFunc{
			"/tx": func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if r.Method != http.MethodPost || string(body) != "0200beef" {
					http.Error(w, "unexpected request", http.StatusBadRequest)
					return
				}
				fmt.Fprint(w, txid+"\n")
			},
		})

		id, err := svc.BroadcastTransaction(context.Background(), "0200beef")
		require.NoError(t, err)
		require.Equal(t, txid, id)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t, map[string]http.HandlerFunc{
			"/tx": func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "sendrawtransaction RPC error: min relay fee not met", http.StatusBadRequest)
			},
		})

		_, err := svc.BroadcastTransaction(context.Background(), "0200beef")
		require.ErrorIs(t, err, domain.ErrBroadcastRejected)
		require.Contains(t, err.Error(), "min relay fee not met")
	})

	t.Run("server_error_not_retried", func(t *testing.T) {
		t.Parallel()

		svc, calls := newTestService(t, map[string]http.HandlerFunc{
			"/tx": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		})

		_, err := svc.BroadcastTransaction(context.Background(), "0200beef")
		require.ErrorIs(t, err, domain.ErrBackend)
		require.NotErrorIs(t, err, domain.ErrBroadcastRejected)
		require.Equal(t, int32(1), atomic.LoadInt32(calls))
	})
}

func TestIsValidAddress(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"/address/" + address: func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"address": "`+address+`"}`)
		},
		"/address/invalid": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Invalid Bitcoin address", http.StatusBadRequest)
		},
		"/address/broken": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	ok, err := svc.IsValidAddress(context.Background(), address)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.IsValidAddress(context.Background(), "invalid")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.IsValidAddress(context.Background(), "")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.IsValidAddress(context.Background(), "broken")
	require.ErrorIs(t, err, domain.ErrBackend)
}

func TestNewServiceInvalidArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args        esplora_provider.ServiceArgs
		expectedErr error
	}{
		{esplora_provider.ServiceArgs{Network: &chaincfg.TestNet3Params}, esplora_provider.ErrMissingURL},
		{esplora_provider.ServiceArgs{URL: "localhost", Network: &chaincfg.TestNet3Params}, esplora_provider.ErrInvalidURL},
		{esplora_provider.ServiceArgs{URL: "http://localhost:3000"}, esplora_provider.ErrMissingNetwork},
	}
	for _, tt := range tests {
		_, err := esplora_provider.NewService(tt.args)
		require.ErrorIs(t, err, tt.expectedErr)
	}
}

func newTestService(
	t *testing.T, routes map[string]http.HandlerFunc,
) (ports.ChainDataProvider, *int32) {
	var calls int32
	mux := http.NewServeMux()
	for path, handler := range routes {
		handler := handler
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			handler(w, r)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc, err := esplora_provider.NewService(esplora_provider.ServiceArgs{
		URL:            server.URL,
		Network:        &chaincfg.TestNet3Params,
		RequestTimeout: time.Second,
		MaxRetries:     2,
	})
	require.NoError(t, err)
	return svc, &calls
}
