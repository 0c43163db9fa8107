package metrics_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/inmemory"
	"github.com/vulpemventures/dinghy/internal/metrics"
)

const (
	sender    = "mrcNu71ztWjAQA6ww9kHiW3zBWSQidHXTQ"
	recipient = "n31WD8pkfAjg2APV78GnbDTdZb1QonBi5D"
	txid      = "fa84eb6806daf1b3c495ed30554d80573a39335b2993b66b3cc1afaa53816e47"
)

func TestMetricsFromTxEvents(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	statsDir := t.TempDir()

	svc, err := metrics.NewService(metrics.ServiceOpts{
		StatsDir: statsDir,
		Registry: registry,
	})
	require.NoError(t, err)

	rm := inmemory.NewRepoManager()
	defer rm.Close()
	svc.Start(rm)
	repo := rm.TransactionRepository()

	broadcasted := domain.NewTransaction(sender, recipient, 40000, 5)
	_, err = repo.AddTransaction(ctx, broadcasted)
	require.NoError(t, err)
	err = repo.UpdateTransaction(
		ctx, broadcasted.ID,
		func(tx *domain.Transaction) (*domain.Transaction, error) {
			if err := tx.Fund(); err != nil {
				return nil, err
			}
			if err := tx.Assemble(
				[]domain.TxInput{{UtxoKey: domain.UtxoKey{TxID: txid}, Value: 50000}},
				[]domain.TxOutput{
					{Address: recipient, Value: 40000},
					{Address: sender, Value: 8870, IsChange: true},
				},
				1130,
			); err != nil {
				return nil, err
			}
			if err := tx.Sign(txid, "00", [][]byte{{0x01}}); err != nil {
				return nil, err
			}
			if err := tx.Broadcast(txid); err != nil {
				return nil, err
			}
			return tx, nil
		},
	)
	require.NoError(t, err)

	failed := domain.NewTransaction(sender, recipient, 60000, 5)
	_, err = repo.AddTransaction(ctx, failed)
	require.NoError(t, err)
	err = repo.UpdateTransaction(
		ctx, failed.ID,
		func(tx *domain.Transaction) (*domain.Transaction, error) {
			if err := tx.Fail(domain.FailureInsufficientFunds, "shortfall"); err != nil {
				return nil, err
			}
			return tx, nil
		},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		count, err := testutil.GatherAndCount(
			registry, "dinghy_send_total", "dinghy_send_started_total",
		)
		if err != nil || count != 3 {
			return false
		}
		started, err := gatherValue(registry, "dinghy_send_started_total")
		return err == nil && started == 2
	}, 2*time.Second, 10*time.Millisecond)

	expected := `
# HELP dinghy_send_total Number of completed send attempts by final status and failure reason.
# TYPE dinghy_send_total counter
dinghy_send_total{reason="none",status="broadcast"} 1
dinghy_send_total{reason="insufficient-funds",status="failed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(
		registry, strings.NewReader(expected), "dinghy_send_total",
	))

	path, err := svc.Dump()
	require.NoError(t, err)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(buf), "dinghy_send_fee_sats_sum 1130")
	require.Contains(t, string(buf), "dinghy_send_inputs_count 1")
}

func TestNewServiceReusesRegisteredCollectors(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	opts := metrics.ServiceOpts{StatsDir: t.TempDir(), Registry: registry}

	_, err := metrics.NewService(opts)
	require.NoError(t, err)
	_, err = metrics.NewService(opts)
	require.NoError(t, err)
}

func TestNewServiceInvalidOpts(t *testing.T) {
	t.Parallel()

	svc, err := metrics.NewService(metrics.ServiceOpts{})
	require.ErrorIs(t, err, metrics.ErrMissingStatsDir)
	require.Nil(t, svc)
}

func gatherValue(registry *prometheus.Registry, name string) (float64, error) {
	mfs, err := registry.Gather()
	if err != nil {
		return 0, err
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total, nil
	}
	return 0, nil
}
