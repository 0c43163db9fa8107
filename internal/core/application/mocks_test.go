package application_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vulpemventures/dinghy/internal/core/domain"
)

type mockChainDataProvider struct {
	mock.Mock
}

func (m *mockChainDataProvider) GetBalance(
	ctx context.Context, address string,
) (uint64, error) {
	args := m.Called(ctx, address)
	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockChainDataProvider) GetUtxos(
	ctx context.Context, address string,
) ([]domain.Utxo, error) {
	args := m.Called(ctx, address)
	var res []domain.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]domain.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockChainDataProvider) GetHistory(
	ctx context.Context, address string,
) ([]domain.TxSummary, error) {
	args := m.Called(ctx, address)
	var res []domain.TxSummary
	if a := args.Get(0); a != nil {
		res = a.([]domain.TxSummary)
	}
	return res, args.Error(1)
}

func (m *mockChainDataProvider) EstimateFee(
	ctx context.Context, numInputs, numOutputs int,
) (uint64, error) {
	args := m.Called(ctx, numInputs, numOutputs)
	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockChainDataProvider) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	args := m.Called(ctx, txHex)
	return args.String(0), args.Error(1)
}

func (m *mockChainDataProvider) IsValidAddress(
	ctx context.Context, address string,
) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *mockChainDataProvider) Close() {
	m.Called()
}
