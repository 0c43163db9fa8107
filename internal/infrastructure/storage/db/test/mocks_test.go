package db_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/vulpemventures/dinghy/internal/core/domain"
)

var (
	ctx                   = context.Background()
	errSomethingWentWrong = fmt.Errorf("something went wrong")
)

func randomTx(sender string) *domain.Transaction {
	tx := domain.NewTransaction(
		sender, randomHex(20), randomValue(), uint64(randomIntInRange(1, 20)),
	)
	// Postgres stores timestamps with second precision as any other repo.
	tx.CreatedAt = int64(randomIntInRange(1, 1_000_000))
	tx.UpdatedAt = tx.CreatedAt
	return tx
}

func randomInsAndOuts(tx *domain.Transaction) (
	[]domain.TxInput, []domain.TxOutput, uint64,
) {
	inputs := []domain.TxInput{
		{UtxoKey: domain.UtxoKey{TxID: randomHex(32), VOut: randomVout()}, Value: tx.Amount + 10000},
	}
	outputs := []domain.TxOutput{
		{Address: tx.Recipient, Value: tx.Amount, Script: randomBytes(25)},
		{Address: tx.Sender, Value: 8870, Script: randomBytes(25), IsChange: true},
	}
	return inputs, outputs, 10000 - 8870
}

func randomHex(len int) string {
	return hex.EncodeToString(randomBytes(len))
}

func randomVout() uint32 {
	return uint32(randomIntInRange(0, 15))
}

func randomValue() uint64 {
	return uint64(randomIntInRange(1000, 100000000))
}

func randomBytes(len int) []byte {
	b := make([]byte, len)
	rand.Read(b)
	return b
}

func randomIntInRange(min, max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	return min + int(n.Int64())
}
