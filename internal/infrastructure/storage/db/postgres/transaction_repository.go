package postgresdb

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"
)

const uniqueViolation = "23505"

type txRepositoryPg struct {
	*txevents.Publisher

	pgxPool *pgxpool.Pool
}

func newTxRepositoryPgImpl(pgxPool *pgxpool.Pool) *txRepositoryPg {
	return &txRepositoryPg{
		Publisher: txevents.NewPublisher(),
		pgxPool:   pgxPool,
	}
}

func (t *txRepositoryPg) AddTransaction(
	ctx context.Context, trx *domain.Transaction,
) (bool, error) {
	tx, err := t.pgxPool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx, insertTransactionQuery,
		trx.ID, trx.Sender, trx.Recipient, int64(trx.Amount),
		int64(trx.SatsPerByte), int64(trx.Fee), int(trx.Status),
		int(trx.FailureReason), trx.FailureMessage, trx.TxID, trx.TxHex,
		trx.BroadcastID, trx.CreatedAt, trx.UpdatedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}

	if err := insertInsAndOuts(ctx, tx, trx); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	t.Publish(domain.TransactionAdded, trx)
	return true, nil
}

func (t *txRepositoryPg) GetTransaction(
	ctx context.Context, id string,
) (*domain.Transaction, error) {
	return getTx(ctx, t.pgxPool, selectTransactionQuery, id)
}

func (t *txRepositoryPg) GetTransactionsBySender(
	ctx context.Context, sender string,
) ([]*domain.Transaction, error) {
	rows, err := t.pgxPool.Query(ctx, selectTransactionsBySenderQuery, sender)
	if err != nil {
		return nil, err
	}

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		txs = append(txs, tx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, tx := range txs {
		if err := loadInsAndOuts(ctx, t.pgxPool, tx); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

func (t *txRepositoryPg) UpdateTransaction(
	ctx context.Context, id string,
	updateFn func(tx *domain.Transaction) (*domain.Transaction, error),
) error {
	tx, err := t.pgxPool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	trx, err := getTx(ctx, tx, selectTransactionForUpdateQuery, id)
	if err != nil {
		return err
	}

	updatedTx, err := updateFn(trx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx, updateTransactionQuery,
		id, int64(updatedTx.Fee), int(updatedTx.Status),
		int(updatedTx.FailureReason), updatedTx.FailureMessage,
		updatedTx.TxID, updatedTx.TxHex, updatedTx.BroadcastID,
		updatedTx.UpdatedAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, deleteInputsQuery, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, deleteOutputsQuery, id); err != nil {
		return err
	}
	if err := insertInsAndOuts(ctx, tx, updatedTx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	t.Publish(domain.EventTypeForStatus(updatedTx.Status), updatedTx)
	return nil
}

func (t *txRepositoryPg) reset() {
	if _, err := t.pgxPool.Exec(context.Background(), resetQuery); err != nil {
		log.WithError(err).Warn("postgres: failed to reset transactions")
	}
}

func (t *txRepositoryPg) close() {
	t.Publisher.Close()
}

// querier is satisfied by both the pool and a db transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func getTx(
	ctx context.Context, q querier, query, id string,
) (*domain.Transaction, error) {
	tx, err := scanTx(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	if err := loadInsAndOuts(ctx, q, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func scanTx(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                       domain.Transaction
		amount, satsPerByte, fee int64
		status, failureReason    int
	)
	if err := row.Scan(
		&tx.ID, &tx.Sender, &tx.Recipient, &amount, &satsPerByte, &fee,
		&status, &failureReason, &tx.FailureMessage, &tx.TxID, &tx.TxHex,
		&tx.BroadcastID, &tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tx.Amount = uint64(amount)
	tx.SatsPerByte = uint64(satsPerByte)
	tx.Fee = uint64(fee)
	tx.Status = domain.TxStatus(status)
	tx.FailureReason = domain.FailureReason(failureReason)
	return &tx, nil
}

func loadInsAndOuts(
	ctx context.Context, q querier, tx *domain.Transaction,
) error {
	inRows, err := q.Query(ctx, selectInputsQuery, tx.ID)
	if err != nil {
		return err
	}
	for inRows.Next() {
		var (
			in    domain.TxInput
			vout  int32
			value int64
		)
		if err := inRows.Scan(
			&in.TxID, &vout, &value, &in.UnlockingScript,
		); err != nil {
			inRows.Close()
			return err
		}
		in.VOut = uint32(vout)
		in.Value = uint64(value)
		tx.Inputs = append(tx.Inputs, in)
	}
	inRows.Close()
	if err := inRows.Err(); err != nil {
		return err
	}

	outRows, err := q.Query(ctx, selectOutputsQuery, tx.ID)
	if err != nil {
		return err
	}
	defer outRows.Close()
	for outRows.Next() {
		var (
			out   domain.TxOutput
			value int64
		)
		if err := outRows.Scan(
			&out.Address, &value, &out.Script, &out.IsChange,
		); err != nil {
			return err
		}
		out.Value = uint64(value)
		tx.Outputs = append(tx.Outputs, out)
	}
	return outRows.Err()
}

func insertInsAndOuts(
	ctx context.Context, q querier, tx *domain.Transaction,
) error {
	for i, in := range tx.Inputs {
		if _, err := q.Exec(
			ctx, insertInputQuery,
			tx.ID, i, in.TxID, int32(in.VOut), int64(in.Value),
			in.UnlockingScript,
		); err != nil {
			return err
		}
	}
	for i, out := range tx.Outputs {
		if _, err := q.Exec(
			ctx, insertOutputQuery,
			tx.ID, i, out.Address, int64(out.Value), out.Script, out.IsChange,
		); err != nil {
			return err
		}
	}
	return nil
}
