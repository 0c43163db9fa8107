package postgresdb

const (
	insertTransactionQuery = `
INSERT INTO send_transaction (
	id, sender, recipient, amount, sats_per_byte, fee, status,
	failure_reason, failure_message, tx_id, tx_hex, broadcast_id,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateTransactionQuery = `
UPDATE send_transaction SET
	fee = $2, status = $3, failure_reason = $4, failure_message = $5,
	tx_id = $6, tx_hex = $7, broadcast_id = $8, updated_at = $9
WHERE id = $1`

	selectTransactionColumns = `
SELECT id, sender, recipient, amount, sats_per_byte, fee, status,
	failure_reason, failure_message, tx_id, tx_hex, broadcast_id,
	created_at, updated_at
FROM send_transaction`

	selectTransactionQuery          = selectTransactionColumns + ` WHERE id = $1`
	selectTransactionForUpdateQuery = selectTransactionQuery + ` FOR UPDATE`
	selectTransactionsBySenderQuery = selectTransactionColumns +
		` WHERE sender = $1 ORDER BY created_at, id`

	insertInputQuery = `
INSERT INTO send_transaction_input (
	fk_tx_id, idx, utxo_tx_id, utxo_vout, value, unlocking_script
) VALUES ($1, $2, $3, $4, $5, $6)`

	insertOutputQuery = `
INSERT INTO send_transaction_output (
	fk_tx_id, idx, address, value, script, is_change
) VALUES ($1, $2, $3, $4, $5, $6)`

	selectInputsQuery = `
SELECT utxo_tx_id, utxo_vout, value, unlocking_script
FROM send_transaction_input WHERE fk_tx_id = $1 ORDER BY idx`

	selectOutputsQuery = `
SELECT address, value, script, is_change
FROM send_transaction_output WHERE fk_tx_id = $1 ORDER BY idx`

	deleteInputsQuery  = `DELETE FROM send_transaction_input WHERE fk_tx_id = $1`
	deleteOutputsQuery = `DELETE FROM send_transaction_output WHERE fk_tx_id = $1`

	resetQuery = `TRUNCATE send_transaction CASCADE`
)
