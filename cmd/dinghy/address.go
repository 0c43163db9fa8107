package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	feeNumInputs  int
	feeNumOutputs int
	feeBackend    bool

	balanceCmd = &cobra.Command{
		Use:   "balance <address>",
		Short: "get the balance of an address",
		Long:  "this command shows the confirmed plus unconfirmed balance of the given address",
		Args:  cobra.ExactArgs(1),
		RunE:  getBalance,
	}
	utxosCmd = &cobra.Command{
		Use:   "utxos <address>",
		Short: "list the utxos of an address",
		Args:  cobra.ExactArgs(1),
		RunE:  getUtxos,
	}
	historyCmd = &cobra.Command{
		Use:   "history <address>",
		Short: "list the txs of an address",
		Long:  "this command lists the txs involving the given address, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  getHistory,
	}
	feeCmd = &cobra.Command{
		Use:   "fee",
		Short: "estimate the fee of a tx",
		Long: "this command shows the fee of a tx with the given number of inputs " +
			"and outputs at the configured fee rate. Use --backend to also get " +
			"the advisory estimation of the chain data provider",
		Args: cobra.NoArgs,
		RunE: estimateFee,
	}
)

func init() {
	feeCmd.Flags().IntVar(&feeNumInputs, "inputs", 1, "number of inputs")
	feeCmd.Flags().IntVar(&feeNumOutputs, "outputs", 2, "number of outputs")
	feeCmd.Flags().BoolVar(
		&feeBackend, "backend", false,
		"also get the fee estimation of the chain data provider",
	)
}

func getBalance(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	balance, err := svc.GetBalance(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"address": args[0],
		"sats":    balance,
		"btc":     formatBtc(balance),
	})
}

func getUtxos(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	utxos, err := svc.GetUtxos(ctx, args[0])
	if err != nil {
		return err
	}

	list := make([]map[string]interface{}, 0, len(utxos))
	for _, u := range utxos {
		list = append(list, map[string]interface{}{
			"txid":          u.TxID,
			"vout":          u.VOut,
			"value":         u.Value,
			"confirmations": u.Confirmations,
		})
	}
	return printJSON(cmd, map[string]interface{}{
		"address": args[0],
		"total":   utxos.Total(),
		"utxos":   list,
	})
}

func getHistory(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	history, err := svc.GetHistory(ctx, args[0])
	if err != nil {
		return err
	}

	list := make([]map[string]interface{}, 0, len(history))
	for _, tx := range history {
		entry := map[string]interface{}{
			"txid":          tx.TxID,
			"amount":        tx.Amount,
			"fee":           tx.Fee,
			"confirmations": tx.Confirmations,
		}
		if tx.IsConfirmed() {
			entry["block_height"] = tx.BlockHeight
			if tx.BlockTime > 0 {
				entry["block_time"] = time.Unix(tx.BlockTime, 0).UTC().Format(time.RFC3339)
			}
		}
		list = append(list, entry)
	}
	return printJSON(cmd, list)
}

func estimateFee(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	estimate, err := svc.EstimateFee(feeNumInputs, feeNumOutputs)
	if err != nil {
		return err
	}

	result := map[string]interface{}{
		"inputs":        estimate.NumInputs,
		"outputs":       estimate.NumOutputs,
		"size":          estimate.Size,
		"sats_per_byte": estimate.SatsPerByte,
		"fee":           estimate.Fee,
		"max_fee":       estimate.MaxFee,
		"dust_amount":   estimate.DustAmount,
	}
	if feeBackend {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		backendFee, err := svc.EstimateBackendFee(ctx, feeNumInputs, feeNumOutputs)
		if err != nil {
			return err
		}
		result["backend_fee"] = backendFee
	}
	return printJSON(cmd, result)
}
