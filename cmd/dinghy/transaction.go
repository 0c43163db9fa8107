package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/dinghy/internal/core/application"
	"github.com/vulpemventures/dinghy/internal/core/domain"
)

var (
	sendFrom       string
	sendTo         string
	sendAmount     string
	sendSats       uint64
	credentialFile string
	passphraseFile string

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "send funds from an address to another one",
		Long: "this command lets you send an amount, either in BTC (--amount) or " +
			"in sats (--sats), from the given address to the recipient. The tx " +
			"is signed with the WIF key or mnemonic read from --credential-file " +
			"(use - to read it from stdin)",
		Args: cobra.NoArgs,
		RunE: send,
	}
	txCmd = &cobra.Command{
		Use:   "tx <id>",
		Short: "get a send record",
		Long:  "this command shows the record of the send attempt with the given id",
		Args:  cobra.ExactArgs(1),
		RunE:  getTx,
	}
	txsCmd = &cobra.Command{
		Use:   "txs <address>",
		Short: "list the send records of an address",
		Long:  "this command lists all the send attempts made from the given address, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE:  listTxs,
	}
)

func init() {
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "address to send funds from")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "address of the recipient")
	sendCmd.Flags().StringVar(&sendAmount, "amount", "", "amount to send in BTC")
	sendCmd.Flags().Uint64Var(&sendSats, "sats", 0, "amount to send in sats")
	sendCmd.Flags().StringVar(
		&credentialFile, "credential-file", "",
		"path of the file containing the WIF key or the mnemonic controlling "+
			"the sender address, - for stdin",
	)
	sendCmd.Flags().StringVar(
		&passphraseFile, "passphrase-file", "",
		"path of the file containing the optional mnemonic passphrase",
	)
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("credential-file")
}

func send(cmd *cobra.Command, _ []string) error {
	amount, err := parseAmount(sendAmount, sendSats)
	if err != nil {
		return err
	}
	credential, err := readCredential(cmd, credentialFile, passphraseFile)
	if err != nil {
		return err
	}

	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	tx, err := svc.Send(ctx, application.SendRequest{
		From:       sendFrom,
		To:         sendTo,
		Amount:     amount,
		Credential: credential,
	})
	if tx != nil {
		if printErr := printJSON(cmd, newTxView(tx)); printErr != nil {
			return printErr
		}
	}
	return err
}

func getTx(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	tx, err := svc.GetTransaction(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, newTxView(tx))
}

func listTxs(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	txs, err := svc.ListTransactions(ctx, args[0])
	if err != nil {
		return err
	}
	views := make([]txView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTxView(tx))
	}
	return printJSON(cmd, views)
}

type txInputView struct {
	TxID  string `json:"txid"`
	VOut  uint32 `json:"vout"`
	Value uint64 `json:"value"`
}

type txOutputView struct {
	Address  string `json:"address"`
	Value    uint64 `json:"value"`
	Script   string `json:"script,omitempty"`
	IsChange bool   `json:"is_change,omitempty"`
}

type txView struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	FailureMessage string         `json:"failure_message,omitempty"`
	Sender         string         `json:"sender"`
	Recipient      string         `json:"recipient"`
	Amount         string         `json:"amount"`
	SatsPerByte    uint64         `json:"sats_per_byte"`
	Fee            uint64         `json:"fee,omitempty"`
	Inputs         []txInputView  `json:"inputs,omitempty"`
	Outputs        []txOutputView `json:"outputs,omitempty"`
	TxID           string         `json:"txid,omitempty"`
	TxHex          string         `json:"tx_hex,omitempty"`
	BroadcastID    string         `json:"broadcast_id,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

func newTxView(tx *domain.Transaction) txView {
	inputs := make([]txInputView, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		inputs = append(inputs, txInputView{in.TxID, in.VOut, in.Value})
	}
	outputs := make([]txOutputView, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		outputs = append(outputs, txOutputView{
			out.Address, out.Value, hex.EncodeToString(out.Script), out.IsChange,
		})
	}
	return txView{
		ID:             tx.ID,
		Status:         tx.Status.String(),
		FailureReason:  tx.FailureReason.String(),
		FailureMessage: tx.FailureMessage,
		Sender:         tx.Sender,
		Recipient:      tx.Recipient,
		Amount:         fmt.Sprintf("%s BTC", formatBtc(tx.Amount)),
		SatsPerByte:    tx.SatsPerByte,
		Fee:            tx.Fee,
		Inputs:         inputs,
		Outputs:        outputs,
		TxID:           tx.TxID,
		TxHex:          tx.TxHex,
		BroadcastID:    tx.BroadcastID,
		CreatedAt:      formatTime(tx.CreatedAt),
		UpdatedAt:      formatTime(tx.UpdatedAt),
	}
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
