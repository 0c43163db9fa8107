package blockcypher_provider

import "time"

type chainInfo struct {
	Name           string `json:"name"`
	Height         uint64 `json:"height"`
	HighFeePerKb   uint64 `json:"high_fee_per_kb"`
	MediumFeePerKb uint64 `json:"medium_fee_per_kb"`
	LowFeePerKb    uint64 `json:"low_fee_per_kb"`
}

type addressBalance struct {
	Address            string `json:"address"`
	Balance            int64  `json:"balance"`
	UnconfirmedBalance int64  `json:"unconfirmed_balance"`
	FinalBalance       int64  `json:"final_balance"`
}

type addressUtxos struct {
	Address           string  `json:"address"`
	TxRefs            []txRef `json:"txrefs"`
	UnconfirmedTxRefs []txRef `json:"unconfirmed_txrefs"`
	HasMore           bool    `json:"hasMore"`
}

type txRef struct {
	TxHash        string `json:"tx_hash"`
	TxOutputN     int64  `json:"tx_output_n"`
	Value         uint64 `json:"value"`
	Confirmations uint32 `json:"confirmations"`
	Spent         bool   `json:"spent"`
}

type addressFull struct {
	Address string `json:"address"`
	Txs     []tx   `json:"txs"`
}

type tx struct {
	Hash          string     `json:"hash"`
	BlockHeight   int64      `json:"block_height"`
	Total         uint64     `json:"total"`
	Fees          uint64     `json:"fees"`
	Confirmations uint32     `json:"confirmations"`
	Confirmed     string     `json:"confirmed,omitempty"`
	Inputs        []txInput  `json:"inputs"`
	Outputs       []txOutput `json:"outputs"`
}

type txInput struct {
	Addresses   []string `json:"addresses"`
	OutputValue uint64   `json:"output_value"`
}

type txOutput struct {
	Addresses []string `json:"addresses"`
	Value     uint64   `json:"value"`
}

func (t tx) netAmount(address string) int64 {
	var amount int64
	for _, out := range t.Outputs {
		if contains(out.Addresses, address) {
			amount += int64(out.Value)
		}
	}
	for _, in := range t.Inputs {
		if contains(in.Addresses, address) {
			amount -= int64(in.OutputValue)
		}
	}
	return amount
}

func (t tx) blockHeight() uint64 {
	if t.BlockHeight < 0 {
		return 0
	}
	return uint64(t.BlockHeight)
}

func (t tx) blockTime() int64 {
	if t.Confirmed == "" {
		return 0
	}
	confirmed, err := time.Parse(time.RFC3339, t.Confirmed)
	if err != nil {
		return 0
	}
	return confirmed.Unix()
}

type pushTxRequest struct {
	Tx string `json:"tx"`
}

type pushTxResponse struct {
	Tx struct {
		Hash string `json:"hash"`
	} `json:"tx"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
