package esplora_provider

type addressInfo struct {
	Address      string       `json:"address"`
	ChainStats   addressStats `json:"chain_stats"`
	MempoolStats addressStats `json:"mempool_stats"`
}

type addressStats struct {
	FundedTxoSum uint64 `json:"funded_txo_sum"`
	SpentTxoSum  uint64 `json:"spent_txo_sum"`
	TxCount      int    `json:"tx_count"`
}

func (i addressInfo) balance() uint64 {
	funded := i.ChainStats.FundedTxoSum + i.MempoolStats.FundedTxoSum
	spent := i.ChainStats.SpentTxoSum + i.MempoolStats.SpentTxoSum
	if spent > funded {
		return 0
	}
	return funded - spent
}

type txStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
	BlockTime   int64  `json:"block_time,omitempty"`
}

// confirmations returns the number of confirmations given the current tip.
func (s txStatus) confirmations(tipHeight uint64) uint32 {
	if !s.Confirmed || s.BlockHeight > tipHeight {
		return 0
	}
	return uint32(tipHeight - s.BlockHeight + 1)
}

type utxo struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Status txStatus `json:"status"`
	Value  uint64   `json:"value"`
}

type tx struct {
	TxID   string   `json:"txid"`
	Fee    uint64   `json:"fee"`
	Vin    []txVin  `json:"vin"`
	Vout   []txVout `json:"vout"`
	Status txStatus `json:"status"`
}

type txVin struct {
	TxID    string  `json:"txid"`
	Vout    uint32  `json:"vout"`
	PrevOut *txVout `json:"prevout,omitempty"`
}

type txVout struct {
	ScriptPubKey     string `json:"scriptpubkey"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address,omitempty"`
	Value            uint64 `json:"value"`
}

// netAmount returns the amount received minus the amount spent by the
// given address in the tx.
func (t tx) netAmount(address string) int64 {
	var amount int64
	for _, out := range t.Vout {
		if out.ScriptPubKeyAddr == address {
			amount += int64(out.Value)
		}
	}
	for _, in := range t.Vin {
		if in.PrevOut != nil && in.PrevOut.ScriptPubKeyAddr == address {
			amount -= int64(in.PrevOut.Value)
		}
	}
	return amount
}

// feeEstimates maps confirmation targets to sats/vbyte rates.
type feeEstimates map[string]float64
