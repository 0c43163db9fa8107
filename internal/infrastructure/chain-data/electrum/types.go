package electrum_provider

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

type request struct {
	Id     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type response struct {
	Id     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

func (r response) error() error {
	if len(r.Error) <= 0 || string(r.Error) == "null" {
		return nil
	}

	var msg string
	if err := json.Unmarshal(r.Error, &msg); err == nil {
		return &responseErr{Message: msg}
	}

	var err responseErr
	if jsonErr := json.Unmarshal(r.Error, &err); jsonErr != nil || err.Message == "" {
		return &responseErr{Message: string(r.Error)}
	}
	return &err
}

func (r response) decode(v interface{}) error {
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", r.Method, err)
	}
	return nil
}

// responseErr is an error returned by the electrum server.
type responseErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *responseErr) Error() string {
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

type headerInfo struct {
	Header string `json:"hex"`
	Height uint64 `json:"height"`
}

type balanceInfo struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

func (b balanceInfo) total() uint64 {
	total := b.Confirmed + b.Unconfirmed
	if total < 0 {
		return 0
	}
	return uint64(total)
}

type utxoInfo struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Height int64  `json:"height"`
	Value  uint64 `json:"value"`
}

type txInfo struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
	Fee    uint64 `json:"fee,omitempty"`
}

// confirmations returns the number of confirmations of something included
// in a block at the given height. Electrum reports mempool entries with
// height <= 0.
func confirmations(height int64, tipHeight uint64) uint32 {
	if height <= 0 || uint64(height) > tipHeight {
		return 0
	}
	return uint32(tipHeight - uint64(height) + 1)
}

func parseBlockTime(headerHex string) (int64, error) {
	buf, err := hex.DecodeString(headerHex)
	if err != nil {
		return 0, err
	}
	header := &wire.BlockHeader{}
	if err := header.Deserialize(bytes.NewReader(buf)); err != nil {
		return 0, err
	}
	return header.Timestamp.Unix(), nil
}

type chHandler struct {
	lock             *sync.RWMutex
	chReportsByReqId map[uint64]chan response
}

func newChHandler() *chHandler {
	return &chHandler{
		lock:             &sync.RWMutex{},
		chReportsByReqId: make(map[uint64]chan response),
	}
}

func (h *chHandler) addRequest(id uint64) chan response {
	h.lock.Lock()
	defer h.lock.Unlock()

	ch := make(chan response, 1)
	h.chReportsByReqId[id] = ch
	return ch
}

func (h *chHandler) getChReportsForReqId(id uint64) chan response {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return h.chReportsByReqId[id]
}

func (h *chHandler) clearRequest(id uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	delete(h.chReportsByReqId, id)
}
