package electrum_provider

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// calcScriptHash returns the electrum script hash of the given script, that
// is the reversed sha256 of it in hex format.
func calcScriptHash(script []byte) string {
	hashedBuf := sha256.Sum256(script)
	hash, _ := chainhash.NewHash(hashedBuf[:])
	return hash.String()
}
