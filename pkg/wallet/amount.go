package wallet

import (
	"fmt"
	"math/bits"
)

var ErrAmountOverflow = fmt.Errorf("amount overflows 64 bits")

// SumAmounts returns the sum of the given amounts in sats.
func SumAmounts(amounts ...uint64) (uint64, error) {
	var total uint64
	for _, amount := range amounts {
		var carry uint64
		total, carry = bits.Add64(total, amount, 0)
		if carry != 0 {
			return 0, ErrAmountOverflow
		}
	}
	return total, nil
}
