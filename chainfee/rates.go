package chainfee

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// FeePerKwFloor is the lowest fee rate in sat/kw that we should use
	// for determining transaction fees.
	FeePerKwFloor SatPerKWeight = 253
)

// SatPerKWeight represents a fee level in sat/kw (sat per 1000 weight units).
type SatPerKWeight btcutil.Amount

// FeeForWeight calculates the fee to be paid for a transaction of the given
// weight. The returned fee is rounded down, as the protocol requires.
func (s SatPerKWeight) FeeForWeight(wu int64) btcutil.Amount {
	// The resulting fee is rounded down, as specified in BOLT-03.
	return btcutil.Amount(s) * btcutil.Amount(wu) / 1000
}

// String returns a human-readable string of the fee rate.
func (s SatPerKWeight) String() string {
	return fmt.Sprintf("%v sat/kw", int64(s))
}
