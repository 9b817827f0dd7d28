package chainfee

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// TestFeeForWeight asserts fees round down and scale linearly with weight.
func TestFeeForWeight(t *testing.T) {
	feeRate := SatPerKWeight(2500)

	require.Equal(t, btcutil.Amount(1810), feeRate.FeeForWeight(CommitWeight))

	// 2500 * 999 / 1000 = 2497.5, rounded down.
	require.Equal(t, btcutil.Amount(2497), feeRate.FeeForWeight(999))
}

// TestCommitTxFee asserts each untrimmed HTLC adds exactly one HTLC weight
// unit of fees.
func TestCommitTxFee(t *testing.T) {
	feeRate := SatPerKWeight(1000)

	base := CommitTxFee(feeRate, 0)
	withOne := CommitTxFee(feeRate, 1)

	require.Equal(t, btcutil.Amount(CommitWeight), base)
	require.Equal(
		t, feeRate.FeeForWeight(HTLCWeight), withOne-base,
	)
}
