package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/lightningnetwork/lnchannel/lnwire"
)

// TestSpecReduceConservation asserts that reducing a spec with any legal mix
// of adds and settles conserves the channel's total funds.
func TestSpecReduceConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spec := CommitmentSpec{
			FeeRatePerKw: testFeeRate,
			ToLocal:      1_000_000_000,
			ToRemote:     1_000_000_000,
		}

		numOwnerAdds := rapid.IntRange(0, 5).Draw(t, "ownerAdds")
		numCounterAdds := rapid.IntRange(0, 5).Draw(t, "counterAdds")

		var owner, counter []lnwire.Message
		for i := 0; i < numOwnerAdds; i++ {
			owner = append(owner, &lnwire.UpdateAddHTLC{
				ID:     uint64(i),
				Amount: lnwire.MilliSatoshi(1000 * (i + 1)),
			})
		}
		for i := 0; i < numCounterAdds; i++ {
			counter = append(counter, &lnwire.UpdateAddHTLC{
				ID:     uint64(i),
				Amount: lnwire.MilliSatoshi(2000 * (i + 1)),
			})
		}

		// The counterparty settles a prefix of the owner's adds, the
		// owner settles a prefix of the counterparty's.
		numCounterSettles := rapid.IntRange(0, numOwnerAdds).
			Draw(t, "counterSettles")
		for i := 0; i < numCounterSettles; i++ {
			counter = append(counter, &lnwire.UpdateFailHTLC{
				ID: uint64(i),
			})
		}
		numOwnerSettles := rapid.IntRange(0, numCounterAdds).
			Draw(t, "ownerSettles")
		for i := 0; i < numOwnerSettles; i++ {
			owner = append(owner, &lnwire.UpdateFulfillHTLC{
				ID: uint64(i),
			})
		}

		reduced, err := spec.reduce(owner, counter)
		require.NoError(t, err)

		require.Equal(t, spec.TotalFunds(), reduced.TotalFunds())
	})
}

// TestSpecReduceBalances pins the balance flow of the three settle kinds.
func TestSpecReduceBalances(t *testing.T) {
	spec := CommitmentSpec{
		ToLocal:  10_000,
		ToRemote: 20_000,
	}

	add := &lnwire.UpdateAddHTLC{ID: 0, Amount: 4_000}

	// An outgoing add debits the owner.
	afterAdd, err := spec.reduce(
		[]lnwire.Message{add}, nil,
	)
	require.NoError(t, err)
	require.Equal(t, lnwire.MilliSatoshi(6_000), afterAdd.ToLocal)
	require.Equal(t, lnwire.MilliSatoshi(20_000), afterAdd.ToRemote)
	require.Len(t, afterAdd.Htlcs, 1)

	// The counterparty fulfilling it moves the amount to them.
	fulfilled, err := afterAdd.reduce(nil, []lnwire.Message{
		&lnwire.UpdateFulfillHTLC{ID: 0},
	})
	require.NoError(t, err)
	require.Equal(t, lnwire.MilliSatoshi(6_000), fulfilled.ToLocal)
	require.Equal(t, lnwire.MilliSatoshi(24_000), fulfilled.ToRemote)
	require.Empty(t, fulfilled.Htlcs)

	// The counterparty failing it refunds the owner.
	failed, err := afterAdd.reduce(nil, []lnwire.Message{
		&lnwire.UpdateFailHTLC{ID: 0},
	})
	require.NoError(t, err)
	require.Equal(t, lnwire.MilliSatoshi(10_000), failed.ToLocal)
	require.Equal(t, lnwire.MilliSatoshi(20_000), failed.ToRemote)

	// Settling an unknown id fails.
	_, err = afterAdd.reduce(nil, []lnwire.Message{
		&lnwire.UpdateFailHTLC{ID: 9},
	})
	require.Error(t, err)
}

// TestSpecMirror asserts the mirrored spec swaps balances and directions.
func TestSpecMirror(t *testing.T) {
	spec := CommitmentSpec{
		ToLocal:  1,
		ToRemote: 2,
		Htlcs: []DirectedHtlc{
			{Direction: Outgoing, Add: lnwire.UpdateAddHTLC{ID: 0}},
			{Direction: Incoming, Add: lnwire.UpdateAddHTLC{ID: 1}},
		},
	}

	mirrored := spec.mirror()
	require.Equal(t, lnwire.MilliSatoshi(2), mirrored.ToLocal)
	require.Equal(t, lnwire.MilliSatoshi(1), mirrored.ToRemote)
	require.Equal(t, Incoming, mirrored.Htlcs[0].Direction)
	require.Equal(t, Outgoing, mirrored.Htlcs[1].Direction)

	require.Equal(t, spec.TotalFunds(), mirrored.TotalFunds())
}
