package channel

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

func testKeyRing(t *testing.T) *CommitmentKeyRing {
	t.Helper()

	newKey := func(tag string) *btcec.PublicKey {
		seed := sha256.Sum256([]byte(tag))
		priv, _ := btcec.PrivKeyFromBytes(seed[:])
		return priv.PubKey()
	}

	return &CommitmentKeyRing{
		CommitPoint:   newKey("commit point"),
		ToLocalKey:    newKey("to local"),
		ToRemoteKey:   newKey("to remote"),
		RevocationKey: newKey("revocation"),
		LocalHtlcKey:  newKey("local htlc"),
		RemoteHtlcKey: newKey("remote htlc"),
	}
}

func testFundingInput(t *testing.T) FundingInput {
	t.Helper()

	script, err := GenMultiSigScript(
		testKeyRing(t).ToLocalKey.SerializeCompressed(),
		testKeyRing(t).ToRemoteKey.SerializeCompressed(),
	)
	require.NoError(t, err)

	pkScript, err := witnessScriptHash(script)
	require.NoError(t, err)

	return FundingInput{
		OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0},
		TxOut: wire.TxOut{
			Value:    int64(testFundingAmount),
			PkScript: pkScript,
		},
		WitnessScript: script,
	}
}

// TestBuildCommitmentTrimsDust asserts that HTLCs below the dust threshold
// produce no outputs while surviving ones resolve to sorted output indexes.
func TestBuildCommitmentTrimsDust(t *testing.T) {
	spec := CommitmentSpec{
		FeeRatePerKw: testFeeRate,
		ToLocal:      lnwire.NewMSatFromSatoshis(400_000),
		ToRemote:     lnwire.NewMSatFromSatoshis(500_000),
		Htlcs: []DirectedHtlc{
			// 100 sat, trimmed.
			{Direction: Outgoing, Add: lnwire.UpdateAddHTLC{
				ID: 0, Amount: 100_000,
			}},
			// 50k sat, kept.
			{Direction: Outgoing, Add: lnwire.UpdateAddHTLC{
				ID: 1, Amount: 50_000_000,
			}},
			// 60k sat incoming, kept.
			{Direction: Incoming, Add: lnwire.UpdateAddHTLC{
				ID: 2, Amount: 60_000_000,
			}},
		},
	}

	commitCtx, err := buildCommitmentTx(
		testFundingInput(t), spec, testKeyRing(t), MinDustLimit,
		144, true,
	)
	require.NoError(t, err)

	// to_local, to_remote and the two untrimmed HTLCs.
	require.Len(t, commitCtx.tx.TxOut, 4)
	require.Len(t, commitCtx.htlcs, 2)

	// Two untrimmed HTLCs pay for their weight.
	require.Equal(
		t, chainfee.CommitTxFee(testFeeRate, 2), commitCtx.fee,
	)

	for _, entry := range commitCtx.htlcs {
		require.GreaterOrEqual(t, entry.outputIndex, 0)
		out := commitCtx.tx.TxOut[entry.outputIndex]
		require.Equal(t, int64(entry.amount), out.Value)
		require.Equal(t, entry.pkScript, out.PkScript)
	}
}

// TestBuildCommitmentFeeFromFunder asserts the commitment fee is deducted
// from the funder's balance only.
func TestBuildCommitmentFeeFromFunder(t *testing.T) {
	spec := CommitmentSpec{
		FeeRatePerKw: testFeeRate,
		ToLocal:      lnwire.NewMSatFromSatoshis(400_000),
		ToRemote:     lnwire.NewMSatFromSatoshis(600_000),
	}

	asFunder, err := buildCommitmentTx(
		testFundingInput(t), spec, testKeyRing(t), MinDustLimit,
		144, true,
	)
	require.NoError(t, err)

	asFundee, err := buildCommitmentTx(
		testFundingInput(t), spec, testKeyRing(t), MinDustLimit,
		144, false,
	)
	require.NoError(t, err)

	fee := int64(chainfee.CommitTxFee(testFeeRate, 0))

	sum := func(tx *wire.MsgTx) int64 {
		var total int64
		for _, out := range tx.TxOut {
			total += out.Value
		}
		return total
	}

	require.Equal(
		t, int64(testFundingAmount)-fee, sum(asFunder.tx),
	)
	require.Equal(
		t, int64(testFundingAmount)-fee, sum(asFundee.tx),
	)
	require.NotEqual(t, asFunder.tx.TxHash(), asFundee.tx.TxHash())
}

// TestHtlcTxShape asserts second-level transactions carry the right locktime
// and deduct the right fee.
func TestHtlcTxShape(t *testing.T) {
	keys := testKeyRing(t)

	entry := htlcEntry{
		htlc: DirectedHtlc{
			Direction: Outgoing,
			Add: lnwire.UpdateAddHTLC{
				Amount: 50_000_000,
				Expiry: 500,
			},
		},
		amount:      50_000,
		outputIndex: 1,
	}

	timeoutTx, err := buildHtlcTx(
		chainhash.Hash{2}, entry, keys, testFeeRate, 144,
	)
	require.NoError(t, err)
	require.Equal(t, uint32(500), timeoutTx.LockTime)
	require.Equal(
		t,
		int64(50_000)-int64(chainfee.HtlcTimeoutFee(testFeeRate)),
		timeoutTx.TxOut[0].Value,
	)

	entry.htlc.Direction = Incoming
	successTx, err := buildHtlcTx(
		chainhash.Hash{2}, entry, keys, testFeeRate, 144,
	)
	require.NoError(t, err)
	require.Zero(t, successTx.LockTime)
	require.Equal(
		t,
		int64(50_000)-int64(chainfee.HtlcSuccessFee(testFeeRate)),
		successTx.TxOut[0].Value,
	)
}
