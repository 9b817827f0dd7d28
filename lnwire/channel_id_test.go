package lnwire

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestChannelIDOutPointConversion tests that the channel id is the funding
// txid with its last two bytes XOR'd with the output index.
func TestChannelIDOutPointConversion(t *testing.T) {
	var txid chainhash.Hash
	for i := range txid {
		txid[i] = byte(i)
	}

	op := wire.OutPoint{Hash: txid, Index: 1}
	cid := NewChanIDFromOutPoint(op)

	// All but the final byte match the txid, the final byte differs by
	// the output index.
	require.Equal(t, txid[:30], cid[:30])
	require.Equal(t, txid[30], cid[30])
	require.Equal(t, txid[31]^0x01, cid[31])

	require.True(t, cid.IsChanPoint(&op))

	other := wire.OutPoint{Hash: txid, Index: 2}
	require.False(t, cid.IsChanPoint(&other))
}

// TestChannelIDLargeIndex asserts that output indexes spanning both of the
// final two bytes are folded in big-endian order.
func TestChannelIDLargeIndex(t *testing.T) {
	var txid chainhash.Hash
	op := wire.OutPoint{Hash: txid, Index: 0x0102}
	cid := NewChanIDFromOutPoint(op)

	require.Equal(t, byte(0x01), cid[30])
	require.Equal(t, byte(0x02), cid[31])
}
