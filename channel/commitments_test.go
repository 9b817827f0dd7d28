package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lnchannel/lnwire"
)

// TestHtlcIdMonotonicity asserts that consecutive adds on a fresh channel
// are assigned ids 0 and 1, leaving the counter at 2.
func TestHtlcIdMonotonicity(t *testing.T) {
	funder, fundee := openChannel(t)

	_, hash1 := testPreimage(1)
	_, hash2 := testPreimage(2)

	add1 := addHtlc(t, funder, fundee, 50_000_000, hash1)
	require.Equal(t, uint64(0), add1.ID)

	add2 := addHtlc(t, funder, fundee, 60_000_000, hash2)
	require.Equal(t, uint64(1), add2.ID)

	require.Equal(
		t, uint64(2), funder.normal(t).Commitments.LocalNextHtlcID,
	)
	require.Equal(
		t, uint64(2), fundee.normal(t).Commitments.RemoteNextHtlcID,
	)
}

// TestCommitIndexIncrements asserts that each accepted CommitSig advances
// the receiver's local commit index by exactly one, and each accepted
// RevokeAndAck advances the sender's view of the remote commit by one.
func TestCommitIndexIncrements(t *testing.T) {
	funder, fundee := openChannel(t)

	_, hash := testPreimage(1)
	addHtlc(t, funder, fundee, 50_000_000, hash)

	require.Equal(t, uint64(0), funder.normal(t).Commitments.RemoteCommit.Index)
	require.Equal(t, uint64(0), fundee.normal(t).Commitments.LocalCommit.Index)

	crossSign(t, funder, fundee)

	require.Equal(t, uint64(1), funder.normal(t).Commitments.RemoteCommit.Index)
	require.Equal(t, uint64(1), fundee.normal(t).Commitments.LocalCommit.Index)
	require.Equal(t, uint64(1), funder.normal(t).Commitments.LocalCommit.Index)
	require.Equal(t, uint64(1), fundee.normal(t).Commitments.RemoteCommit.Index)
}

// TestFulfillFlow settles an HTLC end to end and asserts the balances moved
// to the fundee.
func TestFulfillFlow(t *testing.T) {
	funder, fundee := openChannel(t)

	preimage, hash := testPreimage(3)
	amount := lnwire.MilliSatoshi(50_000_000)

	initialFunder := funder.normal(t).Commitments.LocalCommit.Spec.ToLocal

	addHtlc(t, funder, fundee, amount, hash)
	crossSign(t, funder, fundee)

	// The fundee now irrevocably holds the incoming HTLC and can settle
	// it with the preimage.
	actions := fundee.process(t, &EventExecuteCommand{
		Cmd: CmdFulfillHtlc{ID: 0, Preimage: preimage},
	})
	fulfill := singleMessage(t, actions).(*lnwire.UpdateFulfillHTLC)

	funderActions := funder.process(t, &EventMessageReceived{Msg: fulfill})
	require.Empty(t, sentMessages(funderActions))

	crossSign(t, fundee, funder)

	funderSpec := funder.normal(t).Commitments.LocalCommit.Spec
	fundeeSpec := fundee.normal(t).Commitments.LocalCommit.Spec

	require.Empty(t, funderSpec.Htlcs)
	require.Empty(t, fundeeSpec.Htlcs)
	require.Equal(t, initialFunder-amount, funderSpec.ToLocal)
	require.Equal(t, amount, fundeeSpec.ToLocal)

	// Both parties agree on the allocation.
	require.Equal(t, funderSpec.ToLocal, fundeeSpec.ToRemote)
	require.Equal(t, funderSpec.ToRemote, fundeeSpec.ToLocal)
}

// TestFulfillWrongPreimage rejects a fulfill whose preimage does not hash to
// the payment hash.
func TestFulfillWrongPreimage(t *testing.T) {
	funder, fundee := openChannel(t)

	_, hash := testPreimage(4)
	addHtlc(t, funder, fundee, 50_000_000, hash)
	crossSign(t, funder, fundee)

	wrongPreimage, _ := testPreimage(5)
	_, _, err := fundee.normal(t).Commitments.SendFulfill(CmdFulfillHtlc{
		ID:       0,
		Preimage: wrongPreimage,
	})
	require.ErrorAs(t, err, new(*ErrInvalidHtlcPreimage))

	// An unknown id is rejected distinctly.
	_, _, err = fundee.normal(t).Commitments.SendFulfill(CmdFulfillHtlc{
		ID: 42,
	})
	require.ErrorAs(t, err, new(*ErrUnknownHtlc))
}

// TestReceiveAddWrongId rejects a remote add that skips the id sequence.
func TestReceiveAddWrongId(t *testing.T) {
	_, fundee := openChannel(t)

	_, hash := testPreimage(6)
	_, err := fundee.normal(t).Commitments.ReceiveAdd(
		&lnwire.UpdateAddHTLC{
			ID:          7,
			Amount:      50_000_000,
			PaymentHash: hash,
			Expiry:      testTipHeight + 144,
		},
	)
	require.ErrorAs(t, err, new(*ErrUnexpectedHtlcID))
}

// TestSendAddLimits exercises the policy bounds on offered HTLCs.
func TestSendAddLimits(t *testing.T) {
	funder, _ := openChannel(t)
	commitments := funder.normal(t).Commitments

	_, hash := testPreimage(7)

	// Below the remote's htlc minimum.
	_, _, err := commitments.SendAdd(CmdAddHtlc{
		Amount:      1,
		PaymentHash: hash,
		Expiry:      testTipHeight + 144,
	}, testTipHeight)
	require.ErrorAs(t, err, new(*ErrHtlcValueTooSmall))

	// Expiry out of the accepted window.
	_, _, err = commitments.SendAdd(CmdAddHtlc{
		Amount:      50_000_000,
		PaymentHash: hash,
		Expiry:      testTipHeight + 1,
	}, testTipHeight)
	require.ErrorAs(t, err, new(*ErrExpiryOutOfRange))

	// More than the whole balance.
	_, _, err = commitments.SendAdd(CmdAddHtlc{
		Amount:      lnwire.NewMSatFromSatoshis(testFundingAmount),
		PaymentHash: hash,
		Expiry:      testTipHeight + 144,
	}, testTipHeight)
	require.ErrorAs(t, err, new(*ErrInsufficientFunds))
}

// TestAvailableBalanceSymmetry asserts that what one side can send is exactly
// what the other side can receive, both views deducting the same funder fee
// buffer.
func TestAvailableBalanceSymmetry(t *testing.T) {
	funder, fundee := openChannel(t)

	funderSend := funder.normal(t).Commitments.AvailableBalanceForSend()
	fundeeReceive := fundee.normal(t).Commitments.AvailableBalanceForReceive()
	require.Equal(t, fundeeReceive, funderSend)

	fundeeSend := fundee.normal(t).Commitments.AvailableBalanceForSend()
	funderReceive := funder.normal(t).Commitments.AvailableBalanceForReceive()
	require.Equal(t, funderReceive, fundeeSend)

	// A fresh channel has no fundee balance to spend.
	require.Zero(t, fundeeSend)

	// Staging an HTLC shrinks the sendable balance by at least its
	// amount.
	_, hash := testPreimage(8)
	amount := lnwire.MilliSatoshi(50_000_000)
	addHtlc(t, funder, fundee, amount, hash)

	shrunk := funder.normal(t).Commitments.AvailableBalanceForSend()
	require.LessOrEqual(t, shrunk, funderSend-amount)
}

// TestRevocationChain asserts that each revocation appends the revealed
// secret to the receiver's compact store, at consecutive indexes.
func TestRevocationChain(t *testing.T) {
	funder, fundee := openChannel(t)

	for i := byte(0); i < 3; i++ {
		_, hash := testPreimage(10 + i)
		addHtlc(t, funder, fundee, 20_000_000, hash)
		crossSign(t, funder, fundee)
	}

	// Three full dances revoke three remote commitments on each side.
	store := funder.normal(t).Commitments.RemotePerCommitmentSecrets
	for i := uint64(0); i < 3; i++ {
		_, err := store.LookUp(i)
		require.NoError(t, err)
	}
	_, err := store.LookUp(3)
	require.Error(t, err)
}

// TestReceiveRevocationRejectsBadSecret feeds a revocation whose secret does
// not match the revoked commitment point.
func TestReceiveRevocationRejectsBadSecret(t *testing.T) {
	funder, fundee := openChannel(t)

	_, hash := testPreimage(20)
	addHtlc(t, funder, fundee, 50_000_000, hash)

	// Sign, but answer with a corrupted revocation.
	actions := funder.process(t, &EventExecuteCommand{Cmd: CmdSign{}})
	commitSig := singleMessage(t, actions).(*lnwire.CommitSig)

	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: commitSig})
	revocation := singleMessage(t, fundeeActions).(*lnwire.RevokeAndAck)

	bad := *revocation
	bad.Revocation[0] ^= 0xff

	before := funder.normal(t).Commitments
	funderActions := funder.process(t, &EventMessageReceived{Msg: &bad})

	require.ErrorIs(
		t, handledError(t, funderActions), ErrInvalidRevocationSecret,
	)

	// State unchanged, the honest revocation still goes through.
	require.Equal(
		t, before.RemoteCommit.Index,
		funder.normal(t).Commitments.RemoteCommit.Index,
	)

	funderActions = funder.process(t, &EventMessageReceived{Msg: revocation})
	require.Empty(t, sentMessages(funderActions))
	require.Equal(
		t, uint64(1),
		funder.normal(t).Commitments.RemoteCommit.Index,
	)
}

// TestSignWithoutChanges ignores a sign request on a quiescent channel.
func TestSignWithoutChanges(t *testing.T) {
	funder, _ := openChannel(t)

	before := funder.state
	actions := funder.process(t, &EventExecuteCommand{Cmd: CmdSign{}})
	require.Empty(t, actions)
	require.Same(t, before, funder.state)
}

// TestReSignAsap defers a sign issued while a CommitSig is outstanding and
// replays it after the revocation arrives.
func TestReSignAsap(t *testing.T) {
	funder, fundee := openChannel(t)

	_, hash1 := testPreimage(30)
	addHtlc(t, funder, fundee, 20_000_000, hash1)

	actions := funder.process(t, &EventExecuteCommand{Cmd: CmdSign{}})
	commitSig := singleMessage(t, actions).(*lnwire.CommitSig)

	// Stage another add and ask for a signature while the first one is
	// still unrevoked.
	_, hash2 := testPreimage(31)
	addHtlc(t, funder, fundee, 20_000_000, hash2)

	actions = funder.process(t, &EventExecuteCommand{Cmd: CmdSign{}})
	require.Empty(t, actions)

	waiting, isLeft := leftValue(
		funder.normal(t).Commitments.RemoteNextCommitInfo,
	)
	require.True(t, isLeft)
	require.True(t, waiting.ReSignAsap)

	// Deliver the dance; the revocation must replay the sign command.
	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: commitSig})
	revocation := singleMessage(t, fundeeActions).(*lnwire.RevokeAndAck)

	funderActions := funder.process(t, &EventMessageReceived{Msg: revocation})

	var replayed bool
	for _, action := range funderActions {
		if cmd, ok := action.(*ActionProcessCommand); ok {
			_, replayed = cmd.Cmd.(CmdSign)
		}
	}
	require.True(t, replayed)
}
