package channel

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lnchannel/lnwire"
)

// TestOpenChannelFlow drives the full opening handshake and asserts the
// states and key actions the specification's opening scenario prescribes.
func TestOpenChannelFlow(t *testing.T) {
	funder, fundee := openChannel(t)

	// Both sides are operational and agree on the channel id.
	funderNormal := funder.normal(t)
	fundeeNormal := fundee.normal(t)
	require.Equal(
		t, funderNormal.Commitments.ChannelID,
		fundeeNormal.Commitments.ChannelID,
	)
	require.False(t, funderNormal.Buried)

	// The short channel id reflects the confirmation block.
	require.Equal(
		t, testTipHeight+testMinDepth,
		funderNormal.ShortChannelID.BlockHeight,
	)
	require.Equal(t, uint32(7), funderNormal.ShortChannelID.TxIndex)

	// The initial balances match the funding allocation.
	spec := funderNormal.Commitments.LocalCommit.Spec
	require.Equal(
		t, lnwire.NewMSatFromSatoshis(testFundingAmount),
		spec.ToLocal+spec.ToRemote,
	)
}

// TestFundingLockedUsesIndexOne asserts the point announced in
// FundingLocked is the commitment point at index 1.
func TestFundingLockedUsesIndexOne(t *testing.T) {
	funder := newTestParty(t, "points funder")

	path := funder.keyMgr.ChannelKeyPath(1, false)
	expected, err := funder.keyMgr.CommitmentPoint(path, 1)
	require.NoError(t, err)

	fundee := newTestParty(t, "points fundee")
	fundee.process(t, &EventInitFundee{
		TemporaryChannelID: testTemporaryChannelID,
		LocalParams:        testLocalParams(2, false),
		RemoteInit:         lnwire.NewInitMessage(nil, lnwire.NewRawFeatureVector()),
	})

	funderActions := funder.process(t, &EventInitFunder{
		Params: InitFunderParams{
			TemporaryChannelID:    testTemporaryChannelID,
			FundingAmount:         testFundingAmount,
			InitialFeeRatePerKw:   testFeeRate,
			FundingTxFeeRatePerKw: testFeeRate,
			LocalParams:           testLocalParams(1, true),
			RemoteInit: lnwire.NewInitMessage(
				nil, lnwire.NewRawFeatureVector(),
			),
		},
	})
	open := singleMessage(t, funderActions).(*lnwire.OpenChannel)

	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: open})
	accept := singleMessage(t, fundeeActions).(*lnwire.AcceptChannel)

	funderActions = funder.process(t, &EventMessageReceived{Msg: accept})
	makeFunding := funderActions[0].(*ActionMakeFundingTx)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxIn(&wire.TxIn{})
	fundingTx.AddTxOut(wire.NewTxOut(
		int64(makeFunding.Amount), makeFunding.PkScript,
	))

	funderActions = funder.process(t, &EventMakeFundingTxResponse{
		FundingTx: fundingTx,
	})
	created := sentMessages(funderActions)[0].(*lnwire.FundingCreated)

	fundeeActions = fundee.process(t, &EventMessageReceived{Msg: created})
	signed := singleMessage(t, fundeeActions).(*lnwire.FundingSigned)

	funder.process(t, &EventMessageReceived{Msg: signed})

	funderActions = funder.process(t, &EventWatchConfirmed{
		Tx:          fundingTx,
		BlockHeight: testTipHeight + testMinDepth,
	})
	locked := singleMessage(t, funderActions).(*lnwire.FundingLocked)

	require.True(t, expected.IsEqual(locked.NextPerCommitmentPoint))
}

// TestStoreStateBeforePublish asserts the transition emits StoreState ahead
// of the funding broadcast.
func TestStoreStateBeforePublish(t *testing.T) {
	funder := newTestParty(t, "publish funder")
	fundee := newTestParty(t, "publish fundee")

	fundee.process(t, &EventInitFundee{
		TemporaryChannelID: testTemporaryChannelID,
		LocalParams:        testLocalParams(2, false),
		RemoteInit:         lnwire.NewInitMessage(nil, lnwire.NewRawFeatureVector()),
	})
	funderActions := funder.process(t, &EventInitFunder{
		Params: InitFunderParams{
			TemporaryChannelID:    testTemporaryChannelID,
			FundingAmount:         testFundingAmount,
			InitialFeeRatePerKw:   testFeeRate,
			FundingTxFeeRatePerKw: testFeeRate,
			LocalParams:           testLocalParams(1, true),
			RemoteInit: lnwire.NewInitMessage(
				nil, lnwire.NewRawFeatureVector(),
			),
		},
	})
	open := singleMessage(t, funderActions).(*lnwire.OpenChannel)

	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: open})
	accept := singleMessage(t, fundeeActions).(*lnwire.AcceptChannel)

	funderActions = funder.process(t, &EventMessageReceived{Msg: accept})
	makeFunding := funderActions[0].(*ActionMakeFundingTx)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxIn(&wire.TxIn{})
	fundingTx.AddTxOut(wire.NewTxOut(
		int64(makeFunding.Amount), makeFunding.PkScript,
	))

	funderActions = funder.process(t, &EventMakeFundingTxResponse{
		FundingTx: fundingTx,
	})
	created := sentMessages(funderActions)[0].(*lnwire.FundingCreated)

	fundeeActions = fundee.process(t, &EventMessageReceived{Msg: created})
	signed := singleMessage(t, fundeeActions).(*lnwire.FundingSigned)

	funderActions = funder.process(t, &EventMessageReceived{Msg: signed})

	storeIdx, publishIdx := -1, -1
	for i, action := range funderActions {
		switch action.(type) {
		case *ActionStoreState:
			storeIdx = i
		case *ActionPublishTx:
			publishIdx = i
		}
	}
	require.GreaterOrEqual(t, storeIdx, 0)
	require.GreaterOrEqual(t, publishIdx, 0)
	require.Less(t, storeIdx, publishIdx)
}

// TestInvalidCommitSig feeds a garbage commitment signature and asserts the
// state is unchanged and an InvalidCommitmentSignature error surfaces.
func TestInvalidCommitSig(t *testing.T) {
	funder, fundee := openChannel(t)

	_, hash := testPreimage(40)
	addHtlc(t, funder, fundee, 50_000_000, hash)

	before := fundee.normal(t).Commitments

	garbage := &lnwire.CommitSig{
		ChanID:    before.ChannelID,
		CommitSig: lnwire.NewSigFromRawSignature([]byte{0xde, 0xad}),
	}

	actions := fundee.process(t, &EventMessageReceived{Msg: garbage})

	err := handledError(t, actions)
	require.ErrorAs(t, err, new(*ErrInvalidCommitmentSignature))

	require.Empty(t, sentMessages(actions))
	require.Equal(
		t, before.LocalCommit.Index,
		fundee.normal(t).Commitments.LocalCommit.Index,
	)
}

// TestDeferredFundingLocked delivers the remote FundingLocked before the
// local confirmation and asserts it is replayed afterwards.
func TestDeferredFundingLocked(t *testing.T) {
	funder := newTestParty(t, "deferred funder")
	fundee := newTestParty(t, "deferred fundee")

	fundee.process(t, &EventInitFundee{
		TemporaryChannelID: testTemporaryChannelID,
		LocalParams:        testLocalParams(2, false),
		RemoteInit:         lnwire.NewInitMessage(nil, lnwire.NewRawFeatureVector()),
	})
	funderActions := funder.process(t, &EventInitFunder{
		Params: InitFunderParams{
			TemporaryChannelID:    testTemporaryChannelID,
			FundingAmount:         testFundingAmount,
			InitialFeeRatePerKw:   testFeeRate,
			FundingTxFeeRatePerKw: testFeeRate,
			LocalParams:           testLocalParams(1, true),
			RemoteInit: lnwire.NewInitMessage(
				nil, lnwire.NewRawFeatureVector(),
			),
		},
	})
	open := singleMessage(t, funderActions).(*lnwire.OpenChannel)

	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: open})
	accept := singleMessage(t, fundeeActions).(*lnwire.AcceptChannel)

	funderActions = funder.process(t, &EventMessageReceived{Msg: accept})
	makeFunding := funderActions[0].(*ActionMakeFundingTx)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxIn(&wire.TxIn{})
	fundingTx.AddTxOut(wire.NewTxOut(
		int64(makeFunding.Amount), makeFunding.PkScript,
	))

	funderActions = funder.process(t, &EventMakeFundingTxResponse{
		FundingTx: fundingTx,
	})
	created := sentMessages(funderActions)[0].(*lnwire.FundingCreated)

	fundeeActions = fundee.process(t, &EventMessageReceived{Msg: created})
	signed := singleMessage(t, fundeeActions).(*lnwire.FundingSigned)
	funder.process(t, &EventMessageReceived{Msg: signed})

	confirm := &EventWatchConfirmed{
		Tx:          fundingTx,
		BlockHeight: testTipHeight + testMinDepth,
	}

	// The funder confirms first and sends its FundingLocked while the
	// fundee is still waiting.
	funderActions = funder.process(t, confirm)
	funderLocked := singleMessage(t, funderActions).(*lnwire.FundingLocked)

	fundeeActions = fundee.process(t, &EventMessageReceived{
		Msg: funderLocked,
	})
	require.Empty(t, fundeeActions)
	require.IsType(t, &WaitForFundingConfirmed{}, fundee.state)

	// Confirmation replays the deferred message straight into Normal.
	fundeeActions = fundee.process(t, confirm)
	require.IsType(t, &Normal{}, fundee.state)

	locked := singleMessage(t, fundeeActions).(*lnwire.FundingLocked)
	funder.process(t, &EventMessageReceived{Msg: locked})
	require.IsType(t, &Normal{}, funder.state)
}

// TestShutdownBlocksAdd records a remote Shutdown and rejects subsequent
// adds.
func TestShutdownBlocksAdd(t *testing.T) {
	funder, _ := openChannel(t)

	shutdown := lnwire.NewShutdown(
		funder.normal(t).Commitments.ChannelID,
		lnwire.DeliveryAddress{0x00, 0x14},
	)
	funder.process(t, &EventMessageReceived{Msg: shutdown})

	_, hash := testPreimage(50)
	actions := funder.process(t, &EventExecuteCommand{
		Cmd: CmdAddHtlc{
			Amount:      50_000_000,
			PaymentHash: hash,
			Expiry:      testTipHeight + 144,
		},
	})

	require.ErrorIs(
		t, handledError(t, actions), ErrNoMoreHtlcsClosingInProgress,
	)
}

// TestUnhandledEventIgnored asserts spurious input leaves the state
// untouched and produces no actions.
func TestUnhandledEventIgnored(t *testing.T) {
	funder, _ := openChannel(t)

	before := funder.state
	actions := funder.process(t, &EventMakeFundingTxResponse{})
	require.Empty(t, actions)
	require.Same(t, before, funder.state)
}

// TestParameterValidationFailure feeds an AcceptChannel violating our policy
// and asserts the funder stays in WaitForAcceptChannel with a handled error.
func TestParameterValidationFailure(t *testing.T) {
	funder := newTestParty(t, "strict funder")

	funderActions := funder.process(t, &EventInitFunder{
		Params: InitFunderParams{
			TemporaryChannelID:    testTemporaryChannelID,
			FundingAmount:         testFundingAmount,
			InitialFeeRatePerKw:   testFeeRate,
			FundingTxFeeRatePerKw: testFeeRate,
			LocalParams:           testLocalParams(1, true),
			RemoteInit: lnwire.NewInitMessage(
				nil, lnwire.NewRawFeatureVector(),
			),
		},
	})
	require.NotEmpty(t, funderActions)

	fundee := newTestParty(t, "strict fundee")
	fundee.process(t, &EventInitFundee{
		TemporaryChannelID: testTemporaryChannelID,
		LocalParams:        testLocalParams(2, false),
		RemoteInit:         lnwire.NewInitMessage(nil, lnwire.NewRawFeatureVector()),
	})
	open := singleMessage(t, funderActions).(*lnwire.OpenChannel)
	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: open})
	accept := singleMessage(t, fundeeActions).(*lnwire.AcceptChannel)

	// A csv delay beyond the protocol ceiling must be rejected.
	accept.CsvDelay = MaxToSelfDelay + 1

	actions := funder.process(t, &EventMessageReceived{Msg: accept})
	require.Error(t, handledError(t, actions))
	require.IsType(t, &WaitForAcceptChannel{}, funder.state)
}
