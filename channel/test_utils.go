package channel

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

const (
	testFundingAmount = btcutil.Amount(1_000_000)
	testFeeRate       = chainfee.SatPerKWeight(2500)
	testMinDepth      = uint32(3)
	testTipHeight     = uint32(100)
)

var testTemporaryChannelID = [32]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
}

// testParty is one side of a channel under test: its evolving state plus the
// key manager backing it.
type testParty struct {
	state  ChannelState
	keyMgr keychain.KeyManager
}

// process feeds one event to the party, retaining the successor state.
func (p *testParty) process(t *testing.T, event Event) []Action {
	t.Helper()

	next, actions := p.state.Process(event)
	p.state = next
	return actions
}

// normal returns the party's state as Normal.
func (p *testParty) normal(t *testing.T) *Normal {
	t.Helper()

	s, ok := p.state.(*Normal)
	require.True(t, ok, "expected Normal, got %T", p.state)
	return s
}

func testNodeParams() NodeParams {
	return NodeParams{
		ChainHash:            *chaincfg.RegressionNetParams.GenesisHash,
		MinDepthBlocks:       testMinDepth,
		DustLimit:            MinDustLimit,
		MaxHtlcValueInFlight: lnwire.NewMSatFromSatoshis(testFundingAmount),
		HtlcMinimum:          1000,
		ToSelfDelay:          144,
		MaxAcceptedHtlcs:     30,
		IsRegtest:            true,
	}
}

func testLocalParams(fundingKeyIndex uint32, isFunder bool) LocalParams {
	nodeParams := testNodeParams()

	return LocalParams{
		DustLimit:            nodeParams.DustLimit,
		MaxHtlcValueInFlight: nodeParams.MaxHtlcValueInFlight,
		ChannelReserve:       testFundingAmount / 100,
		HtlcMinimum:          nodeParams.HtlcMinimum,
		ToSelfDelay:          nodeParams.ToSelfDelay,
		MaxAcceptedHtlcs:     nodeParams.MaxAcceptedHtlcs,
		FundingKeyIndex:      fundingKeyIndex,
		IsFunder:             isFunder,
		Features:             lnwire.EmptyFeatureVector(),
	}
}

func newTestParty(t *testing.T, seedTag string) *testParty {
	t.Helper()

	seed := sha256.Sum256([]byte(seedTag))
	keyMgr := keychain.NewMemKeyManager(seed)

	staticParams := StaticParams{NodeParams: testNodeParams()}
	tip := Tip{Height: testTipHeight}
	clk := clock.NewTestClock(time.Unix(1_700_000_000, 0))

	return &testParty{
		state:  NewWaitForInit(staticParams, tip, keyMgr, clk),
		keyMgr: keyMgr,
	}
}

// sentMessages filters the messages out of an action list.
func sentMessages(actions []Action) []lnwire.Message {
	var msgs []lnwire.Message
	for _, action := range actions {
		if send, ok := action.(*ActionSendMessage); ok {
			msgs = append(msgs, send.Msg)
		}
	}
	return msgs
}

// singleMessage asserts exactly one message was sent and returns it.
func singleMessage(t *testing.T, actions []Action) lnwire.Message {
	t.Helper()

	msgs := sentMessages(actions)
	require.Len(t, msgs, 1)
	return msgs[0]
}

// handledError extracts the error of the single ActionHandleError in the
// list.
func handledError(t *testing.T, actions []Action) error {
	t.Helper()

	for _, action := range actions {
		if handle, ok := action.(*ActionHandleError); ok {
			return handle.Err
		}
	}

	t.Fatalf("no ActionHandleError in %v", actions)
	return nil
}

// openChannel drives two fresh parties through the complete opening flow
// until both sides sit in the Normal state.
func openChannel(t *testing.T) (*testParty, *testParty) {
	t.Helper()

	funder := newTestParty(t, "funder seed")
	fundee := newTestParty(t, "fundee seed")

	fundeeActions := fundee.process(t, &EventInitFundee{
		TemporaryChannelID: testTemporaryChannelID,
		LocalParams:        testLocalParams(2, false),
		RemoteInit:         lnwire.NewInitMessage(nil, lnwire.NewRawFeatureVector()),
	})
	require.Empty(t, fundeeActions)

	funderActions := funder.process(t, &EventInitFunder{
		Params: InitFunderParams{
			TemporaryChannelID:    testTemporaryChannelID,
			FundingAmount:         testFundingAmount,
			PushAmount:            0,
			InitialFeeRatePerKw:   testFeeRate,
			FundingTxFeeRatePerKw: testFeeRate,
			LocalParams:           testLocalParams(1, true),
			RemoteInit: lnwire.NewInitMessage(
				nil, lnwire.NewRawFeatureVector(),
			),
		},
	})
	open := singleMessage(t, funderActions).(*lnwire.OpenChannel)
	require.IsType(t, &WaitForAcceptChannel{}, funder.state)

	fundeeActions = fundee.process(t, &EventMessageReceived{Msg: open})
	accept := singleMessage(t, fundeeActions).(*lnwire.AcceptChannel)
	require.IsType(t, &WaitForFundingCreated{}, fundee.state)

	funderActions = funder.process(t, &EventMessageReceived{Msg: accept})
	require.IsType(t, &WaitForFundingInternal{}, funder.state)
	require.Len(t, funderActions, 1)
	makeFunding := funderActions[0].(*ActionMakeFundingTx)

	// Play the wallet: one input, the funding output plus a change
	// output.
	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxIn(&wire.TxIn{})
	fundingTx.AddTxOut(wire.NewTxOut(
		int64(makeFunding.Amount), makeFunding.PkScript,
	))
	fundingTx.AddTxOut(wire.NewTxOut(42_000, []byte{0x00, 0x14}))

	funderActions = funder.process(t, &EventMakeFundingTxResponse{
		FundingTx:            fundingTx,
		FundingTxOutputIndex: 0,
		Fee:                  250,
	})
	require.IsType(t, &WaitForFundingSigned{}, funder.state)

	var created *lnwire.FundingCreated
	for _, msg := range sentMessages(funderActions) {
		created = msg.(*lnwire.FundingCreated)
	}
	require.NotNil(t, created)

	fundeeActions = fundee.process(t, &EventMessageReceived{Msg: created})
	require.IsType(t, &WaitForFundingConfirmed{}, fundee.state)
	signed := singleMessage(t, fundeeActions).(*lnwire.FundingSigned)

	funderActions = funder.process(t, &EventMessageReceived{Msg: signed})
	require.IsType(t, &WaitForFundingConfirmed{}, funder.state)

	confirm := &EventWatchConfirmed{
		Tx:          fundingTx,
		BlockHeight: testTipHeight + testMinDepth,
		TxIndex:     7,
	}

	funderActions = funder.process(t, confirm)
	funderLocked := singleMessage(t, funderActions).(*lnwire.FundingLocked)
	require.IsType(t, &WaitForFundingLocked{}, funder.state)

	fundeeActions = fundee.process(t, confirm)
	fundeeLocked := singleMessage(t, fundeeActions).(*lnwire.FundingLocked)
	require.IsType(t, &WaitForFundingLocked{}, fundee.state)

	funder.process(t, &EventMessageReceived{Msg: fundeeLocked})
	fundee.process(t, &EventMessageReceived{Msg: funderLocked})

	require.IsType(t, &Normal{}, funder.state)
	require.IsType(t, &Normal{}, fundee.state)

	return funder, fundee
}

// testPreimage builds a deterministic preimage and its payment hash.
func testPreimage(tag byte) ([32]byte, [32]byte) {
	var preimage [32]byte
	preimage[0] = tag
	preimage[31] = 0x7f

	return preimage, sha256.Sum256(preimage[:])
}

// addHtlc stages an HTLC from sender to receiver and returns the update.
func addHtlc(t *testing.T, sender, receiver *testParty,
	amount lnwire.MilliSatoshi, hash [32]byte) *lnwire.UpdateAddHTLC {

	t.Helper()

	actions := sender.process(t, &EventExecuteCommand{
		Cmd: CmdAddHtlc{
			Amount:      amount,
			PaymentHash: hash,
			Expiry:      testTipHeight + 144,
		},
	})
	add := singleMessage(t, actions).(*lnwire.UpdateAddHTLC)

	receiverActions := receiver.process(t, &EventMessageReceived{Msg: add})
	require.Empty(t, sentMessages(receiverActions))

	return add
}

// crossSign runs the full sign/revoke/sign-back/revoke dance starting from
// the signer side, leaving both parties with a clean commitment.
func crossSign(t *testing.T, signer, receiver *testParty) {
	t.Helper()

	signerActions := signer.process(t, &EventExecuteCommand{
		Cmd: CmdSign{},
	})
	commitSig := singleMessage(t, signerActions).(*lnwire.CommitSig)

	receiverActions := receiver.process(t, &EventMessageReceived{
		Msg: commitSig,
	})
	revocation := singleMessage(t, receiverActions).(*lnwire.RevokeAndAck)

	signerActions = signer.process(t, &EventMessageReceived{
		Msg: revocation,
	})
	require.Empty(t, sentMessages(signerActions))

	// The receiver owes a signature for the changes it just acked.
	receiverActions = receiver.process(t, &EventExecuteCommand{
		Cmd: CmdSign{},
	})
	commitSig = singleMessage(t, receiverActions).(*lnwire.CommitSig)

	signerActions = signer.process(t, &EventMessageReceived{
		Msg: commitSig,
	})
	revocation = singleMessage(t, signerActions).(*lnwire.RevokeAndAck)

	receiverActions = receiver.process(t, &EventMessageReceived{
		Msg: revocation,
	})
	require.Empty(t, sentMessages(receiverActions))
}
