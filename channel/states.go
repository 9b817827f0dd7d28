package channel

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/fn"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// ChannelState is one variant of the channel state machine. Process is a
// pure function: it performs no I/O and returns the successor state along
// with the actions the driver must dispatch, in order. Unhandled events are
// not errors, they return the state unchanged.
type ChannelState interface {
	// Process applies a single event to the state.
	Process(event Event) (ChannelState, []Action)

	// Name returns the state's name for logging.
	Name() string
}

// stateCommon carries the fields present in every state. The key manager and
// clock are collaborators threaded through for derivation and timestamping,
// they are not part of the persisted state.
type stateCommon struct {
	// StaticParams are the node-level parameters of the channel.
	StaticParams StaticParams

	// CurrentTip is the most recently observed chain tip.
	CurrentTip Tip

	keyMgr keychain.KeyManager
	clk    clock.Clock
}

// unhandled logs and ignores an event the state has no transition for.
func unhandled(s ChannelState, event Event) (ChannelState, []Action) {
	log.Warnf("state %v: ignoring unhandled event %T", s.Name(), event)
	return s, nil
}

// WaitForInit is the initial state of every channel, before the driver has
// told it which side of the opening flow it is on.
type WaitForInit struct {
	stateCommon
}

// NewWaitForInit creates the initial state of a channel state machine.
func NewWaitForInit(staticParams StaticParams, tip Tip,
	keyMgr keychain.KeyManager, clk clock.Clock) *WaitForInit {

	return &WaitForInit{
		stateCommon: stateCommon{
			StaticParams: staticParams,
			CurrentTip:   tip,
			keyMgr:       keyMgr,
			clk:          clk,
		},
	}
}

// Name returns the state's name.
func (s *WaitForInit) Name() string { return "WaitForInit" }

// WaitForOpenChannel is the fundee state awaiting the funder's OpenChannel.
type WaitForOpenChannel struct {
	stateCommon

	// TemporaryChannelID identifies the channel during negotiation.
	TemporaryChannelID [32]byte

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteInit is the remote's Init message.
	RemoteInit *lnwire.Init
}

// Name returns the state's name.
func (s *WaitForOpenChannel) Name() string { return "WaitForOpenChannel" }

// WaitForAcceptChannel is the funder state awaiting the fundee's
// AcceptChannel.
type WaitForAcceptChannel struct {
	stateCommon

	// Init carries the funder parameters the channel was started with.
	Init InitFunderParams

	// LastSent is the OpenChannel we sent.
	LastSent *lnwire.OpenChannel
}

// Name returns the state's name.
func (s *WaitForAcceptChannel) Name() string { return "WaitForAcceptChannel" }

// WaitForFundingInternal is the funder state awaiting the wallet's funding
// transaction.
type WaitForFundingInternal struct {
	stateCommon

	// TemporaryChannelID identifies the channel during negotiation.
	TemporaryChannelID [32]byte

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteParams are the remote's parameters from AcceptChannel.
	RemoteParams RemoteParams

	// FundingAmount is the channel capacity.
	FundingAmount btcutil.Amount

	// PushAmount is the amount pushed to the fundee at opening.
	PushAmount lnwire.MilliSatoshi

	// InitialFeeRatePerKw is the first commitment fee rate.
	InitialFeeRatePerKw chainfee.SatPerKWeight

	// RemoteFirstPerCommitmentPoint derives the remote's first
	// commitment keys.
	RemoteFirstPerCommitmentPoint *btcec.PublicKey

	// MinDepth is the confirmation depth the fundee asked for.
	MinDepth uint32

	// ChannelFlags are the negotiated funding flags.
	ChannelFlags lnwire.FundingFlag

	// ChannelVersion carries the negotiated derivation bits.
	ChannelVersion ChannelVersion

	// LastSent is the OpenChannel we sent.
	LastSent *lnwire.OpenChannel
}

// Name returns the state's name.
func (s *WaitForFundingInternal) Name() string {
	return "WaitForFundingInternal"
}

// WaitForFundingCreated is the fundee state awaiting the funder's
// FundingCreated.
type WaitForFundingCreated struct {
	stateCommon

	// TemporaryChannelID identifies the channel during negotiation.
	TemporaryChannelID [32]byte

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteParams are the remote's parameters from OpenChannel.
	RemoteParams RemoteParams

	// FundingAmount is the channel capacity.
	FundingAmount btcutil.Amount

	// PushAmount is the amount pushed to us at opening.
	PushAmount lnwire.MilliSatoshi

	// InitialFeeRatePerKw is the first commitment fee rate.
	InitialFeeRatePerKw chainfee.SatPerKWeight

	// RemoteFirstPerCommitmentPoint derives the remote's first
	// commitment keys.
	RemoteFirstPerCommitmentPoint *btcec.PublicKey

	// ChannelFlags are the negotiated funding flags.
	ChannelFlags lnwire.FundingFlag

	// ChannelVersion carries the negotiated derivation bits.
	ChannelVersion ChannelVersion

	// LastSent is the AcceptChannel we sent.
	LastSent *lnwire.AcceptChannel
}

// Name returns the state's name.
func (s *WaitForFundingCreated) Name() string {
	return "WaitForFundingCreated"
}

// WaitForFundingSigned is the funder state awaiting the fundee's signature
// for our first commitment.
type WaitForFundingSigned struct {
	stateCommon

	// ChannelID is the definitive channel id.
	ChannelID lnwire.ChannelID

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteParams are the remote's parameters.
	RemoteParams RemoteParams

	// FundingTx is the funding transaction, ready for broadcast once the
	// remote's signature arrives.
	FundingTx *wire.MsgTx

	// FundingTxFee is the fee paid by the funding transaction.
	FundingTxFee btcutil.Amount

	// CommitInput is the funding output both commitments spend.
	CommitInput FundingInput

	// LocalSpec is the spec of our first commitment.
	LocalSpec CommitmentSpec

	// LocalCommitTx is our first commitment transaction, unsigned.
	LocalCommitTx *wire.MsgTx

	// RemoteCommit is the remote's first commitment.
	RemoteCommit RemoteCommit

	// MinDepth is the confirmation depth the fundee asked for.
	MinDepth uint32

	// ChannelFlags are the negotiated funding flags.
	ChannelFlags lnwire.FundingFlag

	// ChannelVersion carries the negotiated derivation bits.
	ChannelVersion ChannelVersion

	// LastSent is the FundingCreated we sent.
	LastSent *lnwire.FundingCreated
}

// Name returns the state's name.
func (s *WaitForFundingSigned) Name() string { return "WaitForFundingSigned" }

// WaitForFundingConfirmed awaits the funding transaction's confirmation.
type WaitForFundingConfirmed struct {
	stateCommon

	// Commitments is the channel's commitment state.
	Commitments Commitments

	// FundingTx is the funding transaction. Only the funder holds it.
	FundingTx *wire.MsgTx

	// WaitingSince is the unix timestamp at which we started waiting for
	// the confirmation.
	WaitingSince int64

	// Deferred holds a FundingLocked that arrived before the funding
	// transaction confirmed on our side.
	Deferred *lnwire.FundingLocked

	// MinDepth is the confirmation depth waited for.
	MinDepth uint32

	// LastSent is the final funding message we sent: FundingCreated for
	// the funder, FundingSigned for the fundee.
	LastSent fn.Either[*lnwire.FundingCreated, *lnwire.FundingSigned]
}

// Name returns the state's name.
func (s *WaitForFundingConfirmed) Name() string {
	return "WaitForFundingConfirmed"
}

// WaitForFundingLocked awaits the remote's FundingLocked after the funding
// transaction confirmed on our side.
type WaitForFundingLocked struct {
	stateCommon

	// Commitments is the channel's commitment state.
	Commitments Commitments

	// ShortChannelID locates the funding transaction on chain.
	ShortChannelID lnwire.ShortChannelID

	// LastSent is the FundingLocked we sent.
	LastSent *lnwire.FundingLocked
}

// Name returns the state's name.
func (s *WaitForFundingLocked) Name() string { return "WaitForFundingLocked" }

// Normal is the operational state of the channel, relaying HTLC updates and
// commitment signatures.
type Normal struct {
	stateCommon

	// Commitments is the channel's commitment state.
	Commitments Commitments

	// ShortChannelID locates the funding transaction on chain.
	ShortChannelID lnwire.ShortChannelID

	// Buried is true once the funding transaction has enough
	// confirmations to announce the channel.
	Buried bool

	// LocalShutdown is our Shutdown message, if we sent one.
	LocalShutdown *lnwire.Shutdown

	// RemoteShutdown is the remote's Shutdown message, if received.
	RemoteShutdown *lnwire.Shutdown
}

// Name returns the state's name.
func (s *Normal) Name() string { return "Normal" }

// Aborted is the terminal state of a channel that failed before the funding
// transaction was usable.
type Aborted struct {
	stateCommon
}

// Name returns the state's name.
func (s *Aborted) Name() string { return "Aborted" }

// Process on the terminal state ignores everything.
func (s *Aborted) Process(event Event) (ChannelState, []Action) {
	return unhandled(s, event)
}
