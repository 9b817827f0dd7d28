package channel

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Event is the input of the channel state machine. The four asynchronous
// sources all funnel into this single type: peer messages, chain watch
// notifications, local commands, and wallet callbacks.
type Event interface {
	eventSealed()
}

// EventInitFunder starts a channel as the funder, producing the OpenChannel
// message.
type EventInitFunder struct {
	// Params carries everything required to open the channel.
	Params InitFunderParams
}

func (e *EventInitFunder) eventSealed() {}

// EventInitFundee starts a channel as the fundee, waiting for the remote's
// OpenChannel.
type EventInitFundee struct {
	// TemporaryChannelID is the id the funder will reference until the
	// funding transaction exists.
	TemporaryChannelID [32]byte

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteInit is the Init message the remote sent at connection
	// establishment.
	RemoteInit *lnwire.Init
}

func (e *EventInitFundee) eventSealed() {}

// EventMessageReceived delivers a decoded peer message to the state machine.
type EventMessageReceived struct {
	// Msg is the received message.
	Msg lnwire.Message
}

func (e *EventMessageReceived) eventSealed() {}

// EventWatchConfirmed reports that a watched transaction reached its
// requested depth.
type EventWatchConfirmed struct {
	// Tx is the confirmed transaction.
	Tx *wire.MsgTx

	// BlockHeight is the height of the confirming block.
	BlockHeight uint32

	// TxIndex is the transaction's index within the confirming block.
	TxIndex uint32
}

func (e *EventWatchConfirmed) eventSealed() {}

// EventWatchSpent reports that a watched outpoint was spent on chain.
type EventWatchSpent struct {
	// Tx is the spending transaction.
	Tx *wire.MsgTx
}

func (e *EventWatchSpent) eventSealed() {}

// EventMakeFundingTxResponse is the wallet's answer to an
// ActionMakeFundingTx request.
type EventMakeFundingTxResponse struct {
	// FundingTx is the constructed, fully signed funding transaction.
	FundingTx *wire.MsgTx

	// FundingTxOutputIndex points at the funding output within the
	// transaction.
	FundingTxOutputIndex uint32

	// Fee is the on-chain fee paid by the funding transaction.
	Fee btcutil.Amount
}

func (e *EventMakeFundingTxResponse) eventSealed() {}

// EventExecuteCommand delivers a local command to the state machine.
type EventExecuteCommand struct {
	// Cmd is the command to execute.
	Cmd Command
}

func (e *EventExecuteCommand) eventSealed() {}

// EventFundingTimeout is injected by the driver when the funding transaction
// of a fundee channel fails to confirm within FundingTimeoutFundee.
type EventFundingTimeout struct{}

func (e *EventFundingTimeout) eventSealed() {}

// Command is a locally issued channel operation.
type Command interface {
	commandSealed()
}

// CmdAddHtlc offers a new HTLC to the remote.
type CmdAddHtlc struct {
	// Amount is the HTLC value.
	Amount lnwire.MilliSatoshi

	// PaymentHash is the hash whose preimage settles the HTLC.
	PaymentHash [32]byte

	// Expiry is the absolute block height the HTLC times out at.
	Expiry uint32

	// Onion is the routing packet forwarded alongside the HTLC.
	Onion [lnwire.OnionPacketSize]byte

	// Commit requests an immediate CommitSig after staging the update.
	Commit bool
}

func (c CmdAddHtlc) commandSealed() {}

// CmdFulfillHtlc settles an incoming HTLC with its preimage.
type CmdFulfillHtlc struct {
	// ID is the HTLC id.
	ID uint64

	// Preimage is the payment preimage.
	Preimage [32]byte

	// Commit requests an immediate CommitSig after staging the update.
	Commit bool
}

func (c CmdFulfillHtlc) commandSealed() {}

// CmdFailHtlc fails an incoming HTLC.
type CmdFailHtlc struct {
	// ID is the HTLC id.
	ID uint64

	// Reason is the encrypted failure reason returned to the sender.
	Reason lnwire.OpaqueReason

	// Commit requests an immediate CommitSig after staging the update.
	Commit bool
}

func (c CmdFailHtlc) commandSealed() {}

// CmdFailMalformedHtlc fails an incoming HTLC whose onion could not be
// parsed.
type CmdFailMalformedHtlc struct {
	// ID is the HTLC id.
	ID uint64

	// ShaOnionBlob is the sha256 of the onion that failed to parse.
	ShaOnionBlob [32]byte

	// FailureCode is the BADONION failure code.
	FailureCode uint16

	// Commit requests an immediate CommitSig after staging the update.
	Commit bool
}

func (c CmdFailMalformedHtlc) commandSealed() {}

// CmdSign signs all pending changes into a new remote commitment.
type CmdSign struct{}

func (c CmdSign) commandSealed() {}
