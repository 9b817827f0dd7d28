package channel

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Action is an effect emitted by a state transition. The transition function
// itself performs no I/O, the driver dispatches actions to the collaborators
// in the exact order they were emitted.
type Action interface {
	actionSealed()
}

// ActionSendMessage instructs the driver to deliver a message to the peer.
type ActionSendMessage struct {
	// Msg is the message to send.
	Msg lnwire.Message
}

func (a *ActionSendMessage) actionSealed() {}

// ActionSendWatch registers a chain watch with the watcher.
type ActionSendWatch struct {
	// Watch is the watch request.
	Watch Watch
}

func (a *ActionSendWatch) actionSealed() {}

// ActionPublishTx broadcasts a transaction to the network.
type ActionPublishTx struct {
	// Tx is the transaction to broadcast.
	Tx *wire.MsgTx

	// Label is an optional label attached to the broadcast.
	Label string
}

func (a *ActionPublishTx) actionSealed() {}

// ActionMakeFundingTx asks the wallet to construct the funding transaction.
// The wallet answers with an EventMakeFundingTxResponse.
type ActionMakeFundingTx struct {
	// PkScript is the funding output script.
	PkScript []byte

	// Amount is the funding output value.
	Amount btcutil.Amount

	// FeeRatePerKw is the fee rate for the funding transaction.
	FeeRatePerKw chainfee.SatPerKWeight
}

func (a *ActionMakeFundingTx) actionSealed() {}

// ActionStoreState persists the channel state. The driver MUST complete the
// write before dispatching any later action of the same batch whose effect
// is externally observable.
type ActionStoreState struct {
	// State is the state to persist.
	State ChannelState
}

func (a *ActionStoreState) actionSealed() {}

// ActionStoreHtlcInfos persists the HTLC details of a new remote commitment
// for later penalty construction.
type ActionStoreHtlcInfos struct {
	// ChannelID identifies the channel.
	ChannelID lnwire.ChannelID

	// CommitmentNumber is the remote commitment the HTLCs belong to.
	CommitmentNumber uint64

	// Htlcs are the untrimmed HTLCs of the commitment.
	Htlcs []HtlcInfo
}

func (a *ActionStoreHtlcInfos) actionSealed() {}

// ActionHandleError reports a protocol, validation or cryptographic failure.
// The driver converts it into a wire Error and decides whether the failure
// is fatal.
type ActionHandleError struct {
	// Err describes the failure.
	Err error
}

func (a *ActionHandleError) actionSealed() {}

// ActionChannelIdAssigned reports the definitive channel id once the funding
// outpoint is known.
type ActionChannelIdAssigned struct {
	// TemporaryChannelID is the id used during negotiation.
	TemporaryChannelID [32]byte

	// ChannelID is the definitive id derived from the funding outpoint.
	ChannelID lnwire.ChannelID
}

func (a *ActionChannelIdAssigned) actionSealed() {}

// ActionChannelIdSwitched reports that message routing must move from the
// temporary id to the definitive id.
type ActionChannelIdSwitched struct {
	// OldChannelID is the temporary id.
	OldChannelID [32]byte

	// NewChannelID is the definitive id.
	NewChannelID lnwire.ChannelID
}

func (a *ActionChannelIdSwitched) actionSealed() {}

// ActionProcessCommand re-enqueues a command at the back of the channel's
// event queue.
type ActionProcessCommand struct {
	// Cmd is the command to replay.
	Cmd Command
}

func (a *ActionProcessCommand) actionSealed() {}

// ActionProcessAdd reports an incoming HTLC that became irrevocably
// committed on both commitments.
type ActionProcessAdd struct {
	// Add is the committed HTLC.
	Add lnwire.UpdateAddHTLC
}

func (a *ActionProcessAdd) actionSealed() {}

// ActionProcessFail reports a failure of one of our HTLCs that became
// irrevocably committed.
type ActionProcessFail struct {
	// Fail is the committed failure.
	Fail lnwire.UpdateFailHTLC
}

func (a *ActionProcessFail) actionSealed() {}

// ActionProcessFailMalformed reports a malformed-onion failure of one of our
// HTLCs that became irrevocably committed.
type ActionProcessFailMalformed struct {
	// Fail is the committed failure.
	Fail lnwire.UpdateFailMalformedHTLC
}

func (a *ActionProcessFailMalformed) actionSealed() {}

// Watch is a request registered with the blockchain watcher.
type Watch interface {
	watchSealed()
}

// WatchSpent asks for a notification when the outpoint is spent.
type WatchSpent struct {
	// OutPoint is the outpoint to watch.
	OutPoint wire.OutPoint

	// PkScript is the script of the watched output.
	PkScript []byte
}

func (w *WatchSpent) watchSealed() {}

// WatchConfirmed asks for a notification when the transaction reaches the
// given depth.
type WatchConfirmed struct {
	// Txid is the transaction to watch.
	Txid chainhash.Hash

	// PkScript is the script of the watched output.
	PkScript []byte

	// MinDepth is the confirmation count to wait for.
	MinDepth uint32
}

func (w *WatchConfirmed) watchSealed() {}

// WatchLost cancels the watches of a transaction that is no longer
// interesting.
type WatchLost struct {
	// Txid is the transaction to stop watching.
	Txid chainhash.Hash
}

func (w *WatchLost) watchSealed() {}
