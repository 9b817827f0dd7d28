package channel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/queue"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// MessageSender delivers wire messages to the channel peer.
type MessageSender interface {
	// SendMessage hands a message to the peer connection.
	SendMessage(msg lnwire.Message) error
}

// Watcher registers chain watches and reports back through events.
type Watcher interface {
	// Watch registers a watch request.
	Watch(w Watch) error
}

// Wallet constructs funding transactions and broadcasts transactions.
type Wallet interface {
	// MakeFundingTx asks the wallet to build the funding transaction.
	// The wallet reports back with an EventMakeFundingTxResponse.
	MakeFundingTx(pkScript []byte, amount btcutil.Amount,
		feeRate chainfee.SatPerKWeight) error

	// PublishTransaction broadcasts a transaction to the network.
	PublishTransaction(tx *wire.MsgTx, label string) error
}

// Store persists channel state ahead of irreversible actions.
type Store interface {
	// StoreState atomically persists the channel state. The call MUST
	// NOT return before the state is durable.
	StoreState(state ChannelState) error

	// StoreHtlcInfos persists the HTLC details of a remote commitment.
	StoreHtlcInfos(chanID lnwire.ChannelID, commitmentNumber uint64,
		htlcs []HtlcInfo) error
}

// ErrorHandler consumes failures surfaced by the state machine.
type ErrorHandler interface {
	// HandleError reacts to a channel failure. Fatal failures are
	// expected to end with an Error message to the peer and a channel
	// close.
	HandleError(chanErr error, fatal bool)
}

// Forwarder consumes the relay-facing notifications of the channel.
type Forwarder interface {
	// ProcessAdd handles an incoming HTLC that became irrevocably
	// committed.
	ProcessAdd(add lnwire.UpdateAddHTLC)

	// ProcessFail handles a failure of one of our HTLCs that became
	// irrevocably committed.
	ProcessFail(fail lnwire.UpdateFailHTLC)

	// ProcessFailMalformed handles a malformed-onion failure that became
	// irrevocably committed.
	ProcessFailMalformed(fail lnwire.UpdateFailMalformedHTLC)

	// ChannelIdAssigned reports the definitive channel id.
	ChannelIdAssigned(temporaryChannelID [32]byte,
		channelID lnwire.ChannelID)

	// ChannelIdSwitched reports that message routing must switch ids.
	ChannelIdSwitched(oldChannelID [32]byte, newChannelID lnwire.ChannelID)
}

// DriverConfig bundles the collaborators of a channel driver.
type DriverConfig struct {
	// InitialState is the state the machine starts or resumes from.
	InitialState ChannelState

	// MessageSender delivers messages to the peer.
	MessageSender MessageSender

	// Watcher registers chain watches.
	Watcher Watcher

	// Wallet builds funding transactions and broadcasts.
	Wallet Wallet

	// Store persists channel state.
	Store Store

	// ErrorHandler consumes channel failures.
	ErrorHandler ErrorHandler

	// Forwarder consumes relay notifications. Optional for leaf
	// endpoints that never relay.
	Forwarder Forwarder
}

// Driver pumps events from a single FIFO queue through the pure transition
// function and dispatches the resulting actions to the collaborators. One
// driver runs per channel; channels never share state.
type Driver struct {
	started  int32
	shutdown int32

	cfg DriverConfig

	// state is only touched from the event loop goroutine.
	state ChannelState

	events *queue.ConcurrentQueue

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewDriver creates a driver around an initial state.
func NewDriver(cfg DriverConfig) *Driver {
	return &Driver{
		cfg:    cfg,
		state:  cfg.InitialState,
		events: queue.NewConcurrentQueue(16),
		quit:   make(chan struct{}),
	}
}

// Start launches the event loop.
func (d *Driver) Start() error {
	if !atomic.CompareAndSwapInt32(&d.started, 0, 1) {
		return nil
	}

	d.events.Start()

	d.wg.Add(1)
	go d.mainLoop()

	return nil
}

// Stop terminates the event loop and waits for it to exit.
func (d *Driver) Stop() error {
	if !atomic.CompareAndSwapInt32(&d.shutdown, 0, 1) {
		return nil
	}

	close(d.quit)
	d.wg.Wait()
	d.events.Stop()

	return nil
}

// SendEvent enqueues an event for processing. Events are consumed in FIFO
// order, one at a time.
func (d *Driver) SendEvent(event Event) {
	select {
	case d.events.ChanIn() <- event:
	case <-d.quit:
	}
}

// mainLoop fully consumes one event at a time: state update first, then all
// action dispatches, before the next event is drawn.
func (d *Driver) mainLoop() {
	defer d.wg.Done()

	for {
		select {
		case item := <-d.events.ChanOut():
			event, ok := item.(Event)
			if !ok {
				log.Errorf("dropping foreign queue item %T",
					item)
				continue
			}

			d.processEvent(event)

		case <-d.quit:
			return
		}
	}
}

// processEvent runs one transition and dispatches its actions in order.
func (d *Driver) processEvent(event Event) {
	nextState, actions := d.state.Process(event)

	log.Tracef("state %v --%T--> %v: %v", d.state.Name(), event,
		nextState.Name(), spew.Sdump(actions))

	d.state = nextState

	stored := false
	for _, action := range actions {
		// The state must be durable before any action whose effect
		// cannot be rolled back. The transition function emits
		// StoreState in the right position, this is the driver's
		// backstop.
		if isIrreversible(action) && !stored {
			log.Warnf("state %v emitted %T before StoreState, "+
				"persisting defensively", d.state.Name(),
				action)
			if err := d.cfg.Store.StoreState(d.state); err != nil {
				d.cfg.ErrorHandler.HandleError(err, true)
				return
			}
			stored = true
		}

		if err := d.dispatch(action); err != nil {
			d.cfg.ErrorHandler.HandleError(err, true)
			return
		}

		if _, ok := action.(*ActionStoreState); ok {
			stored = true
		}
	}
}

// isIrreversible reports whether an action's effect is externally observable
// and cannot be rolled back.
func isIrreversible(action Action) bool {
	switch a := action.(type) {
	case *ActionPublishTx:
		return true

	case *ActionSendMessage:
		switch a.Msg.(type) {
		case *lnwire.CommitSig, *lnwire.RevokeAndAck:
			return true
		}
	}

	return false
}

// dispatch forwards one action to its collaborator.
func (d *Driver) dispatch(action Action) error {
	switch a := action.(type) {
	case *ActionSendMessage:
		return d.cfg.MessageSender.SendMessage(a.Msg)

	case *ActionSendWatch:
		return d.cfg.Watcher.Watch(a.Watch)

	case *ActionPublishTx:
		return d.cfg.Wallet.PublishTransaction(a.Tx, a.Label)

	case *ActionMakeFundingTx:
		return d.cfg.Wallet.MakeFundingTx(
			a.PkScript, a.Amount, a.FeeRatePerKw,
		)

	case *ActionStoreState:
		return d.cfg.Store.StoreState(a.State)

	case *ActionStoreHtlcInfos:
		return d.cfg.Store.StoreHtlcInfos(
			a.ChannelID, a.CommitmentNumber, a.Htlcs,
		)

	case *ActionHandleError:
		d.cfg.ErrorHandler.HandleError(a.Err, isFatalError(a.Err))
		return nil

	case *ActionProcessCommand:
		// Replayed commands join the back of the queue, events
		// already enqueued are served first.
		d.SendEvent(&EventExecuteCommand{Cmd: a.Cmd})
		return nil

	case *ActionChannelIdAssigned:
		if d.cfg.Forwarder != nil {
			d.cfg.Forwarder.ChannelIdAssigned(
				a.TemporaryChannelID, a.ChannelID,
			)
		}
		return nil

	case *ActionChannelIdSwitched:
		if d.cfg.Forwarder != nil {
			d.cfg.Forwarder.ChannelIdSwitched(
				a.OldChannelID, a.NewChannelID,
			)
		}
		return nil

	case *ActionProcessAdd:
		if d.cfg.Forwarder != nil {
			d.cfg.Forwarder.ProcessAdd(a.Add)
		}
		return nil

	case *ActionProcessFail:
		if d.cfg.Forwarder != nil {
			d.cfg.Forwarder.ProcessFail(a.Fail)
		}
		return nil

	case *ActionProcessFailMalformed:
		if d.cfg.Forwarder != nil {
			d.cfg.Forwarder.ProcessFailMalformed(a.Fail)
		}
		return nil

	default:
		return fmt.Errorf("unknown action %T", action)
	}
}

// isFatalError classifies cryptographic failures as fatal, per the error
// handling contract: the peer proved it cannot be cooperated with.
func isFatalError(chanErr error) bool {
	var (
		badCommitSig *ErrInvalidCommitmentSignature
		badHtlcSig   *ErrInvalidHtlcSignature
	)

	switch {
	case errors.As(chanErr, &badCommitSig):
		return true
	case errors.As(chanErr, &badHtlcSig):
		return true
	case errors.Is(chanErr, ErrInvalidRevocationSecret):
		return true
	}

	return false
}
