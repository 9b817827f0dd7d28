package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// mockCollaborators records every dispatched effect in order.
type mockCollaborators struct {
	mu     sync.Mutex
	trace  []string
	sent   []lnwire.Message
	fatals []error
	errs   []error
}

func (m *mockCollaborators) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = append(m.trace, event)
}

func (m *mockCollaborators) SendMessage(msg lnwire.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.record("send:" + msg.MsgType().String())
	return nil
}

func (m *mockCollaborators) Watch(w Watch) error {
	m.record("watch")
	return nil
}

func (m *mockCollaborators) MakeFundingTx(pkScript []byte,
	amount btcutil.Amount, feeRate chainfee.SatPerKWeight) error {

	m.record("makefunding")
	return nil
}

func (m *mockCollaborators) PublishTransaction(tx *wire.MsgTx,
	label string) error {

	m.record("publish")
	return nil
}

func (m *mockCollaborators) StoreState(state ChannelState) error {
	m.record("store")
	return nil
}

func (m *mockCollaborators) StoreHtlcInfos(chanID lnwire.ChannelID,
	commitmentNumber uint64, htlcs []HtlcInfo) error {

	m.record("storehtlcs")
	return nil
}

func (m *mockCollaborators) HandleError(chanErr error, fatal bool) {
	m.mu.Lock()
	m.errs = append(m.errs, chanErr)
	if fatal {
		m.fatals = append(m.fatals, chanErr)
	}
	m.mu.Unlock()

	m.record("error")
}

func (m *mockCollaborators) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.trace))
	copy(out, m.trace)
	return out
}

// scriptedState replays a fixed action list for every event, counting the
// events it saw.
type scriptedState struct {
	mu      sync.Mutex
	actions [][]Action
	seen    int
}

func (s *scriptedState) Process(event Event) (ChannelState, []Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var actions []Action
	if s.seen < len(s.actions) {
		actions = s.actions[s.seen]
	}
	s.seen++

	return s, actions
}

func (s *scriptedState) Name() string { return "scripted" }

func (s *scriptedState) eventsSeen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

func newTestDriver(t *testing.T, initial ChannelState) (*Driver,
	*mockCollaborators) {

	t.Helper()

	mocks := &mockCollaborators{}
	driver := NewDriver(DriverConfig{
		InitialState:  initial,
		MessageSender: mocks,
		Watcher:       mocks,
		Wallet:        mocks,
		Store:         mocks,
		ErrorHandler:  mocks,
	})

	require.NoError(t, driver.Start())
	t.Cleanup(func() {
		require.NoError(t, driver.Stop())
	})

	return driver, mocks
}

// TestDriverDispatchOrder asserts actions are dispatched in emission order.
func TestDriverDispatchOrder(t *testing.T) {
	state := &scriptedState{actions: [][]Action{{
		&ActionSendWatch{Watch: &WatchLost{}},
		&ActionStoreState{State: &Aborted{}},
		&ActionPublishTx{Tx: wire.NewMsgTx(2)},
	}}}

	driver, mocks := newTestDriver(t, state)
	driver.SendEvent(&EventFundingTimeout{})

	require.Eventually(t, func() bool {
		return len(mocks.snapshot()) == 3
	}, time.Second, 10*time.Millisecond)

	require.Equal(
		t, []string{"watch", "store", "publish"}, mocks.snapshot(),
	)
}

// TestDriverDefensiveStore asserts the driver persists the state before an
// irreversible action that arrives without a preceding StoreState.
func TestDriverDefensiveStore(t *testing.T) {
	state := &scriptedState{actions: [][]Action{{
		&ActionPublishTx{Tx: wire.NewMsgTx(2)},
	}}}

	driver, mocks := newTestDriver(t, state)
	driver.SendEvent(&EventFundingTimeout{})

	require.Eventually(t, func() bool {
		return len(mocks.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"store", "publish"}, mocks.snapshot())
}

// TestDriverProcessCommandReenqueues asserts a ProcessCommand action feeds a
// new event back into the loop.
func TestDriverProcessCommandReenqueues(t *testing.T) {
	state := &scriptedState{actions: [][]Action{
		{&ActionProcessCommand{Cmd: CmdSign{}}},
	}}

	driver, _ := newTestDriver(t, state)
	driver.SendEvent(&EventFundingTimeout{})

	require.Eventually(t, func() bool {
		return state.eventsSeen() == 2
	}, time.Second, 10*time.Millisecond)
}

// TestDriverFatalClassification asserts cryptographic failures are marked
// fatal while policy failures are not.
func TestDriverFatalClassification(t *testing.T) {
	state := &scriptedState{actions: [][]Action{
		{&ActionHandleError{Err: &ErrInvalidCommitmentSignature{}}},
		{&ActionHandleError{Err: &ErrUnknownHtlc{ID: 1}}},
	}}

	driver, mocks := newTestDriver(t, state)
	driver.SendEvent(&EventFundingTimeout{})
	driver.SendEvent(&EventFundingTimeout{})

	require.Eventually(t, func() bool {
		mocks.mu.Lock()
		defer mocks.mu.Unlock()
		return len(mocks.errs) == 2
	}, time.Second, 10*time.Millisecond)

	mocks.mu.Lock()
	defer mocks.mu.Unlock()
	require.Len(t, mocks.fatals, 1)
	require.IsType(
		t, &ErrInvalidCommitmentSignature{}, mocks.fatals[0],
	)
}

// TestDriverEndToEnd wires a real funder state machine to the driver and
// asserts the opening flow reaches WaitForFundingInternal with the funding
// request dispatched through the wallet interface.
func TestDriverEndToEnd(t *testing.T) {
	funder := newTestParty(t, "driver funder")
	fundee := newTestParty(t, "driver fundee")

	fundee.process(t, &EventInitFundee{
		TemporaryChannelID: testTemporaryChannelID,
		LocalParams:        testLocalParams(2, false),
		RemoteInit:         lnwire.NewInitMessage(nil, lnwire.NewRawFeatureVector()),
	})

	driver, mocks := newTestDriver(t, funder.state)

	driver.SendEvent(&EventInitFunder{
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

	require.Eventually(t, func() bool {
		mocks.mu.Lock()
		defer mocks.mu.Unlock()
		return len(mocks.sent) == 1
	}, time.Second, 10*time.Millisecond)

	mocks.mu.Lock()
	open := mocks.sent[0].(*lnwire.OpenChannel)
	mocks.mu.Unlock()

	fundeeActions := fundee.process(t, &EventMessageReceived{Msg: open})
	accept := singleMessage(t, fundeeActions).(*lnwire.AcceptChannel)

	driver.SendEvent(&EventMessageReceived{Msg: accept})

	require.Eventually(t, func() bool {
		for _, ev := range mocks.snapshot() {
			if ev == "makefunding" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
