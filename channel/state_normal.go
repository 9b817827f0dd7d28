package channel

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/lightningnetwork/lnchannel/fn"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Process drives the channel through normal operation: staging HTLC
// updates, exchanging commitment signatures and revocations.
func (s *Normal) Process(event Event) (ChannelState, []Action) {
	switch e := event.(type) {
	case *EventExecuteCommand:
		return s.processCommand(e.Cmd)

	case *EventMessageReceived:
		return s.processMessage(e.Msg)

	case *EventWatchConfirmed:
		// The announcement-depth watch fired, the funding transaction
		// is now buried deep enough to announce the channel.
		if s.Buried {
			return unhandled(s, event)
		}

		next := s.copy()
		next.Buried = true
		return next, []Action{&ActionStoreState{State: next}}

	default:
		return unhandled(s, event)
	}
}

// copy clones the state so transitions stay copy-on-write.
func (s *Normal) copy() *Normal {
	next := *s
	return &next
}

// processCommand applies a locally issued command.
func (s *Normal) processCommand(cmd Command) (ChannelState, []Action) {
	switch c := cmd.(type) {
	case CmdAddHtlc:
		if s.LocalShutdown != nil || s.RemoteShutdown != nil {
			return s, []Action{&ActionHandleError{
				Err: ErrNoMoreHtlcsClosingInProgress,
			}}
		}

		commitments, add, err := s.Commitments.SendAdd(
			c, s.CurrentTip.Height,
		)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments

		actions := []Action{&ActionSendMessage{Msg: add}}
		if c.Commit {
			actions = append(actions, &ActionProcessCommand{
				Cmd: CmdSign{},
			})
		}
		return next, actions

	case CmdFulfillHtlc:
		commitments, fulfill, err := s.Commitments.SendFulfill(c)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments

		actions := []Action{&ActionSendMessage{Msg: fulfill}}
		if c.Commit {
			actions = append(actions, &ActionProcessCommand{
				Cmd: CmdSign{},
			})
		}
		return next, actions

	case CmdFailHtlc:
		commitments, fail, err := s.Commitments.SendFail(c)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments

		actions := []Action{&ActionSendMessage{Msg: fail}}
		if c.Commit {
			actions = append(actions, &ActionProcessCommand{
				Cmd: CmdSign{},
			})
		}
		return next, actions

	case CmdFailMalformedHtlc:
		commitments, fail, err := s.Commitments.SendFailMalformed(c)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments

		actions := []Action{&ActionSendMessage{Msg: fail}}
		if c.Commit {
			actions = append(actions, &ActionProcessCommand{
				Cmd: CmdSign{},
			})
		}
		return next, actions

	case CmdSign:
		return s.processSign()

	default:
		return unhandled(s, &EventExecuteCommand{Cmd: cmd})
	}
}

// processSign signs all pending changes into the remote's next commitment,
// or defers the signature until the outstanding revocation arrives.
func (s *Normal) processSign() (ChannelState, []Action) {
	// A signature while the previous one is unrevoked is deferred, the
	// pending revocation will replay it.
	if waiting, isLeft := leftValue(
		s.Commitments.RemoteNextCommitInfo,
	); isLeft {
		waiting.ReSignAsap = true

		next := s.copy()
		next.Commitments.RemoteNextCommitInfo = fn.NewLeft[
			WaitingForRevocation, *btcec.PublicKey,
		](waiting)
		return next, nil
	}

	if !s.Commitments.LocalHasChanges() {
		log.Debugf("ChannelID(%v): ignoring sign request without "+
			"pending changes", s.Commitments.ChannelID)
		return s, nil
	}

	commitments, commitSig, htlcInfos, err := s.Commitments.SendCommit(
		s.keyMgr,
	)
	if err != nil {
		return s, []Action{&ActionHandleError{Err: err}}
	}

	next := s.copy()
	next.Commitments = commitments

	actions := []Action{
		&ActionStoreHtlcInfos{
			ChannelID:        commitments.ChannelID,
			CommitmentNumber: commitments.RemoteCommit.Index + 1,
			Htlcs:            htlcInfos,
		},
		&ActionStoreState{State: next},
		&ActionSendMessage{Msg: commitSig},
	}

	return next, actions
}

// processMessage applies a peer message.
func (s *Normal) processMessage(msg lnwire.Message) (ChannelState, []Action) {
	switch m := msg.(type) {
	case *lnwire.UpdateAddHTLC:
		commitments, err := s.Commitments.ReceiveAdd(m)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments
		return next, nil

	case *lnwire.UpdateFulfillHTLC:
		commitments, _, err := s.Commitments.ReceiveFulfill(m)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments
		return next, nil

	case *lnwire.UpdateFailHTLC:
		commitments, _, err := s.Commitments.ReceiveFail(m)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments
		return next, nil

	case *lnwire.UpdateFailMalformedHTLC:
		commitments, _, err := s.Commitments.ReceiveFailMalformed(m)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments
		return next, nil

	case *lnwire.CommitSig:
		commitments, revocation, err := s.Commitments.ReceiveCommit(
			m, s.keyMgr,
		)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments

		actions := []Action{
			&ActionStoreState{State: next},
			&ActionSendMessage{Msg: revocation},
		}

		// The remote may still owe us a signature for changes we
		// staged, ask for one as soon as the dance permits.
		if commitments.LocalHasChanges() {
			actions = append(actions, &ActionProcessCommand{
				Cmd: CmdSign{},
			})
		}

		return next, actions

	case *lnwire.RevokeAndAck:
		reSignAsap := false
		if waiting, isLeft := leftValue(
			s.Commitments.RemoteNextCommitInfo,
		); isLeft {
			reSignAsap = waiting.ReSignAsap
		}

		commitments, forwards, err := s.Commitments.ReceiveRevocation(
			m,
		)
		if err != nil {
			return s, []Action{&ActionHandleError{Err: err}}
		}

		next := s.copy()
		next.Commitments = commitments

		actions := []Action{&ActionStoreState{State: next}}
		actions = append(actions, forwards...)

		if reSignAsap && commitments.LocalHasChanges() {
			actions = append(actions, &ActionProcessCommand{
				Cmd: CmdSign{},
			})
		}

		return next, actions

	case *lnwire.Shutdown:
		next := s.copy()
		next.RemoteShutdown = m
		return next, []Action{&ActionStoreState{State: next}}

	default:
		return unhandled(s, &EventMessageReceived{Msg: msg})
	}
}

// leftValue extracts the left value of the remote-next-commit Either.
func leftValue(e fn.Either[WaitingForRevocation, *btcec.PublicKey]) (
	WaitingForRevocation, bool) {

	var (
		waiting WaitingForRevocation
		isLeft  bool
	)
	e.WhenLeft(func(w WaitingForRevocation) {
		waiting = w
		isLeft = true
	})

	return waiting, isLeft
}
