package channel

import (
	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// Direction tags an HTLC relative to the owner of the commitment spec it
// lives in.
type Direction uint8

const (
	// Incoming marks an HTLC offered to the spec owner.
	Incoming Direction = iota

	// Outgoing marks an HTLC offered by the spec owner.
	Outgoing
)

// String returns a human readable description of the direction.
func (d Direction) String() string {
	if d == Incoming {
		return "IN"
	}
	return "OUT"
}

// DirectedHtlc pairs an HTLC with its direction relative to the owner of the
// commitment spec holding it.
type DirectedHtlc struct {
	// Direction is the HTLC direction from the spec owner's point of
	// view.
	Direction Direction

	// Add is the update that created the HTLC.
	Add lnwire.UpdateAddHTLC
}

// CommitmentSpec describes one commitment transaction in terms of balances
// and pending HTLCs, before fees and trimming are applied. The spec is always
// expressed from the point of view of the commitment owner: ToLocal is the
// owner's balance.
type CommitmentSpec struct {
	// Htlcs is the set of HTLCs pending on the commitment.
	Htlcs []DirectedHtlc

	// FeeRatePerKw is the fee rate locked into the commitment.
	FeeRatePerKw chainfee.SatPerKWeight

	// ToLocal is the owner's balance.
	ToLocal lnwire.MilliSatoshi

	// ToRemote is the counterparty's balance.
	ToRemote lnwire.MilliSatoshi
}

// TotalFunds sums both balances and every pending HTLC, which is invariant
// across valid spec transitions.
func (s CommitmentSpec) TotalFunds() lnwire.MilliSatoshi {
	total := s.ToLocal + s.ToRemote
	for _, htlc := range s.Htlcs {
		total += htlc.Add.Amount
	}
	return total
}

// findHtlc locates a pending HTLC by direction and id.
func (s CommitmentSpec) findHtlc(dir Direction, id uint64) (DirectedHtlc,
	bool) {

	for _, htlc := range s.Htlcs {
		if htlc.Direction == dir && htlc.Add.ID == id {
			return htlc, true
		}
	}
	return DirectedHtlc{}, false
}

// addHtlc stages a new HTLC on the spec, debiting the offerer's balance.
func (s CommitmentSpec) addHtlc(dir Direction,
	add *lnwire.UpdateAddHTLC) CommitmentSpec {

	next := s.copy()
	next.Htlcs = append(next.Htlcs, DirectedHtlc{
		Direction: dir,
		Add:       *add,
	})

	if dir == Outgoing {
		next.ToLocal -= add.Amount
	} else {
		next.ToRemote -= add.Amount
	}

	return next
}

// settleHtlc removes a pending HTLC, crediting the balance of the side the
// funds flow to: the receiver on fulfill, the offerer on failure.
func (s CommitmentSpec) settleHtlc(dir Direction, id uint64,
	fulfilled bool) (CommitmentSpec, error) {

	htlc, ok := s.findHtlc(dir, id)
	if !ok {
		return s, &ErrUnknownHtlc{ID: id}
	}

	next := s.copy()
	filtered := next.Htlcs[:0]
	removed := false
	for _, h := range next.Htlcs {
		if !removed && h.Direction == dir && h.Add.ID == id {
			removed = true
			continue
		}
		filtered = append(filtered, h)
	}
	next.Htlcs = filtered

	// Fulfilling an incoming HTLC credits the owner, fulfilling an
	// outgoing one credits the counterparty. Failures refund the offerer.
	creditLocal := (dir == Incoming && fulfilled) ||
		(dir == Outgoing && !fulfilled)
	if creditLocal {
		next.ToLocal += htlc.Add.Amount
	} else {
		next.ToRemote += htlc.Add.Amount
	}

	return next, nil
}

// copy returns a deep copy of the spec, the HTLC slice is cloned so the
// receiver stays untouched.
func (s CommitmentSpec) copy() CommitmentSpec {
	htlcs := make([]DirectedHtlc, len(s.Htlcs))
	copy(htlcs, s.Htlcs)

	return CommitmentSpec{
		Htlcs:        htlcs,
		FeeRatePerKw: s.FeeRatePerKw,
		ToLocal:      s.ToLocal,
		ToRemote:     s.ToRemote,
	}
}

// reduce applies the pending change sets to the spec, producing the next
// commitment spec. ownerChanges are updates sent by the spec owner,
// counterChanges updates sent by the counterparty. Adds are applied before
// settles so a fulfill can reference an add in the same batch.
func (s CommitmentSpec) reduce(ownerChanges,
	counterChanges []lnwire.Message) (CommitmentSpec, error) {

	next := s.copy()

	for _, msg := range ownerChanges {
		if add, ok := msg.(*lnwire.UpdateAddHTLC); ok {
			next = next.addHtlc(Outgoing, add)
		}
	}
	for _, msg := range counterChanges {
		if add, ok := msg.(*lnwire.UpdateAddHTLC); ok {
			next = next.addHtlc(Incoming, add)
		}
	}

	var err error
	for _, msg := range ownerChanges {
		// The owner settles HTLCs that are incoming from its point of
		// view.
		switch m := msg.(type) {
		case *lnwire.UpdateFulfillHTLC:
			next, err = next.settleHtlc(Incoming, m.ID, true)
		case *lnwire.UpdateFailHTLC:
			next, err = next.settleHtlc(Incoming, m.ID, false)
		case *lnwire.UpdateFailMalformedHTLC:
			next, err = next.settleHtlc(Incoming, m.ID, false)
		}
		if err != nil {
			return s, err
		}
	}
	for _, msg := range counterChanges {
		switch m := msg.(type) {
		case *lnwire.UpdateFulfillHTLC:
			next, err = next.settleHtlc(Outgoing, m.ID, true)
		case *lnwire.UpdateFailHTLC:
			next, err = next.settleHtlc(Outgoing, m.ID, false)
		case *lnwire.UpdateFailMalformedHTLC:
			next, err = next.settleHtlc(Outgoing, m.ID, false)
		}
		if err != nil {
			return s, err
		}
	}

	return next, nil
}

// mirror flips the spec to the counterparty's point of view.
func (s CommitmentSpec) mirror() CommitmentSpec {
	htlcs := make([]DirectedHtlc, len(s.Htlcs))
	for i, htlc := range s.Htlcs {
		dir := Incoming
		if htlc.Direction == Incoming {
			dir = Outgoing
		}
		htlcs[i] = DirectedHtlc{Direction: dir, Add: htlc.Add}
	}

	return CommitmentSpec{
		Htlcs:        htlcs,
		FeeRatePerKw: s.FeeRatePerKw,
		ToLocal:      s.ToRemote,
		ToRemote:     s.ToLocal,
	}
}
