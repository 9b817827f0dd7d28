package channel

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/fn"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
	"github.com/lightningnetwork/lnchannel/shachain"
)

// BadOnionBit is the failure code bit that must be set on any malformed-HTLC
// failure code.
const BadOnionBit uint16 = 0x8000

// LocalChanges tracks our updates through the two-phase commitment dance.
// Updates move from Proposed to Signed when we send a CommitSig covering
// them, and from Signed to Acked when the remote revokes the superseded
// commitment. Acked updates leave the log once they appear in our own
// commitment.
type LocalChanges struct {
	Proposed []lnwire.Message
	Signed   []lnwire.Message
	Acked    []lnwire.Message
}

// RemoteChanges tracks the remote's updates. Updates move from Proposed to
// Acked when we revoke our superseded commitment, and from Acked to Signed
// when we sign them back into the remote's commitment.
type RemoteChanges struct {
	Proposed []lnwire.Message
	Acked    []lnwire.Message
	Signed   []lnwire.Message
}

// PublishableTxs is the fully signed local commitment transaction, ready for
// broadcast at any moment, together with its second-level HTLC transactions.
type PublishableTxs struct {
	// CommitTx is the local commitment transaction with its witness
	// assembled.
	CommitTx *wire.MsgTx

	// HtlcTxs are the second-level transactions claiming the commitment's
	// HTLC outputs.
	HtlcTxs []*wire.MsgTx
}

// LocalCommit is our current commitment: the transaction we can publish now,
// along with the spec it was built from.
type LocalCommit struct {
	// Index is the commitment number.
	Index uint64

	// Spec describes balances and pending HTLCs of the commitment.
	Spec CommitmentSpec

	// PublishableTxs is the signed commitment transaction.
	PublishableTxs PublishableTxs
}

// RemoteCommit is the remote's current commitment as we know it.
type RemoteCommit struct {
	// Index is the commitment number.
	Index uint64

	// Spec describes the commitment from the remote's point of view.
	Spec CommitmentSpec

	// Txid is the txid of the remote commitment transaction.
	Txid chainhash.Hash

	// RemotePerCommitmentPoint is the point the commitment's keys were
	// derived from.
	RemotePerCommitmentPoint *btcec.PublicKey
}

// WaitingForRevocation tracks an outstanding CommitSig we sent, pending the
// remote's RevokeAndAck.
type WaitingForRevocation struct {
	// NextRemoteCommit is the commitment the outstanding CommitSig
	// covers. It replaces RemoteCommit once the revocation arrives.
	NextRemoteCommit RemoteCommit

	// SentAfterLocalCommitIndex is our local commitment index at the time
	// the CommitSig was sent.
	SentAfterLocalCommitIndex uint64

	// ReSignAsap is set when a sign request arrived while this CommitSig
	// was outstanding, and is replayed when the revocation comes in.
	ReSignAsap bool
}

// Commitments is the complete commitment state of one channel: both current
// commitment transactions, the pending update logs, the HTLC counters and
// the revocation chain. All mutating operations are copy-on-write and return
// a new value, leaving the receiver untouched.
type Commitments struct {
	// ChannelVersion carries the negotiated derivation and structure
	// bits.
	ChannelVersion ChannelVersion

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteParams are the remote's negotiated channel parameters.
	RemoteParams RemoteParams

	// ChannelFlags are the funding flags negotiated in OpenChannel.
	ChannelFlags lnwire.FundingFlag

	// ChannelID identifies the channel, derived from the funding
	// outpoint.
	ChannelID lnwire.ChannelID

	// LocalCommit is our current commitment.
	LocalCommit LocalCommit

	// RemoteCommit is the remote's current commitment.
	RemoteCommit RemoteCommit

	// LocalChanges are our pending updates.
	LocalChanges LocalChanges

	// RemoteChanges are the remote's pending updates.
	RemoteChanges RemoteChanges

	// LocalNextHtlcID is the id assigned to our next offered HTLC.
	LocalNextHtlcID uint64

	// RemoteNextHtlcID is the id we expect on the remote's next offered
	// HTLC.
	RemoteNextHtlcID uint64

	// RemoteNextCommitInfo is either the in-flight CommitSig bookkeeping
	// (left) or the remote's next per-commitment point (right) when no
	// CommitSig is outstanding.
	RemoteNextCommitInfo fn.Either[WaitingForRevocation, *btcec.PublicKey]

	// CommitInput is the funding output spent by both commitments.
	CommitInput FundingInput

	// RemotePerCommitmentSecrets stores every revoked remote
	// per-commitment secret in compact form.
	RemotePerCommitmentSecrets shachain.RevocationStore

	// OriginChannels maps outgoing HTLC ids to the incoming channel that
	// funded them. Always empty for a leaf endpoint.
	OriginChannels map[uint64]lnwire.ShortChannelID
}

// appendMsg clones the slice before appending, keeping the originating
// Commitments value intact.
func appendMsg(msgs []lnwire.Message, msg lnwire.Message) []lnwire.Message {
	out := make([]lnwire.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, msg)
}

// concatMsgs concatenates update logs into a fresh slice.
func concatMsgs(a, b []lnwire.Message) []lnwire.Message {
	out := make([]lnwire.Message, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// LocalHasChanges returns true if an update is waiting to be signed into the
// remote's commitment.
func (c Commitments) LocalHasChanges() bool {
	return len(c.RemoteChanges.Acked) > 0 || len(c.LocalChanges.Proposed) > 0
}

// RemoteHasChanges returns true if an update is waiting to be signed into
// our commitment by the remote.
func (c Commitments) RemoteHasChanges() bool {
	return len(c.LocalChanges.Acked) > 0 || len(c.RemoteChanges.Proposed) > 0
}

// alreadyResolved reports whether a resolution for the given HTLC id is
// already pending in the update log.
func alreadyResolved(msgs []lnwire.Message, id uint64) bool {
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *lnwire.UpdateFulfillHTLC:
			if m.ID == id {
				return true
			}
		case *lnwire.UpdateFailHTLC:
			if m.ID == id {
				return true
			}
		case *lnwire.UpdateFailMalformedHTLC:
			if m.ID == id {
				return true
			}
		}
	}
	return false
}

// channelKeyPath returns the derivation path of this channel's keys.
func (c Commitments) channelKeyPath(
	keyMgr keychain.KeyManager) keychain.ChannelKeyPath {

	return keyMgr.ChannelKeyPath(
		c.LocalParams.FundingKeyIndex,
		c.ChannelVersion.HasStaticRemoteKey(),
	)
}

// localBasePoints assembles our channel basepoints from the key manager.
func (c Commitments) localBasePoints(
	keyMgr keychain.KeyManager) (basePoints, error) {

	path := c.channelKeyPath(keyMgr)

	revocation, err := keyMgr.RevocationBasePoint(path)
	if err != nil {
		return basePoints{}, err
	}
	payment, err := keyMgr.PaymentBasePoint(path)
	if err != nil {
		return basePoints{}, err
	}
	delayed, err := keyMgr.DelayedPaymentBasePoint(path)
	if err != nil {
		return basePoints{}, err
	}
	htlc, err := keyMgr.HtlcBasePoint(path)
	if err != nil {
		return basePoints{}, err
	}

	return basePoints{
		revocation: revocation,
		payment:    payment,
		delayed:    delayed,
		htlc:       htlc,
	}, nil
}

// remoteBasePoints assembles the remote's basepoints from the negotiated
// parameters.
func (c Commitments) remoteBasePoints() basePoints {
	return basePoints{
		revocation: c.RemoteParams.RevocationBasePoint,
		payment:    c.RemoteParams.PaymentBasePoint,
		delayed:    c.RemoteParams.DelayedPaymentBasePoint,
		htlc:       c.RemoteParams.HtlcBasePoint,
	}
}

// SendAdd assigns the next local HTLC id to the given command, stages the
// update in our proposed log, and validates the prospective remote
// commitment against the remote's limits.
func (c Commitments) SendAdd(cmd CmdAddHtlc, blockHeight uint32) (Commitments,
	*lnwire.UpdateAddHTLC, error) {

	// The expiry must be in the tolerated window relative to the current
	// chain tip.
	if cmd.Expiry <= blockHeight+MinCltvExpiryDelta ||
		cmd.Expiry > blockHeight+MaxCltvExpiryDelta {

		return c, nil, &ErrExpiryOutOfRange{
			Expiry:      cmd.Expiry,
			BlockHeight: blockHeight,
		}
	}

	if cmd.Amount < c.RemoteParams.HtlcMinimum {
		return c, nil, &ErrHtlcValueTooSmall{
			Amount:  cmd.Amount,
			Minimum: c.RemoteParams.HtlcMinimum,
		}
	}

	add := &lnwire.UpdateAddHTLC{
		ChanID:      c.ChannelID,
		ID:          c.LocalNextHtlcID,
		Amount:      cmd.Amount,
		PaymentHash: cmd.PaymentHash,
		Expiry:      cmd.Expiry,
		OnionBlob:   cmd.Onion,
	}

	c1 := c
	c1.LocalChanges.Proposed = appendMsg(c.LocalChanges.Proposed, add)
	c1.LocalNextHtlcID++

	// Project the remote's next commitment and enforce its limits.
	reduced, err := c1.RemoteCommit.Spec.reduce(
		c1.RemoteChanges.Acked,
		concatMsgs(c1.LocalChanges.Proposed, c1.LocalChanges.Signed),
	)
	if err != nil {
		return c, nil, err
	}

	if err := c1.validateRemoteSpec(reduced); err != nil {
		return c, nil, err
	}

	return c1, add, nil
}

// validateRemoteSpec enforces the remote's in-flight, htlc-count and reserve
// constraints against a projection of its next commitment.
func (c Commitments) validateRemoteSpec(reduced CommitmentSpec) error {
	// In the remote's spec, HTLCs we offered are incoming.
	var (
		inFlight lnwire.MilliSatoshi
		count    uint16
	)
	for _, htlc := range reduced.Htlcs {
		if htlc.Direction != Incoming {
			continue
		}
		inFlight += htlc.Add.Amount
		count++
	}

	if count > c.RemoteParams.MaxAcceptedHtlcs {
		return &ErrTooManyHtlcs{
			Pending: count,
			Limit:   c.RemoteParams.MaxAcceptedHtlcs,
		}
	}

	if inFlight > c.RemoteParams.MaxHtlcValueInFlight {
		return &ErrMaxHtlcValueInFlight{
			InFlight: inFlight,
			Limit:    c.RemoteParams.MaxHtlcValueInFlight,
		}
	}

	// The funder additionally pays the commitment fee.
	var fees lnwire.MilliSatoshi
	if c.LocalParams.IsFunder {
		fees = lnwire.NewMSatFromSatoshis(
			commitTxFee(reduced, c.RemoteParams.DustLimit),
		)
	}

	reserve := lnwire.NewMSatFromSatoshis(c.RemoteParams.ChannelReserve)
	if c.ChannelVersion.HasZeroReserve() {
		reserve = 0
	}

	if reduced.ToRemote < reserve+fees {
		return &ErrInsufficientFunds{
			Missing: reserve + fees - reduced.ToRemote,
		}
	}

	return nil
}

// ReceiveAdd stages a remote HTLC add, verifying the id sequence and our
// local limits on the prospective local commitment.
func (c Commitments) ReceiveAdd(add *lnwire.UpdateAddHTLC) (Commitments,
	error) {

	if add.ID != c.RemoteNextHtlcID {
		return c, &ErrUnexpectedHtlcID{
			Expected: c.RemoteNextHtlcID,
			Got:      add.ID,
		}
	}

	if add.Amount < c.LocalParams.HtlcMinimum {
		return c, &ErrHtlcValueTooSmall{
			Amount:  add.Amount,
			Minimum: c.LocalParams.HtlcMinimum,
		}
	}

	c1 := c
	c1.RemoteChanges.Proposed = appendMsg(c.RemoteChanges.Proposed, add)
	c1.RemoteNextHtlcID++

	reduced, err := c1.LocalCommit.Spec.reduce(
		c1.LocalChanges.Acked, c1.RemoteChanges.Proposed,
	)
	if err != nil {
		return c, err
	}

	var (
		inFlight lnwire.MilliSatoshi
		count    uint16
	)
	for _, htlc := range reduced.Htlcs {
		if htlc.Direction != Incoming {
			continue
		}
		inFlight += htlc.Add.Amount
		count++
	}

	if count > c.LocalParams.MaxAcceptedHtlcs {
		return c, &ErrTooManyHtlcs{
			Pending: count,
			Limit:   c.LocalParams.MaxAcceptedHtlcs,
		}
	}

	if inFlight > c.LocalParams.MaxHtlcValueInFlight {
		return c, &ErrMaxHtlcValueInFlight{
			InFlight: inFlight,
			Limit:    c.LocalParams.MaxHtlcValueInFlight,
		}
	}

	var fees lnwire.MilliSatoshi
	if !c.LocalParams.IsFunder {
		fees = lnwire.NewMSatFromSatoshis(
			commitTxFee(reduced, c.LocalParams.DustLimit),
		)
	}

	reserve := lnwire.NewMSatFromSatoshis(c.LocalParams.ChannelReserve)
	if c.ChannelVersion.HasZeroReserve() {
		reserve = 0
	}

	if reduced.ToRemote < reserve+fees {
		return c, &ErrInsufficientFunds{
			Missing: reserve + fees - reduced.ToRemote,
		}
	}

	return c1, nil
}

// SendFulfill stages a fulfill of an incoming HTLC, verifying the preimage
// against the HTLC's payment hash.
func (c Commitments) SendFulfill(cmd CmdFulfillHtlc) (Commitments,
	*lnwire.UpdateFulfillHTLC, error) {

	htlc, ok := c.LocalCommit.Spec.findHtlc(Incoming, cmd.ID)
	if !ok {
		return c, nil, &ErrUnknownHtlc{ID: cmd.ID}
	}

	if alreadyResolved(c.LocalChanges.Proposed, cmd.ID) {
		return c, nil, &ErrHtlcAlreadyResolved{ID: cmd.ID}
	}

	if sha256.Sum256(cmd.Preimage[:]) != htlc.Add.PaymentHash {
		return c, nil, &ErrInvalidHtlcPreimage{ID: cmd.ID}
	}

	fulfill := &lnwire.UpdateFulfillHTLC{
		ChanID:          c.ChannelID,
		ID:              cmd.ID,
		PaymentPreimage: cmd.Preimage,
	}

	c1 := c
	c1.LocalChanges.Proposed = appendMsg(c.LocalChanges.Proposed, fulfill)

	return c1, fulfill, nil
}

// ReceiveFulfill stages a remote fulfill of one of our outgoing HTLCs,
// returning the matched add so upper layers can settle the payment.
func (c Commitments) ReceiveFulfill(msg *lnwire.UpdateFulfillHTLC) (
	Commitments, *lnwire.UpdateAddHTLC, error) {

	htlc, ok := c.LocalCommit.Spec.findHtlc(Outgoing, msg.ID)
	if !ok {
		return c, nil, &ErrUnknownHtlc{ID: msg.ID}
	}

	if sha256.Sum256(msg.PaymentPreimage[:]) != htlc.Add.PaymentHash {
		return c, nil, &ErrInvalidHtlcPreimage{ID: msg.ID}
	}

	c1 := c
	c1.RemoteChanges.Proposed = appendMsg(c.RemoteChanges.Proposed, msg)

	return c1, &htlc.Add, nil
}

// SendFail stages a failure of an incoming HTLC.
func (c Commitments) SendFail(cmd CmdFailHtlc) (Commitments,
	*lnwire.UpdateFailHTLC, error) {

	if _, ok := c.LocalCommit.Spec.findHtlc(Incoming, cmd.ID); !ok {
		return c, nil, &ErrUnknownHtlc{ID: cmd.ID}
	}

	if alreadyResolved(c.LocalChanges.Proposed, cmd.ID) {
		return c, nil, &ErrHtlcAlreadyResolved{ID: cmd.ID}
	}

	fail := &lnwire.UpdateFailHTLC{
		ChanID: c.ChannelID,
		ID:     cmd.ID,
		Reason: cmd.Reason,
	}

	c1 := c
	c1.LocalChanges.Proposed = appendMsg(c.LocalChanges.Proposed, fail)

	return c1, fail, nil
}

// SendFailMalformed stages a malformed-onion failure of an incoming HTLC.
// The failure code must carry the BADONION bit.
func (c Commitments) SendFailMalformed(cmd CmdFailMalformedHtlc) (Commitments,
	*lnwire.UpdateFailMalformedHTLC, error) {

	if cmd.FailureCode&BadOnionBit == 0 {
		return c, nil, ErrInvalidFailureCode
	}

	if _, ok := c.LocalCommit.Spec.findHtlc(Incoming, cmd.ID); !ok {
		return c, nil, &ErrUnknownHtlc{ID: cmd.ID}
	}

	if alreadyResolved(c.LocalChanges.Proposed, cmd.ID) {
		return c, nil, &ErrHtlcAlreadyResolved{ID: cmd.ID}
	}

	fail := &lnwire.UpdateFailMalformedHTLC{
		ChanID:       c.ChannelID,
		ID:           cmd.ID,
		ShaOnionBlob: cmd.ShaOnionBlob,
		FailureCode:  cmd.FailureCode,
	}

	c1 := c
	c1.LocalChanges.Proposed = appendMsg(c.LocalChanges.Proposed, fail)

	return c1, fail, nil
}

// ReceiveFail stages a remote failure of one of our outgoing HTLCs.
func (c Commitments) ReceiveFail(msg *lnwire.UpdateFailHTLC) (Commitments,
	*lnwire.UpdateAddHTLC, error) {

	htlc, ok := c.LocalCommit.Spec.findHtlc(Outgoing, msg.ID)
	if !ok {
		return c, nil, &ErrUnknownHtlc{ID: msg.ID}
	}

	c1 := c
	c1.RemoteChanges.Proposed = appendMsg(c.RemoteChanges.Proposed, msg)

	return c1, &htlc.Add, nil
}

// ReceiveFailMalformed stages a remote malformed-onion failure of one of our
// outgoing HTLCs.
func (c Commitments) ReceiveFailMalformed(
	msg *lnwire.UpdateFailMalformedHTLC) (Commitments,
	*lnwire.UpdateAddHTLC, error) {

	if msg.FailureCode&BadOnionBit == 0 {
		return c, nil, ErrInvalidFailureCode
	}

	htlc, ok := c.LocalCommit.Spec.findHtlc(Outgoing, msg.ID)
	if !ok {
		return c, nil, &ErrUnknownHtlc{ID: msg.ID}
	}

	c1 := c
	c1.RemoteChanges.Proposed = appendMsg(c.RemoteChanges.Proposed, msg)

	return c1, &htlc.Add, nil
}

// SendCommit signs the remote's next commitment, covering every unsigned
// local update and every acked remote update. It returns the CommitSig to
// send along with the HTLC information to persist for the new commitment.
func (c Commitments) SendCommit(keyMgr keychain.KeyManager) (Commitments,
	*lnwire.CommitSig, []HtlcInfo, error) {

	remoteNextPoint, err := c.RemoteNextCommitInfo.RightOut().UnwrapOrErr(
		ErrCommitSigOutstanding,
	)
	if err != nil {
		return c, nil, nil, err
	}

	if !c.LocalHasChanges() {
		return c, nil, nil, ErrNoUpdatesToSign
	}

	spec, err := c.RemoteCommit.Spec.reduce(
		c.RemoteChanges.Acked,
		concatMsgs(c.LocalChanges.Proposed, c.LocalChanges.Signed),
	)
	if err != nil {
		return c, nil, nil, err
	}

	localPoints, err := c.localBasePoints(keyMgr)
	if err != nil {
		return c, nil, nil, err
	}

	keys := deriveCommitmentKeys(
		remoteNextPoint, c.remoteBasePoints(), localPoints,
		c.ChannelVersion.HasStaticRemoteKey(),
	)

	commitCtx, err := buildCommitmentTx(
		c.CommitInput, spec, keys, c.RemoteParams.DustLimit,
		c.LocalParams.ToSelfDelay, !c.LocalParams.IsFunder,
	)
	if err != nil {
		return c, nil, nil, err
	}

	commitSig, err := c.signCommitTx(keyMgr, commitCtx.tx)
	if err != nil {
		return c, nil, nil, err
	}

	htlcSigs, err := c.signHtlcTxs(
		keyMgr, commitCtx, keys, localPoints,
		c.LocalParams.ToSelfDelay, spec.FeeRatePerKw,
	)
	if err != nil {
		return c, nil, nil, err
	}

	htlcInfos := make([]HtlcInfo, 0, len(commitCtx.htlcs))
	for _, entry := range commitCtx.htlcs {
		htlcInfos = append(htlcInfos, HtlcInfo{
			PaymentHash: entry.htlc.Add.PaymentHash,
			CltvExpiry:  entry.htlc.Add.Expiry,
		})
	}

	c1 := c
	c1.LocalChanges = LocalChanges{
		Proposed: nil,
		Signed:   c.LocalChanges.Proposed,
		Acked:    c.LocalChanges.Acked,
	}
	c1.RemoteChanges = RemoteChanges{
		Proposed: c.RemoteChanges.Proposed,
		Acked:    nil,
		Signed:   c.RemoteChanges.Acked,
	}
	c1.RemoteNextCommitInfo = fn.NewLeft[WaitingForRevocation, *btcec.PublicKey](
		WaitingForRevocation{
			NextRemoteCommit: RemoteCommit{
				Index: c.RemoteCommit.Index + 1,
				Spec:  spec,
				Txid:  commitCtx.tx.TxHash(),

				RemotePerCommitmentPoint: remoteNextPoint,
			},
			SentAfterLocalCommitIndex: c.LocalCommit.Index,
		},
	)

	msg := &lnwire.CommitSig{
		ChanID:    c.ChannelID,
		CommitSig: commitSig,
		HtlcSigs:  htlcSigs,
	}

	return c1, msg, htlcInfos, nil
}

// signCommitTx produces our funding signature over a commitment
// transaction.
func (c Commitments) signCommitTx(keyMgr keychain.KeyManager,
	commitTx *wire.MsgTx) (lnwire.Sig, error) {

	sig, err := keyMgr.SignOutputRaw(commitTx, &keychain.SignDescriptor{
		KeyDesc: keychain.KeyDescriptor{
			KeyLocator: keychain.KeyLocator{
				Family: keychain.KeyFamilyMultiSig,
				Index:  c.LocalParams.FundingKeyIndex,
			},
		},
		WitnessScript: c.CommitInput.WitnessScript,
		Output:        &c.CommitInput.TxOut,
		HashType:      txscript.SigHashAll,
		InputIndex:    0,
	})
	if err != nil {
		return lnwire.Sig{}, err
	}

	return lnwire.NewSigFromSignature(sig)
}

// signHtlcTxs signs the second-level transaction of every untrimmed HTLC on
// the commitment, in output order.
func (c Commitments) signHtlcTxs(keyMgr keychain.KeyManager,
	commitCtx *commitmentTx, keys *CommitmentKeyRing,
	localPoints basePoints, toSelfDelay uint16,
	feeRate chainfee.SatPerKWeight) ([]lnwire.Sig, error) {

	entries := sortedHtlcEntries(commitCtx)
	commitTxid := commitCtx.tx.TxHash()

	sigs := make([]lnwire.Sig, 0, len(entries))
	for _, entry := range entries {
		htlcTx, err := buildHtlcTx(
			commitTxid, entry, keys, feeRate, toSelfDelay,
		)
		if err != nil {
			return nil, err
		}

		sig, err := keyMgr.SignOutputRaw(
			htlcTx, &keychain.SignDescriptor{
				KeyDesc: keychain.KeyDescriptor{
					KeyLocator: keychain.KeyLocator{
						Family: keychain.KeyFamilyHtlcBase,
						Index:  c.LocalParams.FundingKeyIndex,
					},
				},
				SingleTweak: keychain.SingleTweakBytes(
					keys.CommitPoint, localPoints.htlc,
				),
				WitnessScript: entry.witnessScript,
				Output: wire.NewTxOut(
					int64(entry.amount), entry.pkScript,
				),
				HashType:   txscript.SigHashAll,
				InputIndex: 0,
			},
		)
		if err != nil {
			return nil, err
		}

		wireSig, err := lnwire.NewSigFromSignature(sig)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, wireSig)
	}

	return sigs, nil
}

// sortedHtlcEntries returns the commitment's HTLC entries ordered by their
// output index within the sorted transaction.
func sortedHtlcEntries(commitCtx *commitmentTx) []htlcEntry {
	entries := make([]htlcEntry, len(commitCtx.htlcs))
	copy(entries, commitCtx.htlcs)

	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 &&
			entries[j].outputIndex < entries[j-1].outputIndex; j-- {

			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	return entries
}

// ReceiveCommit validates a CommitSig over our next commitment, advancing
// LocalCommit and producing the RevokeAndAck that revokes the superseded
// commitment.
func (c Commitments) ReceiveCommit(msg *lnwire.CommitSig,
	keyMgr keychain.KeyManager) (Commitments, *lnwire.RevokeAndAck,
	error) {

	if !c.RemoteHasChanges() {
		return c, nil, ErrNoUpdatesToSign
	}

	spec, err := c.LocalCommit.Spec.reduce(
		c.LocalChanges.Acked, c.RemoteChanges.Proposed,
	)
	if err != nil {
		return c, nil, err
	}

	path := c.channelKeyPath(keyMgr)
	newIndex := c.LocalCommit.Index + 1

	localPoint, err := keyMgr.CommitmentPoint(path, newIndex)
	if err != nil {
		return c, nil, err
	}

	localPoints, err := c.localBasePoints(keyMgr)
	if err != nil {
		return c, nil, err
	}

	keys := deriveCommitmentKeys(
		localPoint, localPoints, c.remoteBasePoints(),
		c.ChannelVersion.HasStaticRemoteKey(),
	)

	commitCtx, err := buildCommitmentTx(
		c.CommitInput, spec, keys, c.LocalParams.DustLimit,
		c.RemoteParams.ToSelfDelay, c.LocalParams.IsFunder,
	)
	if err != nil {
		return c, nil, err
	}

	// The remote's signature must cover the commitment we just rebuilt.
	err = verifyCommitSig(
		commitCtx.tx, c.CommitInput, c.RemoteParams.FundingKey,
		msg.CommitSig,
	)
	if err != nil {
		return c, nil, &ErrInvalidCommitmentSignature{
			CommitIndex: newIndex,
		}
	}

	entries := sortedHtlcEntries(commitCtx)
	if len(msg.HtlcSigs) != len(entries) {
		return c, nil, &ErrHtlcSigCountMismatch{
			Expected: len(entries),
			Got:      len(msg.HtlcSigs),
		}
	}

	commitTxid := commitCtx.tx.TxHash()
	for i, entry := range entries {
		htlcTx, err := buildHtlcTx(
			commitTxid, entry, keys, spec.FeeRatePerKw,
			c.RemoteParams.ToSelfDelay,
		)
		if err != nil {
			return c, nil, err
		}

		sigHash, err := htlcSigHash(htlcTx, entry)
		if err != nil {
			return c, nil, err
		}

		remoteSig, err := msg.HtlcSigs[i].ToSignature()
		if err != nil {
			return c, nil, &ErrInvalidHtlcSignature{
				OutputIndex: entry.outputIndex,
			}
		}

		if !remoteSig.Verify(sigHash, keys.RemoteHtlcKey) {
			return c, nil, &ErrInvalidHtlcSignature{
				OutputIndex: entry.outputIndex,
			}
		}
	}

	publishable, err := c.assemblePublishableTxs(
		keyMgr, commitCtx, msg.CommitSig,
	)
	if err != nil {
		return c, nil, err
	}

	// Revoke the superseded commitment and hand out the point for the
	// commitment after the one just signed.
	prevSecret, err := keyMgr.CommitmentSecret(path, newIndex-1)
	if err != nil {
		return c, nil, err
	}
	nextPoint, err := keyMgr.CommitmentPoint(path, newIndex+1)
	if err != nil {
		return c, nil, err
	}

	c1 := c
	c1.LocalCommit = LocalCommit{
		Index:          newIndex,
		Spec:           spec,
		PublishableTxs: publishable,
	}
	c1.LocalChanges = LocalChanges{
		Proposed: c.LocalChanges.Proposed,
		Signed:   c.LocalChanges.Signed,
		Acked:    nil,
	}
	c1.RemoteChanges = RemoteChanges{
		Proposed: nil,
		Acked: concatMsgs(
			c.RemoteChanges.Acked, c.RemoteChanges.Proposed,
		),
		Signed: c.RemoteChanges.Signed,
	}

	revocation := &lnwire.RevokeAndAck{
		ChanID:            c.ChannelID,
		Revocation:        *prevSecret,
		NextRevocationKey: nextPoint,
	}

	return c1, revocation, nil
}

// assemblePublishableTxs signs our half of the commitment and assembles the
// witness so the transaction can be broadcast at any time.
func (c Commitments) assemblePublishableTxs(keyMgr keychain.KeyManager,
	commitCtx *commitmentTx, remoteSig lnwire.Sig) (PublishableTxs,
	error) {

	localSig, err := c.signCommitTx(keyMgr, commitCtx.tx)
	if err != nil {
		return PublishableTxs{}, err
	}

	localFundingKey, err := keyMgr.FundingPublicKey(
		c.LocalParams.FundingKeyIndex,
	)
	if err != nil {
		return PublishableTxs{}, err
	}

	signedTx := commitCtx.tx.Copy()
	signedTx.TxIn[0].Witness = spendMultiSig(
		c.CommitInput.WitnessScript,
		localFundingKey.SerializeCompressed(), localSig.RawBytes(),
		c.RemoteParams.FundingKey.SerializeCompressed(),
		remoteSig.RawBytes(),
	)

	return PublishableTxs{CommitTx: signedTx}, nil
}

// ReceiveRevocation validates the revealed per-commitment secret, promotes
// the pending remote commitment, and returns the forward actions for every
// remote update that just became irrevocably committed.
func (c Commitments) ReceiveRevocation(msg *lnwire.RevokeAndAck) (Commitments,
	[]Action, error) {

	waiting, err := c.RemoteNextCommitInfo.LeftOut().UnwrapOrErr(
		ErrUnexpectedRevocation,
	)
	if err != nil {
		return c, nil, err
	}

	// The revealed secret must be the private counterpart of the point
	// the revoked commitment was derived from.
	secretKey, _ := btcec.PrivKeyFromBytes(msg.Revocation[:])
	if !secretKey.PubKey().IsEqual(c.RemoteCommit.RemotePerCommitmentPoint) {
		return c, nil, ErrInvalidRevocationSecret
	}

	secrets := c.RemotePerCommitmentSecrets
	secretHash := chainhash.Hash(msg.Revocation)
	if err := secrets.AddNextEntry(&secretHash); err != nil {
		return c, nil, ErrInvalidRevocationSecret
	}

	// Every remote update we previously signed into the remote commitment
	// is now locked in on both sides, forward them.
	var actions []Action
	for _, change := range c.RemoteChanges.Signed {
		switch m := change.(type) {
		case *lnwire.UpdateAddHTLC:
			actions = append(actions, &ActionProcessAdd{Add: *m})
		case *lnwire.UpdateFailHTLC:
			actions = append(actions, &ActionProcessFail{Fail: *m})
		case *lnwire.UpdateFailMalformedHTLC:
			actions = append(
				actions,
				&ActionProcessFailMalformed{Fail: *m},
			)
		}
	}

	c1 := c
	c1.RemoteCommit = waiting.NextRemoteCommit
	c1.RemoteNextCommitInfo = fn.NewRight[WaitingForRevocation](
		msg.NextRevocationKey,
	)
	c1.RemotePerCommitmentSecrets = secrets
	c1.LocalChanges = LocalChanges{
		Proposed: c.LocalChanges.Proposed,
		Signed:   nil,
		Acked: concatMsgs(
			c.LocalChanges.Acked, c.LocalChanges.Signed,
		),
	}
	c1.RemoteChanges = RemoteChanges{
		Proposed: c.RemoteChanges.Proposed,
		Acked:    c.RemoteChanges.Acked,
		Signed:   nil,
	}

	return c1, actions, nil
}

// AvailableBalanceForSend returns the amount we can offer in new HTLCs,
// accounting for pending changes, our reserve, and the fee the funder pays
// for one additional untrimmed HTLC.
func (c Commitments) AvailableBalanceForSend() lnwire.MilliSatoshi {
	reduced, err := c.RemoteCommit.Spec.reduce(
		c.RemoteChanges.Acked,
		concatMsgs(c.LocalChanges.Proposed, c.LocalChanges.Signed),
	)
	if err != nil {
		return 0
	}

	reserve := lnwire.NewMSatFromSatoshis(c.RemoteParams.ChannelReserve)
	if c.ChannelVersion.HasZeroReserve() {
		reserve = 0
	}

	balance := reduced.ToRemote
	if balance < reserve {
		return 0
	}
	balance -= reserve

	if c.LocalParams.IsFunder {
		fee := lnwire.NewMSatFromSatoshis(
			commitTxFee(reduced, c.RemoteParams.DustLimit) +
				reduced.FeeRatePerKw.FeeForWeight(chainfee.HTLCWeight),
		)
		if balance < fee {
			return 0
		}
		balance -= fee
	}

	return balance
}

// AvailableBalanceForReceive returns the amount the remote can offer us in
// new HTLCs before violating its reserve and fee obligations.
func (c Commitments) AvailableBalanceForReceive() lnwire.MilliSatoshi {
	reduced, err := c.LocalCommit.Spec.reduce(
		c.LocalChanges.Acked, c.RemoteChanges.Proposed,
	)
	if err != nil {
		return 0
	}

	reserve := lnwire.NewMSatFromSatoshis(c.LocalParams.ChannelReserve)
	if c.ChannelVersion.HasZeroReserve() {
		reserve = 0
	}

	balance := reduced.ToRemote
	if balance < reserve {
		return 0
	}
	balance -= reserve

	if !c.LocalParams.IsFunder {
		fee := lnwire.NewMSatFromSatoshis(
			commitTxFee(reduced, c.LocalParams.DustLimit) +
				reduced.FeeRatePerKw.FeeForWeight(chainfee.HTLCWeight),
		)
		if balance < fee {
			return 0
		}
		balance -= fee
	}

	return balance
}
