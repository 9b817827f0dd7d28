package channel

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/lightningnetwork/lnchannel/lnwire"
)

var (
	// ErrNoUpdatesToSign is returned when a signature is requested but no
	// unsigned changes are pending on either side.
	ErrNoUpdatesToSign = errors.New("cannot sign commitment without " +
		"changes")

	// ErrCommitSigOutstanding is returned when a new signature is
	// requested while the remote has not yet revoked its previous
	// commitment.
	ErrCommitSigOutstanding = errors.New("cannot sign commitment while " +
		"waiting for revocation")

	// ErrNoMoreHtlcsClosingInProgress is returned when an HTLC add is
	// attempted after either side has sent a Shutdown message.
	ErrNoMoreHtlcsClosingInProgress = errors.New("cannot add htlc while " +
		"channel is shutting down")

	// ErrInvalidFailureCode is returned when a malformed-HTLC failure is
	// attempted without the BADONION bit set.
	ErrInvalidFailureCode = errors.New("failure code must include " +
		"BADONION bit")

	// ErrInvalidRevocationSecret is returned when the revealed
	// per-commitment secret does not match the commitment point it claims
	// to revoke.
	ErrInvalidRevocationSecret = errors.New("revocation secret does not " +
		"match remote per-commitment point")

	// ErrUnexpectedRevocation is returned when a revocation arrives while
	// no commitment is awaiting one.
	ErrUnexpectedRevocation = errors.New("received unexpected revocation")
)

// ErrChainMismatch returns an error indicating that the initiator tried to
// open a channel for an unknown chain.
func ErrChainMismatch() *lnwire.StructuredError {
	return lnwire.NewStructuredError(
		lnwire.MsgOpenChannel, 0, nil, nil,
	)
}

// ErrZeroCapacity returns an error indicating the funder attempted to put
// zero funds into the channel.
func ErrZeroCapacity() *lnwire.StructuredError {
	return lnwire.NewStructuredError(
		lnwire.MsgOpenChannel, 2, uint64(0), nil,
	)
}

// ErrChanTooLarge returns an error indicating that an incoming channel
// request was too large. We'll reject any incoming channels if they're above
// our configured value for the max channel size we'll accept.
func ErrChanTooLarge(chanSize,
	maxChanSize btcutil.Amount) *lnwire.StructuredError {

	return lnwire.NewStructuredError(
		lnwire.MsgOpenChannel, 2, uint64(chanSize),
		uint64(maxChanSize),
	)
}

// ErrDustLimitTooSmall returns an error indicating the dust limit the peer
// requested is below the protocol floor.
func ErrDustLimitTooSmall(msg lnwire.MessageType, dustLimit,
	minDustLimit btcutil.Amount) *lnwire.StructuredError {

	field := uint16(4)
	if msg == lnwire.MsgAcceptChannel {
		field = 1
	}

	return lnwire.NewStructuredError(
		msg, field, uint64(dustLimit), uint64(minDustLimit),
	)
}

// ErrCsvDelayTooLarge returns an error indicating that the CSV delay was too
// large to be accepted, along with the current max.
func ErrCsvDelayTooLarge(msg lnwire.MessageType, remoteDelay,
	maxDelay uint16) *lnwire.StructuredError {

	field := uint16(9)
	if msg == lnwire.MsgAcceptChannel {
		field = 6
	}

	return lnwire.NewStructuredError(
		msg, field, uint64(remoteDelay), uint64(maxDelay),
	)
}

// ErrChanReserveTooLarge returns an error indicating that the channel
// reserve the remote is requiring is too large to be accepted.
func ErrChanReserveTooLarge(msg lnwire.MessageType, reserve,
	maxReserve btcutil.Amount) *lnwire.StructuredError {

	field := uint16(6)
	if msg == lnwire.MsgAcceptChannel {
		field = 3
	}

	return lnwire.NewStructuredError(
		msg, field, uint64(reserve), uint64(maxReserve),
	)
}

// ErrMaxHtlcNumTooLarge returns an error indicating that the 'max HTLCs in
// flight' value the remote required is too large to be accepted.
func ErrMaxHtlcNumTooLarge(msg lnwire.MessageType, maxHtlc,
	maxMaxHtlc uint16) *lnwire.StructuredError {

	field := uint16(10)
	if msg == lnwire.MsgAcceptChannel {
		field = 7
	}

	return lnwire.NewStructuredError(
		msg, field, uint64(maxHtlc), uint64(maxMaxHtlc),
	)
}

// ErrNumConfsTooLarge returns an error indicating that the number of
// confirmations required for a channel is too large.
func ErrNumConfsTooLarge(numConfs,
	maxNumConfs uint32) *lnwire.StructuredError {

	return lnwire.NewStructuredError(
		lnwire.MsgAcceptChannel, 5, uint64(numConfs),
		uint64(maxNumConfs),
	)
}

// ErrMinHtlcTooLarge returns an error indicating that the MinHTLC value the
// remote required is too large to be accepted.
func ErrMinHtlcTooLarge(msg lnwire.MessageType, minHtlc,
	maxMinHtlc lnwire.MilliSatoshi) *lnwire.StructuredError {

	field := uint16(7)
	if msg == lnwire.MsgAcceptChannel {
		field = 4
	}

	return lnwire.NewStructuredError(
		msg, field, uint64(minHtlc), uint64(maxMinHtlc),
	)
}

// ErrFeeRateOutOfBounds is returned when the peer's proposed commitment fee
// rate deviates too far from our own estimate.
type ErrFeeRateOutOfBounds struct {
	proposed uint32
	expected uint32
}

// Error returns the error string for the mismatching fee rates.
func (e ErrFeeRateOutOfBounds) Error() string {
	return fmt.Sprintf("proposed fee rate %v sat/kw is outside "+
		"acceptable bounds of estimate %v sat/kw", e.proposed,
		e.expected)
}

// ErrUnknownHtlc is returned when an operation references an HTLC id that is
// not present on the relevant commitment.
type ErrUnknownHtlc struct {
	ID uint64
}

// Error returns an error logging the HTLC index that was unknown.
func (e *ErrUnknownHtlc) Error() string {
	return fmt.Sprintf("no HTLC with ID %d on commitment", e.ID)
}

// ErrUnexpectedHtlcID is returned when the remote assigns an HTLC id out of
// sequence.
type ErrUnexpectedHtlcID struct {
	Expected uint64
	Got      uint64
}

// Error returns a message describing the id sequence violation.
func (e *ErrUnexpectedHtlcID) Error() string {
	return fmt.Sprintf("unexpected htlc id: expected %d, got %d",
		e.Expected, e.Got)
}

// ErrInvalidHtlcPreimage is returned when trying to settle an HTLC, but the
// preimage does not correspond to the payment hash.
type ErrInvalidHtlcPreimage struct {
	ID uint64
}

// Error returns an error message with the offending HTLC id.
func (e *ErrInvalidHtlcPreimage) Error() string {
	return fmt.Sprintf("invalid payment preimage for HTLC with ID %d",
		e.ID)
}

// ErrHtlcAlreadyResolved is returned when an HTLC settle or fail is proposed
// for an HTLC that already has a pending resolution in the update log.
type ErrHtlcAlreadyResolved struct {
	ID uint64
}

// Error returns a message indicating the HTLC that had already been resolved.
func (e *ErrHtlcAlreadyResolved) Error() string {
	return fmt.Sprintf("HTLC with ID %d has already been resolved", e.ID)
}

// ErrHtlcValueTooSmall is returned when an HTLC is below the counterparty's
// minimum.
type ErrHtlcValueTooSmall struct {
	Amount  lnwire.MilliSatoshi
	Minimum lnwire.MilliSatoshi
}

// Error returns a message naming the violated minimum.
func (e *ErrHtlcValueTooSmall) Error() string {
	return fmt.Sprintf("htlc value %v is below minimum %v", e.Amount,
		e.Minimum)
}

// ErrExpiryOutOfRange is returned when an offered HTLC's expiry delta falls
// outside the accepted window.
type ErrExpiryOutOfRange struct {
	Expiry      uint32
	BlockHeight uint32
}

// Error returns a message describing the expiry violation.
func (e *ErrExpiryOutOfRange) Error() string {
	return fmt.Sprintf("htlc expiry %d out of range at height %d",
		e.Expiry, e.BlockHeight)
}

// ErrInsufficientFunds is returned when a proposed change would push the
// offerer below its channel reserve plus fees.
type ErrInsufficientFunds struct {
	Missing lnwire.MilliSatoshi
}

// Error returns a message naming the missing amount.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: missing %v", e.Missing)
}

// ErrMaxHtlcValueInFlight is returned when the pending HTLC value exceeds
// the counterparty's in-flight limit.
type ErrMaxHtlcValueInFlight struct {
	InFlight lnwire.MilliSatoshi
	Limit    lnwire.MilliSatoshi
}

// Error returns a message naming the violated limit.
func (e *ErrMaxHtlcValueInFlight) Error() string {
	return fmt.Sprintf("htlc value in flight %v exceeds limit %v",
		e.InFlight, e.Limit)
}

// ErrTooManyHtlcs is returned when the number of pending HTLCs exceeds the
// counterparty's maximum.
type ErrTooManyHtlcs struct {
	Pending uint16
	Limit   uint16
}

// Error returns a message naming the violated maximum.
func (e *ErrTooManyHtlcs) Error() string {
	return fmt.Sprintf("%d pending htlcs exceeds maximum of %d",
		e.Pending, e.Limit)
}

// ErrInvalidCommitmentSignature is returned when the remote's signature on
// our next commitment transaction fails to validate.
type ErrInvalidCommitmentSignature struct {
	CommitIndex uint64
}

// Error returns a message naming the commitment the bad signature targeted.
func (e *ErrInvalidCommitmentSignature) Error() string {
	return fmt.Sprintf("invalid commitment signature for commitment %d",
		e.CommitIndex)
}

// ErrInvalidHtlcSignature is returned when one of the htlc signatures
// covering a new commitment fails to validate.
type ErrInvalidHtlcSignature struct {
	OutputIndex int
}

// Error returns a message naming the output with the bad signature.
func (e *ErrInvalidHtlcSignature) Error() string {
	return fmt.Sprintf("invalid htlc signature for output %d",
		e.OutputIndex)
}

// ErrHtlcSigCountMismatch is returned when a CommitSig carries a different
// number of htlc signatures than the commitment has htlc outputs.
type ErrHtlcSigCountMismatch struct {
	Expected int
	Got      int
}

// Error returns a message describing the count mismatch.
func (e *ErrHtlcSigCountMismatch) Error() string {
	return fmt.Sprintf("expected %d htlc signatures, got %d", e.Expected,
		e.Got)
}

// ErrFundingOutputMismatch is returned when the wallet's funding transaction
// does not pay to the negotiated funding script at the reported index.
type ErrFundingOutputMismatch struct {
	OutputIndex uint32
}

// Error returns a message naming the mismatching output.
func (e *ErrFundingOutputMismatch) Error() string {
	return fmt.Sprintf("funding tx output %d does not match funding "+
		"script", e.OutputIndex)
}
