package channel

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

const (
	// AnnouncementsMinConf is the number of confirmations a funding
	// transaction needs before the channel may be announced to the
	// network.
	AnnouncementsMinConf uint32 = 6

	// MaxFundingAmount is the maximum channel capacity accepted without
	// the wumbo feature, expressed in satoshis.
	MaxFundingAmount = btcutil.Amount(10 * btcutil.SatoshiPerBitcoin)

	// MaxAcceptedHtlcs is the protocol ceiling on the number of HTLCs one
	// side may offer on a single commitment transaction.
	MaxAcceptedHtlcs uint16 = 483

	// MinDustLimit is the lowest dust limit either side may request for
	// its commitment outputs.
	MinDustLimit = btcutil.Amount(546)

	// MaxNegotiationIterations bounds the fee negotiation rounds of a
	// cooperative close.
	MaxNegotiationIterations = 20

	// MinCltvExpiryDelta is the smallest expiry delta accepted for an
	// offered HTLC.
	MinCltvExpiryDelta uint32 = 9

	// MaxCltvExpiryDelta is the largest expiry delta accepted for an
	// offered HTLC, roughly one week of blocks.
	MaxCltvExpiryDelta uint32 = 7 * 144

	// MaxToSelfDelay is the longest CSV delay we will accept for our
	// delayed commitment output.
	MaxToSelfDelay uint16 = 2016

	// FundingTimeoutFundee is how long the fundee waits for the funding
	// transaction to confirm before forgetting the channel.
	FundingTimeoutFundee = 5 * 24 * time.Hour
)

// Tip describes the most recently observed block of the backing chain.
type Tip struct {
	// Height is the height of the chain tip.
	Height uint32

	// Header is the header of the tip block.
	Header wire.BlockHeader
}

// NodeParams holds the per-node channel policy, identical for every channel
// the node participates in.
type NodeParams struct {
	// ChainHash is the genesis hash of the chain channels are opened on.
	ChainHash chainhash.Hash

	// MinDepthBlocks is the number of confirmations we require on a
	// funding transaction before using the channel.
	MinDepthBlocks uint32

	// DustLimit is the dust limit we request for our commitment outputs.
	DustLimit btcutil.Amount

	// MaxHtlcValueInFlight bounds the total value of pending HTLCs the
	// remote may offer us.
	MaxHtlcValueInFlight lnwire.MilliSatoshi

	// HtlcMinimum is the smallest HTLC we accept.
	HtlcMinimum lnwire.MilliSatoshi

	// ToSelfDelay is the CSV delay we ask the remote to tolerate on their
	// delayed output.
	ToSelfDelay uint16

	// MaxAcceptedHtlcs is the maximum number of pending HTLCs we accept
	// from the remote on our commitment.
	MaxAcceptedHtlcs uint16

	// MaxFeeRateMismatchRatio is the largest tolerated relative deviation
	// between the remote's proposed commitment fee rate and our own
	// estimate.
	MaxFeeRateMismatchRatio float64

	// IsRegtest relaxes funding transaction verification, the regression
	// test chain mines transactions that cannot always be fully checked.
	IsRegtest bool
}

// StaticParams groups the values fixed for the channel's entire lifetime.
type StaticParams struct {
	// NodeParams is the owning node's channel policy.
	NodeParams NodeParams

	// RemoteNodeID is the identity key of the channel counterparty.
	RemoteNodeID *btcec.PublicKey
}

// LocalParams are the channel parameters of the local node, negotiated at
// open time and immutable afterwards.
type LocalParams struct {
	// DustLimit is the dust limit applied to our commitment transaction.
	DustLimit btcutil.Amount

	// MaxHtlcValueInFlight bounds the total value of HTLCs the remote may
	// have in flight towards us.
	MaxHtlcValueInFlight lnwire.MilliSatoshi

	// ChannelReserve is the reserve we require the remote to maintain.
	ChannelReserve btcutil.Amount

	// HtlcMinimum is the smallest HTLC we accept from the remote.
	HtlcMinimum lnwire.MilliSatoshi

	// ToSelfDelay is the CSV delay imposed on the remote's delayed
	// output.
	ToSelfDelay uint16

	// MaxAcceptedHtlcs is the maximum number of HTLCs the remote may
	// offer on our commitment.
	MaxAcceptedHtlcs uint16

	// FundingKeyIndex anchors the channel's key derivation subtree.
	FundingKeyIndex uint32

	// IsFunder is true if we initiated the channel and pay commitment
	// fees.
	IsFunder bool

	// Features is the feature vector we advertised in our Init message.
	Features *lnwire.FeatureVector
}

// RemoteParams are the channel parameters the remote node announced in its
// OpenChannel or AcceptChannel message, immutable after negotiation.
type RemoteParams struct {
	// DustLimit is the dust limit applied to the remote commitment
	// transaction.
	DustLimit btcutil.Amount

	// MaxHtlcValueInFlight bounds the total value of HTLCs we may have in
	// flight towards the remote.
	MaxHtlcValueInFlight lnwire.MilliSatoshi

	// ChannelReserve is the reserve the remote requires us to maintain.
	ChannelReserve btcutil.Amount

	// HtlcMinimum is the smallest HTLC the remote accepts.
	HtlcMinimum lnwire.MilliSatoshi

	// ToSelfDelay is the CSV delay imposed on our delayed output.
	ToSelfDelay uint16

	// MaxAcceptedHtlcs is the maximum number of HTLCs we may offer on the
	// remote commitment.
	MaxAcceptedHtlcs uint16

	// FundingKey is the remote key in the 2-of-2 funding output.
	FundingKey *btcec.PublicKey

	// RevocationBasePoint is the remote revocation basepoint.
	RevocationBasePoint *btcec.PublicKey

	// PaymentBasePoint is the remote payment basepoint.
	PaymentBasePoint *btcec.PublicKey

	// DelayedPaymentBasePoint is the remote delayed payment basepoint.
	DelayedPaymentBasePoint *btcec.PublicKey

	// HtlcBasePoint is the remote htlc basepoint.
	HtlcBasePoint *btcec.PublicKey

	// Features is the feature vector the remote advertised in its Init
	// message.
	Features *lnwire.FeatureVector
}

// FundingInput describes the funding output spent by both commitment
// transactions.
type FundingInput struct {
	// OutPoint is the funding outpoint on chain.
	OutPoint wire.OutPoint

	// TxOut is the funding output itself, needed to compute sighashes.
	TxOut wire.TxOut

	// WitnessScript is the 2-of-2 multisig script locking the funding
	// output.
	WitnessScript []byte
}

// HtlcInfo is the per-HTLC information persisted alongside each remote
// commitment so a penalty transaction can claim revoked HTLC outputs.
type HtlcInfo struct {
	// PaymentHash is the HTLC payment hash.
	PaymentHash [32]byte

	// CltvExpiry is the HTLC expiry height.
	CltvExpiry uint32
}

// InitFunderParams carries everything needed to start the funder side of the
// opening flow.
type InitFunderParams struct {
	// TemporaryChannelID identifies the channel until the funding
	// transaction exists.
	TemporaryChannelID [32]byte

	// FundingAmount is the channel capacity in satoshis.
	FundingAmount btcutil.Amount

	// PushAmount is carved out of the funder's balance and given to the
	// fundee on the first commitment.
	PushAmount lnwire.MilliSatoshi

	// InitialFeeRatePerKw is the commitment fee rate proposed in
	// OpenChannel.
	InitialFeeRatePerKw chainfee.SatPerKWeight

	// FundingTxFeeRatePerKw is the fee rate used by the wallet when
	// constructing the funding transaction.
	FundingTxFeeRatePerKw chainfee.SatPerKWeight

	// LocalParams are our negotiated channel parameters.
	LocalParams LocalParams

	// RemoteInit is the Init message the remote sent at connection
	// establishment.
	RemoteInit *lnwire.Init

	// ChannelFlags are the funding flags to send in OpenChannel.
	ChannelFlags lnwire.FundingFlag

	// ChannelVersion carries the negotiated derivation and structure
	// bits.
	ChannelVersion ChannelVersion
}
