package channel

import (
	"github.com/lightningnetwork/lnchannel/feature"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// ChannelVersion is a bit field describing the key derivation scheme and the
// structural defaults negotiated when the channel was opened. The version is
// fixed at negotiation time and persisted with the channel.
type ChannelVersion uint8

const (
	// UseStaticRemoteKeyBit signals that the remote party's non-delayed
	// commitment output pays to their payment basepoint directly, without
	// a per-commitment tweak.
	UseStaticRemoteKeyBit ChannelVersion = 1 << 0

	// ZeroReserveBit signals that neither side enforces a channel reserve
	// and that the funding output may be used at zero confirmations.
	ZeroReserveBit ChannelVersion = 1 << 1

	// VersionStandard is the base channel version without any optional
	// bits set.
	VersionStandard ChannelVersion = 0
)

// IsSet returns true if the given bits are all set in the version.
func (v ChannelVersion) IsSet(bits ChannelVersion) bool {
	return v&bits == bits
}

// HasStaticRemoteKey returns true if the remote non-delayed output is not
// tweaked per commitment.
func (v ChannelVersion) HasStaticRemoteKey() bool {
	return v.IsSet(UseStaticRemoteKeyBit)
}

// HasZeroReserve returns true if the channel operates without reserves.
func (v ChannelVersion) HasZeroReserve() bool {
	return v.IsSet(ZeroReserveBit)
}

// pickChannelVersion derives the channel version from the feature sets both
// parties advertised in their Init messages.
func pickChannelVersion(local, remote *lnwire.FeatureVector) ChannelVersion {
	version := VersionStandard

	if feature.CanUseFeature(
		orEmptyVector(local), orEmptyVector(remote),
		lnwire.StaticRemoteKeyOptional,
	) {
		version |= UseStaticRemoteKeyBit
	}

	return version
}

// orEmptyVector substitutes an empty vector for an absent one.
func orEmptyVector(fv *lnwire.FeatureVector) *lnwire.FeatureVector {
	if fv == nil {
		return lnwire.EmptyFeatureVector()
	}
	return fv
}
