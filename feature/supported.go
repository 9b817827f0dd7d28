package feature

import (
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// supportedRequired is the set of required feature bits this implementation
// is able to fulfill. A peer advertising a required bit outside this set
// cannot be served and must be rejected.
var supportedRequired = map[lnwire.FeatureBit]struct{}{
	lnwire.DataLossProtectRequired: {},
	lnwire.GossipQueriesRequired:   {},
	lnwire.TLVOnionPayloadRequired: {},
	lnwire.GossipQueriesExRequired: {},
	lnwire.PaymentAddrRequired:     {},
	lnwire.MPPRequired:             {},
	lnwire.WumboChannelsRequired:   {},
}

// AreSupported returns true if we are able to honor every required feature in
// the vector: no unknown even bit may be set, and every known required bit
// must be in our implemented set.
func AreSupported(fv *lnwire.FeatureVector) bool {
	if len(fv.UnknownRequiredFeatures()) != 0 {
		return false
	}

	for bit := range fv.Features() {
		if !bit.IsRequired() {
			continue
		}

		if !fv.IsKnown(bit) {
			return false
		}

		if _, ok := supportedRequired[bit]; !ok {
			return false
		}
	}

	return true
}

// CanUseFeature returns true if both the local and remote feature vectors
// advertise the given feature, at either support level.
func CanUseFeature(local, remote *lnwire.FeatureVector,
	bit lnwire.FeatureBit) bool {

	return local.HasFeature(bit) && remote.HasFeature(bit)
}
