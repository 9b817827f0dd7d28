package feature

import "github.com/lightningnetwork/lnchannel/lnwire"

// ProtocolOptions is a sub-config that houses the optional protocol features
// a node may toggle on or off. The defaults advertise the feature set every
// deployment is expected to handle.
type ProtocolOptions struct {
	// WumboChannels signals that we would like to accept channels larger
	// than the 10 BTC cap applied without the wumbo feature.
	WumboChannels bool `long:"wumbo-channels" description:"if set, we will create and accept requests for channels larger than 10 BTC"`

	// NoStaticRemoteKey excludes the static remote key bit from our
	// advertised set, forcing tweaked remote outputs on new channels.
	NoStaticRemoteKey bool `long:"no-static-remote-key" description:"if set, channels will be negotiated without the static remote key feature"`

	// ExperimentalProtocol houses features that additionally require a
	// build tag to activate.
	ExperimentalProtocol
}

// NewInitFeatureVector builds the feature vector advertised in our Init
// message from the given protocol options.
func NewInitFeatureVector(opts *ProtocolOptions) *lnwire.RawFeatureVector {
	if opts == nil {
		opts = &ProtocolOptions{}
	}

	fv := lnwire.NewRawFeatureVector(
		lnwire.DataLossProtectOptional,
		lnwire.GossipQueriesOptional,
		lnwire.TLVOnionPayloadOptional,
		lnwire.GossipQueriesExOptional,
		lnwire.StaticRemoteKeyOptional,
		lnwire.PaymentAddrOptional,
		lnwire.MPPOptional,
	)

	if opts.NoStaticRemoteKey {
		fv.Unset(lnwire.StaticRemoteKeyOptional)
	}

	if opts.WumboChannels {
		fv.Set(lnwire.WumboChannelsOptional)
	}

	for _, bit := range opts.ExperimentalFeatureBits() {
		fv.Set(bit)
	}

	return fv
}
