package feature

import (
	"testing"

	"github.com/lightningnetwork/lnchannel/lnwire"
	"github.com/stretchr/testify/require"
)

// TestAreSupported asserts the supported-set rules: the empty vector is
// supported, unknown even bits are not, and known required bits must be in
// our implemented set.
func TestAreSupported(t *testing.T) {
	tests := []struct {
		name      string
		bits      []lnwire.FeatureBit
		supported bool
	}{
		{
			name:      "empty",
			bits:      nil,
			supported: true,
		},
		{
			name:      "unknown even bit",
			bits:      []lnwire.FeatureBit{20},
			supported: false,
		},
		{
			name:      "unknown odd bit",
			bits:      []lnwire.FeatureBit{21},
			supported: true,
		},
		{
			name: "implemented required",
			bits: []lnwire.FeatureBit{
				lnwire.PaymentAddrRequired,
				lnwire.GossipQueriesRequired,
			},
			supported: true,
		},
		{
			name: "unimplemented required",
			bits: []lnwire.FeatureBit{
				lnwire.InitialRoutingSyncRequired,
			},
			supported: false,
		},
		{
			name: "optional bits always tolerated",
			bits: []lnwire.FeatureBit{
				lnwire.TrampolineRoutingOptional,
				lnwire.StaticRemoteKeyOptional,
			},
			supported: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fv := lnwire.NewFeatureVector(
				lnwire.NewRawFeatureVector(test.bits...),
				lnwire.Features,
			)
			require.Equal(t, test.supported, AreSupported(fv))
		})
	}
}

// TestCanUseFeature requires both parties to advertise a feature before it is
// usable on a channel.
func TestCanUseFeature(t *testing.T) {
	local := lnwire.NewFeatureVector(
		lnwire.NewRawFeatureVector(lnwire.StaticRemoteKeyOptional),
		lnwire.Features,
	)
	remote := lnwire.NewFeatureVector(
		lnwire.NewRawFeatureVector(lnwire.StaticRemoteKeyRequired),
		lnwire.Features,
	)
	neither := lnwire.NewFeatureVector(nil, lnwire.Features)

	require.True(t, CanUseFeature(
		local, remote, lnwire.StaticRemoteKeyOptional,
	))
	require.False(t, CanUseFeature(
		local, neither, lnwire.StaticRemoteKeyOptional,
	))
}

// TestNewInitFeatureVector asserts the default advertised set and the effect
// of the protocol toggles.
func TestNewInitFeatureVector(t *testing.T) {
	fv := NewInitFeatureVector(nil)
	require.True(t, fv.IsSet(lnwire.StaticRemoteKeyOptional))
	require.False(t, fv.IsSet(lnwire.WumboChannelsOptional))

	fv = NewInitFeatureVector(&ProtocolOptions{
		WumboChannels:     true,
		NoStaticRemoteKey: true,
	})
	require.True(t, fv.IsSet(lnwire.WumboChannelsOptional))
	require.False(t, fv.IsSet(lnwire.StaticRemoteKeyOptional))

	// The default set must validate against our own dependency graph.
	err := ValidateDeps(lnwire.NewFeatureVector(
		NewInitFeatureVector(nil), lnwire.Features,
	))
	require.NoError(t, err)
}
