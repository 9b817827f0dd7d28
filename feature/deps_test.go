package feature

import (
	"testing"

	"github.com/lightningnetwork/lnchannel/lnwire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type depsTest struct {
	name   string
	raw    *lnwire.RawFeatureVector
	expErr error
}

var depsTests = []depsTest{
	{
		name: "empty features",
		raw:  lnwire.NewRawFeatureVector(),
	},
	{
		name: "no deps",
		raw: lnwire.NewRawFeatureVector(
			lnwire.GossipQueriesOptional,
		),
	},
	{
		name: "missing dep",
		raw: lnwire.NewRawFeatureVector(
			lnwire.GossipQueriesExOptional,
		),
		expErr: NewErrMissingFeatureDep(
			lnwire.GossipQueriesOptional,
		),
	},
	{
		name: "dep present",
		raw: lnwire.NewRawFeatureVector(
			lnwire.GossipQueriesOptional,
			lnwire.GossipQueriesExOptional,
		),
	},
	{
		name: "mpp missing payment addr",
		raw: lnwire.NewRawFeatureVector(
			lnwire.MPPOptional,
		),
		expErr: NewErrMissingFeatureDep(
			lnwire.PaymentAddrOptional,
		),
	},
	{
		name: "trampoline missing payment addr",
		raw: lnwire.NewRawFeatureVector(
			lnwire.TrampolineRoutingOptional,
		),
		expErr: NewErrMissingFeatureDep(
			lnwire.PaymentAddrOptional,
		),
	},
	{
		name: "required dep satisfied by optional",
		raw: lnwire.NewRawFeatureVector(
			lnwire.MPPRequired,
			lnwire.PaymentAddrOptional,
		),
	},
	{
		name: "payment addr without tlv onion is legal",
		raw: lnwire.NewRawFeatureVector(
			lnwire.PaymentAddrOptional,
		),
	},
}

// TestValidateDeps tests that ValidateDeps correctly asserts whether or not a
// set of features constitutes a valid feature chain.
func TestValidateDeps(t *testing.T) {
	for _, test := range depsTests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fv := lnwire.NewFeatureVector(
				test.raw, lnwire.Features,
			)
			err := ValidateDeps(fv)
			if test.expErr != nil {
				require.Equal(t, test.expErr, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestMissingDepNamesDependency asserts that the error produced for a missing
// dependency names the feature the caller needs to add.
func TestMissingDepNamesDependency(t *testing.T) {
	fv := lnwire.NewFeatureVector(
		lnwire.NewRawFeatureVector(lnwire.MPPOptional),
		lnwire.Features,
	)

	err := ValidateDeps(fv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "payment-addr")
}

// TestValidateDepsProperty checks the characterization of ValidateDeps over
// the declared dependency graph: an error is produced exactly when a feature
// with a declared dependency is present without it.
func TestValidateDepsProperty(t *testing.T) {
	optional := []lnwire.FeatureBit{
		lnwire.GossipQueriesOptional,
		lnwire.GossipQueriesExOptional,
		lnwire.PaymentAddrOptional,
		lnwire.MPPOptional,
		lnwire.TrampolineRoutingOptional,
		lnwire.TLVOnionPayloadOptional,
	}

	rapid.Check(t, func(t *rapid.T) {
		raw := lnwire.NewRawFeatureVector()
		for _, bit := range optional {
			if rapid.Bool().Draw(t, "set") {
				raw.Set(bit)
			}
		}
		fv := lnwire.NewFeatureVector(raw, lnwire.Features)

		expectErr := (raw.IsSet(lnwire.GossipQueriesExOptional) &&
			!raw.IsSet(lnwire.GossipQueriesOptional)) ||
			(raw.IsSet(lnwire.MPPOptional) &&
				!raw.IsSet(lnwire.PaymentAddrOptional)) ||
			(raw.IsSet(lnwire.TrampolineRoutingOptional) &&
				!raw.IsSet(lnwire.PaymentAddrOptional))

		err := ValidateDeps(fv)
		if expectErr {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
		}
	})
}
