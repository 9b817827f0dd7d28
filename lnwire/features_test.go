package lnwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestFeatureVectorSetUnset tests that setting and unsetting feature bits
// leaves the vector in the expected state.
func TestFeatureVectorSetUnset(t *testing.T) {
	fv := NewRawFeatureVector()
	require.False(t, fv.IsSet(TLVOnionPayloadOptional))

	fv.Set(TLVOnionPayloadOptional)
	require.True(t, fv.IsSet(TLVOnionPayloadOptional))

	fv.Unset(TLVOnionPayloadOptional)
	require.False(t, fv.IsSet(TLVOnionPayloadOptional))
}

// TestFeatureVectorEncoding asserts the exact byte representation of a known
// feature combination: optional var_onion_optin (bit 9) and required
// payment_secret (bit 14) occupy two bytes with bits 9 and 14 set.
func TestFeatureVectorEncoding(t *testing.T) {
	fv := NewRawFeatureVector(
		TLVOnionPayloadOptional, PaymentAddrRequired,
	)

	require.Equal(t, []byte{0x42, 0x00}, fv.Bytes())

	decoded, err := NewRawFeatureVectorFromBytes(fv.Bytes())
	require.NoError(t, err)
	require.True(t, decoded.Equals(fv))
}

// TestFeatureVectorEncodingTrimsLeadingZeroes asserts that the encoded form
// uses the least number of bytes required for the highest set bit.
func TestFeatureVectorEncodingTrimsLeadingZeroes(t *testing.T) {
	fv := NewRawFeatureVector(DataLossProtectOptional)
	require.Equal(t, []byte{0x02}, fv.Bytes())

	empty := NewRawFeatureVector()
	require.Empty(t, empty.Bytes())
}

// TestFeatureVectorRoundTrip asserts that any feature vector, including
// unknown bits, survives an encode/decode cycle unchanged.
func TestFeatureVectorRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.SliceOfN(
			rapid.Custom(func(t *rapid.T) FeatureBit {
				return FeatureBit(rapid.Uint16Range(
					0, 256,
				).Draw(t, "bit"))
			}), 0, 20,
		).Draw(t, "bits")

		fv := NewRawFeatureVector(bits...)

		var b bytes.Buffer
		require.NoError(t, fv.Encode(&b))

		decoded := NewRawFeatureVector()
		require.NoError(t, decoded.Decode(&b))

		require.True(t, decoded.Equals(fv))

		// The minimal bit field must round trip as well.
		fromBytes, err := NewRawFeatureVectorFromBytes(fv.Bytes())
		require.NoError(t, err)
		require.True(t, fromBytes.Equals(fv))
	})
}

// TestHasFeature asserts that querying either bit of a known pair reports the
// feature as present when only one of the two is set.
func TestHasFeature(t *testing.T) {
	fv := NewFeatureVector(
		NewRawFeatureVector(StaticRemoteKeyOptional), Features,
	)

	require.True(t, fv.HasFeature(StaticRemoteKeyOptional))
	require.True(t, fv.HasFeature(StaticRemoteKeyRequired))
	require.False(t, fv.HasFeature(PaymentAddrOptional))

	// An unknown bit is only reported for the exact position set.
	unknown := NewFeatureVector(NewRawFeatureVector(101), Features)
	require.True(t, unknown.HasFeature(101))
	require.False(t, unknown.HasFeature(100))
}

// TestUnknownRequiredFeatures asserts that unknown even bits are surfaced
// while odd ones are tolerated.
func TestUnknownRequiredFeatures(t *testing.T) {
	fv := NewFeatureVector(NewRawFeatureVector(20, 21, 100), Features)

	unknown := fv.UnknownRequiredFeatures()
	require.ElementsMatch(t, []FeatureBit{20, 100}, unknown)

	known := NewFeatureVector(
		NewRawFeatureVector(PaymentAddrRequired), Features,
	)
	require.Empty(t, known.UnknownRequiredFeatures())
}
