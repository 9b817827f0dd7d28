package lnwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStructuredErrorSerialization tests encoding and decoding structured
// errors with various combinations of tlv values present.
func TestStructuredErrorSerialization(t *testing.T) {
	var (
		chanID         = ChannelID{1}
		errValue       = uint64(100)
		suggestedValue = uint64(101)
	)

	allFieldsKnown := NewStructuredError(
		MsgOpenChannel, 4, errValue, suggestedValue,
	)

	// Start by encoding an error that we know all the fields for.
	encoded, err := allFieldsKnown.ToWireError(chanID)
	require.NoError(t, err)
	require.Equal(t, chanID, encoded.ChanID)

	// Retrieve a structured error from the encoded error and assert equal.
	decoded, err := StructuredErrorFromWire(encoded)
	require.NoError(t, err)
	require.Equal(t, allFieldsKnown, decoded)

	// Access the fields and assert that we get our values back.
	decodedErrVal, err := decoded.ErroneousValue()
	require.NoError(t, err)
	require.Equal(t, errValue, decodedErrVal)

	decodedSuggestedVal, err := decoded.SuggestedValue()
	require.NoError(t, err)
	require.Equal(t, suggestedValue, decodedSuggestedVal)

	// An error without attached values should round trip with nil value
	// lookups.
	bareErr := NewStructuredError(MsgAcceptChannel, 6, nil, nil)
	encoded, err = bareErr.ToWireError(chanID)
	require.NoError(t, err)

	decoded, err = StructuredErrorFromWire(encoded)
	require.NoError(t, err)

	errVal, err := decoded.ErroneousValue()
	require.NoError(t, err)
	require.Nil(t, errVal)

	// A plain wire error without extra data carries no structured error.
	decoded, err = StructuredErrorFromWire(&Error{ChanID: chanID})
	require.NoError(t, err)
	require.Nil(t, decoded)
}

// TestCodedErrorRoundTrip packs a coded error into the extra data of a wire
// error and extracts it again.
func TestCodedErrorRoundTrip(t *testing.T) {
	coded := NewCodedError(ErrInvalidCommitSig)

	wireErr := &Error{
		ChanID: ChannelID{2},
		Data:   ErrorData(coded.Error()),
	}
	require.NoError(t, wireErr.ExtraData.PackRecords(coded.Record()))

	var decoded CodedError
	tlvs, err := wireErr.ExtraData.ExtractRecords(decoded.Record())
	require.NoError(t, err)
	require.Contains(t, tlvs, typeErrorCode)
	require.Equal(t, ErrInvalidCommitSig, decoded.ErrorCode)
}
