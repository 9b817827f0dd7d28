package lnwire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeMessageType    tlv.Type = 1
	typeFieldNum       tlv.Type = 3
	typeSuggestedValue tlv.Type = 5
	typeErroneousValue tlv.Type = 7
)

// errFieldHelper has the functionality we need to encode and decode the
// values of a field in a message for which we understand structured errors.
type errFieldHelper struct {
	fieldName string
	encode    func(val interface{}) ([]byte, error)
	decode    func(val []byte) (interface{}, error)
}

// uint64FieldHelper handles fields that hold amounts, delays or counts, all
// of which travel as big-endian unsigned integers.
func uint64FieldHelper(fieldName string) *errFieldHelper {
	return &errFieldHelper{
		fieldName: fieldName,
		encode: func(val interface{}) ([]byte, error) {
			uintVal, ok := val.(uint64)
			if !ok {
				return nil, fmt.Errorf("expected uint64, "+
					"got: %T", val)
			}

			var scratch [8]byte
			binary.BigEndian.PutUint64(scratch[:], uintVal)

			return scratch[:], nil
		},
		decode: func(val []byte) (interface{}, error) {
			if len(val) != 8 {
				return nil, fmt.Errorf("expected 8 bytes, "+
					"got: %v", len(val))
			}

			return binary.BigEndian.Uint64(val), nil
		},
	}
}

// supportedStructuredError contains a map of specification message types to
// helpers for each of the fields in that message for which we understand
// structured errors. If a message is not contained in this map, we do not
// understand structured errors for that message or field.
//
// Field number is defined as follows:
// * For fixed fields: 0-based index of the field as defined in BOLT 1
// * For TLV fields: number of fixed fields + TLV field number
var supportedStructuredError = map[MessageType]map[uint16]*errFieldHelper{
	MsgOpenChannel: {
		0:  uint64FieldHelper("chain_hash"),
		2:  uint64FieldHelper("funding_satoshis"),
		3:  uint64FieldHelper("push_msat"),
		4:  uint64FieldHelper("dust_limit_satoshis"),
		5:  uint64FieldHelper("max_htlc_value_in_flight_msat"),
		6:  uint64FieldHelper("channel_reserve_satoshis"),
		7:  uint64FieldHelper("htlc_minimum_msat"),
		8:  uint64FieldHelper("feerate_per_kw"),
		9:  uint64FieldHelper("to_self_delay"),
		10: uint64FieldHelper("max_accepted_htlcs"),
	},
	MsgAcceptChannel: {
		1: uint64FieldHelper("dust_limit_satoshis"),
		2: uint64FieldHelper("max_htlc_value_in_flight_msat"),
		3: uint64FieldHelper("channel_reserve_satoshis"),
		4: uint64FieldHelper("htlc_minimum_msat"),
		5: uint64FieldHelper("minimum_depth"),
		6: uint64FieldHelper("to_self_delay"),
		7: uint64FieldHelper("max_accepted_htlcs"),
	},
}

// erroneousField identifies the field in a message that a structured error
// refers to, along with the raw encoded value the error is complaining about.
type erroneousField struct {
	messageType MessageType
	fieldNumber uint16
	value       []byte
}

// StructuredError contains structured error information for an error.
type StructuredError struct {
	erroneousField

	suggestedValue []byte
}

// NewStructuredError creates a structured error containing information about
// the field we have a problem with. Either value may be nil.
func NewStructuredError(messageType MessageType, fieldNumber uint16,
	erroneousValue, suggestedValue interface{}) *StructuredError {

	// Creation of errors for unsupported message fields is a programming
	// mistake, we expect them to be added to our supported set.
	helper := fieldHelper(messageType, fieldNumber)
	if helper == nil {
		panic(fmt.Sprintf("structured errors not supported for: %v "+
			"field: %v", messageType, fieldNumber))
	}

	structuredErr := &StructuredError{
		erroneousField: erroneousField{
			messageType: messageType,
			fieldNumber: fieldNumber,
		},
	}

	if erroneousValue != nil {
		value, err := helper.encode(erroneousValue)
		if err != nil {
			panic(fmt.Sprintf("encode erroneous value: %v", err))
		}
		structuredErr.value = value
	}

	if suggestedValue != nil {
		value, err := helper.encode(suggestedValue)
		if err != nil {
			panic(fmt.Sprintf("encode suggested value: %v", err))
		}
		structuredErr.suggestedValue = value
	}

	return structuredErr
}

// fieldHelper looks up the helper for the given message and field, returning
// nil if the combination has no structured error support.
func fieldHelper(messageType MessageType, fieldNumber uint16) *errFieldHelper {
	supportedFields, ok := supportedStructuredError[messageType]
	if !ok {
		return nil
	}

	return supportedFields[fieldNumber]
}

// Error returns an error string for our structured errors, including the
// rejected and suggested values if they are present.
//
// NOTE: Satisfies the error interface.
func (s *StructuredError) Error() string {
	errStrs := []string{
		fmt.Sprintf("structured error, message: %v, field: %v",
			s.messageType, s.fieldNumber),
	}

	helper := fieldHelper(s.messageType, s.fieldNumber)
	if helper != nil {
		errStrs = append(errStrs,
			fmt.Sprintf("name: %v", helper.fieldName))
	}

	if errVal, err := s.ErroneousValue(); err == nil && errVal != nil {
		errStrs = append(errStrs,
			fmt.Sprintf("rejected value: %v", errVal))
	}

	if sugVal, err := s.SuggestedValue(); err == nil && sugVal != nil {
		errStrs = append(errStrs,
			fmt.Sprintf("suggested value: %v", sugVal))
	}

	return strings.Join(errStrs, ", ")
}

// ErroneousValue decodes the rejected value carried by the error, returning
// nil if the field is unknown to us or no value was attached.
func (s *StructuredError) ErroneousValue() (interface{}, error) {
	if s.value == nil {
		return nil, nil
	}

	helper := fieldHelper(s.messageType, s.fieldNumber)
	if helper == nil {
		return nil, nil
	}

	return helper.decode(s.value)
}

// SuggestedValue decodes the suggested value carried by the error, returning
// nil if the field is unknown to us or no value was attached.
func (s *StructuredError) SuggestedValue() (interface{}, error) {
	if s.suggestedValue == nil {
		return nil, nil
	}

	helper := fieldHelper(s.messageType, s.fieldNumber)
	if helper == nil {
		return nil, nil
	}

	return helper.decode(s.suggestedValue)
}

// ToWireError creates an error containing TLV fields that are used to point
// the recipient towards problematic field values.
func (s *StructuredError) ToWireError(chanID ChannelID) (*Error, error) {
	resp := &Error{
		ChanID: chanID,
		Data:   ErrorData(s.Error()),
	}

	msgType := uint16(s.messageType)
	fieldNr := s.fieldNumber
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeMessageType, &msgType),
		tlv.MakePrimitiveRecord(typeFieldNum, &fieldNr),
	}

	// Records must be in ascending type order for the tlv stream.
	if s.suggestedValue != nil {
		records = append(records, tlv.MakePrimitiveRecord(
			typeSuggestedValue, &s.suggestedValue,
		))
	}

	if s.value != nil {
		records = append(records, tlv.MakePrimitiveRecord(
			typeErroneousValue, &s.value,
		))
	}

	if err := resp.ExtraData.PackRecords(records...); err != nil {
		return nil, err
	}

	return resp, nil
}

// StructuredErrorFromWire extracts a structured error from our error's extra
// data, if present.
func StructuredErrorFromWire(wireErr *Error) (*StructuredError, error) {
	if wireErr == nil || len(wireErr.ExtraData) == 0 {
		return nil, nil
	}

	var (
		messageType uint16
		fieldNr     uint16
		errValue    []byte
		sugValue    []byte
	)
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeMessageType, &messageType),
		tlv.MakePrimitiveRecord(typeFieldNum, &fieldNr),
		tlv.MakePrimitiveRecord(typeSuggestedValue, &sugValue),
		tlv.MakePrimitiveRecord(typeErroneousValue, &errValue),
	}

	tlvs, err := wireErr.ExtraData.ExtractRecords(records...)
	if err != nil {
		return nil, err
	}

	// If we don't know the problematic message type, we can't add any
	// additional information to this error.
	if _, ok := tlvs[typeMessageType]; !ok {
		return nil, nil
	}

	structuredErr := &StructuredError{
		erroneousField: erroneousField{
			messageType: MessageType(messageType),
		},
	}

	// If a field number was not specified, there is no further
	// information we can get from the tlvs.
	if _, ok := tlvs[typeFieldNum]; !ok {
		return structuredErr, nil
	}
	structuredErr.fieldNumber = fieldNr

	if _, ok := tlvs[typeErroneousValue]; ok {
		structuredErr.value = errValue
	}

	if _, ok := tlvs[typeSuggestedValue]; ok {
		structuredErr.suggestedValue = sugValue
	}

	return structuredErr, nil
}
