package lnwire

import "fmt"

// MessageType is the unique 2 byte big-endian integer that indicates the type
// of message on the wire. All messages have a very simple header which
// consists simply of 2-byte message type. The messages themselves are
// serialized per the BOLT-01 specification.
type MessageType uint16

const (
	MsgInit                    MessageType = 16
	MsgError                   MessageType = 17
	MsgOpenChannel             MessageType = 32
	MsgAcceptChannel           MessageType = 33
	MsgFundingCreated          MessageType = 34
	MsgFundingSigned           MessageType = 35
	MsgFundingLocked           MessageType = 36
	MsgShutdown                MessageType = 38
	MsgUpdateAddHTLC           MessageType = 128
	MsgUpdateFulfillHTLC       MessageType = 130
	MsgUpdateFailHTLC          MessageType = 131
	MsgCommitSig               MessageType = 132
	MsgRevokeAndAck            MessageType = 133
	MsgUpdateFailMalformedHTLC MessageType = 135
)

// String returns a human readable description of the message type.
func (t MessageType) String() string {
	switch t {
	case MsgInit:
		return "Init"
	case MsgError:
		return "Error"
	case MsgOpenChannel:
		return "MsgOpenChannel"
	case MsgAcceptChannel:
		return "MsgAcceptChannel"
	case MsgFundingCreated:
		return "MsgFundingCreated"
	case MsgFundingSigned:
		return "MsgFundingSigned"
	case MsgFundingLocked:
		return "MsgFundingLocked"
	case MsgShutdown:
		return "Shutdown"
	case MsgUpdateAddHTLC:
		return "UpdateAddHTLC"
	case MsgUpdateFulfillHTLC:
		return "UpdateFulfillHTLC"
	case MsgUpdateFailHTLC:
		return "UpdateFailHTLC"
	case MsgCommitSig:
		return "CommitSig"
	case MsgRevokeAndAck:
		return "RevokeAndAck"
	case MsgUpdateFailMalformedHTLC:
		return "UpdateFailMalformedHTLC"
	default:
		return fmt.Sprintf("<unknown(%d)>", uint16(t))
	}
}

// Message is the interface satisfied by every peer message exchanged over a
// channel. Serialization to the raw wire encoding lives with the transport
// layer; the types here are the in-memory representation the channel state
// machine operates on.
type Message interface {
	// MsgType returns the integer uniquely identifying this message type
	// on the wire.
	MsgType() MessageType
}

// LinkUpdater is an interface implemented by messages that update the state
// of a particular channel. It exposes the channel id the message targets so
// a multiplexer can route it to the right state machine.
type LinkUpdater interface {
	Message

	// TargetChanID returns the channel id of the link for which this
	// message is intended.
	TargetChanID() ChannelID
}
