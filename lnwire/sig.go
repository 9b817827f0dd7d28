package lnwire

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// ErrEmptySig is returned when a signature slot holds no signature at all.
var ErrEmptySig = errors.New("signature is empty")

// Sig holds a DER-encoded ECDSA signature produced over a commitment or HTLC
// transaction. The zero value represents the absence of a signature.
type Sig struct {
	bytes []byte
}

// NewSigFromSignature creates a new signature as used on the wire, from an
// existing ecdsa.Signature.
func NewSigFromSignature(e *ecdsa.Signature) (Sig, error) {
	if e == nil {
		return Sig{}, errors.New("cannot decode empty signature")
	}

	return Sig{bytes: e.Serialize()}, nil
}

// NewSigFromRawSignature constructs a Sig from raw signature bytes without
// validating them. Validation is deferred to ToSignature.
func NewSigFromRawSignature(sig []byte) Sig {
	b := make([]byte, len(sig))
	copy(b, sig)
	return Sig{bytes: b}
}

// ToSignature parses the DER-encoded signature into an ecdsa.Signature which
// can be used for signature validation checks.
func (s Sig) ToSignature() (*ecdsa.Signature, error) {
	if len(s.bytes) == 0 {
		return nil, ErrEmptySig
	}

	return ecdsa.ParseDERSignature(s.bytes)
}

// RawBytes returns the raw serialized bytes of the signature.
func (s Sig) RawBytes() []byte {
	return s.bytes
}
