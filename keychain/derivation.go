package keychain

import (
	"github.com/btcsuite/btcd/btcec/v2"
)

// KeyFamily represents a "family" of keys that will be used within various
// contracts created by the channel machinery. These families are meant to be
// distinct branches within the HD key chain of the backing wallet. Usage of
// key families within the interface below is strict in order to promote
// integrability and the ability to restore all keys given a user master seed
// backup.
type KeyFamily uint32

const (
	// KeyFamilyMultiSig are keys to be used within multi-sig scripts.
	KeyFamilyMultiSig KeyFamily = 0

	// KeyFamilyRevocationBase are keys that are used within channels to
	// create revocation basepoints that the remote party will use to
	// create revocation keys for us.
	KeyFamilyRevocationBase KeyFamily = 1

	// KeyFamilyHtlcBase are keys used within channels that will be
	// combined with per-state randomness to produce public keys that will
	// be used in HTLC scripts.
	KeyFamilyHtlcBase KeyFamily = 2

	// KeyFamilyPaymentBase are keys used within channels that will be
	// combined with per-state randomness to produce public keys that will
	// be used in scripts that pay directly to us without any delay.
	KeyFamilyPaymentBase KeyFamily = 3

	// KeyFamilyDelayBase are keys used within channels that will be
	// combined with per-state randomness to produce public keys that will
	// be used in scripts that pay to us, but require a CSV delay before we
	// can sweep the funds.
	KeyFamilyDelayBase KeyFamily = 4

	// KeyFamilyRevocationRoot is a family of keys which will be used to
	// derive the root of a revocation tree for a particular channel.
	KeyFamilyRevocationRoot KeyFamily = 5

	// KeyFamilyNodeKey is a family of keys that will be used to derive
	// keys that will be advertised on the network to represent our current
	// "identity" within the network.
	KeyFamilyNodeKey KeyFamily = 6
)

// KeyLocator is a two-tuple that can be used to derive *any* key that has
// ever been used under the key derivation mechanisms described in this file.
// The key family selects the "account" branch, and the index the precise key
// underneath it.
type KeyLocator struct {
	// Family is the family of key being identified.
	Family KeyFamily

	// Index is the precise index of the key being identified.
	Index uint32
}

// IsEmpty returns true if a KeyLocator is "empty". This may be the case where
// we learn of a key from a remote party for a contract, but don't know the
// precise details of its derivation (as we don't know the private key!).
func (k KeyLocator) IsEmpty() bool {
	return k.Family == 0 && k.Index == 0
}

// KeyDescriptor wraps a KeyLocator and also optionally includes a public key.
// Either the KeyLocator must be non-empty, or the public key pointer be
// non-nil. This will be used by the KeyRing interface to lookup arbitrary
// private keys, and also within the SignDescriptor struct to locate precisely
// which keys should be used for signing.
type KeyDescriptor struct {
	// KeyLocator is the internal KeyLocator of the descriptor.
	KeyLocator

	// PubKey is an optional public key that fully describes a target key.
	// If this is nil, the KeyLocator MUST NOT be empty.
	PubKey *btcec.PublicKey
}

// KeyRing is the primary interface that will be used to perform public
// derivation of various keys used within the peer-to-peer network, and also
// within any created contracts.
type KeyRing interface {
	// DeriveKey attempts to derive an arbitrary key specified by the
	// passed KeyLocator.
	DeriveKey(keyLoc KeyLocator) (KeyDescriptor, error)
}

// ChannelKeyPath identifies the derivation subtree holding every key of a
// single channel. It is computed once at negotiation time and threaded
// through all subsequent derivation calls.
type ChannelKeyPath struct {
	// Index is the key index of the channel's funding key, which anchors
	// the rest of the channel's key families.
	Index uint32

	// StaticRemoteKey selects the derivation branch used for channels
	// where the remote party's non-delayed output is not tweaked per
	// commitment.
	StaticRemoteKey bool
}
