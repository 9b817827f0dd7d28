package keychain

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lnchannel/shachain"
)

// KeyManager houses every key derivation and signing operation the channel
// state machine needs. Implementations must be safe for concurrent use, as a
// single manager is shared by all channels of a node.
type KeyManager interface {
	Signer

	// FundingPublicKey derives the public key used within the 2-of-2
	// funding output of a channel anchored at the given key index.
	FundingPublicKey(index uint32) (*btcec.PublicKey, error)

	// ChannelKeyPath computes the derivation subtree for a channel from
	// its funding key index and the negotiated key derivation branch.
	ChannelKeyPath(fundingKeyIndex uint32,
		staticRemoteKey bool) ChannelKeyPath

	// RevocationBasePoint returns the channel's revocation basepoint.
	RevocationBasePoint(path ChannelKeyPath) (*btcec.PublicKey, error)

	// PaymentBasePoint returns the channel's payment basepoint.
	PaymentBasePoint(path ChannelKeyPath) (*btcec.PublicKey, error)

	// DelayedPaymentBasePoint returns the channel's delayed payment
	// basepoint.
	DelayedPaymentBasePoint(path ChannelKeyPath) (*btcec.PublicKey, error)

	// HtlcBasePoint returns the channel's htlc basepoint.
	HtlcBasePoint(path ChannelKeyPath) (*btcec.PublicKey, error)

	// CommitmentPoint returns the per-commitment point for the channel at
	// the given commitment index.
	CommitmentPoint(path ChannelKeyPath,
		index uint64) (*btcec.PublicKey, error)

	// CommitmentSecret returns the per-commitment secret for the channel
	// at the given commitment index. Revealing the secret at index n
	// revokes the commitment transaction at index n.
	CommitmentSecret(path ChannelKeyPath,
		index uint64) (*chainhash.Hash, error)
}

// MemKeyManager is a deterministic in-memory implementation of the KeyManager
// interface. All keys are derived from a single 32-byte seed, which makes the
// manager suitable for tests and for embedders that hold their seed in
// process rather than behind an HSM. The manager is stateless after
// construction and therefore safe for concurrent use.
type MemKeyManager struct {
	seed [32]byte
}

// A compile time check to ensure MemKeyManager implements the KeyManager
// interface.
var _ KeyManager = (*MemKeyManager)(nil)

// NewMemKeyManager creates a key manager deriving all of its keys from the
// given seed.
func NewMemKeyManager(seed [32]byte) *MemKeyManager {
	return &MemKeyManager{seed: seed}
}

// derivePrivKey deterministically derives the private key at the given
// locator by hashing the seed together with the family and index.
func (m *MemKeyManager) derivePrivKey(loc KeyLocator) *btcec.PrivateKey {
	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], uint32(loc.Family))
	binary.BigEndian.PutUint32(scratch[4:], loc.Index)

	h := sha256.New()
	h.Write(m.seed[:])
	h.Write(scratch[:])

	privKey, _ := btcec.PrivKeyFromBytes(h.Sum(nil))
	return privKey
}

// derivePubKey returns the public key at the given locator.
func (m *MemKeyManager) derivePubKey(loc KeyLocator) *btcec.PublicKey {
	return m.derivePrivKey(loc).PubKey()
}

// FundingPublicKey derives the public key used within the 2-of-2 funding
// output of a channel anchored at the given key index.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) FundingPublicKey(index uint32) (*btcec.PublicKey,
	error) {

	return m.derivePubKey(KeyLocator{
		Family: KeyFamilyMultiSig,
		Index:  index,
	}), nil
}

// ChannelKeyPath computes the derivation subtree for a channel from its
// funding key index and the negotiated key derivation branch.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) ChannelKeyPath(fundingKeyIndex uint32,
	staticRemoteKey bool) ChannelKeyPath {

	return ChannelKeyPath{
		Index:           fundingKeyIndex,
		StaticRemoteKey: staticRemoteKey,
	}
}

// RevocationBasePoint returns the channel's revocation basepoint.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) RevocationBasePoint(
	path ChannelKeyPath) (*btcec.PublicKey, error) {

	return m.derivePubKey(KeyLocator{
		Family: KeyFamilyRevocationBase,
		Index:  path.Index,
	}), nil
}

// PaymentBasePoint returns the channel's payment basepoint.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) PaymentBasePoint(
	path ChannelKeyPath) (*btcec.PublicKey, error) {

	return m.derivePubKey(KeyLocator{
		Family: KeyFamilyPaymentBase,
		Index:  path.Index,
	}), nil
}

// DelayedPaymentBasePoint returns the channel's delayed payment basepoint.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) DelayedPaymentBasePoint(
	path ChannelKeyPath) (*btcec.PublicKey, error) {

	return m.derivePubKey(KeyLocator{
		Family: KeyFamilyDelayBase,
		Index:  path.Index,
	}), nil
}

// HtlcBasePoint returns the channel's htlc basepoint.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) HtlcBasePoint(
	path ChannelKeyPath) (*btcec.PublicKey, error) {

	return m.derivePubKey(KeyLocator{
		Family: KeyFamilyHtlcBase,
		Index:  path.Index,
	}), nil
}

// revocationProducer builds the shachain producer holding the channel's
// per-commitment secrets.
func (m *MemKeyManager) revocationProducer(
	path ChannelKeyPath) *shachain.RevocationProducer {

	rootKey := m.derivePrivKey(KeyLocator{
		Family: KeyFamilyRevocationRoot,
		Index:  path.Index,
	})

	root := sha256.Sum256(rootKey.Serialize())
	return shachain.NewRevocationProducer(chainhash.Hash(root))
}

// CommitmentSecret returns the per-commitment secret for the channel at the
// given commitment index.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) CommitmentSecret(path ChannelKeyPath,
	index uint64) (*chainhash.Hash, error) {

	return m.revocationProducer(path).AtIndex(index)
}

// CommitmentPoint returns the per-commitment point for the channel at the
// given commitment index.
//
// NOTE: Part of the KeyManager interface.
func (m *MemKeyManager) CommitmentPoint(path ChannelKeyPath,
	index uint64) (*btcec.PublicKey, error) {

	secret, err := m.CommitmentSecret(path, index)
	if err != nil {
		return nil, err
	}

	privKey, _ := btcec.PrivKeyFromBytes(secret[:])
	return privKey.PubKey(), nil
}

// SignOutputRaw generates a signature for the passed transaction according to
// the data within the passed SignDescriptor.
//
// NOTE: Part of the Signer interface.
func (m *MemKeyManager) SignOutputRaw(tx *wire.MsgTx,
	signDesc *SignDescriptor) (*ecdsa.Signature, error) {

	privKey := m.derivePrivKey(signDesc.KeyDesc.KeyLocator)

	// If a tweak (single) is specified, then we'll need to use this tweak
	// as the input point to derive the key used to generate the
	// signature.
	if len(signDesc.SingleTweak) > 0 {
		privKey = TweakPrivKey(privKey, signDesc.SingleTweak)
	}

	sigHashes := signDesc.SigHashes
	if sigHashes == nil {
		fetcher := txscript.NewCannedPrevOutputFetcher(
			signDesc.Output.PkScript, signDesc.Output.Value,
		)
		sigHashes = txscript.NewTxSigHashes(tx, fetcher)
	}

	hashType := signDesc.HashType
	if hashType == 0 {
		hashType = txscript.SigHashAll
	}

	sigHash, err := txscript.CalcWitnessSigHash(
		signDesc.WitnessScript, sigHashes, hashType, tx,
		signDesc.InputIndex, signDesc.Output.Value,
	)
	if err != nil {
		return nil, err
	}

	return ecdsa.Sign(privKey, sigHash), nil
}
