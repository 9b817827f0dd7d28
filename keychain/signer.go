package keychain

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignDescriptor houses the necessary information required to successfully
// sign a given segwit output. This struct is used by the Signer interface in
// order to gain access to enough information to generate a valid signature
// for the target input.
type SignDescriptor struct {
	// KeyDesc is a descriptor that precisely describes *which* key to use
	// for signing.
	KeyDesc KeyDescriptor

	// SingleTweak is a scalar value that will be added to the private key
	// corresponding to the above public key to obtain the private key to
	// be used to sign this input. This value is typically the commitment
	// point folded into a channel basepoint.
	SingleTweak []byte

	// WitnessScript is the full script required to properly redeem the
	// output.
	WitnessScript []byte

	// Output is the target output which should be signed. The PkScript
	// and Value fields within the output should be properly populated,
	// otherwise an invalid signature may be generated.
	Output *wire.TxOut

	// HashType is the target sighash type that should be used when
	// generating the final sighash, and signature.
	HashType txscript.SigHashType

	// SigHashes is the pre-computed sighash midstate to be used when
	// generating the final sighash for signing.
	SigHashes *txscript.TxSigHashes

	// InputIndex is the target input within the transaction that should
	// be signed.
	InputIndex int
}

// Signer represents an abstract object capable of generating raw signatures
// as well as full complete input scripts given a valid SignDescriptor and
// transaction.
type Signer interface {
	// SignOutputRaw generates a signature for the passed transaction
	// according to the data within the passed SignDescriptor.
	//
	// NOTE: The resulting signature should be void of a sighash byte.
	SignOutputRaw(tx *wire.MsgTx,
		signDesc *SignDescriptor) (*ecdsa.Signature, error)
}
