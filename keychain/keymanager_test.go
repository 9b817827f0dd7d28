package keychain

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func testKeyManager() *MemKeyManager {
	seed := sha256.Sum256([]byte("keychain test seed"))
	return NewMemKeyManager(seed)
}

// TestMemKeyManagerDeterminism asserts that all derived keys are stable
// across managers constructed from the same seed and differ across seeds.
func TestMemKeyManagerDeterminism(t *testing.T) {
	km1 := testKeyManager()
	km2 := testKeyManager()

	otherSeed := sha256.Sum256([]byte("other seed"))
	km3 := NewMemKeyManager(otherSeed)

	path := km1.ChannelKeyPath(7, true)

	key1, err := km1.FundingPublicKey(7)
	require.NoError(t, err)
	key2, err := km2.FundingPublicKey(7)
	require.NoError(t, err)
	key3, err := km3.FundingPublicKey(7)
	require.NoError(t, err)

	require.Equal(t, key1, key2)
	require.NotEqual(t, key1, key3)

	point1, err := km1.CommitmentPoint(path, 42)
	require.NoError(t, err)
	point2, err := km2.CommitmentPoint(path, 42)
	require.NoError(t, err)
	require.Equal(t, point1, point2)

	// The commitment point must be the public image of the commitment
	// secret at the same index.
	secret, err := km1.CommitmentSecret(path, 42)
	require.NoError(t, err)
	priv, _ := btcec.PrivKeyFromBytes(secret[:])
	require.Equal(t, priv.PubKey(), point1)
}

// TestTweakSymmetry asserts that tweaking the public key matches the public
// image of tweaking the private key, and the analogous property for
// revocation keys.
func TestTweakSymmetry(t *testing.T) {
	basePriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	commitPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	base := basePriv.PubKey()
	commitPoint := commitPriv.PubKey()

	tweak := SingleTweakBytes(commitPoint, base)
	tweakedPriv := TweakPrivKey(basePriv, tweak)
	require.Equal(t, TweakPubKey(base, commitPoint), tweakedPriv.PubKey())

	revPriv := DeriveRevocationPrivKey(basePriv, commitPriv)
	require.Equal(
		t, DeriveRevocationPubkey(base, commitPoint),
		revPriv.PubKey(),
	)
}

// TestSignOutputRaw signs a simple p2wsh spend and verifies the signature
// against the computed sighash.
func TestSignOutputRaw(t *testing.T) {
	km := testKeyManager()

	keyDesc := KeyDescriptor{
		KeyLocator: KeyLocator{Family: KeyFamilyMultiSig, Index: 1},
	}
	pubKey, err := km.FundingPublicKey(1)
	require.NoError(t, err)

	// A single-key witness script, enough to exercise the signer.
	builder := txscript.NewScriptBuilder()
	builder.AddData(pubKey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	witnessScript, err := builder.Script()
	require.NoError(t, err)

	scriptHash := sha256.Sum256(witnessScript)
	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).AddData(scriptHash[:]).Script()
	require.NoError(t, err)

	prevOut := &wire.TxOut{Value: 100_000, PkScript: pkScript}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{})
	tx.AddTxOut(&wire.TxOut{Value: 99_000, PkScript: pkScript})

	sig, err := km.SignOutputRaw(tx, &SignDescriptor{
		KeyDesc:       keyDesc,
		WitnessScript: witnessScript,
		Output:        prevOut,
		HashType:      txscript.SigHashAll,
		InputIndex:    0,
	})
	require.NoError(t, err)

	fetcher := txscript.NewCannedPrevOutputFetcher(
		prevOut.PkScript, prevOut.Value,
	)
	sigHash, err := txscript.CalcWitnessSigHash(
		witnessScript, txscript.NewTxSigHashes(tx, fetcher),
		txscript.SigHashAll, tx, 0, prevOut.Value,
	)
	require.NoError(t, err)

	require.True(t, sig.Verify(sigHash, pubKey))
}
