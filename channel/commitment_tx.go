package channel

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/txsort"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/ripemd160"

	"github.com/lightningnetwork/lnchannel/chainfee"
	"github.com/lightningnetwork/lnchannel/keychain"
	"github.com/lightningnetwork/lnchannel/lnwire"
)

// CommitmentKeyRing holds the per-commitment keys derived from both parties'
// basepoints and a single per-commitment point. All keys are expressed from
// the point of view of the commitment owner.
type CommitmentKeyRing struct {
	// CommitPoint is the per-commitment point the ring was derived from.
	CommitPoint *btcec.PublicKey

	// ToLocalKey is the owner's delayed payment key.
	ToLocalKey *btcec.PublicKey

	// ToRemoteKey is the key the counterparty's non-delayed output pays
	// to.
	ToRemoteKey *btcec.PublicKey

	// RevocationKey allows the counterparty to sweep the owner's outputs
	// if this commitment is ever broadcast after being revoked.
	RevocationKey *btcec.PublicKey

	// LocalHtlcKey is the owner's key within HTLC scripts.
	LocalHtlcKey *btcec.PublicKey

	// RemoteHtlcKey is the counterparty's key within HTLC scripts.
	RemoteHtlcKey *btcec.PublicKey
}

// basePoints bundles one party's channel basepoints.
type basePoints struct {
	revocation *btcec.PublicKey
	payment    *btcec.PublicKey
	delayed    *btcec.PublicKey
	htlc       *btcec.PublicKey
}

// deriveCommitmentKeys derives the key ring of a commitment owned by the
// party with basepoints owner, against counterparty basepoints counter, at
// the given per-commitment point.
func deriveCommitmentKeys(commitPoint *btcec.PublicKey, owner,
	counter basePoints, staticRemoteKey bool) *CommitmentKeyRing {

	toRemoteKey := counter.payment
	if !staticRemoteKey {
		toRemoteKey = keychain.TweakPubKey(counter.payment, commitPoint)
	}

	return &CommitmentKeyRing{
		CommitPoint: commitPoint,
		ToLocalKey:  keychain.TweakPubKey(owner.delayed, commitPoint),
		ToRemoteKey: toRemoteKey,
		RevocationKey: keychain.DeriveRevocationPubkey(
			counter.revocation, commitPoint,
		),
		LocalHtlcKey:  keychain.TweakPubKey(owner.htlc, commitPoint),
		RemoteHtlcKey: keychain.TweakPubKey(counter.htlc, commitPoint),
	}
}

// GenMultiSigScript generates the non-p2sh'd multisig script for 2 of 2
// pubkeys. The keys are sorted into the canonical lexicographical order
// before being committed to the script.
func GenMultiSigScript(aPub, bPub []byte) ([]byte, error) {
	if bytes.Compare(aPub, bPub) > 0 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)

	return bldr.Script()
}

// witnessScriptHash generates a pay-to-witness-script-hash public key script
// paying to a version 0 witness program paying to the passed redeem script.
func witnessScriptHash(witnessScript []byte) ([]byte, error) {
	scriptHash := sha256.Sum256(witnessScript)

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	bldr.AddData(scriptHash[:])

	return bldr.Script()
}

// witnessKeyHash generates a version 0 pay-to-witness-key-hash public key
// script paying to the given key.
func witnessKeyHash(pub *btcec.PublicKey) ([]byte, error) {
	pkHash := btcutil.Hash160(pub.SerializeCompressed())

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	bldr.AddData(pkHash)

	return bldr.Script()
}

// commitScriptToSelf constructs the public key script for the output on the
// commitment transaction paying to the "owner" of said commitment
// transaction. The output can be spent by the owner after a relative block
// delay, or immediately by the counterparty with the revocation key if the
// commitment was revoked.
func commitScriptToSelf(csvTimeout uint16, selfKey,
	revocationKey *btcec.PublicKey) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()

	bldr.AddOp(txscript.OP_IF)
	bldr.AddData(revocationKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddInt64(int64(csvTimeout))
	bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddData(selfKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_CHECKSIG)

	return bldr.Script()
}

// senderHtlcScript constructs the script for an outgoing HTLC output: the
// offerer can reclaim the funds after the timeout via a second-level
// transaction, the receiver can claim them with the payment preimage, and
// the revocation key sweeps everything if the commitment was revoked.
func senderHtlcScript(senderHtlcKey, receiverHtlcKey,
	revocationKey *btcec.PublicKey, paymentHash []byte) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()

	bldr.AddData(revocationKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_IFDUP)
	bldr.AddOp(txscript.OP_NOTIF)

	bldr.AddData(receiverHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIGVERIFY)
	bldr.AddOp(txscript.OP_IF)

	// Claim path with preimage: HASH160 of the preimage equals
	// RIPEMD160(paymentHash).
	hasher := ripemd160.New()
	hasher.Write(paymentHash)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(hasher.Sum(nil))
	bldr.AddOp(txscript.OP_EQUALVERIFY)
	bldr.AddOp(txscript.OP_1)

	bldr.AddOp(txscript.OP_ELSE)

	// Timeout path through the second-level transaction, which requires
	// both htlc keys.
	bldr.AddData(senderHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIG)

	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_ENDIF)

	return bldr.Script()
}

// receiverHtlcScript constructs the script for an incoming HTLC output: the
// receiver claims with the preimage via a second-level transaction, the
// offerer reclaims after the cltv expiry, and the revocation key sweeps
// everything on a revoked commitment.
func receiverHtlcScript(cltvExpiry uint32, senderHtlcKey, receiverHtlcKey,
	revocationKey *btcec.PublicKey, paymentHash []byte) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()

	bldr.AddData(revocationKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_IFDUP)
	bldr.AddOp(txscript.OP_NOTIF)

	bldr.AddData(senderHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIGVERIFY)
	bldr.AddOp(txscript.OP_IF)

	// Success path with preimage via the second-level transaction:
	// HASH160 of the preimage equals RIPEMD160(paymentHash).
	hasher := ripemd160.New()
	hasher.Write(paymentHash)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(hasher.Sum(nil))
	bldr.AddOp(txscript.OP_EQUALVERIFY)
	bldr.AddData(receiverHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIG)

	bldr.AddOp(txscript.OP_ELSE)

	// Refund path after the absolute timeout.
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddInt64(int64(cltvExpiry))
	bldr.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddOp(txscript.OP_1)

	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_ENDIF)

	return bldr.Script()
}

// htlcEntry tracks one untrimmed HTLC through commitment construction,
// remembering the scripts used and the output index resolved after the
// canonical sort.
type htlcEntry struct {
	htlc          DirectedHtlc
	witnessScript []byte
	pkScript      []byte
	amount        btcutil.Amount
	outputIndex   int
}

// commitmentTx is a fully constructed commitment transaction along with the
// metadata required to sign and validate its HTLC outputs.
type commitmentTx struct {
	tx    *wire.MsgTx
	fee   btcutil.Amount
	htlcs []htlcEntry
}

// htlcIsTrimmed returns true if the HTLC cannot appear as an output on the
// commitment because its value, less the second-level claim fee, falls below
// the commitment owner's dust limit.
func htlcIsTrimmed(incoming bool, amt lnwire.MilliSatoshi,
	feeRate chainfee.SatPerKWeight, dustLimit btcutil.Amount) bool {

	var htlcFee btcutil.Amount
	if incoming {
		htlcFee = chainfee.HtlcSuccessFee(feeRate)
	} else {
		htlcFee = chainfee.HtlcTimeoutFee(feeRate)
	}

	return amt.ToSatoshis()-htlcFee < dustLimit
}

// untrimmedHtlcs returns the HTLCs of the spec that survive trimming against
// the given dust limit.
func untrimmedHtlcs(spec CommitmentSpec,
	dustLimit btcutil.Amount) []DirectedHtlc {

	var kept []DirectedHtlc
	for _, htlc := range spec.Htlcs {
		incoming := htlc.Direction == Incoming
		if htlcIsTrimmed(
			incoming, htlc.Add.Amount, spec.FeeRatePerKw,
			dustLimit,
		) {
			continue
		}
		kept = append(kept, htlc)
	}

	return kept
}

// commitTxFee computes the commitment fee for the spec after trimming
// against the owner's dust limit.
func commitTxFee(spec CommitmentSpec,
	dustLimit btcutil.Amount) btcutil.Amount {

	return chainfee.CommitTxFee(
		spec.FeeRatePerKw, len(untrimmedHtlcs(spec, dustLimit)),
	)
}

// buildCommitmentTx assembles the commitment transaction for the given spec.
// The spec is expressed from the commitment owner's point of view, keys is
// the ring derived for the owner, dustLimit the owner's dust limit, and
// toSelfDelay the CSV delay imposed on the owner by the counterparty. The
// commitment fee is deducted from the funder's balance, ownerIsFunder states
// which side that is.
func buildCommitmentTx(fundingInput FundingInput, spec CommitmentSpec,
	keys *CommitmentKeyRing, dustLimit btcutil.Amount,
	toSelfDelay uint16, ownerIsFunder bool) (*commitmentTx, error) {

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: fundingInput.OutPoint,
	})

	kept := untrimmedHtlcs(spec, dustLimit)
	fee := chainfee.CommitTxFee(spec.FeeRatePerKw, len(kept))

	toLocal := spec.ToLocal.ToSatoshis()
	toRemote := spec.ToRemote.ToSatoshis()
	if ownerIsFunder {
		if toLocal < fee {
			toLocal = 0
		} else {
			toLocal -= fee
		}
	} else {
		if toRemote < fee {
			toRemote = 0
		} else {
			toRemote -= fee
		}
	}

	if toLocal >= dustLimit {
		toLocalScript, err := commitScriptToSelf(
			toSelfDelay, keys.ToLocalKey, keys.RevocationKey,
		)
		if err != nil {
			return nil, err
		}
		pkScript, err := witnessScriptHash(toLocalScript)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(toLocal), pkScript))
	}

	if toRemote >= dustLimit {
		pkScript, err := witnessKeyHash(keys.ToRemoteKey)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(toRemote), pkScript))
	}

	entries := make([]htlcEntry, 0, len(kept))
	for _, htlc := range kept {
		var (
			witnessScript []byte
			err           error
		)
		if htlc.Direction == Outgoing {
			witnessScript, err = senderHtlcScript(
				keys.LocalHtlcKey, keys.RemoteHtlcKey,
				keys.RevocationKey, htlc.Add.PaymentHash[:],
			)
		} else {
			witnessScript, err = receiverHtlcScript(
				htlc.Add.Expiry, keys.RemoteHtlcKey,
				keys.LocalHtlcKey, keys.RevocationKey,
				htlc.Add.PaymentHash[:],
			)
		}
		if err != nil {
			return nil, err
		}

		pkScript, err := witnessScriptHash(witnessScript)
		if err != nil {
			return nil, err
		}

		amt := htlc.Add.Amount.ToSatoshis()
		tx.AddTxOut(wire.NewTxOut(int64(amt), pkScript))

		entries = append(entries, htlcEntry{
			htlc:          htlc,
			witnessScript: witnessScript,
			pkScript:      pkScript,
			amount:        amt,
		})
	}

	// Sort the transaction into the canonical BIP-69 ordering, then
	// resolve the final output index of every HTLC entry.
	txsort.InPlaceSort(tx)

	used := make(map[int]bool)
	for i := range entries {
		entries[i].outputIndex = -1
		for vout, out := range tx.TxOut {
			if used[vout] {
				continue
			}
			if out.Value != int64(entries[i].amount) {
				continue
			}
			if !bytes.Equal(out.PkScript, entries[i].pkScript) {
				continue
			}

			entries[i].outputIndex = vout
			used[vout] = true
			break
		}
	}

	return &commitmentTx{
		tx:    tx,
		fee:   fee,
		htlcs: entries,
	}, nil
}

// buildHtlcTx constructs the second-level HTLC transaction spending the HTLC
// output at the given entry: a timeout transaction for outgoing HTLCs, a
// success transaction for incoming ones. The output pays to the commitment
// owner behind the usual delay-or-revocation script.
func buildHtlcTx(commitTxid chainhash.Hash, entry htlcEntry,
	keys *CommitmentKeyRing, feeRate chainfee.SatPerKWeight,
	toSelfDelay uint16) (*wire.MsgTx, error) {

	var (
		fee      btcutil.Amount
		locktime uint32
	)
	if entry.htlc.Direction == Outgoing {
		fee = chainfee.HtlcTimeoutFee(feeRate)
		locktime = entry.htlc.Add.Expiry
	} else {
		fee = chainfee.HtlcSuccessFee(feeRate)
	}

	tx := wire.NewMsgTx(2)
	tx.LockTime = locktime
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  commitTxid,
			Index: uint32(entry.outputIndex),
		},
		Sequence: 0,
	})

	delayScript, err := commitScriptToSelf(
		toSelfDelay, keys.ToLocalKey, keys.RevocationKey,
	)
	if err != nil {
		return nil, err
	}
	pkScript, err := witnessScriptHash(delayScript)
	if err != nil {
		return nil, err
	}

	tx.AddTxOut(wire.NewTxOut(int64(entry.amount-fee), pkScript))

	return tx, nil
}

// htlcSigHash computes the sighash a signature over the second-level HTLC
// transaction must cover.
func htlcSigHash(htlcTx *wire.MsgTx, entry htlcEntry) ([]byte, error) {
	prevOut := wire.NewTxOut(int64(entry.amount), entry.pkScript)
	fetcher := txscript.NewCannedPrevOutputFetcher(
		prevOut.PkScript, prevOut.Value,
	)

	return txscript.CalcWitnessSigHash(
		entry.witnessScript, txscript.NewTxSigHashes(htlcTx, fetcher),
		txscript.SigHashAll, htlcTx, 0, prevOut.Value,
	)
}

// commitSigHash computes the sighash a signature over the commitment
// transaction must cover.
func commitSigHash(commitTx *wire.MsgTx,
	fundingInput FundingInput) ([]byte, error) {

	fetcher := txscript.NewCannedPrevOutputFetcher(
		fundingInput.TxOut.PkScript, fundingInput.TxOut.Value,
	)

	return txscript.CalcWitnessSigHash(
		fundingInput.WitnessScript,
		txscript.NewTxSigHashes(commitTx, fetcher),
		txscript.SigHashAll, commitTx, 0, fundingInput.TxOut.Value,
	)
}

// spendMultiSig assembles the witness stack spending the 2-of-2 funding
// output, placing the signatures in the order matching the sorted public
// keys within the witness script. A sighash-all flag byte is appended to
// each raw signature.
func spendMultiSig(witnessScript []byte, pubA, sigA, pubB,
	sigB []byte) wire.TxWitness {

	witness := make(wire.TxWitness, 4)

	// The initial byte is a placeholder consumed by the CHECKMULTISIG
	// off-by-one bug.
	witness[0] = nil

	if bytes.Compare(pubA, pubB) > 0 {
		sigA, sigB = sigB, sigA
	}
	witness[1] = append(sigA, byte(txscript.SigHashAll))
	witness[2] = append(sigB, byte(txscript.SigHashAll))
	witness[3] = witnessScript

	return witness
}

// verifyCommitSig checks the counterparty's signature over a commitment
// transaction against their funding key.
func verifyCommitSig(commitTx *wire.MsgTx, fundingInput FundingInput,
	remoteFundingKey *btcec.PublicKey, sig lnwire.Sig) error {

	sigHash, err := commitSigHash(commitTx, fundingInput)
	if err != nil {
		return err
	}

	ecdsaSig, err := sig.ToSignature()
	if err != nil {
		return err
	}

	if !ecdsaSig.Verify(sigHash, remoteFundingKey) {
		return &ErrInvalidCommitmentSignature{}
	}

	return nil
}
