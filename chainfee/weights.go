package chainfee

import (
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// CommitWeight is the weight of a base commitment transaction without
	// any HTLC outputs.
	CommitWeight int64 = 724

	// HTLCWeight is the weight an HTLC output adds to a commitment
	// transaction.
	HTLCWeight int64 = 172

	// HtlcTimeoutWeight is the weight of the HTLC timeout transaction
	// which will transition an outgoing HTLC to the delay-and-claim state.
	HtlcTimeoutWeight int64 = 663

	// HtlcSuccessWeight is the weight of the HTLC success transaction
	// which will transition an incoming HTLC to the delay-and-claim state.
	HtlcSuccessWeight int64 = 703
)

// CommitTxFee computes the fee of a commitment transaction carrying the given
// number of untrimmed HTLC outputs. The fee is always paid by the channel
// initiator.
func CommitTxFee(feePerKw SatPerKWeight, numHtlcs int) btcutil.Amount {
	return feePerKw.FeeForWeight(CommitWeight + HTLCWeight*int64(numHtlcs))
}

// HtlcTimeoutFee returns the fee in satoshis required for an HTLC timeout
// transaction.
func HtlcTimeoutFee(feePerKw SatPerKWeight) btcutil.Amount {
	return feePerKw.FeeForWeight(HtlcTimeoutWeight)
}

// HtlcSuccessFee returns the fee in satoshis required for an HTLC success
// transaction.
func HtlcSuccessFee(feePerKw SatPerKWeight) btcutil.Amount {
	return feePerKw.FeeForWeight(HtlcSuccessWeight)
}
