package shachain

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testRoot(t *testing.T) chainhash.Hash {
	t.Helper()

	seed := sha256.Sum256([]byte("shachain test root"))
	root, err := chainhash.NewHash(seed[:])
	require.NoError(t, err)

	return *root
}

// TestProducerStoreRoundTrip inserts produced secrets into a store in order
// and asserts every previously inserted secret remains derivable.
func TestProducerStoreRoundTrip(t *testing.T) {
	producer := NewRevocationProducer(testRoot(t))
	store := NewRevocationStore()

	const numSecrets = 100

	for i := uint64(0); i < numSecrets; i++ {
		secret, err := producer.AtIndex(i)
		require.NoError(t, err)

		require.NoError(t, store.AddNextEntry(secret))
	}

	for i := uint64(0); i < numSecrets; i++ {
		secret, err := producer.AtIndex(i)
		require.NoError(t, err)

		stored, err := store.LookUp(i)
		require.NoError(t, err)
		require.Equal(t, secret, stored)
	}

	// A secret that was never handed out cannot be derived.
	_, err := store.LookUp(numSecrets)
	require.Error(t, err)
}

// TestStoreRejectsForeignSecret asserts that a secret from a different chain
// cannot be appended once derivation links are checkable.
func TestStoreRejectsForeignSecret(t *testing.T) {
	producer := NewRevocationProducer(testRoot(t))
	store := NewRevocationStore()

	secret, err := producer.AtIndex(0)
	require.NoError(t, err)
	require.NoError(t, store.AddNextEntry(secret))

	// Index 1 has a trailing zero, which makes the store verify that the
	// previous bucket derives from it. A random hash must be rejected.
	bogus := sha256.Sum256([]byte("not part of the chain"))
	bogusHash, err := chainhash.NewHash(bogus[:])
	require.NoError(t, err)

	require.Error(t, store.AddNextEntry(bogusHash))
}

// TestStoreSerialization asserts that an encoded store decodes to an
// equivalent store.
func TestStoreSerialization(t *testing.T) {
	producer := NewRevocationProducer(testRoot(t))
	store := NewRevocationStore()

	for i := uint64(0); i < 10; i++ {
		secret, err := producer.AtIndex(i)
		require.NoError(t, err)
		require.NoError(t, store.AddNextEntry(secret))
	}

	var b bytes.Buffer
	require.NoError(t, store.Encode(&b))

	decoded, err := NewRevocationStoreFromBytes(&b)
	require.NoError(t, err)
	require.Equal(t, store, decoded)

	// The producer serializes down to its root.
	b.Reset()
	require.NoError(t, producer.Encode(&b))
	decodedProducer, err := NewRevocationProducerFromBytes(&b)
	require.NoError(t, err)
	require.Equal(t, producer, decodedProducer)
}

// TestProducerDeterminism asserts AtIndex is a pure function of the root and
// index, and that distinct indexes yield distinct secrets.
func TestProducerDeterminism(t *testing.T) {
	root := testRoot(t)

	rapid.Check(t, func(t *rapid.T) {
		i := rapid.Uint64Range(0, 1<<20).Draw(t, "i")
		j := rapid.Uint64Range(0, 1<<20).Draw(t, "j")

		producer := NewRevocationProducer(root)

		first, err := producer.AtIndex(i)
		require.NoError(t, err)

		again, err := producer.AtIndex(i)
		require.NoError(t, err)
		require.Equal(t, first, again)

		if i != j {
			other, err := producer.AtIndex(j)
			require.NoError(t, err)
			require.NotEqual(t, first, other)
		}
	})
}
