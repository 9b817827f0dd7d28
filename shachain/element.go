package shachain

import (
	"crypto/sha256"
	"errors"
	"math/bits"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// maxHeight is used to determine the maximum allowable index and the
	// length of the array required to order to derive all previous hashes
	// by index. The entries of this array as also known as buckets.
	maxHeight uint8 = 48
)

// startIndex is the index of first element in the shachain PRF.
var startIndex index = (1 << maxHeight) - 1

// index is a number which identifies the hash number and serves as a way to
// determine the hashing operation required to derive one hash from another.
// index is initialized with the startIndex and decreases down to zero with
// successive derivations.
type index uint64

// newIndex is used to create index instance. The inner operations with index
// implies that index decreasing from some max number to zero, but for
// simplicity and backward compatibility with previous logic it was
// transformed to work in opposite way.
func newIndex(v uint64) index {
	return startIndex - index(v)
}

// trailingZeros counts the number of trailing zero bits of an index, which
// determines the bucket an element is stored in.
func trailingZeros(i index) uint8 {
	zeros := uint8(bits.TrailingZeros64(uint64(i)))
	if zeros > maxHeight {
		zeros = maxHeight
	}

	return zeros
}

// prefix zeroes the lowest position bits of the index, leaving the shared
// prefix that determines derivability.
func prefix(i index, position uint8) uint64 {
	mask := ^(uint64(1)<<position - 1)
	return uint64(i) & mask
}

// bit returns the bit of the index at the given position.
func bit(i index, position uint8) uint8 {
	return uint8((uint64(i) >> position) & 1)
}

// element represents the entity which contains the hash and index
// corresponding to it. An element is the output of the shachain PRF. By
// comparing two indexes we're able to mutate the hash in such way to derive
// another element.
type element struct {
	index index
	hash  chainhash.Hash
}

// ErrNotDerivable signals that the requested element cannot be derived from
// the one at hand because their indexes do not share the required prefix.
var ErrNotDerivable = errors.New("prefixes are different - indexes " +
	"aren't derivable")

// derive computes one shachain element from another by applying a series of
// bit flips and hashing operations based on the starting and ending index.
//
// The index 'to' is derivable from index 'from' iff 'from' is a prefix of
// 'to' with only zeros after the prefix. The bit positions where zeros are
// flipped to ones determine the hashing schedule.
func (e *element) derive(toIndex index) (*element, error) {
	fromIndex := e.index

	positions, err := bitTransformations(fromIndex, toIndex)
	if err != nil {
		return nil, err
	}

	buf := e.hash.CloneBytes()
	for _, position := range positions {
		// Flip the bit and then hash the current state.
		byteNumber := position / 8
		bitNumber := position % 8

		buf[byteNumber] ^= 1 << bitNumber

		h := sha256.Sum256(buf)
		buf = h[:]
	}

	hash, err := chainhash.NewHash(buf)
	if err != nil {
		return nil, err
	}

	return &element{
		index: toIndex,
		hash:  *hash,
	}, nil
}

// isEqual returns true if two elements are identical and false otherwise.
func (e *element) isEqual(e2 *element) bool {
	return e.index == e2.index && e.hash.IsEqual(&e2.hash)
}

// bitTransformations checks that the 'to' index is derivable from the 'from'
// index and returns the ordered positions, from highest to lowest, at which
// zero bits of 'from' must be flipped to reach 'to'.
func bitTransformations(from, to index) ([]uint8, error) {
	var positions []uint8

	if from == to {
		return positions, nil
	}

	zeros := trailingZeros(from)
	if uint64(from) != prefix(to, zeros) {
		return nil, ErrNotDerivable
	}

	// The remaining part of the 'to' index represents the positions which
	// we will then use in order to derive one element from another.
	for position := zeros; position > 0; position-- {
		if bit(to, position-1) == 1 {
			positions = append(positions, position-1)
		}
	}

	return positions, nil
}
