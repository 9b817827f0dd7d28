package shachain

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Producer is an interface which serves as an abstraction over the data
// structure responsible for the efficient generation of the secrets by given
// index. The generation of secrets should be made in such way that secret
// store might efficiently store newly generated secrets.
type Producer interface {
	// AtIndex produces a secret by evaluating using the initial seed and a
	// particular index.
	AtIndex(uint64) (*chainhash.Hash, error)

	// Encode writes a binary serialization of the producer's root to the
	// passed io.Writer.
	Encode(io.Writer) error
}

// RevocationProducer is an implementation of the Producer interface using the
// shachain PRF described in BOLT-03. Starting from a single 32-byte root,
// the producer can derive the per-commitment secret at any index, in an
// order which lets the counterparty store them compactly.
type RevocationProducer struct {
	// root is the element from which we may derive all the secrets which
	// lie below it in the shachain structure.
	root element
}

// A compile time check to ensure RevocationProducer implements the Producer
// interface.
var _ Producer = (*RevocationProducer)(nil)

// NewRevocationProducer creates a new instance of the shachain producer given
// the root hash of the chain.
func NewRevocationProducer(root chainhash.Hash) *RevocationProducer {
	return &RevocationProducer{
		root: element{
			// The root sits at index zero, from which every other
			// index is derivable.
			index: 0,
			hash:  root,
		},
	}
}

// NewRevocationProducerFromBytes deserializes an instance of a
// RevocationProducer encoded in the passed io.Reader, returning a fully
// initialized instance of a RevocationProducer.
func NewRevocationProducerFromBytes(r io.Reader) (*RevocationProducer, error) {
	var root chainhash.Hash
	if _, err := io.ReadFull(r, root[:]); err != nil {
		return nil, err
	}

	return NewRevocationProducer(root), nil
}

// AtIndex produces a secret by evaluating using the initial seed and a
// particular index.
//
// NOTE: This function is part of the Producer interface.
func (p *RevocationProducer) AtIndex(v uint64) (*chainhash.Hash, error) {
	ind := newIndex(v)

	element, err := p.root.derive(ind)
	if err != nil {
		return nil, err
	}

	return &element.hash, nil
}

// Encode writes a binary serialization of the producer's root to the passed
// io.Writer.
//
// NOTE: This function is part of the Producer interface.
func (p *RevocationProducer) Encode(w io.Writer) error {
	_, err := w.Write(p.root.hash[:])
	return err
}
