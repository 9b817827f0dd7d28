//go:build dev
// +build dev

package feature

import "github.com/lightningnetwork/lnchannel/lnwire"

// ExperimentalProtocol is a sub-config that houses any experimental protocol
// features that also require a build-tag to activate.
type ExperimentalProtocol struct {
	// Trampoline advertises support for trampoline routed payments.
	Trampoline bool `long:"trampoline" description:"allows relaying of payments through trampoline nodes"`
}

// ExperimentalFeatureBits returns the set of protocol feature bits that
// should be advertised in addition to the standard set.
func (p ExperimentalProtocol) ExperimentalFeatureBits() []lnwire.FeatureBit {
	if !p.Trampoline {
		return nil
	}

	return []lnwire.FeatureBit{lnwire.TrampolineRoutingOptional}
}
