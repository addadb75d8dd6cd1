// Package chainerr enumerates the error kinds surfaced across the
// processor/Clique/syncer boundary (spec.md §7). Every kind is a sentinel
// error; callers wrap it with fmt.Errorf("%w: ...", chainerr.ErrX, detail)
// so errors.Is still matches after context is attached.
package chainerr

import "errors"

var (
	// ValidationError-family: any executor mismatch.
	ErrValidation = errors.New("validation error")

	// Clique state-machine violations.
	ErrUnauthorizedSigner  = errors.New("unauthorized signer")
	ErrRecentlySigned      = errors.New("recently signed")
	ErrInvalidVote         = errors.New("invalid vote")
	ErrInvalidVotingChain  = errors.New("invalid voting chain")
	ErrInvalidCheckpointSigners = errors.New("invalid checkpoint signer list")

	// Snapshot rebuild.
	ErrUnknownAncestor = errors.New("unknown ancestor")
	ErrSnapshotLoad    = errors.New("snapshot load failed")
	ErrSnapshotStore   = errors.New("snapshot store failed")

	// Codec / IO wrapping.
	ErrRlpDecode = errors.New("rlp decode failed")
	ErrIO        = errors.New("io error")

	// Peer-side; always recoverable by retrying with another peer.
	ErrNetwork = errors.New("network error")
	ErrTimeout = errors.New("timeout")
)
