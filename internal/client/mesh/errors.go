package mesh

import (
	"errors"
	"fmt"

	"github.com/BioHazard786/warpmesh/internal/protocol"
)

var (
	ErrUnknownPeer       = errors.New("unknown peer")
	ErrUnexpectedSignal  = errors.New("unexpected session description type")
	ErrNoOpenChannels    = errors.New("no peer is connected")
	ErrClosed            = errors.New("mesh closed")
	ErrUnexpectedMessage = errors.New("unexpected data channel message")
)

// Error describes a failed step with one peer.
type Error struct {
	Op      string
	Peer    protocol.PeerID
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Peer != "" {
		msg += " " + e.Peer.Short()
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", msg, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, peer protocol.PeerID, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}

func wrapError(op string, peer protocol.PeerID, err error, details string) *Error {
	return &Error{Op: op, Peer: peer, Err: err, Details: details}
}
