package signaling

import "errors"

var (
	ErrAlreadyJoined   = errors.New("peer already in room")
	ErrAlreadyInRoom   = errors.New("peer already in another room")
	ErrNotJoined       = errors.New("peer not in room")
	ErrMalformed       = errors.New("malformed message")
	ErrUnknownKind     = errors.New("unknown message type")
	ErrPeerUnreachable = errors.New("peer unreachable")
)

// reason turns an error into a metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrAlreadyInRoom):
		return "already_in_room"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_type"
	default:
		return "other"
	}
}
