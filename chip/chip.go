// Package chip drives Basic Access Control authentication and data-group
// reads against an ePassport chip over an externally supplied contactless
// transport. The session owns the authenticated-session state machine and
// the BAC key derivation; physical I/O, including secure-messaging APDU
// wrapping after authentication, belongs to the Transport implementation.
//
// A session is inherently sequential per physical tag and is not safe for
// concurrent use. Operations block on chip round-trips; the whole read
// sequence is bounded by the session timeout.
package chip

import (
	"errors"
	"fmt"
)

// Transport is the contactless link to a detected tag. Implementations are
// supplied by the hardware/OS layer.
type Transport interface {
	Connect() error
	Transceive(cmd []byte) ([]byte, error)
	Close() error
}

// State is the session lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
	StateDataGroupsRead
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateDataGroupsRead:
		return "data groups read"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// ErrTimeout is wrapped in a TransportError when the session deadline has
// passed. No retries happen internally; re-tapping the card is a caller
// decision.
var ErrTimeout = errors.New("session deadline exceeded")

// TransportError indicates the physical link failed: connection, timeout,
// or a transceive that never completed. Fatal to the current attempt.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chip: transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthenticationError indicates the chip rejected the derived BAC key:
// wrong MRZ input, or a chip that does not speak BAC.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("chip: authentication failed: %s", e.Reason)
}
