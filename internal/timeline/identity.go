package timeline

import "github.com/google/uuid"

// Identity is the two-phase message identity. A message starts out
// Provisional (client-generated, temporary) and becomes Durable
// (server-assigned, permanent) exactly once, at reconciliation. The two
// phases are distinct types rather than one mutated id field so the
// identity history of an entry stays explicit.
type Identity interface {
	isIdentity()
	String() string
}

// Provisional is the client-generated identity of a not-yet-acknowledged
// message.
type Provisional string

func (Provisional) isIdentity()      {}
func (p Provisional) String() string { return string(p) }

// Durable is the server-assigned permanent identity.
type Durable uuid.UUID

func (Durable) isIdentity()      {}
func (d Durable) String() string { return uuid.UUID(d).String() }

// State is the lifecycle of a message from the sending client's point of
// view. Read is terminal; Sent and Delivered can hold indefinitely while
// the peer is offline, which is an unresolved state, not a failure.
type State int

const (
	StatePending State = iota
	StateSent
	StateDelivered
	StateRead
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSent:
		return "sent"
	case StateDelivered:
		return "delivered"
	case StateRead:
		return "read"
	}
	return "unknown"
}
