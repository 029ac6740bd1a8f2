package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
	"salon-chat/internal/events"
)

// Entry is one message in the rendered view.
type Entry struct {
	ID            Identity
	SenderID      uuid.UUID
	SenderRole    conversation.Role
	Type          message.Type
	Body          string
	AttachmentKey string
	SentAt        time.Time
	// AcceptedAt is zero until a server record carrying the accepted
	// timestamp arrives; an ack reconciles identity without one.
	AcceptedAt time.Time
	State      State
}

func (e Entry) Pending() bool {
	_, ok := e.ID.(Provisional)
	return ok
}

// Timeline is the client-side view of one conversation: optimistic local
// sends, reconciliation of provisional identities against server echoes,
// and deduplication of reconnect replays by durable id. Display order is
// append order; an ack never re-sorts an entry.
type Timeline struct {
	mu sync.Mutex

	selfID   uuid.UUID
	selfRole conversation.Role

	entries       []*Entry
	byDurable     map[uuid.UUID]*Entry
	byProvisional map[string]*Entry // own still-pending sends only
}

func New(selfID uuid.UUID, selfRole conversation.Role) *Timeline {
	return &Timeline{
		selfID:        selfID,
		selfRole:      selfRole,
		byDurable:     make(map[uuid.UUID]*Entry),
		byProvisional: make(map[string]*Entry),
	}
}

// AppendLocal renders an outgoing message immediately in Pending state and
// returns its provisional identity. Nothing blocks on the network.
func (t *Timeline) AppendLocal(typ message.Type, body, attachmentKey string) Provisional {
	provisional := Provisional(uuid.New().String())

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := &Entry{
		ID:            provisional,
		SenderID:      t.selfID,
		SenderRole:    t.selfRole,
		Type:          typ,
		Body:          body,
		AttachmentKey: attachmentKey,
		SentAt:        time.Now(),
		State:         StatePending,
	}
	t.entries = append(t.entries, entry)
	t.byProvisional[string(provisional)] = entry
	return provisional
}

// ApplyNew folds a message:new event into the view. An echo of an own
// pending send reconciles it in place; a durable id already present is a
// reconnect replay, which backfills timestamps the entry still lacks and is
// otherwise dropped; anything else is appended.
func (t *Timeline) ApplyNew(msg events.MessagePayload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.SenderID == t.selfID && msg.ProvisionalID != "" {
		if entry, ok := t.byProvisional[msg.ProvisionalID]; ok {
			t.reconcile(entry, msg.ProvisionalID, msg.ID, msg.AcceptedAt, msg.DeliveredAt)
			return true
		}
	}

	if entry, ok := t.byDurable[msg.ID]; ok {
		t.mergeDurable(entry, msg)
		return false
	}

	entry := &Entry{
		ID:            Durable(msg.ID),
		SenderID:      msg.SenderID,
		SenderRole:    msg.SenderRole,
		Type:          msg.Type,
		Body:          msg.Body,
		AttachmentKey: msg.AttachmentKey,
		AcceptedAt:    msg.AcceptedAt,
		State:         stateFromTimestamps(msg),
	}
	if msg.SentAt != nil {
		entry.SentAt = *msg.SentAt
	}
	t.entries = append(t.entries, entry)
	t.byDurable[msg.ID] = entry

	if msg.SenderRole != t.selfRole {
		t.inferReadBefore(msg.AcceptedAt)
	}
	return true
}

// ApplyAck reconciles an own pending send against a duplicate-resend ack.
// An ack whose provisional id matches nothing pending is ignored; that
// happens when the message:new echo already won the race.
func (t *Timeline) ApplyAck(ack events.AckPayload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.byProvisional[ack.ProvisionalID]
	if !ok {
		return false
	}
	t.reconcile(entry, ack.ProvisionalID, ack.MessageID, time.Time{}, nil)
	return true
}

// ApplyRead folds a message:read broadcast: the reader has now seen
// everything accepted before ReadAt.
func (t *Timeline) ApplyRead(read events.ReadPayload) {
	if read.ReaderID == t.selfID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inferReadBefore(read.ReadAt.Add(time.Nanosecond))
}

// ApplyError marks a rejected send. The entry stays in the view as Pending;
// the caller decides how to surface the failure.
func (t *Timeline) ApplyError(provisionalID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byProvisional[provisionalID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// PrependHistory inserts an older page (chronological order) ahead of the
// current view. Durable ids already present are not inserted again, but
// their records still backfill missing timestamps.
func (t *Timeline) PrependHistory(msgs []events.MessagePayload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []*Entry
	for i := range msgs {
		msg := msgs[i]
		if entry, ok := t.byDurable[msg.ID]; ok {
			t.mergeDurable(entry, msg)
			continue
		}
		entry := &Entry{
			ID:            Durable(msg.ID),
			SenderID:      msg.SenderID,
			SenderRole:    msg.SenderRole,
			Type:          msg.Type,
			Body:          msg.Body,
			AttachmentKey: msg.AttachmentKey,
			AcceptedAt:    msg.AcceptedAt,
			State:         stateFromTimestamps(msg),
		}
		if msg.SentAt != nil {
			entry.SentAt = *msg.SentAt
		}
		fresh = append(fresh, entry)
		t.byDurable[msg.ID] = entry
	}
	if len(fresh) == 0 {
		return
	}
	t.entries = append(fresh, t.entries...)
}

// Entries returns a snapshot of the view in display order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// PendingCount reports how many own sends are still unreconciled.
func (t *Timeline) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byProvisional)
}

// OldestAccepted returns the cursor for fetching older history: the
// accepted timestamp of the oldest reconciled entry currently held.
func (t *Timeline) OldestAccepted() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if !e.AcceptedAt.IsZero() {
			return e.AcceptedAt, true
		}
	}
	return time.Time{}, false
}

// reconcile transitions an own entry from Pending to Sent exactly once,
// preserving its position. Caller holds the lock.
func (t *Timeline) reconcile(entry *Entry, provisionalID string, durableID uuid.UUID, acceptedAt time.Time, deliveredAt *time.Time) {
	entry.ID = Durable(durableID)
	entry.State = StateSent
	if deliveredAt != nil {
		entry.State = StateDelivered
	}
	if !acceptedAt.IsZero() {
		entry.AcceptedAt = acceptedAt
	}
	delete(t.byProvisional, provisionalID)
	t.byDurable[durableID] = entry
}

// mergeDurable folds a replay or history record into an entry already held
// under the same durable id. The ack path reconciles without an accepted
// timestamp, so this is where it gets backfilled. State only moves forward.
// Caller holds the lock.
func (t *Timeline) mergeDurable(entry *Entry, msg events.MessagePayload) {
	if entry.AcceptedAt.IsZero() {
		entry.AcceptedAt = msg.AcceptedAt
	}
	if s := stateFromTimestamps(msg); s > entry.State {
		entry.State = s
	}
}

func stateFromTimestamps(msg events.MessagePayload) State {
	switch {
	case msg.ReadAt != nil:
		return StateRead
	case msg.DeliveredAt != nil:
		return StateDelivered
	default:
		return StateSent
	}
}
