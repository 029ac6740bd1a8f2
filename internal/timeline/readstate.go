package timeline

import "time"

// Read state for own outgoing messages is computed by inference: a message
// counts as read once any counterpart message with a later accepted
// timestamp exists, because a reply implies acknowledgment of everything
// sent before it. This deliberately cannot distinguish "peer saw message M"
// from "peer sent any later message"; per-message receipts are not modeled.

// inferReadBefore promotes own reconciled entries accepted strictly before
// the boundary to Read. Pending entries are untouched; Read is terminal.
// An entry reconciled through an ack has no accepted timestamp yet; its
// local send time bounds the true one from below, so the boundary is
// compared against that instead. Caller holds the lock.
func (t *Timeline) inferReadBefore(boundary time.Time) {
	for _, e := range t.entries {
		if e.SenderID != t.selfID {
			continue
		}
		if e.State != StateSent && e.State != StateDelivered {
			continue
		}
		if e.AcceptedAt.IsZero() {
			if !e.SentAt.Before(boundary) {
				continue
			}
		} else if !e.AcceptedAt.Before(boundary) {
			continue
		}
		e.State = StateRead
	}
}
