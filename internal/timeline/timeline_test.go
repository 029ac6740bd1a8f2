package timeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
	"salon-chat/internal/events"
)

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func payloadAt(sender uuid.UUID, role conversation.Role, body string, acceptedAt time.Time) events.MessagePayload {
	return events.MessagePayload{
		ID:         uuid.New(),
		SenderID:   sender,
		SenderRole: role,
		Type:       message.TypeText,
		Body:       body,
		AcceptedAt: acceptedAt,
	}
}

func TestAppendLocalRendersPending(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "hello", "")
	require.NotEmpty(t, string(prov))

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Pending())
	assert.Equal(t, StatePending, entries[0].State)
	assert.Equal(t, "hello", entries[0].Body)
	assert.Equal(t, 1, tl.PendingCount())
}

func TestEchoReconcilesInPlace(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "first", "")
	tl.AppendLocal(message.TypeText, "second", "")

	durable := uuid.New()
	applied := tl.ApplyNew(events.MessagePayload{
		ID:            durable,
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "first",
		ProvisionalID: string(prov),
		AcceptedAt:    baseTime,
	})
	require.True(t, applied)

	entries := tl.Entries()
	require.Len(t, entries, 2)
	// The reconciled entry keeps its original position.
	assert.Equal(t, "first", entries[0].Body)
	assert.Equal(t, Durable(durable), entries[0].ID)
	assert.Equal(t, StateSent, entries[0].State)
	assert.Equal(t, baseTime, entries[0].AcceptedAt)
	assert.Equal(t, StatePending, entries[1].State)
	assert.Equal(t, 1, tl.PendingCount())
}

func TestReconnectReplayIsDropped(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	msg := payloadAt(peer, conversation.RoleStaff, "hi there", baseTime)
	require.True(t, tl.ApplyNew(msg))
	require.False(t, tl.ApplyNew(msg))

	assert.Len(t, tl.Entries(), 1)
}

func TestAckAfterEchoIsIgnored(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "hello", "")
	durable := uuid.New()
	tl.ApplyNew(events.MessagePayload{
		ID:            durable,
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "hello",
		ProvisionalID: string(prov),
		AcceptedAt:    baseTime,
	})

	// Ack for an already-reconciled provisional id changes nothing.
	assert.False(t, tl.ApplyAck(events.AckPayload{ProvisionalID: string(prov), MessageID: durable}))
	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateSent, entries[0].State)
}

func TestDuplicateResendReconcilesViaAck(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "retry me", "")
	durable := uuid.New()

	require.True(t, tl.ApplyAck(events.AckPayload{ProvisionalID: string(prov), MessageID: durable}))

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Durable(durable), entries[0].ID)
	assert.Equal(t, StateSent, entries[0].State)
	assert.Equal(t, 0, tl.PendingCount())
}

func TestAckReconciledEntryPromotedByReadBroadcast(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "resend", "")
	require.True(t, tl.ApplyAck(events.AckPayload{ProvisionalID: string(prov), MessageID: uuid.New()}))
	require.Equal(t, StateSent, tl.Entries()[0].State)

	// The ack carried no accepted timestamp, so the read boundary is
	// checked against the local send time.
	tl.ApplyRead(events.ReadPayload{ReaderID: peer, ReadAt: time.Now().Add(time.Hour)})
	assert.Equal(t, StateRead, tl.Entries()[0].State)
}

func TestAckReconciledEntryPromotedByCounterpartReply(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "resend", "")
	require.True(t, tl.ApplyAck(events.AckPayload{ProvisionalID: string(prov), MessageID: uuid.New()}))

	tl.ApplyNew(payloadAt(peer, conversation.RoleStaff, "got it", time.Now().Add(time.Minute)))
	assert.Equal(t, StateRead, tl.Entries()[0].State)
}

func TestReplayBackfillsAcceptedAfterAck(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "resend", "")
	durable := uuid.New()
	require.True(t, tl.ApplyAck(events.AckPayload{ProvisionalID: string(prov), MessageID: durable}))

	_, ok := tl.OldestAccepted()
	require.False(t, ok)

	// A reconnect replay of the same durable id is not appended again but
	// fills in the timestamps the ack path left unknown.
	assert.False(t, tl.ApplyNew(events.MessagePayload{
		ID:            durable,
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "resend",
		ProvisionalID: string(prov),
		AcceptedAt:    baseTime,
	}))

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, baseTime, entries[0].AcceptedAt)

	cursor, ok := tl.OldestAccepted()
	require.True(t, ok)
	assert.Equal(t, baseTime, cursor)
}

func TestHistoryBackfillsAckReconciledEntry(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "resend", "")
	durable := uuid.New()
	require.True(t, tl.ApplyAck(events.AckPayload{ProvisionalID: string(prov), MessageID: durable}))

	readAt := baseTime.Add(time.Minute)
	tl.PrependHistory([]events.MessagePayload{{
		ID:         durable,
		SenderID:   self,
		SenderRole: conversation.RoleCustomer,
		Type:       message.TypeText,
		Body:       "resend",
		AcceptedAt: baseTime,
		ReadAt:     &readAt,
	}})

	entries := tl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, baseTime, entries[0].AcceptedAt)
	assert.Equal(t, StateRead, entries[0].State)
}

func TestCounterpartMessageInfersRead(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "are you there", "")
	tl.ApplyNew(events.MessagePayload{
		ID:            uuid.New(),
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "are you there",
		ProvisionalID: string(prov),
		AcceptedAt:    baseTime,
	})

	// A later reply implies everything before it was seen.
	tl.ApplyNew(payloadAt(peer, conversation.RoleStaff, "yes", baseTime.Add(time.Second)))

	entries := tl.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, StateRead, entries[0].State)
}

func TestReadInferenceSkipsPendingAndLater(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	provOld := tl.AppendLocal(message.TypeText, "old", "")
	tl.ApplyNew(events.MessagePayload{
		ID:            uuid.New(),
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "old",
		ProvisionalID: string(provOld),
		AcceptedAt:    baseTime,
	})
	tl.AppendLocal(message.TypeText, "still pending", "")

	provLater := tl.AppendLocal(message.TypeText, "later", "")
	tl.ApplyNew(events.MessagePayload{
		ID:            uuid.New(),
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "later",
		ProvisionalID: string(provLater),
		AcceptedAt:    baseTime.Add(2 * time.Second),
	})

	tl.ApplyNew(payloadAt(peer, conversation.RoleStaff, "reply", baseTime.Add(time.Second)))

	entries := tl.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, StateRead, entries[0].State)
	assert.Equal(t, StatePending, entries[1].State)
	// Accepted after the reply; nothing proves it was seen.
	assert.Equal(t, StateSent, entries[2].State)
}

func TestApplyReadPromotesUpToBoundary(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "check", "")
	tl.ApplyNew(events.MessagePayload{
		ID:            uuid.New(),
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "check",
		ProvisionalID: string(prov),
		AcceptedAt:    baseTime,
	})

	// Reader caught up exactly at the accepted timestamp.
	tl.ApplyRead(events.ReadPayload{ReaderID: peer, ReadAt: baseTime})
	assert.Equal(t, StateRead, tl.Entries()[0].State)
}

func TestOwnReadBroadcastIgnored(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "check", "")
	tl.ApplyNew(events.MessagePayload{
		ID:            uuid.New(),
		SenderID:      self,
		SenderRole:    conversation.RoleCustomer,
		Type:          message.TypeText,
		Body:          "check",
		ProvisionalID: string(prov),
		AcceptedAt:    baseTime,
	})

	tl.ApplyRead(events.ReadPayload{ReaderID: self, ReadAt: baseTime.Add(time.Hour)})
	assert.Equal(t, StateSent, tl.Entries()[0].State)
}

func TestApplyErrorLeavesEntryPending(t *testing.T) {
	self := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	prov := tl.AppendLocal(message.TypeText, "doomed", "")
	entry, ok := tl.ApplyError(string(prov))
	require.True(t, ok)
	assert.Equal(t, StatePending, entry.State)
	assert.Equal(t, 1, tl.PendingCount())

	_, ok = tl.ApplyError("unknown-provisional")
	assert.False(t, ok)
}

func TestPrependHistoryDeduplicates(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	live := payloadAt(peer, conversation.RoleStaff, "live", baseTime.Add(time.Minute))
	tl.ApplyNew(live)

	older := payloadAt(peer, conversation.RoleStaff, "older", baseTime)
	tl.PrependHistory([]events.MessagePayload{older, live})

	entries := tl.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "older", entries[0].Body)
	assert.Equal(t, "live", entries[1].Body)
}

func TestOldestAcceptedSkipsPending(t *testing.T) {
	self := uuid.New()
	peer := uuid.New()
	tl := New(self, conversation.RoleCustomer)

	_, ok := tl.OldestAccepted()
	assert.False(t, ok)

	tl.AppendLocal(message.TypeText, "pending first", "")
	tl.ApplyNew(payloadAt(peer, conversation.RoleStaff, "durable", baseTime))

	cursor, ok := tl.OldestAccepted()
	require.True(t, ok)
	assert.Equal(t, baseTime, cursor)
}
