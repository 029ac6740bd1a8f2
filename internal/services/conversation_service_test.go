package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-chat/internal/domain/conversation"
	salon_errors "salon-chat/pkg/errors"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer, salon := uuid.New(), uuid.New()

	first, created, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateConcurrentConvergesOnOneRow(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer, salon := uuid.New(), uuid.New()

	const n = 16
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, _, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
			assert.NoError(t, err)
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestGetOrCreateSeparatesContexts(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer, salon := uuid.New(), uuid.New()

	support, _, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)
	booking, _, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextBookingInquiry, uuid.NullUUID{})
	require.NoError(t, err)

	assert.NotEqual(t, support.ID, booking.ID)
}

func TestGetOrCreateAfterArchiveOpensFresh(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer, salon := uuid.New(), uuid.New()

	old, _, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)
	require.NoError(t, svc.Archive(context.Background(), old.ID, customer))

	fresh, created, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, old.ID, fresh.ID)
}

func TestGetOrCreateRejectsNilParties(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())

	_, _, err := svc.GetOrCreate(context.Background(), uuid.Nil, uuid.New(), conversation.ContextSupport, uuid.NullUUID{})
	assert.ErrorIs(t, err, salon_errors.ErrInvalidInput)
}

func TestVerifyParticipant(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer, salon := uuid.New(), uuid.New()
	conv, _, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)

	_, role, err := svc.VerifyParticipant(context.Background(), conv.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleCustomer, role)

	_, role, err = svc.VerifyParticipant(context.Background(), conv.ID, salon)
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleStaff, role)

	_, _, err = svc.VerifyParticipant(context.Background(), conv.ID, uuid.New())
	assert.ErrorIs(t, err, salon_errors.ErrNotParticipant)

	_, _, err = svc.VerifyParticipant(context.Background(), uuid.New(), customer)
	assert.ErrorIs(t, err, salon_errors.ErrNotFound)
}

func TestArchiveDeniedToOutsider(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer, salon := uuid.New(), uuid.New()
	conv, _, err := svc.GetOrCreate(context.Background(), customer, salon, conversation.ContextSupport, uuid.NullUUID{})
	require.NoError(t, err)

	err = svc.Archive(context.Background(), conv.ID, uuid.New())
	assert.ErrorIs(t, err, salon_errors.ErrNotParticipant)
}

func TestListForParticipant(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepo())
	customer := uuid.New()

	for i := 0; i < 3; i++ {
		_, _, err := svc.GetOrCreate(context.Background(), customer, uuid.New(), conversation.ContextSupport, uuid.NullUUID{})
		require.NoError(t, err)
	}

	list, err := svc.ListForParticipant(context.Background(), customer, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = svc.ListForParticipant(context.Background(), uuid.New(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
