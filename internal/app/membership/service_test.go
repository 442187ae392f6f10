package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatherly/internal/app/membership"
	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/shared/events"
	"gatherly/internal/domain/user"
	"gatherly/internal/infra/storage/memory"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type captureBus struct {
	published []events.DomainEvent
}

func (b *captureBus) Publish(_ context.Context, evts ...events.DomainEvent) {
	b.published = append(b.published, evts...)
}

func (b *captureBus) names() []string {
	out := make([]string, 0, len(b.published))
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

func newService(t *testing.T, userIDs ...user.ID) (*membership.Service, *captureBus) {
	t.Helper()
	users := memory.NewUserRepository()
	for _, id := range userIDs {
		u, err := user.New(id, string(id), testNow)
		require.NoError(t, err)
		require.NoError(t, users.Save(context.Background(), u))
	}
	bus := &captureBus{}
	svc := &membership.Service{
		Chats:    memory.NewChatRepository(),
		Messages: memory.NewMessageRepository(),
		Users:    users,
		Bus:      bus,
		Now:      func() time.Time { return testNow },
	}
	return svc, bus
}

func TestCreateDirectChatIdempotentByPair(t *testing.T) {
	req := require.New(t)
	svc, bus := newService(t, "alice", "bob")
	ctx := context.Background()

	first, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindDirect, CreatorID: "alice", ParticipantIDs: []user.ID{"bob"},
	})
	req.NoError(err)
	req.Equal([]string{"chat.created"}, bus.names())

	// Creating from the other side of the pair returns the same chat.
	second, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindDirect, CreatorID: "bob", ParticipantIDs: []user.ID{"alice"},
	})
	req.NoError(err)
	req.Equal(first.ID, second.ID)
	req.Len(bus.published, 1)
}

func TestCreateDirectChatRejectsUnknownUser(t *testing.T) {
	svc, _ := newService(t, "alice")
	_, err := svc.CreateChat(context.Background(), membership.CreateChatParams{
		Kind: chat.KindDirect, CreatorID: "alice", ParticipantIDs: []user.ID{"ghost"},
	})
	require.ErrorIs(t, err, chat.ErrNotFound)
}

func TestCreateDirectChatRejectsWrongPeerCount(t *testing.T) {
	svc, _ := newService(t, "alice", "bob", "carol")
	_, err := svc.CreateChat(context.Background(), membership.CreateChatParams{
		Kind: chat.KindDirect, CreatorID: "alice", ParticipantIDs: []user.ID{"bob", "carol"},
	})
	require.ErrorIs(t, err, chat.ErrInvalidMembership)
}

func TestCreateEventChatIdempotentByEventID(t *testing.T) {
	req := require.New(t)
	svc, _ := newService(t, "alice")
	ctx := context.Background()

	first, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindEvent, CreatorID: "alice", EventID: "evt-9", Title: "picnic",
	})
	req.NoError(err)

	second, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindEvent, CreatorID: "alice", EventID: "evt-9",
	})
	req.NoError(err)
	req.Equal(first.ID, second.ID)
}

func TestEventChatAddsAreCreatorOnly(t *testing.T) {
	req := require.New(t)
	svc, _ := newService(t, "host", "guest", "mallory")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindEvent, CreatorID: "host", EventID: "evt-9", Title: "picnic",
	})
	req.NoError(err)

	// Membership mirrors the external roster: an authenticated outsider
	// cannot add themself.
	_, err = svc.AddParticipants(ctx, c.ID, "mallory", []user.ID{"mallory"})
	req.ErrorIs(err, chat.ErrForbidden)

	got, err := svc.ValidateAccess(ctx, c.ID, "host")
	req.NoError(err)
	req.False(got.HasParticipant("mallory"))

	// The creator, as which the roster bridge acts, may add.
	updated, err := svc.AddParticipants(ctx, c.ID, "host", []user.ID{"guest"})
	req.NoError(err)
	req.True(updated.HasParticipant("guest"))
}

func TestGroupChatLifecycle(t *testing.T) {
	req := require.New(t)
	svc, bus := newService(t, "alice", "bob", "carol", "dave")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindGroup, CreatorID: "alice",
		ParticipantIDs: []user.ID{"bob", "carol"}, Title: "trip",
	})
	req.NoError(err)
	req.Len(c.Participants, 3)

	// Only the creator may add; the union publishes just the delta.
	_, err = svc.AddParticipants(ctx, c.ID, "bob", []user.ID{"dave"})
	req.ErrorIs(err, chat.ErrForbidden)

	updated, err := svc.AddParticipants(ctx, c.ID, "alice", []user.ID{"carol", "dave"})
	req.NoError(err)
	req.Len(updated.Participants, 4)
	last, ok := bus.published[len(bus.published)-1].(chat.ParticipantsChanged)
	req.True(ok)
	req.Equal([]user.ID{"dave"}, last.Delta)

	// Adding only existing members saves and publishes nothing.
	before := len(bus.published)
	_, err = svc.AddParticipants(ctx, c.ID, "alice", []user.ID{"dave"})
	req.NoError(err)
	req.Len(bus.published, before)

	// Self-leave is allowed, removing someone else is creator-only.
	req.ErrorIs(svc.RemoveParticipant(ctx, c.ID, "carol", "bob"), chat.ErrForbidden)
	req.NoError(svc.RemoveParticipant(ctx, c.ID, "bob", "bob"))
	req.NoError(svc.RemoveParticipant(ctx, c.ID, "carol", "alice"))
}

func TestValidateAccess(t *testing.T) {
	req := require.New(t)
	svc, _ := newService(t, "alice", "bob", "carol")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindDirect, CreatorID: "alice", ParticipantIDs: []user.ID{"bob"},
	})
	req.NoError(err)

	_, err = svc.ValidateAccess(ctx, c.ID, "alice")
	req.NoError(err)

	_, err = svc.ValidateAccess(ctx, c.ID, "carol")
	req.ErrorIs(err, chat.ErrForbidden)

	_, err = svc.ValidateAccess(ctx, "missing", "alice")
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestValidateAccessHidesInactiveChats(t *testing.T) {
	req := require.New(t)
	svc, _ := newService(t, "alice", "bob", "carol")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindGroup, CreatorID: "alice",
		ParticipantIDs: []user.ID{"bob", "carol"}, Title: "trip",
	})
	req.NoError(err)

	req.ErrorIs(svc.Deactivate(ctx, c.ID, "bob"), chat.ErrForbidden)
	req.NoError(svc.Deactivate(ctx, c.ID, "alice"))

	// Inactive and missing are indistinguishable to the caller.
	_, err = svc.ValidateAccess(ctx, c.ID, "alice")
	req.ErrorIs(err, chat.ErrNotFound)

	_, err = svc.AddParticipants(ctx, c.ID, "alice", []user.ID{"carol"})
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestListChatsReportsUnreadCounts(t *testing.T) {
	req := require.New(t)
	svc, _ := newService(t, "alice", "bob")
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, membership.CreateChatParams{
		Kind: chat.KindDirect, CreatorID: "alice", ParticipantIDs: []user.ID{"bob"},
	})
	req.NoError(err)

	m, err := chat.NewMessage(chat.MessageParams{
		ID: "m1", ChatID: c.ID, SenderID: "alice",
		Kind: chat.MessageText, Payload: chat.Payload{Text: "hi"}, CreatedAt: testNow,
	})
	req.NoError(err)
	req.NoError(svc.Messages.Save(ctx, m))

	fromBob, err := svc.ListChats(ctx, "bob")
	req.NoError(err)
	req.Len(fromBob, 1)
	req.Equal(1, fromBob[0].UnreadCount)

	// The sender's own message never counts as unread.
	fromAlice, err := svc.ListChats(ctx, "alice")
	req.NoError(err)
	req.Equal(0, fromAlice[0].UnreadCount)
}
