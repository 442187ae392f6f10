package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatherly/internal/app/bridge"
	"gatherly/internal/app/membership"
	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/user"
	"gatherly/internal/infra/storage/memory"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newBridge(t *testing.T, userIDs ...user.ID) (*bridge.Bridge, *membership.Service) {
	t.Helper()
	users := memory.NewUserRepository()
	for _, id := range userIDs {
		u, err := user.New(id, string(id), testNow)
		require.NoError(t, err)
		require.NoError(t, users.Save(context.Background(), u))
	}
	svc := &membership.Service{
		Chats:    memory.NewChatRepository(),
		Messages: memory.NewMessageRepository(),
		Users:    users,
		Now:      func() time.Time { return testNow },
	}
	return &bridge.Bridge{Membership: svc}, svc
}

func TestHandleCreatedIsIdempotent(t *testing.T) {
	req := require.New(t)
	b, svc := newBridge(t, "host")
	ctx := context.Background()

	evt := bridge.ExternalEvent{EventID: "evt-9", Title: "picnic", CreatorID: "host"}
	req.NoError(b.HandleCreated(ctx, evt))
	first, err := svc.ActiveEventChat(ctx, "evt-9")
	req.NoError(err)

	// Redelivery leaves the original chat in place.
	req.NoError(b.HandleCreated(ctx, evt))
	second, err := svc.ActiveEventChat(ctx, "evt-9")
	req.NoError(err)
	req.Equal(first.ID, second.ID)
}

func TestHandleCreatedRejectsIncompletePayload(t *testing.T) {
	b, _ := newBridge(t, "host")
	err := b.HandleCreated(context.Background(), bridge.ExternalEvent{Title: "no ids"})
	require.ErrorIs(t, err, chat.ErrInvalidMembership)
}

func TestHandleUpdatedRenames(t *testing.T) {
	req := require.New(t)
	b, svc := newBridge(t, "host")
	ctx := context.Background()

	req.NoError(b.HandleCreated(ctx, bridge.ExternalEvent{EventID: "evt-9", Title: "picnic", CreatorID: "host"}))
	req.NoError(b.HandleUpdated(ctx, bridge.ExternalEvent{EventID: "evt-9", Title: "picnic v2"}))

	c, err := svc.ActiveEventChat(ctx, "evt-9")
	req.NoError(err)
	req.Equal("picnic v2", c.Title)

	// Updates for unknown events are absorbed.
	req.NoError(b.HandleUpdated(ctx, bridge.ExternalEvent{EventID: "evt-ghost", Title: "x"}))
}

func TestHandleDeletedDeactivates(t *testing.T) {
	req := require.New(t)
	b, svc := newBridge(t, "host")
	ctx := context.Background()

	req.NoError(b.HandleCreated(ctx, bridge.ExternalEvent{EventID: "evt-9", Title: "picnic", CreatorID: "host"}))
	req.NoError(b.HandleDeleted(ctx, bridge.ExternalEvent{EventID: "evt-9"}))

	_, err := svc.ActiveEventChat(ctx, "evt-9")
	req.ErrorIs(err, chat.ErrNotFound)

	// Redelivered delete is a no-op once the chat is inactive.
	req.NoError(b.HandleDeleted(ctx, bridge.ExternalEvent{EventID: "evt-9"}))
}

func TestMembershipChangedMirrorsRoster(t *testing.T) {
	req := require.New(t)
	b, svc := newBridge(t, "host", "guest", "lurker")
	ctx := context.Background()

	req.NoError(b.HandleCreated(ctx, bridge.ExternalEvent{EventID: "evt-9", Title: "picnic", CreatorID: "host"}))

	// GOING joins the chat, PENDING does not.
	req.NoError(b.HandleMembershipChanged(ctx, bridge.MembershipChange{EventID: "evt-9", UserID: "guest", Status: "GOING"}))
	req.NoError(b.HandleMembershipChanged(ctx, bridge.MembershipChange{EventID: "evt-9", UserID: "lurker", Status: "PENDING"}))

	c, err := svc.ActiveEventChat(ctx, "evt-9")
	req.NoError(err)
	req.True(c.HasParticipant("guest"))
	req.False(c.HasParticipant("lurker"))

	// Approval joins too, and a duplicate join is absorbed.
	req.NoError(b.HandleMembershipChanged(ctx, bridge.MembershipChange{EventID: "evt-9", UserID: "guest", Status: "approved"}))

	// LEFT removes as a self-leave; repeating it is a no-op.
	req.NoError(b.HandleMembershipChanged(ctx, bridge.MembershipChange{EventID: "evt-9", UserID: "guest", Status: "LEFT"}))
	c, err = svc.ActiveEventChat(ctx, "evt-9")
	req.NoError(err)
	req.False(c.HasParticipant("guest"))
	req.NoError(b.HandleMembershipChanged(ctx, bridge.MembershipChange{EventID: "evt-9", UserID: "guest", Status: "LEFT"}))

	// Changes for unknown events are absorbed.
	req.NoError(b.HandleMembershipChanged(ctx, bridge.MembershipChange{EventID: "evt-ghost", UserID: "guest", Status: "GOING"}))
}
