package chat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gatherly/internal/domain/chat"
)

func newTextMessage(t *testing.T) *chat.Message {
	t.Helper()
	m, err := chat.NewMessage(chat.MessageParams{
		ID: "m1", ChatID: "c1", SenderID: "alice",
		Kind:      chat.MessageText,
		Payload:   chat.Payload{Text: "hello"},
		CreatedAt: testNow,
	})
	require.NoError(t, err)
	m.FlushEvents()
	return m
}

func TestNewMessageValidatesPayloadByKind(t *testing.T) {
	cases := []struct {
		name    string
		kind    chat.MessageKind
		payload chat.Payload
		field   string
	}{
		{"text empty", chat.MessageText, chat.Payload{Text: "   "}, "text"},
		{"image without media", chat.MessageImage, chat.Payload{}, "mediaRef"},
		{"latitude out of range", chat.MessageLocation, chat.Payload{Latitude: 200, Longitude: 5}, "latitude"},
		{"longitude out of range", chat.MessageLocation, chat.Payload{Latitude: 45, Longitude: -300}, "longitude"},
		{"unknown kind", chat.MessageKind("VOICE"), chat.Payload{}, "kind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			_, err := chat.NewMessage(chat.MessageParams{
				ID: "m1", ChatID: "c1", SenderID: "alice",
				Kind: tc.kind, Payload: tc.payload, CreatedAt: testNow,
			})
			req.ErrorIs(err, chat.ErrInvalidPayload)
			var payloadErr *chat.PayloadError
			req.ErrorAs(err, &payloadErr)
			req.Equal(tc.field, payloadErr.Field)
		})
	}
}

func TestNewMessageStartsSent(t *testing.T) {
	req := require.New(t)
	m, err := chat.NewMessage(chat.MessageParams{
		ID: "m1", ChatID: "c1", SenderID: "alice",
		Kind:      chat.MessageLocation,
		Payload:   chat.Payload{Latitude: 48.85, Longitude: 2.35},
		CreatedAt: testNow,
	})
	req.NoError(err)
	req.Equal(chat.StatusSent, m.Status)

	evts := m.FlushEvents()
	req.Len(evts, 1)
	req.Equal("message.created", evts[0].EventName())
}

func TestAdvanceStatusMonotone(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	changed, err := m.AdvanceStatus(chat.StatusDelivered, testNow)
	req.NoError(err)
	req.True(changed)

	changed, err = m.AdvanceStatus(chat.StatusRead, testNow)
	req.NoError(err)
	req.True(changed)

	// Downgrade is rejected and leaves the record untouched.
	_, err = m.AdvanceStatus(chat.StatusDelivered, testNow)
	req.ErrorIs(err, chat.ErrInvalidTransition)
	req.Equal(chat.StatusRead, m.Status)
}

func TestAdvanceStatusEqualIsNoOp(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	changed, err := m.AdvanceStatus(chat.StatusSent, testNow)
	req.NoError(err)
	req.False(changed)
	req.Empty(m.FlushEvents())
}

func TestAdvanceStatusRejectsUnknown(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	// A status outside the state machine is a malformed request, not a
	// transition conflict.
	_, err := m.AdvanceStatus(chat.Status("ARCHIVED"), testNow)
	req.ErrorIs(err, chat.ErrInvalidPayload)
	var pe *chat.PayloadError
	req.ErrorAs(err, &pe)
	req.Equal("status", pe.Field)
}

func TestAdvanceStatusSkipsIntermediate(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	changed, err := m.AdvanceStatus(chat.StatusRead, testNow)
	req.NoError(err)
	req.True(changed)
	req.Equal(chat.StatusRead, m.Status)
}

func TestEditContent(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	text := "hello again"
	req.NoError(m.EditContent(&text, nil, testNow))
	req.True(m.IsEdited)
	req.Equal("hello again", m.Payload.Text)

	evts := m.FlushEvents()
	req.Len(evts, 1)
	req.Equal("message.updated", evts[0].EventName())
}

func TestEditContentRevalidates(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	empty := "  "
	err := m.EditContent(&empty, nil, testNow)
	req.ErrorIs(err, chat.ErrInvalidPayload)
	req.Equal("hello", m.Payload.Text)
	req.False(m.IsEdited)
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	req := require.New(t)
	m := newTextMessage(t)

	m.SoftDelete(testNow)
	req.True(m.IsDeleted())
	req.Len(m.FlushEvents(), 1)

	m.SoftDelete(testNow.Add(1))
	req.Equal(testNow, *m.DeletedAt)
	req.Empty(m.FlushEvents())
}
