package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("agg_message")}
}

func (r *MessageRepository) ByID(ctx context.Context, id chat.MessageID) (*chat.Message, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *MessageRepository) Save(ctx context.Context, m *chat.Message) error {
	doc := newMessageDocument(m)
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MessageRepository) ListByChat(ctx context.Context, chatID chat.ID, limit, offset int) ([]*chat.Message, error) {
	filter := bson.M{"chat_id": string(chatID), "deleted_at": nil}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*chat.Message
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func (r *MessageRepository) UnreadCount(ctx context.Context, chatID chat.ID, userID user.ID) (int, error) {
	filter := bson.M{
		"chat_id":    string(chatID),
		"deleted_at": nil,
		"sender_id":  bson.M{"$ne": string(userID)},
		"status":     bson.M{"$ne": string(chat.StatusRead)},
	}
	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type messageDocument struct {
	ID        string  `bson:"_id"`
	ChatID    string  `bson:"chat_id"`
	SenderID  string  `bson:"sender_id"`
	Kind      string  `bson:"kind"`
	Text      string  `bson:"text,omitempty"`
	MediaRef  string  `bson:"media_ref,omitempty"`
	Latitude  float64 `bson:"latitude,omitempty"`
	Longitude float64 `bson:"longitude,omitempty"`
	Status    string  `bson:"status"`
	IsEdited  bool    `bson:"is_edited"`
	DeletedAt *int64  `bson:"deleted_at"`
	CreatedAt int64   `bson:"created_at"`
	UpdatedAt int64   `bson:"updated_at"`
}

func newMessageDocument(m *chat.Message) messageDocument {
	doc := messageDocument{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  string(m.SenderID),
		Kind:      string(m.Kind),
		Text:      m.Payload.Text,
		MediaRef:  m.Payload.MediaRef,
		Latitude:  m.Payload.Latitude,
		Longitude: m.Payload.Longitude,
		Status:    string(m.Status),
		IsEdited:  m.IsEdited,
		CreatedAt: m.CreatedAt.UnixMilli(),
		UpdatedAt: m.UpdatedAt.UnixMilli(),
	}
	if m.DeletedAt != nil {
		ms := m.DeletedAt.UnixMilli()
		doc.DeletedAt = &ms
	}
	return doc
}

func (d messageDocument) toAggregate() *chat.Message {
	m := &chat.Message{
		ID:       chat.MessageID(d.ID),
		ChatID:   chat.ID(d.ChatID),
		SenderID: user.ID(d.SenderID),
		Kind:     chat.MessageKind(d.Kind),
		Payload: chat.Payload{
			Text:      d.Text,
			MediaRef:  d.MediaRef,
			Latitude:  d.Latitude,
			Longitude: d.Longitude,
		},
		Status:    chat.Status(d.Status),
		IsEdited:  d.IsEdited,
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
	if d.DeletedAt != nil {
		t := timestampToTime(*d.DeletedAt)
		m.DeletedAt = &t
	}
	return m
}

var _ chat.MessageRepository = (*MessageRepository)(nil)
