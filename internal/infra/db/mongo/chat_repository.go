package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatherly/internal/domain/chat"
	"gatherly/internal/domain/user"
)

type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection("agg_chat")}
}

func (r *ChatRepository) ByID(ctx context.Context, id chat.ID) (*chat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) Save(ctx context.Context, c *chat.Chat) error {
	doc := newChatDocument(c)
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

// TouchActivity advances last_activity_at with $max so a racing membership
// write is never clobbered by a stale full-document save.
func (r *ChatRepository) TouchActivity(ctx context.Context, id chat.ID, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$max": bson.M{"last_activity_at": at.UTC().UnixMilli()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (r *ChatRepository) ActiveByParticipant(ctx context.Context, userID user.ID) ([]*chat.Chat, error) {
	filter := bson.M{"participants": string(userID), "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "last_activity_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*chat.Chat
	for cur.Next(ctx) {
		var doc chatDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func (r *ChatRepository) ActiveDirectByPair(ctx context.Context, a, b user.ID) (*chat.Chat, error) {
	filter := bson.M{
		"kind":      string(chat.KindDirect),
		"is_active": true,
		"participants": bson.M{
			"$all":  bson.A{string(a), string(b)},
			"$size": 2,
		},
	}
	var doc chatDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) ActiveByEventID(ctx context.Context, eventID string) (*chat.Chat, error) {
	var doc chatDocument
	filter := bson.M{"event_id": eventID, "is_active": true}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

type chatDocument struct {
	ID             string   `bson:"_id"`
	Kind           string   `bson:"kind"`
	Title          string   `bson:"title"`
	CreatorID      string   `bson:"creator_id"`
	EventID        string   `bson:"event_id,omitempty"`
	Participants   []string `bson:"participants"`
	IsActive       bool     `bson:"is_active"`
	CreatedAt      int64    `bson:"created_at"`
	LastActivityAt int64    `bson:"last_activity_at"`
}

func newChatDocument(c *chat.Chat) chatDocument {
	participants := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, string(p))
	}
	return chatDocument{
		ID:             string(c.ID),
		Kind:           string(c.Kind),
		Title:          c.Title,
		CreatorID:      string(c.CreatorID),
		EventID:        c.EventID,
		Participants:   participants,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt.UnixMilli(),
		LastActivityAt: c.LastActivityAt.UnixMilli(),
	}
}

func (d chatDocument) toAggregate() *chat.Chat {
	participants := make([]user.ID, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, user.ID(p))
	}
	return &chat.Chat{
		ID:             chat.ID(d.ID),
		Kind:           chat.Kind(d.Kind),
		Title:          d.Title,
		CreatorID:      user.ID(d.CreatorID),
		EventID:        d.EventID,
		Participants:   participants,
		IsActive:       d.IsActive,
		CreatedAt:      timestampToTime(d.CreatedAt),
		LastActivityAt: timestampToTime(d.LastActivityAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ chat.Repository = (*ChatRepository)(nil)
