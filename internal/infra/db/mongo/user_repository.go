package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gatherly/internal/domain/user"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection("agg_user")}
}

func (r *UserRepository) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	doc := userDocument{ID: string(u.ID), Name: u.Name, CreatedAt: u.CreatedAt.UnixMilli()}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

type userDocument struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name"`
	CreatedAt int64  `bson:"created_at"`
}

func (d userDocument) toAggregate() *user.User {
	return &user.User{ID: user.ID(d.ID), Name: d.Name, CreatedAt: timestampToTime(d.CreatedAt)}
}

var _ user.Repository = (*UserRepository)(nil)
