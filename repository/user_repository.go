package repository

import (
	"context"
	"errors"
	"fmt"

	"campusevents/apperr"
	"campusevents/structs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	Collection *mongo.Collection
}

func NewUserRepository(collection *mongo.Collection) *UserRepository {
	return &UserRepository{Collection: collection}
}

func (repo *UserRepository) findOne(ctx context.Context, filter bson.M) (*structs.User, error) {
	var user structs.User
	err := repo.Collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // User not found
		}
		return nil, err
	}
	return &user, nil
}

func (repo *UserRepository) FindUserByID(ctx context.Context, userID string) (*structs.User, error) {
	return repo.findOne(ctx, bson.M{"userid": userID})
}

func (repo *UserRepository) FindUserByEmail(ctx context.Context, email string) (*structs.User, error) {
	return repo.findOne(ctx, bson.M{"email": email})
}

func (repo *UserRepository) InsertUser(ctx context.Context, user *structs.User) error {
	_, err := repo.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert user %s: %w", user.Email, apperr.ErrDuplicate)
	}
	return err
}

// FindSummaries loads author projections for the given ids.
func (repo *UserRepository) FindSummaries(ctx context.Context, userIDs []string) (map[string]structs.UserSummary, error) {
	out := make(map[string]structs.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	projection := bson.M{"userid": 1, "first_name": 1, "last_name": 1, "role": 1}
	cursor, err := repo.Collection.Find(ctx, bson.M{"userid": bson.M{"$in": userIDs}}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var s structs.UserSummary
		if err := cursor.Decode(&s); err != nil {
			return nil, err
		}
		out[s.UserID] = s
	}
	return out, cursor.Err()
}
