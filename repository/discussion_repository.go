package repository

import (
	"context"
	"errors"
	"time"

	"campusevents/structs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DiscussionRepository struct {
	Collection *mongo.Collection
}

func NewDiscussionRepository(collection *mongo.Collection) *DiscussionRepository {
	return &DiscussionRepository{Collection: collection}
}

func (repo *DiscussionRepository) InsertMessage(ctx context.Context, msg *structs.DiscussionMessage) error {
	_, err := repo.Collection.InsertOne(ctx, msg)
	return err
}

func (repo *DiscussionRepository) FindMessageByID(ctx context.Context, messageID string) (*structs.DiscussionMessage, error) {
	var msg structs.DiscussionMessage
	err := repo.Collection.FindOne(ctx, bson.M{"messageid": messageID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListByEvent returns every message of the event, oldest first.
func (repo *DiscussionRepository) ListByEvent(ctx context.Context, eventID string) ([]structs.DiscussionMessage, error) {
	cursor, err := repo.Collection.Find(ctx, bson.M{"eventid": eventID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []structs.DiscussionMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (repo *DiscussionRepository) UpdateMessage(ctx context.Context, messageID string, fields bson.M) error {
	_, err := repo.Collection.UpdateOne(ctx, bson.M{"messageid": messageID}, bson.M{"$set": fields})
	return err
}

// ToggleReaction removes userID's emoji reaction if present, else adds it.
// Each step is a single conditional update, so concurrent reactions by
// different users never overwrite each other. It reports whether the
// reaction was added.
func (repo *DiscussionRepository) ToggleReaction(ctx context.Context, messageID, userID, emoji string, at time.Time) (bool, error) {
	match := bson.M{"userid": userID, "emoji": emoji}

	result, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"messageid": messageID, "reactions": bson.M{"$elemMatch": match}},
		bson.M{"$pull": bson.M{"reactions": match}, "$set": bson.M{"updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	if result.ModifiedCount > 0 {
		return false, nil
	}

	_, err = repo.Collection.UpdateOne(
		ctx,
		bson.M{"messageid": messageID, "reactions": bson.M{"$not": bson.M{"$elemMatch": match}}},
		bson.M{"$push": bson.M{"reactions": structs.Reaction{Emoji: emoji, UserID: userID}}, "$set": bson.M{"updated_at": at}},
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (repo *DiscussionRepository) CountSince(ctx context.Context, eventID string, since time.Time) (int64, error) {
	return repo.Collection.CountDocuments(ctx, bson.M{
		"eventid":    eventID,
		"is_deleted": false,
		"created_at": bson.M{"$gt": since},
	})
}
