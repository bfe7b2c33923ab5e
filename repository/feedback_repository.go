package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusevents/apperr"
	"campusevents/structs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type FeedbackRepository struct {
	Collection *mongo.Collection
}

func NewFeedbackRepository(collection *mongo.Collection) *FeedbackRepository {
	return &FeedbackRepository{Collection: collection}
}

func (repo *FeedbackRepository) FindFeedback(ctx context.Context, eventID, userID string) (*structs.Feedback, error) {
	var fb structs.Feedback
	err := repo.Collection.FindOne(ctx, bson.M{"eventid": eventID, "userid": userID}).Decode(&fb)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &fb, nil
}

func (repo *FeedbackRepository) InsertFeedback(ctx context.Context, fb *structs.Feedback) error {
	_, err := repo.Collection.InsertOne(ctx, fb)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert feedback for %s/%s: %w", fb.EventID, fb.UserID, apperr.ErrDuplicate)
	}
	return err
}

func (repo *FeedbackRepository) UpdateFeedback(ctx context.Context, feedbackID string, rating int, comment string, at time.Time) error {
	_, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"feedbackid": feedbackID},
		bson.M{"$set": bson.M{"rating": rating, "comment": comment, "updated_at": at}},
	)
	return err
}

// ListFeedback returns the event's feedback, newest first. rating 0 means all ratings.
func (repo *FeedbackRepository) ListFeedback(ctx context.Context, eventID string, rating int) ([]structs.Feedback, error) {
	filter := bson.M{"eventid": eventID}
	if rating != 0 {
		filter["rating"] = rating
	}
	cursor, err := repo.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	feedbacks := []structs.Feedback{}
	if err := cursor.All(ctx, &feedbacks); err != nil {
		return nil, err
	}
	return feedbacks, nil
}
