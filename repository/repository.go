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

type EventRepository struct {
	Collection *mongo.Collection
}

func NewEventRepository(collection *mongo.Collection) *EventRepository {
	return &EventRepository{Collection: collection}
}

// EventFilter narrows FindEvents. Zero values mean "any".
type EventFilter struct {
	OrganizerID string
	Statuses    []structs.EventStatus
	Tag         string
}

func (repo *EventRepository) FindEventByID(ctx context.Context, eventID string) (*structs.Event, error) {
	var event structs.Event
	err := repo.Collection.FindOne(ctx, bson.M{"eventid": eventID}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (repo *EventRepository) InsertEvent(ctx context.Context, event *structs.Event) error {
	_, err := repo.Collection.InsertOne(ctx, event)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert event %s: %w", event.EventID, apperr.ErrDuplicate)
	}
	return err
}

func (repo *EventRepository) UpdateEvent(ctx context.Context, eventID string, updateFields bson.M) (int64, error) {
	result, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"eventid": eventID},
		bson.M{"$set": updateFields},
	)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

// SetStatus writes status only if the stored status still equals from, so two
// concurrent transitions cannot both succeed.
func (repo *EventRepository) SetStatus(ctx context.Context, eventID string, from, to structs.EventStatus) (bool, error) {
	result, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"eventid": eventID, "status": from},
		bson.M{"$set": bson.M{"status": to}, "$currentDate": bson.M{"updated_at": true}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (repo *EventRepository) SetRegisteredCount(ctx context.Context, eventID string, count int) error {
	_, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"eventid": eventID},
		bson.M{"$set": bson.M{"registered_count": count}},
	)
	return err
}

// DecrementStock takes one unit of merchandise stock. It never restores stock.
func (repo *EventRepository) DecrementStock(ctx context.Context, eventID string) error {
	_, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"eventid": eventID},
		bson.M{"$inc": bson.M{"merchandise_details.stock_quantity": -1}},
	)
	return err
}

func (repo *EventRepository) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := repo.Collection.DeleteOne(ctx, bson.M{"eventid": eventID})
	return err
}

func (repo *EventRepository) FindEvents(ctx context.Context, f EventFilter, skip, limit int64) ([]structs.Event, error) {
	filter := bson.M{}
	if f.OrganizerID != "" {
		filter["organizerid"] = f.OrganizerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.Tag != "" {
		filter["tags"] = f.Tag
	}

	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "created_at", Value: -1}})

	cursor, err := repo.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []structs.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
