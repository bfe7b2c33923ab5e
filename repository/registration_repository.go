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

type RegistrationRepository struct {
	Collection *mongo.Collection
}

func NewRegistrationRepository(collection *mongo.Collection) *RegistrationRepository {
	return &RegistrationRepository{Collection: collection}
}

func (repo *RegistrationRepository) findOne(ctx context.Context, filter bson.M) (*structs.Registration, error) {
	var reg structs.Registration
	err := repo.Collection.FindOne(ctx, filter).Decode(&reg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

func (repo *RegistrationRepository) FindRegistration(ctx context.Context, eventID, userID string) (*structs.Registration, error) {
	return repo.findOne(ctx, bson.M{"eventid": eventID, "userid": userID})
}

func (repo *RegistrationRepository) FindByID(ctx context.Context, registrationID string) (*structs.Registration, error) {
	return repo.findOne(ctx, bson.M{"registrationid": registrationID})
}

func (repo *RegistrationRepository) FindByTicketID(ctx context.Context, ticketID string) (*structs.Registration, error) {
	return repo.findOne(ctx, bson.M{"ticketid": ticketID})
}

// InsertRegistration reports apperr.ErrDuplicate when the (user, event) index rejects the write.
func (repo *RegistrationRepository) InsertRegistration(ctx context.Context, reg *structs.Registration) error {
	_, err := repo.Collection.InsertOne(ctx, reg)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert registration for %s/%s: %w", reg.EventID, reg.UserID, apperr.ErrDuplicate)
	}
	return err
}

func (repo *RegistrationRepository) CountByEvent(ctx context.Context, eventID string) (int64, error) {
	return repo.Collection.CountDocuments(ctx, bson.M{"eventid": eventID})
}

func (repo *RegistrationRepository) CountByEventAndUser(ctx context.Context, eventID, userID string) (int64, error) {
	return repo.Collection.CountDocuments(ctx, bson.M{"eventid": eventID, "userid": userID})
}

func (repo *RegistrationRepository) DeleteRegistration(ctx context.Context, registrationID string) (int64, error) {
	result, err := repo.Collection.DeleteOne(ctx, bson.M{"registrationid": registrationID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (repo *RegistrationRepository) DeleteByEvent(ctx context.Context, eventID string) (int64, error) {
	result, err := repo.Collection.DeleteMany(ctx, bson.M{"eventid": eventID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// RecordAttendance sets the attendance state and appends entry to the audit log.
func (repo *RegistrationRepository) RecordAttendance(ctx context.Context, registrationID string, attended bool, method string, entry structs.AttendanceAudit) error {
	set := bson.M{
		"attended":          attended,
		"attendance_method": method,
		"updated_at":        entry.Timestamp,
	}
	update := bson.M{"$push": bson.M{"attendance_audit_log": entry}}
	if attended {
		set["attended_at"] = entry.Timestamp
		update["$set"] = set
	} else {
		update["$set"] = set
		update["$unset"] = bson.M{"attended_at": ""}
	}
	_, err := repo.Collection.UpdateOne(ctx, bson.M{"registrationid": registrationID}, update)
	return err
}

// SetPaymentStatus moves a registration out of from; it reports false if the
// stored status no longer matches.
func (repo *RegistrationRepository) SetPaymentStatus(ctx context.Context, registrationID, from, to, reason string, at time.Time) (bool, error) {
	set := bson.M{"payment_status": to, "updated_at": at}
	if reason != "" {
		set["rejection_reason"] = reason
	}
	result, err := repo.Collection.UpdateOne(
		ctx,
		bson.M{"registrationid": registrationID, "payment_status": from},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (repo *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]structs.Registration, error) {
	return repo.find(ctx, bson.M{"eventid": eventID})
}

func (repo *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]structs.Registration, error) {
	return repo.find(ctx, bson.M{"userid": userID})
}

func (repo *RegistrationRepository) find(ctx context.Context, filter bson.M) ([]structs.Registration, error) {
	cursor, err := repo.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	regs := []structs.Registration{}
	if err := cursor.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}
