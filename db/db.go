package db

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Client                  *mongo.Client
	UserCollection          *mongo.Collection
	EventsCollection        *mongo.Collection
	RegistrationsCollection *mongo.Collection
	DiscussionsCollection   *mongo.Collection
	FeedbackCollection      *mongo.Collection
)

// Connect opens the client, pings it and binds the collection handles.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	Client = client
	Bind(client.Database(database))
	return client, nil
}

func Bind(d *mongo.Database) {
	UserCollection = d.Collection("users")
	EventsCollection = d.Collection("events")
	RegistrationsCollection = d.Collection("registrations")
	DiscussionsCollection = d.Collection("discussions")
	FeedbackCollection = d.Collection("feedback")
}

// CreateIndexes installs the lookup and uniqueness indexes every collection relies on.
func CreateIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	collectionsAndIndexes := map[*mongo.Collection][]mongo.IndexModel{
		UserCollection: {
			{Keys: bson.D{{Key: "userid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		EventsCollection: {
			{Keys: bson.D{{Key: "eventid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "organizerid", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}}},
		},
		RegistrationsCollection: {
			{Keys: bson.D{{Key: "registrationid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "ticketid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userid", Value: 1}, {Key: "eventid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "eventid", Value: 1}}},
		},
		DiscussionsCollection: {
			{Keys: bson.D{{Key: "messageid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "eventid", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		FeedbackCollection: {
			{Keys: bson.D{{Key: "feedbackid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "eventid", Value: 1}, {Key: "userid", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for collection, indexes := range collectionsAndIndexes {
		if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
			return err
		}
		log.Printf("Indexes created for collection %s", collection.Name())
	}
	return nil
}
