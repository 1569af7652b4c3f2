package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"otodom-scraper/models"
)

// listingDocument is the MongoDB shape of a listing. Unknown values are
// left out of the document.
type listingDocument struct {
	Link               string    `bson:"link"`
	Area               *float64  `bson:"area,omitempty"`
	Price              *float64  `bson:"price,omitempty"`
	Rent               *float64  `bson:"rent,omitempty"`
	RoomsNum           *int      `bson:"rooms_num,omitempty"`
	FloorsNum          *int      `bson:"floors_num,omitempty"`
	FloorNo            *int      `bson:"floor_no,omitempty"`
	BuildYear          *int      `bson:"build_year,omitempty"`
	Market             *string   `bson:"market,omitempty"`
	District           *string   `bson:"district,omitempty"`
	ConstructionStatus *string   `bson:"construction_status,omitempty"`
	Garage             *bool     `bson:"garage,omitempty"`
	Lift               *bool     `bson:"lift,omitempty"`
	Basement           *bool     `bson:"basement,omitempty"`
	Balcony            *bool     `bson:"balcony,omitempty"`
	Garden             *bool     `bson:"garden,omitempty"`
	Terrace            *bool     `bson:"terrace,omitempty"`
	Latitude           *float64  `bson:"latitude,omitempty"`
	Longitude          *float64  `bson:"longitude,omitempty"`
	ScrapedAt          time.Time `bson:"scraped_at"`
}

func toDocument(l *models.Listing, now time.Time) listingDocument {
	return listingDocument{
		Link:               l.Link,
		Area:               l.Area,
		Price:              l.Price,
		Rent:               l.Rent,
		RoomsNum:           l.RoomsNum,
		FloorsNum:          l.FloorsNum,
		FloorNo:            l.FloorNo,
		BuildYear:          l.BuildYear,
		Market:             l.Market,
		District:           l.District,
		ConstructionStatus: l.ConstructionStatus,
		Garage:             boolPtr(l.Garage),
		Lift:               boolPtr(l.Lift),
		Basement:           boolPtr(l.Basement),
		Balcony:            boolPtr(l.Balcony),
		Garden:             boolPtr(l.Garden),
		Terrace:            boolPtr(l.Terrace),
		Latitude:           l.Latitude,
		Longitude:          l.Longitude,
		ScrapedAt:          now.UTC(),
	}
}

func boolPtr(t models.Tristate) *bool {
	if t == models.Unknown {
		return nil
	}
	b := t == models.Yes
	return &b
}

// MongoWriter mirrors emitted listings into a MongoDB collection, one
// document per link.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoWriter connects, pings and ensures a unique index on link.
func NewMongoWriter(ctx context.Context, uri, database, collection string) (*MongoWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "link", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: create index: %w", err)
	}

	return &MongoWriter{client: client, collection: coll}, nil
}

// Write inserts the listing unless its link is already stored.
func (mw *MongoWriter) Write(ctx context.Context, l *models.Listing) error {
	_, err := mw.collection.UpdateOne(ctx,
		bson.M{"link": l.Link},
		bson.M{"$setOnInsert": toDocument(l, time.Now())},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: upsert %s: %w", l.Link, err)
	}
	return nil
}

func (mw *MongoWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return mw.client.Disconnect(ctx)
}
