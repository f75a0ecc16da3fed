package utils

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ecoguide/ecoguide/config"
)

var (
	mongoClient *mongo.Client
	mongoOnce   sync.Once
)

// GetMongo returns a singleton Mongo client, or nil when the analytics store
// is not configured or unreachable. Callers must tolerate nil: the secondary
// store is best-effort and the service runs fine without it.
func GetMongo() *mongo.Client {
	mongoOnce.Do(func() {
		cfg := config.Get()
		if cfg.MongoURI == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			if Sugar != nil {
				Sugar.Warnf("mongo connect failed, analytics disabled: %v", err)
			}
			return
		}
		if err := client.Ping(ctx, nil); err != nil {
			if Sugar != nil {
				Sugar.Warnf("mongo ping failed, analytics disabled: %v", err)
			}
			return
		}
		mongoClient = client
	})
	return mongoClient
}

// EventsCollection returns the analytics events collection, or nil when the
// secondary store is unavailable.
func EventsCollection() *mongo.Collection {
	client := GetMongo()
	if client == nil {
		return nil
	}
	cfg := config.Get()
	return client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
}
