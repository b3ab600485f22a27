package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoDatabase = "bingo"

// ConnectToDB connects to MongoDB and returns the database named in the URI path.
func ConnectToDB(mongoURI string) (*mongo.Database, error) {
	dbName, err := databaseName(mongoURI)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	return client.Database(dbName), nil
}

func databaseName(mongoURI string) (string, error) {
	uri, err := url.Parse(mongoURI)
	if err != nil {
		return "", fmt.Errorf("parsing MongoDB URI: %w", err)
	}
	name := strings.TrimPrefix(uri.Path, "/")
	if name == "" {
		name = defaultMongoDatabase
	}
	return name, nil
}
