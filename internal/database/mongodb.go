package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/filconv/filconv/pkg/logger"
)

// disconnectMongo is swapped in tests to observe released clients.
var disconnectMongo = func(ctx context.Context, c *mongo.Client) error { return c.Disconnect(ctx) }

// ConnectMongo connects to uri and pings the deployment. A client that fails
// the ping is disconnected before the error is returned.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		// the ping context may be spent; release monitors on a fresh one
		dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer dcancel()
		if derr := disconnectMongo(dctx, client); derr != nil {
			logger.Warnf("mongo disconnect after failed ping: %v", derr)
		}
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// DialMongo calls ConnectMongo up to attempts times, doubling backoff between
// tries, to ride out a database container that is still starting.
func DialMongo(ctx context.Context, uri string, timeout time.Duration, attempts int, backoff time.Duration) (*mongo.Client, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var client *mongo.Client
		client, err = ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, err
}
