package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// nothing listens on port 1
const unreachableMongo = "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=50&connectTimeoutMS=50"

func countDisconnects(t *testing.T) *int {
	t.Helper()
	n := 0
	prev := disconnectMongo
	disconnectMongo = func(ctx context.Context, c *mongo.Client) error {
		n++
		return prev(ctx, c)
	}
	t.Cleanup(func() { disconnectMongo = prev })
	return &n
}

func TestConnectMongoReleasesClientOnPingFailure(t *testing.T) {
	n := countDisconnects(t)
	client, err := ConnectMongo(context.Background(), unreachableMongo, 200*time.Millisecond)
	require.Error(t, err)
	require.Nil(t, client)
	require.Contains(t, err.Error(), "mongo ping")
	require.Equal(t, 1, *n)
}

func TestDialMongoRetriesAndReleasesEveryAttempt(t *testing.T) {
	n := countDisconnects(t)
	client, err := DialMongo(context.Background(), unreachableMongo, 200*time.Millisecond, 3, time.Millisecond)
	require.Error(t, err)
	require.Nil(t, client)
	require.Equal(t, 3, *n)
}

func TestDialMongoStopsOnCancel(t *testing.T) {
	n := countDisconnects(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DialMongo(ctx, unreachableMongo, 200*time.Millisecond, 5, time.Hour)
	require.Error(t, err)
	require.LessOrEqual(t, *n, 1)
}

func TestConnectMongoRejectsBadURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-uri", time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongo connect")
}
