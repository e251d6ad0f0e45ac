// Package utils holds helpers shared by integration tests.
package utils

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type containerEndpoint struct {
	once sync.Once
	addr string
	err  error
}

var (
	mongoEndpoint containerEndpoint
	redisEndpoint containerEndpoint
	dbCounter     atomic.Int64
)

// startContainer launches image once per test binary and returns host:port of
// the exposed port. Containers are reaped by testcontainers when the process exits.
func startContainer(t *testing.T, ep *containerEndpoint, image, port string) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ep.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        image,
				ExposedPorts: []string{port},
				WaitingFor:   wait.ForListeningPort(nat.Port(port)).WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			ep.err = fmt.Errorf("failed to start %s: %w", image, err)
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			ep.err = err
			return
		}
		mapped, err := container.MappedPort(ctx, nat.Port(port))
		if err != nil {
			ep.err = err
			return
		}
		ep.addr = fmt.Sprintf("%s:%s", host, mapped.Port())
	})

	require.NoError(t, ep.err)
	return ep.addr
}

// MongoURI returns MONGO_URI_TEST when set, otherwise the URI of a throwaway
// MongoDB container. Tests are skipped when neither is available.
func MongoURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("MONGO_URI_TEST"); uri != "" {
		return uri
	}
	return "mongodb://" + startContainer(t, &mongoEndpoint, "mongo:7", "27017/tcp")
}

// RedisAddr returns REDIS_ADDR_TEST when set, otherwise a Redis container address.
func RedisAddr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("REDIS_ADDR_TEST"); addr != "" {
		return addr
	}
	return startContainer(t, &redisEndpoint, "redis:7-alpine", "6379/tcp")
}

// SetupTestDB returns a fresh database that is dropped when the test ends.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := MongoURI(t)

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	require.NoError(t, err, "Failed to connect to MongoDB")

	name := fmt.Sprintf("portal_test_%d_%d", time.Now().UnixNano(), dbCounter.Add(1))
	database := client.Database(name)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return database
}

// SetupTestRedis returns a client on an emptied Redis database.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: RedisAddr(t)})
	require.NoError(t, rdb.FlushDB(context.Background()).Err(), "Failed to flush Redis")
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
