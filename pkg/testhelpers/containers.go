package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container images used by the integration tests.
const (
	PostgresImage = "postgres:16-alpine"
	MongoImage    = "mongo:7"
	RedisImage    = "redis:7-alpine"
)

// TestDB holds a shared PostgreSQL container and connection pool.
// Migrations are not applied; callers run them against ConnStr.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "contracts_test",
			"POSTGRES_USER":     "querybridge",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, port, err := endpoint(ctx, container, "5432")
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://querybridge:test_password@%s:%d/contracts_test?sslmode=disable", host, port)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port,
	}, nil
}

// TestMongo holds a shared MongoDB container and client.
type TestMongo struct {
	Container testcontainers.Container
	Client    *mongo.Client
	URI       string
}

var (
	sharedMongo     *TestMongo
	sharedMongoOnce sync.Once
	sharedMongoErr  error
)

// GetTestMongo returns a shared MongoDB container for integration tests.
// Tests should use a database name of their own to stay isolated.
func GetTestMongo(t *testing.T) *TestMongo {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMongoOnce.Do(func() {
		sharedMongo, sharedMongoErr = setupTestMongo()
	})

	if sharedMongoErr != nil {
		t.Fatalf("Failed to setup test mongodb: %v", sharedMongoErr)
	}

	return sharedMongo
}

func setupTestMongo() (*TestMongo, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MongoImage,
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor: wait.ForLog("Waiting for connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	host, port, err := endpoint(ctx, container, "27017")
	if err != nil {
		return nil, err
	}

	uri := fmt.Sprintf("mongodb://%s:%d/", host, port)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &TestMongo{
		Container: container,
		Client:    client,
		URI:       uri,
	}, nil
}

// TestRedis holds a shared Redis container and client.
type TestRedis struct {
	Container testcontainers.Container
	Client    *redis.Client
	Host      string
	Port      int
}

var (
	sharedRedis     *TestRedis
	sharedRedisOnce sync.Once
	sharedRedisErr  error
)

// GetTestRedis returns a shared Redis container for integration tests.
func GetTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRedisOnce.Do(func() {
		sharedRedis, sharedRedisErr = setupTestRedis()
	})

	if sharedRedisErr != nil {
		t.Fatalf("Failed to setup test redis: %v", sharedRedisErr)
	}

	return sharedRedis
}

func setupTestRedis() (*TestRedis, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, port, err := endpoint(ctx, container, "6379")
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", host, port)})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &TestRedis{
		Container: container,
		Client:    client,
		Host:      host,
		Port:      port,
	}, nil
}

func endpoint(ctx context.Context, container testcontainers.Container, port string) (string, int, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get container port: %w", err)
	}

	return host, mapped.Int(), nil
}
