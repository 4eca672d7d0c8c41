package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURIEnv names an environment variable that, when set, points tests at
// an existing MongoDB instead of starting a container.
const MongoURIEnv = "TENANTHUB_TEST_MONGO_URI"

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

// TestContext returns a context suitable for a single test's store calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB returns a fresh, uniquely named database and drops it when the
// test finishes. The backing MongoDB is shared by every test in the binary.
// Tests are skipped when neither TENANTHUB_TEST_MONGO_URI nor a container
// runtime is available.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	if os.Getenv(MongoURIEnv) == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}

	clientOnce.Do(func() {
		client, clientErr = connect()
	})
	if clientErr != nil {
		t.Skipf("mongo unavailable: %v", clientErr)
	}

	db := client.Database(fmt.Sprintf("tenanthub_test_%s", primitive.NewObjectID().Hex()))
	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
	})
	return db
}

func connect() (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		// A replica set so the server behaves like production (transactions,
		// change streams). The container lives for the life of the test binary.
		container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
		if err != nil {
			return nil, fmt.Errorf("start mongo container: %w", err)
		}
		uri, err = container.ConnectionString(ctx)
		if err != nil {
			return nil, fmt.Errorf("mongo connection string: %w", err)
		}
	}

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}
