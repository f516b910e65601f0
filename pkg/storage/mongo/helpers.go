package mongo

import (
	"context"
	"os"

	"linkshare/pkg/storage"
)

// TestURIEnv names the variable holding the URI of the Mongo instance used by
// the integration tests. The tests are skipped when it is empty.
const TestURIEnv = "LINKSHARE_TEST_MONGO_URI"

func testConf() *Config {
	return &Config{
		URI:    os.Getenv(TestURIEnv),
		DBName: "linkshare_test",
	}
}

// StorageConnect is a helper function that establishes a connection to the test Mongo instance.
// It returns a connected Storage object or an error if connection fails.
func StorageConnect(ctx context.Context) (*Storage, error) {
	db, err := New(ctx, testConf())
	if err != nil {
		return nil, storage.ErrConnectDB
	}

	err = db.Ping(ctx)
	if err != nil {
		return nil, storage.ErrDBNotResponding
	}

	return db, nil
}

// RestoreDB drops the "users" and "posts" collections to reset the database state.
// WARNING: Use only in tests to avoid data loss.
func RestoreDB(db *Storage) error {
	if err := db.posts().Drop(context.Background()); err != nil {
		return err
	}
	return db.users().Drop(context.Background())
}
