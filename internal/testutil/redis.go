package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// OpenRedis returns a client on TEST_REDIS_URL, or on a throwaway redis
// container. The database is flushed before it is returned.
func OpenRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_URL"))
	if addr == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		ctr, err := tcredis.Run(ctx, "redis:7-alpine")
		testcontainers.CleanupContainer(t, ctr)
		if err != nil {
			t.Skipf("redis unavailable: %v", err)
		}
		if addr, err = ctr.ConnectionString(ctx); err != nil {
			t.Fatalf("redis connection string: %v", err)
		}
	}

	opts, err := redis.ParseURL(addr)
	if err != nil {
		t.Fatalf("parse redis URL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}
