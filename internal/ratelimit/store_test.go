package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

// Лимит 5 за 1000 мс: шестой запрос в окне отклоняется,
// после окончания окна счётчик сбрасывается.
func TestFixedWindow_DeniesSixthAndResetsAfterTTL(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniRedis(t)
	l := NewLimiter(NewRedisStore(rdb, ""))
	ctx := context.Background()
	rule := Rule{Limit: 5, TTL: 1000 * time.Millisecond}
	key := CustomKey("user-1", "/auth/login")

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(ctx, rule, key), "request %d", i+1)
	}

	var te *ThrottledError
	require.ErrorAs(t, l.Allow(ctx, rule, key), &te)

	// Другой актор не затронут.
	require.NoError(t, l.Allow(ctx, rule, CustomKey("user-2", "/auth/login")))

	mr.FastForward(1001 * time.Millisecond)
	require.NoError(t, l.Allow(ctx, rule, key))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniRedis(t)
	st := NewRedisStore(rdb, "auth:")
	ctx := context.Background()

	n, err := st.Incr(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, st.PExpire(ctx, "k", 1500*time.Millisecond))

	require.True(t, mr.Exists("auth:k"))
	require.Equal(t, 1500*time.Millisecond, mr.TTL("auth:k"))
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "not a url")
	require.Error(t, err)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Connect(ctx, "redis://"+addr)
	require.Error(t, err)
}

// TestIntegration_RedisFixedWindow — то же поведение на настоящем Redis.
//
//	GO_TEST_INTEGRATION=1 go test ./internal/ratelimit -run Integration -v
func TestIntegration_RedisFixedWindow(t *testing.T) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	rdb, err := Connect(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewLimiter(NewRedisStore(rdb, ""))
	rule := Rule{Limit: 5, TTL: 1000 * time.Millisecond}

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(ctx, rule, "it:key"))
	}
	var te *ThrottledError
	require.ErrorAs(t, l.Allow(ctx, rule, "it:key"), &te)

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, l.Allow(ctx, rule, "it:key"))
}
