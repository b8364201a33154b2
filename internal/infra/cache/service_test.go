package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	svc := NewServiceWithClient(client, Config{
		KeyPrefix:  "test",
		DefaultTTL: time.Hour,
		OpTimeout:  time.Second,
	})
	return svc, mr
}

func TestSetGetRoundtrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Set(ctx, "k1", entry{Value: "hello", Count: 3}, 0)

	var got entry
	require.True(t, svc.Get(ctx, "k1", &got))
	assert.Equal(t, entry{Value: "hello", Count: 3}, got)
}

func TestGetMiss(t *testing.T) {
	svc, _ := newTestService(t)

	var got entry
	assert.False(t, svc.Get(context.Background(), "absent", &got))
}

func TestKeysAreNamespaced(t *testing.T) {
	svc, mr := newTestService(t)

	svc.Set(context.Background(), "k1", entry{Value: "v"}, 0)

	require.Len(t, mr.Keys(), 1)
	assert.Equal(t, "test:k1", mr.Keys()[0])
}

func TestTTLExpiry(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	svc.Set(ctx, "k1", entry{Value: "v"}, time.Minute)

	var got entry
	require.True(t, svc.Get(ctx, "k1", &got))

	mr.FastForward(2 * time.Minute)
	assert.False(t, svc.Get(ctx, "k1", &got), "entry must expire after its TTL")
}

func TestCorruptEntryInvalidatedOnRead(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:k1", "not-json{"))

	var got entry
	assert.False(t, svc.Get(ctx, "k1", &got))
	assert.False(t, mr.Exists("test:k1"), "corrupt entry must be dropped")
}

func TestGetDegradesToMissWhenStoreDown(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	svc.Set(ctx, "k1", entry{Value: "v"}, 0)
	mr.Close()

	var got entry
	assert.False(t, svc.Get(ctx, "k1", &got), "unreachable store must read as a miss")
}

func TestInvalidate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Set(ctx, "k1", entry{Value: "v"}, 0)
	svc.Invalidate(ctx, "k1")

	var got entry
	assert.False(t, svc.Get(ctx, "k1", &got))
}

func TestInvalidatePattern(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Set(ctx, "source:a", entry{Value: "1"}, 0)
	svc.Set(ctx, "source:b", entry{Value: "2"}, 0)
	svc.Set(ctx, "answer:c", entry{Value: "3"}, 0)

	removed, err := svc.InvalidatePattern(ctx, "source:")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	var got entry
	assert.False(t, svc.Get(ctx, "source:a", &got))
	assert.False(t, svc.Get(ctx, "source:b", &got))
	assert.True(t, svc.Get(ctx, "answer:c", &got), "other prefixes must survive")
}

func TestExists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.False(t, svc.Exists(ctx, "k1"))
	svc.Set(ctx, "k1", entry{Value: "v"}, 0)
	assert.True(t, svc.Exists(ctx, "k1"))
}

func TestHealthCheck(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	svc.Set(ctx, "k1", entry{Value: "v"}, 0)

	status := svc.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.EqualValues(t, 1, status.Keys)

	mr.Close()
	status = svc.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.NotEmpty(t, status.Message)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (entry, error) {
		calls++
		return entry{Value: "computed", Count: calls}, nil
	}

	got, fromCache, err := GetOrCompute(ctx, svc, "k1", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "computed", got.Value)

	got, fromCache, err = GetOrCompute(ctx, svc, "k1", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 1, got.Count, "second call must be served from cache")
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	computeErr := errors.New("upstream failed")
	_, _, err := GetOrCompute(ctx, svc, "k1", time.Minute, func(ctx context.Context) (entry, error) {
		return entry{}, computeErr
	})
	require.ErrorIs(t, err, computeErr)

	got, fromCache, err := GetOrCompute(ctx, svc, "k1", time.Minute, func(ctx context.Context) (entry, error) {
		return entry{Value: "ok"}, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache, "failed computations must not leave entries behind")
	assert.Equal(t, "ok", got.Value)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (entry, error) {
		calls.Add(1)
		<-release
		return entry{Value: "shared"}, nil
	}

	const workers = 10
	results := make([]entry, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := GetOrCompute(ctx, svc, "hot-key", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	// Give every goroutine time to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "concurrent callers must share one computation")
	for _, got := range results {
		assert.Equal(t, "shared", got.Value)
	}
}

func TestGetOrComputeWorksWithoutStore(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	mr.Close()

	got, fromCache, err := GetOrCompute(ctx, svc, "k1", time.Minute, func(ctx context.Context) (entry, error) {
		return entry{Value: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "fresh", got.Value, "cache loss must not break computation")
}

func TestKeyDeterministic(t *testing.T) {
	k1 := Key(PrefixSource, "retrieval", "query text", "5")
	k2 := Key(PrefixSource, "retrieval", "query text", "5")
	k3 := Key(PrefixSource, "retrieval", "other query", "5")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, PrefixSource+":")
}

func TestKeyPartsAreDelimited(t *testing.T) {
	// Adjacent parts must not collide when their concatenation matches.
	k1 := Key(PrefixAnswer, "ab", "c")
	k2 := Key(PrefixAnswer, "a", "bc")
	assert.NotEqual(t, k1, k2)
}
