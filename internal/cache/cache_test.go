package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetHonoursTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[string](time.Minute, WithClock(clock.Now))

	c.Put("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry at exactly ttl age must miss")
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	c := New[int](time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestZeroTTLNeverHits(t *testing.T) {
	t.Parallel()

	c := New[int](0)
	c.Put("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestBeginWriteHidesValueUntilCommit(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)
	c.Put("s", "old")

	w, err := c.BeginWrite(context.Background(), "s")
	require.NoError(t, err)

	_, ok := c.Get("s")
	assert.False(t, ok, "pending write must invalidate reads")

	c.Put("s", "stale")
	_, ok = c.Get("s")
	assert.False(t, ok, "puts during a pending write are dropped")

	w.Commit("new")
	v, ok := c.Get("s")
	require.True(t, ok)
	assert.Equal(t, "new", v)

	w.Abort()
	v, _ = c.Get("s")
	assert.Equal(t, "new", v, "release is idempotent")
}

func TestAbortLeavesKeyInvalidated(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)
	c.Put("s", "old")

	w, err := c.BeginWrite(context.Background(), "s")
	require.NoError(t, err)
	w.Abort()

	_, ok := c.Get("s")
	assert.False(t, ok)
}

func TestBeginWriteSerialisesWriters(t *testing.T) {
	t.Parallel()

	c := New[int](time.Hour)

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := c.BeginWrite(context.Background(), "s")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			w.Commit(i)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxSeen.Load())
}

func TestBeginWriteRespectsContext(t *testing.T) {
	t.Parallel()

	c := New[int](time.Hour)
	w, err := c.BeginWrite(context.Background(), "s")
	require.NoError(t, err)
	defer w.Abort()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = c.BeginWrite(ctx, "s")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetOrFetchSharesInflightCalls(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "fetched", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	for _, r := range results {
		assert.Equal(t, "fetched", r)
	}

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fetched", v)

	_, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) {
		t.Error("cached value must be served")
		return "", nil
	})
	require.NoError(t, err)
}

func TestGetOrFetchDoesNotCacheAcrossInvalidation(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)

	v, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) {
		c.Invalidate("k")
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v)

	_, ok := c.Get("k")
	assert.False(t, ok, "value fetched across an invalidation must not be cached")
}

func TestGetOrFetchSurvivesCancelledCaller(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		fetchErr atomic.Value
		once     sync.Once
	)

	fetch := func(ctx context.Context) (string, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
		}
		return "fetched", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, "k", fetch)
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		v, err := c.GetOrFetch(context.Background(), "k", fetch)
		assert.NoError(t, err)
		second <- v
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	assert.Equal(t, "fetched", <-second)
	assert.Nil(t, fetchErr.Load(), "the shared fetch must not see the first caller's cancellation")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fetched", v)
}

func TestGetOrFetchCancelledCallerDoesNotCacheStaleValue(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, "k", func(context.Context) (string, error) {
			close(started)
			<-release
			defer close(done)
			return "stale", nil
		})
		errs <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	w, err := c.BeginWrite(context.Background(), "k")
	require.NoError(t, err)
	w.Commit("fresh")

	close(release)
	<-done
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.fetching) == 0
	}, time.Second, time.Millisecond)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestVersionsDoNotGrowWithKeys(t *testing.T) {
	t.Parallel()

	c := New[int](time.Hour)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("missing-%d", i)
		w, err := c.BeginWrite(ctx, key)
		require.NoError(t, err)
		w.Abort()
		c.Invalidate(key)
		c.Put(key, i)
		_, err = c.GetOrFetch(ctx, key+"-fetched", func(context.Context) (int, error) { return i, nil })
		require.NoError(t, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.versions)
	assert.Empty(t, c.fetching)
	assert.Empty(t, c.writing)
}

func TestGetOrFetchError(t *testing.T) {
	t.Parallel()

	c := New[string](time.Hour)
	_, err := c.GetOrFetch(context.Background(), "k", func(context.Context) (string, error) {
		return "", errors.New("backend down")
	})
	require.Error(t, err)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestSessionCacheClasses(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sc := NewSessionCache[string, int](TTLs{Session: 30 * time.Second, List: 5 * time.Minute}, WithClock(clock.Now))

	assert.Equal(t, DefaultEvaluationTTL, sc.Evaluations.TTL())

	sc.Sessions.Put("s1", "session")
	sc.Lists.Put(ListKey, []string{"session"})

	clock.Advance(time.Minute)
	_, ok := sc.Sessions.Get("s1")
	assert.False(t, ok, "session class uses the short ttl")
	_, ok = sc.Lists.Get(ListKey)
	assert.True(t, ok, "list class uses the long ttl")

	sc.InvalidateAll()
	_, ok = sc.Lists.Get(ListKey)
	assert.False(t, ok)
}
