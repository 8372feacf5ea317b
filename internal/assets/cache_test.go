package assets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codex-k8s/loadctl/internal/faults"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	mu       sync.Mutex
	loads    map[string]int
	releases map[string]int
	failKeys map[string]bool
	gate     chan struct{}
	loading  atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		loads:    make(map[string]int),
		releases: make(map[string]int),
		failKeys: make(map[string]bool),
	}
}

func (f *fakeProvider) Load(ctx context.Context, key string) (Resource, error) {
	f.mu.Lock()
	f.loads[key]++
	fail := f.failKeys[key]
	gate := f.gate
	f.mu.Unlock()

	f.loading.Add(1)
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("missing file")
	}
	return "res:" + key, nil
}

func (f *fakeProvider) Release(key string, _ Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases[key]++
}

func (f *fakeProvider) count(m map[string]int, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[key]
}

func TestCache_AcquireReleaseLifecycle(t *testing.T) {
	prov := newFakeProvider()
	c := NewCache(prov, nil)
	ctx := context.Background()

	h1, err := c.Acquire(ctx, "K")
	require.NoError(t, err)
	h2, err := c.Acquire(ctx, "K")
	require.NoError(t, err)

	assert.Equal(t, h1.Resource, h2.Resource)
	assert.Equal(t, 1, prov.count(prov.loads, "K"))
	assert.Equal(t, 2, c.RefCount("K"))

	c.Release("K")
	assert.Equal(t, 1, c.RefCount("K"))
	assert.Equal(t, 0, prov.count(prov.releases, "K"))

	c.Release("K")
	assert.Equal(t, 0, c.RefCount("K"))
	assert.False(t, c.IsLoaded("K"))
	assert.Equal(t, 1, prov.count(prov.releases, "K"))

	c.Release("K")
	assert.Equal(t, 1, prov.count(prov.releases, "K"))
}

func TestCache_ConcurrentAcquiresShareOneLoad(t *testing.T) {
	prov := newFakeProvider()
	prov.gate = make(chan struct{})
	c := NewCache(prov, nil)

	const n = 8
	var wg sync.WaitGroup
	handles := make([]Handle, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i], errs[i] = c.Acquire(context.Background(), "K")
		}()
	}

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f := c.pending["K"]
		return f != nil && f.waiters == n
	}, time.Second, time.Millisecond)
	close(prov.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "res:K", handles[i].Resource)
	}
	assert.Equal(t, 1, prov.count(prov.loads, "K"))
	assert.Equal(t, n, c.RefCount("K"))

	for i := 0; i < n; i++ {
		c.Release("K")
	}
	assert.Equal(t, 1, prov.count(prov.releases, "K"))
}

func TestCache_FailureLeavesNoEntryAndAllowsRetry(t *testing.T) {
	prov := newFakeProvider()
	prov.failKeys["K"] = true
	c := NewCache(prov, nil)

	_, err := c.Acquire(context.Background(), "K")
	require.Error(t, err)
	assert.True(t, faults.IsLoadFailure(err))
	assert.False(t, c.IsLoaded("K"))
	assert.Empty(t, c.Keys())

	prov.mu.Lock()
	prov.failKeys["K"] = false
	prov.mu.Unlock()

	_, err = c.Acquire(context.Background(), "K")
	require.NoError(t, err)
	assert.Equal(t, 2, prov.count(prov.loads, "K"))
	assert.Equal(t, 1, c.RefCount("K"))
}

func TestCache_CancelledJoinerHoldsNoReference(t *testing.T) {
	prov := newFakeProvider()
	prov.gate = make(chan struct{})
	c := NewCache(prov, nil)

	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.Acquire(context.Background(), "K")
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return prov.loading.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	joinerDone := make(chan error, 1)
	go func() {
		_, err := c.Acquire(ctx, "K")
		joinerDone <- err
	}()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f := c.pending["K"]
		return f != nil && f.waiters == 2
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-joinerDone, context.Canceled)

	close(prov.gate)
	require.NoError(t, <-leaderDone)
	assert.Equal(t, 1, c.RefCount("K"))
}

func TestCache_CancelledFirstRequesterDoesNotFailOthers(t *testing.T) {
	prov := newFakeProvider()
	prov.gate = make(chan struct{})
	c := NewCache(prov, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Acquire(ctx, "K")
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return prov.loading.Load() == 1 }, time.Second, time.Millisecond)

	secondDone := make(chan error, 1)
	var second Handle
	go func() {
		var err error
		second, err = c.Acquire(context.Background(), "K")
		secondDone <- err
	}()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		f := c.pending["K"]
		return f != nil && f.waiters == 2
	}, time.Second, time.Millisecond)

	cancel()
	err := <-firstDone
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, faults.IsLoadFailure(err))

	close(prov.gate)
	require.NoError(t, <-secondDone)
	assert.Equal(t, "res:K", second.Resource)
	assert.Equal(t, 1, prov.count(prov.loads, "K"))
	assert.Equal(t, 1, c.RefCount("K"))
}

func TestCache_AbandonedLoadHoldsNothing(t *testing.T) {
	prov := newFakeProvider()
	prov.gate = make(chan struct{})
	c := NewCache(prov, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Acquire(ctx, "K")
		done <- err
	}()
	require.Eventually(t, func() bool { return prov.loading.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, c.IsLoaded("K"))

	close(prov.gate)
	h, err := c.Acquire(context.Background(), "K")
	require.NoError(t, err)
	assert.Equal(t, "res:K", h.Resource)
	assert.Equal(t, 2, prov.count(prov.loads, "K"))
	assert.Equal(t, 1, c.RefCount("K"))
}

func TestCache_KeysSorted(t *testing.T) {
	c := NewCache(newFakeProvider(), nil)
	for _, k := range []string{"b", "a", "c"} {
		_, err := c.Acquire(context.Background(), k)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
}
