package colorscale

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lagekarte/internal/indicator"
)

func key(ind string, year int) CacheKey {
	return CacheKey{
		Key:        indicator.Key{Indicator: ind, SubMetric: "share", Year: year},
		Discipline: indicator.Sequential,
	}
}

func TestCache_BasicGetPut(t *testing.T) {
	cache := NewCache(10, time.Hour)

	assert.Nil(t, cache.Get(key("foreigners", 2023)))

	s := NewSequential([]float64{1, 2, 3})
	cache.Put(key("foreigners", 2023), s)
	assert.Same(t, s, cache.Get(key("foreigners", 2023)))

	// Discipline is part of the key.
	other := key("foreigners", 2023)
	other.Discipline = indicator.Semantic
	assert.Nil(t, cache.Get(other))
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := NewCache(10, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }

	cache.Put(key("crime", 2022), NewSequential([]float64{1}))
	assert.NotNil(t, cache.Get(key("crime", 2022)))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, cache.Get(key("crime", 2022)))

	cache.mu.Lock()
	_, exists := cache.entries[key("crime", 2022)]
	cache.mu.Unlock()
	assert.False(t, exists)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewCache(10, 0)
	now := time.Now()
	cache.nowFunc = func() time.Time { return now }

	cache.Put(key("crime", 2022), NewSequential([]float64{1}))
	now = now.Add(1000 * time.Hour)
	assert.NotNil(t, cache.Get(key("crime", 2022)))
}

func TestCache_LRUEviction_AccessOrder(t *testing.T) {
	cache := NewCache(3, time.Hour)

	cache.Put(key("a", 1), NewSequential(nil))
	cache.Put(key("b", 1), NewSequential(nil))
	cache.Put(key("c", 1), NewSequential(nil))

	// Touch "a" so "b" becomes the oldest.
	cache.Get(key("a", 1))
	cache.Put(key("d", 1), NewSequential(nil))

	assert.NotNil(t, cache.Get(key("a", 1)))
	assert.Nil(t, cache.Get(key("b", 1)))
	assert.NotNil(t, cache.Get(key("c", 1)))
	assert.NotNil(t, cache.Get(key("d", 1)))
}

func TestCache_GetOrBuild(t *testing.T) {
	cache := NewCache(10, time.Hour)
	builds := 0
	build := func() *Scale {
		builds++
		return NewSequential([]float64{1, 2})
	}

	first := cache.GetOrBuild(key("crime", 2020), build)
	second := cache.GetOrBuild(key("crime", 2020), build)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)

	cache.GetOrBuild(key("crime", 2021), build)
	assert.Equal(t, 2, builds)
}

func TestCache_GetOrBuild_DifferentKeysBuildInParallel(t *testing.T) {
	cache := NewCache(10, time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan *Scale)
	go func() {
		done <- cache.GetOrBuild(key("crime", 2020), func() *Scale {
			close(started)
			<-release
			return NewSequential([]float64{1})
		})
	}()
	<-started

	// A second key must not wait for the first build.
	other := make(chan *Scale)
	go func() {
		other <- cache.GetOrBuild(key("crime", 2021), func() *Scale { return NewSequential([]float64{2}) })
	}()
	select {
	case s := <-other:
		assert.NotNil(t, s)
	case <-time.After(2 * time.Second):
		t.Fatal("build for crime/2021 blocked behind crime/2020")
	}

	close(release)
	assert.NotNil(t, <-done)
	assert.Equal(t, 2, cache.Stats().Entries)
}

func TestCache_GetOrBuild_SameKeyBuildsOnce(t *testing.T) {
	cache := NewCache(10, time.Hour)
	release := make(chan struct{})
	var mu sync.Mutex
	builds := 0
	build := func() *Scale {
		mu.Lock()
		builds++
		mu.Unlock()
		<-release
		return NewSequential([]float64{1, 2})
	}

	var wg sync.WaitGroup
	results := make([]*Scale, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.GetOrBuild(key("crime", 2020), build)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NotNil(t, results[0])
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Same(t, results[0], cache.Get(key("crime", 2020)))
	mu.Lock()
	assert.Equal(t, 1, builds)
	mu.Unlock()
}

func TestCache_GetOrBuild_InvalidateDuringBuild(t *testing.T) {
	cache := NewCache(10, time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan *Scale)
	go func() {
		done <- cache.GetOrBuild(key("crime", 2020), func() *Scale {
			close(started)
			<-release
			return NewSequential([]float64{1})
		})
	}()
	<-started
	cache.Invalidate("crime")
	close(release)

	assert.NotNil(t, <-done)
	assert.Nil(t, cache.Get(key("crime", 2020)))
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache(10, time.Hour)
	cache.Put(key("crime", 2020), NewSequential(nil))
	cache.Put(key("crime", 2021), NewSequential(nil))
	cache.Put(key("foreigners", 2021), NewSequential(nil))

	cache.Invalidate("crime")

	assert.Nil(t, cache.Get(key("crime", 2020)))
	assert.Nil(t, cache.Get(key("crime", 2021)))
	assert.NotNil(t, cache.Get(key("foreigners", 2021)))
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestCache_Stats(t *testing.T) {
	cache := NewCache(5, time.Hour)
	cache.Put(key("a", 1), NewSequential(nil))
	cache.Get(key("a", 1))
	cache.Get(key("a", 1))
	cache.Get(key("missing", 1))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 5, stats.MaxEntries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache(50, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := key(fmt.Sprintf("ind-%d", i%10), 2020)
			cache.GetOrBuild(k, func() *Scale { return NewSequential([]float64{float64(i)}) })
			cache.Get(k)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, cache.Stats().Entries)
}
