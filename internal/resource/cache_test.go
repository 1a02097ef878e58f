package resource

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tilecache/internal/tileset"
)

var (
	_ Cache = (*FilesystemCache)(nil)
	_ Cache = (*SyncCache)(nil)
	_ Cache = (*LockedCache)(nil)
)

var errLoad = errors.New("load failed")

// counting returns a constructor producing a tileset named name and a counter
// of its invocations.
func counting(name string) (Constructor, *int32) {
	var calls int32
	return func() (tileset.Tileset, error) {
		atomic.AddInt32(&calls, 1)
		return tileset.Tileset{Name: name}, nil
	}, &calls
}

func failing() (Constructor, *int32) {
	var calls int32
	return func() (tileset.Tileset, error) {
		atomic.AddInt32(&calls, 1)
		return tileset.Tileset{}, errLoad
	}, &calls
}

var implementations = []struct {
	name string
	new  func() Cache
}{
	{name: "filesystem", new: func() Cache { return NewFilesystemCache() }},
	{name: "sync", new: func() Cache { return NewSyncCache() }},
	{name: "locked", new: func() Cache { return NewLockedCache(NewFilesystemCache()) }},
}

func TestScenario(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()

			_, ok := c.Tileset("a.tiles")
			assert.False(t, ok)

			loadOK, okCalls := counting("a")
			r1, err := c.GetOrTryInsertTileset("a.tiles", loadOK)
			require.NoError(t, err)
			assert.Equal(t, int32(1), *okCalls)
			assert.Equal(t, "a", r1.Name)

			loadOKAgain, againCalls := counting("a-again")
			got, err := c.GetOrTryInsertTileset("a.tiles", loadOKAgain)
			require.NoError(t, err)
			assert.Equal(t, int32(0), *againCalls)
			assert.Same(t, r1, got)

			_, ok = c.Tileset("b.tiles")
			assert.False(t, ok)

			loadErr, _ := failing()
			_, err = c.GetOrTryInsertTileset("b.tiles", loadErr)
			assert.Equal(t, errLoad, err)
			_, ok = c.Tileset("b.tiles")
			assert.False(t, ok)

			loadOK2, ok2Calls := counting("b")
			r2, err := c.GetOrTryInsertTileset("b.tiles", loadOK2)
			require.NoError(t, err)
			assert.Equal(t, int32(1), *ok2Calls)
			assert.Equal(t, "b", r2.Name)
			assert.NotSame(t, r1, r2)
		})
	}
}

func TestLookupMatchesInsertedHandle(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()
			f, _ := counting("terrain")

			inserted, err := c.GetOrTryInsertTileset("maps/terrain.tsx", f)
			require.NoError(t, err)

			found, ok := c.Tileset("maps/terrain.tsx")
			require.True(t, ok)
			assert.Same(t, inserted, found)

			again, ok := c.Tileset("maps/terrain.tsx")
			require.True(t, ok)
			assert.Same(t, found, again)
		})
	}
}

func TestFailureIsPassedThroughUnchanged(t *testing.T) {
	type loadError struct{ error }
	want := &loadError{errors.New("bad header")}

	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()
			for i := 0; i < 3; i++ {
				_, err := c.GetOrTryInsertTileset("x.tsx", func() (tileset.Tileset, error) {
					return tileset.Tileset{}, want
				})
				assert.Same(t, want, err)
			}
			_, ok := c.Tileset("x.tsx")
			assert.False(t, ok)
		})
	}
}

func TestFailedConstructionIsRetried(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()
			fail, failCalls := failing()

			_, err := c.GetOrTryInsertTileset("k", fail)
			require.Error(t, err)
			_, err = c.GetOrTryInsertTileset("k", fail)
			require.Error(t, err)
			assert.Equal(t, int32(2), *failCalls)
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	for _, impl := range implementations {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()
			f, _ := counting("a")

			_, err := c.GetOrTryInsertTileset("a.tsx", f)
			require.NoError(t, err)

			for _, other := range []string{"b.tsx", "./a.tsx", "A.tsx", "a.tsx/", "/abs/a.tsx", ""} {
				_, ok := c.Tileset(other)
				assert.False(t, ok, "key %q", other)
			}
		})
	}
}

func TestPathsAreNotNormalized(t *testing.T) {
	c := NewFilesystemCache()
	relative, _ := counting("relative")
	dotted, dottedCalls := counting("dotted")

	r, err := c.GetOrTryInsertTileset("maps/a.tsx", relative)
	require.NoError(t, err)
	d, err := c.GetOrTryInsertTileset("maps/./a.tsx", dotted)
	require.NoError(t, err)

	assert.Equal(t, int32(1), *dottedCalls)
	assert.NotSame(t, r, d)
	assert.Equal(t, 2, c.Len())
}

func TestLen(t *testing.T) {
	fs := NewFilesystemCache()
	sc := NewSyncCache()
	lc := NewLockedCache(NewFilesystemCache())

	for _, key := range []string{"a", "b", "a"} {
		f, _ := counting(key)
		_, _ = fs.GetOrTryInsertTileset(key, f)
		_, _ = sc.GetOrTryInsertTileset(key, f)
		_, _ = lc.GetOrTryInsertTileset(key, f)
	}
	fail, _ := failing()
	_, _ = fs.GetOrTryInsertTileset("c", fail)
	_, _ = sc.GetOrTryInsertTileset("c", fail)
	_, _ = lc.GetOrTryInsertTileset("c", fail)

	assert.Equal(t, 2, fs.Len())
	assert.Equal(t, 2, sc.Len())
	assert.Equal(t, 2, lc.Len())
}

func TestConcurrentCallersShareOneConstruction(t *testing.T) {
	for _, impl := range implementations[1:] {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()

			var calls int32
			release := make(chan struct{})
			f := func() (tileset.Tileset, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return tileset.Tileset{Name: "shared"}, nil
			}

			const callers = 32
			results := make([]*tileset.Tileset, callers)
			var wg sync.WaitGroup
			var started sync.WaitGroup
			started.Add(callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					started.Done()
					ts, err := c.GetOrTryInsertTileset("shared.tsx", f)
					assert.NoError(t, err)
					results[i] = ts
				}(i)
			}
			started.Wait()
			close(release)
			wg.Wait()

			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			for _, ts := range results {
				assert.Same(t, results[0], ts)
			}
		})
	}
}

func TestSyncCacheConstructsDistinctKeysInParallel(t *testing.T) {
	c := NewSyncCache()

	// Each constructor waits for the other; a cache holding one lock across
	// construction would deadlock here.
	aStarted := make(chan struct{})
	bStarted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.GetOrTryInsertTileset("a", func() (tileset.Tileset, error) {
			close(aStarted)
			<-bStarted
			return tileset.Tileset{Name: "a"}, nil
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := c.GetOrTryInsertTileset("b", func() (tileset.Tileset, error) {
			close(bStarted)
			<-aStarted
			return tileset.Tileset{Name: "b"}, nil
		})
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, 2, c.Len())
}

func TestNewCache(t *testing.T) {
	log := zap.NewNop()

	c, err := NewCache("sync", log)
	require.NoError(t, err)
	assert.IsType(t, &SyncCache{}, c)

	c, err = NewCache("local", log)
	require.NoError(t, err)
	assert.IsType(t, &LockedCache{}, c)

	_, err = NewCache("lru", log)
	assert.ErrorContains(t, err, "unknown cache mode")
}

func TestSyncCacheWaiterRunsOwnConstructorAfterLeaderFails(t *testing.T) {
	c := NewSyncCache()

	leaderStarted := make(chan struct{})
	releaseLeader := make(chan struct{})
	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrTryInsertTileset("shared.tsx", func() (tileset.Tileset, error) {
			close(leaderStarted)
			<-releaseLeader
			return tileset.Tileset{}, errLoad
		})
		leaderDone <- err
	}()
	<-leaderStarted

	waiter, waiterCalls := counting("waiter")
	type result struct {
		ts  *tileset.Tileset
		err error
	}
	waiterDone := make(chan result, 1)
	go func() {
		ts, err := c.GetOrTryInsertTileset("shared.tsx", waiter)
		waiterDone <- result{ts, err}
	}()

	// Give the waiter time to join the leader's flight.
	time.Sleep(20 * time.Millisecond)
	close(releaseLeader)

	assert.Equal(t, errLoad, <-leaderDone)

	got := <-waiterDone
	require.NoError(t, got.err)
	assert.Equal(t, "waiter", got.ts.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(waiterCalls))

	cached, ok := c.Tileset("shared.tsx")
	require.True(t, ok)
	assert.Same(t, got.ts, cached)
}

func TestCallersOnlySeeTheirOwnErrors(t *testing.T) {
	for _, impl := range implementations[1:] {
		t.Run(impl.name, func(t *testing.T) {
			c := impl.new()

			const callers = 16
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					own := fmt.Errorf("caller %d", i)
					_, err := c.GetOrTryInsertTileset("k", func() (tileset.Tileset, error) {
						time.Sleep(time.Millisecond)
						return tileset.Tileset{}, own
					})
					assert.Same(t, own, err)
				}(i)
			}
			wg.Wait()

			_, ok := c.Tileset("k")
			assert.False(t, ok)
		})
	}
}
