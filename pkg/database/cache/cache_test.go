package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/Cjw9000-py/mloader/pkg/asset"
	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/database/fs"
	"github.com/Cjw9000-py/mloader/pkg/database/memory"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpyDatabase (间谍数据库)
// 统计底层 Resolve 的调用次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyDatabase struct {
	*memory.Database
	resolveCount atomic.Int32
}

func NewSpyDatabase(t *testing.T, files map[string]string) *SpyDatabase {
	t.Helper()
	spy := &SpyDatabase{Database: memory.New("spy")}
	for p, content := range files {
		require.NoError(t, spy.Put(p, []byte(content)))
	}
	return spy
}

func (s *SpyDatabase) Resolve(ctx context.Context, rel types.PurePath) (*resource.Handle, error) {
	s.resolveCount.Add(1)
	return s.Database.Resolve(ctx, rel)
}

func TestCache_SharesResources(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"a/b.txt": "hello"})
	db := New(spy)

	h1, err := db.Resolve(ctx, "a/b.txt")
	require.NoError(t, err)
	defer h1.Release()
	h2, err := db.Resolve(ctx, "./a//b.txt")
	require.NoError(t, err)
	defer h2.Release()

	assert.Same(t, h1.Resource(), h2.Resource())
	assert.Equal(t, int32(1), spy.resolveCount.Load(), "second resolve should be a cache hit")
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Entries: 1}, db.Stats())
	assert.Equal(t, int32(3), h1.Resource().Refs(), "cache + two callers")
	assert.Equal(t, "cache:memory:spy", db.Name())
}

func TestCache_InvalidateKeepsOutstandingHandles(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"x.txt": "v1"})
	db := New(spy)

	old, err := db.Resolve(ctx, "x.txt")
	require.NoError(t, err)
	defer old.Release()

	require.NoError(t, spy.Put("x.txt", []byte("v2")))
	assert.True(t, db.Invalidate("x.txt"))
	assert.False(t, db.Invalidate("x.txt"))
	assert.False(t, db.Invalidate("/abs"))

	fresh, err := db.Resolve(ctx, "x.txt")
	require.NoError(t, err)
	defer fresh.Release()

	assert.NotSame(t, old.Resource(), fresh.Resource())
	assert.Equal(t, []byte("v1"), old.Data(), "outstanding handles stay valid")
	assert.Equal(t, []byte("v2"), fresh.Data())
	assert.Equal(t, int32(2), spy.resolveCount.Load())
}

func TestCache_PurgeAndUnload(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	db := New(spy)

	for _, p := range []types.PurePath{"a.txt", "b.txt"} {
		h, err := db.Resolve(ctx, p)
		require.NoError(t, err)
		h.Release()
	}
	assert.Equal(t, 2, db.Stats().Entries)

	db.Purge()
	assert.Equal(t, 0, db.Stats().Entries)

	h, err := db.Resolve(ctx, "a.txt")
	require.NoError(t, err)
	res := h.Resource()
	h.Release()
	assert.False(t, res.Destroyed(), "the cache still holds a reference")

	require.NoError(t, db.Unload())
	assert.True(t, res.Destroyed())
	assert.False(t, db.IsLoaded())
	assert.Equal(t, 0, db.Stats().Entries)
}

func TestCache_ConcurrentMissesResolveOnce(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"hot.bin": "payload"})
	db := New(spy)
	require.NoError(t, db.Load(ctx))

	const workers = 16
	var wg sync.WaitGroup
	resources := make([]*resource.Resource, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := db.Resolve(ctx, "hot.bin")
			if !assert.NoError(t, err) {
				return
			}
			resources[i] = h.Resource()
			h.Release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), spy.resolveCount.Load())
	for _, r := range resources[1:] {
		assert.Same(t, resources[0], r)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"dir/a.txt": "a"})
	db := New(spy)

	_, err := db.Resolve(ctx, "missing.txt")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = db.Resolve(ctx, "dir")
	assert.ErrorIs(t, err, database.ErrNotFile)
	_, err = db.Resolve(ctx, "/dir/a.txt")
	assert.ErrorIs(t, err, types.ErrAbsolutePath)

	assert.Equal(t, 0, db.Stats().Entries)
}

func TestCache_PassThroughQueries(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"dir/a.txt": "a"})
	db := New(spy)

	entries, err := db.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Same(t, db, e.DB)
	}

	ok, err := db.Exists(ctx, "dir")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.IsDir(ctx, "dir")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.IsFile(ctx, "dir/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, spy, db.Backend())
}

func TestCache_AssetsShareParsedPayload(t *testing.T) {
	ctx := context.Background()
	spy := NewSpyDatabase(t, map[string]string{"greeting.txt": "hello"})
	db := New(spy)

	a := asset.NewText("greeting.txt", asset.WithDatabase(db))
	b := asset.NewText("greeting.txt", asset.WithDatabase(db))
	ta, err := a.Text(ctx)
	require.NoError(t, err)
	tb, err := b.Text(ctx)
	require.NoError(t, err)

	assert.Same(t, unsafe.StringData(ta), unsafe.StringData(tb), "both assets read one cached payload")
	assert.Equal(t, int32(1), spy.resolveCount.Load())
}

func TestCache_WatchRequiresLocalRoot(t *testing.T) {
	db := New(memory.New("nowhere"))
	_, err := db.Watch(context.Background())
	assert.ErrorIs(t, err, ErrNotWatchable)
	assert.ErrorIs(t, err, errdefs.ErrConfig)
}

func TestCache_WatchInvalidatesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	target := filepath.Join(root, "levels", "intro.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0644))

	db := New(fs.New(root))
	w, err := db.Watch(ctx)
	require.NoError(t, err)
	defer w.Close()

	h, err := db.Resolve(ctx, "levels/intro.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), h.Data())
	h.Release()

	require.NoError(t, os.WriteFile(target, []byte("v2"), 0644))
	assert.Eventually(t, func() bool {
		h, err := db.Resolve(ctx, "levels/intro.txt")
		if err != nil {
			return false
		}
		defer h.Release()
		return string(h.Data()) == "v2"
	}, 5*time.Second, 20*time.Millisecond)

	// 新文件出现后目录结构被重新加载
	require.NoError(t, os.WriteFile(filepath.Join(root, "levels", "boss.txt"), []byte("boss"), 0644))
	assert.Eventually(t, func() bool {
		ok, err := db.IsFile(ctx, "levels/boss.txt")
		return err == nil && ok
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
