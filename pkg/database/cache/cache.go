// Package cache 为任意 database.Database 添加按路径共享的 Resource 缓存。
//
// 底层后端每次 Resolve 都会产生新的 Resource (以及空的解析缓存)。
// 包上一层 cache.Database 之后，同一路径的多次 Resolve 拿到的是同一个 Resource 的克隆，
// 于是多个 Asset 可以共享同一份解析结果。失效可以显式调用 Invalidate/Purge，
// 也可以用 Watch 在文件变化时自动触发。
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Database 是一个装饰器，它为底层的 database.Database 添加共享句柄缓存
type Database struct {
	backend database.Database // 被装饰的底层数据库

	ioMu sync.Mutex // 串行化对 backend 的访问

	mu      sync.Mutex // 保护 entries
	entries map[types.PurePath]*resource.Handle

	group singleflight.Group // 同一路径的并发 miss 只 Resolve 一次

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats 是缓存的命中统计
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

func New(backend database.Database) *Database {
	return &Database{
		backend: backend,
		entries: make(map[types.PurePath]*resource.Handle),
	}
}

func (d *Database) Name() string { return "cache:" + d.backend.Name() }

// Backend 返回被装饰的数据库
func (d *Database) Backend() database.Database { return d.backend }

func (d *Database) IsLoaded() bool {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.backend.IsLoaded()
}

func (d *Database) Load(ctx context.Context) error {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.backend.Load(ctx)
}

// Unload 丢弃所有缓存的句柄，然后卸载底层数据库
func (d *Database) Unload() error {
	d.Purge()
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.backend.Unload()
}

// List 透传，返回的条目指向缓存层
func (d *Database) List(ctx context.Context, rel types.PurePath) ([]database.Entry, error) {
	d.ioMu.Lock()
	entries, err := d.backend.List(ctx, rel)
	d.ioMu.Unlock()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].DB = d
	}
	return entries, nil
}

func (d *Database) Exists(ctx context.Context, rel types.PurePath) (bool, error) {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.backend.Exists(ctx, rel)
}

func (d *Database) IsFile(ctx context.Context, rel types.PurePath) (bool, error) {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.backend.IsFile(ctx, rel)
}

func (d *Database) IsDir(ctx context.Context, rel types.PurePath) (bool, error) {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.backend.IsDir(ctx, rel)
}

// Resolve 优先返回缓存中的 Resource，调用方负责 Release 返回的句柄
func (d *Database) Resolve(ctx context.Context, rel types.PurePath) (*resource.Handle, error) {
	p, err := rel.Normalize()
	if err != nil {
		return nil, err
	}

	for {
		// 1. 查缓存
		if h := d.lookup(p); h != nil {
			d.hits.Add(1)
			return h, nil
		}

		// 2. 缓存未命中，穿透到底层数据库
		_, err, _ := d.group.Do(p.String(), func() (any, error) {
			return nil, d.fill(ctx, p)
		})
		if err != nil {
			return nil, err
		}

		// 3. 回填之后被 Invalidate 的话重新来一次
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (d *Database) lookup(p types.PurePath) *resource.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.entries[p]; ok && h.Valid() {
		return h.Clone()
	}
	return nil
}

func (d *Database) fill(ctx context.Context, p types.PurePath) error {
	d.mu.Lock()
	_, ok := d.entries[p]
	d.mu.Unlock()
	if ok {
		return nil
	}

	d.ioMu.Lock()
	h, err := d.backend.Resolve(ctx, p)
	d.ioMu.Unlock()
	if err != nil {
		return err
	}
	d.misses.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[p]; ok {
		h.Release()
		return nil
	}
	d.entries[p] = h
	return nil
}

// Invalidate 丢弃某个路径的缓存句柄。
// 已经发出去的句柄仍然有效，只是之后的 Resolve 会重新读取。
func (d *Database) Invalidate(rel types.PurePath) bool {
	p, err := rel.Normalize()
	if err != nil {
		return false
	}
	d.mu.Lock()
	h, ok := d.entries[p]
	delete(d.entries, p)
	d.mu.Unlock()

	if ok {
		h.Release()
		slog.Debug("resource cache invalidated", slog.String("path", p.String()))
	}
	return ok
}

// Purge 丢弃所有缓存句柄
func (d *Database) Purge() {
	d.mu.Lock()
	entries := d.entries
	d.entries = make(map[types.PurePath]*resource.Handle)
	d.mu.Unlock()

	for _, h := range entries {
		h.Release()
	}
	if len(entries) > 0 {
		slog.Debug("resource cache purged", slog.Int("entries", len(entries)))
	}
}

func (d *Database) Stats() Stats {
	d.mu.Lock()
	n := len(d.entries)
	d.mu.Unlock()
	return Stats{
		Hits:    d.hits.Load(),
		Misses:  d.misses.Load(),
		Entries: n,
	}
}

var _ database.Database = (*Database)(nil)
