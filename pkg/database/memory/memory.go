// Package memory 提供一个纯内存的 Database 实现。
// 适合测试以及把少量内置资源嵌入到程序中。
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
)

// Database 实现了 database.Database 接口
type Database struct {
	name string

	mu    sync.RWMutex // 保护 files / dirs (Put 可以和读取并发)
	files map[types.PurePath][]byte
	dirs  map[types.PurePath]struct{}

	index  *database.Index
	loaded bool

	destroy resource.DestroyFunc
}

type Option func(*Database)

// WithDestroyHook 给本库产出的每个 Resource 安装销毁钩子
func WithDestroyHook(fn resource.DestroyFunc) Option {
	return func(d *Database) { d.destroy = fn }
}

func New(name string, opts ...Option) *Database {
	d := &Database{
		name:  name,
		files: make(map[types.PurePath][]byte),
		dirs:  make(map[types.PurePath]struct{}),
		index: database.NewIndex(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Database) Name() string { return "memory:" + d.name }

// Put 写入文件并补齐所有父目录。已加载的库需要重新 Load 才能看到新条目。
func (d *Database) Put(rel string, data []byte) error {
	p, err := types.NewPurePath(rel).Normalize()
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return errdefs.Config("memory.put", "cannot store data at the database root").Wrap(database.ErrRootResource)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dirs[p]; ok {
		return errdefs.Config("memory.put", "path is already a directory").WithPath(p.String())
	}
	for dir := p.Dir(); !dir.IsRoot(); dir = dir.Dir() {
		if _, ok := d.files[dir]; ok {
			return errdefs.Config("memory.put", "parent path is a file").WithPath(dir.String())
		}
	}
	d.files[p] = slices.Clone(data)
	for dir := p.Dir(); !dir.IsRoot(); dir = dir.Dir() {
		d.dirs[dir] = struct{}{}
	}
	return nil
}

// Mkdir 创建一个 (可能为空的) 目录
func (d *Database) Mkdir(rel string) error {
	p, err := types.NewPurePath(rel).Normalize()
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for dir := p; !dir.IsRoot(); dir = dir.Dir() {
		if _, ok := d.files[dir]; ok {
			return errdefs.Config("memory.mkdir", "path is already a file").WithPath(dir.String())
		}
	}
	for dir := p; !dir.IsRoot(); dir = dir.Dir() {
		d.dirs[dir] = struct{}{}
	}
	return nil
}

func (d *Database) IsLoaded() bool { return d.loaded }

func (d *Database) Load(ctx context.Context) error {
	if d.loaded {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.index.Reset()
	for p := range d.dirs {
		d.index.Add(database.Entry{Path: p, Kind: database.EntryDir, DB: d})
	}
	for p, data := range d.files {
		d.index.Add(database.Entry{Path: p, Kind: database.EntryFile, Size: int64(len(data)), DB: d})
	}
	d.index.Sort()
	d.loaded = true
	return nil
}

func (d *Database) Unload() error {
	d.index.Reset()
	d.loaded = false
	return nil
}

func (d *Database) prepare(ctx context.Context, rel types.PurePath) (types.PurePath, error) {
	if err := database.EnsureLoaded(ctx, d); err != nil {
		return "", err
	}
	return rel.Normalize()
}

func (d *Database) List(ctx context.Context, rel types.PurePath) ([]database.Entry, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return nil, err
	}
	return d.index.Filter(p), nil
}

func (d *Database) Resolve(ctx context.Context, rel types.PurePath) (*resource.Handle, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return nil, err
	}
	if p.IsRoot() {
		return nil, errdefs.Resolution("memory.resolve", "cannot resolve the database root").
			WithSource(d.Name()).Wrap(database.ErrRootResource)
	}
	entry, ok := d.index.Find(p)
	if !ok {
		return nil, errdefs.Resolution("memory.resolve", "failed to resolve resource").
			WithPath(p.String()).WithSource(d.Name()).Wrap(database.ErrNotFound)
	}
	if !entry.IsFile() {
		return nil, errdefs.Resolution("memory.resolve", "requested path is not a file").
			WithPath(p.String()).WithSource(d.Name()).Wrap(database.ErrNotFile)
	}

	d.mu.RLock()
	data, ok := d.files[p]
	d.mu.RUnlock()
	if !ok {
		return nil, errdefs.Resolution("memory.resolve", "failed to resolve resource").
			WithPath(p.String()).WithSource(d.Name()).Wrap(database.ErrNotFound)
	}

	var opts []resource.Option
	if d.destroy != nil {
		opts = append(opts, resource.WithDestroyHook(d.destroy))
	}
	// 每次 Resolve 都返回新的拷贝和新的 Resource
	return resource.NewHandle(resource.New(d, slices.Clone(data), opts...)), nil
}

func (d *Database) Exists(ctx context.Context, rel types.PurePath) (bool, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return false, err
	}
	if p.IsRoot() {
		return true, nil
	}
	_, ok := d.index.Find(p)
	return ok, nil
}

func (d *Database) IsFile(ctx context.Context, rel types.PurePath) (bool, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return false, err
	}
	e, ok := d.index.Find(p)
	return ok && e.IsFile(), nil
}

func (d *Database) IsDir(ctx context.Context, rel types.PurePath) (bool, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return false, err
	}
	if p.IsRoot() {
		return true, nil
	}
	e, ok := d.index.Find(p)
	return ok && e.IsDir(), nil
}

var _ database.Database = (*Database)(nil)
