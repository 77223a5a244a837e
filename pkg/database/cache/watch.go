package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/types"
	"github.com/fsnotify/fsnotify"
)

// ErrNotWatchable 表示底层数据库没有本地根目录可以监听
var ErrNotWatchable = errors.New("database has no local root to watch")

// Rooted 由映射到本地目录的后端实现 (例如 fs.Database)
type Rooted interface {
	ResolvedRoot() string
}

// Watcher 在文件变化时让缓存失效
type Watcher struct {
	db   *Database
	root string
	fsw  *fsnotify.Watcher

	done chan struct{}
	once sync.Once
}

// Watch 监听底层数据库的根目录。返回时所有目录都已经注册。
// 监听在 ctx 取消或者调用 Close 时结束。
//
// 文件内容变化只让对应路径失效；新建、删除、重命名会改变目录结构，
// 此时清空整个缓存并卸载底层数据库，下一次查询会重新 Load。
func (d *Database) Watch(ctx context.Context) (*Watcher, error) {
	rooted, ok := d.backend.(Rooted)
	if !ok {
		return nil, errdefs.Config("cache.watch", "backend cannot be watched").
			WithSource(d.backend.Name()).Wrap(ErrNotWatchable)
	}

	// 1. 先加载，拿到规范化的根目录和目录列表
	entries, err := d.List(ctx, "")
	if err != nil {
		return nil, err
	}
	d.ioMu.Lock()
	root := rooted.ResolvedRoot()
	d.ioMu.Unlock()
	if root == "" {
		return nil, errdefs.Config("cache.watch", "backend has no resolved root").
			WithSource(d.backend.Name()).Wrap(ErrNotWatchable)
	}

	// 2. fsnotify 不递归，每个目录单独注册
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errdefs.Config("cache.watch", "failed to create file watcher").Wrap(err)
	}
	dirs := []string{root}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, filepath.FromSlash(e.Path.String())))
		}
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, errdefs.Config("cache.watch", "failed to watch directory").WithPath(dir).Wrap(err)
		}
	}

	w := &Watcher{db: d, root: root, fsw: fsw, done: make(chan struct{})}
	go w.loop(ctx)
	slog.Debug("resource cache watching", slog.String("root", root), slog.Int("dirs", len(dirs)))
	return w, nil
}

// Done 在监听结束后关闭
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Close 停止监听并等待后台 goroutine 退出
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() { err = w.fsw.Close() })
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.once.Do(func() { _ = w.fsw.Close() })
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("resource cache watcher error", slog.String("root", w.root), slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	p := types.NewPurePath(filepath.ToSlash(rel))

	if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// 新目录也需要监听
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				_ = w.fsw.Add(event.Name)
			}
		}
		w.db.Purge()
		w.db.ioMu.Lock()
		_ = w.db.backend.Unload()
		w.db.ioMu.Unlock()
		slog.Debug("resource cache reset after tree change",
			slog.String("path", p.String()),
			slog.String("op", event.Op.String()),
		)
		return
	}
	if event.Has(fsnotify.Write) {
		w.db.Invalidate(p)
	}
}
