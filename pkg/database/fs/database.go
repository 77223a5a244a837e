// Package fs 把本地目录映射为逻辑路径的 Database 实现。
package fs

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/ignore"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
)

// Database 实现了 database.Database 接口
type Database struct {
	root         string // 用户配置的根目录，比如: ~/game/data
	resolvedRoot string // Load 之后的绝对、规范路径

	index  *database.Index
	loaded bool

	matcher       *ignore.Matcher // 显式指定的忽略规则，nil 表示不过滤
	useIgnoreFile bool            // 是否启用默认规则和根目录下的 .mlignore
	destroy       resource.DestroyFunc
}

type Option func(*Database)

// WithIgnore 使用给定的忽略规则 (不含默认规则和 .mlignore)
func WithIgnore(m *ignore.Matcher) Option {
	return func(d *Database) { d.matcher = m }
}

// WithIgnoreFile 控制是否按 ignore.DefaultRules 和根目录下的 .mlignore 过滤条目。
// 默认关闭：索引包含根目录下的每个文件和目录。
func WithIgnoreFile(enabled bool) Option {
	return func(d *Database) { d.useIgnoreFile = enabled }
}

// WithDestroyHook 给本库产出的每个 Resource 安装销毁钩子
func WithDestroyHook(fn resource.DestroyFunc) Option {
	return func(d *Database) { d.destroy = fn }
}

// New 创建一个新的文件系统数据库，不做任何 I/O
func New(root string, opts ...Option) *Database {
	d := &Database{
		root:  root,
		index: database.NewIndex(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Database) Name() string { return "fs:" + d.root }

func (d *Database) Root() string { return d.root }

// ResolvedRoot 只有在 Load 之后才有值
func (d *Database) ResolvedRoot() string { return d.resolvedRoot }

// SetRoot 修改根目录；已加载时隐式 Unload
func (d *Database) SetRoot(root string) {
	if d.root == root {
		return
	}
	d.root = root
	if d.loaded {
		_ = d.Unload()
	}
}

func (d *Database) IsLoaded() bool { return d.loaded }

// prepareRoot 展开 ~，转绝对路径并解析符号链接
func prepareRoot(root string) (string, error) {
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (d *Database) Load(ctx context.Context) error {
	if d.loaded {
		return nil
	}

	if d.root == "" {
		return errdefs.Config("fs.load", "filesystem database root path is empty")
	}

	// 1. 解析根目录
	resolved, err := prepareRoot(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errdefs.Config("fs.load", "filesystem database root does not exist").WithPath(d.root).Wrap(err)
		}
		return errdefs.Config("fs.load", "failed to resolve filesystem database root").WithPath(d.root).Wrap(err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return errdefs.Config("fs.load", "filesystem database root does not exist").WithPath(resolved).Wrap(err)
	}
	if !info.IsDir() {
		return errdefs.Config("fs.load", "filesystem database root is not a directory").WithPath(resolved)
	}

	// 2. 准备忽略规则
	matcher := d.matcher
	if matcher == nil && d.useIgnoreFile {
		matcher, err = ignore.NewMatcher(resolved)
		if err != nil {
			return errdefs.Config("fs.load", "failed to read ignore rules").WithPath(resolved).Wrap(err)
		}
	}

	// 3. 一次完整的递归遍历
	if err := d.collectEntries(ctx, resolved, matcher); err != nil {
		d.index.Reset()
		return err
	}

	d.resolvedRoot = resolved
	d.loaded = true
	slog.Debug("filesystem database loaded",
		slog.String("root", resolved),
		slog.Int("entries", d.index.Len()),
	)
	return nil
}

func (d *Database) collectEntries(ctx context.Context, resolved string, matcher *ignore.Matcher) error {
	d.index.Reset()

	err := filepath.WalkDir(resolved, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		logical := types.NewPurePath(filepath.ToSlash(rel))

		if matcher.Matches(logical.String()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// 符号链接按目标类型归类，但不向下遍历
		info, err := os.Stat(path)
		if err != nil {
			// 悬空链接：直接跳过
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		e := database.Entry{Path: logical, DB: d}
		if info.IsDir() {
			e.Kind = database.EntryDir
		} else {
			e.Kind = database.EntryFile
			e.Size = info.Size()
		}
		d.index.Add(e)
		return nil
	})
	if err != nil {
		return errdefs.Config("fs.load", "failed to walk filesystem database root").WithPath(resolved).Wrap(err)
	}

	d.index.Sort()
	return nil
}

func (d *Database) Unload() error {
	d.index.Reset()
	d.resolvedRoot = ""
	d.loaded = false
	return nil
}

// prepare 自动加载并规范化路径
func (d *Database) prepare(ctx context.Context, rel types.PurePath) (types.PurePath, error) {
	if err := database.EnsureLoaded(ctx, d); err != nil {
		return "", err
	}
	return rel.Normalize()
}

// layout 返回逻辑路径对应的物理路径
func (d *Database) layout(rel types.PurePath) string {
	if rel.IsRoot() {
		return d.resolvedRoot
	}
	return filepath.Join(d.resolvedRoot, filepath.FromSlash(rel.String()))
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
		return nil, errdefs.Resolution("fs.resolve", "cannot resolve the database root as a resource").
			WithSource(d.Name()).Wrap(database.ErrRootResource)
	}

	if _, ok := d.index.Find(p); !ok {
		return nil, errdefs.Resolution("fs.resolve", "failed to resolve resource").
			WithPath(p.String()).WithSource(d.Name()).Wrap(database.ErrNotFound)
	}

	isFile, err := d.IsFile(ctx, p)
	if err != nil {
		return nil, err
	}
	if !isFile {
		return nil, errdefs.Resolution("fs.resolve", "requested path is not a file").
			WithPath(p.String()).WithSource(d.Name()).Wrap(database.ErrNotFile)
	}

	// 每次调用都重新读取完整文件，不跨调用缓存原始字节
	data, err := os.ReadFile(d.layout(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errdefs.Resolution("fs.resolve", "failed to resolve resource").
				WithPath(p.String()).WithSource(d.Name()).Wrap(database.ErrNotFound)
		}
		return nil, errdefs.Resolution("fs.resolve", "failed to read resource").
			WithPath(p.String()).WithSource(d.Name()).Wrap(err)
	}

	var opts []resource.Option
	if d.destroy != nil {
		opts = append(opts, resource.WithDestroyHook(d.destroy))
	}
	return resource.NewHandle(resource.New(d, data, opts...)), nil
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

// IsFile 要求条目在索引中，并且物理上仍然是一个文件
func (d *Database) IsFile(ctx context.Context, rel types.PurePath) (bool, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return false, err
	}
	if p.IsRoot() {
		return false, nil
	}
	if _, ok := d.index.Find(p); !ok {
		return false, nil
	}
	info, err := d.stat(p)
	if err != nil || info == nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (d *Database) IsDir(ctx context.Context, rel types.PurePath) (bool, error) {
	p, err := d.prepare(ctx, rel)
	if err != nil {
		return false, err
	}
	if p.IsRoot() {
		return true, nil
	}
	if _, ok := d.index.Find(p); !ok {
		return false, nil
	}
	info, err := d.stat(p)
	if err != nil || info == nil {
		return false, err
	}
	return info.IsDir(), nil
}

// stat 查询物理路径；不存在时返回 (nil, nil)，其他错误包装为解析错误
func (d *Database) stat(p types.PurePath) (os.FileInfo, error) {
	info, err := os.Stat(d.layout(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errdefs.Resolution("fs.stat", "failed to stat resource").
			WithPath(p.String()).WithSource(d.Name()).Wrap(err)
	}
	return info, nil
}

var _ database.Database = (*Database)(nil)
