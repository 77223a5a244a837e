// Package database 定义虚拟资源数据库的后端契约。
//
// Database 把逻辑路径 (types.PurePath) 与物理存储解耦：
// 实现可以是本地磁盘、内存或者将来的打包归档。
package database

import (
	"context"
	"errors"

	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
)

var (
	ErrNotFound     = errors.New("entry not found")
	ErrNotFile      = errors.New("entry is not a file")
	ErrRootResource = errors.New("cannot resolve the database root as a resource")
	ErrNotLoaded    = errors.New("database has not been loaded")
	ErrNotActive    = errors.New("database is not the active database")
	ErrNoDatabase   = errors.New("no database bound and no active database")
)

// Database defines the interface for a virtual archive backend.
// Implementations can be local disk, in-memory, or packed archives.
//
// 查询类方法 (List/Resolve/Exists/IsFile/IsDir) 在第一次使用时自动 Load。
// 实现不需要内部加锁，同一个实例不应被并发 Load/Resolve。
type Database interface {
	resource.Owner

	// IsLoaded 是非阻塞查询
	IsLoaded() bool

	// Load 幂等；可能做 I/O
	Load(ctx context.Context) error

	// Unload 丢弃所有缓存的条目，幂等
	Unload() error

	// List 返回 rel 本身以及其下的所有条目；rel 为空返回整个索引。
	// 空目录返回空切片而不是错误。
	List(ctx context.Context, rel types.PurePath) ([]Entry, error)

	// Resolve 读取完整内容并返回一个新的句柄，调用方负责 Release
	Resolve(ctx context.Context, rel types.PurePath) (*resource.Handle, error)

	Exists(ctx context.Context, rel types.PurePath) (bool, error)
	IsFile(ctx context.Context, rel types.PurePath) (bool, error)
	IsDir(ctx context.Context, rel types.PurePath) (bool, error)
}

// EnsureLoaded 在未加载时调用 Load
func EnsureLoaded(ctx context.Context, db Database) error {
	if db.IsLoaded() {
		return nil
	}
	return db.Load(ctx)
}
