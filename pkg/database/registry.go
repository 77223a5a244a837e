package database

import (
	"context"
	"sync"

	"github.com/Cjw9000-py/mloader/pkg/errdefs"
)

// Registry 持有当前“激活”的 Database。
// 它是一个显式的值，由调用方创建并传给需要隐式解析的组件 (例如 Asset)，
// 而不是进程级的全局变量。
type Registry struct {
	mu     sync.RWMutex
	active Database
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Activate 把 db 设为激活数据库，返回 db 以便链式调用
func (r *Registry) Activate(db Database) Database {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = db
	return db
}

// Deactivate 仅当 db 正是激活数据库时才清除，否则返回生命周期错误
func (r *Registry) Deactivate(db Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active != db {
		name := ""
		if db != nil {
			name = db.Name()
		}
		return errdefs.Lifecycle("registry.deactivate", "tried to deactivate a database that is not active").
			WithSource(name).
			Wrap(ErrNotActive)
	}
	r.active = nil
	return nil
}

// Clear 无条件清除激活数据库
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
}

// Active 返回激活数据库，没有时为 nil
func (r *Registry) Active() Database {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

type ctxKey struct{}

// NewContext 返回携带“当前数据库”的 context，
// 用于按调用链作用域传递激活数据库。
func NewContext(ctx context.Context, db Database) context.Context {
	return context.WithValue(ctx, ctxKey{}, db)
}

// FromContext 取出 NewContext 放入的数据库
func FromContext(ctx context.Context) Database {
	if ctx == nil {
		return nil
	}
	db, _ := ctx.Value(ctxKey{}).(Database)
	return db
}
