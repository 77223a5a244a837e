// Package asset 在 Database 条目之上提供带类型、惰性解析、带缓存的视图。
//
// 一个 Asset 绑定 (Database, 逻辑路径)，第一次访问 payload 时才 Resolve，
// 解析结果按 Asset 种类缓存在 Resource 上，
// 所以共享同一个 Resource 的多个 Asset 只解析一次。
package asset

import (
	"context"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
)

// Kind 是 Asset 的种类，同时也是 Resource 上的缓存键
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBinary
	KindImage
	KindShader
	KindSound
	KindFont
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindImage:
		return "image"
	case KindShader:
		return "shader"
	case KindSound:
		return "sound"
	case KindFont:
		return "font"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// ParseKind 是 String 的逆操作，未知名称返回 KindInvalid
func ParseKind(s string) Kind {
	for k := KindBinary; k <= KindText; k++ {
		if k.String() == s {
			return k
		}
	}
	return KindInvalid
}

// State 描述 Asset 的加载进度
type State uint8

const (
	StateUnloaded State = iota // 还没有 Resource 句柄
	StateUnparsed              // 已经 Resolve，但本次还没拿到 payload
	StateParsed                // payload 可用 (刚解析或来自缓存)
)

func (s State) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateParsed:
		return "parsed"
	default:
		return "unloaded"
	}
}

// Asset 是所有种类共用的核心。T 是该种类解析后的 payload 类型。
//
// Asset 本身不是并发安全的；并发安全只在 Resource 的缓存这一层保证。
type Asset[T any] struct {
	kind  Kind
	parse func(data []byte) T

	db       database.Database
	registry *database.Registry
	path     types.PurePath

	handle *resource.Handle
	state  State
}

type Option func(*options)

type options struct {
	db       database.Database
	registry *database.Registry
}

// WithDatabase 显式绑定数据库
func WithDatabase(db database.Database) Option {
	return func(o *options) { o.db = db }
}

// WithRegistry 指定在没有绑定数据库时使用的注册表
func WithRegistry(reg *database.Registry) Option {
	return func(o *options) { o.registry = reg }
}

func newAsset[T any](kind Kind, path string, parse func([]byte) T, opts ...Option) *Asset[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Asset[T]{
		kind:     kind,
		parse:    parse,
		db:       o.db,
		registry: o.registry,
		path:     types.NewPurePath(path),
	}
}

func (a *Asset[T]) Kind() Kind { return a.kind }

func (a *Asset[T]) State() State { return a.state }

func (a *Asset[T]) Path() types.PurePath { return a.path }

// Database 返回绑定的数据库，可能为 nil
func (a *Asset[T]) Database() database.Database { return a.db }

// Bind 绑定到 db，丢弃已经解析的句柄
func (a *Asset[T]) Bind(db database.Database) {
	a.Unload()
	a.db = db
}

// BindPath 同时修改数据库和路径
func (a *Asset[T]) BindPath(db database.Database, path string) {
	a.Unload()
	a.db = db
	a.path = types.NewPurePath(path)
}

// SetPath 修改路径，丢弃已经解析的句柄
func (a *Asset[T]) SetPath(path string) {
	a.Unload()
	a.path = types.NewPurePath(path)
}

// Unload 释放句柄并回到 StateUnloaded。
// 缓存在 Resource 上，所以不会有旧的 payload 残留到新路径。
func (a *Asset[T]) Unload() {
	a.handle.Release()
	a.handle = nil
	a.state = StateUnloaded
}

// Touch 确保 payload 已经解析
func (a *Asset[T]) Touch(ctx context.Context) error {
	_, err := a.Payload(ctx)
	return err
}

// Handle 返回底层 Resource 的一个新句柄，调用方负责 Release
func (a *Asset[T]) Handle(ctx context.Context) (*resource.Handle, error) {
	res, err := a.ensureResource(ctx)
	if err != nil {
		return nil, err
	}
	return resource.NewHandle(res), nil
}

// Payload 返回解析结果：先查 Resource 缓存，没有再解析并写入缓存
func (a *Asset[T]) Payload(ctx context.Context) (T, error) {
	var zero T

	res, err := a.ensureResource(ctx)
	if err != nil {
		return zero, err
	}

	key := resource.CacheKey(a.kind)
	if v, ok := res.Cached(key); ok {
		if p, ok := v.(T); ok {
			a.state = StateParsed
			return p, nil
		}
	}

	// 并发解析时 Store 返回先写入的那一份
	stored := res.Store(key, a.parse(res.Data()))
	p, ok := stored.(T)
	if !ok {
		return zero, errdefs.Parse("asset.payload", "cached payload has an unexpected type").
			WithPath(a.path.String()).WithType(a.kind.String())
	}
	a.state = StateParsed
	return p, nil
}

// ensureDatabase 按优先级选择数据库:
// 已绑定 > context 中的当前数据库 > 注册表中的激活数据库。
// 选中的数据库会被记住。
func (a *Asset[T]) ensureDatabase(ctx context.Context) (database.Database, error) {
	if a.db != nil {
		return a.db, nil
	}
	if db := database.FromContext(ctx); db != nil {
		a.db = db
		return db, nil
	}
	if db := a.registry.Active(); db != nil {
		a.db = db
		return db, nil
	}
	return nil, errdefs.Lifecycle("asset.bind", "asset has no bound database and no active database").
		WithPath(a.path.String()).
		WithType(a.kind.String()).
		Wrap(database.ErrNoDatabase)
}

func (a *Asset[T]) ensureResource(ctx context.Context) (*resource.Resource, error) {
	if res := a.handle.Resource(); res != nil {
		return res, nil
	}

	db, err := a.ensureDatabase(ctx)
	if err != nil {
		return nil, err
	}
	h, err := db.Resolve(ctx, a.path)
	if err != nil {
		return nil, err
	}

	a.handle = h
	a.state = StateUnparsed
	return h.Resource(), nil
}
