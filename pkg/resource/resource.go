// Package resource 实现了 Database 产出的内存数据块及其引用计数句柄。
//
// Resource 的生命周期由所有未释放的 Handle 共同持有：
// 计数归零的那一刻调用销毁钩子，且只调用一次。
package resource

import (
	"sync"
	"sync/atomic"
)

// Owner 是产出 Resource 的一方 (通常是某个 Database)。
// Resource 只持有非拥有的反向引用。
type Owner interface {
	Name() string
}

// CacheKey 是解析结果缓存的键 (Asset 用它的类型标签)
type CacheKey uint8

// DestroyFunc 在最后一个引用释放时被调用。
// 后端可以借此实现池化/复用，而不是把内存直接交给 GC。
type DestroyFunc func(r *Resource)

// Resource 是一块不可变的内存数据
type Resource struct {
	owner   Owner
	data    []byte
	refs    atomic.Int32
	dead    atomic.Bool
	destroy DestroyFunc

	mu    sync.Mutex // 保护 cache
	cache map[CacheKey]any
}

type Option func(*Resource)

// WithDestroyHook 替换默认的销毁逻辑
func WithDestroyHook(fn DestroyFunc) Option {
	return func(r *Resource) { r.destroy = fn }
}

// New 创建一个引用计数为 0 的 Resource。
// 调用方应立刻用 NewHandle 包装它。
func New(owner Owner, data []byte, opts ...Option) *Resource {
	r := &Resource{
		owner: owner,
		data:  data,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Owner 返回产出该 Resource 的 Database
func (r *Resource) Owner() Owner { return r.owner }

// Data 返回只读数据。调用方不得修改返回的切片。
func (r *Resource) Data() []byte { return r.data }

func (r *Resource) Size() int { return len(r.data) }

// Refs 返回当前引用计数 (仅用于诊断)
func (r *Resource) Refs() int32 { return r.refs.Load() }

func (r *Resource) Destroyed() bool { return r.dead.Load() }

// IncRef 增加外部引用计数
func (r *Resource) IncRef() {
	r.refs.Add(1)
}

// DecRef 减少引用计数，归零时销毁
func (r *Resource) DecRef() {
	n := r.refs.Add(-1)
	if n == 0 {
		r.destroySelf()
	} else if n < 0 {
		panic("resource: reference count dropped below zero")
	}
}

func (r *Resource) destroySelf() {
	// CAS 保证钩子最多执行一次
	if !r.dead.CompareAndSwap(false, true) {
		return
	}
	if r.destroy != nil {
		r.destroy(r)
		return
	}
	r.release()
}

// release 是默认的销毁逻辑：丢弃缓冲区和解析缓存
func (r *Resource) release() {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
	r.data = nil
}

// Cached 查询某个类型标签下的解析结果
func (r *Resource) Cached(key CacheKey) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache[key]
	return v, ok
}

// Store 写入解析结果。若已有值则保留先写入的那个并返回它，
// 这样并发解析同一个 Resource 的 Asset 会拿到同一份 payload。
func (r *Resource) Store(key CacheKey, v any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cache[key]; ok {
		return existing
	}
	if r.cache == nil {
		r.cache = make(map[CacheKey]any)
	}
	r.cache[key] = v
	return v
}
