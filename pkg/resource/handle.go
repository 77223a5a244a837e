package resource

import "sync/atomic"

// Handle 是 Resource 的共享所有权句柄。
//
//   - Clone: 计数 +1，共享同一个 Resource
//   - Move: 转移所有权，计数不变，源句柄失效
//   - Release: 计数 -1 (幂等)
//
// 零值 (或 nil) Handle 是合法的空句柄。
type Handle struct {
	res atomic.Pointer[Resource]
}

// NewHandle 包装 r 并增加一次引用
func NewHandle(r *Resource) *Handle {
	h := &Handle{}
	if r != nil {
		r.IncRef()
		h.res.Store(r)
	}
	return h
}

// Resource 返回句柄指向的 Resource，空句柄返回 nil
func (h *Handle) Resource() *Resource {
	if h == nil {
		return nil
	}
	return h.res.Load()
}

func (h *Handle) Valid() bool { return h.Resource() != nil }

// Data 是 h.Resource().Data() 的便捷写法
func (h *Handle) Data() []byte {
	if r := h.Resource(); r != nil {
		return r.Data()
	}
	return nil
}

func (h *Handle) Size() int {
	if r := h.Resource(); r != nil {
		return r.Size()
	}
	return 0
}

// Clone 返回共享同一 Resource 的新句柄
func (h *Handle) Clone() *Handle {
	return NewHandle(h.Resource())
}

// Move 把所有权转移到新句柄，h 变为空句柄
func (h *Handle) Move() *Handle {
	out := &Handle{}
	if h == nil {
		return out
	}
	if r := h.res.Swap(nil); r != nil {
		out.res.Store(r)
	}
	return out
}

// Release 释放引用，重复调用无副作用
func (h *Handle) Release() {
	if h == nil {
		return
	}
	if r := h.res.Swap(nil); r != nil {
		r.DecRef()
	}
}

// Assign 是拷贝赋值: h 改为指向 other 的 Resource。
// 自赋值或指向同一个 Resource 时直接返回，避免先减后加导致提前销毁。
func (h *Handle) Assign(other *Handle) {
	if h == nil || h == other {
		return
	}
	next := other.Resource()
	if h.res.Load() == next {
		return
	}
	if next != nil {
		next.IncRef()
	}
	if prev := h.res.Swap(next); prev != nil {
		prev.DecRef()
	}
}

// MoveFrom 是移动赋值: 立即释放 h 之前的目标 (恰好一次)，
// 然后接管 other 的 Resource，other 变为空句柄。
// nil 的 h 不接管任何东西，other 保持不变。
func (h *Handle) MoveFrom(other *Handle) {
	if h == nil || h == other {
		return
	}
	var next *Resource
	if other != nil {
		next = other.res.Swap(nil)
	}
	if prev := h.res.Swap(next); prev != nil {
		prev.DecRef()
	}
}
