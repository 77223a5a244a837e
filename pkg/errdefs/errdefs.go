// Package errdefs 定义 mloader 所有组件共享的错误分类。
//
// 每个失败都归入一个封闭的 Kind 集合 (配置 / 解析路径 / 文档解析 / 生命周期)，
// 调用方可以用 errors.Is(err, errdefs.ErrParse) 按类别分支，
// 而不是去匹配错误字符串。
package errdefs

import (
	"errors"
	"strings"
)

// Kind 是错误的类别
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfig
	KindResolution
	KindParse
	KindLifecycle
)

var (
	ErrConfig     = errors.New("configuration error")
	ErrResolution = errors.New("resolution error")
	ErrParse      = errors.New("parse error")
	ErrLifecycle  = errors.New("lifecycle error")
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindResolution:
		return "resolution"
	case KindParse:
		return "parse"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// sentinel 返回 Kind 对应的哨兵错误
func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindResolution:
		return ErrResolution
	case KindParse:
		return ErrParse
	case KindLifecycle:
		return ErrLifecycle
	default:
		return nil
	}
}

// Error carries the failure kind plus enough context (path, type name,
// source label) to diagnose the failure without a debugger.
type Error struct {
	Kind   Kind
	Op     string // 出错的操作，例如 "fs.load"
	Path   string // 逻辑路径或物理路径
	Type   string // definition 类型名
	Source string // 内容来源标签
	Msg    string
	Err    error // 底层原因
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Type != "" {
		b.WriteString(" (type ")
		b.WriteString(e.Type)
		b.WriteString(")")
	}
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Source != "" {
		b.WriteString(" [source ")
		b.WriteString(e.Source)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is 能按类别匹配
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Config(op, msg string) *Error     { return newError(KindConfig, op, msg) }
func Resolution(op, msg string) *Error { return newError(KindResolution, op, msg) }
func Parse(op, msg string) *Error      { return newError(KindParse, op, msg) }
func Lifecycle(op, msg string) *Error  { return newError(KindLifecycle, op, msg) }

func (e *Error) WithPath(p string) *Error {
	e.Path = p
	return e
}

func (e *Error) WithType(t string) *Error {
	e.Type = t
	return e
}

func (e *Error) WithSource(s string) *Error {
	e.Source = s
	return e
}

func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf 返回 err 链中第一个 *Error 的 Kind
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
