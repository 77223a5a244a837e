// pkg/types/path.go
package types

import (
	"errors"
	"path"
	"strings"

	"github.com/Cjw9000-py/mloader/pkg/errdefs"
)

var (
	ErrAbsolutePath = errors.New("database paths must be relative")
	ErrEscapesRoot  = errors.New("path escapes the database root")
)

// PurePath 代表一个逻辑路径 (POSIX 风格，与后端存储无关)
// 这是一个“值对象”，应当是不可变的。
// 作为查找 Key 使用前必须先 Normalize。
type PurePath string

// NewPurePath 把任意分隔符的路径转成 POSIX 形式
func NewPurePath(s string) PurePath {
	return PurePath(strings.ReplaceAll(s, "\\", "/"))
}

func (p PurePath) String() string { return string(p) }

// IsRoot 仅对已经 Normalize 的路径有意义
func (p PurePath) IsRoot() bool { return p == "" }

// IsAbs 检查是否为绝对路径 (POSIX 根或 Windows 盘符)
func (p PurePath) IsAbs() bool {
	s := strings.ReplaceAll(string(p), "\\", "/")
	if strings.HasPrefix(s, "/") {
		return true
	}
	if len(s) >= 2 && s[1] == ':' && isDriveLetter(s[0]) {
		return true
	}
	return false
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Normalize 返回规范化后的逻辑路径:
// 无前导 "/", 无 "." 段, 无尾部 "/"。空路径代表根目录。
func (p PurePath) Normalize() (PurePath, error) {
	if p.IsAbs() {
		return "", errdefs.Resolution("path.normalize", "absolute path where a relative one is required").
			WithPath(string(p)).
			Wrap(ErrAbsolutePath)
	}

	s := strings.ReplaceAll(string(p), "\\", "/")
	if s == "" || s == "." {
		return "", nil
	}

	cleaned := path.Clean(s)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errdefs.Resolution("path.normalize", "path leaves the database root").
			WithPath(string(p)).
			Wrap(ErrEscapesRoot)
	}
	return PurePath(cleaned), nil
}

// MustNormalize 用于测试和常量路径
func MustNormalize(s string) PurePath {
	p, err := NewPurePath(s).Normalize()
	if err != nil {
		panic(err)
	}
	return p
}

// Join 拼接路径段 (结果未 Normalize)
func (p PurePath) Join(elem ...string) PurePath {
	parts := make([]string, 0, len(elem)+1)
	if p != "" {
		parts = append(parts, string(p))
	}
	for _, e := range elem {
		if e != "" {
			parts = append(parts, strings.ReplaceAll(e, "\\", "/"))
		}
	}
	return PurePath(strings.Join(parts, "/"))
}

func (p PurePath) Base() string {
	if p == "" {
		return ""
	}
	return path.Base(string(p))
}

// Ext 返回后缀 (包含 "."), 例如 ".yaml"
func (p PurePath) Ext() string { return path.Ext(string(p)) }

func (p PurePath) Dir() PurePath {
	d := path.Dir(string(p))
	if d == "." || d == "/" {
		return ""
	}
	return PurePath(d)
}

// HasPrefix 按路径段比较: "a/b" 是 "a/b/c" 的前缀，但不是 "a/bc" 的前缀。
// 根路径是所有路径的前缀。
func (p PurePath) HasPrefix(dir PurePath) bool {
	if dir == "" {
		return true
	}
	if p == dir {
		return true
	}
	return strings.HasPrefix(string(p), string(dir)+"/")
}

// Depth 返回路径段数量，根为 0
func (p PurePath) Depth() int {
	if p == "" {
		return 0
	}
	return strings.Count(string(p), "/") + 1
}
