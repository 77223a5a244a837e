// pkg/database/index.go
package database

import (
	"slices"
	"strings"

	"github.com/Cjw9000-py/mloader/pkg/types"
)

// EntryKind 区分文件和目录
type EntryKind uint8

const (
	EntryFile EntryKind = iota + 1
	EntryDir
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Entry 代表数据库中的一条记录
type Entry struct {
	Path types.PurePath // 规范化的逻辑路径
	Kind EntryKind
	Size int64    // 文件大小，目录为 0
	DB   Database // 非拥有的反向引用
}

func (e Entry) IsFile() bool { return e.Kind == EntryFile }
func (e Entry) IsDir() bool  { return e.Kind == EntryDir }

// Index 是后端共享的条目索引: 按 POSIX 路径排序且去重。
// 它不是并发安全的，由所属的 Database 负责串行访问。
type Index struct {
	entries []Entry
	byPath  map[types.PurePath]int
	sorted  bool
}

func NewIndex() *Index {
	return &Index{
		byPath: make(map[types.PurePath]int),
		sorted: true,
	}
}

// Add 插入一条记录；路径已存在时返回 false (先写入者保留)
func (i *Index) Add(e Entry) bool {
	if e.Path.IsRoot() {
		return false
	}
	if _, ok := i.byPath[e.Path]; ok {
		return false
	}
	i.byPath[e.Path] = len(i.entries)
	i.entries = append(i.entries, e)
	i.sorted = false
	return true
}

// Sort 按路径字典序排序并重建位置表
func (i *Index) Sort() {
	if i.sorted {
		return
	}
	slices.SortFunc(i.entries, func(a, b Entry) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})
	for pos, e := range i.entries {
		i.byPath[e.Path] = pos
	}
	i.sorted = true
}

// Find 精确查找，rel 必须已经 Normalize
func (i *Index) Find(rel types.PurePath) (Entry, bool) {
	pos, ok := i.byPath[rel]
	if !ok {
		return Entry{}, false
	}
	return i.entries[pos], true
}

// Entries 返回排序后的副本
func (i *Index) Entries() []Entry {
	i.Sort()
	return slices.Clone(i.entries)
}

// Filter 返回 prefix 本身以及其下的条目；根前缀返回全部
func (i *Index) Filter(prefix types.PurePath) []Entry {
	if prefix.IsRoot() {
		return i.Entries()
	}
	i.Sort()
	out := make([]Entry, 0)
	for _, e := range i.entries {
		if e.Path.HasPrefix(prefix) {
			out = append(out, e)
		}
	}
	return out
}

func (i *Index) Len() int { return len(i.entries) }

func (i *Index) IsEmpty() bool { return len(i.entries) == 0 }

func (i *Index) Reset() {
	i.entries = nil
	i.byPath = make(map[types.PurePath]int)
	i.sorted = true
}
