// Package scanner 在 Database 中查找定义文档。
package scanner

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/types"
)

// DefaultExtensions 是默认识别为定义文档的后缀
var DefaultExtensions = []string{".yml", ".yaml", ".json", ".jsonc", ".cbor"}

// Scanner 收集 Database 中所有后缀匹配的文件
type Scanner struct {
	db         database.Database
	extensions []string
	configs    []types.PurePath
}

type Option func(*Scanner)

// WithExtensions 替换默认的后缀列表 (大小写不敏感，可以省略前导的点)
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.extensions = s.extensions[:0]
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions = append(s.extensions, ext)
		}
	}
}

func New(db database.Database, opts ...Option) *Scanner {
	s := &Scanner{
		db:         db,
		extensions: slices.Clone(DefaultExtensions),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scanner) Database() database.Database { return s.db }

// IsConfig 判断路径的后缀是否匹配
func (s *Scanner) IsConfig(p types.PurePath) bool {
	return slices.Contains(s.extensions, strings.ToLower(p.Ext()))
}

// Scan 清空上次的结果，重新扫描整个数据库，返回排序后的逻辑路径
func (s *Scanner) Scan(ctx context.Context) ([]types.PurePath, error) {
	s.Clear()

	entries, err := s.db.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsFile() || !s.IsConfig(e.Path) {
			continue
		}
		s.configs = append(s.configs, e.Path)
	}
	slices.Sort(s.configs)
	return s.Configs(), nil
}

// Configs 返回最近一次 Scan 的结果
func (s *Scanner) Configs() []types.PurePath {
	return slices.Clone(s.configs)
}

func (s *Scanner) Clear() {
	s.configs = nil
}

// Dump 把扫描结果写到 w
func (s *Scanner) Dump(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Scanned files:"); err != nil {
		return err
	}
	for _, p := range s.configs {
		if _, err := fmt.Fprintf(w, "\t%s\n", p); err != nil {
			return err
		}
	}
	return nil
}
