package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是数据库根目录下用户自定义忽略规则的文件名
const FileName = ".mlignore"

// DefaultRules 是始终生效的系统级忽略规则
var DefaultRules = []string{
	// --- 版本控制元数据 ---
	".git",

	// --- 规则文件本身不作为资源 ---
	FileName,

	// --- 常见垃圾文件 ---
	".DS_Store", // macOS
	"Thumbs.db", // Windows
}

// Matcher 封装了忽略逻辑
// 它负责判断一个条目是否应该从 Database 的索引中排除
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化忽略匹配器
// rootPath: 数据库根目录（用于查找 .mlignore 文件）
func NewMatcher(rootPath string) (*Matcher, error) {
	var ignorer *gitignore.GitIgnore
	var err error

	ignoreFilePath := filepath.Join(rootPath, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 情况 A: 用户定义了 .mlignore，文件内容和默认规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, DefaultRules...)
	} else {
		// 情况 B: 仅编译默认规则
		ignorer = gitignore.CompileIgnoreLines(DefaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// NewMatcherFromLines 只用给定的规则 (不含默认规则)
func NewMatcherFromLines(lines ...string) *Matcher {
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于数据库根目录的 POSIX 路径 (例如 "textures/ape.png")
// 返回: true 表示应该忽略 (Skip), false 表示应该保留 (Keep)
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
