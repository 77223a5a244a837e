package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	// 1. 空的临时目录 (没有 .mlignore)
	tmpDir := t.TempDir()

	matcher, err := NewMatcher(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".git", true},
		{".git/objects/aa", true}, // 子路径也应该被忽略
		{".DS_Store", true},
		{"textures/.DS_Store", true},
		{".mlignore", true},
		{"assets/levels/intro.txt", false}, // 普通文件不应忽略
		{"assets/textures", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	tmpDir := t.TempDir()

	ignoreContent := `
# comment
*.psd
build
!keep.psd
`
	err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte(ignoreContent), 0644)
	require.NoError(t, err)

	matcher, err := NewMatcher(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		// --- 默认规则依然要生效 ---
		{".git", true},

		// --- 用户规则生效 ---
		{"art.psd", true},
		{"textures/src/ape.psd", true},
		{"build", true},
		{"build/out.bin", true},

		{"textures/ape.png", false},

		// --- 负向规则 ---
		{"keep.psd", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_FromLinesAndNil(t *testing.T) {
	m := NewMatcherFromLines("*.tmp")
	assert.True(t, m.Matches("a/b.tmp"))
	assert.False(t, m.Matches(".git"), "defaults are not included")

	var none *Matcher
	assert.False(t, none.Matches("anything"))
}
