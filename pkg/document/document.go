package document

import (
	"bytes"
	"errors"
	"strings"

	"github.com/Cjw9000-py/mloader/pkg/errdefs"
)

// Format 是文档的编码格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json" // 同时接受 JSONC (注释 + 尾逗号)
	FormatCBOR Format = "cbor"
)

// FormatFromPath 根据文件后缀选择格式，未知后缀按 YAML 处理
func FormatFromPath(path string) Format {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return FormatYAML
	}
	switch strings.ToLower(path[dot:]) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".cbor":
		return FormatCBOR
	default:
		return FormatYAML
	}
}

// Parse 解析 data。空内容 (或只有空白的文本格式) 返回 Null 节点。
func Parse(data []byte, format Format) (*Node, error) {
	if format != FormatCBOR && len(bytes.TrimSpace(data)) == 0 {
		return Null(), nil
	}
	if len(data) == 0 {
		return Null(), nil
	}

	var (
		root *Node
		err  error
	)
	switch format {
	case FormatYAML, "":
		root, err = parseYAML(data)
	case FormatJSON:
		root, err = parseJSON(data)
	case FormatCBOR:
		root, err = parseCBOR(data)
	default:
		return nil, errdefs.Parse("document.parse", "unsupported document format "+string(format))
	}
	if err != nil {
		return nil, errdefs.Parse("document.parse", "failed to parse "+string(format)+" document").Wrap(err)
	}
	return root, nil
}

// ParseFile 是 Parse(data, FormatFromPath(label)) 的简写，
// 错误信息中带上来源标签
func ParseFile(label string, data []byte) (*Node, error) {
	root, err := Parse(data, FormatFromPath(label))
	if err != nil {
		var e *errdefs.Error
		if errors.As(err, &e) {
			e.WithSource(label)
		}
		return nil, err
	}
	return root, nil
}
