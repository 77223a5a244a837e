// Package document 把文本/二进制内容解析成与格式无关的结构化树。
//
// 一个文档根是 {null, scalar, sequence, mapping} 之一，mapping 的键总是字符串。
// Definition 注册表只依赖这里的 Node，不依赖具体的 YAML / JSON / CBOR 格式。
package document

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Kind 是节点的形态
type Kind uint8

const (
	NullNode Kind = iota
	ScalarNode
	SequenceNode
	MappingNode
)

func (k Kind) String() string {
	switch k {
	case NullNode:
		return "null"
	case ScalarNode:
		return "scalar"
	case SequenceNode:
		return "sequence"
	case MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}

// 标量使用 YAML 1.2 core schema 的短标签描述类型
const (
	TagNull      = "!!null"
	TagStr       = "!!str"
	TagInt       = "!!int"
	TagFloat     = "!!float"
	TagBool      = "!!bool"
	TagBinary    = "!!binary"
	TagTimestamp = "!!timestamp"
)

// Node 是文档树中的一个节点
type Node struct {
	kind Kind

	tag  string // 标量类型
	text string // 标量的文本形式

	items []*Node

	keys   []string // 保留插入顺序
	fields map[string]*Node

	Line int // 源文件行号 (仅 YAML 提供)，0 表示未知
}

func Null() *Node { return &Node{kind: NullNode} }

// Scalar 创建一个标量节点，tag 为空时视为字符串
func Scalar(tag, text string) *Node {
	if tag == "" {
		tag = TagStr
	}
	return &Node{kind: ScalarNode, tag: tag, text: text}
}

func String(s string) *Node { return Scalar(TagStr, s) }

func Sequence(items ...*Node) *Node {
	return &Node{kind: SequenceNode, items: items}
}

func Mapping() *Node {
	return &Node{kind: MappingNode, fields: make(map[string]*Node)}
}

// Set 写入一个键；已存在的键保持原来的位置
func (n *Node) Set(key string, v *Node) *Node {
	if n.kind != MappingNode {
		panic("document: Set on a non-mapping node")
	}
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = v
	return n
}

func (n *Node) Kind() Kind {
	if n == nil {
		return NullNode
	}
	return n.kind
}

func (n *Node) IsNull() bool     { return n.Kind() == NullNode }
func (n *Node) IsScalar() bool   { return n.Kind() == ScalarNode }
func (n *Node) IsSequence() bool { return n.Kind() == SequenceNode }
func (n *Node) IsMapping() bool  { return n.Kind() == MappingNode }

// Tag 返回标量的短标签
func (n *Node) Tag() string {
	switch n.Kind() {
	case ScalarNode:
		return n.tag
	case NullNode:
		return TagNull
	case SequenceNode:
		return "!!seq"
	default:
		return "!!map"
	}
}

// Text 返回标量文本，非标量返回空串
func (n *Node) Text() string {
	if n.Kind() != ScalarNode {
		return ""
	}
	return n.text
}

// Len 返回序列元素数或映射键数
func (n *Node) Len() int {
	switch n.Kind() {
	case SequenceNode:
		return len(n.items)
	case MappingNode:
		return len(n.keys)
	default:
		return 0
	}
}

func (n *Node) Items() []*Node {
	if n.Kind() != SequenceNode {
		return nil
	}
	return slices.Clone(n.items)
}

func (n *Node) Index(i int) *Node {
	if n.Kind() != SequenceNode || i < 0 || i >= len(n.items) {
		return nil
	}
	return n.items[i]
}

// Keys 按文档中出现的顺序返回映射的键
func (n *Node) Keys() []string {
	if n.Kind() != MappingNode {
		return nil
	}
	return slices.Clone(n.keys)
}

// Get 返回键对应的节点，不存在时为 nil
func (n *Node) Get(key string) *Node {
	if n.Kind() != MappingNode {
		return nil
	}
	return n.fields[key]
}

// Decode 把节点反序列化到 v (遵循 `yaml:"..."` 结构体标签)
func (n *Node) Decode(v any) error {
	if err := n.toYAML().Decode(v); err != nil {
		return fmt.Errorf("decode %s node: %w", n.Kind(), err)
	}
	return nil
}

// Interface 转换为普通 Go 值:
// nil / string / int / float64 / bool / []byte / []any / map[string]any
func (n *Node) Interface() any {
	switch n.Kind() {
	case NullNode:
		return nil
	case ScalarNode:
		var v any
		if err := n.toYAML().Decode(&v); err != nil {
			return n.text
		}
		return v
	case SequenceNode:
		out := make([]any, len(n.items))
		for i, item := range n.items {
			out[i] = item.Interface()
		}
		return out
	default:
		out := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			out[k] = n.fields[k].Interface()
		}
		return out
	}
}

// toYAML 重建一个 yaml.Node，借用 yaml.v3 的解码器完成结构体映射
func (n *Node) toYAML() *yaml.Node {
	switch n.Kind() {
	case NullNode:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: TagNull, Value: "null"}
	case ScalarNode:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: n.tag, Value: n.text, Line: n.Line}
	case SequenceNode:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Line: n.Line}
		for _, item := range n.items {
			out.Content = append(out.Content, item.toYAML())
		}
		return out
	default:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: n.Line}
		for _, k := range n.keys {
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: TagStr, Value: k},
				n.fields[k].toYAML(),
			)
		}
		return out
	}
}
