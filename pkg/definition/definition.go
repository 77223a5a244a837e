// Package definition 把结构化文档中的记录实例化为带类型、按标识符索引的定义。
//
// 文档的根必须是一个 mapping 或者 mapping 的序列，每个 mapping 都带一个
// 标量 `type` 字段，用来选择注册过的 Factory。
package definition

import (
	"github.com/Cjw9000-py/mloader/pkg/document"
)

// TypeField 是记录中选择类型的字段名
const TypeField = "type"

// Definition 是一条带标识符的声明式记录。
// 标识符在同一类型内必须非空且唯一。
type Definition interface {
	Identifier() string
}

// Decoder 是可选能力：自行从文档节点反序列化。
// 没有实现它的定义使用 node.Decode (yaml 结构体标签)。
type Decoder interface {
	DecodeDocument(node *document.Node) error
}

// Sourced 是可选能力：记录内容来源标签
type Sourced interface {
	SetSource(label string)
}

// Factory 为某个类型创建一个空的定义
type Factory func() Definition

// Base 提供常用字段，嵌入时需要加 `yaml:",inline"`
type Base struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Src  string `yaml:"-"`
}

func (b *Base) Identifier() string { return b.ID }

func (b *Base) SetSource(label string) { b.Src = label }

// Source 返回定义来自哪个文件
func (b *Base) Source() string { return b.Src }

// Generic 是不需要预先声明结构体的定义，所有字段保存在 Fields 中
type Generic struct {
	Base
	Fields map[string]any
}

// GenericFactory 适用于只在运行时才知道类型名的场景 (例如命令行)
func GenericFactory() Definition { return &Generic{} }

func (g *Generic) DecodeDocument(node *document.Node) error {
	g.ID = node.Get("id").Text()
	g.Type = node.Get(TypeField).Text()
	fields, _ := node.Interface().(map[string]any)
	g.Fields = fields
	return nil
}

var (
	_ Decoder = (*Generic)(nil)
	_ Sourced = (*Base)(nil)
)
