package document

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	maxDepth = 100     // 防止深度嵌套耗尽栈
	maxNodes = 1 << 20 // 防止别名展开 (billion laughs) 耗尽内存
)

func parseYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	// 只有注释的文档
	if doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0) {
		return Null(), nil
	}
	c := &yamlConverter{}
	return c.convert(&doc, 0)
}

type yamlConverter struct {
	nodes int
}

func (c *yamlConverter) convert(y *yaml.Node, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("line %d: document nested deeper than %d levels", y.Line, maxDepth)
	}
	c.nodes++
	if c.nodes > maxNodes {
		return nil, fmt.Errorf("document expands to more than %d nodes", maxNodes)
	}

	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return Null(), nil
		}
		return c.convert(y.Content[0], depth)

	case yaml.AliasNode:
		if y.Alias == nil {
			return nil, fmt.Errorf("line %d: unresolved alias", y.Line)
		}
		return c.convert(y.Alias, depth+1)

	case yaml.ScalarNode:
		tag := y.ShortTag()
		if tag == TagNull {
			n := Null()
			n.Line = y.Line
			return n, nil
		}
		return &Node{kind: ScalarNode, tag: tag, text: y.Value, Line: y.Line}, nil

	case yaml.SequenceNode:
		out := &Node{kind: SequenceNode, Line: y.Line, items: make([]*Node, 0, len(y.Content))}
		for _, item := range y.Content {
			n, err := c.convert(item, depth+1)
			if err != nil {
				return nil, err
			}
			out.items = append(out.items, n)
		}
		return out, nil

	case yaml.MappingNode:
		return c.mapping(y, depth)

	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", y.Line, y.Kind)
	}
}

func (c *yamlConverter) mapping(y *yaml.Node, depth int) (*Node, error) {
	out := Mapping()
	out.Line = y.Line

	var merges []*yaml.Node
	for i := 0; i+1 < len(y.Content); i += 2 {
		k, v := y.Content[i], y.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			merges = append(merges, v)
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		if out.Get(k.Value) != nil {
			return nil, fmt.Errorf("line %d: mapping key %q already defined", k.Line, k.Value)
		}
		val, err := c.convert(v, depth+1)
		if err != nil {
			return nil, err
		}
		out.Set(k.Value, val)
	}

	// "<<" 合并键: 显式写出的键优先
	for _, m := range merges {
		src, err := c.convert(m, depth+1)
		if err != nil {
			return nil, err
		}
		sources := []*Node{src}
		if src.IsSequence() {
			sources = src.items
		}
		for _, s := range sources {
			if !s.IsMapping() {
				return nil, fmt.Errorf("line %d: merge value must be a mapping", m.Line)
			}
			for _, key := range s.keys {
				if out.Get(key) == nil {
					out.Set(key, s.fields[key])
				}
			}
		}
	}
	return out, nil
}
