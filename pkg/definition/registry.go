package definition

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/document"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency 是批量 ingest 时同时解析的文档数量
const DefaultConcurrency = 4

// Registry 保存类型工厂以及按 (类型, 标识符) 索引的定义。
// 定义只能通过 Ingest* 增加，Clear 清空定义但保留工厂。
type Registry struct {
	mu          sync.RWMutex
	factories   map[string]Factory
	definitions map[string]map[string]Definition

	concurrency int
}

type Option func(*Registry)

// WithConcurrency 限制 IngestPaths 同时解析的文档数量
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		factories:   make(map[string]Factory),
		definitions: make(map[string]map[string]Definition),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterType 注册一个类型。工厂不能为 nil，同名类型不能重复注册。
func (r *Registry) RegisterType(name string, factory Factory) error {
	if name == "" {
		return errdefs.Config("definition.register", "definition type name is empty")
	}
	if factory == nil {
		return errdefs.Config("definition.register", "attempted to register definition type with nil factory").WithType(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return errdefs.Config("definition.register", "definition type is already registered").WithType(name)
	}
	r.factories[name] = factory
	return nil
}

// IngestPath 从 db 中 Resolve 一个文档并导入
func (r *Registry) IngestPath(ctx context.Context, db database.Database, rel types.PurePath) error {
	return r.IngestPaths(ctx, db, []types.PurePath{rel})
}

// IngestPaths 按输入顺序逐个导入文档，所以同一个标识符总是由排在前面的文档胜出。
// Resolve 在调用方的 goroutine 里串行执行 (Database 不保证并发安全)，
// 只有解析阶段是并发的。
// 出错时，排在出错文档之前的记录保留，之后的文档不再导入。
func (r *Registry) IngestPaths(ctx context.Context, db database.Database, rels []types.PurePath) error {
	if len(rels) == 0 {
		return nil
	}

	// 1. 串行 Resolve，遇到第一个失败就停下
	hs := make([]*resource.Handle, 0, len(rels))
	labels := make([]string, 0, len(rels))
	defer func() {
		for _, h := range hs {
			h.Release()
		}
	}()
	var resolveErr error
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			resolveErr = err
			break
		}
		label := rel.String()
		if p, err := rel.Normalize(); err == nil {
			label = p.String()
		}

		h, err := db.Resolve(ctx, rel)
		if err != nil {
			resolveErr = err
			break
		}
		hs = append(hs, h)
		labels = append(labels, label)
	}

	// 2. 并发解析已经读到的内容，每个文档的错误单独记录
	docs := make([]*document.Node, len(hs))
	errs := make([]error, len(hs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, h := range hs {
		g.Go(func() error {
			docs[i], errs[i] = parse(h.Data(), labels[i])
			return nil
		})
	}
	_ = g.Wait()

	// 3. 按输入顺序实例化
	for i, root := range docs {
		if errs[i] != nil {
			return errs[i]
		}
		if err := r.ingestDocument(root, labels[i]); err != nil {
			return err
		}
	}
	return resolveErr
}

// IngestResource 导入一个已经 Resolve 的资源，label 用于选择格式和错误信息
func (r *Registry) IngestResource(h *resource.Handle, label string) error {
	if !h.Valid() {
		return errdefs.Resolution("definition.ingest", "resource handle is empty").WithSource(label)
	}
	return r.IngestBytes(h.Data(), label)
}

// IngestResources 按顺序导入多个资源
func (r *Registry) IngestResources(hs []*resource.Handle, labels []string) error {
	if len(hs) != len(labels) {
		return errdefs.Config("definition.ingest",
			fmt.Sprintf("got %d resources but %d labels", len(hs), len(labels)))
	}
	for i, h := range hs {
		if err := r.IngestResource(h, labels[i]); err != nil {
			return err
		}
	}
	return nil
}

// IngestBytes 解析 data 并导入其中的记录。空内容和 null 文档不做任何事。
func (r *Registry) IngestBytes(data []byte, label string) error {
	root, err := parse(data, label)
	if err != nil {
		return err
	}
	return r.ingestDocument(root, label)
}

func parse(data []byte, label string) (*document.Node, error) {
	if len(data) == 0 {
		return document.Null(), nil
	}
	return document.ParseFile(label, data)
}

func (r *Registry) ingestDocument(root *document.Node, label string) error {
	var entries []*document.Node
	switch root.Kind() {
	case document.NullNode:
		return nil
	case document.MappingNode:
		entries = []*document.Node{root}
	case document.SequenceNode:
		entries = root.Items()
	default:
		return errdefs.Parse("definition.ingest", "document root must be a mapping or a sequence of mappings").WithSource(label)
	}

	for _, entry := range entries {
		if !entry.IsMapping() {
			return errdefs.Parse("definition.ingest", "each definition entry must be a mapping").WithSource(label)
		}
		if err := r.ingestNode(entry, label); err != nil {
			return err
		}
	}
	slog.Debug("definitions ingested",
		slog.String("source", label),
		slog.Int("records", len(entries)),
	)
	return nil
}

func (r *Registry) ingestNode(node *document.Node, label string) error {
	// 1. 读取类型
	typeNode := node.Get(TypeField)
	if typeNode == nil || !typeNode.IsScalar() {
		return errdefs.Parse("definition.ingest", "definition entry is missing scalar 'type' field").WithSource(label)
	}
	typeName := typeNode.Text()

	r.mu.Lock()
	defer r.mu.Unlock()

	// 2. 找工厂并实例化
	factory, ok := r.factories[typeName]
	if !ok {
		return errdefs.Parse("definition.ingest", "no factory registered for definition type").
			WithType(typeName).WithSource(label)
	}
	def := factory()
	if def == nil {
		return errdefs.Parse("definition.ingest", "factory returned nil").
			WithType(typeName).WithSource(label)
	}

	// 3. 反序列化
	var err error
	if dec, ok := def.(Decoder); ok {
		err = dec.DecodeDocument(node)
	} else {
		err = node.Decode(def)
	}
	if err != nil {
		return errdefs.Parse("definition.ingest", "failed to load definition").
			WithType(typeName).WithSource(label).Wrap(err)
	}

	// 4. 校验标识符
	id := def.Identifier()
	if id == "" {
		return errdefs.Parse("definition.ingest", "definition produced an empty identifier").
			WithType(typeName).WithSource(label)
	}
	bucket := r.definitions[typeName]
	if _, dup := bucket[id]; dup {
		return errdefs.Parse("definition.ingest", fmt.Sprintf("duplicate definition %q", id)).
			WithType(typeName).WithSource(label)
	}

	if s, ok := def.(Sourced); ok {
		s.SetSource(label)
	}
	if bucket == nil {
		bucket = make(map[string]Definition)
		r.definitions[typeName] = bucket
	}
	bucket[id] = def
	return nil
}

// Types 返回至少有一条定义的类型名 (已排序)
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisteredTypes 返回所有注册过工厂的类型名 (已排序)
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions 返回某个类型的全部定义，按标识符排序
func (r *Registry) Definitions(typeName string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.definitions[typeName]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Definition, 0, len(ids))
	for _, id := range ids {
		out = append(out, bucket[id])
	}
	return out
}

// Find 精确查找
func (r *Registry) Find(typeName, id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[typeName][id]
	return def, ok
}

// FindAs 是 Find 加类型断言
func FindAs[T Definition](r *Registry, typeName, id string) (T, bool) {
	var zero T
	def, ok := r.Find(typeName, id)
	if !ok {
		return zero, false
	}
	t, ok := def.(T)
	return t, ok
}

// Len 返回定义总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bucket := range r.definitions {
		n += len(bucket)
	}
	return n
}

// Clear 丢弃所有定义，工厂保留
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions = make(map[string]map[string]Definition)
}
