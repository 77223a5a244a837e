package asset

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/database/fs"
	"github.com/Cjw9000-py/mloader/pkg/database/memory"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedDB 对同一路径总是返回同一个 Resource 的克隆，用来模拟带缓存的后端
type sharedDB struct {
	*memory.Database
	handles map[types.PurePath]*resource.Handle
}

func newSharedDB(t *testing.T, files map[string]string) *sharedDB {
	t.Helper()
	db := &sharedDB{Database: memory.New("shared"), handles: map[types.PurePath]*resource.Handle{}}
	for p, content := range files {
		require.NoError(t, db.Put(p, []byte(content)))
	}
	return db
}

func (s *sharedDB) Resolve(ctx context.Context, rel types.PurePath) (*resource.Handle, error) {
	p, err := rel.Normalize()
	if err != nil {
		return nil, err
	}
	if h, ok := s.handles[p]; ok {
		return h.Clone(), nil
	}
	h, err := s.Database.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	s.handles[p] = h
	return h.Clone(), nil
}

func newMemoryDB(t *testing.T, files map[string]string) *memory.Database {
	t.Helper()
	db := memory.New("assets")
	for p, content := range files {
		require.NoError(t, db.Put(p, []byte(content)))
	}
	return db
}

func TestTextAsset_StateMachine(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	target := filepath.Join(root, "assets", "messages", "greeting.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("hello world"), 0644))

	db := fs.New(root)
	require.NoError(t, db.Load(ctx))
	reg := database.NewRegistry()
	reg.Activate(db)
	defer func() { require.NoError(t, reg.Deactivate(db)) }()

	text := NewText("assets/messages/greeting.txt", WithRegistry(reg))
	assert.Equal(t, StateUnloaded, text.State())
	assert.Equal(t, KindText, text.Kind())

	first, err := text.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello world", first)
	assert.Equal(t, StateParsed, text.State())
	assert.Same(t, db, text.Database(), "active database is remembered")

	second, err := text.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Same(t, unsafe.StringData(first), unsafe.StringData(second), "second access comes from the cache")
}

func TestBinaryAsset_CopiesBytes(t *testing.T) {
	ctx := context.Background()
	payload := "\xDE\xAD\xBE\xEF"
	db := newMemoryDB(t, map[string]string{"data/blob.bin": payload})

	blob := NewBinary("data/blob.bin", WithDatabase(db))
	data, err := blob.Data(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(payload), data)

	h, err := blob.Handle(ctx)
	require.NoError(t, err)
	defer h.Release()
	assert.NotSame(t, &h.Data()[0], &data[0], "binary payload is a copy of the resource buffer")

	again, err := blob.Data(ctx)
	require.NoError(t, err)
	assert.Same(t, &data[0], &again[0])
}

func TestAssets_SniffFormats(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t, map[string]string{
		"img/logo.png":     "\x89PNG\r\n\x1a\nrest",
		"snd/theme.ogg":    "OggS\x00\x02",
		"fnt/mono.ttf":     "\x00\x01\x00\x00glyphs",
		"shader/basic.vs":  "\xEF\xBB\xBFvoid main(){}\r\n\r\x00\x00",
		"misc/unknown.bin": "zz",
	})

	img := NewImage("img/logo.png", WithDatabase(db))
	image, err := img.Image(ctx)
	require.NoError(t, err)
	assert.Equal(t, "png", image.Format)
	assert.Len(t, image.Pixels, 12)

	again, err := img.Image(ctx)
	require.NoError(t, err)
	assert.Same(t, image, again)

	snd := NewSound("snd/theme.ogg", WithDatabase(db))
	sound, err := snd.Sound(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ogg", sound.Format)

	fnt := NewFont("fnt/mono.ttf", WithDatabase(db))
	font, err := fnt.Font(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ttf", font.Format)

	shader := NewShader("shader/basic.vs", WithDatabase(db))
	src, err := shader.Source(ctx)
	require.NoError(t, err)
	assert.Equal(t, "void main(){}\n\n", src)

	unknown := NewImage("misc/unknown.bin", WithDatabase(db))
	image, err = unknown.Image(ctx)
	require.NoError(t, err)
	assert.Equal(t, FormatUnknown, image.Format)
}

func TestAsset_BindingPrecedence(t *testing.T) {
	bound := newMemoryDB(t, map[string]string{"who.txt": "bound"})
	scoped := newMemoryDB(t, map[string]string{"who.txt": "scoped"})
	active := newMemoryDB(t, map[string]string{"who.txt": "active"})

	reg := database.NewRegistry()
	reg.Activate(active)
	ctx := database.NewContext(context.Background(), scoped)

	tests := []struct {
		name string
		ctx  context.Context
		opts []Option
		want string
	}{
		{"Bound wins", ctx, []Option{WithDatabase(bound), WithRegistry(reg)}, "bound"},
		{"Context over registry", ctx, []Option{WithRegistry(reg)}, "scoped"},
		{"Registry fallback", context.Background(), []Option{WithRegistry(reg)}, "active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := NewText("who.txt", tt.opts...)
			got, err := text.Text(tt.ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAsset_NoDatabase(t *testing.T) {
	text := NewText("orphan.txt", WithRegistry(database.NewRegistry()))

	_, err := text.Text(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrNoDatabase)
	assert.ErrorIs(t, err, errdefs.ErrLifecycle)
	assert.Contains(t, err.Error(), "orphan.txt")
	assert.Equal(t, StateUnloaded, text.State())

	// 没有注册表也一样
	bare := NewBinary("orphan.bin")
	assert.ErrorIs(t, bare.Touch(context.Background()), database.ErrNoDatabase)
}

func TestAsset_ResolveErrorsPropagate(t *testing.T) {
	db := newMemoryDB(t, map[string]string{"dir/file.txt": "x"})

	missing := NewText("dir/missing.txt", WithDatabase(db))
	err := missing.Touch(context.Background())
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Equal(t, StateUnloaded, missing.State())

	dir := NewText("dir", WithDatabase(db))
	assert.ErrorIs(t, dir.Touch(context.Background()), database.ErrNotFile)
}

func TestAsset_RepathingInvalidates(t *testing.T) {
	ctx := context.Background()
	var destroyed atomic.Int32
	db := memory.New("repath", memory.WithDestroyHook(func(*resource.Resource) { destroyed.Add(1) }))
	require.NoError(t, db.Put("a.txt", []byte("alpha")))
	require.NoError(t, db.Put("b.txt", []byte("beta")))

	text := NewText("a.txt", WithDatabase(db))
	got, err := text.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got)

	text.SetPath("b.txt")
	assert.Equal(t, StateUnloaded, text.State())
	assert.Equal(t, int32(1), destroyed.Load(), "previous handle is released")

	got, err = text.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "beta", got)

	other := newMemoryDB(t, map[string]string{"c.txt": "gamma"})
	text.BindPath(other, "c.txt")
	assert.Equal(t, StateUnloaded, text.State())
	got, err = text.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gamma", got)
	assert.Same(t, other, text.Database())

	text.Bind(db)
	assert.Equal(t, StateUnloaded, text.State())
	assert.Equal(t, types.PurePath("c.txt"), text.Path())

	text.Unload()
	text.Unload()
	assert.Equal(t, StateUnloaded, text.State())
}

func TestAsset_HandleMovesToUnparsed(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t, map[string]string{"a.bin": "abc"})

	blob := NewBinary("a.bin", WithDatabase(db))
	h, err := blob.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnparsed, blob.State())
	assert.Equal(t, int32(2), h.Resource().Refs(), "asset and caller each hold a reference")

	res := h.Resource()
	h.Release()
	blob.Unload()
	assert.True(t, res.Destroyed())
}

func TestAsset_SharedResourceParsesOnce(t *testing.T) {
	ctx := context.Background()
	db := newSharedDB(t, map[string]string{"shared.txt": "payload"})

	var parses atomic.Int32
	parse := func(data []byte) *string {
		parses.Add(1)
		s := string(data)
		return &s
	}

	const workers = 8
	results := make([]*string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		a := newAsset(KindText, "shared.txt", parse, WithDatabase(db))
		// Resolve 在单线程中完成，之后并发读取同一个 Resource 的缓存
		require.NoError(t, func() error { _, err := a.Handle(ctx); return err }())
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := a.Payload(ctx)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Same(t, results[0], r, "all assets converge on one cached payload")
	}
	assert.GreaterOrEqual(t, parses.Load(), int32(1))
}

func TestAsset_SeparateResourcesDoNotShare(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t, map[string]string{"img.png": "\xFF\xD8\xFFjpeg"})

	a := NewImage("img.png", WithDatabase(db))
	b := NewImage("img.png", WithDatabase(db))
	ia, err := a.Image(ctx)
	require.NoError(t, err)
	ib, err := b.Image(ctx)
	require.NoError(t, err)

	assert.Equal(t, ia, ib)
	assert.NotSame(t, ia, ib, "each resolve produces its own resource and cache")
}

func TestKind_Names(t *testing.T) {
	for k := KindBinary; k <= KindText; k++ {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindInvalid, ParseKind("video"))
	assert.Equal(t, "unparsed", StateUnparsed.String())
}
