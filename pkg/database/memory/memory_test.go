package memory

import (
	"context"
	"testing"

	"github.com/Cjw9000-py/mloader/pkg/database"
	"github.com/Cjw9000-py/mloader/pkg/errdefs"
	"github.com/Cjw9000-py/mloader/pkg/resource"
	"github.com/Cjw9000-py/mloader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) *Database {
	t.Helper()
	db := New("fixture")
	require.NoError(t, db.Put("assets/levels/intro.txt", []byte("intro level")))
	require.NoError(t, db.Put("assets/levels/boss.txt", []byte("boss level")))
	require.NoError(t, db.Mkdir("assets/textures"))
	return db
}

func TestMemory_ListAutoLoads(t *testing.T) {
	ctx := context.Background()
	db := newFixture(t)
	assert.False(t, db.IsLoaded())

	entries, err := db.List(ctx, "")
	require.NoError(t, err)
	assert.True(t, db.IsLoaded())

	var got []string
	for _, e := range entries {
		got = append(got, e.Path.String())
		assert.Same(t, db, e.DB)
	}
	assert.Equal(t, []string{
		"assets",
		"assets/levels",
		"assets/levels/boss.txt",
		"assets/levels/intro.txt",
		"assets/textures",
	}, got)

	sub, err := db.List(ctx, "assets/textures")
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.True(t, sub[0].IsDir())
}

func TestMemory_ResolveReturnsFreshResources(t *testing.T) {
	ctx := context.Background()
	db := newFixture(t)

	h1, err := db.Resolve(ctx, "assets/levels/intro.txt")
	require.NoError(t, err)
	defer h1.Release()
	h2, err := db.Resolve(ctx, "./assets/levels/intro.txt")
	require.NoError(t, err)
	defer h2.Release()

	assert.Equal(t, []byte("intro level"), h1.Data())
	assert.NotSame(t, h1.Resource(), h2.Resource())
	assert.Equal(t, db, h1.Resource().Owner())
}

func TestMemory_ResolveErrors(t *testing.T) {
	ctx := context.Background()
	db := newFixture(t)

	tests := []struct {
		name string
		path types.PurePath
		want error
	}{
		{"Missing", "assets/nope.txt", database.ErrNotFound},
		{"Directory", "assets/levels", database.ErrNotFile},
		{"Root", "", database.ErrRootResource},
		{"Absolute", "/assets/levels/intro.txt", types.ErrAbsolutePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := db.Resolve(ctx, tt.path)
			assert.Nil(t, h)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, errdefs.ErrResolution)
		})
	}
}

func TestMemory_Queries(t *testing.T) {
	ctx := context.Background()
	db := newFixture(t)

	check := func(p types.PurePath, exists, file, dir bool) {
		t.Helper()
		e, err := db.Exists(ctx, p)
		require.NoError(t, err)
		f, err := db.IsFile(ctx, p)
		require.NoError(t, err)
		d, err := db.IsDir(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []bool{exists, file, dir}, []bool{e, f, d}, "path %q", p)
	}

	check("", true, false, true)
	check("assets", true, false, true)
	check("assets/levels/boss.txt", true, true, false)
	check("missing.file", false, false, false)
}

func TestMemory_PutRejectsConflicts(t *testing.T) {
	db := New("conflicts")
	require.NoError(t, db.Put("a/b.txt", nil))

	assert.ErrorIs(t, db.Put("a", []byte("x")), errdefs.ErrConfig)
	assert.ErrorIs(t, db.Mkdir("a/b.txt/c"), errdefs.ErrConfig)
	assert.ErrorIs(t, db.Put("", nil), database.ErrRootResource)
	assert.Error(t, db.Put("/abs", nil))
}

func TestMemory_UnloadAndReload(t *testing.T) {
	ctx := context.Background()
	db := newFixture(t)
	require.NoError(t, db.Load(ctx))

	require.NoError(t, db.Put("late.txt", []byte("late")))
	ok, err := db.Exists(ctx, "late.txt")
	require.NoError(t, err)
	assert.False(t, ok, "index is a snapshot until reload")

	require.NoError(t, db.Unload())
	assert.False(t, db.IsLoaded())
	ok, err = db.Exists(ctx, "late.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_DestroyHook(t *testing.T) {
	calls := 0
	db := New("hook", WithDestroyHook(func(*resource.Resource) { calls++ }))
	require.NoError(t, db.Put("x.bin", []byte{1}))

	h, err := db.Resolve(context.Background(), "x.bin")
	require.NoError(t, err)
	c := h.Clone()
	h.Release()
	assert.Equal(t, 0, calls)
	c.Release()
	assert.Equal(t, 1, calls)
}
