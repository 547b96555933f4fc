package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/sdpanel/internal/gallery"
	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/sdapi"
)

func sampleImage(id string, seed int64, at time.Time) gallery.Image {
	p := params.Default()
	p.Prompt = "prompt " + id
	p.Seed = seed
	return gallery.Image{
		ID:        id,
		Data:      []byte("png-" + id),
		Params:    p,
		CreatedAt: at,
		Result: &gallery.ResultInfo{
			Seed:    seed,
			Model:   "modelA",
			Sampler: "Euler a",
			Steps:   20,
			Raw:     map[string]any{"seed": float64(seed)},
		},
	}
}

func sampleDocument() Document {
	at := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	p := params.Default()
	p.Prompt = "a lighthouse in fog"
	p.NegativePrompt = "blurry"
	p.Model = "modelA"
	p.Seed = 77

	plain := sampleImage("c", 3, at.Add(-2*time.Minute))
	plain.Result = nil
	return Document{
		Backend:      sdapi.BackendConfig{Endpoint: "http://gpu.local:7860", Credential: "secret"},
		Params:       p,
		CurrentModel: "modelA",
		Images: []gallery.Image{
			sampleImage("a", 1, at),
			sampleImage("b", 2, at.Add(-time.Minute)),
			plain,
		},
	}
}

func eachKind(t *testing.T, fn func(t *testing.T, dir string, open func() Store)) {
	for _, kind := range []string{KindSQLite, KindFile} {
		t.Run(kind, func(t *testing.T) {
			dir := t.TempDir()
			open := func() Store {
				s, err := Open(kind, dir)
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s
			}
			fn(t, dir, open)
		})
	}
}

func TestStore_EmptyLoad(t *testing.T) {
	eachKind(t, func(t *testing.T, _ string, open func() Store) {
		doc, err := open().Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, doc.Images)
		assert.True(t, doc.Backend.IsZero())
		assert.Equal(t, params.Default(), doc.Params)
	})
}

func TestStore_RoundTrip(t *testing.T) {
	eachKind(t, func(t *testing.T, _ string, open func() Store) {
		ctx := context.Background()
		want := sampleDocument()
		require.NoError(t, open().Save(ctx, want))

		got, err := open().Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestStore_SaveDiffsImages(t *testing.T) {
	eachKind(t, func(t *testing.T, _ string, open func() Store) {
		ctx := context.Background()
		s := open()
		doc := sampleDocument()
		require.NoError(t, s.Save(ctx, doc))

		fresh := sampleImage("d", 4, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
		doc.Images = []gallery.Image{fresh, doc.Images[0], doc.Images[2]}
		doc.CurrentModel = "modelB"
		require.NoError(t, s.Save(ctx, doc))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(got.Images))
		for _, img := range got.Images {
			ids = append(ids, img.ID)
		}
		assert.Equal(t, []string{"d", "a", "c"}, ids)
		assert.Equal(t, "modelB", got.CurrentModel)
		assert.Equal(t, fresh, got.Images[0])
	})
}

func TestStore_ClearEmptiesImages(t *testing.T) {
	eachKind(t, func(t *testing.T, _ string, open func() Store) {
		ctx := context.Background()
		s := open()
		doc := sampleDocument()
		require.NoError(t, s.Save(ctx, doc))

		doc.Images = nil
		require.NoError(t, s.Save(ctx, doc))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got.Images)
		assert.Equal(t, doc.Params, got.Params)
	})
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte("not zstd"), 0o644))

	s, err := Open(KindFile, dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(KindFile, dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), sampleDocument()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StateFile, entries[0].Name())
}
