package state

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/sdpanel/internal/analytics"
	"github.com/five82/sdpanel/internal/connection"
	"github.com/five82/sdpanel/internal/params"
	"github.com/five82/sdpanel/internal/persist"
	"github.com/five82/sdpanel/internal/sdapi"
)

// fakeSD serves the subset of /sdapi/v1 the panel uses.
type fakeSD struct {
	*httptest.Server

	interrupts atomic.Int32
	submits    atomic.Int32
	// hold, when set, makes txt2img wait until it is closed or the client goes away.
	hold chan struct{}
	// entered is closed when a held txt2img request arrives.
	entered chan struct{}
}

func newFakeSD(t *testing.T) *fakeSD {
	t.Helper()
	sd := &fakeSD{}
	mux := http.NewServeMux()
	mux.HandleFunc("/sdapi/v1/options", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, map[string]any{"sd_model_checkpoint": "modelA"})
	})
	mux.HandleFunc("/sdapi/v1/sd-models", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{
			{"title": "modelA", "model_name": "a"},
			{"title": "modelB", "model_name": "b"},
		})
	})
	mux.HandleFunc("/sdapi/v1/samplers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{
			{"name": "Euler a", "aliases": []string{"k_euler_a"}, "options": map[string]any{}},
			{"name": "DDIM", "aliases": []string{}, "options": map[string]any{}},
			{"name": "DPM++ 2M", "aliases": []string{}, "options": map[string]any{"scheduler": "karras"}},
		})
	})
	mux.HandleFunc("/sdapi/v1/progress", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"progress":      0.5,
			"eta_relative":  2.5,
			"state":         map[string]any{"sampling_step": 10, "sampling_steps": 20},
			"current_image": nil,
		})
	})
	mux.HandleFunc("/sdapi/v1/interrupt", func(w http.ResponseWriter, _ *http.Request) {
		sd.interrupts.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/sdapi/v1/txt2img", func(w http.ResponseWriter, r *http.Request) {
		sd.submits.Add(1)
		if sd.hold != nil {
			close(sd.entered)
			select {
			case <-sd.hold:
			case <-r.Context().Done():
				return
			}
		}
		writeJSON(w, map[string]any{
			"images": []string{
				base64.StdEncoding.EncodeToString([]byte("a")),
				base64.StdEncoding.EncodeToString([]byte("b")),
			},
			"parameters": map[string]any{},
			"info":       `{"seed":42,"sd_model_name":"modelA"}`,
		})
	})
	sd.Server = httptest.NewServer(mux)
	t.Cleanup(sd.Close)
	return sd
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type memLedger struct {
	mu      sync.Mutex
	entries []analytics.Entry
}

func (m *memLedger) Record(_ context.Context, e analytics.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func newStore(t *testing.T, p persist.Store, ledger Recorder) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(sdapi.NewClient(), Options{
		Persist:      p,
		Ledger:       ledger,
		PollInterval: 5 * time.Millisecond,
		Logger:       logger,
	})
}

func openFileStore(t *testing.T, dir string) persist.Store {
	t.Helper()
	p, err := persist.Open(persist.KindFile, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestStore_ConnectHandshake(t *testing.T) {
	sd := newFakeSD(t)
	s := newStore(t, nil, nil)

	require.NoError(t, s.Connect(context.Background(), sdapi.BackendConfig{Endpoint: sd.URL}))

	snap := s.Snapshot()
	assert.Equal(t, connection.Connected, snap.Connection)
	assert.True(t, snap.IsConnected())
	assert.Equal(t, "modelA", snap.CurrentModel)
	assert.Len(t, snap.Models, 2)
	assert.Len(t, snap.Samplers, 3)
	assert.NoError(t, snap.LastError)
}

func TestStore_GenerateRequiresConnection(t *testing.T) {
	s := newStore(t, nil, nil)
	s.UpdateParams(params.Patch{Prompt: params.Ptr("castle")})

	_, err := s.Generate(context.Background())
	assert.ErrorIs(t, err, connection.ErrNotConnected)
	assert.ErrorIs(t, s.Snapshot().LastError, connection.ErrNotConnected)
}

func TestStore_EmptyPromptLeavesGalleryUntouched(t *testing.T) {
	sd := newFakeSD(t)
	s := newStore(t, nil, nil)
	require.NoError(t, s.Connect(context.Background(), sdapi.BackendConfig{Endpoint: sd.URL}))

	_, err := s.Generate(context.Background())

	var verr *params.ValidationError
	require.ErrorAs(t, err, &verr)
	snap := s.Snapshot()
	assert.Empty(t, snap.Images)
	assert.False(t, snap.IsGenerating)
	assert.Zero(t, sd.submits.Load())
}

func TestStore_GenerateAddsBatchAndRecords(t *testing.T) {
	sd := newFakeSD(t)
	ledger := &memLedger{}
	s := newStore(t, nil, ledger)
	require.NoError(t, s.Connect(context.Background(), sdapi.BackendConfig{Endpoint: sd.URL}))
	s.UpdateParams(params.Patch{Prompt: params.Ptr("harbor"), BatchSize: params.Ptr(2)})

	images, err := s.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)

	snap := s.Snapshot()
	require.Len(t, snap.Images, 2)
	assert.Equal(t, "a", string(snap.Images[0].Data))
	assert.Equal(t, "b", string(snap.Images[1].Data))
	assert.Equal(t, int64(42), snap.Images[0].Result.Seed)
	assert.Nil(t, snap.Progress)
	assert.False(t, snap.IsGenerating)

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	assert.Equal(t, "modelA", entry.Model)
	assert.Equal(t, 2, entry.BatchSize)
	assert.Equal(t, int64(42), entry.Seed)
	assert.Equal(t, "harbor", entry.Prompt)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	sd := newFakeSD(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := newStore(t, openFileStore(t, dir), nil)
	require.NoError(t, first.Load(ctx))
	require.NoError(t, first.Connect(ctx, sdapi.BackendConfig{Endpoint: sd.URL, Credential: "tok"}))
	first.UpdateParams(params.Patch{
		Prompt:    params.Ptr("harbor"),
		Steps:     params.Ptr(33),
		BatchSize: params.Ptr(2),
	})
	_, err := first.Generate(ctx)
	require.NoError(t, err)
	want := first.Document()

	second := newStore(t, openFileStore(t, dir), nil)
	require.NoError(t, second.Load(ctx))

	got := second.Document()
	require.Len(t, got.Images, 2)
	for i := range want.Images {
		assert.Equal(t, want.Images[i].ID, got.Images[i].ID)
		assert.Equal(t, want.Images[i].Data, got.Images[i].Data)
		assert.Equal(t, want.Images[i].Params, got.Images[i].Params)
		assert.True(t, want.Images[i].CreatedAt.Equal(got.Images[i].CreatedAt))
	}
	assert.Equal(t, want.Backend, got.Backend)
	assert.Equal(t, want.Params, got.Params)
	assert.Equal(t, "modelA", got.CurrentModel)

	snap := second.Snapshot()
	assert.Equal(t, connection.Disconnected, snap.Connection)
	assert.Nil(t, snap.Progress)
	assert.Equal(t, "modelA", snap.CurrentModel)
	assert.Empty(t, snap.Models)
}

func TestStore_GalleryOperationsPersist(t *testing.T) {
	sd := newFakeSD(t)
	dir := t.TempDir()
	ctx := context.Background()

	s := newStore(t, openFileStore(t, dir), nil)
	require.NoError(t, s.Connect(ctx, sdapi.BackendConfig{Endpoint: sd.URL}))
	s.UpdateParams(params.Patch{Prompt: params.Ptr("harbor"), Seed: params.Ptr(int64(7)), BatchSize: params.Ptr(2)})
	images, err := s.Generate(ctx)
	require.NoError(t, err)

	s.UpdateParams(params.Patch{Prompt: params.Ptr("something else")})
	require.True(t, s.ApplyImageParams(images[1].ID))
	assert.Equal(t, images[1].Params, s.Snapshot().Params)

	assert.True(t, s.RemoveImage(images[0].ID))
	assert.False(t, s.RemoveImage("missing"))

	reloaded := newStore(t, openFileStore(t, dir), nil)
	require.NoError(t, reloaded.Load(ctx))
	require.Len(t, reloaded.Snapshot().Images, 1)
	assert.Equal(t, images[1].ID, reloaded.Snapshot().Images[0].ID)

	s.ClearGallery()
	reloaded = newStore(t, openFileStore(t, dir), nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.Snapshot().Images)
}

func TestStore_ReconnectInterruptsGeneration(t *testing.T) {
	sd := newFakeSD(t)
	sd.hold = make(chan struct{})
	sd.entered = make(chan struct{})
	defer close(sd.hold)
	ctx := context.Background()

	s := newStore(t, nil, nil)
	require.NoError(t, s.Connect(ctx, sdapi.BackendConfig{Endpoint: sd.URL}))
	s.UpdateParams(params.Patch{Prompt: params.Ptr("harbor")})

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(ctx)
		done <- err
	}()
	<-sd.entered
	require.Eventually(t, func() bool {
		return s.Snapshot().Progress != nil
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Connect(ctx, sdapi.BackendConfig{Endpoint: sd.URL}))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not stop after reconnect")
	}
	assert.Equal(t, int32(1), sd.interrupts.Load())

	snap := s.Snapshot()
	assert.Empty(t, snap.Images)
	assert.False(t, snap.IsGenerating)
	assert.Equal(t, connection.Connected, snap.Connection)
}

func TestStore_DisconnectKeepsParamsAndGallery(t *testing.T) {
	sd := newFakeSD(t)
	ctx := context.Background()
	s := newStore(t, nil, nil)
	require.NoError(t, s.Connect(ctx, sdapi.BackendConfig{Endpoint: sd.URL}))
	s.UpdateParams(params.Patch{Prompt: params.Ptr("harbor")})
	_, err := s.Generate(ctx)
	require.NoError(t, err)

	s.Disconnect(ctx)

	snap := s.Snapshot()
	assert.Equal(t, connection.Disconnected, snap.Connection)
	assert.Empty(t, snap.Models)
	assert.Equal(t, "harbor", snap.Params.Prompt)
	assert.Len(t, snap.Images, 2)

	require.NoError(t, s.Reconnect(ctx))
	assert.True(t, s.Snapshot().IsConnected())
}

func TestStore_ReconnectWithoutConfig(t *testing.T) {
	s := newStore(t, nil, nil)
	err := s.Reconnect(context.Background())
	assert.ErrorIs(t, err, sdapi.ErrNotConfigured)
}

func TestStore_AbortedGenerationLeavesNoError(t *testing.T) {
	sd := newFakeSD(t)
	sd.hold = make(chan struct{})
	sd.entered = make(chan struct{})
	defer close(sd.hold)
	ctx := context.Background()

	s := newStore(t, nil, nil)
	require.NoError(t, s.Connect(ctx, sdapi.BackendConfig{Endpoint: sd.URL}))
	s.UpdateParams(params.Patch{Prompt: params.Ptr("harbor")})

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(ctx)
		done <- err
	}()
	<-sd.entered

	s.Disconnect(ctx)

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not stop after disconnect")
	}

	snap := s.Snapshot()
	assert.NoError(t, snap.LastError)
	assert.Equal(t, connection.Disconnected, snap.Connection)
	assert.Empty(t, snap.Images)
}
