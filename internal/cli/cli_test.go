package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	*httptest.Server
	submits atomic.Int32
	lastReq atomic.Value // map[string]any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/sdapi/v1/options", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			return
		}
		writeJSON(w, map[string]any{"sd_model_checkpoint": "modelA"})
	})
	mux.HandleFunc("/sdapi/v1/sd-models", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{
			{"title": "modelA", "model_name": "a", "hash": "aaaa"},
			{"title": "modelB", "model_name": "b", "hash": "bbbb"},
		})
	})
	mux.HandleFunc("/sdapi/v1/samplers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{{"name": "Euler a"}, {"name": "DDIM"}})
	})
	mux.HandleFunc("/sdapi/v1/progress", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"progress": 0.5, "eta_relative": 1, "state": map[string]any{}})
	})
	mux.HandleFunc("/sdapi/v1/interrupt", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("/sdapi/v1/txt2img", func(w http.ResponseWriter, r *http.Request) {
		fb.submits.Add(1)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		fb.lastReq.Store(req)
		writeJSON(w, map[string]any{
			"images": []string{
				base64.StdEncoding.EncodeToString([]byte("png-a")),
				base64.StdEncoding.EncodeToString([]byte("png-b")),
			},
			"info": `{"seed":42,"all_seeds":[42,43],"sd_model_name":"modelA"}`,
		})
	})
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// harness runs commands against one config and data directory.
type harness struct {
	t       *testing.T
	cfgPath string
	dataDir string
}

func newHarness(t *testing.T, storage, endpoint string) *harness {
	t.Helper()
	t.Setenv("SDPANEL_ENDPOINT", "")
	t.Setenv("SDPANEL_API_KEY", "")
	dataDir := t.TempDir()
	body := "data_dir = \"" + filepath.ToSlash(dataDir) + "\"\n" +
		"storage = \"" + storage + "\"\n" +
		"endpoint = \"" + endpoint + "\"\n"
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return &harness{t: t, cfgPath: cfgPath, dataDir: dataDir}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "sdpanel %s", strings.Join(args, " "))
	return out
}

func TestGenerate_StoresExportsAndRecords(t *testing.T) {
	for _, storage := range []string{"sqlite", "file"} {
		t.Run(storage, func(t *testing.T) {
			fb := newFakeBackend(t)
			h := newHarness(t, storage, fb.URL)
			outDir := t.TempDir()

			out := h.mustRun("generate", "-q", "--prompt", "a lighthouse", "--steps", "25", "--seed", "42", "--out", outDir)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 2)
			assert.Contains(t, lines[0], "seed 42")
			assert.Contains(t, lines[1], "seed 43")
			assert.EqualValues(t, 1, fb.submits.Load())

			req := fb.lastReq.Load().(map[string]any)
			assert.Equal(t, "a lighthouse", req["prompt"])
			assert.EqualValues(t, 25, req["steps"])

			id := strings.Fields(lines[0])[0]
			data, err := os.ReadFile(filepath.Join(outDir, id+".png"))
			require.NoError(t, err)
			assert.Equal(t, "png-a", string(data))
			sc, err := readSidecar(filepath.Join(outDir, id+".yaml"))
			require.NoError(t, err)
			assert.Equal(t, id, sc.ID)
			assert.Equal(t, "a lighthouse", sc.Params.Prompt)
			assert.EqualValues(t, 42, sc.Seed)
			assert.Equal(t, "modelA", sc.Model)

			list := h.mustRun("gallery", "list")
			assert.Contains(t, list, id)
			assert.Contains(t, list, "a lighthouse")

			stats := h.mustRun("stats")
			assert.Contains(t, stats, "Generations: 1")
			assert.Contains(t, stats, "Images: 2")
			assert.Contains(t, stats, "modelA (1)")
		})
	}
}

func TestGenerate_EmptyPromptNeverSubmits(t *testing.T) {
	fb := newFakeBackend(t)
	h := newHarness(t, "file", fb.URL)

	_, err := h.run("generate", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt")
	assert.Zero(t, fb.submits.Load())
}

func TestGenerate_ReuseKeepsSavedParams(t *testing.T) {
	fb := newFakeBackend(t)
	h := newHarness(t, "sqlite", fb.URL)

	out := h.mustRun("generate", "-q", "--prompt", "first", "--cfg", "9.5")
	id := strings.Fields(out)[0]

	h.mustRun("generate", "-q", "--prompt", "other", "--cfg", "3")
	h.mustRun("generate", "-q", "--reuse", id, "--batch", "2")

	req := fb.lastReq.Load().(map[string]any)
	assert.Equal(t, "first", req["prompt"])
	assert.EqualValues(t, 9.5, req["cfg_scale"])
	assert.EqualValues(t, 2, req["batch_size"])
}

func TestModels_ListsCatalog(t *testing.T) {
	fb := newFakeBackend(t)
	h := newHarness(t, "file", fb.URL)

	out := h.mustRun("models")
	assert.Contains(t, out, "modelA")
	assert.Contains(t, out, "modelB")
	assert.Contains(t, out, "Euler a, DDIM")
}

func TestModels_NoEndpoint(t *testing.T) {
	h := newHarness(t, "file", "")
	_, err := h.run("models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint configured")
}

func TestGallery_ExportRemoveClear(t *testing.T) {
	fb := newFakeBackend(t)
	h := newHarness(t, "sqlite", fb.URL)

	out := h.mustRun("generate", "-q", "--prompt", "two cats")
	ids := []string{strings.Fields(out)[0], strings.Fields(strings.Split(strings.TrimSpace(out), "\n")[1])[0]}

	exportDir := t.TempDir()
	exported := h.mustRun("gallery", "export", "--out", exportDir)
	assert.Len(t, strings.Split(strings.TrimSpace(exported), "\n"), 2)
	for _, id := range ids {
		assert.FileExists(t, filepath.Join(exportDir, id+".png"))
		assert.FileExists(t, filepath.Join(exportDir, id+".yaml"))
	}

	_, err := h.run("gallery", "export", "missing")
	require.Error(t, err)

	assert.Contains(t, h.mustRun("gallery", "remove", ids[0]), "removed "+ids[0])
	list := h.mustRun("gallery", "list")
	assert.NotContains(t, list, ids[0])
	assert.Contains(t, list, ids[1])

	_, err = h.run("gallery", "clear")
	require.Error(t, err, "clear needs --yes")
	assert.Contains(t, h.mustRun("gallery", "clear", "--yes"), "removed 1 images")
	assert.Contains(t, h.mustRun("gallery", "list"), "gallery is empty")
}

func TestStats_EmptyLedger(t *testing.T) {
	h := newHarness(t, "file", "")
	out := h.mustRun("stats")
	assert.Contains(t, out, "Generations: 0")
	assert.NotContains(t, out, "Avg per image")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "a b c", shorten("a\nb   c", 10))
	assert.Equal(t, "abcd...", shorten("abcdefghij", 7))
	assert.Equal(t, "ab", shorten("abcdef", 2))
}
