package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentctl/internal/api"
	"agentctl/internal/config"
	"agentctl/internal/state"
	"agentctl/internal/watcher"
)

// fakeBackend stands in for the agent API and records chat payloads.
type fakeBackend struct {
	mu        sync.Mutex
	chats     []map[string]any
	chatFail  bool
	indexed   []string
	degraded  bool
	streamOut string

	// streamStatus, when set, fails the stream endpoint with that code.
	streamStatus int
	// rejectPDF names an uploaded PDF the backend answers with a 500.
	rejectPDF string
}

func (b *fakeBackend) lastChat() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chats) == 0 {
		return nil
	}
	return b.chats[len(b.chats)-1]
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) indexedFiles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.indexed...)
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("POST "+api.PathUploadCSV, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "filename": "x.csv", "shape": map[string]int{"rows": 2, "cols": 2}})
	})
	mux.HandleFunc("POST "+api.PathUploadPDF, func(w http.ResponseWriter, r *http.Request) {
		_, fh, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		reject := b.rejectPDF
		b.mu.Unlock()
		if fh.Filename == reject {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "cannot store "+fh.Filename)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "filename": "a.pdf", "size_bytes": 3})
	})
	mux.HandleFunc("POST "+api.PathChat, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.chats = append(b.chats, body)
		fail := b.chatFail
		b.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "boom")
			return
		}
		writeJSON(w, map[string]any{"answer": fmt.Sprintf("echo: %v", body["user_query"])})
	})
	mux.HandleFunc("GET "+api.PathChatStream, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		body, status := b.streamOut, b.streamStatus
		b.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			io.WriteString(w, "upstream unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("POST "+api.PathRAGIndex, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		for _, fh := range r.MultipartForm.File["files"] {
			b.indexed = append(b.indexed, fh.Filename)
		}
		b.mu.Unlock()
		writeJSON(w, map[string]any{"index_dir": "/srv/index/42"})
	})
	mux.HandleFunc("POST "+api.PathRAGSearch, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"hits": []any{
			map[string]any{"text": "quality matters", "metadata": map[string]any{"source": "a.pdf", "page": "2"}, "score": 0.9},
		}})
	})
	mux.HandleFunc("POST "+api.PathEDAProfile, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"shape":         map[string]int{"rows": 2, "cols": 2},
			"nulls":         map[string]int{"name": 0, "age": 1},
			"numeric_stats": map[string]any{"age": map[string]any{"mean": 30, "top": "28"}},
			"corr(num<=30)": map[string]any{"age": map[string]float64{"age": 1}},
		})
	})
	mux.HandleFunc("GET "+api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		degraded := b.degraded
		b.mu.Unlock()
		writeJSON(w, map[string]any{"gateway_ok": true, "core_ok": !degraded, "data_tools_ok": true, "ttfb_ms": 12})
	})
	return mux
}

type harness struct {
	t       *testing.T
	dir     string
	cfgPath string
	url     string
	backend *fakeBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(config.EnvBaseURL, "")
	backend := &fakeBackend{streamOut: "data: hello\n\ndata: world\n\n"}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	c := config.Defaults()
	c.API.BaseURL = srv.URL
	c.API.TimeoutSeconds = 5
	c.Session.DBPath = filepath.Join(dir, "session.db")
	c.Log.Level = "error"
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, config.Save(cfgPath, c))

	return &harness{t: t, dir: dir, cfgPath: cfgPath, url: srv.URL, backend: backend}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "agentctl %s", strings.Join(args, " "))
	return out
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) session() sessionView {
	h.t.Helper()
	var v sessionView
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun("session", "show", "--format", "json")), &v))
	return v
}

func TestChat_SendsDatasetAndKeepsTranscript(t *testing.T) {
	h := newHarness(t)
	csvPath := h.writeFile("people.csv", "name,age\nkim,28\nlee,32\n")

	out := h.mustRun("upload", "csv", csvPath)
	assert.Contains(t, out, "people.csv: 2 rows x 2 columns")

	out = h.mustRun("chat", "average", "age?")
	assert.Equal(t, "echo: average age?\n", out)

	body := h.backend.lastChat()
	require.NotNil(t, body)
	assert.Equal(t, "average age?", body["user_query"])
	assert.NotEmpty(t, body["csv_data_b64"])
	assert.Equal(t, false, body["rag_index_exists"])
	assert.NotContains(t, body, "index_dir")

	v := h.session()
	require.NotNil(t, v.Dataset)
	assert.Equal(t, "people.csv", v.Dataset.Filename)
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "user", v.Messages[0].Role)
	assert.Equal(t, "ai", v.Messages[1].Role)
	assert.Equal(t, "echo: average age?", v.Messages[1].Content)
}

func TestChat_NoDataAndEDAContext(t *testing.T) {
	h := newHarness(t)
	h.mustRun("upload", "csv", h.writeFile("d.csv", "a\n1\n"))

	h.mustRun("chat", "--no-data", "--eda-context", "nulls: 0", "hi")
	body := h.backend.lastChat()
	assert.NotContains(t, body, "csv_data_b64")
	assert.Equal(t, "nulls: 0", body["eda_context"])
}

func TestChat_ErrorBecomesAIMessage(t *testing.T) {
	h := newHarness(t)
	h.backend.set(func(b *fakeBackend) { b.chatFail = true })

	out, err := h.run("chat", "hi")
	require.NoError(t, err)
	assert.Equal(t, "error: boom\n", out)

	v := h.session()
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "error: boom", v.Messages[1].Content)
}

func TestChat_StreamClosesOnFirstEvent(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("chat", "--stream", "hi")
	assert.Equal(t, "hello\n", out)
}

func TestChat_StreamAccumulatesWhenConfigured(t *testing.T) {
	h := newHarness(t)
	h.mustRun("config", "set", "stream.closeOnFirstEvent", "false")

	out := h.mustRun("chat", "--stream", "hi")
	assert.Equal(t, "helloworld\n", out)
	v := h.session()
	assert.Equal(t, "helloworld", v.Messages[1].Content)
}

func TestChat_EmptyStreamIsNoAnswer(t *testing.T) {
	h := newHarness(t)
	h.backend.set(func(b *fakeBackend) { b.streamOut = ": keepalive\n\n" })
	out := h.mustRun("chat", "--stream", "hi")
	assert.Equal(t, "no answer\n", out)
}

func TestChat_StreamFailureIsNoAnswer(t *testing.T) {
	h := newHarness(t)
	h.backend.set(func(b *fakeBackend) { b.streamStatus = http.StatusBadGateway })

	out, err := h.run("chat", "--stream", "hi")
	require.NoError(t, err)
	assert.Equal(t, "no answer\n", out)

	v := h.session()
	require.Len(t, v.Messages, 2)
	assert.Equal(t, "ai", v.Messages[1].Role)
	assert.Equal(t, "no answer", v.Messages[1].Content)
}

func TestRAG_IndexThenSearch(t *testing.T) {
	h := newHarness(t)
	pdf := h.writeFile("guide.pdf", "not a real pdf")

	_, err := h.run("rag", "search", "quality")
	assert.ErrorIs(t, err, errNoDocuments)

	out := h.mustRun("rag", "index", pdf)
	assert.Contains(t, out, "1 PDF documents indexed.")
	assert.Contains(t, out, "/srv/index/42")
	assert.Equal(t, []string{"guide.pdf"}, h.backend.indexedFiles())

	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("docs", "list", "-o", "json")), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, true, docs[0]["processed"])
	assert.EqualValues(t, 1, docs[0]["pages"])

	out = h.mustRun("rag", "search", "quality")
	assert.Contains(t, out, "[a.pdf p.2] score=0.900")
	assert.Contains(t, out, `RAG search complete: "quality" - 1 chunks found`)

	h.mustRun("chat", "what matters?")
	body := h.backend.lastChat()
	assert.Equal(t, "/srv/index/42", body["index_dir"])
	assert.Equal(t, true, body["rag_index_exists"])

	out = h.mustRun("results", "--type", "indexing")
	assert.Contains(t, out, "1 PDF documents indexed.")
	assert.NotContains(t, out, "RAG search complete")
}

func TestUploadPDF_WithIndex(t *testing.T) {
	h := newHarness(t)
	a := h.writeFile("a.pdf", "aaa")
	b := h.writeFile("b.pdf", "bbb")

	out := h.mustRun("upload", "pdf", "--index", a, b)
	assert.Contains(t, out, "a.pdf")
	assert.Contains(t, out, "2 PDF documents indexed.")
	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, h.backend.indexedFiles())
}

func TestUploadPDF_KeepsEarlierUploadsOnFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.set(func(b *fakeBackend) { b.rejectPDF = "b.pdf" })
	a := h.writeFile("a.pdf", "aaa")
	b := h.writeFile("b.pdf", "bbb")
	c := h.writeFile("c.pdf", "ccc")

	_, err := h.run("upload", "pdf", a, b, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot store b.pdf")

	docs := h.session().Documents
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Name)
}

func TestDocs_RemoveAndClear(t *testing.T) {
	h := newHarness(t)
	h.mustRun("rag", "index", h.writeFile("a.pdf", "a"), h.writeFile("b.pdf", "b"))

	v := h.session()
	require.Len(t, v.Documents, 2)

	h.mustRun("docs", "remove", v.Documents[0].ID)
	_, err := h.run("docs", "remove", "does-not-exist")
	assert.Error(t, err)
	assert.Len(t, h.session().Documents, 1)

	h.mustRun("docs", "clear")
	assert.Empty(t, h.session().Documents)
}

func TestEDA(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("eda")
	assert.ErrorIs(t, err, errNoDataset)

	h.mustRun("upload", "csv", h.writeFile("d.csv", "name,age\nkim,28\nlee,\n"))
	out := h.mustRun("eda", "--sub-type", "pca")
	assert.Contains(t, out, "shape: 2 rows x 2 cols")
	assert.Contains(t, out, "age: mean=30")

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("results", "-o", "json")), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "eda", results[0]["type"])
	assert.Equal(t, "pca", results[0]["subType"])
	assert.Contains(t, results[0]["content"], "EDA profile summary:")
}

func TestEDA_JSONKeepsFullResponse(t *testing.T) {
	h := newHarness(t)
	h.mustRun("upload", "csv", h.writeFile("d.csv", "name,age\nkim,28\n"))

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("eda", "-o", "json")), &out))
	assert.Contains(t, out, "corr(num<=30)")
	stats := out["numeric_stats"].(map[string]any)["age"].(map[string]any)
	assert.Equal(t, "28", stats["top"])

	assert.Contains(t, h.mustRun("eda", "--format", "yaml"), "corr(num<=30)")
}

func TestResults_YAML(t *testing.T) {
	h := newHarness(t)
	h.mustRun("upload", "csv", h.writeFile("d.csv", "a\n1\n"))
	h.mustRun("eda")

	out := h.mustRun("results", "--format", "yaml")
	assert.Contains(t, out, "type: eda")
	assert.Contains(t, out, "subType: basic_stats")

	_, err := h.run("results", "--format", "xml")
	assert.Error(t, err)
}

func TestSession_Clear(t *testing.T) {
	h := newHarness(t)
	h.mustRun("chat", "hi")
	h.mustRun("session", "clear")

	v := h.session()
	assert.Empty(t, v.Messages)
	assert.Nil(t, v.Dataset)
	assert.Empty(t, v.IndexDir)
}

func TestSession_Disabled(t *testing.T) {
	h := newHarness(t)
	h.mustRun("config", "set", "session.enabled", "false")
	h.mustRun("chat", "hi")
	assert.Empty(t, h.session().Messages)
	_, err := os.Stat(filepath.Join(h.dir, "session.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("health")
	assert.Contains(t, out, "gateway:    ok")
	assert.Contains(t, out, "ttfb:       12 ms")

	h.backend.set(func(b *fakeBackend) { b.degraded = true })
	out, err := h.run("health")
	assert.Error(t, err)
	assert.Contains(t, out, "core:       down")
}

func TestConfig_SetGetPath(t *testing.T) {
	h := newHarness(t)
	h.mustRun("config", "set", "api.maxRetries", "2")
	assert.Equal(t, "2\n", h.mustRun("config", "get", "api.maxRetries"))
	assert.Equal(t, h.cfgPath+"\n", h.mustRun("config", "path"))

	_, err := h.run("config", "set", "log.level", "chatty")
	assert.Error(t, err)
	list := h.mustRun("config", "list")
	assert.Contains(t, list, "api.maxRetries = 2\n")
	assert.Contains(t, list, `watch.extensions = [".pdf",".csv"]`)
}

func TestConfig_SetDoesNotPersistEnvOverride(t *testing.T) {
	h := newHarness(t)
	t.Setenv(config.EnvBaseURL, "http://elsewhere:9")
	h.mustRun("config", "set", "api.maxRetries", "1")

	fileCfg, err := config.ReadFile(h.cfgPath)
	require.NoError(t, err)
	assert.NotEqual(t, "http://elsewhere:9", fileCfg.API.BaseURL)
}

func TestInit(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "cfg", "config.json")
	run := func(args ...string) error {
		root := newRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(append([]string{"--config", path}, args...))
		return root.ExecuteContext(context.Background())
	}
	require.NoError(t, run("init"))
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Error(t, run("init"))
	assert.NoError(t, run("init", "--force"))
}

func TestApplyBatch(t *testing.T) {
	h := newHarness(t)
	cfg = config.Defaults()
	cfg.API.BaseURL = h.url
	cfg.Watch.AutoReindex = true
	ctx := context.Background()
	app := state.New(nil)
	client := newClient()

	pdf := h.writeFile("w.pdf", "pdf")
	csv := h.writeFile("w.csv", "x,y\n1,2\n")
	var out bytes.Buffer
	require.NoError(t, applyBatch(ctx, &out, app, client, []watcher.Event{
		{Path: pdf, Op: watcher.Created},
		{Path: csv, Op: watcher.Created},
	}))
	require.Len(t, app.Documents(), 1)
	assert.True(t, app.Documents()[0].Processed)
	assert.Equal(t, "/srv/index/42", app.IndexDir())
	assert.Equal(t, "w.csv", app.Dataset().Filename)

	id := app.Documents()[0].ID
	require.NoError(t, applyBatch(ctx, &out, app, client, []watcher.Event{{Path: pdf, Op: watcher.Modified}}))
	require.Len(t, app.Documents(), 1)
	assert.Equal(t, id, app.Documents()[0].ID)

	require.NoError(t, applyBatch(ctx, &out, app, client, []watcher.Event{{Path: pdf, Op: watcher.Removed}}))
	assert.Empty(t, app.Documents())
}
