package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lexrag/lexrag/internal/chatlog"
	"github.com/lexrag/lexrag/internal/generate"
	"github.com/lexrag/lexrag/internal/llm"
	"github.com/lexrag/lexrag/internal/memory"
	"github.com/lexrag/lexrag/internal/query"
	"github.com/lexrag/lexrag/internal/retriever"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (stubEmbedder) Dimension() int    { return 3 }
func (stubEmbedder) ModelName() string { return "stub" }

type stubLLM struct{}

func (stubLLM) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	return "Bank robbery is punishable under 18 U.S.C. § 2113.", nil
}

func (stubLLM) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Token: "ok", Done: true}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, apiKey, jwtSecret string) *Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := vectorstore.Open(ctx, vectorstore.Options{
		Type:       "flat",
		Path:       dir,
		Collection: "test",
		Dimension:  3,
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chunks := []vectorstore.Chunk{
		{Text: "Whoever takes property from a bank by force commits robbery punishable by imprisonment",
			Metadata: vectorstore.Metadata{Section: "§ 2113", Page: 1, CrimeTypes: []string{"robbery"}}},
		{Text: "Kidnapping is punishable by imprisonment for any term of years",
			Metadata: vectorstore.Metadata{Section: "§ 1201", Page: 2, CrimeTypes: []string{"kidnapping"}}},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	if err := store.Add(ctx, chunks, vectors); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	ret := retriever.New(stubEmbedder{}, store, retriever.Options{
		K:                   5,
		KMax:                15,
		SimilarityThreshold: 0.3,
		Hybrid:              true,
		MetadataFiltering:   true,
	})
	gen := generate.NewGenerator(stubLLM{}, generate.Options{Model: "stub"})
	proc := query.NewProcessor(query.Options{Classification: true})
	mem := memory.DefaultStore()
	t.Cleanup(mem.Close)

	log, err := chatlog.Open(filepath.Join(dir, "chat.db"))
	if err != nil {
		t.Fatalf("opening chat log: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	return New(Config{
		Port:      0,
		APIKey:    apiKey,
		JWTSecret: jwtSecret,
	}, ret, gen, proc, mem, log)
}

func postJSON(t *testing.T, srv *Server, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, "", "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz with seeded index = %d, want 200", rec.Code)
	}
}

func TestServer_QueryRequiresAuth(t *testing.T) {
	srv := newTestServer(t, "topsecret", "")

	rec := postJSON(t, srv, "/v1/query", "", queryRequest{Query: "robbery"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated query = %d, want 401", rec.Code)
	}

	rec = postJSON(t, srv, "/v1/query", "topsecret", queryRequest{Query: "robbery"})
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated query = %d, want 200", rec.Code)
	}
}

func TestServer_Query(t *testing.T) {
	srv := newTestServer(t, "", "")

	rec := postJSON(t, srv, "/v1/query", "", queryRequest{Query: "what prison sentence and fine for bank robbery"})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer == "" {
		t.Error("empty answer")
	}
	if len(resp.Sources) == 0 {
		t.Error("no sources returned")
	}
	if len(resp.Citations) == 0 {
		t.Error("no citations extracted from answer")
	}
	if resp.SessionID == "" {
		t.Error("no session ID assigned")
	}
	if resp.Intent != "punishment" {
		t.Errorf("intent = %q, want punishment", resp.Intent)
	}
}

func TestServer_QueryValidation(t *testing.T) {
	srv := newTestServer(t, "", "")

	rec := postJSON(t, srv, "/v1/query", "", queryRequest{Query: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank query status = %d, want 400", rec.Code)
	}
}

func TestServer_Search(t *testing.T) {
	srv := newTestServer(t, "", "")

	rec := postJSON(t, srv, "/v1/search", "", queryRequest{
		Query:       "force property bank",
		FilterKey:   "crime_types",
		FilterValue: "robbery",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no search results")
	}
	if resp.Results[0].Section != "§ 2113" {
		t.Errorf("top result section = %q", resp.Results[0].Section)
	}
}

func TestServer_Feedback(t *testing.T) {
	srv := newTestServer(t, "", "")

	rec := postJSON(t, srv, "/v1/feedback", "", chatlog.Feedback{
		SessionID: "sess",
		Query:     "robbery",
		Answer:    "See § 2113.",
		Rating:    5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, srv, "/v1/feedback", "", chatlog.Feedback{SessionID: "sess", Rating: 9})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid rating status = %d, want 400", rec.Code)
	}
}

func TestServer_Session(t *testing.T) {
	srv := newTestServer(t, "", "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/session", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("session status = %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["token"] == "" || resp["session_id"] == "" {
		t.Errorf("incomplete session response: %v", resp)
	}
}
