package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// GenAIServer mimics the generative service: generateContent answers with
// the configured text per model, and the model listing returns Models.
type GenAIServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]string
	failures  map[string]int
	calls     []string
	prompts   []string
	models    []string
}

// NewGenAIServer starts a server that answers every model with text.
func NewGenAIServer(t testing.TB, text string) *GenAIServer {
	t.Helper()
	g := &GenAIServer{
		responses: map[string]string{"*": text},
		failures:  map[string]int{},
		models:    []string{"test-model"},
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.Close)
	return g
}

// Respond sets the answer for one model.
func (g *GenAIServer) Respond(model, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[model] = text
}

// Fail makes model answer with status.
func (g *GenAIServer) Fail(model string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[model] = status
}

// SetModels replaces the listed models.
func (g *GenAIServer) SetModels(models ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.models = models
}

// Calls returns the models called so far, in order.
func (g *GenAIServer) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Prompts returns the prompt texts received so far.
func (g *GenAIServer) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func (g *GenAIServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/models") {
		g.mu.Lock()
		models := make([]map[string]any, 0, len(g.models))
		for _, m := range g.models {
			models = append(models, map[string]any{
				"name":                       "models/" + m,
				"inputTokenLimit":            1048576,
				"outputTokenLimit":           65536,
				"supportedGenerationMethods": []string{"generateContent"},
			})
		}
		g.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
		return
	}

	idx := strings.LastIndex(r.URL.Path, "/models/")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	model, _, _ := strings.Cut(r.URL.Path[idx+len("/models/"):], ":")
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	g.mu.Lock()
	g.calls = append(g.calls, model)
	if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
		g.prompts = append(g.prompts, req.Contents[0].Parts[0].Text)
	}
	status := g.failures[model]
	text, ok := g.responses[model]
	if !ok {
		text = g.responses["*"]
	}
	g.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": status, "message": "simulated failure", "status": "UNAVAILABLE"},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{{"text": text}}},
		}},
	})
}
