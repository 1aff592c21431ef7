package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowens2025/powervisualize/internal/application/assistant"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type echoRegistrar struct{ path string }

func (e echoRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(e.path, func(c *gin.Context) {
		c.String(http.StatusOK, c.FullPath())
	})
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, []string{"v1"}, r.aliases)
	assert.Empty(t, r.api)
	assert.Empty(t, r.probes)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithAliases("v1", "v2")).
		Register(echoRegistrar{path: "/ping"}).
		RegisterRoot(echoRegistrar{path: "/live"}).
		Setup()

	for path, want := range map[string]string{
		"/api/ping":    "/api/ping",
		"/api/v1/ping": "/api/v1/ping",
		"/api/v2/ping": "/api/v2/ping",
		"/live":        "/live",
	} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, w.Body.String())
	}
}

func TestRouterSetup_NoAliases(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithAliases()).Register(echoRegistrar{path: "/ping"}).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type fakeAsker struct {
	calls int
	panic bool
}

func (f *fakeAsker) Ask(_ context.Context, req assistant.Request) (*assistant.Response, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	resp := assistant.NewResponse("echo: " + req.Question)
	resp.Meta.RequestID = req.RequestID
	return resp, nil
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return assert.AnError }

type emptyCatalog struct{}

func (emptyCatalog) Len() int { return 0 }

func newTestEngine(asker *fakeAsker) *gin.Engine {
	return NewEngine(Dependencies{
		Asker:      asker,
		DB:         downDB{},
		Fallback:   emptyCatalog{},
		PersonName: "Ryan",
		ContactURL: "/contact",
		HTTP: config.HTTPConfig{
			MaxBodySize:      1 << 16,
			CORSAllowOrigins: []string{"https://portfolio.example"},
		},
	})
}

func TestEngine_AskRoutes(t *testing.T) {
	asker := &fakeAsker{}
	engine := newTestEngine(asker)

	for _, path := range []string{"/api/ask", "/api/v1/ask"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"question":"hello"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var resp assistant.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "echo: hello", resp.Answer)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, w.Header().Get("X-Request-ID"), resp.Meta.RequestID)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
	assert.Equal(t, 2, asker.calls)
}

func TestEngine_Preflight(t *testing.T) {
	engine := newTestEngine(&fakeAsker{})

	req := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	req.Header.Set("Origin", "https://portfolio.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://portfolio.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEngine_MethodNotAllowed(t *testing.T) {
	engine := newTestEngine(&fakeAsker{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Allow"))
}

func TestEngine_PanicIsAnsweredInResponseShape(t *testing.T) {
	engine := newTestEngine(&fakeAsker{panic: true})

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hello"}`))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp assistant.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "/contact")
	assert.NotNil(t, resp.SkillsConfirmed)
}

func TestEngine_BodyLimit(t *testing.T) {
	engine := newTestEngine(&fakeAsker{})

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(strings.Repeat("x", 1<<17)))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestEngine_Probes(t *testing.T) {
	engine := newTestEngine(&fakeAsker{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEngine_SwaggerDocs(t *testing.T) {
	t.Run("serves the generated document", func(t *testing.T) {
		engine := NewEngine(Dependencies{
			Asker:   &fakeAsker{},
			Swagger: config.SwaggerConfig{Enabled: true},
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var doc struct {
			Paths map[string]json.RawMessage `json:"paths"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Contains(t, doc.Paths, "/api/ask")
		assert.Contains(t, doc.Paths, "/health")
		assert.Contains(t, doc.Paths, "/ready")
	})

	t.Run("disabled", func(t *testing.T) {
		engine := newTestEngine(&fakeAsker{})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("outside the allow list", func(t *testing.T) {
		engine := NewEngine(Dependencies{
			Asker:   &fakeAsker{},
			Swagger: config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}},
		})

		req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
