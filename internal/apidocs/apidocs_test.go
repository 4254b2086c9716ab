package apidocs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	h, err := NewHandler()
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	h.MountRoutes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestDocsPage(t *testing.T) {
	rr := get(newRouter(t), "/docs/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `id="swagger-ui"`)
	assert.Contains(t, rr.Body.String(), "/docs/init.js")

	rr = get(newRouter(t), "/docs/init.js")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/docs/openapi.json")
}

func TestOpenAPIJSONDescribesEndpoints(t *testing.T) {
	rr := get(newRouter(t), "/docs/openapi.json")
	require.Equal(t, http.StatusOK, rr.Code)

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)

	for path, method := range map[string]string{
		"/upload/":                  "post",
		"/employees/":               "get",
		"/employees/{employee_id}/": "get",
		"/companies/":               "get",
	} {
		require.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], method, path)
	}
}

func TestOpenAPIYAML(t *testing.T) {
	rr := get(newRouter(t), "/docs/openapi.yaml")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "openapi: 3.0.3")
}

func TestNormalizeStringifiesKeys(t *testing.T) {
	out := normalize(map[string]any{
		"responses": map[any]any{200: "ok"},
		"list":      []any{map[any]any{true: 1}},
	})
	encoded, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"responses":{"200":"ok"},"list":[{"true":1}]}`, string(encoded))
}
