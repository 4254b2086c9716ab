// Package apidocs serves the OpenAPI document and a Swagger UI page.
package apidocs

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

//go:embed assets/*
var assets embed.FS

// Handler serves /docs and the OpenAPI document in YAML and JSON.
type Handler struct {
	index  []byte
	script []byte
	yaml   []byte
	json   []byte
}

// NewHandler loads the embedded document and renders its JSON form once.
func NewHandler() (*Handler, error) {
	raw, err := assets.ReadFile("assets/openapi.yaml")
	if err != nil {
		return nil, fmt.Errorf("apidocs: read document: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("apidocs: decode document: %w", err)
	}
	if _, ok := doc["openapi"]; !ok {
		return nil, fmt.Errorf("apidocs: document has no openapi version")
	}
	encoded, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("apidocs: encode document: %w", err)
	}
	index, err := assets.ReadFile("assets/index.html")
	if err != nil {
		return nil, fmt.Errorf("apidocs: read index: %w", err)
	}
	script, err := assets.ReadFile("assets/init.js")
	if err != nil {
		return nil, fmt.Errorf("apidocs: read init script: %w", err)
	}
	return &Handler{index: index, script: script, yaml: raw, json: encoded}, nil
}

// MountRoutes registers the docs routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/docs", h.serve("text/html; charset=utf-8", h.index))
	r.Get("/docs/init.js", h.serve("text/javascript; charset=utf-8", h.script))
	r.Get("/docs/openapi.json", h.serve("application/json", h.json))
	r.Get("/docs/openapi.yaml", h.serve("application/yaml", h.yaml))
}

func (h *Handler) serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(body)
	}
}

// normalize converts yaml maps with non-string keys so encoding/json accepts them.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
