package offline

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"text/template"
)

//go:embed assets
var embedded embed.FS

//go:embed service-worker.js.tmpl
var workerTemplate string

var workerTmpl = template.Must(template.New("service-worker.js").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).Parse(workerTemplate))

// Assets returns the static assets embedded in the binary.
func Assets() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// CleanPath maps a request or manifest path to a key in the asset tree:
// "./", "/" and "" all mean index.html.
func CleanPath(p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "index.html"
	}
	return p
}

// FSFetcher serves assets from a file system.
type FSFetcher struct {
	FS fs.FS
}

// Fetch reads path from the file system.
func (f FSFetcher) Fetch(_ context.Context, p string) (Asset, error) {
	name := CleanPath(p)
	body, err := fs.ReadFile(f.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Asset{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Asset{}, fmt.Errorf("offline: read %s: %w", name, err)
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(body)
	}
	return Asset{Path: name, ContentType: ctype, Body: body}, nil
}

// Script renders the browser service worker for w.
func Script(w *Worker) ([]byte, error) {
	var buf bytes.Buffer
	err := workerTmpl.Execute(&buf, map[string]any{
		"CacheName":   w.CacheName(),
		"Manifest":    w.Manifest,
		"SkipWaiting": SkipWaiting,
	})
	if err != nil {
		return nil, fmt.Errorf("offline: render service worker: %w", err)
	}
	return buf.Bytes(), nil
}

// Handler serves the service worker script and the assets of the active
// worker, cache first.
type Handler struct {
	reg *Registry
}

// NewHandler returns a Handler over reg.
func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	worker := h.reg.Active()
	if worker == nil {
		http.Error(w, "assets not installed", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/service-worker.js" {
		script, err := Script(worker)
		if err != nil {
			slog.Error("offline: service worker", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Service-Worker-Allowed", "/")
		w.Write(script)
		return
	}

	asset, cached, err := worker.Fetch(r.Context(), r.URL.Path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Warn("offline: fetch asset", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", asset.ETag)
	w.Header().Set("X-Ghost-Cache", cacheStatus(cached))
	if asset.ContentType != "" {
		w.Header().Set("Content-Type", asset.ContentType)
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == asset.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if r.Method == http.MethodHead {
		return
	}
	w.Write(asset.Body)
}

func cacheStatus(cached bool) string {
	if cached {
		return "hit"
	}
	return "miss"
}
