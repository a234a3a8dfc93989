// Package offline keeps Ghost's static assets available without a network.
//
// The model follows the browser service worker: a Worker pre-fetches a fixed
// manifest into a cache named after its version, activation deletes every
// other cache, and fetches are answered from the cache before falling through
// to the origin. A newer worker waits until the page asks it to take over
// with SkipWaiting.
package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// CachePrefix is prepended to the version to name a cache.
const CachePrefix = "ghost-ai-"

// SkipWaiting is the message a page posts to activate a waiting worker.
const SkipWaiting = "SKIP_WAITING"

// DefaultManifest lists the assets pre-fetched on install.
var DefaultManifest = []string{
	"./",
	"./index.html",
	"./style.css",
	"./script.js",
}

// ErrNotFound is returned when neither the cache nor the origin has a path.
var ErrNotFound = errors.New("offline: asset not found")

// CacheName returns the cache name for version.
func CacheName(version string) string {
	return CachePrefix + version
}

// Asset is one cached response.
type Asset struct {
	Path        string
	ContentType string
	Body        []byte
	ETag        string
}

// Fetcher loads an asset from the origin.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (Asset, error)
}

// Caches is a set of named asset caches. It is safe for concurrent use.
type Caches struct {
	mu    sync.RWMutex
	named map[string]map[string]Asset
}

// NewCaches returns an empty cache set.
func NewCaches() *Caches {
	return &Caches{named: make(map[string]map[string]Asset)}
}

// Put stores a under name, creating the cache if needed.
func (c *Caches) Put(name string, a Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.named[name]
	if !ok {
		cache = make(map[string]Asset)
		c.named[name] = cache
	}
	cache[a.Path] = a
}

// Match looks path up in the named cache.
func (c *Caches) Match(name, path string) (Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.named[name][path]
	return a, ok
}

// Delete drops the named cache.
func (c *Caches) Delete(name string) {
	c.mu.Lock()
	delete(c.named, name)
	c.mu.Unlock()
}

// Names returns the cache names in sorted order.
func (c *Caches) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.named))
	for n := range c.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Worker owns one versioned cache.
type Worker struct {
	Version  string
	Manifest []string

	caches *Caches
	origin Fetcher
}

// CacheName returns the name of the worker's cache.
func (w *Worker) CacheName() string {
	return CacheName(w.Version)
}

// install fetches every manifest entry. The cache is only populated when
// all of them load, so a partial install never becomes visible.
func (w *Worker) install(ctx context.Context) error {
	assets := make([]Asset, 0, len(w.Manifest))
	for _, p := range w.Manifest {
		a, err := w.origin.Fetch(ctx, p)
		if err != nil {
			return fmt.Errorf("offline: install %s: fetch %s: %w", w.CacheName(), p, err)
		}
		a.Path = CleanPath(p)
		if a.ETag == "" {
			a.ETag = etag(w.CacheName(), a.Body)
		}
		assets = append(assets, a)
	}
	for _, a := range assets {
		w.caches.Put(w.CacheName(), a)
	}
	return nil
}

// activate deletes every cache that is not the worker's own and returns
// their names.
func (w *Worker) activate() []string {
	var deleted []string
	for _, name := range w.caches.Names() {
		if name != w.CacheName() {
			w.caches.Delete(name)
			deleted = append(deleted, name)
		}
	}
	return deleted
}

// Fetch answers from the cache when possible, otherwise from the origin.
// Origin responses are not added to the cache.
func (w *Worker) Fetch(ctx context.Context, path string) (a Asset, cached bool, err error) {
	path = CleanPath(path)
	if a, ok := w.caches.Match(w.CacheName(), path); ok {
		return a, true, nil
	}
	a, err = w.origin.Fetch(ctx, path)
	if err != nil {
		return Asset{}, false, err
	}
	a.Path = path
	if a.ETag == "" {
		a.ETag = etag(w.CacheName(), a.Body)
	}
	return a, false, nil
}

// Registry tracks the active worker and at most one waiting successor.
type Registry struct {
	caches *Caches

	mu      sync.RWMutex
	active  *Worker
	waiting *Worker
}

// NewRegistry returns a Registry over a fresh cache set.
func NewRegistry() *Registry {
	return &Registry{caches: NewCaches()}
}

// Caches exposes the cache set.
func (r *Registry) Caches() *Caches {
	return r.caches
}

// Register installs a worker for version. The first worker activates at
// once; later ones wait for SkipWaiting. A failed install leaves the
// registry unchanged.
func (r *Registry) Register(ctx context.Context, version string, manifest []string, origin Fetcher) (*Worker, error) {
	if manifest == nil {
		manifest = DefaultManifest
	}
	w := &Worker{Version: version, Manifest: manifest, caches: r.caches, origin: origin}

	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active != nil && active.Version == version {
		return active, nil
	}

	if err := w.install(ctx); err != nil {
		return nil, err
	}
	slog.Info("offline: worker installed", "cache", w.CacheName(), "assets", len(manifest))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		r.activateLocked(w)
	} else {
		r.waiting = w
		slog.Info("offline: worker waiting", "cache", w.CacheName(), "active", r.active.CacheName())
	}
	return w, nil
}

// Message handles a message posted by the page. It reports whether a waiting
// worker was activated.
func (r *Registry) Message(msg string) bool {
	if msg != SkipWaiting {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil {
		return false
	}
	r.activateLocked(r.waiting)
	r.waiting = nil
	return true
}

func (r *Registry) activateLocked(w *Worker) {
	r.active = w
	deleted := w.activate()
	slog.Info("offline: worker activated", "cache", w.CacheName(), "deleted", deleted)
}

// Active returns the controlling worker, or nil before the first Register.
func (r *Registry) Active() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Waiting returns the installed worker waiting to take over, if any.
func (r *Registry) Waiting() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

func etag(cacheName string, body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + cacheName + "-" + hex.EncodeToString(sum[:6]) + `"`
}
