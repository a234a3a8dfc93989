// Package app wires Ghost together: rule book, storage, resolver, the
// conversation engine, and the HTTP and Matrix transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bdobrica/Ghost/common/redact"
	"github.com/bdobrica/Ghost/common/retry"
	"github.com/bdobrica/Ghost/common/version"
	"github.com/bdobrica/Ghost/internal/ghost/generate"
	"github.com/bdobrica/Ghost/internal/ghost/kv"
	"github.com/bdobrica/Ghost/internal/ghost/matrix"
	"github.com/bdobrica/Ghost/internal/ghost/offline"
	"github.com/bdobrica/Ghost/internal/ghost/persist"
	"github.com/bdobrica/Ghost/internal/ghost/platform"
	"github.com/bdobrica/Ghost/internal/ghost/resolver"
	"github.com/bdobrica/Ghost/internal/ghost/rules"
	"github.com/bdobrica/Ghost/internal/ghost/store"
	"github.com/bdobrica/Ghost/internal/ghost/web"
)

// Config holds application configuration.
type Config struct {
	// HTTPAddr is the listen address of the web server (e.g. ":8080"). When
	// empty the web server is disabled.
	HTTPAddr string
	// DatabasePath is the SQLite file. When empty sessions live in memory
	// and are lost on exit.
	DatabasePath string

	UnlockSecret string
	ResetSecret  string

	// RulesPath overrides the embedded rule book.
	RulesPath string
	// AssetsDir overrides the embedded static assets.
	AssetsDir string
	// CacheVersion names the offline cache, "ghost-ai-<version>".
	CacheVersion string

	// HistoryLimit bounds the persisted transcript.
	HistoryLimit int

	// Epoch is Ghost's own birthday; OwnerBirthdate answers "my age" and
	// may be zero.
	Epoch          time.Time
	OwnerBirthdate time.Time

	Generation GenerationConfig

	// MaxRestarts and RestartDelay bound automatic recognition restarts.
	MaxRestarts  int
	RestartDelay time.Duration

	VoiceName string
	Locale    string

	// Matrix enables the room transport when its credentials are set.
	Matrix matrix.Config
}

// GenerationConfig selects the optional text-generation backend.
type GenerationConfig struct {
	// Provider is "openai", "gemini" or empty for none.
	Provider string
	APIKey   string
	// Endpoint overrides the OpenAI-compatible base URL.
	Endpoint string
	Model    string
	// Project and Location select Vertex AI when Provider is "gemini" and
	// no APIKey is set.
	Project  string
	Location string
	// Timeout bounds one generation call.
	Timeout time.Duration
	// RateLimit is the number of calls allowed per session per minute.
	RateLimit int
}

// fields summarises the configuration for the startup log.
func (c *Config) fields() map[string]any {
	return map[string]any{
		"http_addr":           c.HTTPAddr,
		"database_path":       c.DatabasePath,
		"unlock_secret":       c.UnlockSecret,
		"reset_secret":        c.ResetSecret,
		"rules_path":          c.RulesPath,
		"cache_version":       c.CacheVersion,
		"history_limit":       c.HistoryLimit,
		"gen_provider":        c.Generation.Provider,
		"gen_api_key":         c.Generation.APIKey,
		"gen_model":           c.Generation.Model,
		"matrix_homeserver":   c.Matrix.Homeserver,
		"matrix_access_token": c.Matrix.AccessToken,
	}
}

// App is the Ghost application.
type App struct {
	config  *Config
	store   *store.Store
	engine  *Engine
	offline *offline.Registry
	web     *web.Server
	matrix  *matrix.Client
}

// New builds the application. Nothing is started until Run or Serve.
func New(config *Config) (*App, error) {
	ctx := context.Background()

	book, err := loadBook(config.RulesPath)
	if err != nil {
		return nil, err
	}

	a := &App{config: config}
	slog.Info("configuration", "config", redact.Map(config.fields()))

	var kvStore kv.Store
	if config.DatabasePath == "" {
		slog.Warn("no database configured; sessions are kept in memory only")
		kvStore = kv.NewMemory()
	} else {
		slog.Info("opening database", "path", config.DatabasePath)
		st, err := store.New(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.store = st
		kvStore = kv.New(st)
	}

	gen, err := newGenerator(ctx, config.Generation)
	if err != nil {
		a.closeStore()
		return nil, err
	}

	res, err := resolver.New(resolver.Config{
		Book:              book,
		UnlockSecret:      config.UnlockSecret,
		ResetSecret:       config.ResetSecret,
		Epoch:             config.Epoch,
		OwnerBirthdate:    config.OwnerBirthdate,
		Generator:         gen,
		GenerationTimeout: config.Generation.Timeout,
		Version:           version.Version,
		LastUpdated:       version.LastUpdated,
	})
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("failed to build resolver: %w", err)
	}

	a.engine = NewEngine(Options{
		Resolver:     res,
		Book:         book,
		Persist:      persist.New(kvStore, config.HistoryLimit),
		HistoryLimit: config.HistoryLimit,
		MaxRestarts:  config.MaxRestarts,
		RestartDelay: config.RestartDelay,
		VoiceName:    config.VoiceName,
		Locale:       config.Locale,
		Secrets:      []string{config.UnlockSecret, config.ResetSecret},
	})

	if config.HTTPAddr != "" {
		a.offline = offline.NewRegistry()
		if _, err := a.offline.Register(ctx, orDefault(config.CacheVersion, "v1"), nil, offline.FSFetcher{FS: assetsFS(config.AssetsDir)}); err != nil {
			a.closeStore()
			return nil, fmt.Errorf("failed to install offline assets: %w", err)
		}
		a.web = web.NewServer(config.HTTPAddr, NewWebBackend(a.engine, platform.DefaultMaxDirectives), offline.NewHandler(a.offline))
	}

	if config.Matrix.Enabled() {
		config.Matrix.State = kvStore
		mc, err := matrix.New(&config.Matrix)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("failed to create Matrix client: %w", err)
		}
		a.matrix = mc
	}

	return a, nil
}

// Engine returns the conversation engine.
func (a *App) Engine() *Engine {
	return a.engine
}

// Run serves until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts the configured transports and blocks until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if a.web == nil && a.matrix == nil {
		return errors.New("nothing to serve: set an HTTP address or Matrix credentials")
	}

	if a.web != nil {
		if err := a.web.Start(ctx); err != nil {
			return err
		}
	}

	if a.matrix != nil {
		slog.Info("starting Matrix sync")
		if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
			return fmt.Errorf("failed to start Matrix client: %w", err)
		}
	}

	slog.Info("Ghost is running; press Ctrl+C to stop", "version", version.Version)
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// Stop stops the transports, ends every conversation and closes the store.
func (a *App) Stop() {
	if a.matrix != nil {
		slog.Info("stopping Matrix client")
		a.matrix.Stop()
	}
	if a.web != nil {
		slog.Info("stopping web server")
		a.web.Stop()
	}
	a.engine.CloseAll()
	a.closeStore()
}

func (a *App) closeStore() {
	if a.store != nil {
		slog.Info("closing database")
		a.store.Close()
		a.store = nil
	}
}

// handleMessage answers a Matrix message in its room.
func (a *App) handleMessage(ctx context.Context, msg matrix.Message) {
	if err := a.matrix.SetTyping(ctx, msg.RoomID, true, 10*time.Second); err != nil {
		slog.Debug("matrix typing indicator", "room", msg.RoomID, "err", err)
	}
	relay(ctx, a.engine, a.matrix, msg)
	if err := a.matrix.SetTyping(ctx, msg.RoomID, false, 0); err != nil {
		slog.Debug("matrix typing indicator", "room", msg.RoomID, "err", err)
	}
}

// replier posts replies into a room.
type replier interface {
	SendReply(ctx context.Context, roomID, text string) error
}

// relay runs one Matrix message through its conversation and posts every
// assistant message it produced, the lock prompt of a new session included.
func relay(ctx context.Context, e *Engine, out replier, msg matrix.Message) {
	c, _ := e.Open(ctx, msg.SessionID(), platform.Silent{})
	c.Send(ctx, msg.Body)
	for _, m := range c.Drain() {
		if err := out.SendReply(ctx, msg.RoomID, m.Text); err != nil {
			slog.Error("failed to send reply", "room", msg.RoomID, "session", c.ID, "err", err)
		}
	}
}

func loadBook(path string) (*rules.Book, error) {
	if path == "" {
		return rules.Default()
	}
	slog.Info("loading rule book", "path", path)
	return rules.LoadFile(path)
}

func assetsFS(dir string) fs.FS {
	if dir == "" {
		return offline.Assets()
	}
	return os.DirFS(dir)
}

// newGenerator builds the configured generation backend, rate-limited per
// session and retried on transport errors. It returns nil when generation
// is off.
func newGenerator(ctx context.Context, cfg GenerationConfig) (generate.Generator, error) {
	var g generate.Generator
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" && cfg.Endpoint == "" {
			return nil, errors.New("generation provider openai needs an API key or an endpoint")
		}
		g = generate.NewOpenAI(generate.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case "gemini":
		var err error
		g, err = generate.NewGemini(ctx, generate.GeminiConfig{
			APIKey:   cfg.APIKey,
			Project:  cfg.Project,
			Location: cfg.Location,
			Model:    cfg.Model,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	slog.Info("text generation enabled", "provider", cfg.Provider, "model", orDefault(cfg.Model, "default"), "rate_limit", cfg.RateLimit)
	g = generate.Retrying(g, retry.Config{MaxAttempts: 2, InitialDelay: 250 * time.Millisecond, MaxDelay: time.Second})
	return generate.Limited(g, generate.NewRateLimiter(cfg.RateLimit, time.Minute)), nil
}
