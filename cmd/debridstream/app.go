package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amaumene/debridstream/internal/cache"
	"github.com/amaumene/debridstream/internal/config"
	"github.com/amaumene/debridstream/internal/constants"
	"github.com/amaumene/debridstream/internal/database"
	"github.com/amaumene/debridstream/internal/handlers"
	"github.com/amaumene/debridstream/internal/middleware"
	"github.com/amaumene/debridstream/internal/proxy"
	"github.com/amaumene/debridstream/internal/resolver"
	"github.com/amaumene/debridstream/internal/services"
	"github.com/amaumene/debridstream/internal/transcode"
	"github.com/amaumene/debridstream/pkg/alldebrid"
	"github.com/amaumene/debridstream/pkg/httputil"
	"github.com/amaumene/debridstream/pkg/logger"
	"github.com/amaumene/debridstream/pkg/torrentsearch"
	"github.com/amaumene/debridstream/pkg/torrentsearch/providers"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

// App holds everything built from one configuration.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	DB         database.Database
	Services   *services.Container
	Resolver   *resolver.Resolver
	Transcoder *transcode.Manager
	Proxy      *proxy.Proxy
}

// NewApp builds the services. The database is opened only when withDB is
// set, so one-shot commands can run next to a serving instance.
func NewApp(cfg *config.Config, withDB bool) (*App, error) {
	app := &App{Config: cfg}
	app.InitializeLogger()
	if withDB {
		if err := app.InitializeDatabase(); err != nil {
			return nil, err
		}
	}
	app.InitializeServices()
	if err := app.InitializeTranscoder(); err != nil {
		app.Close()
		return nil, err
	}
	app.Proxy = proxy.New(cfg.Proxy.AllowedHosts, httputil.NewStreamingClient(cfg.Proxy.HeaderTimeout), app.Logger)
	app.Resolver = resolver.New(app.Services.Debrid, app.Transcoder, app.Logger)
	return app, nil
}

func (a *App) InitializeLogger() {
	a.Logger = logger.NewWithOptions(logger.Options{
		Level:  a.Config.LogLevel,
		Format: a.Config.LogFormat,
		File:   a.Config.LogFile,
	})

	switch a.Config.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		a.Logger.Warnf("[App] unknown log level '%s', defaulting to info", a.Config.LogLevel)
	}
}

func (a *App) InitializeDatabase() error {
	dbPath := filepath.Join(a.Config.DatabaseDir, constants.AppName+".db")
	db, err := database.NewBolt(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.Logger.Infof("[App] database opened at %s", dbPath)
	return nil
}

func (a *App) InitializeServices() {
	cfg := a.Config

	secrets := services.NewMemorySecretStore()
	secrets.Set(constants.ScopeDebrid, constants.SecretAllDebrid, cfg.AllDebridAPIKey)
	secrets.Set(constants.ScopeCatalog, constants.SecretTMDB, cfg.TMDBAPIKey)

	client := alldebrid.NewClient().WithAgent(cfg.Debrid.Agent)
	if cfg.Debrid.BaseURL != "" {
		client.WithBaseURL(cfg.Debrid.BaseURL)
	}
	token := services.StoreToken{Store: secrets, Scope: constants.ScopeDebrid, Provider: constants.SecretAllDebrid}
	debrid := services.NewAllDebrid(client, token, services.AllDebridOptions{
		Retries: cfg.Debrid.Retries,
		Backoff: cfg.Debrid.Backoff,
	}, a.Logger)

	tmdb := services.NewTMDB(secrets, cfg.Catalog.TTL, a.Logger)
	if a.DB != nil {
		debrid.SetDB(a.DB)
		tmdb.SetDB(a.DB)
	}

	registry := torrentsearch.New(cfg.Search.Timeout, cfg.Search.MaxResults, a.Logger)
	a.registerProviders(registry)

	searchCache := cache.NewSearchCache(cfg.Search.CacheSize, cfg.Search.CacheTTL, nil)

	a.Services = &services.Container{
		Registry:    registry,
		SearchCache: searchCache,
		Search:      services.NewSearchService(registry, searchCache, tmdb, debrid, a.Logger),
		Debrid:      debrid,
		Links:       services.NewLinkService(debrid, a.Logger),
		Catalog:     tmdb,
		Secrets:     secrets,
		DB:          a.DB,
		Logger:      a.Logger,
	}
	if a.DB != nil {
		a.Services.Cleanup = services.NewCleanupService(a.DB, debrid, cfg.Cleanup.Schedule, cfg.Cleanup.Retention, a.Logger)
	}

	a.Logger.Infof("[App] services initialized with providers %v", registry.Providers())
}

func (a *App) registerProviders(registry *torrentsearch.TorrentSearch) {
	cfg := a.Config.Providers
	for _, name := range constants.AllProviders {
		if !a.Config.ProviderEnabled(name) {
			continue
		}
		mirrors := cfg.Mirrors[name]

		var p torrentsearch.Provider
		switch name {
		case constants.ProviderApiBay:
			p = providers.NewApiBayProvider(mirrors, a.Logger)
		case constants.ProviderTorrentsCSV:
			p = providers.NewTorrentsCSVProvider(mirrors, a.Logger)
		case constants.ProviderYTS:
			p = providers.NewYTSProvider(mirrors, a.Logger)
		case constants.ProviderEZTV:
			p = providers.NewEZTVProvider(mirrors, a.Logger)
		case constants.ProviderYGG:
			p = providers.NewYGGProvider(mirrors, a.Logger)
		case constants.Provider1337x:
			p = providers.NewX1337Provider(mirrors, a.Logger)
		case constants.ProviderDirectLinks:
			if len(mirrors) == 0 {
				a.Logger.Debugf("[App] %s has no mirrors configured, skipping", name)
				continue
			}
			p = providers.NewDirectLinkProvider(mirrors, cfg.DirectLinkSearchPath, a.Logger)
		default:
			continue
		}
		registry.RegisterProvider(p, cfg.MinInterval[name])
	}
}

func (a *App) InitializeTranscoder() error {
	cfg := a.Config.Transcode
	m, err := transcode.NewManager(transcode.Options{
		Enabled:     cfg.Enabled,
		Mode:        transcode.Mode(cfg.Mode),
		Dir:         cfg.Dir,
		Workers:     cfg.Workers,
		Retention:   cfg.Retention,
		FailedGrace: cfg.FailedGrace,
		Containers:  cfg.HLSContainers,
	}, afero.NewOsFs(), &transcode.ExecRunner{Binary: cfg.FFmpeg}, a.Logger)
	if err != nil {
		return err
	}
	a.Transcoder = m

	if a.DB != nil {
		m.SetDB(a.DB)
		if n := m.Restore(); n > 0 {
			a.Logger.Infof("[App] restored %d transcode sessions", n)
		}
	}
	if a.Services.Cleanup != nil {
		a.Services.Cleanup.AddPurger(m)
	}
	return nil
}

// Router builds the gin engine with middleware and routes.
func (a *App) Router() *gin.Engine {
	if a.Config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(a.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip("/stream/", "/transcode/"))

	h := handlers.New(a.Services, a.Resolver, a.Transcoder, a.Proxy, a.Config)
	h.RegisterRoutes(r)
	return r
}

// Serve runs the HTTP server and the background jobs until a signal arrives.
func (a *App) Serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.Services.SearchCache.StartCleanup(ctx, a.Config.Search.SweepInterval)
	if a.Services.Cleanup != nil {
		if err := a.Services.Cleanup.Start(); err != nil {
			return fmt.Errorf("failed to start cleanup: %w", err)
		}
		defer a.Services.Cleanup.Stop()
	}

	server := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.Logger.Infof("[App] starting HTTP server on port %s", a.Config.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.Logger.WithField("signal", sig.String()).Info("[App] shutting down")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Errorf("[App] error during shutdown: %v", err)
	}
	return nil
}

func (a *App) Close() {
	if a.Transcoder != nil {
		a.Transcoder.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warnf("[App] failed to close database: %v", err)
		}
	}
}
