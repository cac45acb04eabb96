// Package server assembles the viewer backend from its configuration:
// storage, snapshots, loaders, sessions, uploads and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ifc-viewer/backend/internal/api"
	"github.com/ifc-viewer/backend/internal/config"
	"github.com/ifc-viewer/backend/internal/loader"
	"github.com/ifc-viewer/backend/internal/parser"
	"github.com/ifc-viewer/backend/internal/session"
	"github.com/ifc-viewer/backend/internal/snapshot"
	"github.com/ifc-viewer/backend/internal/storage"
	"github.com/ifc-viewer/backend/internal/upload"
	"github.com/ifc-viewer/backend/internal/web"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// uploadJobMaxAge is how long finished upload jobs stay queryable.
const uploadJobMaxAge = time.Hour

// Server owns every long-lived component of a running backend.
type Server struct {
	cfg     *config.AppConfig
	version string

	Store     *storage.LocalStore
	Snapshots snapshot.Store
	Sessions  *session.Manager
	Uploads   *upload.Manager
	watcher   *config.Watcher

	echo     *echo.Echo
	http     *http.Server
	embedded bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a server from cfg. Nothing listens until Start.
func New(cfg *config.AppConfig, version string) (*Server, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, version: version, stop: make(chan struct{})}

	store, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.Store = store

	if cfg.Storage.EnableSnapshots {
		duck, err := snapshot.NewDuckStore(cfg.Storage.SnapshotDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		cached, err := snapshot.NewCachedStore(duck, cfg.Storage.SnapshotCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot cache: %w", err)
		}
		s.Snapshots = cached
	}

	ld, err := s.newLoader()
	if err != nil {
		return nil, err
	}

	opts := cfg.ViewerOptions()
	rs, err := cfg.LoadRequirements()
	if err != nil {
		return nil, fmt.Errorf("failed to load requirements: %w", err)
	}
	opts.Requirements = rs

	s.Sessions = session.NewManager(session.Config{
		Viewer:      opts,
		MaxSessions: cfg.Sessions.MaxSessions,
		Loader:      ld,
		Snapshots:   s.Snapshots,
	})
	s.Uploads = upload.NewManager(store)

	if cfg.Requirements.File != "" && cfg.Requirements.Watch {
		w, err := config.NewWatcher(cfg.Requirements.File, s.Sessions)
		if err != nil {
			fmt.Printf("[Server] Warning: not watching requirements: %v\n", err)
		} else {
			s.watcher = w
		}
	}

	s.setupEcho()
	return s, nil
}

// newLoader builds the fetcher mux: local paths and HTTP(S) always, s3://
// when an S3 endpoint is configured.
func (s *Server) newLoader() (*loader.Loader, error) {
	mux := loader.NewMux()
	if t := s.cfg.Advanced.FetchTimeoutSeconds; t > 0 {
		httpFetcher := loader.NewHTTPFetcher(time.Duration(t) * time.Second)
		mux.Handle("http", httpFetcher)
		mux.Handle("https", httpFetcher)
	}
	if s3cfg := s.cfg.LoaderS3Config(); s3cfg != nil {
		s3f, err := loader.NewS3Fetcher(*s3cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 fetcher: %w", err)
		}
		mux.Handle("s3", s3f)
	}
	return loader.New(mux, loader.Options{
		Intern:       parser.NewStringIntern(),
		ProgressRate: rate.Limit(s.cfg.Advanced.ProgressEventsPerSecond),
		MaxBytes:     s.cfg.MaxModelBytes(),
	}), nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		EnableRequestLogging: s.cfg.Advanced.EnableRequestLogging,
		EnableCORS:           s.cfg.Server.EnableCORS,
		AllowOrigins:         s.cfg.Server.AllowOrigins,
		BodyLimit:            s.cfg.Server.BodyLimit,
		RequestTimeout:       time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:            s.Store,
		Sessions:         s.Sessions,
		UploadMgr:        s.Uploads,
		Snapshots:        s.Snapshots,
		Version:          s.version,
		WSMaxMessageSize: int64(s.cfg.Advanced.WebSocketMaxMessageSizeKB) * 1024,
	}))

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("[Server] Warning: failed to register static routes: %v\n", err)
		} else {
			s.embedded = true
		}
	}

	s.echo = e
	s.http = &http.Server{
		Addr:         s.cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}
}

// Echo returns the HTTP handler.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs background cleanup and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.wg.Add(1)
	go s.cleanupLoop()

	s.printBanner()
	err := s.echo.StartServer(s.http)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and releases every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	err := s.http.Shutdown(ctx)
	s.wg.Wait()
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.Sessions.Close()
	return err
}

func (s *Server) cleanupLoop() {
	defer s.wg.Done()
	interval := time.Duration(s.cfg.Sessions.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Cleanup drops idle sessions, finished upload jobs and snapshots of
// deleted files.
func (s *Server) Cleanup() {
	maxAge := time.Duration(s.cfg.Sessions.SessionTimeoutMinutes) * time.Minute
	if maxAge <= 0 {
		maxAge = session.SessionMaxAge
	}
	sessions := s.Sessions.CleanupOldSessions(maxAge)
	jobs := s.Uploads.CleanupOldJobs(uploadJobMaxAge)
	orphans := 0
	if s.Snapshots != nil {
		orphans = snapshot.CleanupOrphaned(s.Snapshots, s.Store.IDs())
	}
	if sessions+jobs+orphans > 0 {
		fmt.Printf("[Server] Cleanup: %d sessions, %d upload jobs, %d snapshots\n", sessions, jobs, orphans)
	}
}

func (s *Server) printBanner() {
	mode := "API only"
	if s.embedded {
		mode = "Embedded UI"
	}
	snapshots := "disabled"
	if s.Snapshots != nil {
		snapshots = s.cfg.Storage.SnapshotDirectory
	}
	requirements := s.cfg.Requirements.File
	if requirements == "" {
		requirements = "(none)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           IFC Viewer Server                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", s.version)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Listen:    http://%-38s║\n", s.cfg.GetServerAddr())
	fmt.Printf("║  Uploads:   %-46s║\n", s.cfg.GetUploadDir())
	fmt.Printf("║  Snapshots: %-46s║\n", snapshots)
	fmt.Printf("║  Rules:     %-46s║\n", requirements)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
