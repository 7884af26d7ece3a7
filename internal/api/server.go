package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/config"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/logging"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/process"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/query"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/region"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/version"
)

// Bridge is the wait surface of the query service.
type Bridge interface {
	Wait(ctx context.Context, req query.Request) (*query.Match, error)
	Pending() int
}

// Lifecycle is the query bridge lifecycle guard.
type Lifecycle interface {
	Epoch() uint64
	Running() bool
	Reload(reason string) query.Transition
}

// ServerInfo reports the managed server process.
type ServerInfo interface {
	Info() process.Info
}

// CarpetProbe answers whether the carpet mod is loaded.
type CarpetProbe interface {
	Known() (present, known bool)
	Query(ctx context.Context) bool
	Reprobe(ctx context.Context) bool
}

// RegionQuerier runs region attribute queries.
type RegionQuerier interface {
	PlayersNBTInRegions(ctx context.Context, spec region.Spec, attribute string, timeout time.Duration) (map[string]string, bool, error)
}

// PresetSource looks up named region queries.
type PresetSource interface {
	Preset(name string) (config.RegionQuery, bool)
	Names() []string
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	CORSOrigin   string // Access-Control-Allow-Origin; "*" if empty

	Bridge    Bridge
	Lifecycle Lifecycle
	Server    ServerInfo // optional
	Carpet    CarpetProbe
	Regions   RegionQuerier
	Presets   PresetSource // optional
	EventBus  *events.Bus

	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the Huma v2 API server
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("candy-tools API", version.String())
	config.Info.Description = "Synchronous request/response bridge over a Minecraft server console"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Prometheus scrapes without credentials
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves the API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting candy-tools API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and all connections, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerQueryRoutes()
	s.registerCarpetRoutes()
	s.registerRegionRoutes()
	s.registerLifecycleRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
