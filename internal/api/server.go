package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/streams"
	"github.com/smazurov/camnode/internal/version"
)

// CameraService is the camera repository surface used by the API.
type CameraService interface {
	List(ctx context.Context, opts cameras.ListOptions) ([]cameras.Camera, int, error)
	Get(ctx context.Context, id string) (cameras.Camera, error)
	Create(ctx context.Context, params cameras.CreateParams) (cameras.Camera, error)
	Update(ctx context.Context, id string, patch cameras.Patch) (cameras.Camera, error)
	Delete(ctx context.Context, id string) error
	SourceURL(id string) (string, error)
}

// StreamSupervisor is the stream control surface used by the API.
type StreamSupervisor interface {
	Start(ctx context.Context, cameraID, sourceURL string, overrides *ffmpeg.Overrides) (*streams.StreamStatus, error)
	Stop(ctx context.Context, cameraID string) error
	Restart(ctx context.Context, cameraID string) (*streams.StreamStatus, error)
	Status(cameraID string) (*streams.StreamStatus, error)
	ListAll() []streams.StreamStatus
	Metrics(cameraID string) (*streams.StreamMetrics, error)
	ActiveCount() int
	Settings() streams.Settings
	UpdateSettings(patch streams.SettingsPatch) (streams.Settings, error)
	SweepNow(ctx context.Context) streams.SweepSummary
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	cameras    CameraService
	streams    StreamSupervisor
	eventBus   *events.Bus
	cors       CORSConfig
	logger     *slog.Logger
}

// Options wires the server to the application services.
type Options struct {
	Cameras           CameraService
	Streams           StreamSupervisor
	EventBus          *events.Bus
	CORSOrigin        string       // empty allows any origin
	PrometheusHandler http.Handler // optional
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camnode API", version.Version)
	config.Info.Description = "Camera registry and RTSP to HLS stream supervisor"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		cameras:  opts.Cameras,
		streams:  opts.Streams,
		eventBus: opts.EventBus,
		cors:     corsConfig,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

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
	s.logger.Info("Starting camnode API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and all open connections, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
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
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				Commit:    info.Commit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
				StartedAt: info.StartedAt,
				Uptime:    info.Uptime.Round(time.Second).String(),
			},
		}, nil
	})

	s.registerCameraRoutes()
	s.registerStreamRoutes()
	s.registerHLSRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}
