package cameras

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
)

// EventPublisher publishes camera events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// StreamStopper stops the stream of a camera that is being removed.
type StreamStopper interface {
	Stop(ctx context.Context, cameraID string) error
}

// CreateParams are the inputs for a new camera. An empty ID is generated.
type CreateParams struct {
	ID      string
	Name    string
	RTSPURL string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Repository     Repository
	Events         EventPublisher // optional
	Streams        StreamStopper  // optional
	AllowedSchemes []string
	Logger         *slog.Logger // optional
}

// Service validates camera changes, persists them and announces them.
type Service struct {
	repo    Repository
	events  EventPublisher
	streams StreamStopper
	schemes []string
	logger  *slog.Logger
}

// NewService creates a camera service.
func NewService(opts *ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("cameras")
	}
	return &Service{
		repo:    opts.Repository,
		events:  opts.Events,
		streams: opts.Streams,
		schemes: opts.AllowedSchemes,
		logger:  logger,
	}
}

// SetStreamStopper wires the supervisor after construction; the supervisor
// itself depends on the service for status updates.
func (s *Service) SetStreamStopper(stopper StreamStopper) {
	s.streams = stopper
}

// Get returns one camera.
func (s *Service) Get(_ context.Context, id string) (Camera, error) {
	return s.repo.Get(id)
}

// List returns the cameras matching opts and the total match count.
func (s *Service) List(_ context.Context, opts ListOptions) ([]Camera, int, error) {
	all, err := s.repo.List()
	if err != nil {
		return nil, 0, err
	}
	page, total := Filter(all, opts)
	return page, total, nil
}

// Create validates and stores a new camera with status offline.
func (s *Service) Create(_ context.Context, params CreateParams) (Camera, error) {
	camera := Camera{
		ID:      params.ID,
		Name:    strings.TrimSpace(params.Name),
		RTSPURL: params.RTSPURL,
		Status:  StatusOffline,
	}
	if camera.ID == "" {
		camera.ID = "cam-" + uuid.NewString()[:8]
	}
	if err := Validate(camera, s.schemes); err != nil {
		return Camera{}, err
	}

	if err := s.repo.Create(camera); err != nil {
		return Camera{}, err
	}
	created, err := s.repo.Get(camera.ID)
	if err != nil {
		return Camera{}, err
	}

	s.logger.Info("Camera created", "camera_id", created.ID, "name", created.Name)
	s.publish(events.CameraCreatedEvent{Camera: created.Info(), Timestamp: events.Now()})
	return created, nil
}

// Update validates and applies a partial update.
func (s *Service) Update(_ context.Context, id string, patch Patch) (Camera, error) {
	current, err := s.repo.Get(id)
	if err != nil {
		return Camera{}, err
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := Validate(patch.Apply(current), s.schemes); err != nil {
		return Camera{}, err
	}

	updated, err := s.repo.Update(id, patch)
	if err != nil {
		return Camera{}, err
	}

	s.logger.Info("Camera updated", "camera_id", id)
	s.publish(events.CameraUpdatedEvent{Camera: updated.Info(), Timestamp: events.Now()})
	return updated, nil
}

// Delete stops the camera's stream, if any, and removes the record.
// A failed stop is logged and does not block the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(id); err != nil {
		return err
	}

	if s.streams != nil {
		if err := s.streams.Stop(ctx, id); err != nil {
			s.logger.Warn("Failed to stop stream of deleted camera", "camera_id", id, "error", err)
		}
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}

	s.logger.Info("Camera deleted", "camera_id", id)
	s.publish(events.CameraDeletedEvent{CameraID: id, Timestamp: events.Now()})
	return nil
}

// UpdateStatus records the runtime status of a camera. Unknown cameras are
// reported as ErrNotFound so callers can decide whether to care.
func (s *Service) UpdateStatus(id string, status Status) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Value: string(status), Reason: "unknown status"}
	}
	current, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	if current.Status == status {
		return nil
	}
	updated, err := s.repo.Update(id, Patch{Status: &status})
	if err != nil {
		return fmt.Errorf("update status of %s: %w", id, err)
	}
	s.publish(events.CameraUpdatedEvent{Camera: updated.Info(), Timestamp: events.Now()})
	return nil
}

// SourceURL returns the stored RTSP URL of a camera, or ErrNoSource when the
// camera has none.
func (s *Service) SourceURL(id string) (string, error) {
	camera, err := s.repo.Get(id)
	if err != nil {
		return "", err
	}
	if camera.RTSPURL == "" {
		return "", ErrNoSource
	}
	return camera.RTSPURL, nil
}

func (s *Service) publish(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}
