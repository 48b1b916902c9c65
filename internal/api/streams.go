package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/streams"
)

// registerStreamRoutes registers all stream-related endpoints
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Active Streams",
		Description: "Status of every running transcoder, ordered by camera id",
		Tags:        []string{"streams"},
		Errors:      []int{500},
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		list := s.streams.ListAll()
		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams:       list,
				Active:        len(list),
				MaxConcurrent: s.streams.Settings().MaxConcurrent,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-settings",
		Method:      http.MethodGet,
		Path:        "/api/streams/settings",
		Summary:     "Get Stream Settings",
		Tags:        []string{"streams"},
	}, func(ctx context.Context, input *struct{}) (*models.StreamSettingsResponse, error) {
		return &models.StreamSettingsResponse{Body: toSettingsData(s.streams.Settings())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-stream-settings",
		Method:      http.MethodPatch,
		Path:        "/api/streams/settings",
		Summary:     "Update Stream Settings",
		Description: "Change supervisor tunables. Running streams keep their configuration.",
		Tags:        []string{"streams"},
		Errors:      []int{400, 422},
	}, func(ctx context.Context, input *models.StreamSettingsPatchRequest) (*models.StreamSettingsResponse, error) {
		patch, err := toSettingsPatch(input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}
		updated, err := s.streams.UpdateSettings(patch)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.StreamSettingsResponse{Body: toSettingsData(updated)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "sweep-segments",
		Method:      http.MethodPost,
		Path:        "/api/streams/sweep",
		Summary:     "Sweep Segments",
		Description: "Prune old segments of every running stream now instead of waiting for the next sweep",
		Tags:        []string{"streams"},
	}, func(ctx context.Context, input *struct{}) (*models.SweepResponse, error) {
		return &models.SweepResponse{Body: s.streams.SweepNow(ctx)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "start-stream",
		Method:        http.MethodPost,
		Path:          "/api/streams/{camera_id}/start",
		Summary:       "Start Stream",
		Description:   "Spawn a transcoder for the camera. Without source_url the camera's stored RTSP URL is used.",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 404, 409, 422, 500, 503},
	}, func(ctx context.Context, input *models.StreamStartRequest) (*models.StreamResponse, error) {
		source := input.Body.SourceURL
		if source == "" {
			url, err := s.cameras.SourceURL(input.CameraID)
			if err != nil {
				return nil, s.mapError(err)
			}
			source = url
		}

		status, err := s.streams.Start(ctx, input.CameraID, source, input.Body.Overrides)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.StreamResponse{Body: *status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{camera_id}/stop",
		Summary:     "Stop Stream",
		Description: "Stop the camera's transcoder. Stopping a camera with no stream succeeds.",
		Tags:        []string{"streams"},
		Errors:      []int{400, 500},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.StreamStopResponse, error) {
		if err := s.streams.Stop(ctx, input.CameraID); err != nil {
			return nil, s.mapError(err)
		}
		return &models.StreamStopResponse{
			Body: models.StreamStopData{CameraID: input.CameraID, Message: "Stream stopped"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{camera_id}/restart",
		Summary:     "Restart Stream",
		Description: "Stop and start the camera's transcoder with the configuration it was started with",
		Tags:        []string{"streams"},
		Errors:      []int{404, 409, 500, 503},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.StreamResponse, error) {
		status, err := s.streams.Restart(ctx, input.CameraID)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.StreamResponse{Body: *status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-status",
		Method:      http.MethodGet,
		Path:        "/api/streams/{camera_id}/status",
		Summary:     "Get Stream Status",
		Description: "Runtime status of the camera's transcoder, or its last exit if it ended on its own",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.StreamResponse, error) {
		status, err := s.streams.Status(input.CameraID)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.StreamResponse{Body: *status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-metrics",
		Method:      http.MethodGet,
		Path:        "/api/streams/{camera_id}/metrics",
		Summary:     "Get Stream Metrics",
		Description: "Latest encoder progress of a running stream",
		Tags:        []string{"streams"},
		Errors:      []int{404},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.StreamMetricsResponse, error) {
		m, err := s.streams.Metrics(input.CameraID)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.StreamMetricsResponse{Body: *m}, nil
	})
}

func toSettingsData(st streams.Settings) models.StreamSettingsData {
	return models.StreamSettingsData{
		MaxConcurrent: st.MaxConcurrent,
		SweepInterval: st.SweepInterval.String(),
		StopGrace:     st.StopGrace.String(),
		RestartDelay:  st.RestartDelay.String(),
		Transcode:     st.Transcode,
	}
}

func toSettingsPatch(body models.StreamSettingsPatchData) (streams.SettingsPatch, error) {
	patch := streams.SettingsPatch{
		MaxConcurrent:  body.MaxConcurrent,
		SegmentSeconds: body.SegmentSeconds,
		MaxSegments:    body.MaxSegments,
		PlaylistType:   body.PlaylistType,
		VideoBitrate:   body.VideoBitrate,
		AudioBitrate:   body.AudioBitrate,
		Preset:         body.Preset,
	}
	for _, d := range []struct {
		field string
		raw   *string
		dst   **time.Duration
	}{
		{"sweep_interval", body.SweepInterval, &patch.SweepInterval},
		{"stop_grace", body.StopGrace, &patch.StopGrace},
		{"restart_delay", body.RestartDelay, &patch.RestartDelay},
	} {
		if d.raw == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return streams.SettingsPatch{}, fmt.Errorf("invalid %s: %w", d.field, err)
		}
		*d.dst = &parsed
	}
	return patch, nil
}
