package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/ffmpeg"
)

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List cameras with optional status filter, ordering and paging",
		Tags:        []string{"cameras"},
		Errors:      []int{422, 500},
	}, func(ctx context.Context, input *models.CameraListRequest) (*models.CameraListResponse, error) {
		opts := cameras.ListOptions{
			Status:    cameras.Status(input.Status),
			SortBy:    input.SortBy,
			Ascending: input.SortOrder == "asc",
			Page:      input.Page,
			Limit:     input.Limit,
		}
		if opts.Page > 0 && opts.Limit == 0 {
			opts.Limit = 20
		}

		list, total, err := s.cameras.List(ctx, opts)
		if err != nil {
			return nil, s.mapError(err)
		}

		data := make([]models.CameraData, len(list))
		for i, c := range list {
			data[i] = toCameraData(c)
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{
				Cameras: data,
				Total:   total,
				Page:    opts.Page,
				Limit:   opts.Limit,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-camera",
		Method:        http.MethodPost,
		Path:          "/api/cameras",
		Summary:       "Create Camera",
		Description:   "Register a camera. New cameras start offline.",
		Tags:          []string{"cameras"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 409, 422, 500},
	}, func(ctx context.Context, input *models.CameraCreateRequest) (*models.CameraResponse, error) {
		camera, err := s.cameras.Create(ctx, cameras.CreateParams{
			ID:      input.Body.ID,
			Name:    input.Body.Name,
			RTSPURL: input.Body.RTSPURL,
		})
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.CameraResponse{Body: toCameraData(camera)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{camera_id}",
		Summary:     "Get Camera",
		Tags:        []string{"cameras"},
		Errors:      []int{404, 500},
	}, func(ctx context.Context, input *models.CameraIDInput) (*models.CameraResponse, error) {
		camera, err := s.cameras.Get(ctx, input.CameraID)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.CameraResponse{Body: toCameraData(camera)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-camera",
		Method:      http.MethodPatch,
		Path:        "/api/cameras/{camera_id}",
		Summary:     "Update Camera",
		Description: "Change the name or source URL of a camera. A running stream keeps its current source until restarted.",
		Tags:        []string{"cameras"},
		Errors:      []int{400, 404, 422, 500},
	}, func(ctx context.Context, input *models.CameraUpdateRequest) (*models.CameraResponse, error) {
		camera, err := s.cameras.Update(ctx, input.CameraID, cameras.Patch{
			Name:    input.Body.Name,
			RTSPURL: input.Body.RTSPURL,
		})
		if err != nil {
			return nil, s.mapError(err)
		}
		return &models.CameraResponse{Body: toCameraData(camera)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-camera",
		Method:        http.MethodDelete,
		Path:          "/api/cameras/{camera_id}",
		Summary:       "Delete Camera",
		Description:   "Stop the camera's stream, if running, and remove the camera",
		Tags:          []string{"cameras"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{404, 500},
	}, func(ctx context.Context, input *models.CameraIDInput) (*struct{}, error) {
		if err := s.cameras.Delete(ctx, input.CameraID); err != nil {
			return nil, s.mapError(err)
		}
		return &struct{}{}, nil
	})
}

func toCameraData(c cameras.Camera) models.CameraData {
	return models.CameraData{
		ID:        c.ID,
		Name:      c.Name,
		RTSPURL:   ffmpeg.RedactURL(c.RTSPURL),
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
