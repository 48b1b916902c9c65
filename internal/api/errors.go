package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/cameras"
	"github.com/smazurov/camnode/internal/ffmpeg"
	"github.com/smazurov/camnode/internal/streams"
)

// mapError maps domain errors to HTTP errors.
func (s *Server) mapError(err error) error {
	var streamErr *streams.StreamError
	var validationErr *ffmpeg.ValidationError

	switch {
	case errors.As(err, &validationErr):
		return huma.Error400BadRequest(validationErr.Error(), err)
	case errors.Is(err, cameras.ErrNoSource):
		return huma.Error400BadRequest("camera has no rtsp_url; pass source_url", err)
	case errors.Is(err, cameras.ErrNotFound):
		return huma.Error404NotFound(err.Error(), err)
	case errors.Is(err, cameras.ErrExists):
		return huma.Error409Conflict(err.Error(), err)
	case errors.As(err, &streamErr):
		return mapStreamError(streamErr)
	}

	s.logger.Error("Unhandled API error", "error", err)
	return huma.Error500InternalServerError("internal server error", err)
}

func mapStreamError(err *streams.StreamError) error {
	switch err.Code {
	case streams.ErrCodeValidation:
		return huma.Error400BadRequest(err.Message, err)
	case streams.ErrCodeNotFound:
		return huma.Error404NotFound(err.Message, err)
	case streams.ErrCodeAlreadyRunning:
		return huma.Error409Conflict(err.Message, err)
	case streams.ErrCodeCapacity, streams.ErrCodeShuttingDown:
		return huma.Error503ServiceUnavailable(err.Message, err)
	default:
		return huma.Error500InternalServerError(err.Message, err)
	}
}
