package api

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/metrics/exporters"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time camera changes, stream lifecycle, encoder progress and segment retention",
		Tags:        []string{"events"},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"connected":             models.ConnectedEvent{},
			"camera-created":        events.CameraCreatedEvent{},
			"camera-updated":        events.CameraUpdatedEvent{},
			"camera-deleted":        events.CameraDeletedEvent{},
			"stream-started":        events.StreamStartedEvent{},
			"stream-stopped":        events.StreamStoppedEvent{},
			"stream-ended":          events.StreamEndedEvent{},
			"stream-frame-update":   events.StreamFrameUpdateEvent{},
			"stream-bitrate-update": events.StreamBitrateUpdateEvent{},
			"segments-pruned":       events.SegmentsPrunedEvent{},
		}

		maps.Copy(eventTypes, exporters.EventTypes())

		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.CameraCreatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraUpdatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraDeletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamEndedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamFrameUpdateEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamBitrateUpdateEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SegmentsPrunedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(models.ConnectedEvent{
			Message:   "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
