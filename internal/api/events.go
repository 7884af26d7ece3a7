package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of epoch transitions, resolved queries, server state changes and carpet status",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"epoch-changed":        events.EpochChangedEvent{},
		"query-resolved":       events.QueryResolvedEvent{},
		"server-state-changed": events.ServerStateChangedEvent{},
		"carpet-status":        events.CarpetStatusEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.EpochChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.QueryResolvedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ServerStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CarpetStatusEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current epoch first so clients start from a known state
		if err := send.Data(events.EpochChangedEvent{
			Epoch:     s.options.Lifecycle.Epoch(),
			Running:   s.options.Lifecycle.Running(),
			Reason:    "connected",
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
