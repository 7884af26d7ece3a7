package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
)

func (s *Server) registerLifecycleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Bridge epoch, pending waits, server process state and cached carpet capability",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		status := models.StatusData{
			Epoch:   s.options.Lifecycle.Epoch(),
			Running: s.options.Lifecycle.Running(),
			Pending: s.options.Bridge.Pending(),
		}
		if s.options.Carpet != nil {
			status.Carpet.Present, status.Carpet.Known = s.options.Carpet.Known()
		}
		if s.options.Server != nil {
			info := s.options.Server.Info()
			server := &models.ServerData{
				ID:           info.ID,
				State:        string(info.State),
				PID:          info.PID,
				RestartCount: info.RestartCount,
			}
			if !info.StartedAt.IsZero() {
				server.StartedAt = info.StartedAt.Format(time.RFC3339)
			}
			if info.LastError != nil {
				server.LastError = info.LastError.Error()
			}
			status.Server = server
		}
		return &models.StatusResponse{Body: status}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-bridge",
		Method:      http.MethodPost,
		Path:        "/api/reload",
		Summary:     "Reload",
		Description: "Start a new epoch without restarting the server: pending waits end as cancelled and the carpet cache is cleared",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, input *models.ReloadRequest) (*models.ReloadResponse, error) {
		if !s.options.Lifecycle.Running() {
			return nil, huma.Error409Conflict("server is not running")
		}
		reason := input.Body.Reason
		if reason == "" {
			reason = "api reload"
		}
		t := s.options.Lifecycle.Reload(reason)
		return &models.ReloadResponse{Body: models.TransitionData{
			Epoch:     t.Epoch,
			Running:   t.Running,
			Cancelled: t.Cancelled,
		}}, nil
	})
}
