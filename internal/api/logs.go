package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/logging"
)

// registerLogRoutes registers the recent log history endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Recent log entries, oldest first. Server console output is logged under the minecraft module.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		entries := []models.LogEntryData{}
		if history := logging.GetHistory(); history != nil {
			for _, e := range history.Recent(input.Limit, input.Module) {
				entries = append(entries, models.LogEntryData{
					Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
					Level:      e.Level,
					Module:     e.Module,
					Message:    e.Message,
					Attributes: e.Attributes,
				})
			}
		}
		return &models.LogsResponse{Body: models.LogsData{Entries: entries, Count: len(entries)}}, nil
	})
}
