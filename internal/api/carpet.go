package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
)

func (s *Server) registerCarpetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "query-carpet",
		Method:      http.MethodGet,
		Path:        "/api/carpet",
		Summary:     "Carpet Status",
		Description: "Report whether the carpet mod is loaded. Answers come from the capability cache when known; otherwise a probe command is sent and concurrent callers share it.",
		Tags:        []string{"carpet"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *models.CarpetRequest) (*models.CarpetResponse, error) {
		if !s.options.Lifecycle.Running() {
			return nil, huma.Error503ServiceUnavailable("server is not running")
		}

		carpet := s.options.Carpet
		if input.Reprobe {
			return &models.CarpetResponse{Body: models.CarpetData{Present: carpet.Reprobe(ctx)}}, nil
		}
		if present, known := carpet.Known(); known {
			return &models.CarpetResponse{Body: models.CarpetData{Present: present, Cached: true}}, nil
		}
		return &models.CarpetResponse{Body: models.CarpetData{Present: carpet.Query(ctx)}}, nil
	})
}
