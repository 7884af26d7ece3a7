package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/query"
)

func (s *Server) registerQueryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "execute-and-wait",
		Method:      http.MethodPost,
		Path:        "/api/execute",
		Summary:     "Execute And Wait",
		Description: "Send a console command and wait for the first server line matching the pattern. A timeout is not an error: the response reports matched=false.",
		Tags:        []string{"query"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 502, 503},
	}, func(ctx context.Context, input *models.ExecuteRequest) (*models.WaitResponse, error) {
		return s.wait(ctx, query.Request{
			Command: input.Body.Command,
			Pattern: input.Body.Pattern,
			Timeout: seconds(input.Body.Timeout),
		})
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "listen-and-wait",
		Method:      http.MethodPost,
		Path:        "/api/listen",
		Summary:     "Listen And Wait",
		Description: "Wait for the first server line matching the pattern without sending anything.",
		Tags:        []string{"query"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503},
	}, func(ctx context.Context, input *models.ListenRequest) (*models.WaitResponse, error) {
		return s.wait(ctx, query.Request{
			Pattern: input.Body.Pattern,
			Timeout: seconds(input.Body.Timeout),
		})
	})
}

func (s *Server) wait(ctx context.Context, req query.Request) (*models.WaitResponse, error) {
	m, err := s.options.Bridge.Wait(ctx, req)
	switch {
	case err == nil:
		return &models.WaitResponse{Body: models.WaitResultData{
			Matched: true,
			Outcome: query.OutcomeMatched.String(),
			Match:   matchData(m),
		}}, nil
	case errors.Is(err, query.ErrTimeout):
		return &models.WaitResponse{Body: models.WaitResultData{Outcome: query.OutcomeTimeout.String()}}, nil
	case errors.Is(err, query.ErrCancelled):
		return &models.WaitResponse{Body: models.WaitResultData{Outcome: query.OutcomeCancelled.String()}}, nil
	case errors.Is(err, query.ErrInvalidPattern):
		return nil, huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, query.ErrStopped):
		return nil, huma.Error503ServiceUnavailable("server is not running")
	case errors.Is(err, query.ErrTransport):
		return nil, huma.Error502BadGateway(err.Error())
	default:
		return nil, huma.Error500InternalServerError("wait failed", err)
	}
}

func matchData(m *query.Match) *models.MatchData {
	data := &models.MatchData{
		Line:   m.Line,
		Text:   m.Text,
		Groups: m.Groups(),
	}
	if named := m.NamedGroups(); len(named) > 0 {
		data.Named = named
	}
	return data
}

// seconds converts a JSON seconds value; 0 selects the server default.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
