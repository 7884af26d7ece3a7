package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/config"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/region"
)

var errUnknownPreset = errors.New("unknown preset")

func (s *Server) registerRegionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "players-in-regions",
		Method:      http.MethodPost,
		Path:        "/api/regions",
		Summary:     "Players In Regions",
		Description: "Read one attribute of every player inside the given boxes. Any failed sub-query makes the whole answer incomplete.",
		Tags:        []string{"regions"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(ctx context.Context, input *models.RegionRequest) (*models.RegionResponse, error) {
		q, err := s.resolveRegionQuery(input.Body)
		if errors.Is(err, errUnknownPreset) {
			return nil, huma.Error404NotFound(err.Error())
		}
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		timeout, err := q.TimeoutDuration()
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		players, ok, err := s.options.Regions.PlayersNBTInRegions(ctx, q.Regions, q.Attribute, timeout)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		if !ok {
			players = map[string]string{}
		}
		return &models.RegionResponse{Body: models.RegionData{
			Complete: ok,
			Players:  players,
			Count:    len(players),
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-region-presets",
		Method:      http.MethodGet,
		Path:        "/api/regions/presets",
		Summary:     "Region Presets",
		Description: "List the named region queries loaded from the presets file",
		Tags:        []string{"regions"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PresetListResponse, error) {
		names := []string{}
		if s.options.Presets != nil {
			names = s.options.Presets.Names()
		}
		return &models.PresetListResponse{Body: models.PresetListData{Presets: names}}, nil
	})
}

// resolveRegionQuery merges a request over its preset, if any.
func (s *Server) resolveRegionQuery(body models.RegionRequestData) (config.RegionQuery, error) {
	var q config.RegionQuery
	if body.Preset != "" {
		var ok bool
		if s.options.Presets != nil {
			q, ok = s.options.Presets.Preset(body.Preset)
		}
		if !ok {
			return q, fmt.Errorf("%w: %q", errUnknownPreset, body.Preset)
		}
	}

	if body.Attribute != "" {
		q.Attribute = body.Attribute
	}
	if len(body.Regions) > 0 {
		q.Regions = make(region.Spec, len(body.Regions))
		for dim, boxes := range body.Regions {
			for _, b := range boxes {
				q.Regions[dim] = append(q.Regions[dim], region.Box{
					X1: b.X1, Y1: b.Y1, Z1: b.Z1,
					X2: b.X2, Y2: b.Y2, Z2: b.Z2,
				})
			}
		}
	}
	if body.Timeout > 0 {
		q.Timeout = seconds(body.Timeout).String()
	}
	return q, nil
}
