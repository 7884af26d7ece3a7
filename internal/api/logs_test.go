package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/logging"
)

func TestLogsHistory(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text", HistorySize: 50})
	f := newFixture(t)

	mc := logging.GetLogger("minecraft")
	mc.Info("Done (3.2s)! For help, type \"help\"")
	mc.Info("Steve joined the game")
	logging.GetLogger("query").Info("Query resolved", "query_id", "q_1a2b3c4d")

	resp := f.api.Get("/api/logs?module=minecraft&limit=1", authHeader())
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := decode[models.LogsData](t, resp)
	require.Equal(t, 1, body.Count)
	require.Equal(t, "Steve joined the game", body.Entries[0].Message)
	require.Equal(t, "minecraft", body.Entries[0].Module)
	require.Equal(t, "info", body.Entries[0].Level)

	resp = f.api.Get("/api/logs?module=query", authHeader())
	body = decode[models.LogsData](t, resp)
	require.NotEmpty(t, body.Entries)
	last := body.Entries[len(body.Entries)-1]
	require.Equal(t, "Query resolved", last.Message)
	require.Equal(t, "q_1a2b3c4d", last.Attributes["query_id"])
}
