package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestFetchStats(t *testing.T) {
	want := model.HubStats{
		TotalUsers:       2,
		TotalConnections: 3,
		Uptime:           90 * time.Second,
		Shards:           []model.ShardStats{{ShardID: 0, UserCount: 2, Connections: 3}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stats", r.URL.Path)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := fetchStats(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.Contains(t, summary(got), "connections  3")
	require.Contains(t, summary(got), "uptime       1m30s")
	require.Equal(t, [][]string{{"shard", "users", "connections"}, {"0", "2", "3"}}, shardRows(got))
}

func TestFetchStats_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := fetchStats(context.Background(), srv.Client(), srv.URL)
	require.ErrorContains(t, err, "404")
}

func TestAppendSampleKeepsWindow(t *testing.T) {
	var s []float64
	for i := range 5 {
		s = appendSample(s, float64(i), 3)
	}
	require.Equal(t, []float64{2, 3, 4}, s)
}
