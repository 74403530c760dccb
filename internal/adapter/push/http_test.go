package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHTTPGateway_Outcomes(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("key=secret", r.Header.Get("Authorization"))
		var in wireRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&in))
		req.Equal("high", in.Priority)
		_ = json.NewEncoder(w).Encode(wireResponse{Results: []wireResult{
			{Token: "a", Status: "ok"},
			{Token: "b", Status: "invalid", Error: "NotRegistered"},
			{Token: "c", Status: "unavailable"},
		}})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(HTTPConfig{Endpoint: srv.URL, APIKey: "secret", MaxBatch: 10, Timeout: time.Second}, discard())

	out, err := gw.SendBulk(context.Background(), Request{Tokens: []string{"a", "b", "c", "d"}, Title: "t", Priority: model.PriorityHigh})

	req.NoError(err)
	req.Equal([]Status{Success, PermanentInvalid, TransientFailure, TransientFailure},
		[]Status{out[0].Status, out[1].Status, out[2].Status, out[3].Status})
	req.Equal("NotRegistered", out[1].Reason)
}

func TestHTTPGateway_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(HTTPConfig{Endpoint: srv.URL, MaxBatch: 10, Timeout: time.Second}, discard())

	_, err := gw.SendBulk(context.Background(), Request{Tokens: []string{"a"}})
	require.ErrorIs(t, err, model.ErrTransientDelivery)
}

func TestHTTPGateway_RejectsOversizedBatch(t *testing.T) {
	gw := NewHTTPGateway(HTTPConfig{Endpoint: "http://unused", MaxBatch: 1}, discard())
	_, err := gw.SendBulk(context.Background(), Request{Tokens: []string{"a", "b"}})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}
