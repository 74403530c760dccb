package push_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/adapter/push"
	"github.com/webitel/im-realtime-service/internal/adapter/push/pushmock"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"go.uber.org/mock/gomock"
)

func TestBreakerGateway_OpensAfterFailures(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	inner := pushmock.NewMockGateway(ctrl)
	gw := push.NewBreakerGateway(inner, push.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, quiet())

	// Given a provider that fails twice
	inner.EXPECT().SendBulk(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom")).Times(2)

	for i := 0; i < 2; i++ {
		_, err := gw.SendBulk(context.Background(), push.Request{Tokens: []string{"t"}})
		req.Error(err)
	}

	// Then the breaker rejects without calling the provider
	_, err := gw.SendBulk(context.Background(), push.Request{Tokens: []string{"t"}})
	req.ErrorIs(err, model.ErrTransientDelivery)
	req.Equal("open", gw.State())
}

func TestBreakerGateway_PassesOutcomes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	inner := pushmock.NewMockGateway(ctrl)
	inner.EXPECT().MaxBatch().Return(100)
	inner.EXPECT().SendBulk(gomock.Any(), gomock.Any()).
		Return([]push.TokenOutcome{{Token: "t", Status: push.PermanentInvalid}}, nil)

	gw := push.NewBreakerGateway(inner, push.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}, quiet())

	req.Equal(100, gw.MaxBatch())
	out, err := gw.SendBulk(context.Background(), push.Request{Tokens: []string{"t"}})
	req.NoError(err)
	req.Equal(push.PermanentInvalid, out[0].Status)
	req.Equal("closed", gw.State())
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
