package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/service/servicetest"
)

type frame struct {
	ID   string          `json:"id"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type wsFixture struct {
	env    *servicetest.Env
	server *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	env := servicetest.New(t)
	actions := NewActions(ActionsDeps{
		Sessions:  env.Lifecycle,
		Messenger: env.Messenger,
		Commenter: env.Commenter,
		Reactions: env.Reactions,
		Notifier:  env.Notifier,
		Metrics:   env.Metrics,
		Logger:    env.Logger,
	})
	h := NewWSHandler(Config{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 64 << 10,
	}, env.Lifecycle, actions, env.Metrics, env.Logger)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &wsFixture{env: env, server: srv}
}

func (f *wsFixture) dial(t *testing.T, u *model.User) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?platform=test"
	header := http.Header{"Authorization": {"Bearer " + f.env.Token(t, u)}}

	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })

	require.Equal(t, "connected", next(t, ws).Kind)
	return ws
}

func next(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var fr frame
	require.NoError(t, ws.ReadJSON(&fr))
	return fr
}

// await skips frames until one of kind arrives.
func await(t *testing.T, ws *websocket.Conn, kind string) frame {
	t.Helper()
	for range 20 {
		if fr := next(t, ws); fr.Kind == kind {
			return fr
		}
	}
	t.Fatalf("no %s frame", kind)
	return frame{}
}

func send(t *testing.T, ws *websocket.Conn, ref, action string, data any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]any{"ref": ref, "action": action, "data": data}))
}

func TestServeHTTP_RejectsBadToken(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestServeHTTP_MessageRoundTrip(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)
	alice, bob := f.env.SeedUser(t, "alice"), f.env.SeedUser(t, "bob")

	aws := f.dial(t, alice)
	bws := f.dial(t, bob)

	send(t, aws, "m1", "message.send", map[string]any{"receiver_id": bob.ID, "content": "hello"})

	ack := await(t, aws, "ack")
	var payload model.AckPayload
	req.NoError(json.Unmarshal(ack.Data, &payload))
	req.Equal("m1", payload.Ref)
	req.Equal("message.send", payload.Action)

	created := await(t, bws, "message.created")
	var msg model.Message
	req.NoError(json.Unmarshal(created.Data, &msg))
	req.Equal("hello", msg.Content)
	req.Equal(alice.ID, msg.SenderID)
}

func TestServeHTTP_ErrorFrames(t *testing.T) {
	f := newWSFixture(t)
	alice, bob, carol := f.env.SeedUser(t, "alice"), f.env.SeedUser(t, "bob"), f.env.SeedUser(t, "carol")
	aws := f.dial(t, alice)

	cases := []struct {
		name   string
		action string
		data   any
		code   string
	}{
		{"unknown action", "message.shout", nil, "INVALID_ARGUMENT"},
		{"invalid payload", "message.send", map[string]any{"content": "no receiver"}, "INVALID_ARGUMENT"},
		{"foreign conversation", "room.join", map[string]any{"topic": model.ConversationTopic(bob.ID, carol.ID)}, "FORBIDDEN"},
		{"self message", "message.send", map[string]any{"receiver_id": alice.ID, "content": "me"}, "INVALID_TARGET"},
		{"missing topic", "typing.start", map[string]any{}, "INVALID_TARGET"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			send(t, aws, tc.name, tc.action, tc.data)
			fr := await(t, aws, "error")
			var payload model.ErrorPayload
			require.NoError(t, json.Unmarshal(fr.Data, &payload))
			require.Equal(t, tc.name, payload.Ref)
			require.Equal(t, tc.code, payload.Code)
		})
	}
}

func TestServeHTTP_TypingByPartner(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)
	alice, bob := f.env.SeedUser(t, "alice"), f.env.SeedUser(t, "bob")
	aws := f.dial(t, alice)
	bws := f.dial(t, bob)

	send(t, aws, "t1", "typing.start", map[string]any{"partner_id": bob.ID})
	await(t, aws, "ack")

	fr := await(t, bws, "typing")
	var change model.TypingChange
	req.NoError(json.Unmarshal(fr.Data, &change))
	req.Equal(alice.ID, change.UserID)
	req.True(change.IsTyping)
	req.Equal(model.ConversationTopic(alice.ID, bob.ID), change.Topic)
}

func TestServeHTTP_CloseMarksOffline(t *testing.T) {
	f := newWSFixture(t)
	alice := f.env.SeedUser(t, "alice")
	aws := f.dial(t, alice)
	require.True(t, f.env.Hub.Presence().IsOnline(alice.ID))

	require.NoError(t, aws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	require.Eventually(t, func() bool {
		return !f.env.Hub.Presence().IsOnline(alice.ID)
	}, 3*time.Second, 20*time.Millisecond)
}
