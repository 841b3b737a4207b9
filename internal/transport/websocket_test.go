package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDialerDeliversMessagesAndClose(t *testing.T) {
	t.Parallel()

	received := make(chan map[string]any, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		var hello map[string]any
		if err := c.ReadJSON(&hello); err != nil {
			return
		}
		received <- hello

		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`))
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "idle")
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	d := &WebSocketDialer{}
	conn, err := d.Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	messages := make(chan string, 4)
	closes := make(chan CloseEvent, 1)
	conn.Listen(Handler{
		OnMessage: func(data []byte) { messages <- string(data) },
		OnClose:   func(ev CloseEvent) { closes <- ev },
	})

	require.NoError(t, conn.SendJSON(map[string]string{"objectId": "o1"}))
	select {
	case got := <-received:
		require.Equal(t, "o1", got["objectId"])
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}

	select {
	case got := <-messages:
		require.JSONEq(t, `{"action":"ping"}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message")
	}

	select {
	case ev := <-closes:
		require.Equal(t, websocket.CloseGoingAway, ev.Code)
		require.Equal(t, "idle", ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no close event")
	}
	require.True(t, conn.Closed())
	require.ErrorIs(t, conn.SendJSON("late"), ErrClosed)
}

func TestWebSocketLocalCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn, err := (&WebSocketDialer{}).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	require.False(t, conn.Closed())

	require.NoError(t, conn.Close())
	require.True(t, conn.Closed())
	require.NoError(t, conn.Close())
}

func TestWebSocketDialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := (&WebSocketDialer{}).Dial(context.Background(), wsURL(srv))
	require.Error(t, err)
}

func TestCloseEventFromError(t *testing.T) {
	t.Parallel()

	ev := closeEventFromError(&websocket.CloseError{Code: 1005})
	require.Equal(t, 1005, ev.Code)
	require.NoError(t, ev.Err)

	ev = closeEventFromError(context.Canceled)
	require.Equal(t, websocket.CloseAbnormalClosure, ev.Code)
	require.ErrorIs(t, ev.Err, context.Canceled)
}
