package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBufferDropsOldest(t *testing.T) {
	b := NewBuffer(2)
	for i := 0; i < 3; i++ {
		b.Append(Update{Source: "test", Payload: []byte(fmt.Sprintf(`{"n":%d}`, i))})
	}

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.JSONEq(t, `{"n":1}`, string(snap[0].Payload))
	assert.Equal(t, 3, b.Total())
}

func TestSSEFeedBuffersJSONEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"missionId\":1,\"status\":\"EN_ROUTE\"}\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: {\"missionId\":2,\n")
		fmt.Fprint(w, "data: \"status\":\"ON_SITE\"}\n\n")
		w.(http.Flusher).Flush()
	}))
	defer server.Close()

	buffer := NewBuffer(10)
	feed := NewSSEFeed(server.URL+"/sse/missions", buffer, func(context.Context) (string, error) {
		return "tok", nil
	}).WithBackoff(10*time.Millisecond, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool { return buffer.Len() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	snap := buffer.Snapshot()
	assert.JSONEq(t, `{"missionId":1,"status":"EN_ROUTE"}`, string(snap[0].Payload))
	assert.JSONEq(t, `{"missionId":2,"status":"ON_SITE"}`, string(snap[1].Payload))
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestSocketFeedStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"emergencyId":4,"status":"DISPATCHED"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	buffer := NewBuffer(10)
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	feed := NewSocketFeed(url, buffer, nil).WithBackoff(10*time.Millisecond, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool { return buffer.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, "socket", buffer.Snapshot()[0].Source)
}
