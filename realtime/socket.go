package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// SocketFeed listens on an authenticated WebSocket for rescue updates.
type SocketFeed struct {
	url        string
	dialer     *websocket.Dialer
	buffer     *Buffer
	token      TokenFunc
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewSocketFeed(url string, buffer *Buffer, token TokenFunc) *SocketFeed {
	return &SocketFeed{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		buffer:     buffer,
		token:      token,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// WithBackoff overrides the reconnect delays.
func (f *SocketFeed) WithBackoff(min, max time.Duration) *SocketFeed {
	f.minBackoff, f.maxBackoff = min, max
	return f
}

func (f *SocketFeed) Run(ctx context.Context) error {
	backoff := f.minBackoff
	for {
		received, err := f.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			backoff = f.minBackoff
		}
		logrus.WithField("url", f.url).Debugf("Socket closed, reconnecting in %s: %v", backoff, err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > f.maxBackoff {
			backoff = f.maxBackoff
		}
	}
}

func (f *SocketFeed) listen(ctx context.Context) (received bool, err error) {
	header := http.Header{}
	if f.token != nil {
		if token, tokenErr := f.token(ctx); tokenErr == nil && token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return false, err
	}

	// Closing the connection is what unblocks ReadMessage on cancellation.
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		<-stopped
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if !json.Valid(data) {
			continue
		}
		f.buffer.Append(Update{Source: "socket", Payload: json.RawMessage(data)})
		received = true
	}
}
