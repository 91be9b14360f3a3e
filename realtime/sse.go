package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenFunc returns the bearer token for a feed connection; it may return an
// empty string when the channel is unauthenticated.
type TokenFunc func(ctx context.Context) (string, error)

// SSEFeed reads a text/event-stream such as /sse/missions. Each data block
// must hold a JSON document; anything else is skipped.
type SSEFeed struct {
	url        string
	client     *http.Client
	buffer     *Buffer
	token      TokenFunc
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewSSEFeed(url string, buffer *Buffer, token TokenFunc) *SSEFeed {
	return &SSEFeed{
		url:        url,
		client:     &http.Client{}, // no timeout, the stream is long lived
		buffer:     buffer,
		token:      token,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// WithBackoff overrides the reconnect delays.
func (f *SSEFeed) WithBackoff(min, max time.Duration) *SSEFeed {
	f.minBackoff, f.maxBackoff = min, max
	return f
}

// Run reconnects with exponential backoff until ctx is done.
func (f *SSEFeed) Run(ctx context.Context) error {
	backoff := f.minBackoff
	for {
		received, err := f.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			backoff = f.minBackoff
		}
		logrus.WithField("url", f.url).Debugf("SSE stream ended, reconnecting in %s: %v", backoff, err)

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

// stream consumes one connection. received reports whether any update arrived.
func (f *SSEFeed) stream(ctx context.Context) (received bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if f.token != nil {
		if token, tokenErr := f.token(ctx); tokenErr == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("sse endpoint returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var data []string
	flush := func() {
		if len(data) == 0 {
			return
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		if !json.Valid([]byte(payload)) {
			logrus.Debugf("Skipping non-JSON SSE payload: %q", payload)
			return
		}
		f.buffer.Append(Update{Source: "sse", Payload: json.RawMessage(payload)})
		received = true
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return received, err
	}
	return received, fmt.Errorf("stream closed by server")
}
