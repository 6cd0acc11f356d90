package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/stream-games/internal/broadcast"
	gorillaWS "github.com/gorilla/websocket"
)

// SSEClient is a test client for server-sent event streams
type SSEClient struct {
	t      *testing.T
	resp   *http.Response
	cancel context.CancelFunc
	events chan broadcast.Event
	errors chan error
	once   sync.Once
}

// NewSSEClient issues req and starts reading its event stream.
func NewSSEClient(t *testing.T, req *http.Request) *SSEClient {
	t.Helper()

	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("failed to open event stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.Fatalf("unexpected stream status code: %d", resp.StatusCode)
	}

	client := &SSEClient{
		t:      t,
		resp:   resp,
		cancel: cancel,
		events: make(chan broadcast.Event, 100),
		errors: make(chan error, 1),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// readPump parses "event:" / "data:" frames off the response body
func (c *SSEClient) readPump() {
	defer close(c.events)

	scanner := bufio.NewScanner(c.resp.Body)
	var current broadcast.Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "":
			if current.Name != "" {
				c.events <- current
			}
			current = broadcast.Event{}
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case c.errors <- err:
		default:
		}
	}
}

// Close ends the stream
func (c *SSEClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.resp.Body.Close()
	})
}

// Next returns the next event, pings included.
func (c *SSEClient) Next(timeout time.Duration) (broadcast.Event, bool) {
	select {
	case event, ok := <-c.events:
		return event, ok
	case <-time.After(timeout):
		return broadcast.Event{}, false
	}
}

// WaitFor skips events until one named name arrives, failing the test on timeout.
func (c *SSEClient) WaitFor(name string, timeout time.Duration) broadcast.Event {
	c.t.Helper()
	return waitFor(c.t, c.events, name, timeout)
}

// WSClient is a test WebSocket client for hub pools
type WSClient struct {
	t      *testing.T
	conn   *gorillaWS.Conn
	events chan broadcast.Event
	done   chan struct{}
	mu     sync.Mutex
}

// NewWSClient dials url with the given headers.
func NewWSClient(t *testing.T, url string, header http.Header) *WSClient {
	t.Helper()

	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:      t,
		conn:   conn,
		events: make(chan broadcast.Event, 100),
		done:   make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func (c *WSClient) readPump() {
	defer close(c.events)
	for {
		var event broadcast.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			return
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// WaitFor skips events until one named name arrives, failing the test on timeout.
func (c *WSClient) WaitFor(name string, timeout time.Duration) broadcast.Event {
	c.t.Helper()
	return waitFor(c.t, c.events, name, timeout)
}

func waitFor(t *testing.T, events <-chan broadcast.Event, name string, timeout time.Duration) broadcast.Event {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatalf("stream closed while waiting for %q", name)
			}
			if event.Name == name {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", name)
		}
	}
}
