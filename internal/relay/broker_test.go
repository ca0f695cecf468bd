package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	assert.Equal(t, 1, b.ClientCount())

	b.Publish(KindCaptured, map[string]string{"url": "https://example.com"})
	evt := <-ch
	assert.Equal(t, KindCaptured, evt.Kind)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(evt.Payload))

	b.Publish(KindCleared, nil)
	evt = <-ch
	assert.Equal(t, KindCleared, evt.Kind)
	assert.Empty(t, evt.Payload)

	b.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.ClientCount())

	b.Unsubscribe(id)
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe()

	for i := 0; i < subscriberBufSize+5; i++ {
		b.Publish(KindNavigated, nil)
	}
	assert.Len(t, ch, subscriberBufSize)
	assert.Equal(t, int64(5), b.Dropped())
}

func TestBrokerSkipsUnencodablePayload(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe()
	b.Publish(KindScanned, make(chan int))
	assert.Len(t, ch, 0)
}

func waitForClients(t *testing.T, b *Broker, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?kinds=scanned", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	waitForClients(t, b, 1)
	b.Publish(KindCaptured, map[string]int{"skip": 1})
	b.Publish(KindScanned, map[string]int{"scripts": 2})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: scanned\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"scripts\":2}\n", line)
}

func TestWebSocketHandler(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(WebSocketHandler(b))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, _, err := ws.Dial(context.Background(), wsURL)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	waitForClients(t, b, 1)
	b.Publish(KindReplayed, map[string]int{"status": 200})

	data, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)
	var evt Event
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, KindReplayed, evt.Kind)
	assert.JSONEq(t, `{"status":200}`, string(evt.Payload))

	_ = conn.Close()
	waitForClients(t, b, 0)
}
