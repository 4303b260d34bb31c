package websocket

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub := NewHub(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	c := &Client{ID: "client-1", Hub: hub, Send: make(chan []byte, 4)}
	hub.Register(c)

	hub.Broadcast([]byte(`{"type":"workflow_start"}`))

	select {
	case msg := <-c.Send:
		assert.JSONEq(t, `{"type":"workflow_start"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	c := &Client{ID: "client-1", Hub: hub, Send: make(chan []byte, 1)}
	hub.Register(c)
	hub.Unregister(c)

	require.Eventually(t, func() bool {
		_, ok := <-c.Send
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestHubDropsBroadcastWhenClientBufferFull(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	c := &Client{ID: "client-1", Hub: hub, Send: make(chan []byte, 1)}
	hub.Register(c)
	// give the register loop a moment to land before we race broadcasts in
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast([]byte("a"))
	hub.Broadcast([]byte("b"))
	hub.Broadcast([]byte("c"))

	// The client's buffer holds only one message; the rest are dropped
	// rather than stalling the hub's dispatch loop.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.Send, 1)
}
