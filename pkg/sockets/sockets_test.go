package sockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	mu       sync.Mutex
	received [][]byte
	conns    []*websocket.Conn
}

func (e *echoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := e.upgrader.Upgrade(w, r, nil)
	require.NoError(e.t, err)
	e.mu.Lock()
	e.conns = append(e.conns, ws)
	e.mu.Unlock()
	defer ws.Close()
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		e.mu.Lock()
		e.received = append(e.received, data)
		e.mu.Unlock()
		if err := ws.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

// closeConns closes the server side of every upgraded websocket.
// httptest.Server.CloseClientConnections cannot do this: net/http stops
// tracking a connection once it is hijacked for the websocket upgrade.
func (e *echoServer) closeConns() {
	// The client's dial can return before ServeHTTP records the conn, so
	// wait briefly for at least one conn to show up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		conns := append([]*websocket.Conn(nil), e.conns...)
		e.mu.Unlock()
		if len(conns) > 0 || time.Now().After(deadline) {
			for _, ws := range conns {
				_ = ws.Close()
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConn_DialSendReceive(t *testing.T) {
	echo := &echoServer{t: t}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	var (
		mu       sync.Mutex
		messages [][]byte
	)
	connected := make(chan struct{})
	c := New(
		OnConnected(func(Connection) { close(connected) }),
		OnMessage(func(data []byte, _ Connection) {
			mu.Lock()
			messages = append(messages, data)
			mu.Unlock()
		}),
	)

	require.NoError(t, c.Dial(context.Background(), wsURL(srv), ""))
	defer c.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("connected callback never fired")
	}
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Send(Msg{Body: []byte(`{"type":"heartbeat"}`)}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(messages) == 1 && string(messages[0]) == `{"type":"heartbeat"}`
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConn_DialFailure(t *testing.T) {
	c := New()
	err := c.Dial(context.Background(), "ws://127.0.0.1:1/device-ws", "")
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestConn_SendOnClosedConnection(t *testing.T) {
	c := New()
	assert.Error(t, c.Send(Msg{Body: []byte("nope")}))
}

func TestConn_DisconnectCallback(t *testing.T) {
	echo := &echoServer{t: t}
	srv := httptest.NewServer(echo)
	defer srv.Close()

	disconnected := make(chan struct{})
	var once sync.Once
	c := New(
		OnDisconnected(func() { once.Do(func() { close(disconnected) }) }),
	)
	require.NoError(t, c.Dial(context.Background(), wsURL(srv), ""))

	echo.closeConns()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnected callback never fired")
	}
	assert.False(t, c.IsConnected())
}
