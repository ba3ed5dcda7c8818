package identifier_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/benjazzy/turtle-wrangler/internal/identifier"
	"github.com/benjazzy/turtle-wrangler/internal/names"
)

// rig upgrades one WebSocket connection and hands the server-side conn to
// the test via serverCh, letting tests script both ends of the handshake.
func rig(t *testing.T) (client *websocket.Conn, serverCh <-chan *websocket.Conn, cleanup func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ch := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		ch <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return c, ch, func() {
		c.Close()
		srv.Close()
	}
}

func TestIdentifySuccess(t *testing.T) {
	client, serverCh, cleanup := rig(t)
	defer cleanup()
	serverConn := <-serverCh

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("42")))

	result, err := identifier.Identify(serverConn)
	require.NoError(t, err)
	require.Equal(t, uint64(42), result.ID)
	require.Equal(t, "Daniel", result.Name)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	require.Equal(t, "Daniel", string(data))
}

func TestIdentifyOutOfRangeFallsBackByName(t *testing.T) {
	client, serverCh, cleanup := rig(t)
	defer cleanup()
	serverConn := <-serverCh

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("99999")))

	result, err := identifier.Identify(serverConn)
	require.NoError(t, err)
	require.Equal(t, names.FallbackName, result.Name)
}

func TestIdentifyRejectsMalformedID(t *testing.T) {
	client, serverCh, cleanup := rig(t)
	defer cleanup()
	serverConn := <-serverCh

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not-a-number")))

	_, err := identifier.Identify(serverConn)
	require.Error(t, err)
}

func TestIdentifyRejectsNegativeID(t *testing.T) {
	client, serverCh, cleanup := rig(t)
	defer cleanup()
	serverConn := <-serverCh

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("-1")))

	_, err := identifier.Identify(serverConn)
	require.Error(t, err)
}

func TestIdentifyRejectsBinaryFrame(t *testing.T) {
	client, serverCh, cleanup := rig(t)
	defer cleanup()
	serverConn := <-serverCh

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("42")))

	_, err := identifier.Identify(serverConn)
	require.Error(t, err)
}

func TestIdentifyDeadlineExceeded(t *testing.T) {
	_, serverCh, cleanup := rig(t)
	defer cleanup()
	serverConn := <-serverCh

	_, err := identifier.Identify(serverConn)
	require.Error(t, err)
}
