package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/messages"
)

func newTestHub(t *testing.T) (*Hub, *game.Registry) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	publisher := events.NewPublisher()
	registry := game.NewRegistry(game.DefaultSettings(), clockwork.NewFakeClock(), publisher, logger)
	t.Cleanup(registry.Shutdown)

	return NewHub(registry, publisher, logger), registry
}

// newTestConnection builds a connection without a socket; frames stay in send
func newTestConnection(h *Hub) *Connection {
	return &Connection{
		id:        uuid.New(),
		hub:       h,
		send:      make(chan []byte, sendBufferSize),
		publisher: h.publisher,
		logger:    zap.NewNop(),
	}
}

func drain(t *testing.T, c *Connection) []map[string]any {
	t.Helper()

	var out []map[string]any
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var frame map[string]any
			require.NoError(t, json.Unmarshal(data, &frame))
			out = append(out, frame)
		default:
			return out
		}
	}
}

func inbound(t *testing.T, raw string) messages.InboundMessage {
	t.Helper()
	msg, err := messages.Decode([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestHub_JoinPairsConnections(t *testing.T) {
	h, registry := newTestHub(t)
	white, black := newTestConnection(h), newTestConnection(h)

	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	h.handleInbound(InboundHubMessage{Conn: black, Message: inbound(t, `{"type":"join","roomId":"A"}`)})

	whiteFrames := drain(t, white)
	require.Len(t, whiteFrames, 2)
	assert.Equal(t, "data", whiteFrames[0]["type"])
	assert.Equal(t, "w", whiteFrames[0]["color"])
	assert.Equal(t, "A", whiteFrames[0]["roomId"])
	assert.Equal(t, "start", whiteFrames[1]["type"])

	blackFrames := drain(t, black)
	require.Len(t, blackFrames, 2)
	assert.Equal(t, "b", blackFrames[0]["color"])
	assert.Equal(t, "start", blackFrames[1]["type"])

	assert.Equal(t, 1, registry.Len())
}

func TestHub_ThirdJoinIsIgnored(t *testing.T) {
	h, _ := newTestHub(t)
	white, black, third := newTestConnection(h), newTestConnection(h), newTestConnection(h)

	for _, c := range []*Connection{white, black, third} {
		h.handleInbound(InboundHubMessage{Conn: c, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	}

	assert.Empty(t, drain(t, third))
}

func TestHub_RoutesMoveToOpponent(t *testing.T) {
	h, _ := newTestHub(t)
	white, black := newTestConnection(h), newTestConnection(h)

	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	h.handleInbound(InboundHubMessage{Conn: black, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	drain(t, white)
	drain(t, black)

	move := `{"type":"move","roomId":"A","board":{"e4":"wp"},"from":"e2","to":"e4","notation":"e4","piece":"p","isCapture":false}`
	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, move)})

	got := drain(t, black)
	require.Len(t, got, 1)
	assert.Equal(t, "move", got[0]["type"])
	assert.Equal(t, "e4", got[0]["notation"])
	assert.Equal(t, "b", got[0]["turn"])

	mine := drain(t, white)
	require.Len(t, mine, 1)
	assert.Equal(t, "", mine[0]["notation"])

	// Black is now on turn; a second white move is dropped.
	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, move)})
	assert.Empty(t, drain(t, black))
}

func TestHub_UnknownRoomDropped(t *testing.T) {
	h, registry := newTestHub(t)
	c := newTestConnection(h)

	h.handleInbound(InboundHubMessage{Conn: c, Message: inbound(t, `{"type":"chat","roomId":"nowhere","message":"hi","color":"w"}`)})

	assert.Empty(t, drain(t, c))
	assert.Equal(t, 0, registry.Len())
}

func TestHub_ChatAndEnPassantRelay(t *testing.T) {
	h, _ := newTestHub(t)
	white, black := newTestConnection(h), newTestConnection(h)

	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	h.handleInbound(InboundHubMessage{Conn: black, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	drain(t, white)
	drain(t, black)

	h.handleInbound(InboundHubMessage{Conn: black, Message: inbound(t, `{"type":"chat","roomId":"A","message":"gl","color":"b"}`)})
	got := drain(t, white)
	require.Len(t, got, 1)
	assert.Equal(t, "Black: gl", got[0]["message"])

	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, `{"type":"enpassant","roomId":"A","point":{"x":4,"y":5,"color":"w"}}`)})
	got = drain(t, black)
	require.Len(t, got, 1)
	assert.Equal(t, "enpassant", got[0]["type"])
}

func TestHub_UnregisterEndsGame(t *testing.T) {
	h, registry := newTestHub(t)
	white, black := newTestConnection(h), newTestConnection(h)
	h.registerConnection(white)
	h.registerConnection(black)

	h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	h.handleInbound(InboundHubMessage{Conn: black, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
	drain(t, black)

	h.unregisterConnection(white)

	got := drain(t, black)
	require.Len(t, got, 1)
	assert.Equal(t, "end", got[0]["type"])
	assert.Equal(t, "b", got[0]["winner"])
	assert.Equal(t, "disconnect", got[0]["reason"])

	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1, h.Len())

	// Sends after close are dropped without panicking.
	assert.NotPanics(t, func() { white.SendJSON(messages.NewStart()) })
}

func TestHub_CloseHandledAfterEarlierFrames(t *testing.T) {
	for i := 0; i < 20; i++ {
		h, registry := newTestHub(t)
		white, black := newTestConnection(h), newTestConnection(h)
		h.registerConnection(white)
		h.registerConnection(black)

		h.handleInbound(InboundHubMessage{Conn: white, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
		h.handleInbound(InboundHubMessage{Conn: black, Message: inbound(t, `{"type":"join","roomId":"A"}`)})
		drain(t, black)

		// Queued while the loop is not running yet.
		require.True(t, h.Dispatch(white, inbound(t, `{"type":"draw","roomId":"A","reason":"agreement"}`)))
		h.Unregister(white)

		go h.Run()
		require.Eventually(t, func() bool { return h.Len() == 1 }, 2*time.Second, time.Millisecond)
		h.Shutdown()

		got := drain(t, black)
		require.Len(t, got, 1)
		assert.Equal(t, "draw", got[0]["type"])
		assert.Equal(t, "agreement", got[0]["reason"])
		assert.Equal(t, 0, registry.Len())
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	h, _ := newTestHub(t)
	c := newTestConnection(h)
	h.registerConnection(c)

	h.Shutdown()
	h.Shutdown()

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Dispatch(c, messages.InboundMessage{}))
}

func TestHub_WebSocketSession(t *testing.T) {
	h, registry := newTestHub(t)
	go h.Run()
	defer h.Shutdown()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Accept(ws)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func() *websocket.Conn {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return ws
	}
	read := func(ws *websocket.Conn) map[string]any {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame map[string]any
		require.NoError(t, ws.ReadJSON(&frame))
		return frame
	}

	white := dial()
	defer white.Close()
	require.NoError(t, white.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","roomId":"A"}`)))
	ack := read(white)
	assert.Equal(t, "data", ack["type"])
	assert.Equal(t, "w", ack["color"])

	black := dial()
	defer black.Close()
	require.NoError(t, black.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","roomId":"A"}`)))
	ack = read(black)
	assert.Equal(t, "b", ack["color"])

	assert.Equal(t, "start", read(white)["type"])
	assert.Equal(t, "start", read(black)["type"])

	move := `{"type":"move","roomId":"A","board":{},"from":"g1","to":"f3","notation":"Nf3","piece":"n","isCapture":false}`
	require.NoError(t, white.WriteMessage(websocket.TextMessage, []byte(move)))
	got := read(black)
	assert.Equal(t, "move", got["type"])
	assert.Equal(t, "Nf3", got["notation"])

	require.NoError(t, white.Close())

	end := read(black)
	assert.Equal(t, "end", end["type"])
	assert.Equal(t, "disconnect", end["reason"])
	assert.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
