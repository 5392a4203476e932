package restapi

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/asgard/mavhub/internal/mavlink"
	"github.com/asgard/mavhub/internal/obsmetrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wireMessage struct {
	SenderUUID  string `json:"sender_uuid"`
	SystemID    uint8  `json:"system_id"`
	ComponentID uint8  `json:"component_id"`
	MessageID   uint32 `json:"message_id"`
	Sequence    uint8  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
	Origin      string `json:"origin"`
}

// wsClient is one connected WebSocket subscriber: its own filter and
// identity, mirroring the original's WebsocketActor(filter) plus a
// uuid sender id used for loopback suppression.
type wsClient struct {
	id     uuid.UUID
	conn   *websocket.Conn
	filter *regexp.Regexp
	send   chan wireMessage
}

// wsHub manages the set of connected WebSocket clients, adapted from
// the teacher's realtime.Broadcaster register/unregister/broadcast
// actor loop to fan out per-client regex-filtered MAVLink traffic.
type wsHub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*wsClient
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[uuid.UUID]*wsClient)}
}

func (h *wsHub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	obsmetrics.Get().WebSocketConns.Set(float64(len(h.clients)))
}

func (h *wsHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	obsmetrics.Get().WebSocketConns.Set(float64(len(h.clients)))
}

// broadcast fans msg out to every client whose filter matches the
// message's dialect name, skipping the client that originated it.
func (h *wsHub) broadcast(msg *mavlink.Protocol, senderUUID uuid.UUID) {
	hdr := msg.Header()
	name := mavlink.MessageName(hdr.MessageID)

	wire := wireMessage{
		SenderUUID:  senderUUID.String(),
		SystemID:    hdr.SystemID,
		ComponentID: hdr.ComponentID,
		MessageID:   hdr.MessageID,
		Sequence:    hdr.Sequence,
		TimestampUs: msg.Timestamp,
		Origin:      msg.Origin,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.id == senderUUID {
			continue // never echo a message back to the client that sent it
		}
		if !c.filter.MatchString(name) {
			continue
		}
		select {
		case c.send <- wire:
		default:
			logrus.WithField("client", c.id).Warn("websocket client send buffer full, dropping message")
		}
	}
}

// serveWebSocket upgrades r and registers a client with the given
// filter, running its write pump until the connection closes.
func serveWebSocket(h *wsHub, w http.ResponseWriter, r *http.Request, filterPattern string, onClientSend func(senderUUID uuid.UUID, raw []byte)) {
	if filterPattern == "" {
		filterPattern = ".*"
	}
	filter, err := regexp.Compile(filterPattern)
	if err != nil {
		http.Error(w, "invalid filter regex", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{
		id:     uuid.New(),
		conn:   conn,
		filter: filter,
		send:   make(chan wireMessage, 256),
	}
	h.register(client)

	go readPump(h, client, onClientSend)
	go writePump(h, client)
}

func readPump(h *wsHub, c *wsClient, onClientSend func(senderUUID uuid.UUID, raw []byte)) {
	defer h.unregister(c)
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("websocket read error")
			}
			return
		}
		if onClientSend != nil && len(raw) > 0 {
			onClientSend(c.id, raw)
		}
	}
}

func writePump(h *wsHub, c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
