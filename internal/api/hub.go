/*
Package api
File: hub.go
Description:
    The WebSocket Hub is the real-time side of the UI bridge.

    It keeps a registry of connected clients and a broadcast channel. Every
    event published on the core bus is relayed to all clients as a Message.
    Clients send commands back as {type, payload}; each connection has its
    own rate limiter and commands go through the engine's command port.

    Architecture:
    - Hub: the registry and broadcast loop.
    - Client: one browser or terminal connection.
    - ServeWs: upgrades a GET request to a WebSocket.
*/

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/everforgeworks/merc-command/internal/event"
)

// Message is the JSON envelope for everything sent over the socket.
type Message struct {
	Type    string `json:"type"`              // Event name (e.g., "contract:accepted")
	Payload any    `json:"payload,omitempty"` // Event payload or command reply
	Sender  string `json:"sender"`            // Origin: "core" or a client id
}

// inbound is a command from a client.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Reply types sent to a single client.
const (
	TypeCommandResult   = "command:result"
	TypeCommandRejected = "command:rejected"
)

// Sender of relayed events and replies.
const SenderCore = "core"

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 256
	submitLimit = 5 * time.Second
)

// Commander accepts wire commands. The engine implements it.
type Commander interface {
	SubmitJSON(ctx context.Context, name string, raw []byte) ([]event.Result, error)
}

// HubConfig sets the per-connection command budget.
type HubConfig struct {
	Rate  rate.Limit // Commands per second
	Burst int
}

// DefaultHubConfig allows 10 commands a second with bursts of 20.
var DefaultHubConfig = HubConfig{Rate: 10, Burst: 20}

// Client represents a single connection.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients map[*Client]bool

	// Broadcast takes encoded messages for every client.
	Broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Closed when Run returns

	cmd     Commander
	cfg     HubConfig
	dropped atomic.Uint64
	count   atomic.Int64
	log     *slog.Logger
}

// NewHub creates a hub submitting client commands to cmd.
func NewHub(cmd Commander, cfg HubConfig, log *slog.Logger) *Hub {
	if cfg.Rate <= 0 && cfg.Burst <= 0 {
		cfg = DefaultHubConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		Broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		cmd:        cmd,
		cfg:        cfg,
		log:        log.With(slog.String("system", "hub")),
	}
}

// Run is the hub loop. It blocks until ctx ends. Connections arriving
// afterwards are closed at once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			h.log.Info("WS: client connected", "client", client.id)

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Info("WS: client disconnected", "client", client.id)
			}

		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// A full buffer means the client stalled.
					h.log.Warn("WS: dropping slow client", "client", client.id)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	h.count.Add(-1)
	c.close()
}

// Clients is the number of registered connections.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Dropped counts relayed events discarded because the broadcast queue was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Relay forwards every event on bus to the clients. The handler never blocks
// the publisher.
func (h *Hub) Relay(bus *event.Bus) event.SubscriptionID {
	return bus.SubscribeAny(func(ctx context.Context, ev event.Event) (any, error) {
		data, err := json.Marshal(Message{Type: ev.Name, Payload: ev.Payload, Sender: SenderCore})
		if err != nil {
			h.log.Warn("WS: unencodable event", "event", ev.Name, "error", err)
			return nil, nil
		}
		select {
		case h.Broadcast <- data:
		default:
			h.dropped.Add(1)
		}
		return nil, nil
	}, event.Context("hub"), event.Priority(-1000))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request and starts the client's pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("WS upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(hub.cfg.Rate, hub.cfg.Burst),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump turns client frames into commands.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.done:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("WS read failed", "client", c.id, "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			c.reply(TypeCommandRejected, CommandReply{Error: "malformed command"})
			continue
		}
		if !c.limiter.Allow() {
			c.reply(TypeCommandRejected, CommandReply{Command: in.Type, Error: "rate limited"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), submitLimit)
		res, err := c.hub.cmd.SubmitJSON(ctx, in.Type, in.Payload)
		cancel()
		if err != nil {
			c.reply(TypeCommandRejected, CommandReply{Command: in.Type, Error: err.Error()})
			continue
		}
		c.hub.log.Debug("WS command", "client", c.id, "command", in.Type)
		c.reply(TypeCommandResult, replyOf(in.Type, res))
	}
}

// reply queues a message for this client only.
func (c *Client) reply(kind string, payload CommandReply) {
	data, err := json.Marshal(Message{Type: kind, Payload: payload, Sender: SenderCore})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}

// writePump drains the send queue to the socket.
func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
	}
}
