// Package server bridges a game session's event bus to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kesa0v0/WeimarPort/internal/config"
	"github.com/kesa0v0/WeimarPort/internal/game"
	"github.com/kesa0v0/WeimarPort/internal/game/rules"
	"github.com/kesa0v0/WeimarPort/internal/game/script"
	"go.uber.org/zap"
)

// Client message types.
const (
	MsgSelect      = "select"
	MsgCancel      = "cancel"
	MsgRunScenario = "run_scenario"
	MsgPlayCard    = "play_card"
	MsgSnapshot    = "snapshot"
)

// Server-only message types. Bus events use their event type.
const (
	MsgError = "error"
	MsgState = "state"
)

// Message is the wire format in both directions.
type Message struct {
	Type          string `json:"type"`
	CorrelationID string `json:"correlationId,omitempty"`
	Value         string `json:"value,omitempty"`
	Name          string `json:"name,omitempty"`
	CardID        string `json:"cardId,omitempty"`
	Data          any    `json:"data,omitempty"`
}

// Scripts looks up the scripts clients may start.
type Scripts interface {
	Scenario(ctx context.Context, name string) (*script.Scenario, error)
	Card(ctx context.Context, id string) (*script.Card, error)
}

// Hub fans bus events out to every client and feeds client responses back
// into the session.
type Hub struct {
	session *game.Session
	scripts Scripts
	cfg     config.WebSocketConfig
	logger  *zap.Logger

	upgrader   websocket.Upgrader
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	ctx     context.Context
	stop    context.CancelFunc
	running sync.WaitGroup
}

// NewHub creates a hub over session.
func NewHub(session *game.Session, scripts Scripts, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		session:    session,
		scripts:    scripts,
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.ctx, h.stop = context.WithCancel(context.Background())
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run forwards bus events until ctx is done, then disconnects every client,
// cancels scripts started by clients and waits for them to return.
func (h *Hub) Run(ctx context.Context) {
	handle := h.session.Bus().Subscribe(h.forward)
	defer func() {
		h.session.Bus().Unsubscribe(handle)
		h.stop()
		close(h.done)
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.running.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client connected", zap.String("remote", client.remote))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("client disconnected", zap.String("remote", client.remote))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("dropping slow client", zap.String("remote", client.remote))
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// forward runs on the publishing goroutine.
func (h *Hub) forward(e rules.Event) {
	payload, err := json.Marshal(Message{Type: string(e.Type), Data: e})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// ServeHTTP upgrades the connection and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(h, conn, r.RemoteAddr)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleMessage(c *Client, msg Message) {
	h.logger.Debug("client message", zap.String("type", msg.Type), zap.String("remote", c.remote))

	switch msg.Type {
	case MsgSelect:
		h.session.Broker().Resolve(msg.CorrelationID, msg.Value)

	case MsgCancel:
		h.session.Broker().Decline(msg.CorrelationID)

	case MsgRunScenario:
		h.start(c, "scenario "+msg.Name, func(ctx context.Context) error {
			sc, err := h.scripts.Scenario(ctx, msg.Name)
			if err != nil {
				return err
			}
			return h.session.RunScenario(ctx, sc)
		})

	case MsgPlayCard:
		h.start(c, "card "+msg.CardID, func(ctx context.Context) error {
			card, err := h.scripts.Card(ctx, msg.CardID)
			if err != nil {
				return err
			}
			return h.session.PlayCard(ctx, card)
		})

	case MsgSnapshot:
		c.reply(Message{Type: MsgState, Data: h.session.Snapshot()})

	default:
		c.reply(Message{Type: MsgError, Data: "unknown message type " + msg.Type})
	}
}

// start runs a script off the read pump: the script may wait for a
// selection that arrives on this same connection.
func (h *Hub) start(c *Client, what string, run func(ctx context.Context) error) {
	if h.scripts == nil {
		c.reply(Message{Type: MsgError, Data: "no script store configured"})
		return
	}
	h.running.Add(1)
	go func() {
		defer h.running.Done()
		if err := run(h.ctx); err != nil {
			h.logger.Warn("client script failed", zap.String("script", what), zap.Error(err))
			c.reply(Message{Type: MsgError, Data: what + ": " + err.Error()})
		}
	}()
}
