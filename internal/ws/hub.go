package ws

import (
	"context"
	"sync"

	"go-inventory-insights/internal/metrics"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSendBuffer is the outbound queue length of a single client.
const DefaultSendBuffer = 64

// Conn is the part of a websocket connection the hub writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	ID      uuid.UUID
	StoreID uuid.UUID
	Room    string
	conn    Conn
	send    chan []byte
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Message

	mutex      sync.Mutex
	rooms      map[string]map[*Client]struct{}
	clients    map[*Client]struct{}
	sendBuffer int
	done       chan struct{}
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message),
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		sendBuffer: sendBuffer,
		done:       make(chan struct{}),
	}
}

// Run owns the room membership. It returns when ctx is cancelled, closing
// every connected client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				h.remove(c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.Register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			if h.rooms[c.Room] == nil {
				h.rooms[c.Room] = make(map[*Client]struct{})
			}
			h.rooms[c.Room][c] = struct{}{}
			h.mutex.Unlock()
			metrics.WSClients.Inc()
			log.Debug().Str("room", c.Room).Str("client", c.ID.String()).Msg("ws client connected")

		case c := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				h.remove(c)
			}
			h.mutex.Unlock()

		case msg := <-h.Broadcast:
			h.deliver(msg)
		}
	}
}

// remove must be called with the mutex held.
func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	if members, ok := h.rooms[c.Room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.Room)
		}
	}
	close(c.send)
	metrics.WSClients.Dec()
}

func (h *Hub) deliver(msg Message) {
	payload, err := msg.Frame()
	if err != nil {
		metrics.BroadcastDropped.WithLabelValues("encode").Inc()
		log.Error().Err(err).Str("event", msg.Event).Msg("encode ws frame")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	targets := []map[*Client]struct{}{h.rooms[msg.Room]}
	if msg.Room != GlobalRoom {
		targets = append(targets, h.rooms[GlobalRoom])
	}
	for _, members := range targets {
		for c := range members {
			select {
			case c.send <- payload:
			default:
				metrics.BroadcastDropped.WithLabelValues("client_queue_full").Inc()
				log.Warn().Str("client", c.ID.String()).Str("event", msg.Event).Msg("ws client queue full, dropping event")
			}
		}
	}
}

// Join registers conn in the room its claims allow and starts its writer.
func (h *Hub) Join(conn Conn, storeID uuid.UUID, role string) *Client {
	room := StoreRoom(storeID)
	if role == RoleAuthor {
		room = GlobalRoom
	}
	c := &Client{
		ID:      uuid.New(),
		StoreID: storeID,
		Room:    room,
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
	}
	select {
	case h.Register <- c:
	case <-h.done:
		close(c.send)
		return c
	}
	go h.writePump(c)
	return c
}

func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Deliver hands msg to the run loop.
func (h *Hub) Deliver(msg Message) {
	select {
	case h.Broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) writePump(c *Client) {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			metrics.BroadcastDropped.WithLabelValues("write_error").Inc()
			log.Warn().Err(err).Str("client", c.ID.String()).Msg("ws write failed, closing client")
			h.Leave(c)
			// drain until the hub closes the queue
			for range c.send {
			}
			return
		}
	}
}
