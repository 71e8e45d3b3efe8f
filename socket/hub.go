package socket

import (
	"encoding/json"
	"sync"

	"docsync/internal/document/model"
	"docsync/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	DocumentsDeletedType = "DOCUMENTS_DELETED" // Documents removed by another client
)

type WSMessage struct {
	Type    string          `json:"type"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	ID     string // Client id sent with REST calls as X-Client-ID
	UserID string
	Send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Sugar.Infof("Client %s connected (user %s)", client.ID, client.UserID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				logger.Sugar.Infof("Client %s disconnected", client.ID)
			}
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			// Everyone except the client that caused the event.
			h.mu.Lock()
			for client := range h.clients {
				if msg.Origin != "" && client.ID == msg.Origin {
					continue
				}
				select {
				case client.Send <- payload:
				default:
					// The client is lagging; dropping it keeps the hub from blocking.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID)
					delete(h.clients, client)
					close(client.Send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastDeletion tells every client except origin that ids were deleted.
func (h *Hub) BroadcastDeletion(origin string, ids []string) {
	payload, err := json.Marshal(model.DeletedDocuments{IDs: ids})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling deleted ids: %v", err)
		return
	}
	select {
	case h.Broadcast <- WSMessage{Type: DocumentsDeletedType, Origin: origin, Payload: payload}:
	case <-h.done:
	}
}
