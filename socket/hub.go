package socket

import (
	"encoding/json"

	"coscribe/pkg/logger"
)

// Wire event names, matching what the editor client emits and listens for.
const (
	JoinRoomType       = "join-room"
	SendChangesType    = "send-changes"
	ReceiveChangesType = "receive-changes"
	CursorUpdateType   = "cursor-update"
	ErrorType          = "error"
)

// WSMessage is the envelope for every relay event. Payload is opaque: the
// relay never looks inside a delta or a cursor blob.
type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CursorPayload is the one payload the relay does rewrite: the user_id is
// replaced with the server-authoritative sender identity before forwarding.
type CursorPayload struct {
	UserID string          `json:"user_id"`
	Cursor json.RawMessage `json:"cursor"`
}

// Authorizer decides whether a user may enter a document's room. Joins are
// re-checked here rather than trusting that room ids stay secret.
type Authorizer interface {
	CheckAccess(docID, userID string) (bool, error)
}

type joinRequest struct {
	client *Client
	docID  string
}

type outbound struct {
	sender  *Client
	typ     string
	payload json.RawMessage
}

// Hub is the session registry and room relay. All membership maps are
// touched only by the Run goroutine; every other goroutine talks to it
// through channels.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	join      chan joinRequest
	broadcast chan outbound
	remove    chan string
	done      chan struct{}

	auth Authorizer

	rooms    map[string]map[*Client]bool
	sessions map[*Client]string // current room per session, "" while roomless
}

func NewHub(auth Authorizer) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan joinRequest),
		broadcast:  make(chan outbound, 64),
		remove:     make(chan string),
		done:       make(chan struct{}),
		auth:       auth,
		rooms:      make(map[string]map[*Client]bool),
		sessions:   make(map[*Client]string),
	}
}

// Run is the relay event loop. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.sessions[client] = ""

		case client := <-h.Unregister:
			if _, ok := h.sessions[client]; !ok {
				continue
			}
			h.leaveRoom(client)
			delete(h.sessions, client)
			close(client.Send)

		case req := <-h.join:
			if _, ok := h.sessions[req.client]; !ok {
				continue
			}
			// A session is in at most one room; switching rooms leaves the
			// old one first.
			h.leaveRoom(req.client)
			if h.rooms[req.docID] == nil {
				h.rooms[req.docID] = make(map[*Client]bool)
			}
			h.rooms[req.docID][req.client] = true
			h.sessions[req.client] = req.docID
			logger.Sugar.Infof("User %s joined room %s", req.client.UserID, req.docID)

		case out := <-h.broadcast:
			h.relay(out)

		case docID := <-h.remove:
			// Document deleted; force every session in its room out.
			if clients, ok := h.rooms[docID]; ok {
				for client := range clients {
					client.Conn.Close()
				}
				delete(h.rooms, docID)
				logger.Sugar.Infof("Closed room for deleted document %s", docID)
			}

		case <-h.done:
			for client := range h.sessions {
				client.Conn.Close()
			}
			return
		}
	}
}

// Shutdown stops the event loop and disconnects every session.
func (h *Hub) Shutdown() {
	close(h.done)
}

// RemoveDocument disconnects all sessions in a document's room. Called by
// the persistence layer after a delete commits.
func (h *Hub) RemoveDocument(docID string) {
	select {
	case h.remove <- docID:
	case <-h.done:
	}
}

// relay forwards an event to every other session in the sender's room.
// Delivery is fire-and-forget: a peer with a full send buffer simply misses
// the event, and the sender is never told.
func (h *Hub) relay(out outbound) {
	room := h.sessions[out.sender]
	if room == "" {
		return
	}

	var msg WSMessage
	switch out.typ {
	case SendChangesType:
		msg = WSMessage{Type: ReceiveChangesType, DocID: room, UserID: out.sender.UserID, Payload: out.payload}
	case CursorUpdateType:
		msg = WSMessage{Type: CursorUpdateType, DocID: room, UserID: out.sender.UserID, Payload: out.payload}
	default:
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		return
	}

	for client := range h.rooms[room] {
		if client == out.sender {
			continue
		}
		select {
		case client.Send <- data:
		default:
			logger.Sugar.Warnf("Dropping %s event for lagging user %s in room %s", msg.Type, client.UserID, room)
		}
	}
}

func (h *Hub) leaveRoom(client *Client) {
	room := h.sessions[client]
	if room == "" {
		return
	}
	delete(h.rooms[room], client)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	h.sessions[client] = ""
}
