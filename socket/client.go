package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"coscribe/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The editor frontend runs on a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one live websocket session. Which room it is in (if any) is
// tracked by the hub, not here.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID string
	Send   chan []byte
}

// ServeWs upgrades the request and registers the session. The connection
// starts roomless; the client joins a document's room with a join-room
// event once it knows which document it is editing.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
	}

	select {
	case hub.Register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		switch msg.Type {
		case JoinRoomType:
			c.handleJoin(msg.DocID)

		case SendChangesType:
			if !c.send(outbound{sender: c, typ: SendChangesType, payload: msg.Payload}) {
				return
			}

		case CursorUpdateType:
			// Rewrite the payload so a client cannot move someone else's
			// cursor.
			var cur CursorPayload
			if err := json.Unmarshal(msg.Payload, &cur); err != nil {
				continue
			}
			cur.UserID = c.UserID
			payload, err := json.Marshal(cur)
			if err != nil {
				continue
			}
			if !c.send(outbound{sender: c, typ: CursorUpdateType, payload: payload}) {
				return
			}

		default:
			logger.Sugar.Debugf("Ignoring unknown event type %q from user %s", msg.Type, c.UserID)
		}
	}
}

// handleJoin re-validates access before the session enters the room. Room
// ids are document ids, which peers can observe; membership is not implied
// by knowing one.
func (c *Client) handleJoin(docID string) {
	if docID == "" {
		c.sendError("", "Missing document id")
		return
	}

	allowed, err := c.Hub.auth.CheckAccess(docID, c.UserID)
	if err != nil {
		logger.Sugar.Errorf("Join access check failed for user %s on doc %s: %v", c.UserID, docID, err)
		c.sendError(docID, "Server error")
		return
	}
	if !allowed {
		logger.Sugar.Warnf("Rejected join: user %s has no access to doc %s", c.UserID, docID)
		c.sendError(docID, "Access denied")
		return
	}

	select {
	case c.Hub.join <- joinRequest{client: c, docID: docID}:
	case <-c.Hub.done:
	}
}

func (c *Client) send(out outbound) bool {
	select {
	case c.Hub.broadcast <- out:
		return true
	case <-c.Hub.done:
		return false
	}
}

func (c *Client) sendError(docID, message string) {
	payload, _ := json.Marshal(map[string]string{"error": message})
	data, _ := json.Marshal(WSMessage{Type: ErrorType, DocID: docID, Payload: payload})
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) writePump() {
	// Ping every 30s to keep the connection alive and notice dead peers.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
