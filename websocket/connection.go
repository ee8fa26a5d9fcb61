package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"handyconnect-server/middleware"
	"handyconnect-server/models"
	"handyconnect-server/services"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

// Outbound frame types besides the service events.
const (
	FrameAuthOK = "auth_ok"
	FramePong   = "pong"
	FrameError  = "error"
)

// SessionResolver authenticates connections from a session cookie or a ticket.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Session, *models.User, error)
	VerifySocketTicket(token string) (uint, error)
}

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

type ChatSender interface {
	Send(ctx context.Context, sender *models.User, input services.SendMessageInput) (*models.Message, error)
}

// inboundFrame covers every frame a client may send.
type inboundFrame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	InterventionID uint   `json:"interventionId,omitempty"`
	ReceiverID     uint   `json:"receiverId,omitempty"`
	Content        string `json:"content,omitempty"`
}

// Client is one websocket connection. It joins the hub only once authenticated.
type Client struct {
	handler *Handler
	conn    *websocket.Conn
	send    chan []byte

	userID uint
	user   *models.User

	mu     sync.Mutex
	closed bool
}

func (c *Client) setUser(user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.userID = user.ID
}

func (c *Client) currentUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// trySend queues data without blocking. It reports false when the buffer is
// full or the connection is already closing.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) reply(frameType string, data interface{}) {
	payload, err := json.Marshal(Frame{Type: frameType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Printf("❌ Error marshaling frame: %v", err)
		return
	}
	if !c.trySend(payload) {
		log.Printf("⚠️ Could not queue %s frame for %s", frameType, c.conn.RemoteAddr())
	}
}

func (c *Client) replyError(err error) {
	appErr, ok := services.AsAppError(err)
	if !ok {
		log.Printf("❌ Websocket handler error: %v", err)
		appErr = &services.AppError{Code: services.CodeInternal, Message: "Internal server error"}
	}
	data := map[string]interface{}{"code": appErr.Code, "message": appErr.Message}
	if len(appErr.Fields) > 0 {
		data["fields"] = appErr.Fields
	}
	c.reply(FrameError, data)
}

// Handler upgrades HTTP requests and dispatches inbound frames.
type Handler struct {
	hub      *Hub
	sessions SessionResolver
	users    UserLoader
	messages ChatSender
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, sessions SessionResolver, users UserLoader, messages ChatSender, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		sessions: sessions,
		users:    users,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWS upgrades the connection. A valid session cookie authenticates it
// immediately; otherwise the client must send an auth frame with a ticket.
func (h *Handler) ServeWS(c *gin.Context) {
	var user *models.User
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		if _, u, err := h.sessions.Resolve(c.Request.Context(), token); err == nil {
			user = u
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		handler: h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}
	go client.writePump()

	if user != nil && h.hub.attach(client, user) {
		client.reply(FrameAuthOK, map[string]interface{}{"userId": user.ID})
	}
	go client.readPump()
}

// readPump pumps frames from the connection to the handler
func (c *Client) readPump() {
	defer func() {
		if c.currentUser() != nil {
			c.handler.hub.detach(c)
		}
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.replyError(services.ValidationError("Malformed frame", nil))
			continue
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame inboundFrame) {
	switch frame.Type {
	case "ping":
		c.reply(FramePong, nil)
	case "auth":
		c.authenticate(frame.Token)
	case "chat":
		c.chat(frame)
	default:
		c.replyError(services.ValidationError("Unknown frame type", map[string]string{"type": "Must be one of: auth, chat, ping"}))
	}
}

func (c *Client) authenticate(token string) {
	if existing := c.currentUser(); existing != nil {
		c.reply(FrameAuthOK, map[string]interface{}{"userId": existing.ID})
		return
	}

	userID, err := c.handler.sessions.VerifySocketTicket(token)
	if err != nil {
		c.replyError(err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	user, err := c.handler.users.GetUser(ctx, userID)
	if err != nil {
		c.replyError(services.Unauthorized("Invalid ticket"))
		return
	}
	if !c.handler.hub.attach(c, user) {
		return
	}
	c.reply(FrameAuthOK, map[string]interface{}{"userId": user.ID})
}

func (c *Client) chat(frame inboundFrame) {
	user := c.currentUser()
	if user == nil {
		c.replyError(services.Unauthorized("Authenticate before sending messages"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Delivery of the stored message happens through the hub's new_message event.
	if _, err := c.handler.messages.Send(ctx, user, services.SendMessageInput{
		InterventionID: frame.InterventionID,
		ReceiverID:     frame.ReceiverID,
		Content:        frame.Content,
	}); err != nil {
		c.replyError(err)
	}
}

// writePump pumps frames from the send buffer to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
