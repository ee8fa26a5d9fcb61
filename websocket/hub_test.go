package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"handyconnect-server/database"
	"handyconnect-server/models"
	"handyconnect-server/services"
)

type testEnv struct {
	db       *gorm.DB
	hub      *Hub
	sessions *services.SessionService
	server   *httptest.Server
}

func newTestEnv(t *testing.T, broker Broker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := database.NewTestDB(t)
	sessions := services.NewSessionService(db, services.SessionOptions{TicketSecret: "ws-test-secret"})
	hub := NewHub(broker)
	go hub.Run()
	t.Cleanup(hub.Stop)

	handler := NewHandler(hub, sessions, services.NewUserService(db), services.NewMessageService(db, hub), nil)
	router := gin.New()
	router.GET("/ws", handler.ServeWS)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{db: db, hub: hub, sessions: sessions, server: server}
}

func (e *testEnv) user(t *testing.T, role models.UserRole, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, FirstName: string(role), LastName: "Test", Role: role}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// dialWithTicket connects and authenticates through an auth frame.
func (e *testEnv) dialWithTicket(t *testing.T, user *models.User) *websocket.Conn {
	t.Helper()
	conn := e.dial(t, nil)
	ticket, _, err := e.sessions.IssueSocketTicket(user.ID)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "auth", "token": ticket}))
	frame := readFrame(t, conn, FrameAuthOK)
	assert.EqualValues(t, user.ID, frame.Data["userId"])
	return conn
}

type receivedFrame struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// readFrame reads until a frame of the wanted type arrives.
func readFrame(t *testing.T, conn *websocket.Conn, wantType string) receivedFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s frame", wantType)
		var frame receivedFrame
		require.NoError(t, json.Unmarshal(payload, &frame))
		if frame.Type == wantType {
			return frame
		}
	}
}

// expectSilence asserts no frame of the given type is pending on conn. A ping
// is sent and every frame before its pong is checked; the connection stays usable.
func expectSilence(t *testing.T, conn *websocket.Conn, frameType string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for pong")
		var frame receivedFrame
		require.NoError(t, json.Unmarshal(payload, &frame))
		if frame.Type == FramePong {
			return
		}
		assert.NotEqual(t, frameType, frame.Type)
	}
}

func TestPingAndUnauthenticatedChat(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, nil)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	readFrame(t, conn, FramePong)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "chat", "interventionId": 1, "receiverId": 2, "content": "hi"}))
	frame := readFrame(t, conn, FrameError)
	assert.Equal(t, string(services.CodeUnauthorized), frame.Data["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "garbage"}))
	frame = readFrame(t, conn, FrameError)
	assert.Equal(t, string(services.CodeUnauthorized), frame.Data["code"])
	assert.Zero(t, env.hub.ConnectionCount())
}

func TestChatIsDeliveredToParticipantsOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.user(t, models.RoleClient, "client@example.com")
	worker := env.user(t, models.RoleWorker, "worker@example.com")
	bystander := env.user(t, models.RoleClient, "bystander@example.com")
	intervention := &models.Intervention{
		ClientID: client.ID, WorkerID: &worker.ID, Title: "Fix leak", Description: "Sink",
		Category: models.CategoryPlumbing, Address: "12 Rue X", City: "Casablanca", Status: models.StatusAccepted,
	}
	require.NoError(t, env.db.Create(intervention).Error)

	session, err := env.sessions.Create(context.Background(), client.ID, "test", "127.0.0.1")
	require.NoError(t, err)
	clientConn := env.dial(t, http.Header{"Cookie": {"connect.sid=" + session.Token}})
	readFrame(t, clientConn, FrameAuthOK)

	workerConn := env.dialWithTicket(t, worker)
	workerSecond := env.dialWithTicket(t, worker)
	bystanderConn := env.dialWithTicket(t, bystander)
	assert.Equal(t, 4, env.hub.ConnectionCount())
	assert.True(t, env.hub.IsUserConnected(worker.ID))

	require.NoError(t, clientConn.WriteJSON(map[string]interface{}{
		"type": "chat", "interventionId": intervention.ID, "receiverId": worker.ID, "content": "On my way?",
	}))

	for _, conn := range []*websocket.Conn{clientConn, workerConn, workerSecond} {
		frame := readFrame(t, conn, services.EventNewMessage)
		assert.Equal(t, "On my way?", frame.Data["content"])
		assert.EqualValues(t, client.ID, frame.Data["senderId"])
	}
	expectSilence(t, bystanderConn, services.EventNewMessage)

	var stored int64
	require.NoError(t, env.db.Model(&models.Message{}).Count(&stored).Error)
	assert.Equal(t, int64(1), stored)

	// Service errors come back as error frames.
	require.NoError(t, bystanderConn.WriteJSON(map[string]interface{}{
		"type": "chat", "interventionId": intervention.ID, "receiverId": client.ID, "content": "hey",
	}))
	frame := readFrame(t, bystanderConn, FrameError)
	assert.Equal(t, string(services.CodeForbidden), frame.Data["code"])
}

func TestDisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.user(t, models.RoleClient, "c@example.com")
	conn := env.dialWithTicket(t, user)
	require.Equal(t, 1, env.hub.ConnectionCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return env.hub.ConnectionCount() == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestFullSendBufferDropsConnection(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	slow := &Client{send: make(chan []byte, 1)}
	require.True(t, hub.attach(slow, &models.User{ID: 7}))

	hub.PublishToUsers([]uint{7}, services.EventNotification, "first")
	hub.PublishToUsers([]uint{7}, services.EventNotification, "second")
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The frame that fit is still readable, then the channel is closed.
	first, ok := <-slow.send
	require.True(t, ok)
	assert.Contains(t, string(first), "first")
	_, ok = <-slow.send
	assert.False(t, ok)
}

// loopbackBroker stands in for Redis: every published envelope is encoded and
// handed to all subscribers.
type loopbackBroker struct {
	mu   sync.Mutex
	subs []func(Envelope)
}

func (b *loopbackBroker) Publish(_ context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	b.mu.Lock()
	subs := append([]func(Envelope){}, b.subs...)
	b.mu.Unlock()
	for _, deliver := range subs {
		decoded, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}
		deliver(decoded)
	}
	return nil
}

func (b *loopbackBroker) Subscribe(ctx context.Context, ready func(), deliver func(Envelope)) error {
	b.mu.Lock()
	b.subs = append(b.subs, deliver)
	b.mu.Unlock()
	ready()
	<-ctx.Done()
	return nil
}

func (b *loopbackBroker) Close() error { return nil }

func (b *loopbackBroker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func TestBrokerFansOutAcrossInstances(t *testing.T) {
	broker := &loopbackBroker{}
	a := newTestEnv(t, broker)
	b := newTestEnv(t, broker)
	require.Eventually(t, func() bool {
		return broker.subscribers() == 2 && a.hub.subscribed.Load() && b.hub.subscribed.Load()
	}, 2*time.Second, 10*time.Millisecond)

	user := b.user(t, models.RoleClient, "remote@example.com")
	conn := b.dialWithTicket(t, user)

	a.hub.PublishToUsers([]uint{user.ID, user.ID}, services.EventNotification, map[string]interface{}{"title": "Hello"})
	frame := readFrame(t, conn, services.EventNotification)
	assert.Equal(t, "Hello", frame.Data["title"])
	expectSilence(t, conn, services.EventNotification)
}

// pendingBroker accepts publishes but its subscription never becomes live,
// like Redis before SUBSCRIBE is confirmed.
type pendingBroker struct {
	published atomic.Int32
}

func (b *pendingBroker) Publish(context.Context, Envelope) error {
	b.published.Add(1)
	return nil
}

func (b *pendingBroker) Subscribe(ctx context.Context, _ func(), _ func(Envelope)) error {
	<-ctx.Done()
	return nil
}

func (b *pendingBroker) Close() error { return nil }

func TestLocalDeliveryBeforeSubscriptionIsLive(t *testing.T) {
	broker := &pendingBroker{}
	env := newTestEnv(t, broker)
	user := env.user(t, models.RoleClient, "early@example.com")
	conn := env.dialWithTicket(t, user)

	env.hub.PublishToUsers([]uint{user.ID}, services.EventNotification, map[string]interface{}{"title": "Early"})

	frame := readFrame(t, conn, services.EventNotification)
	assert.Equal(t, "Early", frame.Data["title"])
	assert.Equal(t, int32(1), broker.published.Load())
	assert.False(t, env.hub.subscribed.Load())
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []uint{3, 1}, uniqueIDs([]uint{3, 0, 1, 3, 1}))
}
