package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"handyconnect-server/database"
	"handyconnect-server/models"
)

var userSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	return database.NewTestDB(t)
}

func createUser(t *testing.T, db *gorm.DB, role models.UserRole, city string) *models.User {
	t.Helper()
	n := atomic.AddInt64(&userSeq, 1)
	user := &models.User{
		Email:     fmt.Sprintf("%s%d@example.com", role, n),
		FirstName: string(role),
		LastName:  fmt.Sprint(n),
		Role:      role,
		City:      city,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type workerOpts struct {
	city      string
	category  models.ServiceCategory
	rate      float64
	rating    float64
	available bool
}

func createWorker(t *testing.T, db *gorm.DB, opts workerOpts) *models.User {
	t.Helper()
	if opts.category == "" {
		opts.category = models.CategoryPlumbing
	}
	if opts.rate == 0 {
		opts.rate = 100
	}
	user := createUser(t, db, models.RoleWorker, opts.city)
	profile := &models.WorkerProfile{
		UserID:      user.ID,
		Category:    opts.category,
		Experience:  3,
		HourlyRate:  opts.rate,
		IsAvailable: opts.available,
		Rating:      opts.rating,
	}
	require.NoError(t, db.Create(profile).Error)
	user.WorkerProfile = profile
	return user
}

func createIntervention(t *testing.T, db *gorm.DB, client *models.User, worker *models.User, status models.InterventionStatus) *models.Intervention {
	t.Helper()
	i := &models.Intervention{
		ClientID:    client.ID,
		Title:       "Fix leak",
		Description: "Kitchen sink leaks",
		Category:    models.CategoryPlumbing,
		Urgency:     models.UrgencyMedium,
		Address:     "12 Rue X",
		City:        "Casablanca",
		Status:      status,
	}
	if worker != nil {
		i.WorkerID = &worker.ID
	}
	require.NoError(t, db.Create(i).Error)
	return i
}

type publishedEvent struct {
	UserIDs   []uint
	EventType string
	Data      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishToUsers(userIDs []uint, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserIDs: append([]uint(nil), userIDs...), EventType: eventType, Data: data})
}

func (p *recordingPublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	created  []PaymentIntentRequest
	statuses map[string]string
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]string{}}
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, req)
	id := fmt.Sprintf("pi_%d", len(g.created))
	g.statuses[id] = "requires_payment_method"
	return &PaymentIntent{ID: id, ClientSecret: id + "_secret", Status: g.statuses[id], AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

func (g *fakeGateway) GetPaymentIntent(_ context.Context, id string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	status, ok := g.statuses[id]
	if !ok {
		return nil, fmt.Errorf("no such intent %s", id)
	}
	return &PaymentIntent{ID: id, Status: status}, nil
}

func (g *fakeGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = status
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("id ASC").Find(&out).Error)
	return out
}
