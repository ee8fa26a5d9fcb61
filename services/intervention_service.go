package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"handyconnect-server/models"
	"handyconnect-server/types"
)

// InterventionService owns the intervention lifecycle.
type InterventionService struct {
	db            *gorm.DB
	notifications *NotificationService
	publisher     Publisher
	now           func() time.Time
}

func NewInterventionService(db *gorm.DB, notifications *NotificationService, publisher Publisher) *InterventionService {
	return &InterventionService{
		db:            db,
		notifications: notifications,
		publisher:     publisherOrNoop(publisher),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreateInterventionInput struct {
	Title             string                 `json:"title" validate:"required,max=255"`
	Description       string                 `json:"description" validate:"required"`
	Category          models.ServiceCategory `json:"category" validate:"required,category"`
	Urgency           models.Urgency         `json:"urgency" validate:"omitempty,urgency"`
	PreferredDate     *types.FlexTime        `json:"preferredDate"`
	EstimatedDuration *types.FlexFloat       `json:"estimatedDuration" validate:"omitempty,gt=0"`
	MaxBudget         *types.FlexFloat       `json:"maxBudget" validate:"omitempty,gte=0"`
	Address           string                 `json:"address" validate:"required,max=255"`
	City              string                 `json:"city" validate:"required,max=100"`
	WorkerID          *uint                  `json:"workerId"`
}

func (in *CreateInterventionInput) trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
}

// Create opens a new request on behalf of the authenticated client. Status
// always starts at pending.
func (s *InterventionService) Create(ctx context.Context, client *models.User, input CreateInterventionInput) (*models.Intervention, error) {
	input.trim()
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if client.IsWorker() {
		return nil, Forbidden("Workers cannot request interventions")
	}
	if input.WorkerID != nil {
		if *input.WorkerID == client.ID {
			return nil, FieldError("workerId", "Cannot assign yourself")
		}
		if err := s.ensureWorker(ctx, s.db, *input.WorkerID); err != nil {
			return nil, err
		}
	}

	urgency := input.Urgency
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	intervention := &models.Intervention{
		ClientID:          client.ID,
		WorkerID:          input.WorkerID,
		Title:             input.Title,
		Description:       input.Description,
		Category:          input.Category,
		Urgency:           urgency,
		PreferredDate:     types.FlexTimePtr(input.PreferredDate),
		EstimatedDuration: hoursPtr(input.EstimatedDuration),
		MaxBudget:         types.FlexFloatPtr(input.MaxBudget),
		Address:           input.Address,
		City:              input.City,
		Status:            models.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(intervention).Error; err != nil {
		return nil, Downstream("Failed to create intervention", err)
	}

	if intervention.WorkerID != nil {
		s.notifications.notifyQuietly(ctx, *intervention.WorkerID, models.NotificationInterventionRequest,
			"New intervention request",
			fmt.Sprintf("%s asked you for: %s", client.DisplayName(), intervention.Title),
			&intervention.ID)
	}
	return s.load(ctx, intervention.ID)
}

func hoursPtr(f *types.FlexFloat) *int {
	if f == nil {
		return nil
	}
	h := int(math.Ceil(f.Float64()))
	return &h
}

func (s *InterventionService) ensureWorker(ctx context.Context, db *gorm.DB, workerID uint) error {
	var count int64
	err := db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN worker_profiles ON worker_profiles.user_id = users.id AND worker_profiles.deleted_at IS NULL").
		Where("users.id = ? AND users.role = ?", workerID, models.RoleWorker).
		Count(&count).Error
	if err != nil {
		return Downstream("Failed to fetch worker", err)
	}
	if count == 0 {
		return NotFound("Worker")
	}
	return nil
}

func (s *InterventionService) load(ctx context.Context, id uint) (*models.Intervention, error) {
	var intervention models.Intervention
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Worker").
		Preload("Worker.WorkerProfile").
		First(&intervention, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Intervention")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch intervention", err)
	}
	return &intervention, nil
}

// Get returns an intervention visible to the actor: participants, admins,
// and any worker while the request is still open.
func (s *InterventionService) Get(ctx context.Context, actor *models.User, id uint) (*models.Intervention, error) {
	intervention, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, intervention) {
		return nil, Forbidden("You are not a participant of this intervention")
	}
	return intervention, nil
}

func canView(actor *models.User, i *models.Intervention) bool {
	if actor.IsAdmin() || i.IsParticipant(actor.ID) {
		return true
	}
	return actor.IsWorker() && isOpen(i)
}

func isOpen(i *models.Intervention) bool {
	return i.Status == models.StatusPending && i.WorkerID == nil
}

// InterventionUpdate is a partial patch. Descriptive fields are editable by
// the client or an admin while pending; Status goes through the transition table.
type InterventionUpdate struct {
	Title             *string                    `json:"title" validate:"omitempty,min=1,max=255"`
	Description       *string                    `json:"description" validate:"omitempty,min=1"`
	Category          *models.ServiceCategory    `json:"category" validate:"omitempty,category"`
	Urgency           *models.Urgency            `json:"urgency" validate:"omitempty,urgency"`
	PreferredDate     *types.FlexTime            `json:"preferredDate"`
	EstimatedDuration *types.FlexFloat           `json:"estimatedDuration" validate:"omitempty,gt=0"`
	MaxBudget         *types.FlexFloat           `json:"maxBudget" validate:"omitempty,gte=0"`
	Address           *string                    `json:"address" validate:"omitempty,min=1,max=255"`
	City              *string                    `json:"city" validate:"omitempty,min=1,max=100"`
	WorkerID          *uint                      `json:"workerId"`
	Status            *models.InterventionStatus `json:"status" validate:"omitempty,status"`
}

func (u *InterventionUpdate) detailUpdates() map[string]interface{} {
	updates := map[string]interface{}{}
	if u.Title != nil {
		updates["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		updates["description"] = strings.TrimSpace(*u.Description)
	}
	if u.Category != nil {
		updates["category"] = *u.Category
	}
	if u.Urgency != nil {
		updates["urgency"] = *u.Urgency
	}
	if u.PreferredDate != nil {
		updates["preferred_date"] = types.FlexTimePtr(u.PreferredDate)
	}
	if u.EstimatedDuration != nil {
		updates["estimated_duration"] = hoursPtr(u.EstimatedDuration)
	}
	if u.MaxBudget != nil {
		updates["max_budget"] = types.FlexFloatPtr(u.MaxBudget)
	}
	if u.Address != nil {
		updates["address"] = strings.TrimSpace(*u.Address)
	}
	if u.City != nil {
		updates["city"] = strings.TrimSpace(*u.City)
	}
	return updates
}

// Update applies a partial patch on behalf of actor. Only the owning client,
// the assigned worker or an admin may mutate; a worker may also accept an
// open request, which assigns it to them. The write is conditional on the
// status read, so two concurrent accepts cannot both succeed.
func (s *InterventionService) Update(ctx context.Context, actor *models.User, id uint, patch InterventionUpdate) (*models.Intervention, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	isOwner := current.ClientID == actor.ID
	isAssigned := current.IsAssignedTo(actor.ID)
	accepting := patch.Status != nil && *patch.Status == models.StatusAccepted &&
		actor.IsWorker() && isOpen(current)

	if !actor.IsAdmin() && !isOwner && !isAssigned && !accepting {
		if patch.Status != nil && *patch.Status == models.StatusAccepted && actor.IsWorker() && current.WorkerID != nil {
			return nil, Conflict("Intervention was already taken by another worker")
		}
		return nil, Forbidden("You cannot modify this intervention")
	}

	updates := patch.detailUpdates()
	if len(updates) > 0 || patch.WorkerID != nil {
		if !actor.IsAdmin() && !isOwner {
			return nil, Forbidden("Only the client can edit intervention details")
		}
		if current.Status != models.StatusPending {
			return nil, Conflict("Intervention details can only be edited while pending")
		}
	}
	if patch.WorkerID != nil && !current.IsAssignedTo(*patch.WorkerID) {
		if *patch.WorkerID == current.ClientID {
			return nil, FieldError("workerId", "Cannot assign the client")
		}
		if err := s.ensureWorker(ctx, s.db, *patch.WorkerID); err != nil {
			return nil, err
		}
		updates["worker_id"] = *patch.WorkerID
	}

	var target models.InterventionStatus
	if patch.Status != nil && *patch.Status != current.Status {
		target = *patch.Status
		if !models.CanTransition(current.Status, target) {
			return nil, InvalidTransition(string(current.Status), string(target))
		}
		if err := checkStatusActor(actor, current, target, isOwner, isAssigned || accepting); err != nil {
			return nil, err
		}

		now := s.now()
		updates["status"] = target
		switch target {
		case models.StatusAccepted:
			updates["accepted_at"] = now
			if accepting {
				updates["worker_id"] = actor.ID
			} else if current.WorkerID == nil && patch.WorkerID == nil {
				return nil, FieldError("workerId", "A worker must be assigned before accepting")
			}
		case models.StatusInProgress:
			updates["started_at"] = now
		case models.StatusCompleted:
			updates["completed_at"] = now
		case models.StatusCancelled:
			updates["cancelled_at"] = now
		}
	}

	if len(updates) == 0 {
		return current, nil
	}
	updates["updated_at"] = s.now()

	query := s.db.WithContext(ctx).Model(&models.Intervention{}).
		Where("id = ? AND status = ?", current.ID, current.Status)
	if current.WorkerID == nil {
		query = query.Where("worker_id IS NULL")
	} else {
		query = query.Where("worker_id = ?", *current.WorkerID)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return nil, Downstream("Failed to update intervention", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, Conflict("Intervention was modified by someone else, reload and retry")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if target != "" {
		s.announceTransition(ctx, actor, updated)
	} else if _, reassigned := updates["worker_id"]; reassigned {
		s.notifications.notifyQuietly(ctx, *updated.WorkerID, models.NotificationInterventionRequest,
			"New intervention request",
			fmt.Sprintf("%s asked you for: %s", updated.Client.DisplayName(), updated.Title),
			&updated.ID)
	}
	return updated, nil
}

// checkStatusActor enforces who may drive each transition.
func checkStatusActor(actor *models.User, i *models.Intervention, to models.InterventionStatus, isOwner, isWorker bool) error {
	if actor.IsAdmin() {
		return nil
	}
	switch to {
	case models.StatusAccepted, models.StatusInProgress:
		if !isWorker {
			return Forbidden("Only the worker can " + statusVerb(to) + " this intervention")
		}
	case models.StatusCompleted, models.StatusCancelled, models.StatusDisputed:
		if !isOwner && !isWorker {
			return Forbidden("Only participants can " + statusVerb(to) + " this intervention")
		}
	}
	return nil
}

func statusVerb(s models.InterventionStatus) string {
	switch s {
	case models.StatusAccepted:
		return "accept"
	case models.StatusInProgress:
		return "start"
	case models.StatusCompleted:
		return "complete"
	case models.StatusCancelled:
		return "cancel"
	case models.StatusDisputed:
		return "dispute"
	}
	return "update"
}

var transitionNotifications = map[models.InterventionStatus]struct{ kind, title string }{
	models.StatusAccepted:   {models.NotificationInterventionAccepted, "Intervention accepted"},
	models.StatusInProgress: {models.NotificationInterventionStarted, "Intervention started"},
	models.StatusCompleted:  {models.NotificationInterventionCompleted, "Intervention completed"},
	models.StatusCancelled:  {models.NotificationInterventionCancelled, "Intervention cancelled"},
	models.StatusDisputed:   {models.NotificationInterventionDisputed, "Intervention disputed"},
}

// announceTransition notifies every participant other than the actor and
// pushes the new status to all participants' connections.
func (s *InterventionService) announceTransition(ctx context.Context, actor *models.User, i *models.Intervention) {
	participants := []uint{i.ClientID}
	if i.WorkerID != nil {
		participants = append(participants, *i.WorkerID)
	}

	s.publisher.PublishToUsers(participants, EventInterventionStatus, map[string]interface{}{
		"interventionId": i.ID,
		"status":         i.Status,
		"workerId":       i.WorkerID,
		"updatedAt":      i.UpdatedAt,
	})

	n, ok := transitionNotifications[i.Status]
	if !ok {
		return
	}
	message := fmt.Sprintf("%s: \"%s\" is now %s", actor.DisplayName(), i.Title, strings.ReplaceAll(string(i.Status), "_", " "))
	for _, userID := range participants {
		if userID == actor.ID {
			continue
		}
		s.notifications.notifyQuietly(ctx, userID, n.kind, n.title, message, &i.ID)
	}
}

// ListByClient returns the client's interventions, newest first, with the worker and profile.
func (s *InterventionService) ListByClient(ctx context.Context, clientID uint) ([]models.Intervention, error) {
	interventions := []models.Intervention{}
	err := s.db.WithContext(ctx).
		Preload("Worker").
		Preload("Worker.WorkerProfile").
		Where("client_id = ?", clientID).
		Order("created_at DESC").Order("id DESC").
		Find(&interventions).Error
	if err != nil {
		return nil, Downstream("Failed to fetch interventions", err)
	}
	return interventions, nil
}

// ListByWorker returns the worker's interventions, newest first, with the client.
func (s *InterventionService) ListByWorker(ctx context.Context, workerID uint) ([]models.Intervention, error) {
	interventions := []models.Intervention{}
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("worker_id = ?", workerID).
		Order("created_at DESC").Order("id DESC").
		Find(&interventions).Error
	if err != nil {
		return nil, Downstream("Failed to fetch interventions", err)
	}
	return interventions, nil
}

// ListMine picks the client or worker history depending on the actor's role.
func (s *InterventionService) ListMine(ctx context.Context, actor *models.User) ([]models.Intervention, error) {
	if actor.IsWorker() {
		return s.ListByWorker(ctx, actor.ID)
	}
	return s.ListByClient(ctx, actor.ID)
}

type PendingFilter struct {
	WorkerID *uint
	ClientID *uint
	Category *models.ServiceCategory
}

// ListPending returns pending interventions. With WorkerID set, only open
// requests and those pre-assigned to that worker are returned.
func (s *InterventionService) ListPending(ctx context.Context, filter PendingFilter) ([]models.Intervention, error) {
	query := s.db.WithContext(ctx).
		Preload("Client").
		Where("status = ?", models.StatusPending)
	if filter.WorkerID != nil {
		query = query.Where("(worker_id IS NULL OR worker_id = ?)", *filter.WorkerID)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}

	interventions := []models.Intervention{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&interventions).Error; err != nil {
		return nil, Downstream("Failed to fetch pending interventions", err)
	}
	return interventions, nil
}

// ListAll is the admin view of every intervention.
func (s *InterventionService) ListAll(ctx context.Context, limit, offset int) ([]models.Intervention, error) {
	limit, offset = clampPage(limit, offset, 50)

	interventions := []models.Intervention{}
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Worker").
		Preload("Worker.WorkerProfile").
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&interventions).Error
	if err != nil {
		return nil, Downstream("Failed to fetch interventions", err)
	}
	return interventions, nil
}
