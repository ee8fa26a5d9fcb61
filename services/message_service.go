package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"handyconnect-server/models"
)

// MessageService persists chat lines and hands them to the real-time channel.
type MessageService struct {
	db        *gorm.DB
	publisher Publisher
}

func NewMessageService(db *gorm.DB, publisher Publisher) *MessageService {
	return &MessageService{db: db, publisher: publisherOrNoop(publisher)}
}

type SendMessageInput struct {
	InterventionID uint   `json:"interventionId" validate:"required"`
	ReceiverID     uint   `json:"receiverId" validate:"required"`
	Content        string `json:"content" validate:"required,max=2000"`
}

// Send stores a message and delivers it to the sender's and receiver's
// connections. While no worker is assigned, the client and any worker may
// talk about the request.
func (s *MessageService) Send(ctx context.Context, sender *models.User, input SendMessageInput) (*models.Message, error) {
	input.Content = strings.TrimSpace(input.Content)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.ReceiverID == sender.ID {
		return nil, FieldError("receiverId", "Cannot message yourself")
	}

	intervention, err := s.intervention(ctx, input.InterventionID)
	if err != nil {
		return nil, err
	}
	if intervention.Status.IsTerminal() {
		return nil, Conflict("This intervention is closed")
	}
	if err := s.checkCorrespondents(ctx, intervention, sender, input.ReceiverID); err != nil {
		return nil, err
	}

	message := &models.Message{
		InterventionID: intervention.ID,
		SenderID:       sender.ID,
		ReceiverID:     input.ReceiverID,
		Content:        input.Content,
	}
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, Downstream("Failed to send message", err)
	}

	s.publisher.PublishToUsers([]uint{message.SenderID, message.ReceiverID}, EventNewMessage, message)
	return message, nil
}

func (s *MessageService) intervention(ctx context.Context, id uint) (*models.Intervention, error) {
	var intervention models.Intervention
	err := s.db.WithContext(ctx).First(&intervention, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Intervention")
	}
	if err != nil {
		return nil, Downstream("Failed to fetch intervention", err)
	}
	return &intervention, nil
}

func (s *MessageService) checkCorrespondents(ctx context.Context, i *models.Intervention, sender *models.User, receiverID uint) error {
	if i.WorkerID != nil {
		if !i.IsParticipant(sender.ID) {
			return Forbidden("You are not a participant of this intervention")
		}
		if receiverID != i.Counterpart(sender.ID) {
			return FieldError("receiverId", "Receiver is not the other participant")
		}
		return nil
	}

	switch {
	case sender.ID == i.ClientID:
		var receiver models.User
		err := s.db.WithContext(ctx).Select("id", "role").First(&receiver, receiverID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !receiver.IsWorker()) {
			return FieldError("receiverId", "Receiver must be a worker")
		}
		if err != nil {
			return Downstream("Failed to fetch receiver", err)
		}
	case sender.IsWorker():
		if receiverID != i.ClientID {
			return FieldError("receiverId", "Receiver is not the client of this intervention")
		}
	default:
		return Forbidden("You are not a participant of this intervention")
	}
	return nil
}

// ListByIntervention returns the chat history in creation order. Workers
// talking about an open request only see their own exchanges.
func (s *MessageService) ListByIntervention(ctx context.Context, actor *models.User, interventionID uint) ([]models.Message, error) {
	intervention, err := s.intervention(ctx, interventionID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("intervention_id = ?", interventionID)
	switch {
	case actor.IsAdmin() || actor.ID == intervention.ClientID || intervention.IsAssignedTo(actor.ID):
	case actor.IsWorker():
		query = query.Where("(sender_id = ? OR receiver_id = ?)", actor.ID, actor.ID)
	default:
		return nil, Forbidden("You are not a participant of this intervention")
	}

	messages := []models.Message{}
	if err := query.Order("created_at ASC").Order("id ASC").Find(&messages).Error; err != nil {
		return nil, Downstream("Failed to fetch messages", err)
	}
	return messages, nil
}

// MarkAsRead flags every message addressed to userID in the intervention as read.
func (s *MessageService) MarkAsRead(ctx context.Context, userID, interventionID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("intervention_id = ? AND receiver_id = ? AND is_read = ?", interventionID, userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, Downstream("Failed to mark messages as read", result.Error)
	}
	return result.RowsAffected, nil
}
