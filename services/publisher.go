package services

// Real-time event types pushed to connected users.
const (
	EventNewMessage         = "new_message"
	EventNotification       = "notification"
	EventInterventionStatus = "intervention_status"
)

// Publisher pushes a real-time event to every live connection of the given users.
type Publisher interface {
	PublishToUsers(userIDs []uint, eventType string, data interface{})
}

type noopPublisher struct{}

func (noopPublisher) PublishToUsers([]uint, string, interface{}) {}

func publisherOrNoop(p Publisher) Publisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
