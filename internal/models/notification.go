package models

import "time"

// NotificationType — тип уведомления.
type NotificationType string

const (
	NotificationNewPlan    NotificationType = "new_plan"
	NotificationUpcoming   NotificationType = "upcoming"
	NotificationPlanChange NotificationType = "plan_change"
	NotificationMessage    NotificationType = "message"
)

// Notification — уведомление пользователя.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	PlanID    string           `json:"plan_id,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationEvent — событие, которое публикуется в RabbitMQ и
// раскладывается воркером на уведомления получателей.
type NotificationEvent struct {
	Type         NotificationType `json:"type"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	PlanID       string           `json:"plan_id,omitempty"`
	RecipientIDs []string         `json:"recipient_ids"`
	ExcludeID    string           `json:"exclude_id,omitempty"`
}

// Recipients возвращает получателей без исключённого пользователя и без повторов.
func (e NotificationEvent) Recipients() []string {
	seen := make(map[string]struct{}, len(e.RecipientIDs))
	out := make([]string, 0, len(e.RecipientIDs))
	for _, id := range e.RecipientIDs {
		if id == "" || id == e.ExcludeID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// UserReport — жалоба одного пользователя на другого.
type UserReport struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	ReportedID string    `json:"reported_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportInput — текст жалобы.
type ReportInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// SyncError — ошибка фоновой синхронизации, показываемая пользователю.
type SyncError struct {
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
