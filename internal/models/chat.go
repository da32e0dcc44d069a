package models

import "time"

// Message — сообщение в групповом или личном чате.
// Удалённое сообщение остаётся в ленте с пустым текстом и флагом IsDeleted.
type Message struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar,omitempty"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	IsEdited     bool      `json:"is_edited"`
	IsDeleted    bool      `json:"is_deleted"`
}

// Chat — групповой чат плана либо личный чат двух пользователей.
// UnreadCount считается для конкретного зрителя и живёт только в сессии.
type Chat struct {
	ID           string        `json:"id"`
	PlanID       string        `json:"plan_id,omitempty"`
	PlanTitle    string        `json:"plan_title,omitempty"`
	IsPrivate    bool          `json:"is_private"`
	Participants []UserSummary `json:"participants,omitempty"`
	Messages     []Message     `json:"messages"`
	UnreadCount  int           `json:"unread_count"`
	CreatedAt    time.Time     `json:"created_at"`
}

// LastMessage возвращает последнее сообщение чата.
func (c Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	m := c.Messages[len(c.Messages)-1]
	return &m
}

// HasParticipant сообщает, является ли пользователь участником личного чата.
func (c Chat) HasParticipant(userID string) bool {
	for _, u := range c.Participants {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Counterpart возвращает собеседника в личном чате.
func (c Chat) Counterpart(userID string) *UserSummary {
	for _, u := range c.Participants {
		if u.ID != userID {
			u := u
			return &u
		}
	}
	return nil
}

// Clone возвращает глубокую копию чата.
func (c Chat) Clone() Chat {
	cp := c
	cp.Participants = append([]UserSummary{}, c.Participants...)
	cp.Messages = append([]Message{}, c.Messages...)
	return cp
}

// MessageInput — текст нового или редактируемого сообщения.
type MessageInput struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// PrivateChatInput — запрос на открытие личного чата.
type PrivateChatInput struct {
	UserID string `json:"user_id" validate:"required"`
}
