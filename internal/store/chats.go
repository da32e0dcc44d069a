package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// canPost сообщает, может ли пользователь писать в чат. В групповой чат
// пишут создатель и участники плана, в личный — его участники.
// Вызывается под s.mu.
func (s *Store) canPost(chat *models.Chat, userID string) bool {
	if chat.IsPrivate {
		return chat.HasParticipant(userID)
	}
	plan, _ := s.state.plan(chat.PlanID)
	if plan == nil {
		return false
	}
	return plan.Creator.ID == userID || plan.HasParticipant(userID)
}

// postMessage добавляет сообщение в чат нужного вида. Вызывается внутри begin.
func (s *Store) postMessage(op, chatID, content string, private bool) (*models.Message, *Pending, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, nil, err
	}
	chat := s.state.chat(chatID)
	if chat == nil || chat.IsPrivate != private {
		return nil, nil, models.ErrNotFound
	}
	if !s.canPost(chat, user.ID) {
		return nil, nil, models.ErrForbidden
	}

	msg := models.Message{
		ID:           uuid.New().String(),
		SenderID:     user.ID,
		SenderName:   user.Name,
		SenderAvatar: user.Avatar,
		Content:      content,
		CreatedAt:    s.now().UTC(),
	}
	chat.Messages = append(chat.Messages, msg)

	pending := s.enqueue(&task{
		op: op,
		persist: func(ctx context.Context) (func(*State), error) {
			saved, err := s.gw.AppendMessage(ctx, chatID, msg)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				replaceMessage(st.chat(chatID), *saved)
			}, nil
		},
		revert: func(st *State) {
			removeMessage(st.chat(chatID), msg.ID)
		},
	})
	return &msg, pending, nil
}

// SendMessage отправляет сообщение в групповой чат плана.
func (s *Store) SendMessage(chatID, content string) (*models.Message, *Pending, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()
	return s.postMessage("SendMessage", chatID, content, false)
}

// SendPrivateMessage отправляет сообщение в личный чат.
func (s *Store) SendPrivateMessage(chatID, content string) (*models.Message, *Pending, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()
	return s.postMessage("SendPrivateMessage", chatID, content, true)
}

// ownMessage возвращает сообщение текущего пользователя. Вызывается под s.mu.
func (s *Store) ownMessage(chatID, messageID string) (*models.Message, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	chat := s.state.chat(chatID)
	if chat == nil {
		return nil, models.ErrNotFound
	}
	for i := range chat.Messages {
		m := &chat.Messages[i]
		if m.ID != messageID {
			continue
		}
		if m.IsDeleted {
			return nil, models.ErrNotFound
		}
		if m.SenderID != user.ID {
			return nil, models.ErrForbidden
		}
		return m, nil
	}
	return nil, models.ErrNotFound
}

// EditMessage меняет текст своего сообщения.
func (s *Store) EditMessage(chatID, messageID, content string) (*Pending, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	msg, err := s.ownMessage(chatID, messageID)
	if err != nil {
		return nil, err
	}
	prev := *msg
	msg.Content = content
	msg.IsEdited = true

	senderID := prev.SenderID
	return s.enqueue(&task{
		op: "EditMessage",
		persist: func(ctx context.Context) (func(*State), error) {
			saved, err := s.gw.EditMessage(ctx, chatID, messageID, senderID, content)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				replaceMessage(st.chat(chatID), *saved)
			}, nil
		},
		revert: func(st *State) {
			replaceMessage(st.chat(chatID), prev)
		},
	}), nil
}

// DeleteMessage мягко удаляет своё сообщение: оно остаётся в ленте без текста.
func (s *Store) DeleteMessage(chatID, messageID string) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	msg, err := s.ownMessage(chatID, messageID)
	if err != nil {
		return nil, err
	}
	prev := *msg
	msg.Content = ""
	msg.IsDeleted = true

	senderID := prev.SenderID
	return s.enqueue(&task{
		op: "DeleteMessage",
		persist: func(ctx context.Context) (func(*State), error) {
			saved, err := s.gw.DeleteMessage(ctx, chatID, messageID, senderID)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				replaceMessage(st.chat(chatID), *saved)
			}, nil
		},
		revert: func(st *State) {
			replaceMessage(st.chat(chatID), prev)
		},
	}), nil
}

// MarkChatRead обнуляет счётчик непрочитанных сообщений чата.
func (s *Store) MarkChatRead(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.state.chat(chatID)
	if chat == nil {
		return models.ErrNotFound
	}
	chat.UnreadCount = 0
	return nil
}

// privateChatWith ищет личный чат с пользователем. Вызывается под s.mu.
func (s *Store) privateChatWith(userID, otherUID string) *models.Chat {
	for i := range s.state.PrivateChats {
		c := &s.state.PrivateChats[i]
		if other := c.Counterpart(userID); other != nil && other.ID == otherUID {
			return c
		}
	}
	return nil
}

// GetPrivateChatWith возвращает личный чат с пользователем, если он есть.
func (s *Store) GetPrivateChatWith(otherUID string) (*models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.User == nil {
		return nil, false
	}
	chat := s.privateChatWith(s.state.User.ID, otherUID)
	if chat == nil {
		return nil, false
	}
	c := chat.Clone()
	return &c, true
}

// StartPrivateChat открывает личный чат с пользователем или возвращает
// существующий. Чат с заблокированным пользователем открыть нельзя.
// Чат создаётся синхронно: его ID назначает хранилище.
func (s *Store) StartPrivateChat(ctx context.Context, otherUID string) (*models.Chat, error) {
	s.mu.RLock()
	user, err := s.requireUser()
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	userID := user.ID
	if otherUID == "" || otherUID == userID {
		s.mu.RUnlock()
		return nil, models.ErrInvalidInput
	}
	if s.state.isBlocked(otherUID) {
		s.mu.RUnlock()
		return nil, models.ErrBlocked
	}
	if chat := s.privateChatWith(userID, otherUID); chat != nil {
		c := chat.Clone()
		s.mu.RUnlock()
		return &c, nil
	}
	s.mu.RUnlock()

	chat, err := s.gw.GetOrCreatePrivateChat(ctx, userID, otherUID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.state.chat(chat.ID); existing != nil {
		c := existing.Clone()
		return &c, nil
	}
	s.state.PrivateChats = append([]models.Chat{chat.Clone()}, s.state.PrivateChats...)
	c := chat.Clone()
	return &c, nil
}

func replaceMessage(chat *models.Chat, m models.Message) {
	if chat == nil {
		return
	}
	for i := range chat.Messages {
		if chat.Messages[i].ID == m.ID {
			chat.Messages[i] = m
			return
		}
	}
}

func removeMessage(chat *models.Chat, messageID string) {
	if chat == nil {
		return
	}
	out := make([]models.Message, 0, len(chat.Messages))
	for _, m := range chat.Messages {
		if m.ID != messageID {
			out = append(out, m)
		}
	}
	chat.Messages = out
}
