package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// previewLength — длина текста сообщения в уведомлении.
const previewLength = 80

// GetChats возвращает групповые и личные чаты пользователя.
func (s *Service) GetChats(ctx context.Context, userUID string) ([]models.Chat, error) {
	return s.repo.ListChats(ctx, userUID)
}

// GetChatForPlan возвращает групповой чат плана.
func (s *Service) GetChatForPlan(ctx context.Context, planID string) (*models.Chat, error) {
	return s.repo.GetChatByPlan(ctx, planID)
}

// GetOrCreatePrivateChat возвращает личный чат пары, создавая его при
// необходимости. Если один из пользователей заблокировал другого,
// возвращается models.ErrBlocked.
func (s *Service) GetOrCreatePrivateChat(ctx context.Context, userUID, otherUID string) (*models.Chat, error) {
	const op = "gateway.GetOrCreatePrivateChat"
	blocked, err := s.repo.IsBlocked(ctx, userUID, otherUID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("%s: %w", op, models.ErrBlocked)
	}
	return s.repo.GetOrCreatePrivateChat(ctx, userUID, otherUID)
}

// AppendMessage сохраняет сообщение и уведомляет остальных участников чата.
func (s *Service) AppendMessage(ctx context.Context, chatID string, m models.Message) (*models.Message, error) {
	saved, err := s.repo.InsertMessage(ctx, chatID, m)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.ChatMemberIDs(ctx, chatID)
	if err != nil {
		s.log.Warn("failed to load chat members", slog.String("chat_id", chatID), sl.Err(err))
		return saved, nil
	}
	s.publishPlanEvent(ctx, models.NotificationEvent{
		Type:         models.NotificationMessage,
		Title:        saved.SenderName,
		Message:      preview(saved.Content),
		RecipientIDs: members,
		ExcludeID:    saved.SenderID,
	})
	return saved, nil
}

// EditMessage меняет текст сообщения. Редактировать может только отправитель.
func (s *Service) EditMessage(ctx context.Context, chatID, messageID, senderUID, content string) (*models.Message, error) {
	return s.repo.UpdateMessage(ctx, chatID, messageID, senderUID, content)
}

// DeleteMessage мягко удаляет сообщение. Удалять может только отправитель.
func (s *Service) DeleteMessage(ctx context.Context, chatID, messageID, senderUID string) (*models.Message, error) {
	return s.repo.SoftDeleteMessage(ctx, chatID, messageID, senderUID)
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}
