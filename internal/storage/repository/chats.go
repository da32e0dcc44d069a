package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

const chatSelect = `SELECT c.id, COALESCE(c.plan_id::text, ''), c.plan_title, c.is_private,
	COALESCE(c.user_low::text, ''), COALESCE(c.user_high::text, ''), c.created_at FROM chats c`

type chatRow struct {
	chat            models.Chat
	userLow, userHi string
}

func scanChat(row rowScanner) (*chatRow, error) {
	var r chatRow
	err := row.Scan(&r.chat.ID, &r.chat.PlanID, &r.chat.PlanTitle, &r.chat.IsPrivate,
		&r.userLow, &r.userHi, &r.chat.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.chat.Messages = []models.Message{}
	r.chat.Participants = []models.UserSummary{}
	return &r, nil
}

// loadMessages возвращает сообщения чатов в хронологическом порядке.
func loadMessages(ctx context.Context, q querier, chatIDs []string) (map[string][]models.Message, error) {
	result := make(map[string][]models.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return result, nil
	}
	rows, err := q.QueryContext(ctx, `SELECT chat_id, id, sender_id, sender_name, sender_avatar, content,
			      created_at, is_edited, is_deleted
			  FROM messages WHERE chat_id = ANY($1::uuid[])
			  ORDER BY created_at, seq`, chatIDs)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var chatID string
		var m models.Message
		if err = rows.Scan(&chatID, &m.ID, &m.SenderID, &m.SenderName, &m.SenderAvatar, &m.Content,
			&m.CreatedAt, &m.IsEdited, &m.IsDeleted); err != nil {
			return nil, err
		}
		result[chatID] = append(result[chatID], m)
	}
	return result, rows.Err()
}

func loadSummaries(ctx context.Context, q querier, userUIDs []string) (map[string]models.UserSummary, error) {
	result := make(map[string]models.UserSummary, len(userUIDs))
	if len(userUIDs) == 0 {
		return result, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT uid, name, username, avatar, is_verified, age FROM users WHERE uid = ANY($1::uuid[])`, userUIDs)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var u models.UserSummary
		var age sql.NullInt64
		if err = rows.Scan(&u.ID, &u.Name, &u.Username, &u.Avatar, &u.IsVerified, &age); err != nil {
			return nil, err
		}
		u.Age = intPtr(age)
		result[u.ID] = u
	}
	return result, rows.Err()
}

func (s *Storage) queryChats(ctx context.Context, q querier, query string, args ...any) ([]models.Chat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list := make([]chatRow, 0)
	for rows.Next() {
		r, err := scanChat(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		list = append(list, *r)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	chatIDs := make([]string, 0, len(list))
	userIDs := make([]string, 0)
	for _, r := range list {
		chatIDs = append(chatIDs, r.chat.ID)
		if r.chat.IsPrivate {
			userIDs = append(userIDs, r.userLow, r.userHi)
		}
	}
	messages, err := loadMessages(ctx, q, chatIDs)
	if err != nil {
		return nil, err
	}
	summaries, err := loadSummaries(ctx, q, userIDs)
	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0, len(list))
	for _, r := range list {
		if m, ok := messages[r.chat.ID]; ok {
			r.chat.Messages = m
		}
		if r.chat.IsPrivate {
			for _, id := range []string{r.userLow, r.userHi} {
				if u, ok := summaries[id]; ok {
					r.chat.Participants = append(r.chat.Participants, u)
				}
			}
		}
		chats = append(chats, r.chat)
	}
	return chats, nil
}

// ListChats возвращает групповые чаты планов, в которых пользователь
// участвует или которые создал, и его личные чаты.
func (s *Storage) ListChats(ctx context.Context, userUID string) ([]models.Chat, error) {
	const op = "storage.ListChats"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	query := chatSelect + `
		LEFT JOIN plans p ON p.id = c.plan_id
		WHERE (c.is_private AND (c.user_low = $1 OR c.user_high = $1))
		   OR (NOT c.is_private AND (p.creator_id = $1 OR EXISTS (
		       SELECT 1 FROM plan_participants pp WHERE pp.plan_id = c.plan_id AND pp.user_id = $1)))
		ORDER BY c.created_at`
	chats, err := s.queryChats(ctx, s.DB, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return chats, nil
}

// GetChat возвращает чат по ID.
func (s *Storage) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	const op = "storage.GetChat"
	chats, err := s.queryChats(ctx, s.DB, chatSelect+` WHERE c.id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &chats[0], nil
}

// GetChatByPlan возвращает групповой чат плана, создавая его при отсутствии.
func (s *Storage) GetChatByPlan(ctx context.Context, planID string) (*models.Chat, error) {
	const op = "storage.GetChatByPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO chats (id, plan_id, plan_title, is_private, created_at)
			  SELECT $1, p.id, p.title, FALSE, $3 FROM plans p WHERE p.id = $2
			  ON CONFLICT (plan_id) DO NOTHING`, uuid.New().String(), planID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	chats, err := s.queryChats(ctx, s.DB, chatSelect+` WHERE c.plan_id = $1`, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &chats[0], nil
}

// GetOrCreatePrivateChat возвращает личный чат пары пользователей. Для
// неупорядоченной пары существует не более одного чата.
func (s *Storage) GetOrCreatePrivateChat(ctx context.Context, userUID, otherUID string) (*models.Chat, error) {
	const op = "storage.GetOrCreatePrivateChat"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if userUID == otherUID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidInput)
	}
	low, high := userUID, otherUID
	if high < low {
		low, high = high, low
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO chats (id, is_private, user_low, user_high, created_at)
			  VALUES ($1, TRUE, $2, $3, $4)
			  ON CONFLICT (user_low, user_high) DO NOTHING`, uuid.New().String(), low, high, s.now().UTC())
	if err != nil {
		if _, ok := pgError(err, codeForeignKeyViolation); ok {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	chats, err := s.queryChats(ctx, s.DB, chatSelect+` WHERE c.user_low = $1 AND c.user_high = $2`, low, high)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return &chats[0], nil
}

// InsertMessage добавляет сообщение в конец ленты чата.
func (s *Storage) InsertMessage(ctx context.Context, chatID string, m models.Message) (*models.Message, error) {
	const op = "storage.InsertMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO messages (id, chat_id, sender_id, sender_name, sender_avatar,
			      content, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, chatID, m.SenderID, m.SenderName, m.SenderAvatar, m.Content, m.CreatedAt)
	if err != nil {
		if _, ok := pgError(err, codeForeignKeyViolation); ok {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.IsEdited, m.IsDeleted = false, false
	return &m, nil
}

// lockMessage проверяет, что сообщение существует и принадлежит отправителю.
func lockMessage(ctx context.Context, tx *sql.Tx, chatID, messageID, senderUID string) (bool, error) {
	var owner string
	var deleted bool
	err := tx.QueryRowContext(ctx, `SELECT sender_id, is_deleted FROM messages
			  WHERE id = $1 AND chat_id = $2 FOR UPDATE`, messageID, chatID).Scan(&owner, &deleted)
	if err != nil {
		return false, notFound(err)
	}
	if owner != senderUID {
		return false, models.ErrForbidden
	}
	return deleted, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.SenderAvatar, &m.Content,
		&m.CreatedAt, &m.IsEdited, &m.IsDeleted)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const messageReturning = ` RETURNING id, sender_id, sender_name, sender_avatar, content, created_at, is_edited, is_deleted`

// UpdateMessage меняет текст сообщения. Редактировать может только отправитель.
func (s *Storage) UpdateMessage(ctx context.Context, chatID, messageID, senderUID, content string) (*models.Message, error) {
	const op = "storage.UpdateMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var msg *models.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		deleted, err := lockMessage(ctx, tx, chatID, messageID, senderUID)
		if err != nil {
			return err
		}
		if deleted {
			return models.ErrNotFound
		}
		msg, err = scanMessage(tx.QueryRowContext(ctx,
			`UPDATE messages SET content = $1, is_edited = TRUE WHERE id = $2`+messageReturning, content, messageID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// SoftDeleteMessage очищает текст сообщения и помечает его удалённым.
// Повторное удаление ничего не меняет.
func (s *Storage) SoftDeleteMessage(ctx context.Context, chatID, messageID, senderUID string) (*models.Message, error) {
	const op = "storage.SoftDeleteMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var msg *models.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockMessage(ctx, tx, chatID, messageID, senderUID); err != nil {
			return err
		}
		var err error
		msg, err = scanMessage(tx.QueryRowContext(ctx,
			`UPDATE messages SET content = '', is_deleted = TRUE WHERE id = $1`+messageReturning, messageID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// ChatMemberIDs возвращает UID всех, кто видит чат: создателя и участников
// плана для группового чата, обе стороны для личного.
func (s *Storage) ChatMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	const op = "storage.ChatMemberIDs"
	rows, err := s.DB.QueryContext(ctx, `SELECT c.user_low::text FROM chats c WHERE c.id = $1 AND c.is_private
		UNION SELECT c.user_high::text FROM chats c WHERE c.id = $1 AND c.is_private
		UNION SELECT p.creator_id::text FROM chats c JOIN plans p ON p.id = c.plan_id WHERE c.id = $1
		UNION SELECT pp.user_id::text FROM chats c JOIN plan_participants pp ON pp.plan_id = c.plan_id WHERE c.id = $1`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// PlanMemberIDs возвращает UID создателя и участников плана.
func (s *Storage) PlanMemberIDs(ctx context.Context, planID string) ([]string, error) {
	const op = "storage.PlanMemberIDs"
	rows, err := s.DB.QueryContext(ctx, `SELECT creator_id::text FROM plans WHERE id = $1
		UNION SELECT user_id::text FROM plan_participants WHERE plan_id = $1`, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
