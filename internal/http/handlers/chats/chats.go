// Package chats реализует HTTP-обработчики групповых и личных чатов.
package chats

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Handler обрабатывает запросы к чатам.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// ChatsResponse — чаты пользователя.
type ChatsResponse struct {
	Chats        []models.Chat `json:"chats"`
	PrivateChats []models.Chat `json:"private_chats"`
}

// List godoc
// @Summary Чаты пользователя
// @Tags Chats
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} ChatsResponse
// @Router /chats [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chats.List"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	st := s.Snapshot()
	response.OK(w, r, ChatsResponse{Chats: st.Chats, PrivateChats: st.PrivateChats})
}

// Send godoc
// @Summary Отправить сообщение
// @Description В групповой чат пишут создатель и участники плана, в личный его участники.
// @Tags Chats
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID чата"
// @Param request body models.MessageInput true "Текст сообщения"
// @Success 201 {object} models.Message
// @Failure 403 {object} response.ErrorResponse "Нет доступа к чату"
// @Failure 404 {object} response.ErrorResponse "Чат не найден"
// @Router /chats/{id}/messages [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chats.Send"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.MessageInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	chatID := chi.URLParam(r, "id")
	chat, ok := findChat(s, chatID)
	if !ok {
		response.Fail(w, r, models.ErrNotFound)
		return
	}

	send := s.SendMessage
	if chat.IsPrivate {
		send = s.SendPrivateMessage
	}
	msg, p, err := send(chatID, in.Content)
	if err != nil {
		log.Info("message rejected", slog.String("chat_id", chatID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if err = request.Await(r.Context(), p); err != nil {
		log.Error("message was not saved", slog.String("chat_id", chatID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if saved, ok := findMessage(s, chatID, msg.ID); ok {
		msg = &saved
	}
	render.Status(r, http.StatusCreated)
	response.OK(w, r, msg)
}

// Edit godoc
// @Summary Изменить своё сообщение
// @Tags Chats
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID чата"
// @Param msgID path string true "ID сообщения"
// @Param request body models.MessageInput true "Новый текст"
// @Success 200 {object} models.Message
// @Failure 403 {object} response.ErrorResponse "Чужое сообщение"
// @Router /chats/{id}/messages/{msgID} [put]
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chats.Edit"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.MessageInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	chatID, msgID := chi.URLParam(r, "id"), chi.URLParam(r, "msgID")
	p, err := s.EditMessage(chatID, msgID, in.Content)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishMessage(w, r, log, s, p, chatID, msgID, "message edited")
}

// Delete godoc
// @Summary Удалить своё сообщение
// @Description Сообщение остаётся в ленте без текста с флагом is_deleted.
// @Tags Chats
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID чата"
// @Param msgID path string true "ID сообщения"
// @Success 200 {object} models.Message
// @Failure 403 {object} response.ErrorResponse "Чужое сообщение"
// @Router /chats/{id}/messages/{msgID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chats.Delete"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	chatID, msgID := chi.URLParam(r, "id"), chi.URLParam(r, "msgID")
	p, err := s.DeleteMessage(chatID, msgID)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishMessage(w, r, log, s, p, chatID, msgID, "message deleted")
}

// Read godoc
// @Summary Отметить чат прочитанным
// @Tags Chats
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID чата"
// @Success 200 {object} models.Chat
// @Router /chats/{id}/read [post]
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chats.Read"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	chatID := chi.URLParam(r, "id")
	if err := s.MarkChatRead(chatID); err != nil {
		response.Fail(w, r, err)
		return
	}
	chat, _ := findChat(s, chatID)
	response.OK(w, r, chat)
}

// StartPrivate godoc
// @Summary Открыть личный чат
// @Description Возвращает существующий чат с пользователем или создаёт новый.
// @Tags Chats
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.PrivateChatInput true "Собеседник"
// @Success 200 {object} models.Chat
// @Failure 403 {object} response.ErrorResponse "Пользователь заблокирован"
// @Router /private-chats [post]
func (h *Handler) StartPrivate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chats.StartPrivate"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.PrivateChatInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	if chat, ok := s.GetPrivateChatWith(in.UserID); ok {
		response.OK(w, r, chat)
		return
	}

	ctx, cancel := request.WithTimeout(r.Context())
	defer cancel()
	chat, err := s.StartPrivateChat(ctx, in.UserID)
	if err != nil {
		log.Info("private chat rejected", slog.String("user_id", in.UserID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("private chat opened", slog.String("chat_id", chat.ID))
	response.OK(w, r, chat)
}

func (h *Handler) finishMessage(w http.ResponseWriter, r *http.Request, log *slog.Logger, s *store.Store,
	p *store.Pending, chatID, msgID, msg string) {
	if err := request.Await(r.Context(), p); err != nil {
		log.Error("message change was not saved", slog.String("message_id", msgID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info(msg, slog.String("message_id", msgID))
	m, _ := findMessage(s, chatID, msgID)
	response.OK(w, r, m)
}

func findChat(s *store.Store, chatID string) (models.Chat, bool) {
	st := s.Snapshot()
	for _, list := range [][]models.Chat{st.Chats, st.PrivateChats} {
		for _, c := range list {
			if c.ID == chatID {
				return c, true
			}
		}
	}
	return models.Chat{}, false
}

func findMessage(s *store.Store, chatID, msgID string) (models.Message, bool) {
	chat, ok := findChat(s, chatID)
	if !ok {
		return models.Message{}, false
	}
	for _, m := range chat.Messages {
		if m.ID == msgID {
			return m, true
		}
	}
	return models.Message{}, false
}
