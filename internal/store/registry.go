package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// DefaultSessionTTL — время простоя, после которого сессия закрывается.
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	store    *Store
	lastSeen time.Time
}

// Registry хранит Store каждой сессии. Две вкладки браузера — две сессии
// и два независимых Store.
type Registry struct {
	gw   Gateway
	opts []Option
	ttl  time.Duration
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRegistry создаёт реестр и запускает очистку простаивающих сессий.
// opts передаются каждому создаваемому Store.
func NewRegistry(gw Gateway, ttl time.Duration, log *slog.Logger, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{
		gw:       gw,
		opts:     append([]Option{WithLogger(log)}, opts...),
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Open возвращает Store сессии, создавая и загружая его при первом
// обращении.
func (r *Registry) Open(ctx context.Context, sessionID string, user *models.User) (*Store, error) {
	const op = "store.Registry.Open"

	if s, ok := r.Get(sessionID); ok {
		return s, nil
	}

	s := New(r.gw, r.opts...)
	if err := s.Initialize(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user != nil {
		if err := s.SetUser(ctx, user); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		existing.lastSeen = r.now()
		r.mu.Unlock()
		_ = s.Close(ctx)
		return existing.store, nil
	}
	r.sessions[sessionID] = &session{store: s, lastSeen: r.now()}
	activeSessions.Inc()
	r.mu.Unlock()

	r.log.Debug("session opened", slog.String("session_id", sessionID))
	return s, nil
}

// Get возвращает Store сессии и продлевает её жизнь.
func (r *Registry) Get(sessionID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	sess.lastSeen = r.now()
	return sess.store, true
}

// Len возвращает число открытых сессий.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Remove закрывает сессию, дождавшись синхронизации её очереди.
func (r *Registry) Remove(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		activeSessions.Dec()
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return sess.store.Close(ctx)
}

// evictIdle закрывает сессии, простаивающие дольше ttl.
func (r *Registry) evictIdle(ctx context.Context) int {
	deadline := r.now().Add(-r.ttl)

	r.mu.Lock()
	var idle []*Store
	for id, sess := range r.sessions {
		if sess.lastSeen.Before(deadline) {
			idle = append(idle, sess.store)
			delete(r.sessions, id)
			activeSessions.Dec()
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		if err := s.Close(ctx); err != nil {
			r.log.Warn("failed to close idle session", sl.Err(err))
		}
	}
	return len(idle)
}

func (r *Registry) janitor() {
	defer close(r.done)
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/2)
			if n := r.evictIdle(ctx); n > 0 {
				r.log.Info("idle sessions evicted", slog.Int("count", n))
			}
			cancel()
		case <-r.stop:
			return
		}
	}
}

// Close останавливает очистку и закрывает все сессии.
func (r *Registry) Close(ctx context.Context) error {
	r.once.Do(func() { close(r.stop) })
	<-r.done

	r.mu.Lock()
	all := make([]*Store, 0, len(r.sessions))
	for id, sess := range r.sessions {
		all = append(all, sess.store)
		delete(r.sessions, id)
		activeSessions.Dec()
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
