// Package store содержит состояние пользовательской сессии Planzy и
// действия над ним. Каждое действие синхронно проверяет предусловия,
// применяет оптимистичное изменение и ставит запись в очередь
// синхронизации сессии. Единственный воркер очереди сохраняет изменения
// через Gateway с повторами при временных ошибках; при окончательной
// ошибке изменение откатывается, а в состояние добавляется SyncError.
package store

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// Значения по умолчанию для очереди синхронизации.
const (
	DefaultQueueSize       = 64
	DefaultMaxRetries      = 3
	DefaultRetryInitial    = 200 * time.Millisecond
	DefaultRetryMaxElapsed = 10 * time.Second
)

// Store — изолированное состояние одной сессии.
type Store struct {
	gw  Gateway
	log *slog.Logger
	now func() time.Time

	mu     sync.RWMutex
	state  State
	closed bool
	last   *Pending

	qmu      sync.Mutex
	queue    []*task
	notify   chan struct{}
	stopping chan struct{}
	stopped  chan struct{}

	queueSize       int
	retryMax        uint64
	retryInitial    time.Duration
	retryMaxElapsed time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option настраивает Store.
type Option func(*Store)

// WithLogger задаёт логгер.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithQueueSize ограничивает число несинхронизированных действий.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithRetry задаёт политику повторов при временных ошибках хранилища.
func WithRetry(maxRetries uint64, initial, maxElapsed time.Duration) Option {
	return func(s *Store) {
		s.retryMax = maxRetries
		if initial > 0 {
			s.retryInitial = initial
		}
		if maxElapsed > 0 {
			s.retryMaxElapsed = maxElapsed
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New создаёт Store и запускает воркер очереди синхронизации.
func New(gw Gateway, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		gw:              gw,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		state:           initialState(),
		notify:          make(chan struct{}, 1),
		stopping:        make(chan struct{}),
		stopped:         make(chan struct{}),
		queueSize:       DefaultQueueSize,
		retryMax:        DefaultMaxRetries,
		retryInitial:    DefaultRetryInitial,
		retryMaxElapsed: DefaultRetryMaxElapsed,
		baseCtx:         ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Snapshot возвращает глубокую копию текущего состояния.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// UserID возвращает UID авторизованного пользователя или пустую строку.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return ""
	}
	return s.state.User.ID
}

// Close перестаёт принимать действия и ждёт, пока очередь опустеет. Если
// ctx отменён раньше, незавершённые записи прерываются.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return nil
	}
	s.closed = true
	close(s.stopping)
	s.mu.Unlock()

	select {
	case <-s.stopped:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.stopped
		return ctx.Err()
	}
}

// requireUser возвращает текущего пользователя. Вызывается под s.mu.
func (s *Store) requireUser() (*models.User, error) {
	if !s.state.IsAuthenticated || s.state.User == nil {
		return nil, models.ErrNotAuthenticated
	}
	return s.state.User, nil
}

// begin захватывает блокировку на запись и проверяет, что действие можно
// поставить в очередь. При ошибке блокировка снята.
func (s *Store) begin() error {
	s.mu.Lock()
	if err := s.checkQueue(); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

func sortPlans(plans []models.Plan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Date.Before(plans[j].Date)
	})
}
