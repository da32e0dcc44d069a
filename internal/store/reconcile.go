package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// ErrQueueFull возвращается, если очередь синхронизации сессии переполнена.
var ErrQueueFull = errors.New("reconciliation queue is full")

// ErrClosed возвращается действиями закрытого Store.
var ErrClosed = errors.New("store is closed")

// Pending — результат фоновой синхронизации действия. Wait возвращает
// nil, если изменение сохранено, иначе ошибку, после которой оптимистичное
// изменение уже откачено.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// resolved возвращает уже завершённый Pending для действий без синхронизации.
func resolved() *Pending {
	p := newPending()
	p.resolve(nil)
	return p
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Wait ждёт окончания синхронизации или отмены ctx.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done закрывается по окончании синхронизации.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// task — отложенная запись в хранилище. persist выполняется воркером и
// возвращает функцию слияния ответа сервера с состоянием; revert
// откатывает оптимистичное изменение, если запись не удалась.
//
// undo откатывает изменения по ключам состояния и восстанавливает значение,
// которое было до задачи. Если тот же ключ уже изменила более поздняя
// задача из очереди, откат не выполняется, а передаётся ей: значение,
// поверх которого она записана, так и не было сохранено.
type task struct {
	op      string
	persist func(ctx context.Context) (merge func(*State), err error)
	revert  func(*State)
	undo    map[string]func(*State)
	pending *Pending
}

// enqueue ставит задачу в очередь. Вызывается под s.mu, поэтому порядок
// задач совпадает с порядком оптимистичных изменений.
func (s *Store) enqueue(t *task) *Pending {
	t.pending = newPending()
	s.last = t.pending
	s.qmu.Lock()
	s.queue = append(s.queue, t)
	s.qmu.Unlock()
	queueDepth.Inc()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return t.pending
}

// queueLen возвращает число задач, ожидающих синхронизации.
func (s *Store) queueLen() int {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue)
}

func (s *Store) checkQueue() error {
	if s.closed {
		return ErrClosed
	}
	if s.queueLen() >= s.queueSize {
		return ErrQueueFull
	}
	return nil
}

func (s *Store) next() *task {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	t := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return t
}

// run — единственный воркер очереди сессии. Задачи выполняются строго по
// одной в порядке постановки.
func (s *Store) run() {
	defer close(s.stopped)
	for {
		for t := s.next(); t != nil; t = s.next() {
			queueDepth.Dec()
			s.process(t)
		}
		select {
		case <-s.notify:
		case <-s.stopping:
			if s.queueLen() == 0 {
				return
			}
		}
	}
}

func (s *Store) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	b.MaxInterval = s.retryMaxElapsed
	b.MaxElapsedTime = s.retryMaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(b, s.retryMax), ctx)
}

func (s *Store) process(t *task) {
	log := s.log.With(slog.String("op", t.op))
	start := time.Now()

	var merge func(*State)
	operation := func() error {
		m, err := t.persist(s.baseCtx)
		if err != nil {
			if models.IsDomain(err) || errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			return err
		}
		merge = m
		return nil
	}
	notify := func(err error, wait time.Duration) {
		reconcileRetries.WithLabelValues(t.op).Inc()
		log.Warn("sync failed, retrying", slog.Duration("backoff", wait), sl.Err(err))
	}

	err := backoff.RetryNotify(operation, s.newBackOff(s.baseCtx), notify)
	reconcileDuration.WithLabelValues(t.op).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	if err != nil {
		s.rollback(t)
		s.state.SyncErrors = append(s.state.SyncErrors, models.SyncError{
			Op:      t.op,
			Message: err.Error(),
			At:      s.now().UTC(),
		})
	} else if merge != nil {
		merge(&s.state)
	}
	s.mu.Unlock()

	if err != nil {
		reconcileTotal.WithLabelValues(t.op, resultFailed).Inc()
		log.Error("sync failed, optimistic change reverted", sl.Err(err))
		t.pending.resolve(&SyncFailedError{Op: t.op, Err: err})
		return
	}
	reconcileTotal.WithLabelValues(t.op, resultSuccess).Inc()
	t.pending.resolve(nil)
}

// rollback откатывает изменения задачи t. Вызывается под s.mu, поэтому
// очередь не меняется, пока откат передаётся следующим задачам.
func (s *Store) rollback(t *task) {
	if t.revert != nil {
		t.revert(&s.state)
	}
	if len(t.undo) == 0 {
		return
	}
	s.qmu.Lock()
	later := append([]*task(nil), s.queue...)
	s.qmu.Unlock()

	for key, undo := range t.undo {
		if next := firstTouching(later, key); next != nil {
			next.undo[key] = undo
			continue
		}
		undo(&s.state)
	}
}

func firstTouching(tasks []*task, key string) *task {
	for _, t := range tasks {
		if _, ok := t.undo[key]; ok {
			return t
		}
	}
	return nil
}

// SyncFailedError — окончательная ошибка синхронизации действия.
type SyncFailedError struct {
	Op  string
	Err error
}

func (e *SyncFailedError) Error() string {
	return e.Op + ": sync failed: " + e.Err.Error()
}

func (e *SyncFailedError) Unwrap() error {
	return e.Err
}
