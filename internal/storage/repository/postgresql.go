// Package repository реализует хранилище Planzy на PostgreSQL: пользователи,
// планы и участники, чаты, журнал кошелька, турниры, уведомления,
// блокировки и жалобы. Операции, затрагивающие несколько таблиц или
// требующие проверки инвариантов (вместимость плана, неотрицательный
// баланс), выполняются в одной транзакции.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// Коды ошибок PostgreSQL.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ErrUsernameTaken возвращается при нарушении уникальности username.
var ErrUsernameTaken = errors.New("username is already taken")

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB  *sql.DB
	now func() time.Time
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB:  db,
		now: time.Now,
	}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что схема применена.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'plan_participants'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.CheckDatabaseReady: required table plan_participants missing")
	}
	return nil
}

// Ожидание схемы при запуске фоновых сервисов: миграции применяет HTTP-сервис.
const (
	readyAttempts = 10
	readyDelay    = 3 * time.Second
)

// WaitReady повторяет CheckDatabaseReady, пока схема не появится, ctx не
// будет отменён или не закончатся попытки.
func WaitReady(ctx context.Context, storage *Storage) error {
	return waitReady(ctx, storage, readyAttempts, readyDelay)
}

func waitReady(ctx context.Context, storage *Storage, attempts uint64, delay time.Duration) error {
	const op = "storage.WaitReady"
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), attempts), ctx)
	if err := backoff.Retry(func() error { return CheckDatabaseReady(ctx, storage) }, b); err != nil {
		return fmt.Errorf("%s: database not ready: %w", op, err)
	}
	return nil
}

// querier — общий интерфейс *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner — общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// withTx выполняет fn в транзакции и фиксирует её, если fn не вернула ошибку.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

func pgError(err error, code string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr, true
	}
	return nil, false
}

// notFound заменяет sql.ErrNoRows доменной ошибкой.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
