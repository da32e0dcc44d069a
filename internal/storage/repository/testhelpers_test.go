package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/planzy/internal/migrations"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("planzy"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory создаёт тестовые данные через публичные методы хранилища.
type TestDataFactory struct {
	storage *Storage
	seq     int
}

func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создаёт пользователя с подтверждённым email.
func (f *TestDataFactory) CreateUser(t *testing.T, name string, age *int) *models.User {
	t.Helper()
	u, err := f.storage.InsertUser(context.Background(), models.User{
		ID:              uuid.New().String(),
		Name:            name,
		Username:        name + "_" + uuid.New().String()[:8],
		Email:           uuid.New().String()[:8] + "@example.com",
		PasswordHash:    "hash",
		Age:             age,
		IsEmailVerified: true,
	})
	require.NoError(t, err)
	return u
}

// CreatePlan создаёт план с указанной вместимостью и ценой.
func (f *TestDataFactory) CreatePlan(t *testing.T, creator *models.User, maxParticipants *int, price string) *models.Plan {
	t.Helper()
	f.seq++
	p := models.Plan{
		Title:           "Padel",
		Category:        "sports",
		Date:            time.Now().UTC().Add(time.Duration(f.seq) * time.Hour).Truncate(time.Second),
		Time:            "18:00",
		Location:        models.PlanLocation{Name: "Club", City: "Madrid"},
		MaxParticipants: maxParticipants,
		Creator:         creator.Summary(),
	}
	if price != "" {
		p.PricePerPerson = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	created, err := f.storage.InsertPlan(context.Background(), p)
	require.NoError(t, err)
	return created
}

// Deposit пополняет кошелёк пользователя.
func (f *TestDataFactory) Deposit(t *testing.T, userUID, amount string) {
	t.Helper()
	_, _, err := f.storage.InsertWalletTransaction(context.Background(), models.WalletTransaction{
		UserID: userUID,
		Type:   models.TxDeposit,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func intRef(v int) *int { return &v }
