package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// ListTournaments возвращает все турниры, новые первыми.
func (s *Storage) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	const op = "storage.ListTournaments"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, plan_id, sport, players_per_team, teams, created_at
			  FROM tournaments ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		var teams []byte
		if err = rows.Scan(&t.ID, &t.PlanID, &t.Sport, &t.PlayersPerTeam, &teams, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err = fromJSON(teams, &t.Teams); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if t.Teams == nil {
			t.Teams = []models.TournamentTeam{}
		}
		result = append(result, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// InsertTournament сохраняет турнир. У плана может быть только один турнир:
// повторная попытка возвращает models.ErrAlreadyExists.
func (s *Storage) InsertTournament(ctx context.Context, t models.Tournament) (*models.Tournament, error) {
	const op = "storage.InsertTournament"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	if t.Teams == nil {
		t.Teams = []models.TournamentTeam{}
	}
	teams, err := toJSON(t.Teams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.DB.ExecContext(ctx, `INSERT INTO tournaments (id, plan_id, sport, players_per_team, teams, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.PlanID, t.Sport, t.PlayersPerTeam, teams, t.CreatedAt)
	if err != nil {
		if _, ok := pgError(err, codeUniqueViolation); ok {
			return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadyExists)
		}
		if _, ok := pgError(err, codeForeignKeyViolation); ok {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}
