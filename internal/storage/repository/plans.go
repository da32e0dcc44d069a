package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
)

const planSelect = `SELECT p.id, p.title, p.description, p.image, p.category, p.date, p.time, p.location,
	p.max_participants, p.price_per_person, p.min_age, p.court_reservation, p.created_at,
	u.uid, u.name, u.username, u.avatar, u.is_verified, u.age
	FROM plans p JOIN users u ON u.uid = p.creator_id`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var (
		p                       models.Plan
		location, court         []byte
		maxParticipants, minAge sql.NullInt64
		creatorAge              sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Image, &p.Category, &p.Date, &p.Time, &location,
		&maxParticipants, &p.PricePerPerson, &minAge, &court, &p.CreatedAt,
		&p.Creator.ID, &p.Creator.Name, &p.Creator.Username, &p.Creator.Avatar, &p.Creator.IsVerified, &creatorAge)
	if err != nil {
		return nil, err
	}
	p.MaxParticipants = intPtr(maxParticipants)
	p.MinAge = intPtr(minAge)
	p.Creator.Age = intPtr(creatorAge)
	if err = fromJSON(location, &p.Location); err != nil {
		return nil, err
	}
	if len(court) > 0 && string(court) != "null" {
		p.CourtReservation = &models.CourtReservation{}
		if err = fromJSON(court, p.CourtReservation); err != nil {
			return nil, err
		}
	}
	p.Participants = []models.UserSummary{}
	return &p, nil
}

// loadParticipants возвращает участников планов в порядке присоединения.
func loadParticipants(ctx context.Context, q querier, planIDs []string) (map[string][]models.UserSummary, error) {
	result := make(map[string][]models.UserSummary, len(planIDs))
	if len(planIDs) == 0 {
		return result, nil
	}
	rows, err := q.QueryContext(ctx, `SELECT pp.plan_id, u.uid, u.name, u.username, u.avatar, u.is_verified, u.age
			  FROM plan_participants pp JOIN users u ON u.uid = pp.user_id
			  WHERE pp.plan_id = ANY($1::uuid[])
			  ORDER BY pp.joined_at, u.uid`, planIDs)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var planID string
		var u models.UserSummary
		var age sql.NullInt64
		if err = rows.Scan(&planID, &u.ID, &u.Name, &u.Username, &u.Avatar, &u.IsVerified, &age); err != nil {
			return nil, err
		}
		u.Age = intPtr(age)
		result[planID] = append(result[planID], u)
	}
	return result, rows.Err()
}

func (s *Storage) queryPlans(ctx context.Context, q querier, query string, args ...any) ([]models.Plan, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	plans := make([]models.Plan, 0)
	ids := make([]string, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		plans = append(plans, *p)
		ids = append(ids, p.ID)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	participants, err := loadParticipants(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if list, ok := participants[plans[i].ID]; ok {
			plans[i].Participants = list
		}
	}
	return plans, nil
}

func (s *Storage) getPlan(ctx context.Context, q querier, planID string) (*models.Plan, error) {
	plans, err := s.queryPlans(ctx, q, planSelect+` WHERE p.id = $1`, planID)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, models.ErrNotFound
	}
	return &plans[0], nil
}

// ListPlans возвращает все планы, отсортированные по дате проведения.
func (s *Storage) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "storage.ListPlans"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	plans, err := s.queryPlans(ctx, s.DB, planSelect+` ORDER BY p.date ASC, p.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// GetPlan возвращает план по ID.
func (s *Storage) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	const op = "storage.GetPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p, err := s.getPlan(ctx, s.DB, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// FindPlansStartingBetween возвращает планы с датой проведения в интервале [from, to).
func (s *Storage) FindPlansStartingBetween(ctx context.Context, from, to time.Time) ([]models.Plan, error) {
	const op = "storage.FindPlansStartingBetween"
	plans, err := s.queryPlans(ctx, s.DB, planSelect+` WHERE p.date >= $1 AND p.date < $2 ORDER BY p.date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// CountPlansCreatedSince возвращает число планов пользователя, созданных начиная с since.
func (s *Storage) CountPlansCreatedSince(ctx context.Context, creatorUID string, since time.Time) (int, error) {
	const op = "storage.CountPlansCreatedSince"
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plans WHERE creator_id = $1 AND created_at >= $2`, creatorUID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// InsertPlan сохраняет план вместе с его групповым чатом.
func (s *Storage) InsertPlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	const op = "storage.InsertPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	location, err := toJSON(p.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var court any
	if p.CourtReservation != nil {
		if court, err = toJSON(p.CourtReservation); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var created *models.Plan
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO plans (id, title, description, image, category, date, time,
			      location, max_participants, price_per_person, min_age, court_reservation, creator_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			p.ID, p.Title, p.Description, p.Image, p.Category, p.Date, p.Time, location,
			nullInt(p.MaxParticipants), p.PricePerPerson, nullInt(p.MinAge), court, p.Creator.ID, p.CreatedAt)
		if err != nil {
			if _, ok := pgError(err, codeForeignKeyViolation); ok {
				return models.ErrNotFound
			}
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO chats (id, plan_id, plan_title, is_private, created_at)
			  VALUES ($1, $2, $3, FALSE, $4)`, uuid.New().String(), p.ID, p.Title, p.CreatedAt); err != nil {
			return err
		}
		created, err = s.getPlan(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// UpdatePlan применяет частичное обновление плана.
func (s *Storage) UpdatePlan(ctx context.Context, planID string, upd models.PlanUpdate) (*models.Plan, error) {
	const op = "storage.UpdatePlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var updated *models.Plan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		upd.Apply(current)

		location, err := toJSON(current.Location)
		if err != nil {
			return err
		}
		var court any
		if current.CourtReservation != nil {
			if court, err = toJSON(current.CourtReservation); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE plans
			  SET title = $1, description = $2, image = $3, category = $4, date = $5, time = $6, location = $7,
			      max_participants = $8, price_per_person = $9, min_age = $10, court_reservation = $11
			  WHERE id = $12`,
			current.Title, current.Description, current.Image, current.Category, current.Date, current.Time,
			location, nullInt(current.MaxParticipants), current.PricePerPerson, nullInt(current.MinAge), court, planID)
		if err != nil {
			return err
		}
		if upd.Title != nil {
			if _, err = tx.ExecContext(ctx, `UPDATE chats SET plan_title = $1 WHERE plan_id = $2`,
				current.Title, planID); err != nil {
				return err
			}
		}
		updated, err = s.getPlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// DeletePlan удаляет план вместе с участниками, чатом и турниром.
func (s *Storage) DeletePlan(ctx context.Context, planID string) error {
	const op = "storage.DeletePlan"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, planID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// lockPlanForJoin блокирует строку плана и проверяет, что пользователь может
// присоединиться. Возвращает joined=true, если пользователь уже участник.
func lockPlanForJoin(ctx context.Context, tx *sql.Tx, planID, userUID string) (joined bool, price decimal.NullDecimal, err error) {
	var maxParticipants, minAge, age sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT max_participants, min_age, price_per_person FROM plans WHERE id = $1 FOR UPDATE`, planID).
		Scan(&maxParticipants, &minAge, &price)
	if err != nil {
		return false, price, notFound(err)
	}
	if err = tx.QueryRowContext(ctx, `SELECT age FROM users WHERE uid = $1`, userUID).Scan(&age); err != nil {
		return false, price, notFound(err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), FALSE)
			  FROM plan_participants WHERE plan_id = $1`, planID, userUID).Scan(&count, &joined)
	if err != nil {
		return false, price, err
	}
	if joined {
		return true, price, nil
	}
	if minAge.Valid && age.Valid && age.Int64 < minAge.Int64 {
		return false, price, models.ErrUnderage
	}
	if maxParticipants.Valid && int64(count) >= maxParticipants.Int64 {
		return false, price, models.ErrPlanFull
	}
	return false, price, nil
}

func insertParticipant(ctx context.Context, tx *sql.Tx, planID, userUID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO plan_participants (plan_id, user_id, joined_at)
			  VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, planID, userUID, at)
	return err
}

// JoinPlan атомарно добавляет пользователя в участники плана. Строка плана
// блокируется на время проверки вместимости, поэтому параллельные вызовы не
// могут превысить max_participants. Повторное присоединение ничего не меняет.
func (s *Storage) JoinPlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	const op = "storage.JoinPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var plan *models.Plan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		joined, _, err := lockPlanForJoin(ctx, tx, planID, userUID)
		if err != nil {
			return err
		}
		if !joined {
			if err = insertParticipant(ctx, tx, planID, userUID, s.now().UTC()); err != nil {
				return err
			}
		}
		plan, err = s.getPlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}

// LeavePlan удаляет пользователя из участников. Повторный выход ничего не меняет.
func (s *Storage) LeavePlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	const op = "storage.LeavePlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var plan *models.Plan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM plan_participants WHERE plan_id = $1 AND user_id = $2`, planID, userUID); err != nil {
			return err
		}
		var err error
		plan, err = s.getPlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}
