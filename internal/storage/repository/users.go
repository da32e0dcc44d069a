package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/planzy/internal/models"
)

const userColumns = `uid, name, username, email, password_hash, auth_provider, role, avatar, description,
	interests, age, location, is_verified, is_email_verified, email_verification_code,
	email_verification_expires_at, language, notification_settings, preferred_payment_method,
	premium_plan, premium_expires_at, saved_payment_methods, paid_plans, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                          models.User
		passwordHash, code, preferred              sql.NullString
		age                                        sql.NullInt64
		codeExpires, premiumExpires                sql.NullTime
		interests, location, settings, saved, paid []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &passwordHash, &u.AuthProvider, &u.Role,
		&u.Avatar, &u.Description, &interests, &age, &location, &u.IsVerified, &u.IsEmailVerified,
		&code, &codeExpires, &u.Language, &settings, &preferred, &u.PremiumPlan, &premiumExpires,
		&saved, &paid, &u.CreatedAt)
	if err != nil {
		return nil, err
	}

	u.PasswordHash = passwordHash.String
	u.EmailVerificationCode = code.String
	u.EmailVerificationExpiresAt = timePtr(codeExpires)
	u.PreferredPaymentMethod = models.PaymentMethod(preferred.String)
	u.PremiumExpiresAt = timePtr(premiumExpires)
	u.Age = intPtr(age)

	if err = fromJSON(interests, &u.Interests); err != nil {
		return nil, err
	}
	if len(location) > 0 && string(location) != "null" {
		u.Location = &models.Location{}
		if err = fromJSON(location, u.Location); err != nil {
			return nil, err
		}
	}
	if err = fromJSON(settings, &u.NotificationSettings); err != nil {
		return nil, err
	}
	if err = fromJSON(saved, &u.SavedPaymentMethods); err != nil {
		return nil, err
	}
	if err = fromJSON(paid, &u.PaidPlans); err != nil {
		return nil, err
	}
	u.ApplyDefaults()
	return &u, nil
}

func (s *Storage) getUserBy(ctx context.Context, q querier, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	u, err := scanUser(q.QueryRowContext(ctx, query, value))
	if err != nil {
		return nil, notFound(err)
	}
	blocked, err := listBlocked(ctx, q, u.ID)
	if err != nil {
		return nil, err
	}
	u.BlockedUsers = blocked
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := s.getUserBy(ctx, s.DB, "email", strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по UID.
func (s *Storage) GetUserByID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := s.getUserBy(ctx, s.DB, "uid", userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UsernameExists сообщает, занят ли username.
func (s *Storage) UsernameExists(ctx context.Context, username string) (bool, error) {
	const op = "storage.UsernameExists"
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// InsertUser сохраняет нового пользователя. Нарушение уникальности email
// возвращает models.ErrEmailTaken, username — ErrUsernameTaken.
func (s *Storage) InsertUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "storage.InsertUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u.ApplyDefaults()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}

	interests, err := toJSON(u.Interests)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var location any
	if u.Location != nil {
		if location, err = toJSON(u.Location); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	settings, err := toJSON(u.NotificationSettings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	saved, err := toJSON(u.SavedPaymentMethods)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	paid, err := toJSON(u.PaidPlans)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO users (` + userColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			          $19, $20, $21, $22, $23, $24)
			  RETURNING ` + userColumns
	row := s.DB.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Username, strings.ToLower(u.Email), nullString(u.PasswordHash), u.AuthProvider, u.Role,
		u.Avatar, u.Description, interests, nullInt(u.Age), location, u.IsVerified, u.IsEmailVerified,
		nullString(u.EmailVerificationCode), nullTime(u.EmailVerificationExpiresAt), string(u.Language), settings,
		nullString(string(u.PreferredPaymentMethod)), string(u.PremiumPlan), nullTime(u.PremiumExpiresAt),
		saved, paid, u.CreatedAt)
	created, err := scanUser(row)
	if err != nil {
		if pgErr, ok := pgError(err, codeUniqueViolation); ok {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
			}
			if strings.Contains(pgErr.ConstraintName, "username") {
				return nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
			}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created.BlockedUsers = []string{}
	return created, nil
}

// UpdateUser применяет частичное обновление и возвращает обновлённого пользователя.
func (s *Storage) UpdateUser(ctx context.Context, userUID string, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.UpdateUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return s.GetUserByID(ctx, userUID)
	}

	sets := make([]string, 0, 12)
	args := make([]any, 0, 13)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addJSON := func(column string, value any) error {
		data, err := toJSON(value)
		if err != nil {
			return err
		}
		add(column, data)
		return nil
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Avatar != nil {
		add("avatar", *upd.Avatar)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	switch {
	case upd.Age != nil:
		add("age", *upd.Age)
	case upd.ClearAge:
		add("age", nil)
	}
	if upd.IsVerified != nil {
		add("is_verified", *upd.IsVerified)
	}
	if upd.Language != nil {
		add("language", string(*upd.Language))
	}
	if upd.PreferredPaymentMethod != nil {
		add("preferred_payment_method", nullString(string(*upd.PreferredPaymentMethod)))
	}
	var err error
	if upd.Interests != nil {
		err = addJSON("interests", *upd.Interests)
	}
	switch {
	case err != nil:
	case upd.Location != nil:
		err = addJSON("location", *upd.Location)
	case upd.ClearLocation:
		add("location", nil)
	}
	if err == nil && upd.NotificationSettings != nil {
		err = addJSON("notification_settings", *upd.NotificationSettings)
	}
	if err == nil && upd.SavedPaymentMethods != nil {
		err = addJSON("saved_payment_methods", *upd.SavedPaymentMethods)
	}
	if err == nil && upd.PaidPlans != nil {
		err = addJSON("paid_plans", *upd.PaidPlans)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	args = append(args, userUID)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE uid = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return s.GetUserByID(ctx, userUID)
}

// SetPremium меняет тариф пользователя.
func (s *Storage) SetPremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error {
	const op = "storage.SetPremium"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if err := setPremium(ctx, s.DB, userUID, plan, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func setPremium(ctx context.Context, q querier, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE users SET premium_plan = $1, premium_expires_at = $2 WHERE uid = $3`,
		string(plan), nullTime(expiresAt), userUID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetVerificationCode сохраняет код подтверждения email и срок его действия.
func (s *Storage) SetVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	const op = "storage.SetVerificationCode"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET email_verification_code = $1, email_verification_expires_at = $2
			  WHERE email = $3`, code, expiresAt, strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// ConfirmEmail помечает email подтверждённым и сбрасывает код.
func (s *Storage) ConfirmEmail(ctx context.Context, userUID string) error {
	const op = "storage.ConfirmEmail"
	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET is_email_verified = TRUE, email_verification_code = NULL, email_verification_expires_at = NULL
			  WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// DeleteUser удаляет пользователя и все связанные с ним записи.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUser"
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUserByEmail удаляет пользователя по email. Без includeVerified
// удаляются только записи с неподтверждённым email.
func (s *Storage) DeleteUserByEmail(ctx context.Context, email string, includeVerified bool) (int64, error) {
	const op = "storage.DeleteUserByEmail"
	query := `DELETE FROM users WHERE email = $1 AND ($2 OR NOT is_email_verified)`
	res, err := s.DB.ExecContext(ctx, query, strings.ToLower(email), includeVerified)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// DeleteUnverifiedUsers удаляет всех пользователей с неподтверждённым email.
func (s *Storage) DeleteUnverifiedUsers(ctx context.Context) (int64, error) {
	const op = "storage.DeleteUnverifiedUsers"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE NOT is_email_verified`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DowngradeExpiredPremium переводит на бесплатный тариф пользователей,
// у которых истёк срок платного, и возвращает их UID.
func (s *Storage) DowngradeExpiredPremium(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.DowngradeExpiredPremium"
	rows, err := s.DB.QueryContext(ctx, `UPDATE users
			  SET premium_plan = 'free', premium_expires_at = NULL
			  WHERE premium_plan <> 'free' AND premium_expires_at IS NOT NULL AND premium_expires_at < $1
			  RETURNING uid`, now)
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

// NotificationSettings возвращает настройки уведомлений указанных пользователей.
func (s *Storage) NotificationSettings(ctx context.Context, userUIDs []string) (map[string]models.NotificationSettings, error) {
	const op = "storage.NotificationSettings"
	result := make(map[string]models.NotificationSettings, len(userUIDs))
	if len(userUIDs) == 0 {
		return result, nil
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT uid, notification_settings FROM users WHERE uid = ANY($1::uuid[])`, userUIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var id string
		var raw []byte
		if err = rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var settings models.NotificationSettings
		if err = fromJSON(raw, &settings); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[id] = settings
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
