package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"birthday_notification_bot/internal/domain/user"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrUserNotFound = fmt.Errorf("user not found")
var ErrDuplicateTelegramID = fmt.Errorf("user with this Telegram ID already exists")

const userColumns = `id, telegram_id, username, first_name, last_name, birth_date,
		is_admin, is_subscribed, is_notifications_enabled, created_at, updated_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.BirthDate,
		&u.IsAdmin, &u.IsSubscribed, &u.IsNotificationsEnabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (telegram_id, username, first_name, last_name, birth_date,
				is_admin, is_subscribed, is_notifications_enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, u.TelegramID, u.Username, u.FirstName, u.LastName,
		u.BirthDate, u.IsAdmin, u.IsSubscribed, u.IsNotificationsEnabled).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") && strings.Contains(err.Error(), "users_telegram_id_key") {
			return ErrDuplicateTelegramID
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by Telegram ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, strings.TrimPrefix(username, "@")))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by username: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *user.User) error {
	query := `UPDATE users
			SET username = $1, first_name = $2, last_name = $3, birth_date = $4,
				is_admin = $5, is_subscribed = $6, is_notifications_enabled = $7, updated_at = NOW()
			WHERE id = $8
			RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, u.Username, u.FirstName, u.LastName, u.BirthDate,
		u.IsAdmin, u.IsSubscribed, u.IsNotificationsEnabled, u.ID).Scan(&u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted user rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListAll(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY substr(birth_date, 6, 5)`
	return r.queryUsers(ctx, "all users", query)
}

func (r *PostgresUserRepository) ListAdmins(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_admin = TRUE ORDER BY id`
	return r.queryUsers(ctx, "admins", query)
}

// ListUpcomingBirthdays selects subscribed users whose birthday month-day lies
// in [startMD, endMD] inclusive. startMD > endMD means the window crosses the
// year boundary and the condition becomes the union of the December tail and
// the January head. The subscribed filter applies to both branches.
func (r *PostgresUserRepository) ListUpcomingBirthdays(ctx context.Context, startMD, endMD string) ([]*user.User, error) {
	if startMD <= endMD {
		query := `SELECT ` + userColumns + ` FROM users
			WHERE substr(birth_date, 6, 5) BETWEEN $1 AND $2
				AND is_subscribed = TRUE
			ORDER BY substr(birth_date, 6, 5)`
		return r.queryUsers(ctx, "upcoming birthdays", query, startMD, endMD)
	}
	query := `SELECT ` + userColumns + ` FROM users
		WHERE (substr(birth_date, 6, 5) BETWEEN $1 AND '12-31'
			OR substr(birth_date, 6, 5) BETWEEN '01-01' AND $2)
			AND is_subscribed = TRUE
		ORDER BY substr(birth_date, 6, 5)`
	return r.queryUsers(ctx, "upcoming birthdays (wrapped)", query, startMD, endMD)
}

// ListRecipients selects everyone eligible to receive a reminder about the
// excluded person: subscribed, notifications enabled, and not the celebrated
// person themselves.
func (r *PostgresUserRepository) ListRecipients(ctx context.Context, excludeTelegramID int64) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE telegram_id != $1
			AND is_subscribed = TRUE
			AND is_notifications_enabled = TRUE
		ORDER BY id`
	return r.queryUsers(ctx, "recipients", query, excludeTelegramID)
}

func (r *PostgresUserRepository) queryUsers(ctx context.Context, what, query string, args ...any) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", what, err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", what, err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return users, nil
}
