package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo stores owners in the users table.
type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, full_name, given_name, family_name, picture_url, created_at, updated_at`

// Upsert inserts or refreshes an owner. NULL profile parts keep their stored value.
func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, full_name, given_name, family_name, picture_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  full_name = COALESCE(EXCLUDED.full_name, users.full_name),
  given_name = COALESCE(EXCLUDED.given_name, users.given_name),
  family_name = COALESCE(EXCLUDED.family_name, users.family_name),
  picture_url = COALESCE(EXCLUDED.picture_url, users.picture_url),
  updated_at = now()`
	if _, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		nullable(user.FullName),
		nullable(user.GivenName),
		nullable(user.FamilyName),
		nullable(user.PictureURL),
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var user User
	var fullName, givenName, familyName, pictureURL sql.NullString
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&fullName,
		&givenName,
		&familyName,
		&pictureURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return User{}, err
	}
	user.FullName = fullName.String
	user.GivenName = givenName.String
	user.FamilyName = familyName.String
	user.PictureURL = pictureURL.String
	return user, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
