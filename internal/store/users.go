package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecommerce-platform/internal/models"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// CreateUser inserts a user. A duplicate email returns models.ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", models.ErrEmailTaken, u.Email)
	}
	return err
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

func (s *Store) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every user, newest first
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	err := s.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	return users, err
}

// UpdateUser writes the profile fields of u
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowxContext(ctx, `
		UPDATE users SET name = $1, email = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`,
		u.Name, u.Email, u.ID,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrUserNotFound, u.ID)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", models.ErrEmailTaken, u.Email)
	}
	return err
}
