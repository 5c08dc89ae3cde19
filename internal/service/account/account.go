package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"geminichat/internal/models"
)

const maxPasswordBytes = 72

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrNameRequired       = errors.New("name is required")
	ErrPasswordTooLong    = errors.New("password is too long")
)

// PasswordTooShortError reports the configured minimum.
type PasswordTooShortError struct {
	Min int
}

func (e *PasswordTooShortError) Error() string {
	return fmt.Sprintf("password must be at least %d characters", e.Min)
}

// Service handles account lifecycle.
type Service struct {
	db                *sql.DB
	minPasswordLength int
	cost              int
	now               func() time.Time
}

func NewService(db *sql.DB, minPasswordLength int) *Service {
	if minPasswordLength <= 0 {
		minPasswordLength = 6
	}
	return &Service{
		db:                db,
		minPasswordLength: minPasswordLength,
		cost:              bcrypt.DefaultCost,
		now:               time.Now,
	}
}

// Signup validates the input and creates a user.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len([]rune(password)) < s.minPasswordLength {
		return nil, &PasswordTooShortError{Min: s.minPasswordLength}
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	return s.createUser(ctx, email, password, name)
}

// Login checks the credentials and returns the matching user.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

// DeleteUser removes a user; tokens go with it through the foreign key.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EnsureDemoUser creates the demo account unless it already exists. The
// password policy does not apply to it.
func (s *Service) EnsureDemoUser(ctx context.Context, email, password, name string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New("demo credentials are required")
	}
	user, err := s.findByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	user, err = s.createUser(ctx, email, password, name)
	if err != nil {
		return nil, fmt.Errorf("seed demo user: %w", err)
	}
	log.Info().Str("email", email).Msg("demo user created")
	return user, nil
}

func (s *Service) createUser(ctx context.Context, email, password, name string) (*models.User, error) {
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		email, name, string(hash), now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Email: email, Name: name, PasswordHash: string(hash), CreatedAt: now}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`, email,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
