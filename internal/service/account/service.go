package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zhouzirui/snailgpt/backend/internal/model/account"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmailTaken          = errors.New("email already registered use a different one")
	ErrUsernameTaken       = errors.New("this display name is already taken, please choose another")
	ErrInvalidCredentials  = errors.New("invalid identifier or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code, password change rejected")
)

const minPasswordLength = 6

// ValidationError explains why input was rejected. It matches ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// Service manages user accounts stored in SQLite.
type Service struct {
	db     *sql.DB
	logger logrus.FieldLogger
	cost   int
}

// Open opens or creates the users database at path.
func Open(path string, logger logrus.FieldLogger) (*Service, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	svc := &Service{db: db, logger: logger, cost: bcrypt.DefaultCost}
	if err := svc.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return svc, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT UNIQUE NOT NULL,
		username      TEXT UNIQUE NOT NULL COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		recovery_code TEXT NOT NULL,
		avatar_url    TEXT
	)`)
	return err
}

// RegisterInput carries the fields of a sign-up request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates an account and returns it with a fresh recovery code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (account.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if email == "" || username == "" || in.Password == "" {
		return account.User{}, invalid("All fields are required.")
	}
	if len(in.Password) < minPasswordLength {
		return account.User{}, invalid(fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}

	if exists, err := s.exists(ctx, `SELECT 1 FROM users WHERE email = ?`, email); err != nil {
		return account.User{}, err
	} else if exists {
		return account.User{}, ErrEmailTaken
	}
	if exists, err := s.exists(ctx, `SELECT 1 FROM users WHERE username = ? COLLATE NOCASE`, username); err != nil {
		return account.User{}, err
	} else if exists {
		return account.User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return account.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := account.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		RecoveryCode: newRecoveryCode(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, recovery_code) VALUES (?, ?, ?, ?)`,
		user.Email, user.Username, user.PasswordHash, user.RecoveryCode)
	if err != nil {
		return account.User{}, constraintError(err, "insert user")
	}
	user.ID, _ = res.LastInsertId()

	s.logger.WithField("username", user.Username).Info("account registered")
	return user, nil
}

// Login authenticates by email or username.
func (s *Service) Login(ctx context.Context, identifier, password string) (account.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return account.User{}, invalid("Email/username and password are required.")
	}

	user, err := s.findOne(ctx, `SELECT id, email, username, password_hash, recovery_code, avatar_url
		FROM users WHERE email = ? OR username = ? COLLATE NOCASE`, identifier, identifier)
	if errors.Is(err, ErrUserNotFound) {
		return account.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return account.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return account.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateInput carries a profile change. AvatarSet distinguishes "clear the
// avatar" (AvatarSet with nil AvatarURL) from "leave it alone".
type UpdateInput struct {
	Email        string
	NewUsername  string
	NewPassword  string
	RecoveryCode string
	AvatarURL    *string
	AvatarSet    bool
}

// Update changes username, password (recovery code required) and avatar.
func (s *Service) Update(ctx context.Context, in UpdateInput) (account.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return account.User{}, invalid("Email is required.")
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return account.User{}, err
	}

	var (
		sets []string
		args []any
	)

	if name := strings.TrimSpace(in.NewUsername); name != "" && name != user.Username {
		clash, err := s.exists(ctx, `SELECT 1 FROM users WHERE username = ? COLLATE NOCASE AND email != ?`, name, email)
		if err != nil {
			return account.User{}, err
		}
		if clash {
			return account.User{}, ErrUsernameTaken
		}
		sets = append(sets, "username = ?")
		args = append(args, name)
	}

	if in.NewPassword != "" {
		if strings.TrimSpace(in.RecoveryCode) != user.RecoveryCode {
			return account.User{}, ErrInvalidRecoveryCode
		}
		if len(in.NewPassword) < minPasswordLength {
			return account.User{}, invalid(fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
		if err != nil {
			return account.User{}, fmt.Errorf("hash password: %w", err)
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, string(hash))
	}

	if in.AvatarSet {
		sets = append(sets, "avatar_url = ?")
		args = append(args, nullableString(in.AvatarURL))
	}

	if len(sets) > 0 {
		args = append(args, email)
		query := fmt.Sprintf("UPDATE users SET %s WHERE email = ?", strings.Join(sets, ", "))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return account.User{}, constraintError(err, "update user")
		}
	}

	return s.findByEmail(ctx, email)
}

func (s *Service) findByEmail(ctx context.Context, email string) (account.User, error) {
	return s.findOne(ctx, `SELECT id, email, username, password_hash, recovery_code, avatar_url
		FROM users WHERE email = ?`, email)
}

func (s *Service) findOne(ctx context.Context, query string, args ...any) (account.User, error) {
	var (
		user   account.User
		avatar sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.RecoveryCode, &avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return account.User{}, ErrUserNotFound
	}
	if err != nil {
		return account.User{}, fmt.Errorf("query user: %w", err)
	}
	if avatar.Valid {
		user.AvatarURL = &avatar.String
	}
	return user, nil
}

func (s *Service) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return true, nil
}

// constraintError maps a UNIQUE violation that slipped past the existence
// checks (two concurrent writers) onto the matching conflict error.
func constraintError(err error, op string) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		switch msg := sqliteErr.Error(); {
		case strings.Contains(msg, "users.email"):
			return ErrEmailTaken
		case strings.Contains(msg, "users.username"):
			return ErrUsernameTaken
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// newRecoveryCode returns six decimal digits taken from a random UUID.
func newRecoveryCode() string {
	id := uuid.New()
	digits := new(big.Int).SetBytes(id[:]).String()
	for len(digits) < 6 {
		digits = "0" + digits
	}
	return digits[:6]
}
