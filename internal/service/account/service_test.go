package account

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/snailgpt/backend/internal/logging"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := Open(filepath.Join(t.TempDir(), "users.db"), logging.Discard())
	require.NoError(t, err)
	svc.cost = bcrypt.MinCost
	t.Cleanup(func() { svc.Close() })
	return svc
}

func register(t *testing.T, svc *Service, email, username string) {
	t.Helper()
	_, err := svc.Register(context.Background(), RegisterInput{Email: email, Username: username, Password: "secret1"})
	require.NoError(t, err)
}

func TestRegisterNormalisesAndIssuesRecoveryCode(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email: "  Ada@Example.COM ", Username: " ada ", Password: "secret1",
	})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, "ada", user.Username)
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), user.RecoveryCode)
	require.NotEqual(t, "secret1", user.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.c", Username: "a"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@b.c", Username: "a", Password: "123"})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "at least 6")
}

func TestRegisterDuplicates(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "ada@example.com", "ada")

	_, err := svc.Register(context.Background(), RegisterInput{Email: "ADA@example.com", Username: "other", Password: "secret1"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "new@example.com", Username: "ada", Password: "secret1"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "ada@example.com", "Ada")
	ctx := context.Background()

	user, err := svc.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "Ada", user.Username)
	require.Nil(t, user.AvatarURL)

	_, err = svc.Login(ctx, "ada", "secret1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "secret1")
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateUsernameAndAvatar(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "ada@example.com", "ada")
	register(t, svc, "bob@example.com", "bob")
	ctx := context.Background()

	_, err := svc.Update(ctx, UpdateInput{Email: "ada@example.com", NewUsername: "bob"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	avatar := "data:image/png;base64,AAAA"
	user, err := svc.Update(ctx, UpdateInput{Email: "ada@example.com", NewUsername: "lovelace", AvatarURL: &avatar, AvatarSet: true})
	require.NoError(t, err)
	require.Equal(t, "lovelace", user.Username)
	require.NotNil(t, user.AvatarURL)
	require.Equal(t, avatar, *user.AvatarURL)

	user, err = svc.Update(ctx, UpdateInput{Email: "ada@example.com"})
	require.NoError(t, err)
	require.NotNil(t, user.AvatarURL, "avatar untouched when not provided")

	user, err = svc.Update(ctx, UpdateInput{Email: "ada@example.com", AvatarSet: true})
	require.NoError(t, err)
	require.Nil(t, user.AvatarURL)
}

func TestUpdatePasswordRequiresRecoveryCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	created, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Username: "ada", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateInput{Email: "ada@example.com", NewPassword: "newsecret", RecoveryCode: "000000x"})
	require.ErrorIs(t, err, ErrInvalidRecoveryCode)

	_, err = svc.Update(ctx, UpdateInput{Email: "ada@example.com", NewPassword: "newsecret", RecoveryCode: created.RecoveryCode})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada", "newsecret")
	require.NoError(t, err)
}

func TestUpdateUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Update(context.Background(), UpdateInput{Email: "ghost@example.com"})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Update(context.Background(), UpdateInput{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUsernamesAreCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice@example.com", "Alice")

	_, err := svc.Register(ctx, RegisterInput{Email: "other@example.com", Username: "alice", Password: "otherpw"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	for _, id := range []string{"Alice", "alice", "ALICE"} {
		user, err := svc.Login(ctx, id, "secret1")
		require.NoError(t, err, id)
		require.Equal(t, "alice@example.com", user.Email)
	}

	register(t, svc, "bob@example.com", "bob")
	_, err = svc.Update(ctx, UpdateInput{Email: "bob@example.com", NewUsername: "aLiCe"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestInsertConflictMapsToTakenErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	register(t, svc, "ada@example.com", "ada")

	// Writes that bypass the existence checks, as a concurrent registration would.
	_, err := svc.db.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, recovery_code) VALUES (?, ?, 'x', '000000')`,
		"ada@example.com", "someone")
	require.ErrorIs(t, constraintError(err, "insert user"), ErrEmailTaken)

	_, err = svc.db.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, recovery_code) VALUES (?, ?, 'x', '000000')`,
		"new@example.com", "ADA")
	require.ErrorIs(t, constraintError(err, "insert user"), ErrUsernameTaken)
}
