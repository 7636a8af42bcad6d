package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/mizuki-dev/backend-juku/internal/db"
)

type fakeQuerier struct {
	guardians map[string]db.Guardian
	sessions  map[string]db.Session
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		guardians: map[string]db.Guardian{},
		sessions:  map[string]db.Session{},
	}
}

func pgUUID(t *testing.T) pgtype.UUID {
	t.Helper()
	var id pgtype.UUID
	require.NoError(t, id.Scan(uuid.NewString()))
	return id
}

func (f *fakeQuerier) CreateGuardian(_ context.Context, arg db.CreateGuardianParams) (db.Guardian, error) {
	g := db.Guardian{
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Roles:        arg.Roles,
	}
	f.guardians[arg.Email] = g
	return g, nil
}

func (f *fakeQuerier) GetGuardianByEmail(_ context.Context, email string) (db.Guardian, error) {
	g, ok := f.guardians[email]
	if !ok {
		return db.Guardian{}, errors.New("no rows")
	}
	return g, nil
}

func (f *fakeQuerier) GetGuardianByID(_ context.Context, id pgtype.UUID) (db.Guardian, error) {
	for _, g := range f.guardians {
		if g.ID == id {
			return g, nil
		}
	}
	return db.Guardian{}, errors.New("no rows")
}

func (f *fakeQuerier) ListStudentsByGuardian(context.Context, pgtype.UUID) ([]db.Student, error) {
	return nil, nil
}

func (f *fakeQuerier) CreateSession(_ context.Context, arg db.CreateSessionParams) (db.Session, error) {
	var id pgtype.UUID
	if err := id.Scan(uuid.NewString()); err != nil {
		return db.Session{}, err
	}
	s := db.Session{
		ID:           id,
		GuardianID:   arg.GuardianID,
		RefreshToken: arg.RefreshToken,
		ExpiresAt:    arg.ExpiresAt,
	}
	f.sessions[arg.RefreshToken] = s
	return s, nil
}

func (f *fakeQuerier) GetSessionByToken(_ context.Context, refreshToken string) (db.Session, error) {
	s, ok := f.sessions[refreshToken]
	if !ok {
		return db.Session{}, errors.New("no rows")
	}
	return s, nil
}

func (f *fakeQuerier) RotateSessionToken(_ context.Context, arg db.RotateSessionTokenParams) (db.Session, error) {
	for token, s := range f.sessions {
		if s.ID == arg.ID {
			delete(f.sessions, token)
			s.RefreshToken = arg.RefreshToken
			s.ExpiresAt = arg.ExpiresAt
			f.sessions[arg.RefreshToken] = s
			return s, nil
		}
	}
	return db.Session{}, errors.New("no rows")
}

func (f *fakeQuerier) DeleteSessionByToken(_ context.Context, refreshToken string) error {
	delete(f.sessions, refreshToken)
	return nil
}

func (f *fakeQuerier) DeleteSessionsByGuardian(_ context.Context, guardianID pgtype.UUID) error {
	for token, s := range f.sessions {
		if s.GuardianID == guardianID {
			delete(f.sessions, token)
		}
	}
	return nil
}

func newTestService(t *testing.T, q Querier) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Queries:         q,
		Secret:          "test-secret-not-for-production",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	return svc
}

func seedGuardian(t *testing.T, q *fakeQuerier, email, password string, roles []string) pgtype.UUID {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	id := pgUUID(t)
	q.guardians[email] = db.Guardian{
		ID:           id,
		Name:         "Test Guardian",
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
	}
	return id
}

func TestLoginAndParseAccessToken(t *testing.T) {
	q := newFakeQuerier()
	id := seedGuardian(t, q, "parent@example.com", "correct-horse", []string{"guardian"})
	svc := newTestService(t, q)

	result, err := svc.Login(context.Background(), "Parent@Example.com", "correct-horse", "ua", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	subject, roles, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uuidString(id), subject)
	require.Equal(t, []string{"guardian"}, roles)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	q := newFakeQuerier()
	seedGuardian(t, q, "parent@example.com", "correct-horse", nil)
	svc := newTestService(t, q)

	_, err := svc.Login(context.Background(), "parent@example.com", "wrong", "", "")
	require.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	q := newFakeQuerier()
	seedGuardian(t, q, "parent@example.com", "correct-horse", nil)
	svc := newTestService(t, q)

	login, err := svc.Login(context.Background(), "parent@example.com", "correct-horse", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The old token is gone after rotation.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)

	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	q := newFakeQuerier()
	seedGuardian(t, q, "parent@example.com", "correct-horse", nil)
	svc := newTestService(t, q)

	login, err := svc.Login(context.Background(), "parent@example.com", "correct-horse", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	require.Error(t, err)
	require.Empty(t, q.sessions)
}

func TestLogoutDeletesSession(t *testing.T) {
	q := newFakeQuerier()
	seedGuardian(t, q, "parent@example.com", "correct-horse", nil)
	svc := newTestService(t, q)

	login, err := svc.Login(context.Background(), "parent@example.com", "correct-horse", "", "")
	require.NoError(t, err)
	require.Len(t, q.sessions, 1)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))
	require.Empty(t, q.sessions)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newFakeQuerier())

	_, err := svc.Register(context.Background(), "", "a@b.com", "password123", nil)
	require.Error(t, err)

	_, err = svc.Register(context.Background(), "Name", "a@b.com", "short", nil)
	require.Error(t, err)

	g, err := svc.Register(context.Background(), "Name", "A@B.com", "password123", nil)
	require.NoError(t, err)
	require.Equal(t, "a@b.com", g.Email)
	require.Equal(t, []string{"guardian"}, g.Roles)
}
