package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createSession = `
INSERT INTO sessions (guardian_id, refresh_token, user_agent, ip, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, guardian_id, refresh_token, user_agent, ip, expires_at, created_at
`

// CreateSessionParams captures the fields for a new refresh session.
type CreateSessionParams struct {
	GuardianID   pgtype.UUID
	RefreshToken string
	UserAgent    pgtype.Text
	Ip           pgtype.Text
	ExpiresAt    pgtype.Timestamptz
}

// CreateSession persists a refresh session with a hashed token.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, createSession, arg.GuardianID, arg.RefreshToken, arg.UserAgent, arg.Ip, arg.ExpiresAt)
	var s Session
	err := row.Scan(&s.ID, &s.GuardianID, &s.RefreshToken, &s.UserAgent, &s.Ip, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const getSessionByToken = `
SELECT id, guardian_id, refresh_token, user_agent, ip, expires_at, created_at
FROM sessions
WHERE refresh_token = $1
`

// GetSessionByToken looks up a session by hashed refresh token.
func (q *Queries) GetSessionByToken(ctx context.Context, refreshToken string) (Session, error) {
	row := q.db.QueryRow(ctx, getSessionByToken, refreshToken)
	var s Session
	err := row.Scan(&s.ID, &s.GuardianID, &s.RefreshToken, &s.UserAgent, &s.Ip, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const rotateSessionToken = `
UPDATE sessions
SET refresh_token = $2, expires_at = $3
WHERE id = $1
RETURNING id, guardian_id, refresh_token, user_agent, ip, expires_at, created_at
`

// RotateSessionTokenParams captures a refresh token rotation.
type RotateSessionTokenParams struct {
	ID           pgtype.UUID
	RefreshToken string
	ExpiresAt    pgtype.Timestamptz
}

// RotateSessionToken replaces the hashed token on an existing session.
func (q *Queries) RotateSessionToken(ctx context.Context, arg RotateSessionTokenParams) (Session, error) {
	row := q.db.QueryRow(ctx, rotateSessionToken, arg.ID, arg.RefreshToken, arg.ExpiresAt)
	var s Session
	err := row.Scan(&s.ID, &s.GuardianID, &s.RefreshToken, &s.UserAgent, &s.Ip, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const deleteSessionByToken = `
DELETE FROM sessions WHERE refresh_token = $1
`

// DeleteSessionByToken revokes a session by hashed refresh token.
func (q *Queries) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	_, err := q.db.Exec(ctx, deleteSessionByToken, refreshToken)
	return err
}

const deleteSessionsByGuardian = `
DELETE FROM sessions WHERE guardian_id = $1
`

// DeleteSessionsByGuardian revokes all sessions for a guardian.
func (q *Queries) DeleteSessionsByGuardian(ctx context.Context, guardianID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, deleteSessionsByGuardian, guardianID)
	return err
}
