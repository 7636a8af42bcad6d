package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createGuardian = `
INSERT INTO guardians (name, email, password_hash, roles)
VALUES ($1, $2, $3, $4)
RETURNING id, name, email, password_hash, roles, created_at, updated_at
`

// CreateGuardianParams captures the fields for a new guardian account.
type CreateGuardianParams struct {
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
}

// CreateGuardian inserts a guardian account.
func (q *Queries) CreateGuardian(ctx context.Context, arg CreateGuardianParams) (Guardian, error) {
	row := q.db.QueryRow(ctx, createGuardian, arg.Name, arg.Email, arg.PasswordHash, arg.Roles)
	var g Guardian
	err := row.Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Roles, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

const getGuardianByEmail = `
SELECT id, name, email, password_hash, roles, created_at, updated_at
FROM guardians
WHERE email = $1
`

// GetGuardianByEmail fetches a guardian by normalized email.
func (q *Queries) GetGuardianByEmail(ctx context.Context, email string) (Guardian, error) {
	row := q.db.QueryRow(ctx, getGuardianByEmail, email)
	var g Guardian
	err := row.Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Roles, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

const getGuardianByID = `
SELECT id, name, email, password_hash, roles, created_at, updated_at
FROM guardians
WHERE id = $1
`

// GetGuardianByID fetches a guardian by identifier.
func (q *Queries) GetGuardianByID(ctx context.Context, id pgtype.UUID) (Guardian, error) {
	row := q.db.QueryRow(ctx, getGuardianByID, id)
	var g Guardian
	err := row.Scan(&g.ID, &g.Name, &g.Email, &g.PasswordHash, &g.Roles, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

const createStudent = `
INSERT INTO students (guardian_id, name)
VALUES ($1, $2)
RETURNING id, guardian_id, name, created_at
`

// CreateStudentParams captures the fields for a new student.
type CreateStudentParams struct {
	GuardianID pgtype.UUID
	Name       string
}

// CreateStudent inserts a student under a guardian.
func (q *Queries) CreateStudent(ctx context.Context, arg CreateStudentParams) (Student, error) {
	row := q.db.QueryRow(ctx, createStudent, arg.GuardianID, arg.Name)
	var s Student
	err := row.Scan(&s.ID, &s.GuardianID, &s.Name, &s.CreatedAt)
	return s, err
}

const listStudentsByGuardian = `
SELECT id, guardian_id, name, created_at
FROM students
WHERE guardian_id = $1
ORDER BY created_at, id
`

// ListStudentsByGuardian returns the guardian's students in enrollment order.
func (q *Queries) ListStudentsByGuardian(ctx context.Context, guardianID pgtype.UUID) ([]Student, error) {
	rows, err := q.db.Query(ctx, listStudentsByGuardian, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.GuardianID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
