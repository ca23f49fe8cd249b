package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, password_hash, full_name, phone, address, role, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.FullName,
		&i.Phone,
		&i.Address,
		&i.Role,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, password_hash, full_name, phone, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email        string      `json:"email"`
	PasswordHash string      `json:"password_hash"`
	FullName     string      `json:"full_name"`
	Phone        pgtype.Text `json:"phone"`
	Role         string      `json:"role"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.Email, arg.PasswordHash, arg.FullName, arg.Phone, arg.Role)
	return scanUser(row)
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const updateUserProfile = `-- name: UpdateUserProfile :one
UPDATE users
SET full_name = $2, phone = $3, address = $4, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserProfileParams struct {
	ID       pgtype.UUID `json:"id"`
	FullName string      `json:"full_name"`
	Phone    pgtype.Text `json:"phone"`
	Address  pgtype.Text `json:"address"`
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUserProfile, arg.ID, arg.FullName, arg.Phone, arg.Address)
	return scanUser(row)
}

const upsertAdminUser = `-- name: UpsertAdminUser :one
INSERT INTO users (email, password_hash, full_name, role)
VALUES ($1, $2, $3, 'admin')
ON CONFLICT (email) DO UPDATE
SET password_hash = EXCLUDED.password_hash, role = 'admin', updated_at = now()
RETURNING ` + userColumns

type UpsertAdminUserParams struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	FullName     string `json:"full_name"`
}

func (q *Queries) UpsertAdminUser(ctx context.Context, arg UpsertAdminUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, upsertAdminUser, arg.Email, arg.PasswordHash, arg.FullName))
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + `
FROM users
WHERE ($1::text IS NULL OR role = $1::text)
  AND ($2::text IS NULL OR status = $2::text)
  AND ($3::text IS NULL OR email ILIKE '%' || $3::text || '%' OR full_name ILIKE '%' || $3::text || '%')
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`

type ListUsersParams struct {
	Role    pgtype.Text `json:"role"`
	Status  pgtype.Text `json:"status"`
	Keyword pgtype.Text `json:"keyword"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, arg.Role, arg.Status, arg.Keyword, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countUsers = `-- name: CountUsers :one
SELECT count(*)
FROM users
WHERE ($1::text IS NULL OR role = $1::text)
  AND ($2::text IS NULL OR status = $2::text)
  AND ($3::text IS NULL OR email ILIKE '%' || $3::text || '%' OR full_name ILIKE '%' || $3::text || '%')`

type CountUsersParams struct {
	Role    pgtype.Text `json:"role"`
	Status  pgtype.Text `json:"status"`
	Keyword pgtype.Text `json:"keyword"`
}

func (q *Queries) CountUsers(ctx context.Context, arg CountUsersParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countUsers, arg.Role, arg.Status, arg.Keyword).Scan(&count)
	return count, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO users (email, password_hash, full_name, phone, role, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

type CreateAccountParams struct {
	Email        string      `json:"email"`
	PasswordHash string      `json:"password_hash"`
	FullName     string      `json:"full_name"`
	Phone        pgtype.Text `json:"phone"`
	Role         string      `json:"role"`
	Status       string      `json:"status"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (User, error) {
	row := q.db.QueryRow(ctx, createAccount, arg.Email, arg.PasswordHash, arg.FullName, arg.Phone, arg.Role, arg.Status)
	return scanUser(row)
}

const updateAccount = `-- name: UpdateAccount :one
UPDATE users
SET email = $2,
    full_name = $3,
    phone = $4,
    role = $5,
    password_hash = COALESCE($6, password_hash),
    updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateAccountParams struct {
	ID       pgtype.UUID `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Phone    pgtype.Text `json:"phone"`
	Role     string      `json:"role"`
	// PasswordHash keeps the stored hash when NULL.
	PasswordHash pgtype.Text `json:"password_hash"`
}

func (q *Queries) UpdateAccount(ctx context.Context, arg UpdateAccountParams) (User, error) {
	row := q.db.QueryRow(ctx, updateAccount, arg.ID, arg.Email, arg.FullName, arg.Phone, arg.Role, arg.PasswordHash)
	return scanUser(row)
}

const updateUserStatus = `-- name: UpdateUserStatus :one
UPDATE users SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserStatusParams struct {
	ID     pgtype.UUID `json:"id"`
	Status string      `json:"status"`
}

func (q *Queries) UpdateUserStatus(ctx context.Context, arg UpdateUserStatusParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUserStatus, arg.ID, arg.Status))
}
