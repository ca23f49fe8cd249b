package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
)

const statusInactive = "inactive"

var (
	// ErrAccountNotFound is returned for unknown account ids.
	ErrAccountNotFound = common.NewAppError("ACCOUNT_NOT_FOUND", "account not found", http.StatusNotFound, nil)
	// ErrSelfLockout blocks admins from deactivating or demoting themselves.
	ErrSelfLockout = common.NewAppError("SELF_LOCKOUT", "you cannot remove your own admin access", http.StatusUnprocessableEntity, nil)
)

type accountQueries interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	ListUsers(ctx context.Context, arg db.ListUsersParams) ([]db.User, error)
	CountUsers(ctx context.Context, arg db.CountUsersParams) (int64, error)
	CreateAccount(ctx context.Context, arg db.CreateAccountParams) (db.User, error)
	UpdateAccount(ctx context.Context, arg db.UpdateAccountParams) (db.User, error)
	UpdateUserStatus(ctx context.Context, arg db.UpdateUserStatusParams) (db.User, error)
}

// Role describes an assignable account role.
type Role struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

var roles = []Role{
	{Name: RoleAdmin, Label: "Administrator"},
	{Name: RoleCustomer, Label: "Customer"},
}

// AccountInput is the payload of POST /admin/accounts.
type AccountInput struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Role     string `json:"role" validate:"required,oneof=admin customer"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// AccountUpdate is the payload of PATCH /admin/accounts/{id}. A blank
// password keeps the current one.
type AccountUpdate struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Role     string `json:"role" validate:"required,oneof=admin customer"`
}

// AccountQuery filters the account list.
type AccountQuery struct {
	Role    string
	Status  string
	Keyword string
	Page    int
	PerPage int
}

// AccountPage is one page of accounts.
type AccountPage struct {
	Items      []User            `json:"items"`
	Pagination common.Pagination `json:"pagination"`
}

// AccountService manages staff and customer accounts from the back office.
type AccountService struct {
	Queries accountQueries
	// Params overrides the argon2id cost; nil uses argon2id.DefaultParams.
	Params *argon2id.Params
}

// Roles lists the roles an account can be given.
func (s *AccountService) Roles() []Role {
	return append([]Role(nil), roles...)
}

// ParseAccountQuery reads the role, status and keyword filters plus
// pagination from the query string.
func ParseAccountQuery(r *http.Request) (AccountQuery, error) {
	values := r.URL.Query()
	q := AccountQuery{
		Role:    strings.TrimSpace(values.Get("role")),
		Status:  strings.TrimSpace(values.Get("status")),
		Keyword: strings.TrimSpace(values.Get("keyword")),
	}
	q.Page, q.PerPage = common.ParsePagination(r, 20, 100)
	switch q.Role {
	case "", RoleAdmin, RoleCustomer:
	default:
		return q, invalidField("role", "role must be admin or customer")
	}
	switch q.Status {
	case "", statusActive, statusInactive:
	default:
		return q, invalidField("status", "status must be active or inactive")
	}
	return q, nil
}

// List returns accounts newest first.
func (s *AccountService) List(ctx context.Context, q AccountQuery) (AccountPage, error) {
	if err := s.ready(); err != nil {
		return AccountPage{}, err
	}
	role, status, keyword := db.Text(q.Role), db.Text(q.Status), db.Text(q.Keyword)
	total, err := s.Queries.CountUsers(ctx, db.CountUsersParams{Role: role, Status: status, Keyword: keyword})
	if err != nil {
		return AccountPage{}, fmt.Errorf("count accounts: %w", err)
	}
	pagination := common.NewPagination(q.Page, q.PerPage, total)
	rows, err := s.Queries.ListUsers(ctx, db.ListUsersParams{
		Role:    role,
		Status:  status,
		Keyword: keyword,
		Limit:   int32(q.PerPage),
		Offset:  int32(pagination.Offset()),
	})
	if err != nil {
		return AccountPage{}, fmt.Errorf("list accounts: %w", err)
	}
	items := make([]User, 0, len(rows))
	for _, row := range rows {
		items = append(items, toUser(row))
	}
	return AccountPage{Items: items, Pagination: pagination}, nil
}

// Get returns one account.
func (s *AccountService) Get(ctx context.Context, id string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return User{}, ErrAccountNotFound
	}
	row, err := s.Queries.GetUserByID(ctx, pgID)
	if err != nil {
		return User{}, accountErr("get account", err)
	}
	return toUser(row), nil
}

// Create adds an account with the given role. Emails are unique
// regardless of case.
func (s *AccountService) Create(ctx context.Context, in AccountInput) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	status := in.Status
	if status == "" {
		status = statusActive
	}
	row, err := s.Queries.CreateAccount(ctx, db.CreateAccountParams{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        db.Text(in.Phone),
		Role:         in.Role,
		Status:       status,
	})
	if err != nil {
		return User{}, accountErr("create account", err)
	}
	return toUser(row), nil
}

// Update overwrites the editable fields of an account. actorID is the admin
// performing the change.
func (s *AccountService) Update(ctx context.Context, actorID, id string, in AccountUpdate) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return User{}, err
	}
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return User{}, ErrAccountNotFound
	}
	if sameAccount(actorID, pgID) && in.Role != RoleAdmin {
		return User{}, ErrSelfLockout
	}
	params := db.UpdateAccountParams{
		ID:       pgID,
		Email:    normalizeEmail(in.Email),
		FullName: strings.TrimSpace(in.FullName),
		Phone:    db.Text(in.Phone),
		Role:     in.Role,
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return User{}, err
		}
		params.PasswordHash = pgtype.Text{String: hash, Valid: true}
	}
	row, err := s.Queries.UpdateAccount(ctx, params)
	if err != nil {
		return User{}, accountErr("update account", err)
	}
	return toUser(row), nil
}

// SetStatus activates or deactivates an account. Inactive accounts can no
// longer log in.
func (s *AccountService) SetStatus(ctx context.Context, actorID, id, status string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if status != statusActive && status != statusInactive {
		return User{}, invalidField("status", "status must be active or inactive")
	}
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return User{}, ErrAccountNotFound
	}
	if sameAccount(actorID, pgID) && status == statusInactive {
		return User{}, ErrSelfLockout
	}
	row, err := s.Queries.UpdateUserStatus(ctx, db.UpdateUserStatusParams{ID: pgID, Status: status})
	if err != nil {
		return User{}, accountErr("update account status", err)
	}
	return toUser(row), nil
}

func (s *AccountService) ready() error {
	if s == nil || s.Queries == nil {
		return errors.New("auth: account service not configured")
	}
	return nil
}

func (s *AccountService) hash(password string) (string, error) {
	params := s.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	hash, err := argon2id.CreateHash(password, params)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func sameAccount(actorID string, id pgtype.UUID) bool {
	actor, err := db.ParseUUID(actorID)
	return err == nil && actor.Bytes == id.Bytes
}

func accountErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func invalidField(field, msg string) error {
	appErr := common.NewAppError("VALIDATION_ERROR", msg, http.StatusUnprocessableEntity, nil)
	appErr.Details = map[string]string{field: msg}
	return appErr
}
