package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
)

type queries interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	UpdateUserProfile(ctx context.Context, arg db.UpdateUserProfileParams) (db.User, error)
}

// Profile is the account view shown on the my-account page. The address is
// used to prefill checkout.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileInput is the payload of PATCH /api/v1/users/me. Blank phone or
// address clears the stored value.
type ProfileInput struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Address  string `json:"address" validate:"omitempty,max=500"`
}

// Service manages the signed-in user's profile.
type Service struct {
	queries queries
}

// NewService constructs a profile service.
func NewService(q queries) *Service {
	return &Service{queries: q}
}

var errUnauthorized = common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, nil)

// Get returns the profile of userID.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return Profile{}, errUnauthorized
	}
	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, errUnauthorized
		}
		return Profile{}, fmt.Errorf("get user: %w", err)
	}
	return toProfile(u), nil
}

// Update overwrites the editable profile fields.
func (s *Service) Update(ctx context.Context, userID string, in ProfileInput) (Profile, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return Profile{}, errUnauthorized
	}
	in.FullName = strings.TrimSpace(in.FullName)
	if err := common.ValidateStruct(in); err != nil {
		return Profile{}, err
	}
	u, err := s.queries.UpdateUserProfile(ctx, db.UpdateUserProfileParams{
		ID:       id,
		FullName: in.FullName,
		Phone:    db.Text(in.Phone),
		Address:  db.Text(in.Address),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, errUnauthorized
		}
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return toProfile(u), nil
}

func toProfile(u db.User) Profile {
	return Profile{
		ID:        db.UUIDString(u.ID),
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     db.TextPtr(u.Phone),
		Address:   db.TextPtr(u.Address),
		UpdatedAt: u.UpdatedAt.Time,
	}
}
