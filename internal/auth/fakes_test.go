package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

const testSecret = "super-secret-key"

var cheapHash = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeQueries struct {
	mu    sync.Mutex
	users map[string]db.User
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{users: map[string]db.User{}}
}

func (f *fakeQueries) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return db.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	u := db.User{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		FullName:     arg.FullName,
		Phone:        arg.Phone,
		Role:         arg.Role,
		Status:       statusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[db.UUIDString(u.ID)] = u
	return u, nil
}

func (f *fakeQueries) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQueries) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[db.UUIDString(id)]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeQueries) matching(role, status, keyword pgtype.Text) []db.User {
	var out []db.User
	for _, u := range f.users {
		if role.Valid && u.Role != role.String {
			continue
		}
		if status.Valid && u.Status != status.String {
			continue
		}
		if keyword.Valid {
			kw := strings.ToLower(keyword.String)
			if !strings.Contains(strings.ToLower(u.Email), kw) && !strings.Contains(strings.ToLower(u.FullName), kw) {
				continue
			}
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (f *fakeQueries) ListUsers(_ context.Context, arg db.ListUsersParams) ([]db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(arg.Role, arg.Status, arg.Keyword)
	start := min(int(arg.Offset), len(all))
	end := min(start+int(arg.Limit), len(all))
	return all[start:end], nil
}

func (f *fakeQueries) CountUsers(_ context.Context, arg db.CountUsersParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.matching(arg.Role, arg.Status, arg.Keyword))), nil
}

func (f *fakeQueries) emailTaken(email string, except pgtype.UUID) bool {
	for _, u := range f.users {
		if u.ID.Bytes != except.Bytes && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (f *fakeQueries) CreateAccount(_ context.Context, arg db.CreateAccountParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailTaken(arg.Email, pgtype.UUID{}) {
		return db.User{}, &pgconn.PgError{Code: "23505"}
	}
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	u := db.User{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		FullName:     arg.FullName,
		Phone:        arg.Phone,
		Role:         arg.Role,
		Status:       arg.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[db.UUIDString(u.ID)] = u
	return u, nil
}

func (f *fakeQueries) UpdateAccount(_ context.Context, arg db.UpdateAccountParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[db.UUIDString(arg.ID)]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	if f.emailTaken(arg.Email, arg.ID) {
		return db.User{}, &pgconn.PgError{Code: "23505"}
	}
	u.Email = arg.Email
	u.FullName = arg.FullName
	u.Phone = arg.Phone
	u.Role = arg.Role
	if arg.PasswordHash.Valid {
		u.PasswordHash = arg.PasswordHash.String
	}
	f.users[db.UUIDString(u.ID)] = u
	return u, nil
}

func (f *fakeQueries) UpdateUserStatus(_ context.Context, arg db.UpdateUserStatusParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[db.UUIDString(arg.ID)]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	u.Status = arg.Status
	f.users[db.UUIDString(u.ID)] = u
	return u, nil
}

func (f *fakeQueries) get(id string) db.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

// seed stores a user with the given password, role and status.
func (f *fakeQueries) seed(t *testing.T, email, password, role, status string) db.User {
	t.Helper()
	hash, err := argon2id.CreateHash(password, cheapHash)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := db.User{
		ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Email:        email,
		PasswordHash: hash,
		FullName:     "Seeded User",
		Role:         role,
		Status:       status,
	}
	f.mu.Lock()
	f.users[db.UUIDString(u.ID)] = u
	f.mu.Unlock()
	return u
}

func newTestService(t *testing.T, q *fakeQueries) *Service {
	t.Helper()
	svc, err := NewService(Config{Queries: q, Secret: testSecret, AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

// cartStore is a minimal cart.Store for login claims.
type cartStore struct {
	mu    sync.Mutex
	carts map[string]cart.Cart
}

func newCartStore() *cartStore {
	return &cartStore{carts: map[string]cart.Cart{}}
}

func (s *cartStore) CreateCart(context.Context) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cart.Cart{ID: uuid.NewString(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.carts[c.ID] = c
	return c, nil
}

func (s *cartStore) GetCart(_ context.Context, id string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[id]
	if !ok {
		return cart.Cart{}, cart.ErrNotFound
	}
	return c, nil
}

func (s *cartStore) FindCartByUser(_ context.Context, userID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.carts {
		if c.Owner() == userID {
			return c, nil
		}
	}
	return cart.Cart{}, cart.ErrNotFound
}

func (s *cartStore) AttachUser(_ context.Context, cartID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[cartID]
	if !ok {
		return cart.ErrNotFound
	}
	c.UserID = &userID
	s.carts[cartID] = c
	return nil
}

func (s *cartStore) IncrementLine(context.Context, string, string, int, int) (int, error) {
	return 0, nil
}

func (s *cartStore) SetLineQuantity(context.Context, string, string, int) error { return nil }

func (s *cartStore) RemoveLine(context.Context, string, string) error { return nil }

func (s *cartStore) ClearLines(context.Context, string) error { return nil }

func (s *cartStore) ReleaseLines(context.Context, string, []pricing.Line) error { return nil }

func userID(u db.User) string {
	return db.UUIDString(u.ID)
}
