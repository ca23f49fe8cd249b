package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/app"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

type categorySeed struct {
	Name     string
	Slug     string
	Parent   string
	Position int32
}

type productSeed struct {
	Title    string
	Slug     string
	Category string
	Price    int64
	Discount int32
	Stock    int32
	Featured bool
}

var categories = []categorySeed{
	{Name: "Fashion", Slug: "fashion", Position: 1},
	{Name: "Pakaian Pria", Slug: "pakaian-pria", Parent: "fashion", Position: 1},
	{Name: "Pakaian Wanita", Slug: "pakaian-wanita", Parent: "fashion", Position: 2},
	{Name: "Sepatu", Slug: "sepatu", Parent: "fashion", Position: 3},
	{Name: "Elektronik", Slug: "elektronik", Position: 2},
	{Name: "Aksesoris Ponsel", Slug: "aksesoris-ponsel", Parent: "elektronik", Position: 1},
	{Name: "Rumah Tangga", Slug: "rumah-tangga", Position: 3},
}

var products = []productSeed{
	{Title: "Kaos Polos Hitam", Slug: "kaos-polos-hitam", Category: "pakaian-pria", Price: 85000, Discount: 10, Stock: 120, Featured: true},
	{Title: "Kemeja Flanel", Slug: "kemeja-flanel", Category: "pakaian-pria", Price: 189000, Discount: 15, Stock: 40},
	{Title: "Blouse Linen", Slug: "blouse-linen", Category: "pakaian-wanita", Price: 159000, Stock: 35, Featured: true},
	{Title: "Gamis Katun", Slug: "gamis-katun", Category: "pakaian-wanita", Price: 249000, Discount: 20, Stock: 25},
	{Title: "Sepatu Kanvas", Slug: "sepatu-kanvas", Category: "sepatu", Price: 200000, Stock: 60},
	{Title: "Sepatu Lari", Slug: "sepatu-lari", Category: "sepatu", Price: 450000, Discount: 25, Stock: 18, Featured: true},
	{Title: "Kabel USB-C 1m", Slug: "kabel-usb-c", Category: "aksesoris-ponsel", Price: 35000, Stock: 300},
	{Title: "Power Bank 10000mAh", Slug: "power-bank-10000", Category: "aksesoris-ponsel", Price: 225000, Discount: 5, Stock: 75},
	{Title: "Set Panci Anti Lengket", Slug: "set-panci", Category: "rumah-tangga", Price: 375000, Discount: 30, Stock: 12},
	{Title: "Sprei Katun Queen", Slug: "sprei-katun-queen", Category: "rumah-tangga", Price: 299000, Stock: 20},
}

func main() {
	_ = godotenv.Load()

	adminEmail := flag.String("admin-email", envOr("SEED_ADMIN_EMAIL", "admin@toko.local"), "admin account email")
	adminPassword := flag.String("admin-password", envOr("SEED_ADMIN_PASSWORD", "admin12345"), "admin account password")
	withCustomer := flag.Bool("customer", true, "also create a demo customer account")
	flag.Parse()

	logger := obs.NewLogger(envOr("OBS_LOG_FORMAT", "console"), "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	q := db.New(pool)

	if err := seedAccounts(ctx, q, logger, *adminEmail, *adminPassword, *withCustomer); err != nil {
		logger.Fatal().Err(err).Msg("seed accounts")
	}
	categoryIDs, err := seedCategories(ctx, q)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed categories")
	}
	if err := seedProducts(ctx, q, categoryIDs); err != nil {
		logger.Fatal().Err(err).Msg("seed products")
	}
	logger.Info().Int("categories", len(categoryIDs)).Int("products", len(products)).Msg("seeding completed")
}

func seedAccounts(ctx context.Context, q *db.Queries, logger zerolog.Logger, email, password string, withCustomer bool) error {
	hash, err := app.HashPassword(password)
	if err != nil {
		return err
	}
	admin, err := q.UpsertAdminUser(ctx, db.UpsertAdminUserParams{Email: email, PasswordHash: hash, FullName: "Administrator"})
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	logger.Info().Str("email", admin.Email).Msg("admin ready")

	if !withCustomer {
		return nil
	}
	hash, err = app.HashPassword("pelanggan123")
	if err != nil {
		return err
	}
	_, err = q.CreateUser(ctx, db.CreateUserParams{
		Email:        "pelanggan@toko.local",
		PasswordHash: hash,
		FullName:     "Pelanggan Demo",
		Phone:        db.Text("081234567890"),
		Role:         "customer",
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil
	}
	return err
}

// seedCategories upserts parents before children; the slice is ordered that way.
func seedCategories(ctx context.Context, q *db.Queries) (map[string]pgtype.UUID, error) {
	ids := make(map[string]pgtype.UUID, len(categories))
	for _, c := range categories {
		var parent pgtype.UUID
		if c.Parent != "" {
			id, ok := ids[c.Parent]
			if !ok {
				return nil, fmt.Errorf("category %s: parent %s not seeded", c.Slug, c.Parent)
			}
			parent = id
		}
		row, err := q.UpsertCategoryBySlug(ctx, db.UpsertCategoryBySlugParams{
			Name:     c.Name,
			Slug:     c.Slug,
			ParentID: parent,
			Position: c.Position,
		})
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c.Slug, err)
		}
		ids[c.Slug] = row.ID
	}
	return ids, nil
}

func seedProducts(ctx context.Context, q *db.Queries, categoryIDs map[string]pgtype.UUID) error {
	for i, p := range products {
		_, err := q.UpsertProductBySlug(ctx, db.UpsertProductBySlugParams{
			Title:              p.Title,
			Slug:               p.Slug,
			CategoryID:         categoryIDs[p.Category],
			Price:              pgtype.Int8{Int64: p.Price, Valid: true},
			DiscountPercentage: pgtype.Int4{Int32: p.Discount, Valid: true},
			Stock:              p.Stock,
			Thumbnail:          db.Text(fmt.Sprintf("https://picsum.photos/seed/%s/400/400", p.Slug)),
			Featured:           p.Featured,
			Position:           int32(i + 1),
		})
		if err != nil {
			return fmt.Errorf("product %s: %w", p.Slug, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
