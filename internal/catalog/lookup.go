package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type productGetter interface {
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
}

// Lookup resolves products by id for pricing. Records are read through a
// Redis cache and concurrent misses for one id share a single query.
// Soft-deleted products are returned with Deleted set so order history can
// still show them; live cart pricing rejects them.
type Lookup struct {
	queries productGetter
	cache   *Cache
	group   singleflight.Group
	logger  zerolog.Logger
}

// NewLookup constructs a Lookup. cache may be nil.
func NewLookup(queries productGetter, cache *Cache, logger zerolog.Logger) *Lookup {
	return &Lookup{queries: queries, cache: cache, logger: logger}
}

func productCacheKey(id string) string {
	return "product:id:" + id
}

// ProductByID implements pricing.ProductLookup.
func (l *Lookup) ProductByID(ctx context.Context, id string) (pricing.Product, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return pricing.Product{}, fmt.Errorf("product id %q: %w", id, pricing.ErrProductNotFound)
	}
	key := productCacheKey(db.UUIDString(pgID))

	var cached pricing.Product
	if ok, err := l.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		obs.RecordProductLookup("cache")
		return cached, nil
	} else if err != nil {
		l.logger.Warn().Err(err).Str("product_id", id).Msg("product_cache_read_failed")
	}

	// The flight is shared by every waiter, so one caller's cancellation
	// must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		row, err := l.queries.GetProductByID(flightCtx, pgID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				obs.RecordProductLookup("miss")
				return pricing.Product{}, pricing.ErrProductNotFound
			}
			return pricing.Product{}, err
		}
		obs.RecordProductLookup("db")
		product := toPricingProduct(row)
		if err := l.cache.SetJSON(flightCtx, key, product); err != nil {
			l.logger.Warn().Err(err).Str("product_id", id).Msg("product_cache_write_failed")
		}
		return product, nil
	})
	select {
	case <-ctx.Done():
		return pricing.Product{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return pricing.Product{}, res.Err
		}
		return res.Val.(pricing.Product), nil
	}
}

// Invalidate drops cached records so the next lookup reads the database.
func (l *Lookup) Invalidate(ctx context.Context, ids ...string) {
	if l == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		// Cache entries are keyed by the canonical form written in ProductByID.
		if pgID, err := db.ParseUUID(id); err == nil {
			id = db.UUIDString(pgID)
		}
		keys = append(keys, productCacheKey(id))
	}
	if err := l.cache.Delete(ctx, keys...); err != nil {
		l.logger.Warn().Err(err).Strs("product_ids", ids).Msg("product_cache_invalidate_failed")
	}
}

func toPricingProduct(row db.Product) pricing.Product {
	p := pricing.Product{
		ID:      db.UUIDString(row.ID),
		Title:   row.Title,
		Slug:    row.Slug,
		Stock:   row.Stock,
		Status:  row.Status,
		Deleted: row.Deleted,
	}
	if row.Thumbnail.Valid {
		p.Thumbnail = row.Thumbnail.String
	}
	if row.Price.Valid {
		price := row.Price.Int64
		p.Price = &price
	}
	if row.DiscountPercentage.Valid {
		pct := row.DiscountPercentage.Int32
		p.DiscountPercentage = &pct
	}
	return p
}
