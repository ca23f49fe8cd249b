package catalog_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/db"
)

// fakeCatalogQueries is an in-memory stand-in for the catalog statements.
type fakeCatalogQueries struct {
	mu          sync.Mutex
	categories  []db.Category
	products    map[string]db.Product
	getByIDHits int
}

func newFakeCatalogQueries(t *testing.T) *fakeCatalogQueries {
	t.Helper()
	q := &fakeCatalogQueries{products: map[string]db.Product{}}
	fashion := q.addCategory("Fashion", "fashion", pgtype.UUID{}, "active")
	shoes := q.addCategory("Shoes", "shoes", fashion.ID, "active")
	q.addCategory("Archived", "archived", pgtype.UUID{}, "inactive")

	now := time.Now()
	q.addProduct(db.Product{Title: "Kaos Hitam", Slug: "kaos-hitam", CategoryID: fashion.ID, Price: int8p(250000), DiscountPercentage: int4p(10), Featured: true, Position: 3, CreatedAt: ts(now.Add(-3 * time.Hour))})
	q.addProduct(db.Product{Title: "Sepatu Putih", Slug: "sepatu-putih", CategoryID: shoes.ID, Price: int8p(200000), Position: 2, CreatedAt: ts(now.Add(-2 * time.Hour))})
	q.addProduct(db.Product{Title: "Kaos Legacy", Slug: "kaos-legacy", CategoryID: fashion.ID, Position: 1, CreatedAt: ts(now.Add(-time.Hour))})
	q.addProduct(db.Product{Title: "Topi Lama", Slug: "topi-lama", Price: int8p(50000), Status: "inactive", Position: 4, CreatedAt: ts(now)})
	return q
}

func int8p(v int64) pgtype.Int8 { return pgtype.Int8{Int64: v, Valid: true} }
func int4p(v int32) pgtype.Int4 { return pgtype.Int4{Int32: v, Valid: true} }
func ts(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func newID() pgtype.UUID { return pgtype.UUID{Bytes: uuid.New(), Valid: true} }

func (q *fakeCatalogQueries) addCategory(name, slug string, parent pgtype.UUID, status string) db.Category {
	c := db.Category{ID: newID(), Name: name, Slug: slug, ParentID: parent, Status: status}
	q.categories = append(q.categories, c)
	return c
}

func (q *fakeCatalogQueries) addProduct(p db.Product) db.Product {
	if !p.ID.Valid {
		p.ID = newID()
	}
	if p.Status == "" {
		p.Status = "active"
	}
	q.products[db.UUIDString(p.ID)] = p
	return p
}

func (q *fakeCatalogQueries) bySlug(slug string) db.Product {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.products {
		if p.Slug == slug {
			return p
		}
	}
	return db.Product{}
}

func (q *fakeCatalogQueries) ListCategories(_ context.Context, includeInactive bool) ([]db.Category, error) {
	var out []db.Category
	for _, c := range q.categories {
		if c.Deleted || (!includeInactive && c.Status != "active") {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (q *fakeCatalogQueries) GetCategoryBySlug(_ context.Context, slug string) (db.Category, error) {
	for _, c := range q.categories {
		if c.Slug == slug && !c.Deleted {
			return c, nil
		}
	}
	return db.Category{}, pgx.ErrNoRows
}

func (q *fakeCatalogQueries) CategoryDescendantIDs(_ context.Context, id pgtype.UUID) ([]pgtype.UUID, error) {
	out := []pgtype.UUID{id}
	for i := 0; i < len(out); i++ {
		for _, c := range q.categories {
			if c.ParentID == out[i] {
				out = append(out, c.ID)
			}
		}
	}
	return out, nil
}

func (q *fakeCatalogQueries) CreateCategory(_ context.Context, arg db.CreateCategoryParams) (db.Category, error) {
	return q.addCategory(arg.Name, arg.Slug, arg.ParentID, arg.Status), nil
}

func (q *fakeCatalogQueries) filter(arg db.CountProductsParams) []db.Product {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []db.Product
	for _, p := range q.products {
		if p.Deleted != arg.Deleted {
			continue
		}
		if arg.Status.Valid && p.Status != arg.Status.String {
			continue
		}
		if arg.Q.Valid && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(arg.Q.String)) {
			continue
		}
		if arg.CategoryIDs != nil {
			match := false
			for _, id := range arg.CategoryIDs {
				if id == p.CategoryID {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func (q *fakeCatalogQueries) CountProducts(_ context.Context, arg db.CountProductsParams) (int64, error) {
	return int64(len(q.filter(arg))), nil
}

func (q *fakeCatalogQueries) ListProducts(_ context.Context, arg db.ListProductsParams) ([]db.Product, error) {
	rows := q.filter(db.CountProductsParams{Q: arg.Q, CategoryIDs: arg.CategoryIDs, Status: arg.Status, Deleted: arg.Deleted})
	less := func(a, b db.Product) bool { return a.Position > b.Position }
	switch arg.SortKey {
	case "price":
		less = func(a, b db.Product) bool { return a.Price.Int64 < b.Price.Int64 }
	case "title":
		less = func(a, b db.Product) bool { return a.Title < b.Title }
	}
	sort.Slice(rows, func(i, j int) bool {
		if arg.SortDir == "asc" || arg.SortKey == "position" {
			return less(rows[i], rows[j])
		}
		return less(rows[j], rows[i])
	})
	start := min(int(arg.OffsetValue), len(rows))
	end := min(start+int(arg.LimitValue), len(rows))
	return rows[start:end], nil
}

func (q *fakeCatalogQueries) ListFeaturedProducts(ctx context.Context, limit int32) ([]db.Product, error) {
	rows, _ := q.ListProducts(ctx, db.ListProductsParams{Status: db.Text("active"), SortKey: "position", LimitValue: 100})
	var out []db.Product
	for _, p := range rows {
		if p.Featured && len(out) < int(limit) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *fakeCatalogQueries) ListLatestProducts(ctx context.Context, limit int32) ([]db.Product, error) {
	rows, _ := q.ListProducts(ctx, db.ListProductsParams{Status: db.Text("active"), LimitValue: 100})
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Time.After(rows[j].CreatedAt.Time) })
	return rows[:min(int(limit), len(rows))], nil
}

func (q *fakeCatalogQueries) GetProductBySlug(_ context.Context, slug string) (db.Product, error) {
	p := q.bySlug(slug)
	if !p.ID.Valid || p.Deleted || p.Status != "active" {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (q *fakeCatalogQueries) GetProductByID(_ context.Context, id pgtype.UUID) (db.Product, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.getByIDHits++
	p, ok := q.products[db.UUIDString(id)]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (q *fakeCatalogQueries) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pos := arg.Position.Int32
	if !arg.Position.Valid {
		for _, p := range q.products {
			pos = max(pos, p.Position)
		}
		pos++
	}
	return q.addProduct(db.Product{
		Title: arg.Title, Slug: arg.Slug, Description: arg.Description, CategoryID: arg.CategoryID,
		Price: arg.Price, DiscountPercentage: arg.DiscountPercentage, Stock: arg.Stock,
		Thumbnail: arg.Thumbnail, Status: arg.Status, Featured: arg.Featured, Position: pos,
		CreatedBy: arg.CreatedBy,
	}), nil
}

func (q *fakeCatalogQueries) UpdateProduct(_ context.Context, arg db.UpdateProductParams) (db.Product, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := db.UUIDString(arg.ID)
	p, ok := q.products[key]
	if !ok || p.Deleted {
		return db.Product{}, pgx.ErrNoRows
	}
	p.Title, p.Slug, p.Description, p.CategoryID = arg.Title, arg.Slug, arg.Description, arg.CategoryID
	p.Price, p.DiscountPercentage, p.Stock, p.Thumbnail = arg.Price, arg.DiscountPercentage, arg.Stock, arg.Thumbnail
	p.Status, p.Featured, p.UpdatedBy = arg.Status, arg.Featured, arg.UpdatedBy
	if arg.Position.Valid {
		p.Position = arg.Position.Int32
	}
	q.products[key] = p
	return p, nil
}

func (q *fakeCatalogQueries) mutate(ids []pgtype.UUID, fn func(*db.Product) bool) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, id := range ids {
		key := db.UUIDString(id)
		p, ok := q.products[key]
		if !ok || !fn(&p) {
			continue
		}
		q.products[key] = p
		n++
	}
	return n
}

func (q *fakeCatalogQueries) UpdateProductsStatus(_ context.Context, arg db.UpdateProductsStatusParams) (int64, error) {
	return q.mutate(arg.IDs, func(p *db.Product) bool {
		if p.Deleted {
			return false
		}
		p.Status = arg.Status
		return true
	}), nil
}

func (q *fakeCatalogQueries) UpdateProductPosition(_ context.Context, arg db.UpdateProductPositionParams) (int64, error) {
	return q.mutate([]pgtype.UUID{arg.ID}, func(p *db.Product) bool {
		if p.Deleted {
			return false
		}
		p.Position = arg.Position
		return true
	}), nil
}

func (q *fakeCatalogQueries) SoftDeleteProducts(_ context.Context, arg db.SoftDeleteProductsParams) (int64, error) {
	return q.mutate(arg.IDs, func(p *db.Product) bool {
		if p.Deleted {
			return false
		}
		p.Deleted = true
		p.DeletedBy = arg.DeletedBy
		return true
	}), nil
}

func (q *fakeCatalogQueries) RestoreProduct(_ context.Context, arg db.RestoreProductParams) (int64, error) {
	return q.mutate([]pgtype.UUID{arg.ID}, func(p *db.Product) bool {
		if !p.Deleted {
			return false
		}
		p.Deleted = false
		p.DeletedBy = pgtype.UUID{}
		return true
	}), nil
}
