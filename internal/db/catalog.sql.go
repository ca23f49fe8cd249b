package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, slug, parent_id, position, status, deleted, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var i Category
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Slug,
		&i.ParentID,
		&i.Position,
		&i.Status,
		&i.Deleted,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT ` + categoryColumns + `
FROM categories
WHERE deleted = FALSE AND ($1::boolean OR status = 'active')
ORDER BY position DESC, name ASC`

// ListCategories returns non-deleted categories; inactive ones only when includeInactive is set.
func (q *Queries) ListCategories(ctx context.Context, includeInactive bool) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		i, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getCategoryBySlug = `-- name: GetCategoryBySlug :one
SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1 AND deleted = FALSE`

func (q *Queries) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategoryBySlug, slug))
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, slug, parent_id, position, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	Name     string      `json:"name"`
	Slug     string      `json:"slug"`
	ParentID pgtype.UUID `json:"parent_id"`
	Position int32       `json:"position"`
	Status   string      `json:"status"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.Slug, arg.ParentID, arg.Position, arg.Status)
	return scanCategory(row)
}

const categoryDescendantIDs = `-- name: CategoryDescendantIDs :many
WITH RECURSIVE tree AS (
    SELECT id FROM categories WHERE id = $1 AND deleted = FALSE
    UNION
    SELECT c.id FROM categories c JOIN tree t ON c.parent_id = t.id
    WHERE c.deleted = FALSE
)
SELECT id FROM tree`

// CategoryDescendantIDs returns id and every non-deleted descendant of it.
func (q *Queries) CategoryDescendantIDs(ctx context.Context, id pgtype.UUID) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, categoryDescendantIDs, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const productColumns = `id, title, slug, description, category_id, price, discount_percentage, stock, thumbnail,
status, featured, position, deleted, created_by, updated_by, deleted_by, deleted_at, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Slug,
		&i.Description,
		&i.CategoryID,
		&i.Price,
		&i.DiscountPercentage,
		&i.Stock,
		&i.Thumbnail,
		&i.Status,
		&i.Featured,
		&i.Position,
		&i.Deleted,
		&i.CreatedBy,
		&i.UpdatedBy,
		&i.DeletedBy,
		&i.DeletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectProducts(ctx context.Context, db DBTX, sql string, args ...any) ([]Product, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getProductByID = `-- name: GetProductByID :one
SELECT ` + productColumns + ` FROM products WHERE id = $1`

// GetProductByID returns the product regardless of status or soft-delete flag.
func (q *Queries) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByID, id))
}

const getProductBySlug = `-- name: GetProductBySlug :one
SELECT ` + productColumns + `
FROM products
WHERE slug = $1 AND deleted = FALSE AND status = 'active'`

func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductBySlug, slug))
}

// productFilter is shared by the public and admin listing statements.
// $1 keyword, $2 category ids, $3 status, $4 deleted.
const productFilter = `
WHERE deleted = $4
  AND ($3::text IS NULL OR status = $3::text)
  AND ($1::text IS NULL OR title ILIKE '%' || $1::text || '%')
  AND ($2::uuid[] IS NULL OR category_id = ANY($2::uuid[]))`

const productOrder = `
ORDER BY
  CASE WHEN $5::text = 'price' AND $6::text = 'asc' THEN price END ASC,
  CASE WHEN $5::text = 'price' AND $6::text = 'desc' THEN price END DESC,
  CASE WHEN $5::text = 'title' AND $6::text = 'asc' THEN title END ASC,
  CASE WHEN $5::text = 'title' AND $6::text = 'desc' THEN title END DESC,
  CASE WHEN $5::text = 'created_at' AND $6::text = 'asc' THEN created_at END ASC,
  CASE WHEN $5::text = 'created_at' AND $6::text = 'desc' THEN created_at END DESC,
  CASE WHEN $5::text = 'position' AND $6::text = 'asc' THEN position END ASC,
  position DESC, id ASC
LIMIT $7 OFFSET $8`

const countProducts = `-- name: CountProducts :one
SELECT count(*) FROM products` + productFilter

type CountProductsParams struct {
	Q           pgtype.Text   `json:"q"`
	CategoryIDs []pgtype.UUID `json:"category_ids"`
	Status      pgtype.Text   `json:"status"`
	Deleted     bool          `json:"deleted"`
}

func (q *Queries) CountProducts(ctx context.Context, arg CountProductsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countProducts, arg.Q, arg.CategoryIDs, arg.Status, arg.Deleted)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listProducts = `-- name: ListProducts :many
SELECT ` + productColumns + ` FROM products` + productFilter + productOrder

type ListProductsParams struct {
	Q           pgtype.Text   `json:"q"`
	CategoryIDs []pgtype.UUID `json:"category_ids"`
	Status      pgtype.Text   `json:"status"`
	Deleted     bool          `json:"deleted"`
	SortKey     string        `json:"sort_key"`
	SortDir     string        `json:"sort_dir"`
	LimitValue  int32         `json:"limit_value"`
	OffsetValue int32         `json:"offset_value"`
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	return collectProducts(ctx, q.db, listProducts,
		arg.Q,
		arg.CategoryIDs,
		arg.Status,
		arg.Deleted,
		arg.SortKey,
		arg.SortDir,
		arg.LimitValue,
		arg.OffsetValue,
	)
}

const listFeaturedProducts = `-- name: ListFeaturedProducts :many
SELECT ` + productColumns + `
FROM products
WHERE featured = TRUE AND deleted = FALSE AND status = 'active'
ORDER BY position DESC
LIMIT $1`

func (q *Queries) ListFeaturedProducts(ctx context.Context, limit int32) ([]Product, error) {
	return collectProducts(ctx, q.db, listFeaturedProducts, limit)
}

const listLatestProducts = `-- name: ListLatestProducts :many
SELECT ` + productColumns + `
FROM products
WHERE deleted = FALSE AND status = 'active'
ORDER BY created_at DESC
LIMIT $1`

func (q *Queries) ListLatestProducts(ctx context.Context, limit int32) ([]Product, error) {
	return collectProducts(ctx, q.db, listLatestProducts, limit)
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (
    title, slug, description, category_id, price, discount_percentage,
    stock, thumbnail, status, featured, position, created_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
    COALESCE($11::int, (SELECT COALESCE(max(position), 0) + 1 FROM products)),
    $12
)
RETURNING ` + productColumns

type CreateProductParams struct {
	Title              string      `json:"title"`
	Slug               string      `json:"slug"`
	Description        pgtype.Text `json:"description"`
	CategoryID         pgtype.UUID `json:"category_id"`
	Price              pgtype.Int8 `json:"price"`
	DiscountPercentage pgtype.Int4 `json:"discount_percentage"`
	Stock              int32       `json:"stock"`
	Thumbnail          pgtype.Text `json:"thumbnail"`
	Status             string      `json:"status"`
	Featured           bool        `json:"featured"`
	Position           pgtype.Int4 `json:"position"`
	CreatedBy          pgtype.UUID `json:"created_by"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.Title,
		arg.Slug,
		arg.Description,
		arg.CategoryID,
		arg.Price,
		arg.DiscountPercentage,
		arg.Stock,
		arg.Thumbnail,
		arg.Status,
		arg.Featured,
		arg.Position,
		arg.CreatedBy,
	)
	return scanProduct(row)
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products SET
    title = $2,
    slug = $3,
    description = $4,
    category_id = $5,
    price = $6,
    discount_percentage = $7,
    stock = $8,
    thumbnail = $9,
    status = $10,
    featured = $11,
    position = COALESCE($12::int, position),
    updated_by = $13,
    updated_at = now()
WHERE id = $1 AND deleted = FALSE
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID                 pgtype.UUID `json:"id"`
	Title              string      `json:"title"`
	Slug               string      `json:"slug"`
	Description        pgtype.Text `json:"description"`
	CategoryID         pgtype.UUID `json:"category_id"`
	Price              pgtype.Int8 `json:"price"`
	DiscountPercentage pgtype.Int4 `json:"discount_percentage"`
	Stock              int32       `json:"stock"`
	Thumbnail          pgtype.Text `json:"thumbnail"`
	Status             string      `json:"status"`
	Featured           bool        `json:"featured"`
	Position           pgtype.Int4 `json:"position"`
	UpdatedBy          pgtype.UUID `json:"updated_by"`
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Title,
		arg.Slug,
		arg.Description,
		arg.CategoryID,
		arg.Price,
		arg.DiscountPercentage,
		arg.Stock,
		arg.Thumbnail,
		arg.Status,
		arg.Featured,
		arg.Position,
		arg.UpdatedBy,
	)
	return scanProduct(row)
}

const updateProductsStatus = `-- name: UpdateProductsStatus :execrows
UPDATE products SET status = $2, updated_by = $3, updated_at = now()
WHERE id = ANY($1::uuid[]) AND deleted = FALSE`

type UpdateProductsStatusParams struct {
	IDs       []pgtype.UUID `json:"ids"`
	Status    string        `json:"status"`
	UpdatedBy pgtype.UUID   `json:"updated_by"`
}

func (q *Queries) UpdateProductsStatus(ctx context.Context, arg UpdateProductsStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateProductsStatus, arg.IDs, arg.Status, arg.UpdatedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const updateProductPosition = `-- name: UpdateProductPosition :execrows
UPDATE products SET position = $2, updated_by = $3, updated_at = now()
WHERE id = $1 AND deleted = FALSE`

type UpdateProductPositionParams struct {
	ID        pgtype.UUID `json:"id"`
	Position  int32       `json:"position"`
	UpdatedBy pgtype.UUID `json:"updated_by"`
}

func (q *Queries) UpdateProductPosition(ctx context.Context, arg UpdateProductPositionParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateProductPosition, arg.ID, arg.Position, arg.UpdatedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const softDeleteProducts = `-- name: SoftDeleteProducts :execrows
UPDATE products SET deleted = TRUE, deleted_by = $2, deleted_at = now(), updated_at = now()
WHERE id = ANY($1::uuid[]) AND deleted = FALSE`

type SoftDeleteProductsParams struct {
	IDs       []pgtype.UUID `json:"ids"`
	DeletedBy pgtype.UUID   `json:"deleted_by"`
}

func (q *Queries) SoftDeleteProducts(ctx context.Context, arg SoftDeleteProductsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, softDeleteProducts, arg.IDs, arg.DeletedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const restoreProduct = `-- name: RestoreProduct :execrows
UPDATE products SET deleted = FALSE, deleted_by = NULL, deleted_at = NULL, updated_by = $2, updated_at = now()
WHERE id = $1 AND deleted = TRUE`

type RestoreProductParams struct {
	ID        pgtype.UUID `json:"id"`
	UpdatedBy pgtype.UUID `json:"updated_by"`
}

func (q *Queries) RestoreProduct(ctx context.Context, arg RestoreProductParams) (int64, error) {
	tag, err := q.db.Exec(ctx, restoreProduct, arg.ID, arg.UpdatedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const upsertProductBySlug = `-- name: UpsertProductBySlug :one
INSERT INTO products (title, slug, category_id, price, discount_percentage, stock, thumbnail, featured, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (slug) DO UPDATE SET
    title = EXCLUDED.title,
    category_id = EXCLUDED.category_id,
    price = EXCLUDED.price,
    discount_percentage = EXCLUDED.discount_percentage,
    stock = EXCLUDED.stock,
    thumbnail = EXCLUDED.thumbnail,
    featured = EXCLUDED.featured,
    position = EXCLUDED.position,
    updated_at = now()
RETURNING ` + productColumns

type UpsertProductBySlugParams struct {
	Title              string      `json:"title"`
	Slug               string      `json:"slug"`
	CategoryID         pgtype.UUID `json:"category_id"`
	Price              pgtype.Int8 `json:"price"`
	DiscountPercentage pgtype.Int4 `json:"discount_percentage"`
	Stock              int32       `json:"stock"`
	Thumbnail          pgtype.Text `json:"thumbnail"`
	Featured           bool        `json:"featured"`
	Position           int32       `json:"position"`
}

func (q *Queries) UpsertProductBySlug(ctx context.Context, arg UpsertProductBySlugParams) (Product, error) {
	row := q.db.QueryRow(ctx, upsertProductBySlug,
		arg.Title,
		arg.Slug,
		arg.CategoryID,
		arg.Price,
		arg.DiscountPercentage,
		arg.Stock,
		arg.Thumbnail,
		arg.Featured,
		arg.Position,
	)
	return scanProduct(row)
}

const upsertCategoryBySlug = `-- name: UpsertCategoryBySlug :one
INSERT INTO categories (name, slug, parent_id, position)
VALUES ($1, $2, $3, $4)
ON CONFLICT (slug) DO UPDATE SET
    name = EXCLUDED.name,
    parent_id = EXCLUDED.parent_id,
    position = EXCLUDED.position,
    updated_at = now()
RETURNING ` + categoryColumns

type UpsertCategoryBySlugParams struct {
	Name     string      `json:"name"`
	Slug     string      `json:"slug"`
	ParentID pgtype.UUID `json:"parent_id"`
	Position int32       `json:"position"`
}

func (q *Queries) UpsertCategoryBySlug(ctx context.Context, arg UpsertCategoryBySlugParams) (Category, error) {
	row := q.db.QueryRow(ctx, upsertCategoryBySlug, arg.Name, arg.Slug, arg.ParentID, arg.Position)
	return scanCategory(row)
}
