package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type adminQueries interface {
	productLister
	ListCategories(ctx context.Context, includeInactive bool) ([]db.Category, error)
	CreateCategory(ctx context.Context, arg db.CreateCategoryParams) (db.Category, error)
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	UpdateProduct(ctx context.Context, arg db.UpdateProductParams) (db.Product, error)
	UpdateProductsStatus(ctx context.Context, arg db.UpdateProductsStatusParams) (int64, error)
	UpdateProductPosition(ctx context.Context, arg db.UpdateProductPositionParams) (int64, error)
	SoftDeleteProducts(ctx context.Context, arg db.SoftDeleteProductsParams) (int64, error)
	RestoreProduct(ctx context.Context, arg db.RestoreProductParams) (int64, error)
}

// invalidator drops cached pricing records after a product changes.
type invalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// AdminService implements the back-office catalog operations.
type AdminService struct {
	Queries adminQueries
	Lookup  invalidator
	Cache   *Cache
}

// ProductInput is the create/update payload. Price and discount are
// optional to mirror legacy records, but bounded when present.
type ProductInput struct {
	Title              string `json:"title" validate:"required,max=200"`
	Slug               string `json:"slug" validate:"omitempty,max=200"`
	Description        string `json:"description"`
	CategoryID         string `json:"categoryId" validate:"omitempty,uuid"`
	Price              *int64 `json:"price" validate:"omitempty,gte=0"`
	DiscountPercentage *int32 `json:"discountPercentage" validate:"omitempty,gte=0,lte=100"`
	Stock              int32  `json:"stock" validate:"gte=0"`
	Thumbnail          string `json:"thumbnail" validate:"omitempty,max=500"`
	Status             string `json:"status" validate:"omitempty,oneof=active inactive"`
	Featured           bool   `json:"featured"`
	Position           *int32 `json:"position" validate:"omitempty,gte=0"`
}

// CategoryInput is the category create payload.
type CategoryInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Slug     string `json:"slug" validate:"omitempty,max=120"`
	ParentID string `json:"parentId" validate:"omitempty,uuid"`
	Position int32 `json:"position" validate:"gte=0"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// BulkAction is one change-multi request.
type BulkAction struct {
	Type string   `json:"type" validate:"required,oneof=active inactive delete-all change-position"`
	IDs  []string `json:"ids" validate:"required,min=1,dive,required"`
	// Positions is only read for change-position, one entry per id.
	Positions []int32 `json:"positions"`
}

var (
	// ErrNotFound is returned when an admin operation targets a missing product.
	ErrNotFound = errors.New("catalog: not found")
	// ErrSlugTaken is returned on unique-slug violations.
	ErrSlugTaken = errors.New("catalog: slug already in use")
)

// ParseAdminListParams reads status, keyword, page and limit for the admin list.
func ParseAdminListParams(values url.Values) (productQuery, error) {
	pq := productQuery{Page: 1, Limit: 20, SortKey: "position", SortDir: "desc"}
	pq.Keyword = strings.TrimSpace(values.Get("keyword"))
	switch status := strings.TrimSpace(values.Get("status")); status {
	case "", "active", "inactive":
		pq.Status = status
	default:
		return pq, badRequest("status", "status must be active or inactive", nil)
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return pq, badRequest("page", "page must be a positive integer", err)
		}
		pq.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return pq, badRequest("limit", "limit must be a positive integer", err)
		}
		pq.Limit = min(l, 100)
	}
	return pq, nil
}

// List returns non-deleted products of any status.
func (s *AdminService) List(ctx context.Context, pq productQuery) (ProductListResult, error) {
	pq.Deleted = false
	return listProducts(ctx, s.Queries, pq)
}

// Trash lists soft-deleted products.
func (s *AdminService) Trash(ctx context.Context, pq productQuery) (ProductListResult, error) {
	pq.Deleted = true
	pq.Status = ""
	return listProducts(ctx, s.Queries, pq)
}

// Get returns any product by id, including inactive and deleted ones.
func (s *AdminService) Get(ctx context.Context, id string) (ProductItem, error) {
	pgID, err := parseID(id)
	if err != nil {
		return ProductItem{}, err
	}
	row, err := s.Queries.GetProductByID(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductItem{}, ErrNotFound
		}
		return ProductItem{}, fmt.Errorf("get product: %w", err)
	}
	return toItem(row), nil
}

// Create inserts a product. A missing position appends after the current maximum.
func (s *AdminService) Create(ctx context.Context, actorID string, in ProductInput) (ProductItem, error) {
	params, err := productParams(in)
	if err != nil {
		return ProductItem{}, err
	}
	actor, _ := db.ParseUUID(actorID)
	row, err := s.Queries.CreateProduct(ctx, db.CreateProductParams{
		Title:              params.Title,
		Slug:               params.Slug,
		Description:        params.Description,
		CategoryID:         params.CategoryID,
		Price:              params.Price,
		DiscountPercentage: params.DiscountPercentage,
		Stock:              params.Stock,
		Thumbnail:          params.Thumbnail,
		Status:             params.Status,
		Featured:           params.Featured,
		Position:           params.Position,
		CreatedBy:          actor,
	})
	if err != nil {
		return ProductItem{}, mapWriteErr("create product", err)
	}
	s.afterChange(ctx)
	return toItem(row), nil
}

// Update overwrites a non-deleted product.
func (s *AdminService) Update(ctx context.Context, actorID, id string, in ProductInput) (ProductItem, error) {
	pgID, err := parseID(id)
	if err != nil {
		return ProductItem{}, err
	}
	params, err := productParams(in)
	if err != nil {
		return ProductItem{}, err
	}
	params.ID = pgID
	params.UpdatedBy, _ = db.ParseUUID(actorID)
	row, err := s.Queries.UpdateProduct(ctx, params)
	if err != nil {
		return ProductItem{}, mapWriteErr("update product", err)
	}
	s.afterChange(ctx, db.UUIDString(pgID))
	return toItem(row), nil
}

// ChangeStatus sets one product active or inactive.
func (s *AdminService) ChangeStatus(ctx context.Context, actorID, id, status string) error {
	return s.ChangeMulti(ctx, actorID, BulkAction{Type: status, IDs: []string{id}})
}

// ChangeMulti applies a bulk action. It returns ErrNotFound when no row changed.
func (s *AdminService) ChangeMulti(ctx context.Context, actorID string, action BulkAction) error {
	ids, err := parseIDs(action.IDs)
	if err != nil {
		return err
	}
	actor, _ := db.ParseUUID(actorID)

	var affected int64
	switch action.Type {
	case "active", "inactive":
		affected, err = s.Queries.UpdateProductsStatus(ctx, db.UpdateProductsStatusParams{IDs: ids, Status: action.Type, UpdatedBy: actor})
	case "delete-all":
		affected, err = s.Queries.SoftDeleteProducts(ctx, db.SoftDeleteProductsParams{IDs: ids, DeletedBy: actor})
	case "change-position":
		if len(action.Positions) != len(ids) {
			return badRequest("positions", "one position per id is required", nil)
		}
		for i, id := range ids {
			n, perr := s.Queries.UpdateProductPosition(ctx, db.UpdateProductPositionParams{ID: id, Position: action.Positions[i], UpdatedBy: actor})
			if perr != nil {
				err = perr
				break
			}
			affected += n
		}
	default:
		return badRequest("type", "unknown bulk action", nil)
	}
	if err != nil {
		return fmt.Errorf("bulk %s: %w", action.Type, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	canonical := make([]string, len(ids))
	for i, id := range ids {
		canonical[i] = db.UUIDString(id)
	}
	s.afterChange(ctx, canonical...)
	return nil
}

// Delete soft-deletes one product.
func (s *AdminService) Delete(ctx context.Context, actorID, id string) error {
	return s.ChangeMulti(ctx, actorID, BulkAction{Type: "delete-all", IDs: []string{id}})
}

// Restore brings a soft-deleted product back.
func (s *AdminService) Restore(ctx context.Context, actorID, id string) error {
	pgID, err := parseID(id)
	if err != nil {
		return err
	}
	actor, _ := db.ParseUUID(actorID)
	n, err := s.Queries.RestoreProduct(ctx, db.RestoreProductParams{ID: pgID, UpdatedBy: actor})
	if err != nil {
		return fmt.Errorf("restore product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.afterChange(ctx, db.UUIDString(pgID))
	return nil
}

// Categories returns the full tree including inactive categories.
func (s *AdminService) Categories(ctx context.Context) ([]CategoryNode, error) {
	rows, err := s.Queries.ListCategories(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return buildTree(rows), nil
}

// CreateCategory inserts a category under an optional parent.
func (s *AdminService) CreateCategory(ctx context.Context, in CategoryInput) (CategoryNode, error) {
	parent := pgtype.UUID{}
	if in.ParentID != "" {
		var err error
		if parent, err = parseID(in.ParentID); err != nil {
			return CategoryNode{}, err
		}
	}
	status := in.Status
	if status == "" {
		status = "active"
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}
	row, err := s.Queries.CreateCategory(ctx, db.CreateCategoryParams{
		Name:     strings.TrimSpace(in.Name),
		Slug:     slug,
		ParentID: parent,
		Position: in.Position,
		Status:   status,
	})
	if err != nil {
		return CategoryNode{}, mapWriteErr("create category", err)
	}
	_ = s.Cache.Delete(ctx, "catalog:home")
	return CategoryNode{
		ID:       db.UUIDString(row.ID),
		Name:     row.Name,
		Slug:     row.Slug,
		Status:   row.Status,
		Position: row.Position,
		Children: []CategoryNode{},
	}, nil
}

func (s *AdminService) afterChange(ctx context.Context, ids ...string) {
	if s.Lookup != nil && len(ids) > 0 {
		s.Lookup.Invalidate(ctx, ids...)
	}
	_ = s.Cache.Delete(ctx, "catalog:home")
}

func productParams(in ProductInput) (db.UpdateProductParams, error) {
	if in.DiscountPercentage != nil {
		if err := pricing.ValidateDiscount(*in.DiscountPercentage); err != nil {
			return db.UpdateProductParams{}, err
		}
	}
	p := db.UpdateProductParams{
		Title:       strings.TrimSpace(in.Title),
		Slug:        strings.TrimSpace(in.Slug),
		Description: db.Text(in.Description),
		Stock:       in.Stock,
		Thumbnail:   db.Text(in.Thumbnail),
		Status:      in.Status,
		Featured:    in.Featured,
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if in.CategoryID != "" {
		id, err := parseID(in.CategoryID)
		if err != nil {
			return db.UpdateProductParams{}, err
		}
		p.CategoryID = id
	}
	if in.Price != nil {
		p.Price = pgtype.Int8{Int64: *in.Price, Valid: true}
	}
	if in.DiscountPercentage != nil {
		p.DiscountPercentage = pgtype.Int4{Int32: *in.DiscountPercentage, Valid: true}
	}
	if in.Position != nil {
		p.Position = pgtype.Int4{Int32: *in.Position, Valid: true}
	}
	return p, nil
}

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func parseID(id string) (pgtype.UUID, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return pgtype.UUID{}, badRequest("id", "invalid id", err)
	}
	return pgID, nil
}

func parseIDs(ids []string) ([]pgtype.UUID, error) {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		pgID, err := parseID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, pgID)
	}
	return out, nil
}

func mapWriteErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrSlugTaken
		case "23503":
			return &common.AppError{Code: "BAD_REQUEST", Message: "referenced category does not exist", HTTPStatus: http.StatusBadRequest, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
