// Package catalog serves the storefront product catalog and its admin
// console, and resolves products for pricing.
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
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/db"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type queryProvider interface {
	ListCategories(ctx context.Context, includeInactive bool) ([]db.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (db.Category, error)
	CategoryDescendantIDs(ctx context.Context, id pgtype.UUID) ([]pgtype.UUID, error)
	CountProducts(ctx context.Context, arg db.CountProductsParams) (int64, error)
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	ListFeaturedProducts(ctx context.Context, limit int32) ([]db.Product, error)
	ListLatestProducts(ctx context.Context, limit int32) ([]db.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (db.Product, error)
}

// Service orchestrates public catalog queries and DTO assembly.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
	homeLimit    int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
	HomeLimit    int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Keyword  string
	Category string
	SortKey  string
	SortDir  string
	Page     int
	Limit    int
}

// ProductItem is a product as shown in listings and detail pages.
// NewPrice is nil when the record has no price.
type ProductItem struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Slug               string         `json:"slug"`
	Description        string         `json:"description,omitempty"`
	Thumbnail          string         `json:"thumbnail,omitempty"`
	CategoryID         string         `json:"categoryId,omitempty"`
	Price              *pricing.Money `json:"price"`
	DiscountPercentage int32          `json:"discountPercentage"`
	NewPrice           *pricing.Money `json:"newPriceAmount"`
	NewPriceText       string         `json:"newPrice,omitempty"`
	Stock              int32          `json:"stock"`
	Featured           bool           `json:"featured"`
	Position           int32          `json:"position"`
	Status             string         `json:"status,omitempty"`
}

// CategoryNode is one node of the category tree.
type CategoryNode struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Status   string         `json:"status,omitempty"`
	Position int32          `json:"position"`
	Children []CategoryNode `json:"children"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items      []ProductItem     `json:"items"`
	Pagination common.Pagination `json:"pagination"`
}

// Home groups the storefront landing sections.
type Home struct {
	Featured []ProductItem `json:"featured"`
	Latest   []ProductItem `json:"latest"`
}

var sortKeys = map[string]struct{}{
	"position":   {},
	"price":      {},
	"title":      {},
	"created_at": {},
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 12
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	homeLimit := cfg.HomeLimit
	if homeLimit < 1 {
		homeLimit = 6
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		homeLimit:    homeLimit,
	}, nil
}

// ParseListParams normalises raw query values into typed filters. Unknown
// sort keys fall back to position, descending.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit, SortKey: "position", SortDir: "desc"}
	params.Keyword = strings.TrimSpace(values.Get("keyword"))
	if params.Keyword == "" {
		params.Keyword = strings.TrimSpace(values.Get("q"))
	}
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}

	key := strings.ToLower(strings.TrimSpace(values.Get("sortKey")))
	if _, ok := sortKeys[key]; ok {
		params.SortKey = key
		params.SortDir = "desc"
		if strings.EqualFold(strings.TrimSpace(values.Get("sortValue")), "asc") {
			params.SortDir = "asc"
		}
	}
	return params, nil
}

// ListProducts returns active products matching params. A category filter
// covers the category and all of its descendants.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	categoryIDs, err := s.categoryFilter(ctx, params.Category)
	if err != nil {
		return ProductListResult{}, err
	}
	if params.Category != "" && len(categoryIDs) == 0 {
		return ProductListResult{Items: []ProductItem{}, Pagination: common.NewPagination(params.Page, params.Limit, 0)}, nil
	}
	return listProducts(ctx, s.queries, productQuery{
		Keyword:     params.Keyword,
		CategoryIDs: categoryIDs,
		Status:      "active",
		SortKey:     params.SortKey,
		SortDir:     params.SortDir,
		Page:        params.Page,
		Limit:       params.Limit,
	})
}

// Home returns featured and latest products, cached briefly.
func (s *Service) Home(ctx context.Context) (Home, error) {
	const key = "catalog:home"
	var cached Home
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	featured, err := s.queries.ListFeaturedProducts(ctx, int32(s.homeLimit))
	if err != nil {
		return Home{}, fmt.Errorf("list featured products: %w", err)
	}
	latest, err := s.queries.ListLatestProducts(ctx, int32(s.homeLimit))
	if err != nil {
		return Home{}, fmt.Errorf("list latest products: %w", err)
	}
	home := Home{Featured: toItems(featured), Latest: toItems(latest)}
	_ = s.cache.SetJSON(ctx, key, home)
	return home, nil
}

// ProductBySlug returns an active product for the detail page.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (ProductItem, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductItem{}, badRequest("slug", "slug is required", nil)
	}
	row, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductItem{}, notFound("product not found", err)
		}
		return ProductItem{}, fmt.Errorf("get product by slug: %w", err)
	}
	return toItem(row), nil
}

// CategoryTree returns active categories nested by parent.
func (s *Service) CategoryTree(ctx context.Context) ([]CategoryNode, error) {
	rows, err := s.queries.ListCategories(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return buildTree(rows), nil
}

func (s *Service) categoryFilter(ctx context.Context, slug string) ([]pgtype.UUID, error) {
	if slug == "" {
		return nil, nil
	}
	cat, err := s.queries.GetCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	ids, err := s.queries.CategoryDescendantIDs(ctx, cat.ID)
	if err != nil {
		return nil, fmt.Errorf("category descendants: %w", err)
	}
	return ids, nil
}

// productQuery is the listing shape shared by the storefront and admin console.
type productQuery struct {
	Keyword     string
	CategoryIDs []pgtype.UUID
	Status      string
	Deleted     bool
	SortKey     string
	SortDir     string
	Page        int
	Limit       int
}

type productLister interface {
	CountProducts(ctx context.Context, arg db.CountProductsParams) (int64, error)
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
}

func listProducts(ctx context.Context, q productLister, pq productQuery) (ProductListResult, error) {
	countParams := db.CountProductsParams{
		Q:           db.Text(pq.Keyword),
		CategoryIDs: pq.CategoryIDs,
		Status:      db.Text(pq.Status),
		Deleted:     pq.Deleted,
	}
	total, err := q.CountProducts(ctx, countParams)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	page := common.NewPagination(pq.Page, pq.Limit, total)
	rows, err := q.ListProducts(ctx, db.ListProductsParams{
		Q:           countParams.Q,
		CategoryIDs: countParams.CategoryIDs,
		Status:      countParams.Status,
		Deleted:     countParams.Deleted,
		SortKey:     pq.SortKey,
		SortDir:     pq.SortDir,
		LimitValue:  int32(pq.Limit),
		OffsetValue: int32(page.Offset()),
	})
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	return ProductListResult{Items: toItems(rows), Pagination: page}, nil
}

func toItems(rows []db.Product) []ProductItem {
	items := make([]ProductItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toItem(row))
	}
	return items
}

func toItem(row db.Product) ProductItem {
	p := toPricingProduct(row)
	item := ProductItem{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: row.Description.String,
		Thumbnail:   p.Thumbnail,
		CategoryID:  db.UUIDString(row.CategoryID),
		Price:       p.Price,
		Stock:       p.Stock,
		Featured:    row.Featured,
		Position:    row.Position,
		Status:      row.Status,
	}
	if p.DiscountPercentage != nil {
		item.DiscountPercentage = *p.DiscountPercentage
	}
	if newPrice, err := pricing.EffectivePrice(p); err == nil {
		item.NewPrice = &newPrice
		item.NewPriceText = pricing.FormatPrice(newPrice)
	}
	return item
}

func buildTree(rows []db.Category) []CategoryNode {
	children := make(map[string][]db.Category, len(rows))
	known := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		known[db.UUIDString(row.ID)] = struct{}{}
	}
	var roots []db.Category
	for _, row := range rows {
		parent := db.UUIDString(row.ParentID)
		if _, ok := known[parent]; !ok {
			roots = append(roots, row)
			continue
		}
		children[parent] = append(children[parent], row)
	}
	var build func(rows []db.Category, seen map[string]bool) []CategoryNode
	build = func(rows []db.Category, seen map[string]bool) []CategoryNode {
		nodes := make([]CategoryNode, 0, len(rows))
		for _, row := range rows {
			id := db.UUIDString(row.ID)
			if seen[id] {
				continue
			}
			seen[id] = true
			nodes = append(nodes, CategoryNode{
				ID:       id,
				Name:     row.Name,
				Slug:     row.Slug,
				Status:   row.Status,
				Position: row.Position,
				Children: build(children[id], seen),
			})
		}
		return nodes
	}
	return build(roots, map[string]bool{})
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func notFound(message string, err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}
