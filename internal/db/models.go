package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           pgtype.UUID        `json:"id"`
	Email        string             `json:"email"`
	PasswordHash string             `json:"-"`
	FullName     string             `json:"full_name"`
	Phone        pgtype.Text        `json:"phone"`
	Address      pgtype.Text        `json:"address"`
	Role         string             `json:"role"`
	Status       string             `json:"status"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Category struct {
	ID        pgtype.UUID        `json:"id"`
	Name      string             `json:"name"`
	Slug      string             `json:"slug"`
	ParentID  pgtype.UUID        `json:"parent_id"`
	Position  int32              `json:"position"`
	Status    string             `json:"status"`
	Deleted   bool               `json:"deleted"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type Product struct {
	ID                 pgtype.UUID        `json:"id"`
	Title              string             `json:"title"`
	Slug               string             `json:"slug"`
	Description        pgtype.Text        `json:"description"`
	CategoryID         pgtype.UUID        `json:"category_id"`
	Price              pgtype.Int8        `json:"price"`
	DiscountPercentage pgtype.Int4        `json:"discount_percentage"`
	Stock              int32              `json:"stock"`
	Thumbnail          pgtype.Text        `json:"thumbnail"`
	Status             string             `json:"status"`
	Featured           bool               `json:"featured"`
	Position           int32              `json:"position"`
	Deleted            bool               `json:"deleted"`
	CreatedBy          pgtype.UUID        `json:"created_by"`
	UpdatedBy          pgtype.UUID        `json:"updated_by"`
	DeletedBy          pgtype.UUID        `json:"deleted_by"`
	DeletedAt          pgtype.Timestamptz `json:"deleted_at"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type Cart struct {
	ID        pgtype.UUID        `json:"id"`
	UserID    pgtype.UUID        `json:"user_id"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type CartItem struct {
	CartID    pgtype.UUID        `json:"cart_id"`
	ProductID pgtype.UUID        `json:"product_id"`
	Qty       int32              `json:"qty"`
	AddedAt   pgtype.Timestamptz `json:"added_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type Order struct {
	ID        pgtype.UUID        `json:"id"`
	UserID    pgtype.UUID        `json:"user_id"`
	CartID    pgtype.UUID        `json:"cart_id"`
	Status    string             `json:"status"`
	FullName  string             `json:"full_name"`
	Phone     string             `json:"phone"`
	Address   string             `json:"address"`
	Note      pgtype.Text        `json:"note"`
	Total     int64              `json:"total"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type OrderItem struct {
	OrderID            pgtype.UUID `json:"order_id"`
	Position           int32       `json:"position"`
	ProductID          pgtype.UUID `json:"product_id"`
	Qty                int32       `json:"qty"`
	Price              int64       `json:"price"`
	DiscountPercentage int32       `json:"discount_percentage"`
}

type DomainEvent struct {
	ID          pgtype.UUID        `json:"id"`
	Topic       string             `json:"topic"`
	AggregateID pgtype.UUID        `json:"aggregate_id"`
	Payload     []byte             `json:"payload"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
}

type AuditLog struct {
	ID           int64              `json:"id"`
	ActorKind    string             `json:"actor_kind"`
	ActorUserID  pgtype.UUID        `json:"actor_user_id"`
	Action       string             `json:"action"`
	ResourceType string             `json:"resource_type"`
	ResourceID   pgtype.Text        `json:"resource_id"`
	Method       string             `json:"method"`
	Path         string             `json:"path"`
	Route        pgtype.Text        `json:"route"`
	Status       int32              `json:"status"`
	Ip           pgtype.Text        `json:"ip"`
	UserAgent    pgtype.Text        `json:"user_agent"`
	RequestID    pgtype.Text        `json:"request_id"`
	Metadata     []byte             `json:"metadata"`
	OccurredAt   pgtype.Timestamptz `json:"occurred_at"`
}
