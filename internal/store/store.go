// internal/store/store.go

// Package store persists AppOrbit records. The gorm adapter backs production;
// the memory adapter implements the same contract for development and tests.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/apporbit/apporbit-backend/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrAlreadyVoted = errors.New("voter already voted for this product")
	ErrDuplicate    = errors.New("record already exists")
)

// MutationResult mirrors the matched/modified counts clients expect from
// update endpoints.
type MutationResult struct {
	MatchedCount  int64 `json:"matched_count"`
	ModifiedCount int64 `json:"modified_count"`
}

type DeleteResult struct {
	DeletedCount int64 `json:"deleted_count"`
}

// CascadeResult reports what a reported-product purge removed.
type CascadeResult struct {
	ProductDeleted int64 `json:"product_deleted"`
	VotesDeleted   int64 `json:"votes_deleted"`
	ReportsDeleted int64 `json:"reports_deleted"`
}

type Page struct {
	Offset int
	Limit  int // zero means unbounded
}

type UserFilter struct {
	Page
	Search string
	Role   models.Role
}

type ProductSort string

const (
	SortNewest ProductSort = "newest"
	SortVotes  ProductSort = "votes"
)

type ProductFilter struct {
	Page
	OwnerEmail string
	Status     models.ProductStatus
	Featured   *bool
	Search     string
	Tag        string
	Sort       ProductSort
}

type ReportFilter struct {
	Page
	ProductID *uuid.UUID
}

type AuditFilter struct {
	Page
	Action       string
	ResourceType string
	ActorEmail   string
}

type Store interface {
	Users() UserStore
	Products() ProductStore
	Reports() ReportStore
	Reviews() ReviewStore
	Coupons() CouponStore
	AuditLogs() AuditLogStore
	Ping(ctx context.Context) error
	Close() error
}

type UserStore interface {
	// Upsert creates the user on first sight of the email; later calls only
	// refresh name and photo.
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	SetSubscribed(ctx context.Context, email string) (MutationResult, error)
	// SetRole overwrites the role and appends audit in the same unit of work.
	// The audit entry's resource and old/new values are filled in by the store.
	SetRole(ctx context.Context, id uuid.UUID, role models.Role, audit *models.AuditLog) (*models.User, MutationResult, error)
	Count(ctx context.Context) (int64, error)
}

type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	// Update writes descriptive fields only.
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (MutationResult, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ProductStatus, audit *models.AuditLog) (*models.Product, MutationResult, error)
	SetFeatured(ctx context.Context, id uuid.UUID, audit *models.AuditLog) (MutationResult, error)
	// Vote adds voterEmail to the voter set and increments votes atomically,
	// or returns ErrAlreadyVoted leaving both untouched.
	Vote(ctx context.Context, id uuid.UUID, voterEmail string) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error)
	// DeleteWithReports removes the product, its votes and every report
	// targeting it. Safe to re-run after the product is gone.
	DeleteWithReports(ctx context.Context, id uuid.UUID, audit *models.AuditLog) (CascadeResult, error)
	CountByStatus(ctx context.Context) (map[models.ProductStatus]int64, error)
	Count(ctx context.Context) (int64, error)
}

type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error)
	Count(ctx context.Context) (int64, error)
}

type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
	Count(ctx context.Context) (int64, error)
}

type CouponStore interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	List(ctx context.Context, page Page) ([]models.Coupon, int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (MutationResult, error)
	Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error)
}

type AuditLogStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int64, error)
}
