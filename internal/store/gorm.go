// internal/store/gorm.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/apporbit/apporbit-backend/internal/models"
)

// Gorm is the PostgreSQL-backed Store.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Users() UserStore         { return &gormUsers{db: g.db} }
func (g *Gorm) Products() ProductStore   { return &gormProducts{db: g.db} }
func (g *Gorm) Reports() ReportStore     { return &gormReports{db: g.db} }
func (g *Gorm) Reviews() ReviewStore     { return &gormReviews{db: g.db} }
func (g *Gorm) Coupons() CouponStore     { return &gormCoupons{db: g.db} }
func (g *Gorm) AuditLogs() AuditLogStore { return &gormAuditLogs{db: g.db} }

func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func paginate(q *gorm.DB, p Page) *gorm.DB {
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	return q
}

func likePattern(s string) string {
	return "%" + strings.TrimSpace(s) + "%"
}

// Users

type gormUsers struct {
	db *gorm.DB
}

func (s *gormUsers) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	user.EnsureID()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "photo", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", translate(err))
	}
	return s.GetByEmail(ctx, user.Email)
}

func (s *gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *gormUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *gormUsers) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (s *gormUsers) SetSubscribed(ctx context.Context, email string) (MutationResult, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.User{}).
		Where("email = ? AND is_subscribed = ?", email, false).
		Updates(map[string]interface{}{"is_subscribed": true, "updated_at": time.Now()})
	if res.Error != nil {
		return MutationResult{}, fmt.Errorf("subscribe user: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return MutationResult{}, err
	}
	if count == 0 {
		return MutationResult{}, ErrNotFound
	}
	return MutationResult{MatchedCount: 1}, nil
}

func (s *gormUsers) SetRole(ctx context.Context, id uuid.UUID, role models.Role, audit *models.AuditLog) (*models.User, MutationResult, error) {
	var user models.User
	var result MutationResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		result.MatchedCount = 1

		previous := user.Role
		if previous == role {
			return nil
		}
		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return err
		}
		user.Role = role
		result.ModifiedCount = 1

		if audit != nil {
			fillRoleAudit(audit, &user, previous, role)
			if err := tx.Create(audit).Error; err != nil {
				return fmt.Errorf("write audit log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, MutationResult{}, err
	}
	return &user, result, nil
}

func (s *gormUsers) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// Products

type gormProducts struct {
	db *gorm.DB
}

func (s *gormProducts) Create(ctx context.Context, product *models.Product) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("create product: %w", translate(err))
	}
	if product.Voters == nil {
		product.Voters = []string{}
	}
	return nil
}

func (s *gormProducts) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}

	products := []models.Product{product}
	if err := attachVoters(db, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (s *gormProducts) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Product{})

	if filter.OwnerEmail != "" {
		query = query.Where("owner_email = ?", filter.OwnerEmail)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Featured != nil {
		query = query.Where("is_featured = ?", *filter.Featured)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if filter.Tag != "" {
		query = query.Where("? = ANY(tags)", filter.Tag)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	switch filter.Sort {
	case SortVotes:
		query = query.Order("votes DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var products []models.Product
	if err := paginate(query, filter.Page).Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if err := attachVoters(db, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func attachVoters(db *gorm.DB, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(products))
	for i := range products {
		ids[i] = products[i].ID
		products[i].Voters = []string{}
	}

	var votes []models.ProductVote
	if err := db.Where("product_id IN ?", ids).Order("created_at ASC").Find(&votes).Error; err != nil {
		return fmt.Errorf("load voters: %w", err)
	}

	index := make(map[uuid.UUID]int, len(products))
	for i := range products {
		index[products[i].ID] = i
	}
	for _, v := range votes {
		if i, ok := index[v.ProductID]; ok {
			products[i].Voters = append(products[i].Voters, v.VoterEmail)
		}
	}
	return nil
}

func (s *gormProducts) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (MutationResult, error) {
	if len(fields) == 0 {
		return s.matchOnly(ctx, id)
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return MutationResult{}, fmt.Errorf("update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return MutationResult{}, ErrNotFound
	}
	return MutationResult{MatchedCount: res.RowsAffected, ModifiedCount: res.RowsAffected}, nil
}

func (s *gormProducts) matchOnly(ctx context.Context, id uuid.UUID) (MutationResult, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return MutationResult{}, err
	}
	if count == 0 {
		return MutationResult{}, ErrNotFound
	}
	return MutationResult{MatchedCount: count}, nil
}

func (s *gormProducts) SetStatus(ctx context.Context, id uuid.UUID, status models.ProductStatus, audit *models.AuditLog) (*models.Product, MutationResult, error) {
	var product models.Product
	var result MutationResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		result.MatchedCount = 1

		previous := product.Status
		if previous == status {
			return nil
		}
		if err := tx.Model(&product).Update("status", status).Error; err != nil {
			return err
		}
		product.Status = status
		result.ModifiedCount = 1

		if audit != nil {
			fillProductAudit(audit, id, models.JSONB{"status": string(previous)}, models.JSONB{"status": string(status)})
			if err := tx.Create(audit).Error; err != nil {
				return fmt.Errorf("write audit log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, MutationResult{}, err
	}
	return &product, result, nil
}

func (s *gormProducts) SetFeatured(ctx context.Context, id uuid.UUID, audit *models.AuditLog) (MutationResult, error) {
	var result MutationResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		result.MatchedCount = 1
		if product.IsFeatured {
			return nil
		}
		if err := tx.Model(&product).Update("is_featured", true).Error; err != nil {
			return err
		}
		result.ModifiedCount = 1

		if audit != nil {
			fillProductAudit(audit, id, models.JSONB{"is_featured": false}, models.JSONB{"is_featured": true})
			if err := tx.Create(audit).Error; err != nil {
				return fmt.Errorf("write audit log: %w", err)
			}
		}
		return nil
	})
	return result, err
}

func (s *gormProducts) Vote(ctx context.Context, id uuid.UUID, voterEmail string) (*models.Product, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
			return translate(err)
		}

		vote := &models.ProductVote{ProductID: id, VoterEmail: voterEmail}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(vote)
		if res.Error != nil {
			return fmt.Errorf("record vote: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyVoted
		}

		return tx.Model(&product).UpdateColumn("votes", gorm.Expr("votes + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *gormProducts) Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error) {
	var result DeleteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		result.DeletedCount = res.RowsAffected
		return nil
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete product: %w", err)
	}
	return result, nil
}

func (s *gormProducts) DeleteWithReports(ctx context.Context, id uuid.UUID, audit *models.AuditLog) (CascadeResult, error) {
	var result CascadeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("product_id = ?", id).Delete(&models.ProductVote{})
		if res.Error != nil {
			return res.Error
		}
		result.VotesDeleted = res.RowsAffected

		res = tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		result.ProductDeleted = res.RowsAffected

		res = tx.Where("product_id = ?", id).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		result.ReportsDeleted = res.RowsAffected

		if audit != nil && (result.ProductDeleted > 0 || result.ReportsDeleted > 0) {
			fillProductAudit(audit, id, nil, models.JSONB{
				"product_deleted": result.ProductDeleted,
				"reports_deleted": result.ReportsDeleted,
			})
			if err := tx.Create(audit).Error; err != nil {
				return fmt.Errorf("write audit log: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return CascadeResult{}, fmt.Errorf("purge reported product: %w", err)
	}
	return result, nil
}

func (s *gormProducts) CountByStatus(ctx context.Context) (map[models.ProductStatus]int64, error) {
	var rows []struct {
		Status models.ProductStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count products by status: %w", err)
	}

	counts := make(map[models.ProductStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (s *gormProducts) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

// Reports

type gormReports struct {
	db *gorm.DB
}

func (s *gormReports) Create(ctx context.Context, report *models.Report) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("create report: %w", translate(err))
	}
	return nil
}

func (s *gormReports) List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Report{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	var reports []models.Report
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	return reports, total, nil
}

func (s *gormReports) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Report{}).Count(&count).Error
	return count, err
}

// Reviews

type gormReviews struct {
	db *gorm.DB
}

func (s *gormReviews) Create(ctx context.Context, review *models.Review) error {
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("create review: %w", translate(err))
	}
	return nil
}

func (s *gormReviews) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *gormReviews) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Review{}).Count(&count).Error
	return count, err
}

// Coupons

type gormCoupons struct {
	db *gorm.DB
}

func (s *gormCoupons) Create(ctx context.Context, coupon *models.Coupon) error {
	if err := s.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *gormCoupons) Get(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.WithContext(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (s *gormCoupons) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, translate(err)
	}
	return &coupon, nil
}

func (s *gormCoupons) List(ctx context.Context, page Page) ([]models.Coupon, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Coupon{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	var coupons []models.Coupon
	if err := paginate(query.Order("created_at DESC"), page).Find(&coupons).Error; err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, total, nil
}

func (s *gormCoupons) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (MutationResult, error) {
	db := s.db.WithContext(ctx)
	if len(fields) == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return MutationResult{}, err
		}
		return MutationResult{MatchedCount: 1}, nil
	}
	res := db.Model(&models.Coupon{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return MutationResult{}, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return MutationResult{}, ErrNotFound
	}
	return MutationResult{MatchedCount: res.RowsAffected, ModifiedCount: res.RowsAffected}, nil
}

func (s *gormCoupons) Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Coupon{})
	if res.Error != nil {
		return DeleteResult{}, fmt.Errorf("delete coupon: %w", res.Error)
	}
	return DeleteResult{DeletedCount: res.RowsAffected}, nil
}

// Audit logs

type gormAuditLogs struct {
	db *gorm.DB
}

func (s *gormAuditLogs) Create(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *gormAuditLogs) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ActorEmail != "" {
		query = query.Where("actor_email = ?", filter.ActorEmail)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	var logs []models.AuditLog
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}

func fillRoleAudit(audit *models.AuditLog, user *models.User, from, to models.Role) {
	if audit.Action == "" {
		audit.Action = models.AuditActionRoleChanged
	}
	audit.ResourceType = "user"
	audit.ResourceID = user.ID.String()
	audit.OldValues = models.JSONB{"email": user.Email, "role": string(from)}
	audit.NewValues = models.JSONB{"email": user.Email, "role": string(to)}
}

func fillProductAudit(audit *models.AuditLog, id uuid.UUID, old, next models.JSONB) {
	audit.ResourceType = "product"
	audit.ResourceID = id.String()
	audit.OldValues = old
	audit.NewValues = next
}
