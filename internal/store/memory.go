// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/apporbit/apporbit-backend/internal/models"
)

// Memory is an in-process Store guarded by a single RWMutex. Every
// multi-record operation runs under the write lock, which gives it the
// same atomicity as the gorm transactions.
type Memory struct {
	mu sync.RWMutex

	users    map[uuid.UUID]models.User
	products map[uuid.UUID]models.Product
	votes    map[uuid.UUID][]string // product id -> voter emails in vote order
	reports  map[uuid.UUID]models.Report
	reviews  map[uuid.UUID]models.Review
	coupons  map[uuid.UUID]models.Coupon
	audits   []models.AuditLog

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[uuid.UUID]models.User),
		products: make(map[uuid.UUID]models.Product),
		votes:    make(map[uuid.UUID][]string),
		reports:  make(map[uuid.UUID]models.Report),
		reviews:  make(map[uuid.UUID]models.Review),
		coupons:  make(map[uuid.UUID]models.Coupon),
		now:      time.Now,
	}
}

func (m *Memory) Users() UserStore         { return memoryUsers{m} }
func (m *Memory) Products() ProductStore   { return memoryProducts{m} }
func (m *Memory) Reports() ReportStore     { return memoryReports{m} }
func (m *Memory) Reviews() ReviewStore     { return memoryReviews{m} }
func (m *Memory) Coupons() CouponStore     { return memoryCoupons{m} }
func (m *Memory) AuditLogs() AuditLogStore { return memoryAuditLogs{m} }

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// stamp sets ID and timestamps on create. Successive creates get strictly
// increasing CreatedAt so newest-first ordering is stable.
func (m *Memory) stamp(base *models.BaseModel, last time.Time) {
	base.EnsureID()
	now := m.now()
	if !now.After(last) {
		now = last.Add(time.Microsecond)
	}
	base.CreatedAt = now
	base.UpdatedAt = now
}

func (m *Memory) latestCreated() time.Time {
	var latest time.Time
	for _, u := range m.users {
		if u.CreatedAt.After(latest) {
			latest = u.CreatedAt
		}
	}
	for _, p := range m.products {
		if p.CreatedAt.After(latest) {
			latest = p.CreatedAt
		}
	}
	for _, r := range m.reports {
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	for _, r := range m.reviews {
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	for _, c := range m.coupons {
		if c.CreatedAt.After(latest) {
			latest = c.CreatedAt
		}
	}
	if n := len(m.audits); n > 0 && m.audits[n-1].CreatedAt.After(latest) {
		latest = m.audits[n-1].CreatedAt
	}
	return latest
}

func (m *Memory) appendAudit(entry *models.AuditLog) {
	m.stamp(&entry.BaseModel, m.latestCreated())
	m.audits = append(m.audits, *entry)
}

func window[T any](items []T, p Page) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

// Users

type memoryUsers struct{ m *Memory }

func (s memoryUsers) Upsert(_ context.Context, user *models.User) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for id, existing := range s.m.users {
		if existing.Email == user.Email {
			existing.Name = user.Name
			existing.Photo = user.Photo
			existing.UpdatedAt = s.m.now()
			s.m.users[id] = existing
			out := existing
			return &out, nil
		}
	}

	created := *user
	if created.Role == "" {
		created.Role = models.RoleUser
	}
	s.m.stamp(&created.BaseModel, s.m.latestCreated())
	s.m.users[created.ID] = created
	out := created
	return &out, nil
}

func (s memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, u := range s.m.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s memoryUsers) List(_ context.Context, filter UserFilter) ([]models.User, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var matched []models.User
	for _, u := range s.m.users {
		if filter.Search != "" && !containsFold(u.Name, filter.Search) && !containsFold(u.Email, filter.Search) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	return window(matched, filter.Page), int64(len(matched)), nil
}

func (s memoryUsers) SetSubscribed(_ context.Context, email string) (MutationResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for id, u := range s.m.users {
		if u.Email != email {
			continue
		}
		if u.IsSubscribed {
			return MutationResult{MatchedCount: 1}, nil
		}
		u.IsSubscribed = true
		u.UpdatedAt = s.m.now()
		s.m.users[id] = u
		return MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}
	return MutationResult{}, ErrNotFound
}

func (s memoryUsers) SetRole(_ context.Context, id uuid.UUID, role models.Role, audit *models.AuditLog) (*models.User, MutationResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	u, ok := s.m.users[id]
	if !ok {
		return nil, MutationResult{}, ErrNotFound
	}
	if u.Role == role {
		return &u, MutationResult{MatchedCount: 1}, nil
	}

	previous := u.Role
	u.Role = role
	u.UpdatedAt = s.m.now()
	s.m.users[id] = u

	if audit != nil {
		fillRoleAudit(audit, &u, previous, role)
		s.m.appendAudit(audit)
	}
	return &u, MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s memoryUsers) Count(context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.users)), nil
}

// Products

type memoryProducts struct{ m *Memory }

func (s memoryProducts) withVoters(p models.Product) models.Product {
	p.Voters = append([]string{}, s.m.votes[p.ID]...)
	p.Tags = append(pq.StringArray(nil), p.Tags...)
	return p
}

func (s memoryProducts) Create(_ context.Context, product *models.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if product.Status == "" {
		product.Status = models.ProductStatusPending
	}
	s.m.stamp(&product.BaseModel, s.m.latestCreated())
	if _, exists := s.m.products[product.ID]; exists {
		return ErrDuplicate
	}
	product.Voters = []string{}
	stored := *product
	stored.Voters = nil
	s.m.products[product.ID] = stored
	return nil
}

func (s memoryProducts) Get(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	p, ok := s.m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.withVoters(p)
	return &out, nil
}

func (s memoryProducts) List(_ context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var matched []models.Product
	for _, p := range s.m.products {
		if filter.OwnerEmail != "" && p.OwnerEmail != filter.OwnerEmail {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Featured != nil && p.IsFeatured != *filter.Featured {
			continue
		}
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.Description, filter.Search) {
			continue
		}
		if filter.Tag != "" && !hasTag(p.Tags, filter.Tag) {
			continue
		}
		matched = append(matched, s.withVoters(p))
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.Sort == SortVotes && matched[i].Votes != matched[j].Votes {
			return matched[i].Votes > matched[j].Votes
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return window(matched, filter.Page), int64(len(matched)), nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (s memoryProducts) Update(_ context.Context, id uuid.UUID, fields map[string]interface{}) (MutationResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	p, ok := s.m.products[id]
	if !ok {
		return MutationResult{}, ErrNotFound
	}
	if len(fields) == 0 {
		return MutationResult{MatchedCount: 1}, nil
	}

	for column, value := range fields {
		if err := applyProductField(&p, column, value); err != nil {
			return MutationResult{}, err
		}
	}
	p.UpdatedAt = s.m.now()
	s.m.products[id] = p
	return MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func applyProductField(p *models.Product, column string, value interface{}) error {
	var ok bool
	switch column {
	case "name":
		p.Name, ok = value.(string)
	case "description":
		p.Description, ok = value.(string)
	case "image":
		p.Image, ok = value.(string)
	case "external_link":
		p.ExternalLink, ok = value.(string)
	case "owner_name":
		p.OwnerName, ok = value.(string)
	case "owner_photo":
		p.OwnerPhoto, ok = value.(string)
	case "tags":
		p.Tags, ok = value.(pq.StringArray)
	case "details":
		p.Details, ok = value.(models.JSONB)
	default:
		return fmt.Errorf("product column %q is not writable", column)
	}
	if !ok {
		return fmt.Errorf("unexpected %T for product column %q", value, column)
	}
	return nil
}

func (s memoryProducts) SetStatus(_ context.Context, id uuid.UUID, status models.ProductStatus, audit *models.AuditLog) (*models.Product, MutationResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	p, ok := s.m.products[id]
	if !ok {
		return nil, MutationResult{}, ErrNotFound
	}
	if p.Status == status {
		out := s.withVoters(p)
		return &out, MutationResult{MatchedCount: 1}, nil
	}

	previous := p.Status
	p.Status = status
	p.UpdatedAt = s.m.now()
	s.m.products[id] = p

	if audit != nil {
		fillProductAudit(audit, id, models.JSONB{"status": string(previous)}, models.JSONB{"status": string(status)})
		s.m.appendAudit(audit)
	}
	out := s.withVoters(p)
	return &out, MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s memoryProducts) SetFeatured(_ context.Context, id uuid.UUID, audit *models.AuditLog) (MutationResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	p, ok := s.m.products[id]
	if !ok {
		return MutationResult{}, ErrNotFound
	}
	if p.IsFeatured {
		return MutationResult{MatchedCount: 1}, nil
	}
	p.IsFeatured = true
	p.UpdatedAt = s.m.now()
	s.m.products[id] = p

	if audit != nil {
		fillProductAudit(audit, id, models.JSONB{"is_featured": false}, models.JSONB{"is_featured": true})
		s.m.appendAudit(audit)
	}
	return MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s memoryProducts) Vote(_ context.Context, id uuid.UUID, voterEmail string) (*models.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	p, ok := s.m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, voter := range s.m.votes[id] {
		if voter == voterEmail {
			return nil, ErrAlreadyVoted
		}
	}

	s.m.votes[id] = append(s.m.votes[id], voterEmail)
	p.Votes++
	s.m.products[id] = p

	out := s.withVoters(p)
	return &out, nil
}

func (s memoryProducts) Delete(_ context.Context, id uuid.UUID) (DeleteResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.votes, id)
	if _, ok := s.m.products[id]; !ok {
		return DeleteResult{}, nil
	}
	delete(s.m.products, id)
	return DeleteResult{DeletedCount: 1}, nil
}

func (s memoryProducts) DeleteWithReports(_ context.Context, id uuid.UUID, audit *models.AuditLog) (CascadeResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var result CascadeResult
	result.VotesDeleted = int64(len(s.m.votes[id]))
	delete(s.m.votes, id)

	if _, ok := s.m.products[id]; ok {
		delete(s.m.products, id)
		result.ProductDeleted = 1
	}

	for reportID, r := range s.m.reports {
		if r.ProductID == id {
			delete(s.m.reports, reportID)
			result.ReportsDeleted++
		}
	}

	if audit != nil && (result.ProductDeleted > 0 || result.ReportsDeleted > 0) {
		fillProductAudit(audit, id, nil, models.JSONB{
			"product_deleted": result.ProductDeleted,
			"reports_deleted": result.ReportsDeleted,
		})
		s.m.appendAudit(audit)
	}
	return result, nil
}

func (s memoryProducts) CountByStatus(context.Context) (map[models.ProductStatus]int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	counts := make(map[models.ProductStatus]int64)
	for _, p := range s.m.products {
		counts[p.Status]++
	}
	return counts, nil
}

func (s memoryProducts) Count(context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.products)), nil
}

// Reports

type memoryReports struct{ m *Memory }

func (s memoryReports) Create(_ context.Context, report *models.Report) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.stamp(&report.BaseModel, s.m.latestCreated())
	s.m.reports[report.ID] = *report
	return nil
}

func (s memoryReports) List(_ context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var matched []models.Report
	for _, r := range s.m.reports {
		if filter.ProductID != nil && r.ProductID != *filter.ProductID {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	return window(matched, filter.Page), int64(len(matched)), nil
}

func (s memoryReports) Count(context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.reports)), nil
}

// Reviews

type memoryReviews struct{ m *Memory }

func (s memoryReviews) Create(_ context.Context, review *models.Review) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.stamp(&review.BaseModel, s.m.latestCreated())
	s.m.reviews[review.ID] = *review
	return nil
}

func (s memoryReviews) ListByProduct(_ context.Context, productID uuid.UUID) ([]models.Review, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	reviews := []models.Review{}
	for _, r := range s.m.reviews {
		if r.ProductID == productID {
			reviews = append(reviews, r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

func (s memoryReviews) Count(context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.reviews)), nil
}

// Coupons

type memoryCoupons struct{ m *Memory }

func (s memoryCoupons) codeTaken(code string, except uuid.UUID) bool {
	for id, c := range s.m.coupons {
		if id != except && c.Code == code {
			return true
		}
	}
	return false
}

func (s memoryCoupons) Create(_ context.Context, coupon *models.Coupon) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if s.codeTaken(coupon.Code, uuid.Nil) {
		return ErrDuplicate
	}
	s.m.stamp(&coupon.BaseModel, s.m.latestCreated())
	s.m.coupons[coupon.ID] = *coupon
	return nil
}

func (s memoryCoupons) Get(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	c, ok := s.m.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s memoryCoupons) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, c := range s.m.coupons {
		if c.Code == code {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s memoryCoupons) List(_ context.Context, page Page) ([]models.Coupon, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	coupons := make([]models.Coupon, 0, len(s.m.coupons))
	for _, c := range s.m.coupons {
		coupons = append(coupons, c)
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].CreatedAt.After(coupons[j].CreatedAt) })

	return window(coupons, page), int64(len(coupons)), nil
}

func (s memoryCoupons) Update(_ context.Context, id uuid.UUID, fields map[string]interface{}) (MutationResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	c, ok := s.m.coupons[id]
	if !ok {
		return MutationResult{}, ErrNotFound
	}
	if len(fields) == 0 {
		return MutationResult{MatchedCount: 1}, nil
	}

	for column, value := range fields {
		var ok bool
		switch column {
		case "code":
			c.Code, ok = value.(string)
			if ok && s.codeTaken(c.Code, id) {
				return MutationResult{}, ErrDuplicate
			}
		case "description":
			c.Description, ok = value.(string)
		case "discount_percent":
			c.DiscountPercent, ok = value.(float64)
		case "expires_at":
			c.ExpiresAt, ok = value.(*time.Time)
		case "details":
			c.Details, ok = value.(models.JSONB)
		default:
			return MutationResult{}, fmt.Errorf("coupon column %q is not writable", column)
		}
		if !ok {
			return MutationResult{}, fmt.Errorf("unexpected %T for coupon column %q", value, column)
		}
	}
	c.UpdatedAt = s.m.now()
	s.m.coupons[id] = c
	return MutationResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s memoryCoupons) Delete(_ context.Context, id uuid.UUID) (DeleteResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.coupons[id]; !ok {
		return DeleteResult{}, nil
	}
	delete(s.m.coupons, id)
	return DeleteResult{DeletedCount: 1}, nil
}

// Audit logs

type memoryAuditLogs struct{ m *Memory }

func (s memoryAuditLogs) Create(_ context.Context, entry *models.AuditLog) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.appendAudit(entry)
	return nil
}

func (s memoryAuditLogs) List(_ context.Context, filter AuditFilter) ([]models.AuditLog, int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var matched []models.AuditLog
	for i := len(s.m.audits) - 1; i >= 0; i-- {
		entry := s.m.audits[i]
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && entry.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ActorEmail != "" && entry.ActorEmail != filter.ActorEmail {
			continue
		}
		matched = append(matched, entry)
	}
	return window(matched, filter.Page), int64(len(matched)), nil
}
