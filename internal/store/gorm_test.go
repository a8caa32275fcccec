package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apporbit/apporbit-backend/internal/models"
)

// GormStoreTestSuite runs against a real Postgres named by DATABASE_URL.
type GormStoreTestSuite struct {
	suite.Suite
	db    *gorm.DB
	store *Gorm
	ctx   context.Context
	// run scopes row identities so repeated runs share one database.
	run string
}

func (s *GormStoreTestSuite) SetupSuite() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		s.T().Skip("DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVote{},
		&models.Report{},
		&models.AuditLog{},
	))

	s.db = db
	s.store = NewGorm(db)
	s.ctx = context.Background()
	s.run = uuid.NewString()[:8]
}

func (s *GormStoreTestSuite) TearDownSuite() {
	if s.db == nil {
		return
	}
	pattern := "%@" + s.run + ".test"
	s.db.Where("voter_email LIKE ?", pattern).Delete(&models.ProductVote{})
	s.db.Where("reporter_email LIKE ?", pattern).Delete(&models.Report{})
	s.db.Where("owner_email LIKE ?", pattern).Delete(&models.Product{})
	s.db.Where("email LIKE ?", pattern).Delete(&models.User{})
	s.db.Where("actor_email LIKE ?", pattern).Delete(&models.AuditLog{})
	s.store.Close()
}

func (s *GormStoreTestSuite) email(name string) string {
	return fmt.Sprintf("%s@%s.test", name, s.run)
}

func (s *GormStoreTestSuite) newProduct(owner string) *models.Product {
	p := &models.Product{OwnerEmail: s.email(owner), Name: "App by " + owner, Tags: pq.StringArray{"tools"}}
	s.Require().NoError(s.store.Products().Create(s.ctx, p))
	return p
}

func (s *GormStoreTestSuite) TestVoteOncePerVoter() {
	p := s.newProduct("voted")

	voted, err := s.store.Products().Vote(s.ctx, p.ID, s.email("v"))
	s.Require().NoError(err)
	s.EqualValues(1, voted.Votes)

	_, err = s.store.Products().Vote(s.ctx, p.ID, s.email("v"))
	s.ErrorIs(err, ErrAlreadyVoted)

	_, err = s.store.Products().Vote(s.ctx, uuid.New(), s.email("v"))
	s.ErrorIs(err, ErrNotFound)

	got, err := s.store.Products().Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.EqualValues(1, got.Votes)
}

func (s *GormStoreTestSuite) TestConcurrentVotesCountEachVoterOnce() {
	p := s.newProduct("busy")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every voter tries twice.
			s.store.Products().Vote(s.ctx, p.ID, s.email(fmt.Sprintf("c%d", i%5)))
		}(i)
	}
	wg.Wait()

	got, err := s.store.Products().Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.EqualValues(5, got.Votes)

	var rows int64
	s.Require().NoError(s.db.Model(&models.ProductVote{}).Where("product_id = ?", p.ID).Count(&rows).Error)
	s.EqualValues(5, rows)
}

func (s *GormStoreTestSuite) TestSetRoleAuditsOnlyChanges() {
	user, err := s.store.Users().Upsert(s.ctx, &models.User{Email: s.email("role"), Name: "Role"})
	s.Require().NoError(err)

	audit := &models.AuditLog{ActorEmail: s.email("admin"), Action: models.AuditActionRoleChanged}
	updated, result, err := s.store.Users().SetRole(s.ctx, user.ID, models.RoleModerator, audit)
	s.Require().NoError(err)
	s.Equal(models.RoleModerator, updated.Role)
	s.Equal(MutationResult{MatchedCount: 1, ModifiedCount: 1}, result)

	_, result, err = s.store.Users().SetRole(s.ctx, user.ID, models.RoleModerator, &models.AuditLog{ActorEmail: s.email("admin"), Action: models.AuditActionRoleChanged})
	s.Require().NoError(err)
	s.Equal(MutationResult{MatchedCount: 1}, result)

	logs, total, err := s.store.AuditLogs().List(s.ctx, AuditFilter{ActorEmail: s.email("admin")})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(user.ID.String(), logs[0].ResourceID)

	_, _, err = s.store.Users().SetRole(s.ctx, uuid.New(), models.RoleAdmin, nil)
	s.ErrorIs(err, ErrNotFound)
}

func (s *GormStoreTestSuite) TestDeleteWithReportsIsScoped() {
	target := s.newProduct("target")
	other := s.newProduct("other")

	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Reports().Create(s.ctx, &models.Report{ProductID: target.ID, ReporterEmail: s.email(fmt.Sprintf("r%d", i)), Reason: "spam"}))
	}
	s.Require().NoError(s.store.Reports().Create(s.ctx, &models.Report{ProductID: other.ID, ReporterEmail: s.email("r"), Reason: "spam"}))
	_, err := s.store.Products().Vote(s.ctx, target.ID, s.email("v"))
	s.Require().NoError(err)

	audit := &models.AuditLog{ActorEmail: s.email("mod"), Action: models.AuditActionPurged}
	result, err := s.store.Products().DeleteWithReports(s.ctx, target.ID, audit)
	s.Require().NoError(err)
	s.Equal(CascadeResult{ProductDeleted: 1, VotesDeleted: 1, ReportsDeleted: 3}, result)

	_, err = s.store.Products().Get(s.ctx, target.ID)
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.Products().Get(s.ctx, other.ID)
	s.NoError(err)

	remaining, total, err := s.store.Reports().List(s.ctx, ReportFilter{ProductID: &other.ID})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(other.ID, remaining[0].ProductID)

	again, err := s.store.Products().DeleteWithReports(s.ctx, target.ID, &models.AuditLog{ActorEmail: s.email("mod"), Action: models.AuditActionPurged})
	s.Require().NoError(err)
	s.Equal(CascadeResult{}, again)

	_, purges, err := s.store.AuditLogs().List(s.ctx, AuditFilter{ActorEmail: s.email("mod")})
	s.Require().NoError(err)
	s.EqualValues(1, purges)
}

func TestGormStoreTestSuite(t *testing.T) {
	suite.Run(t, new(GormStoreTestSuite))
}
