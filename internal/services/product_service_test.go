package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
	"github.com/apporbit/apporbit-backend/internal/utils"
)

func TestCreateProductStartsPending(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)

	p := submit(t, s, "Owner@X.com", "Orbit")

	assert.Equal(t, models.ProductStatusPending, p.Status)
	assert.False(t, p.IsFeatured)
	assert.Zero(t, p.Votes)
	assert.Equal(t, "owner@x.com", p.OwnerEmail)
	assert.Equal(t, []string{"ai", "tools"}, []string(p.Tags))
}

func TestCreateProductValidates(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)

	_, err := s.CreateProduct(ctx, "o@x.com", &CreateProductRequest{ExternalLink: "not a url"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVoteCountsDistinctVoters(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)
	p := submit(t, s, "o@x.com", "Orbit")

	var voters []string
	for i := 0; i < 5; i++ {
		voter := fmt.Sprintf("v%d@x.com", i)
		voters = append(voters, voter)
		_, err := s.Vote(ctx, p.ID, voter)
		require.NoError(t, err)
	}

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.Votes)
	assert.ElementsMatch(t, voters, got.Voters)
}

func TestVoteTwiceLeavesStateUnchanged(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)
	p := submit(t, s, "o@x.com", "Orbit")

	_, err := s.Vote(ctx, p.ID, "v@x.com")
	require.NoError(t, err)

	_, err = s.Vote(ctx, p.ID, "V@x.com ")
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Votes)
	assert.Equal(t, []string{"v@x.com"}, got.Voters)
}

func TestAcceptThenRejectFlipsAndAudits(t *testing.T) {
	st := newMemoryStore()
	notifier := &recordingNotifier{}
	s := NewProductService(st.Products(), notifier)
	p := submit(t, s, "o@x.com", "Orbit")

	result, err := s.Accept(ctx, moderator, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MutationResult{MatchedCount: 1, ModifiedCount: 1}, result)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, models.ProductStatusAccepted, got.Status)

	result, err = s.Reject(ctx, moderator, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.ModifiedCount)

	got, _ = s.GetProduct(ctx, p.ID)
	assert.Equal(t, models.ProductStatusRejected, got.Status)

	// Same state again matches without modifying.
	result, err = s.Reject(ctx, moderator, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.MutationResult{MatchedCount: 1, ModifiedCount: 0}, result)

	assert.Equal(t, []models.ProductStatus{models.ProductStatusAccepted, models.ProductStatusRejected}, notifier.statuses)

	logs, total, err := st.AuditLogs().List(ctx, store.AuditFilter{Action: models.AuditActionStatusChanged})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, entry := range logs {
		assert.Equal(t, moderator.Email, entry.ActorEmail)
		assert.Equal(t, p.ID.String(), entry.ResourceID)
	}
}

func TestTransitionMissingProduct(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)
	p := submit(t, s, "o@x.com", "Orbit")
	_, err := s.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)

	_, err = s.Accept(ctx, moderator, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFeatureIsIndependentOfStatus(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewProductService(newMemoryStore().Products(), notifier)
	p := submit(t, s, "o@x.com", "Orbit")

	_, err := s.Feature(ctx, moderator, p.ID)
	require.NoError(t, err)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.True(t, got.IsFeatured)
	assert.Equal(t, models.ProductStatusPending, got.Status)
	assert.Equal(t, 1, notifier.featured)

	// Featured listings only surface once accepted.
	featured, err := s.Featured(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, featured)

	_, err = s.Accept(ctx, moderator, p.ID)
	require.NoError(t, err)
	featured, err = s.Featured(ctx, 0)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, p.ID, featured[0].ID)
}

func TestTrendingOrdersByVotes(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)
	quiet := submit(t, s, "o@x.com", "Quiet")
	loud := submit(t, s, "o@x.com", "Loud")
	for _, p := range []*models.Product{quiet, loud} {
		_, err := s.Accept(ctx, moderator, p.ID)
		require.NoError(t, err)
	}
	for _, voter := range []string{"a@x.com", "b@x.com"} {
		_, err := s.Vote(ctx, loud.ID, voter)
		require.NoError(t, err)
	}

	trending, err := s.Trending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, loud.ID, trending[0].ID)
}

func TestListAcceptedFiltersByTag(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)
	tagged := submit(t, s, "o@x.com", "Tagged")
	other, err := s.CreateProduct(ctx, "o@x.com", &CreateProductRequest{Name: "Other", Tags: []string{"games"}})
	require.NoError(t, err)
	pending := submit(t, s, "o@x.com", "Pending")
	for _, p := range []*models.Product{tagged, other} {
		_, err := s.Accept(ctx, moderator, p.ID)
		require.NoError(t, err)
	}

	products, total, err := s.ListAccepted(ctx, AcceptedProductParams{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 10},
		Tag:              "AI",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, tagged.ID, products[0].ID)
	assert.NotEqual(t, pending.ID, products[0].ID)
}

func TestUpdateProductLeavesModerationFields(t *testing.T) {
	s := NewProductService(newMemoryStore().Products(), nil)
	p := submit(t, s, "o@x.com", "Orbit")

	name := "Orbit Pro"
	result, err := s.UpdateProduct(ctx, p.ID, &UpdateProductRequest{Name: &name, Tags: []string{"Pro"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.MatchedCount)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, "Orbit Pro", got.Name)
	assert.Equal(t, []string{"pro"}, []string(got.Tags))
	assert.Equal(t, models.ProductStatusPending, got.Status)
}

func TestDeleteReportedProductIsScoped(t *testing.T) {
	st := newMemoryStore()
	products := NewProductService(st.Products(), nil)
	reports := NewReportService(st.Reports(), st.Products())

	target := submit(t, products, "o@x.com", "Target")
	bystander := submit(t, products, "o@x.com", "Bystander")
	for _, id := range []*models.Product{target, target, bystander} {
		_, err := reports.CreateReport(ctx, "r@x.com", &CreateReportRequest{ProductID: id.ID, Reason: "spam"})
		require.NoError(t, err)
	}
	_, err := products.Vote(ctx, target.ID, "v@x.com")
	require.NoError(t, err)

	result, err := products.DeleteReportedProduct(ctx, moderator, target.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CascadeResult{ProductDeleted: 1, VotesDeleted: 1, ReportsDeleted: 2}, result)

	_, err = products.GetProduct(ctx, target.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	remaining, total, err := reports.ListReports(ctx, utils.PaginationParams{Page: 1, Limit: 10}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, bystander.ID, remaining[0].ProductID)

	// Retrying after the product is gone is a no-op, not an error.
	result, err = products.DeleteReportedProduct(ctx, moderator, target.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CascadeResult{}, result)
}
