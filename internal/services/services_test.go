package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []models.ProductStatus
	featured int
}

func (n *recordingNotifier) ProductStatusChanged(p *models.Product) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, p.Status)
}

func (n *recordingNotifier) ProductFeatured(*models.Product) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.featured++
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

var moderator = Actor{Email: "mod@x.com", IPAddress: "127.0.0.1"}

func submit(t *testing.T, s *ProductService, owner, name string) *models.Product {
	t.Helper()
	p, err := s.CreateProduct(ctx, owner, &CreateProductRequest{Name: name, Tags: []string{"AI", "ai", " tools "}})
	require.NoError(t, err)
	return p
}

var ctx = context.Background()

func newMemoryStore() *store.Memory {
	return store.NewMemory()
}
