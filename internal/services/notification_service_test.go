package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apporbit/apporbit-backend/internal/models"
)

func TestNotificationServiceSendsStatusEmail(t *testing.T) {
	mailer := &fakeMailer{}
	s := NewNotificationService(mailer)

	s.ProductStatusChanged(&models.Product{
		OwnerEmail: "o@x.com",
		Name:       "Orbit <beta>",
		Status:     models.ProductStatusAccepted,
	})
	s.Wait()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "o@x.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "Orbit &lt;beta&gt;")
}

func TestNotificationServiceWithoutMailer(t *testing.T) {
	s := NewNotificationService(nil)

	assert.NotPanics(t, func() {
		s.ProductFeatured(&models.Product{OwnerEmail: "o@x.com", Name: "Orbit"})
		s.Wait()
	})
}
