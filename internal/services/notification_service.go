// internal/services/notification_service.go
package services

import (
	"bytes"
	"html/template"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/apporbit/apporbit-backend/internal/config"
	"github.com/apporbit/apporbit-backend/internal/models"
)

// Notifier tells listing owners about moderation outcomes. Delivery is best
// effort and never fails the triggering request.
type Notifier interface {
	ProductStatusChanged(product *models.Product)
	ProductFeatured(product *models.Product)
}

// Mailer sends one HTML message.
type Mailer interface {
	Send(to, subject, body string) error
}

type smtpMailer struct {
	cfg config.EmailConfig
}

func NewSMTPMailer(cfg config.EmailConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.FromEmail, m.cfg.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUsername, m.cfg.SMTPPassword)
	return d.DialAndSend(msg)
}

type NotificationService struct {
	mailer Mailer
	wg     sync.WaitGroup
}

type EmailTemplate struct {
	Subject string
	Body    string
}

// NewNotificationService returns a service that only logs when mailer is nil.
func NewNotificationService(mailer Mailer) *NotificationService {
	return &NotificationService{mailer: mailer}
}

func (s *NotificationService) ProductStatusChanged(product *models.Product) {
	key := "product_" + string(product.Status)
	s.dispatch(product.OwnerEmail, key, map[string]interface{}{
		"OwnerName":   displayName(product.OwnerName, product.OwnerEmail),
		"ProductName": product.Name,
		"Status":      string(product.Status),
	})
}

func (s *NotificationService) ProductFeatured(product *models.Product) {
	s.dispatch(product.OwnerEmail, "product_featured", map[string]interface{}{
		"OwnerName":   displayName(product.OwnerName, product.OwnerEmail),
		"ProductName": product.Name,
	})
}

// Wait blocks until queued emails have been attempted.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) dispatch(to, templateKey string, data map[string]interface{}) {
	if to == "" {
		return
	}

	tmpl := getEmailTemplate(templateKey)
	subject, err := renderTemplate(tmpl.Subject, data)
	if err != nil {
		logrus.WithError(err).WithField("template", templateKey).Error("Failed to render email subject")
		return
	}
	body, err := renderTemplate(tmpl.Body, data)
	if err != nil {
		logrus.WithError(err).WithField("template", templateKey).Error("Failed to render email body")
		return
	}

	if s.mailer == nil {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("Email not configured, skipping delivery")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.mailer.Send(to, subject, body); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"to": to, "template": templateKey}).Warn("Failed to send email")
		}
	}()
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"product_accepted": {
			Subject: "Your product {{.ProductName}} is live on AppOrbit",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Good news, {{.OwnerName}}!</h2>
	<p>"{{.ProductName}}" passed moderation and is now visible to everyone.</p>
	<p>Best regards,<br>AppOrbit Team</p>
</body>
</html>`,
		},
		"product_rejected": {
			Subject: "Your product {{.ProductName}} was not approved",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Hello {{.OwnerName}},</h2>
	<p>"{{.ProductName}}" did not pass moderation. You can update the listing and ask a moderator to review it again.</p>
	<p>Best regards,<br>AppOrbit Team</p>
</body>
</html>`,
		},
		"product_featured": {
			Subject: "{{.ProductName}} is now featured",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Congratulations {{.OwnerName}}!</h2>
	<p>"{{.ProductName}}" was picked for the featured section.</p>
	<p>Best regards,<br>AppOrbit Team</p>
</body>
</html>`,
		},
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	return EmailTemplate{
		Subject: "AppOrbit update",
		Body:    "<p>{{.ProductName}} status: {{.Status}}</p>",
	}
}
